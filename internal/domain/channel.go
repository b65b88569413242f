package domain

type ChannelID string

// ChannelInfo is the roster the relay reports for one voice channel.
type ChannelInfo struct {
	ID      ChannelID     `json:"channel_id"`
	Members []Participant `json:"members"`
	Total   int           `json:"total"`
}
