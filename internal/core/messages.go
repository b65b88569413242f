package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/VoiceClient/internal/domain"
)

type EventType string

const (
	EventJoin             EventType = "join"
	EventLeave            EventType = "leave"
	EventState            EventType = "state"
	EventSpeaking         EventType = "speaking"
	EventOffer            EventType = "offer"
	EventAnswer           EventType = "answer"
	EventCandidate        EventType = "candidate"
	EventMembershipUpdate EventType = "membership_update"
	EventMembersQuery     EventType = "members_query"
	EventMembersResult    EventType = "members_result"
	EventError            EventType = "error"
	EventPing             EventType = "ping"
	EventPong             EventType = "pong"
)

// Envelope is one signaling message, either direction. Outbound negotiation
// payloads address Target; inbound ones carry From instead. Fields not used
// by a given Type stay zero.
type Envelope struct {
	Type      EventType            `json:"type"`
	ChannelID domain.ChannelID     `json:"channel_id,omitempty"`
	From      domain.ParticipantID `json:"from,omitempty"`
	Target    domain.ParticipantID `json:"target_participant,omitempty"`

	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`

	Muted    bool `json:"is_muted"`
	Deafened bool `json:"is_deaf"`
	Speaking bool `json:"is_speaking"`

	Members []domain.Participant `json:"members,omitempty"`
	Total   int                  `json:"total,omitempty"`

	ChannelIDs []domain.ChannelID                      `json:"channel_ids,omitempty"`
	Channels   map[domain.ChannelID]domain.ChannelInfo `json:"channels,omitempty"`

	Error string `json:"error,omitempty"`
}

func JoinIntent(ch domain.ChannelID) Envelope {
	return Envelope{Type: EventJoin, ChannelID: ch}
}

func LeaveIntent(ch domain.ChannelID) Envelope {
	return Envelope{Type: EventLeave, ChannelID: ch}
}

func StateUpdate(ch domain.ChannelID, muted, deafened bool) Envelope {
	return Envelope{Type: EventState, ChannelID: ch, Muted: muted, Deafened: deafened}
}

func SpeakingUpdate(ch domain.ChannelID, speaking bool) Envelope {
	return Envelope{Type: EventSpeaking, ChannelID: ch, Speaking: speaking}
}

func OfferTo(ch domain.ChannelID, target domain.ParticipantID, sdp webrtc.SessionDescription) Envelope {
	return Envelope{Type: EventOffer, ChannelID: ch, Target: target, SDP: &sdp}
}

func AnswerTo(ch domain.ChannelID, target domain.ParticipantID, sdp webrtc.SessionDescription) Envelope {
	return Envelope{Type: EventAnswer, ChannelID: ch, Target: target, SDP: &sdp}
}

func CandidateTo(ch domain.ChannelID, target domain.ParticipantID, ci webrtc.ICECandidateInit) Envelope {
	return Envelope{Type: EventCandidate, ChannelID: ch, Target: target, Candidate: &ci}
}

func MembersQuery(ids ...domain.ChannelID) Envelope {
	return Envelope{Type: EventMembersQuery, ChannelIDs: ids}
}
