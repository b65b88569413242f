// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// ParticipantID is the stable identity of a remote channel member,
// assigned by the relay.
type ParticipantID string

type Participant struct {
	ID       ParticipantID `json:"id"`
	Username string        `json:"username"`
	Muted    bool          `json:"is_muted"`
	Deafened bool          `json:"is_deaf"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(id ParticipantID, username string) (*Participant, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &Participant{ID: id, Username: username}, nil
}
