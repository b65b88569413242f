package core

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportUnavailable means the signaling transport never became ready
	// within the readiness window.
	ErrTransportUnavailable = errors.New("signaling transport unavailable")
	// ErrJoinTimeout means the relay never confirmed channel membership.
	ErrJoinTimeout = errors.New("join confirmation timed out")
	// ErrMembersQueryTimeout means the relay never answered a members query.
	ErrMembersQueryTimeout = errors.New("members query timed out")
	// ErrMediaAccessDenied is propagated from the capture collaborator when
	// the user refused microphone permission.
	ErrMediaAccessDenied = errors.New("microphone access denied by user")
	// ErrPlaybackBlocked is a recoverable platform restriction; sinks retry
	// it on the next user interaction.
	ErrPlaybackBlocked = errors.New("playback blocked by platform")
	// ErrOfferOutstanding guards against starting a second offer on a session
	// that is already waiting for an answer.
	ErrOfferOutstanding = errors.New("offer already outstanding")
	// ErrNotJoined is returned by operations that require channel membership.
	ErrNotJoined = errors.New("not joined to a voice channel")
)

// MembershipError is an explicit join rejection from the relay.
type MembershipError struct {
	Reason string
}

func (e *MembershipError) Error() string {
	return fmt.Sprintf("relay rejected join: %s", e.Reason)
}
