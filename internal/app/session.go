package app

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

var (
	errSessionClosed    = errors.New("session closed")
	errAnswerOnStable   = errors.New("answer on stable session")
	errAnswerUnexpected = errors.New("answer without outstanding offer")
)

// PeerSession owns the negotiation state for exactly one remote participant:
// one media connection, the description-applied flags, and a buffer of ICE
// candidates that arrived before a remote description existed. The buffer is
// flushed exactly once, in arrival order, and never refilled.
type PeerSession struct {
	id  domain.ParticipantID
	gen uint64

	mu            sync.Mutex
	media         core.MediaConnection
	state         core.ConnectionState
	localApplied  bool
	remoteApplied bool
	pending       []webrtc.ICECandidateInit
	closed        bool
}

func newPeerSession(id domain.ParticipantID, gen uint64, media core.MediaConnection) *PeerSession {
	return &PeerSession{id: id, gen: gen, media: media, state: core.StateNew}
}

func (s *PeerSession) ID() domain.ParticipantID { return s.id }

// Generation distinguishes this session from any earlier or later session
// under the same participant id, so stale async callbacks can be dropped.
func (s *PeerSession) Generation() uint64 { return s.gen }

func (s *PeerSession) State() core.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stable reports whether a remote description has been applied.
func (s *PeerSession) Stable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteApplied
}

// OfferOutstanding reports whether a local offer is waiting for an answer.
func (s *PeerSession) OfferOutstanding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localApplied && !s.remoteApplied
}

func (s *PeerSession) PendingCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *PeerSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CreateOffer generates and applies a local description. Only valid while no
// offer is already outstanding.
func (s *PeerSession) CreateOffer() (*webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSessionClosed
	}
	if s.localApplied && !s.remoteApplied {
		return nil, core.ErrOfferOutstanding
	}
	offer, err := s.media.CreateAndSetOffer()
	if err != nil {
		return nil, err
	}
	s.localApplied = true
	if s.state == core.StateNew {
		s.state = core.StateNegotiating
	}
	return offer, nil
}

// ApplyOffer applies a remote offer, flushes buffered candidates in arrival
// order and returns the local answer.
func (s *PeerSession) ApplyOffer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSessionClosed
	}
	answer, err := s.media.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		return nil, err
	}
	s.localApplied = true
	s.remoteApplied = true
	if s.state == core.StateNew {
		s.state = core.StateNegotiating
	}
	s.flushLocked()
	return answer, nil
}

// ApplyAnswer applies a remote answer to an outstanding offer. On a session
// that is already stable it fails with errAnswerOnStable so the caller can
// treat the crossed answer as a no-op.
func (s *PeerSession) ApplyAnswer(answer webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	if s.remoteApplied {
		return errAnswerOnStable
	}
	if !s.localApplied {
		return errAnswerUnexpected
	}
	if err := s.media.ApplyAnswer(answer); err != nil {
		return err
	}
	s.remoteApplied = true
	s.flushLocked()
	return nil
}

// AddRemoteCandidate buffers the candidate while no remote description is
// applied, otherwise applies it immediately. Reports whether it was buffered.
func (s *PeerSession) AddRemoteCandidate(ci webrtc.ICECandidateInit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errSessionClosed
	}
	if !s.remoteApplied {
		s.pending = append(s.pending, ci)
		return true, nil
	}
	return false, s.media.AddICECandidate(ci)
}

// flushLocked applies buffered candidates strictly in arrival order. Apply
// failures are logged and skipped, they must not abort the flush.
func (s *PeerSession) flushLocked() {
	for _, ci := range s.pending {
		if err := s.media.AddICECandidate(ci); err != nil {
			log.Error().Err(err).
				Str("module", "app.session").
				Str("pid", string(s.id)).
				Msg("flush: add ice candidate")
		}
	}
	s.pending = nil
}

func (s *PeerSession) setState(st core.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = st
}

// Close releases the media connection and drops the candidate buffer.
// Safe to call twice.
func (s *PeerSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = nil
	s.state = core.StateClosed
	media := s.media
	s.mu.Unlock()

	media.Close()
	log.Info().Str("module", "app.session").Str("pid", string(s.id)).Uint64("gen", s.gen).Msg("session closed")
}
