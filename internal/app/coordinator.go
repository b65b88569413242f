package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

// NegotiationCoordinator creates and destroys peer sessions for one voice
// channel and drives offer/answer exchange over the signaling channel.
// It is the only writer of the session registry.
type NegotiationCoordinator struct {
	channel domain.ChannelID
	localID domain.ParticipantID
	signal  core.SignalingChannel
	media   core.MediaFactory
	sinks   *AudioSinkManager
	source  *webrtc.TrackLocalStaticRTP

	ctx context.Context
	reg *Registry

	mu sync.Mutex // serializes create/destroy decisions
}

func NewNegotiationCoordinator(
	ctx context.Context,
	channel domain.ChannelID,
	localID domain.ParticipantID,
	signal core.SignalingChannel,
	media core.MediaFactory,
	sinks *AudioSinkManager,
	source *webrtc.TrackLocalStaticRTP,
) *NegotiationCoordinator {
	return &NegotiationCoordinator{
		channel: channel,
		localID: localID,
		signal:  signal,
		media:   media,
		sinks:   sinks,
		source:  source,
		ctx:     ctx,
		reg:     NewRegistry(),
	}
}

// ShouldInitiate decides which side of a pair is the canonical offerer:
// the lexicographically smaller participant id. The side that loses the
// comparison waits for the remote offer instead of racing its own.
func (nc *NegotiationCoordinator) ShouldInitiate(remote domain.ParticipantID) bool {
	return nc.localID < remote
}

// ensureSession returns the live session for id, allocating one lazily.
// Media callbacks are tagged with the session generation so anything firing
// after destruction (or against a recreated session) detects itself and
// drops out.
func (nc *NegotiationCoordinator) ensureSession(id domain.ParticipantID) (*PeerSession, error) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.ensureSessionLocked(id)
}

func (nc *NegotiationCoordinator) ensureSessionLocked(id domain.ParticipantID) (*PeerSession, error) {
	if s, ok := nc.reg.Get(id); ok && !s.Closed() {
		return s, nil
	}

	mc, err := nc.media(id)
	if err != nil {
		return nil, fmt.Errorf("media connection for %s: %w", id, err)
	}
	s := nc.reg.Create(id, mc)
	gen := s.Generation()

	mc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		if !nc.reg.Matches(id, gen) {
			log.Debug().Str("module", "app.coordinator").Str("pid", string(id)).Msg("dropping candidate from stale session")
			return
		}
		if err := nc.signal.Send(core.CandidateTo(nc.channel, id, ci)); err != nil {
			log.Error().Err(err).Str("module", "app.coordinator").Str("pid", string(id)).Msg("send local candidate")
		}
	})
	mc.OnTrack(func(track *webrtc.TrackRemote) {
		if !nc.reg.Matches(id, gen) {
			log.Debug().Str("module", "app.coordinator").Str("pid", string(id)).Msg("dropping track from stale session")
			return
		}
		nc.sinks.Bind(id, track)
	})
	mc.OnStateChange(func(st core.ConnectionState) {
		if !nc.reg.Matches(id, gen) {
			return
		}
		log.Info().Str("module", "app.coordinator").Str("pid", string(id)).Str("state", st.String()).Msg("peer state")
		s.setState(st)
		if st.Terminal() {
			nc.destroy(id, gen)
		}
	})

	if nc.source != nil {
		if _, err := mc.AddLocalTrack(nc.source); err != nil {
			log.Error().Err(err).Str("module", "app.coordinator").Str("pid", string(id)).Msg("attach local track")
		}
	}

	if err := mc.Start(nc.ctx); err != nil {
		nc.reg.Remove(id, gen)
		mc.Close()
		return nil, fmt.Errorf("start media connection for %s: %w", id, err)
	}
	return s, nil
}

// CreateOffer starts negotiation toward id and sends the offer payload.
func (nc *NegotiationCoordinator) CreateOffer(id domain.ParticipantID) error {
	s, err := nc.ensureSession(id)
	if err != nil {
		return err
	}
	offer, err := s.CreateOffer()
	if err != nil {
		return err
	}
	return nc.signal.Send(core.OfferTo(nc.channel, id, *offer))
}

// HandleOffer applies a remote offer and replies with an answer. Crossed
// offers resolve deterministically: the canonical offerer ignores the
// competing offer, the other side restarts its session as responder.
func (nc *NegotiationCoordinator) HandleOffer(from domain.ParticipantID, offer webrtc.SessionDescription) {
	nc.mu.Lock()
	s, err := nc.ensureSessionLocked(from)
	if err != nil {
		nc.mu.Unlock()
		log.Error().Err(err).Str("module", "app.coordinator").Str("pid", string(from)).Msg("offer: no session")
		return
	}
	if s.OfferOutstanding() {
		if nc.ShouldInitiate(from) {
			nc.mu.Unlock()
			log.Warn().Str("module", "app.coordinator").Str("pid", string(from)).Msg("glare: crossed offer ignored, we are the offerer")
			return
		}
		// Remote wins the initiator comparison: drop our attempt and answer.
		log.Warn().Str("module", "app.coordinator").Str("pid", string(from)).Msg("glare: restarting as responder")
		nc.destroyLocked(from, s.Generation())
		s, err = nc.ensureSessionLocked(from)
		if err != nil {
			nc.mu.Unlock()
			log.Error().Err(err).Str("module", "app.coordinator").Str("pid", string(from)).Msg("glare restart")
			return
		}
	}
	nc.mu.Unlock()

	answer, err := s.ApplyOffer(offer)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("pid", string(from)).Msg("apply offer")
		return
	}
	if err := nc.signal.Send(core.AnswerTo(nc.channel, from, *answer)); err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("pid", string(from)).Msg("send answer")
	}
}

// HandleAnswer applies a remote answer. A crossed or duplicate answer on an
// already stable session is a logged no-op; any other unexpected state is
// swallowed the same way so transient races never take the room down.
func (nc *NegotiationCoordinator) HandleAnswer(from domain.ParticipantID, answer webrtc.SessionDescription) {
	s, ok := nc.reg.Get(from)
	if !ok {
		log.Warn().Str("module", "app.coordinator").Str("pid", string(from)).Msg("answer for unknown session dropped")
		return
	}
	switch err := s.ApplyAnswer(answer); {
	case err == nil:
	case errors.Is(err, errAnswerOnStable):
		log.Info().Str("module", "app.coordinator").Str("pid", string(from)).Msg("duplicate answer ignored, session already stable")
	default:
		log.Warn().Err(err).Str("module", "app.coordinator").Str("pid", string(from)).Msg("negotiation anomaly on answer")
	}
}

// AddRemoteCandidate queues or applies an inbound candidate. A candidate may
// legitimately arrive before any offer for that participant; it allocates the
// session and waits in its buffer.
func (nc *NegotiationCoordinator) AddRemoteCandidate(from domain.ParticipantID, ci webrtc.ICECandidateInit) {
	s, err := nc.ensureSession(from)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("pid", string(from)).Msg("candidate: no session")
		return
	}
	queued, err := s.AddRemoteCandidate(ci)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("pid", string(from)).Msg("add ice candidate")
		return
	}
	if queued {
		log.Debug().Str("module", "app.coordinator").Str("pid", string(from)).Msg("candidate buffered before remote description")
	}
}

// DestroySession tears down the live session for id, if any.
func (nc *NegotiationCoordinator) DestroySession(id domain.ParticipantID) {
	s, ok := nc.reg.Get(id)
	if !ok {
		return
	}
	nc.destroy(id, s.Generation())
}

func (nc *NegotiationCoordinator) destroy(id domain.ParticipantID, gen uint64) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.destroyLocked(id, gen)
}

func (nc *NegotiationCoordinator) destroyLocked(id domain.ParticipantID, gen uint64) {
	s, ok := nc.reg.Remove(id, gen)
	if !ok {
		log.Debug().Str("module", "app.coordinator").Str("pid", string(id)).Uint64("gen", gen).Msg("stale destroy dropped")
		return
	}
	s.Close()
	nc.sinks.Unbind(id)
}

// Clear destroys every session regardless of in-flight negotiation.
func (nc *NegotiationCoordinator) Clear() {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	for _, s := range nc.reg.Drain() {
		s.Close()
		nc.sinks.Unbind(s.ID())
	}
}

func (nc *NegotiationCoordinator) SessionCount() int { return nc.reg.Len() }

func (nc *NegotiationCoordinator) Session(id domain.ParticipantID) (*PeerSession, bool) {
	return nc.reg.Get(id)
}
