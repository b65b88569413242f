// Package audio pumps inbound RTP into local playback outputs.
package audio

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

var errSinkStopped = errors.New("sink stopped")

// OutputOpener opens the platform playback device for one participant.
// Opening may be refused with core.ErrPlaybackBlocked; that is recoverable
// and Play can be retried later on the same sink.
type OutputOpener func(id domain.ParticipantID) (core.AudioOutput, error)

// Sink reads RTP from one remote track and forwards it to an AudioOutput.
type Sink struct {
	pid   domain.ParticipantID
	track *webrtc.TrackRemote
	open  OutputOpener

	mu      sync.Mutex
	out     core.AudioOutput
	cancel  context.CancelFunc
	playing bool
	stopped bool
}

func NewSink(pid domain.ParticipantID, track *webrtc.TrackRemote, open OutputOpener) *Sink {
	return &Sink{pid: pid, track: track, open: open}
}

// Factory adapts NewSink to core.SinkFactory.
func Factory(open OutputOpener) core.SinkFactory {
	return func(id domain.ParticipantID, track *webrtc.TrackRemote) (core.AudioSink, error) {
		return NewSink(id, track, open), nil
	}
}

// Play opens the output and starts the pump. Idempotent while playing.
func (s *Sink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errSinkStopped
	}
	if s.playing {
		return nil
	}
	out, err := s.open(s.pid)
	if err != nil {
		return err
	}
	s.out = out
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.playing = true

	go s.pump(ctx)
	log.Info().Str("module", "audio").Str("pid", string(s.pid)).Msg("pump started")
	return nil
}

// pump forwards packets until the sink stops or the track ends.
func (s *Sink) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err := s.track.ReadRTP()
		if err != nil {
			log.Info().Err(err).Str("module", "audio").Str("pid", string(s.pid)).Msg("track read ended")
			return
		}
		s.mu.Lock()
		out := s.out
		s.mu.Unlock()
		if out == nil {
			return
		}
		if err := out.WriteRTP(pkt); err != nil {
			log.Error().Err(err).Str("module", "audio").Str("pid", string(s.pid)).Msg("output write error")
			return
		}
	}
}

// Stop releases the output. Safe to call twice.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.playing = false
	if s.cancel != nil {
		s.cancel()
	}
	if s.out != nil {
		if err := s.out.Close(); err != nil {
			log.Error().Err(err).Str("module", "audio").Str("pid", string(s.pid)).Msg("output close error")
		}
		s.out = nil
	}
	log.Info().Str("module", "audio").Str("pid", string(s.pid)).Msg("sink stopped")
}
