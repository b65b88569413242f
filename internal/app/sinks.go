package app

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

// AudioSinkManager binds one playback sink per participant. When the platform
// blocks playback the sink keeps a one-shot retry trigger that fires on the
// next user interaction and is removed as soon as playback succeeds.
type AudioSinkManager struct {
	factory core.SinkFactory

	mu      sync.Mutex
	sinks   map[domain.ParticipantID]core.AudioSink
	blocked map[domain.ParticipantID]core.AudioSink
}

func NewAudioSinkManager(factory core.SinkFactory) *AudioSinkManager {
	return &AudioSinkManager{
		factory: factory,
		sinks:   make(map[domain.ParticipantID]core.AudioSink),
		blocked: make(map[domain.ParticipantID]core.AudioSink),
	}
}

// Bind attaches a sink for the participant's inbound track. An existing sink
// for the same participant is stopped and released first, no two sinks may
// run concurrently for one id.
func (m *AudioSinkManager) Bind(id domain.ParticipantID, track *webrtc.TrackRemote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(id)

	sink, err := m.factory(id, track)
	if err != nil {
		log.Error().Err(err).Str("module", "app.sinks").Str("pid", string(id)).Msg("sink create")
		return
	}
	m.sinks[id] = sink

	switch err := sink.Play(); {
	case err == nil:
		log.Info().Str("module", "app.sinks").Str("pid", string(id)).Msg("playback started")
	case errors.Is(err, core.ErrPlaybackBlocked):
		m.blocked[id] = sink
		log.Warn().Str("module", "app.sinks").Str("pid", string(id)).Msg("playback blocked, retrying on next interaction")
	default:
		log.Error().Err(err).Str("module", "app.sinks").Str("pid", string(id)).Msg("playback failed")
	}
}

// Unbind stops and releases the participant's sink. Safe when none exists.
func (m *AudioSinkManager) Unbind(id domain.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(id)
}

func (m *AudioSinkManager) releaseLocked(id domain.ParticipantID) {
	if sink, ok := m.sinks[id]; ok {
		sink.Stop()
		delete(m.sinks, id)
	}
	delete(m.blocked, id)
}

// NotifyInteraction retries every blocked sink exactly once. A retry that is
// blocked again counts as exhausted: logged, trigger dropped, never fatal.
func (m *AudioSinkManager) NotifyInteraction() {
	m.mu.Lock()
	pending := make(map[domain.ParticipantID]core.AudioSink, len(m.blocked))
	for id, sink := range m.blocked {
		pending[id] = sink
		delete(m.blocked, id)
	}
	m.mu.Unlock()

	for id, sink := range pending {
		if err := sink.Play(); err != nil {
			log.Warn().Err(err).Str("module", "app.sinks").Str("pid", string(id)).Msg("playback retry exhausted")
			continue
		}
		log.Info().Str("module", "app.sinks").Str("pid", string(id)).Msg("playback recovered after interaction")
	}
}

// Clear releases every sink.
func (m *AudioSinkManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sink := range m.sinks {
		sink.Stop()
		delete(m.sinks, id)
	}
	for id := range m.blocked {
		delete(m.blocked, id)
	}
}

func (m *AudioSinkManager) Bound(id domain.ParticipantID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sinks[id]
	return ok
}
