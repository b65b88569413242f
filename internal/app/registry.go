package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

// Registry is the single home of live peer sessions for one room.
// Only the NegotiationCoordinator mutates it; everyone else gets snapshots.
// Generations are monotonic per participant id so a recreated session never
// collides with callbacks of its predecessor.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ParticipantID]*PeerSession
	gens     map[domain.ParticipantID]uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ParticipantID]*PeerSession),
		gens:     make(map[domain.ParticipantID]uint64),
	}
}

// Create allocates a fresh session under the next generation for id,
// replacing any previous entry.
func (r *Registry) Create(id domain.ParticipantID, media core.MediaConnection) *PeerSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gens[id]++
	s := newPeerSession(id, r.gens[id], media)
	r.sessions[id] = s
	log.Info().Str("module", "app.registry").Str("pid", string(id)).Uint64("gen", s.gen).Msg("session created")
	return s
}

func (r *Registry) Get(id domain.ParticipantID) (*PeerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Matches reports whether the live session for id is still the one tagged gen.
func (r *Registry) Matches(id domain.ParticipantID, gen uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return ok && s.gen == gen
}

// Remove deletes the session for id only when gen still matches, so a stale
// teardown cannot evict a recreated session.
func (r *Registry) Remove(id domain.ParticipantID, gen uint64) (*PeerSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.gen != gen {
		return nil, false
	}
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("pid", string(id)).Uint64("gen", gen).Msg("session removed")
	return s, true
}

// Drain empties the registry and returns what was live.
func (r *Registry) Drain() []*PeerSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PeerSession, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, s)
		delete(r.sessions, id)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
