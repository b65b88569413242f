package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

// run is the single dispatch loop. Handlers never run concurrently, which
// keeps the registry's single-writer discipline sound; logical races across
// sessions (glare) are resolved in the coordinator.
func (c *VoiceRoomController) run() {
	defer close(c.done)
	events := c.signal.Events()
	for {
		select {
		case <-c.ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				c.failWaiters()
				return
			}
			c.dispatch(env)
		}
	}
}

// failWaiters unblocks callers waiting on a dead transport.
func (c *VoiceRoomController) failWaiters() {
	c.mu.Lock()
	jw := c.joinWait
	mw := c.membersWait
	c.joinWait = nil
	c.membersWait = nil
	c.mu.Unlock()
	if jw != nil {
		select {
		case jw <- joinResult{err: core.ErrTransportUnavailable}:
		default:
		}
	}
	if mw != nil {
		close(mw)
	}
}

func (c *VoiceRoomController) dispatch(env core.Envelope) {
	switch env.Type {
	case core.EventMembershipUpdate:
		c.onMembershipUpdate(env)
	case core.EventError:
		c.onRelayError(env)
	case core.EventOffer, core.EventAnswer, core.EventCandidate:
		c.onNegotiation(env)
	case core.EventMembersResult:
		c.onMembersResult(env)
	case core.EventState:
		c.onMemberState(env)
	case core.EventSpeaking:
		log.Debug().Str("module", "app.room").Str("pid", string(env.From)).Bool("speaking", env.Speaking).Msg("speaking indicator")
	case core.EventPing:
		if err := c.signal.Send(core.Envelope{Type: core.EventPong}); err != nil {
			log.Warn().Err(err).Str("module", "app.room").Msg("pong reply")
		}
	case core.EventPong:
	default:
		log.Warn().Str("module", "app.room").Str("type", string(env.Type)).Msg("unknown signal event")
	}
}

// onMembershipUpdate either confirms a pending join (scoped to the exact
// requested channel) or refreshes the roster of the joined room, creating
// offers toward newcomers we are the canonical offerer for and tearing down
// sessions of members that left.
func (c *VoiceRoomController) onMembershipUpdate(env core.Envelope) {
	c.mu.Lock()
	if c.joinWait != nil && env.ChannelID == c.joinChannel {
		w := c.joinWait
		c.mu.Unlock()
		// Non-blocking: the waiter may have given up on its timeout with the
		// buffer already full, and the dispatch loop must never wedge on it.
		select {
		case w <- joinResult{members: env.Members, total: env.Total}:
		default:
		}
		return
	}
	if !c.joined || env.ChannelID != c.channel {
		c.mu.Unlock()
		log.Debug().Str("module", "app.room").Str("channel", string(env.ChannelID)).Msg("membership update for foreign channel dropped")
		return
	}
	coord := c.coord
	next := make(map[domain.ParticipantID]domain.Participant, len(env.Members))
	var fresh []domain.ParticipantID
	for _, p := range env.Members {
		next[p.ID] = p
		if _, known := c.roster[p.ID]; !known && p.ID != c.cfg.LocalID {
			fresh = append(fresh, p.ID)
		}
	}
	var departed []domain.ParticipantID
	for id := range c.roster {
		if _, still := next[id]; !still {
			departed = append(departed, id)
		}
	}
	c.roster = next
	c.mu.Unlock()

	for _, id := range departed {
		log.Info().Str("module", "app.room").Str("pid", string(id)).Msg("member left, destroying session")
		coord.DestroySession(id)
	}
	for _, id := range fresh {
		if !coord.ShouldInitiate(id) {
			continue
		}
		if err := coord.CreateOffer(id); err != nil {
			log.Error().Err(err).Str("module", "app.room").Str("pid", string(id)).Msg("offer to new member")
		}
	}
}

func (c *VoiceRoomController) onRelayError(env core.Envelope) {
	c.mu.Lock()
	w := c.joinWait
	c.mu.Unlock()
	if w != nil {
		select {
		case w <- joinResult{err: &core.MembershipError{Reason: env.Error}}:
		default:
			log.Debug().Str("module", "app.room").Str("error", env.Error).Msg("relay error for abandoned join dropped")
		}
		return
	}
	log.Warn().Str("module", "app.room").Str("error", env.Error).Msg("relay error")
}

// onNegotiation routes offer/answer/candidate events into the coordinator.
// Events for a room we are no longer part of are stale and dropped here,
// they must never mutate a half-destroyed session.
func (c *VoiceRoomController) onNegotiation(env core.Envelope) {
	c.mu.Lock()
	joined := c.joined
	ch := c.channel
	coord := c.coord
	c.mu.Unlock()

	if !joined || coord == nil || env.ChannelID != ch {
		log.Debug().
			Str("module", "app.room").
			Str("type", string(env.Type)).
			Str("pid", string(env.From)).
			Str("channel", string(env.ChannelID)).
			Msg("stale negotiation event dropped")
		return
	}

	switch env.Type {
	case core.EventOffer:
		if env.SDP == nil {
			log.Warn().Str("module", "app.room").Str("pid", string(env.From)).Msg("offer without sdp")
			return
		}
		coord.HandleOffer(env.From, *env.SDP)
	case core.EventAnswer:
		if env.SDP == nil {
			log.Warn().Str("module", "app.room").Str("pid", string(env.From)).Msg("answer without sdp")
			return
		}
		coord.HandleAnswer(env.From, *env.SDP)
	case core.EventCandidate:
		if env.Candidate == nil {
			log.Warn().Str("module", "app.room").Str("pid", string(env.From)).Msg("candidate without payload")
			return
		}
		coord.AddRemoteCandidate(env.From, *env.Candidate)
	}
}

func (c *VoiceRoomController) onMembersResult(env core.Envelope) {
	// Send under the lock: Leave nils and closes the waiter under the same
	// lock, so the channel can never close between capture and send.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.membersWait == nil {
		log.Debug().Str("module", "app.room").Msg("unsolicited members result dropped")
		return
	}
	select {
	case c.membersWait <- env.Channels:
	default:
	}
}

// onMemberState refreshes mute/deafen flags on the cached roster.
func (c *VoiceRoomController) onMemberState(env core.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joined || env.ChannelID != c.channel {
		return
	}
	p, ok := c.roster[env.From]
	if !ok {
		return
	}
	p.Muted = env.Muted
	p.Deafened = env.Deafened
	c.roster[env.From] = p
}
