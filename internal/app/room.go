package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

const (
	DefaultReadyTimeout   = 30 * time.Second
	DefaultJoinTimeout    = 20 * time.Second
	DefaultMembersTimeout = 5 * time.Second
)

type RoomConfig struct {
	LocalID        domain.ParticipantID
	ReadyTimeout   time.Duration
	JoinTimeout    time.Duration
	MembersTimeout time.Duration
	// Source is the local capture track attached to every outbound connection.
	// May be nil for a listen-only client.
	Source *webrtc.TrackLocalStaticRTP
}

type joinResult struct {
	members []domain.Participant
	total   int
	err     error
}

// VoiceRoomController is the top-level facade: join/leave a voice channel,
// toggle mute/deafen, query members. It consumes signaling events on a single
// dispatch goroutine, so event handling is strictly serialized.
type VoiceRoomController struct {
	cfg    RoomConfig
	signal core.SignalingChannel
	media  core.MediaFactory
	sinks  *AudioSinkManager

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	joined      bool
	channel     domain.ChannelID
	muted       bool
	deafened    bool
	coord       *NegotiationCoordinator
	roster      map[domain.ParticipantID]domain.Participant
	joinWait    chan joinResult
	joinChannel domain.ChannelID
	membersWait chan map[domain.ChannelID]domain.ChannelInfo
}

func NewVoiceRoomController(
	cfg RoomConfig,
	signal core.SignalingChannel,
	media core.MediaFactory,
	sinks *AudioSinkManager,
) *VoiceRoomController {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	if cfg.MembersTimeout <= 0 {
		cfg.MembersTimeout = DefaultMembersTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &VoiceRoomController{
		cfg:    cfg,
		signal: signal,
		media:  media,
		sinks:  sinks,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Join waits for transport readiness, announces the join intent and blocks
// until the relay confirms membership for exactly this channel. Every failure
// path leaves zero sessions behind.
func (c *VoiceRoomController) Join(ctx context.Context, ch domain.ChannelID) error {
	readyCtx, cancelReady := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancelReady()
	if err := c.signal.WaitReady(readyCtx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("join %s: %w", ch, ctx.Err())
		}
		return fmt.Errorf("join %s: %w", ch, core.ErrTransportUnavailable)
	}

	c.mu.Lock()
	if c.joined {
		prev := c.channel
		c.mu.Unlock()
		if prev == ch {
			return nil
		}
		c.Leave(prev)
		c.mu.Lock()
	}
	if c.joinWait != nil {
		c.mu.Unlock()
		return fmt.Errorf("join %s: another join in progress", ch)
	}
	wait := make(chan joinResult, 1)
	c.joinWait = wait
	c.joinChannel = ch
	c.mu.Unlock()

	clearWait := func() {
		c.mu.Lock()
		c.joinWait = nil
		c.joinChannel = ""
		c.mu.Unlock()
	}

	if err := c.signal.Send(core.JoinIntent(ch)); err != nil {
		clearWait()
		return fmt.Errorf("join %s: %w", ch, core.ErrTransportUnavailable)
	}

	timer := time.NewTimer(c.cfg.JoinTimeout)
	defer timer.Stop()

	select {
	case res := <-wait:
		clearWait()
		if res.err != nil {
			return fmt.Errorf("join %s: %w", ch, res.err)
		}
		c.finishJoin(ch, res)
		return nil
	case <-timer.C:
		clearWait()
		return fmt.Errorf("join %s: %w", ch, core.ErrJoinTimeout)
	case <-ctx.Done():
		clearWait()
		return fmt.Errorf("join %s: %w", ch, ctx.Err())
	case <-c.done:
		clearWait()
		return fmt.Errorf("join %s: %w", ch, core.ErrTransportUnavailable)
	}
}

func (c *VoiceRoomController) finishJoin(ch domain.ChannelID, res joinResult) {
	c.mu.Lock()
	c.joined = true
	c.channel = ch
	c.coord = NewNegotiationCoordinator(c.ctx, ch, c.cfg.LocalID, c.signal, c.media, c.sinks, c.cfg.Source)
	c.roster = make(map[domain.ParticipantID]domain.Participant, len(res.members))
	for _, p := range res.members {
		c.roster[p.ID] = p
	}
	coord := c.coord
	c.mu.Unlock()

	log.Info().Str("module", "app.room").Str("channel", string(ch)).Int("members", res.total).Msg("joined voice channel")

	// Dial the members already present. Only the canonical offerer side
	// initiates, the other side waits for our offer.
	for _, p := range res.members {
		if p.ID == c.cfg.LocalID || !coord.ShouldInitiate(p.ID) {
			continue
		}
		if err := coord.CreateOffer(p.ID); err != nil {
			log.Error().Err(err).Str("module", "app.room").Str("pid", string(p.ID)).Msg("initial offer")
		}
	}
}

// Leave announces the leave intent and destroys every peer session
// immediately, regardless of in-flight negotiation. Idempotent when not
// joined to ch.
func (c *VoiceRoomController) Leave(ch domain.ChannelID) {
	c.mu.Lock()
	if !c.joined || c.channel != ch {
		c.mu.Unlock()
		return
	}
	coord := c.coord
	mw := c.membersWait
	c.joined = false
	c.channel = ""
	c.coord = nil
	c.roster = nil
	c.membersWait = nil
	c.mu.Unlock()

	if err := c.signal.Send(core.LeaveIntent(ch)); err != nil {
		log.Warn().Err(err).Str("module", "app.room").Str("channel", string(ch)).Msg("leave intent")
	}
	coord.Clear()
	if mw != nil {
		close(mw)
	}
	log.Info().Str("module", "app.room").Str("channel", string(ch)).Msg("left voice channel")
}

// SetMicMuted broadcasts the mute state. While deafened the broadcast keeps
// reporting muted regardless of the requested value.
func (c *VoiceRoomController) SetMicMuted(muted bool) error {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return core.ErrNotJoined
	}
	c.muted = muted
	env := core.StateUpdate(c.channel, c.muted || c.deafened, c.deafened)
	c.mu.Unlock()
	return c.signal.Send(env)
}

// SetDeafened broadcasts the deafen state. Deafened always implies muted on
// the wire, even when the caller never asked for mute.
func (c *VoiceRoomController) SetDeafened(deafened bool) error {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return core.ErrNotJoined
	}
	c.deafened = deafened
	env := core.StateUpdate(c.channel, c.muted || deafened, deafened)
	c.mu.Unlock()
	return c.signal.Send(env)
}

// SetSpeaking broadcasts the speaking indicator.
func (c *VoiceRoomController) SetSpeaking(speaking bool) error {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return core.ErrNotJoined
	}
	env := core.SpeakingUpdate(c.channel, speaking)
	c.mu.Unlock()
	return c.signal.Send(env)
}

// Participants queries the relay for channel rosters.
func (c *VoiceRoomController) Participants(ctx context.Context, ids ...domain.ChannelID) (map[domain.ChannelID]domain.ChannelInfo, error) {
	c.mu.Lock()
	if c.membersWait != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("members query already in progress")
	}
	wait := make(chan map[domain.ChannelID]domain.ChannelInfo, 1)
	c.membersWait = wait
	c.mu.Unlock()

	clearWait := func() {
		c.mu.Lock()
		if c.membersWait == wait {
			c.membersWait = nil
		}
		c.mu.Unlock()
	}

	if err := c.signal.Send(core.MembersQuery(ids...)); err != nil {
		clearWait()
		return nil, fmt.Errorf("members query: %w", err)
	}

	timer := time.NewTimer(c.cfg.MembersTimeout)
	defer timer.Stop()

	select {
	case res, ok := <-wait:
		clearWait()
		if !ok {
			return nil, fmt.Errorf("members query: room torn down")
		}
		return res, nil
	case <-timer.C:
		clearWait()
		return nil, fmt.Errorf("members query: %w", core.ErrMembersQueryTimeout)
	case <-ctx.Done():
		clearWait()
		return nil, fmt.Errorf("members query: %w", ctx.Err())
	case <-c.done:
		clearWait()
		return nil, fmt.Errorf("members query: %w", core.ErrTransportUnavailable)
	}
}

func (c *VoiceRoomController) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (c *VoiceRoomController) Channel() domain.ChannelID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// Roster returns the cached membership of the joined channel.
func (c *VoiceRoomController) Roster() []domain.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Participant, 0, len(c.roster))
	for _, p := range c.roster {
		out = append(out, p)
	}
	return out
}

// Coordinator exposes the negotiation layer of the joined room, nil when
// not joined.
func (c *VoiceRoomController) Coordinator() *NegotiationCoordinator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coord
}

// Close leaves the current channel, stops the dispatch loop and releases
// every sink.
func (c *VoiceRoomController) Close() {
	c.mu.Lock()
	ch := c.channel
	joined := c.joined
	c.mu.Unlock()
	if joined {
		c.Leave(ch)
	}
	c.cancel()
	c.sinks.Clear()
}
