// Package signal implements core.SignalingChannel over a relay WebSocket.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
)

const (
	writeWait       = 5 * time.Second
	pongWait        = 60 * time.Second
	defaultPingTick = 54 * time.Second
	sendBuffer      = 32
)

var ErrBackpressure = errors.New("backpressure")

// Client is the dialing end of the relay's signaling endpoint. Inbound
// envelopes are decoded by a single read pump, so subscribers observe them
// in send order.
type Client struct {
	serverURL  string
	readLimit  int64
	pingPeriod time.Duration

	conn   *websocket.Conn
	send   chan core.Envelope
	events chan core.Envelope
	ready  chan struct{}
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewClient(serverURL string, opts Options) *Client {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingTick
	}
	return &Client{
		serverURL:  serverURL,
		readLimit:  opts.ReadLimit,
		pingPeriod: opts.PingPeriod,
		send:       make(chan core.Envelope, sendBuffer),
		events:     make(chan core.Envelope, sendBuffer),
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Connect dials the relay and starts the pumps. Readiness is signalled
// exactly once, by closing the ready channel.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("relay dial: %w", err)
	}
	c.conn = conn

	if c.readLimit > 0 {
		c.conn.SetReadLimit(c.readLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()
	go c.readPump()

	close(c.ready)
	log.Info().Str("module", "signal").Str("url", c.serverURL).Msg("relay connected")
	return nil
}

func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Send(env core.Envelope) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- env:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Client) Events() <-chan core.Envelope {
	return c.events
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	close(c.done)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
	log.Info().Str("module", "signal").Msg("relay connection closed")
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case env, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			b, err := json.Marshal(env)
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump marshal")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		log.Info().Str("module", "signal").Msg("readPump closing")
		c.Close()
		close(c.events)
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("module", "signal").Msg("readPump read error")
			}
			return
		}
		var env core.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad json")
			continue
		}
		// The consumer may be gone after Close; never park this goroutine
		// on a full events buffer.
		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}
