package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VoiceClient/internal/core"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoRelay upgrades and echoes every envelope back to the client.
func echoRelay(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWaitReadyBlocksUntilConnected(t *testing.T) {
	srv := echoRelay(t)
	c := NewClient(wsURL(srv), Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.WaitReady(ctx))

	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	assert.NoError(t, c.WaitReady(ctx2))
	// Readiness is one-shot, a second wait returns immediately.
	assert.NoError(t, c.WaitReady(context.Background()))
}

func TestEnvelopesRoundTripInOrder(t *testing.T) {
	srv := echoRelay(t)
	c := NewClient(wsURL(srv), Options{ReadLimit: 32768})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	sent := []core.Envelope{
		core.JoinIntent("42"),
		core.StateUpdate("42", true, false),
		core.LeaveIntent("42"),
	}
	for _, env := range sent {
		require.NoError(t, c.Send(env))
	}

	for _, want := range sent {
		select {
		case got := <-c.Events():
			assert.Equal(t, want.Type, got.Type)
			assert.Equal(t, want.ChannelID, got.ChannelID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want.Type)
		}
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	srv := echoRelay(t)
	c := NewClient(wsURL(srv), Options{})
	require.NoError(t, c.Connect(context.Background()))

	c.Close()
	c.Close() // idempotent

	assert.Error(t, c.Send(core.JoinIntent("42")))
}

// floodRelay pushes count envelopes at the client as soon as it connects.
func floodRelay(t *testing.T, count int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for i := 0; i < count; i++ {
			if err := ws.WriteJSON(core.Envelope{Type: core.EventPing}); err != nil {
				return
			}
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCloseUnblocksReadPumpWithoutConsumer(t *testing.T) {
	// More inbound envelopes than the events buffer holds, and nobody
	// consuming: Close must still let the read pump exit, observable as the
	// events channel closing.
	srv := floodRelay(t, 2*sendBuffer)
	c := NewClient(wsURL(srv), Options{})
	require.NoError(t, c.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return len(c.Events()) == sendBuffer
	}, 2*time.Second, time.Millisecond)

	c.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("read pump never released the events channel")
		}
	}
}

func TestEventsChannelClosesWhenRelayDrops(t *testing.T) {
	// httptest.Server stops tracking hijacked connections, so
	// CloseClientConnections would not reach the upgraded websocket; the
	// relay has to drop its end itself.
	drop := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		<-drop
		ws.Close()
	}))
	t.Cleanup(srv.Close)

	c := NewClient(wsURL(srv), Options{})
	require.NoError(t, c.Connect(context.Background()))

	close(drop)

	select {
	case _, ok := <-c.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel never closed")
	}
}
