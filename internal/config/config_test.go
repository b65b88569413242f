package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8080/api/ws/signal", cfg.RelayURL)
	assert.Equal(t, "guest", cfg.Username)
	assert.Equal(t, 30*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, 20*time.Second, cfg.JoinTimeout)
	assert.Equal(t, 5*time.Second, cfg.MembersTimeout)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, int64(32768), cfg.ReadLimit)
}

func TestWebRTCConfiguration(t *testing.T) {
	cfg := &Config{ICEServers: []string{"stun:stun.l.google.com:19302", "turn:turn.example.org"}}

	rtcCfg := cfg.WebRTC()
	require.Len(t, rtcCfg.ICEServers, 2)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, rtcCfg.ICEServers[0].URLs)
}
