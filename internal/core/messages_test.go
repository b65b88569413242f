package core

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VoiceClient/internal/domain"
)

func TestOutboundNegotiationEnvelopeFieldNames(t *testing.T) {
	env := OfferTo("42", "B", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	b, err := json.Marshal(env)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))

	assert.Equal(t, "offer", raw["type"])
	assert.Equal(t, "42", raw["channel_id"])
	assert.Equal(t, "B", raw["target_participant"])
	assert.NotContains(t, raw, "from")
	assert.Contains(t, raw, "sdp")
}

func TestDeafenStateUpdateCarriesBothFlags(t *testing.T) {
	b, err := json.Marshal(StateUpdate("42", true, true))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, true, raw["is_muted"])
	assert.Equal(t, true, raw["is_deaf"])
}

func TestMembershipUpdateRoundTrip(t *testing.T) {
	in := Envelope{
		Type:      EventMembershipUpdate,
		ChannelID: "42",
		Members: []domain.Participant{
			{ID: "A", Username: "alice"},
			{ID: "B", Username: "bob", Muted: true},
		},
		Total: 2,
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Envelope
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.ChannelID, out.ChannelID)
	require.Len(t, out.Members, 2)
	assert.True(t, out.Members[1].Muted)
	assert.Equal(t, 2, out.Total)
}

func TestMembersQueryCarriesChannelIDs(t *testing.T) {
	env := MembersQuery("42", "77")
	assert.Equal(t, EventMembersQuery, env.Type)
	assert.Equal(t, []domain.ChannelID{"42", "77"}, env.ChannelIDs)
}
