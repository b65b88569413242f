package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParticipant(t *testing.T) {
	p, err := NewParticipant("p1", "alice")
	require.NoError(t, err)
	assert.Equal(t, ParticipantID("p1"), p.ID)
	assert.False(t, p.Muted)
	assert.False(t, p.Deafened)
}

func TestNewParticipantValidation(t *testing.T) {
	_, err := NewParticipant("p1", "")
	assert.ErrorIs(t, err, ErrUsernameEmpty)

	_, err = NewParticipant("p1", strings.Repeat("a", MaxUsernameLen+1))
	assert.ErrorIs(t, err, ErrUsernameTooLong)
}
