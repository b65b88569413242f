package audio

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

// blockedOpener refuses the first n opens with ErrPlaybackBlocked.
func blockedOpener(n *int) OutputOpener {
	return func(id domain.ParticipantID) (core.AudioOutput, error) {
		if *n > 0 {
			*n--
			return nil, core.ErrPlaybackBlocked
		}
		return TrackOpener()(id)
	}
}

func TestPlayPropagatesPlaybackBlocked(t *testing.T) {
	n := 1
	s := NewSink("B", nil, blockedOpener(&n))

	err := s.Play()
	assert.ErrorIs(t, err, core.ErrPlaybackBlocked)

	// The sink stays usable for a retry once the platform allows it.
	// No pump starts here because the track never produces packets.
	s.Stop()
	s.Stop()
}

func TestPlayAfterStopFails(t *testing.T) {
	s := NewSink("B", nil, TrackOpener())
	s.Stop()
	assert.Error(t, s.Play())
}

func TestTrackOutputWritesWithoutBinding(t *testing.T) {
	track, err := NewPlaybackTrack("B")
	require.NoError(t, err)

	out := NewTrackOutput(track)
	// An unbound local track silently drops packets.
	assert.NoError(t, out.WriteRTP(&rtp.Packet{}))
	assert.NoError(t, out.Close())
}
