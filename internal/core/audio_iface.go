package core

import (
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/VoiceClient/internal/domain"
)

// AudioSink plays one participant's inbound stream.
// Play may fail with ErrPlaybackBlocked; that is recoverable and the sink
// must stay usable for a later retry.
type AudioSink interface {
	Play() error
	Stop()
}

// SinkFactory allocates a sink for one remote track.
type SinkFactory func(id domain.ParticipantID, track *webrtc.TrackRemote) (AudioSink, error)

// AudioOutput is the platform playback primitive a sink pumps packets into.
type AudioOutput interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}
