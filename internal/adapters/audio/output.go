package audio

import (
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

// TrackOutput plays through a local static RTP track, the playback primitive
// the host platform renders below the negotiated connection.
type TrackOutput struct {
	track *webrtc.TrackLocalStaticRTP
}

func NewTrackOutput(track *webrtc.TrackLocalStaticRTP) *TrackOutput {
	return &TrackOutput{track: track}
}

func (o *TrackOutput) WriteRTP(pkt *rtp.Packet) error {
	return o.track.WriteRTP(pkt)
}

func (o *TrackOutput) Close() error { return nil }

// NewPlaybackTrack allocates an opus playback track for one participant.
func NewPlaybackTrack(id domain.ParticipantID) (*webrtc.TrackLocalStaticRTP, error) {
	return webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"playback-"+string(id),
	)
}

// NewCaptureTrack allocates the local source track the capture collaborator
// writes into. Capture itself lives outside this module.
func NewCaptureTrack() (*webrtc.TrackLocalStaticRTP, error) {
	return webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"microphone",
	)
}

// TrackOpener is the default OutputOpener: one playback track per participant.
func TrackOpener() OutputOpener {
	return func(id domain.ParticipantID) (core.AudioOutput, error) {
		track, err := NewPlaybackTrack(id)
		if err != nil {
			return nil, err
		}
		return NewTrackOutput(track), nil
	}
}
