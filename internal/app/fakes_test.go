package app

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

func sdpPtr(d webrtc.SessionDescription) *webrtc.SessionDescription { return &d }

// fakeMedia records every platform call so tests can assert on ordering.
type fakeMedia struct {
	mu sync.Mutex

	applied       []webrtc.ICECandidateInit
	remoteOffers  []webrtc.SessionDescription
	remoteAnswers []webrtc.SessionDescription
	localOffers   int
	localTracks   int
	closes        int

	candidateErr error

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(track *webrtc.TrackRemote)
	onState func(core.ConnectionState)
}

func newFakeMedia() *fakeMedia { return &fakeMedia{} }

func (m *fakeMedia) Start(ctx context.Context) error { return nil }

func (m *fakeMedia) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
}

func (m *fakeMedia) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localOffers++
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "local-offer"}, nil
}

func (m *fakeMedia) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteOffers = append(m.remoteOffers, offer)
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "local-answer"}, nil
}

func (m *fakeMedia) ApplyAnswer(answer webrtc.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteAnswers = append(m.remoteAnswers, answer)
	return nil
}

func (m *fakeMedia) AddICECandidate(ci webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.candidateErr != nil {
		return m.candidateErr
	}
	m.applied = append(m.applied, ci)
	return nil
}

func (m *fakeMedia) OnICECandidate(fn func(webrtc.ICECandidateInit)) { m.onICE = fn }

func (m *fakeMedia) OnTrack(fn func(track *webrtc.TrackRemote)) { m.onTrack = fn }

func (m *fakeMedia) OnStateChange(fn func(core.ConnectionState)) { m.onState = fn }

func (m *fakeMedia) AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localTracks++
	return nil, nil
}

func (m *fakeMedia) appliedCandidates() []webrtc.ICECandidateInit {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]webrtc.ICECandidateInit, len(m.applied))
	copy(out, m.applied)
	return out
}

func (m *fakeMedia) answersApplied() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.remoteAnswers)
}

func (m *fakeMedia) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

func (m *fakeMedia) fireState(st core.ConnectionState) {
	if m.onState != nil {
		m.onState(st)
	}
}

func (m *fakeMedia) fireICE(ci webrtc.ICECandidateInit) {
	if m.onICE != nil {
		m.onICE(ci)
	}
}

func (m *fakeMedia) fireTrack() {
	if m.onTrack != nil {
		m.onTrack(nil)
	}
}

// fakeMediaFactory hands out one fakeMedia per connection and remembers all
// of them in creation order.
type fakeMediaFactory struct {
	mu      sync.Mutex
	created map[domain.ParticipantID][]*fakeMedia
}

func newFakeMediaFactory() *fakeMediaFactory {
	return &fakeMediaFactory{created: make(map[domain.ParticipantID][]*fakeMedia)}
}

func (f *fakeMediaFactory) factory() core.MediaFactory {
	return func(id domain.ParticipantID) (core.MediaConnection, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		m := newFakeMedia()
		f.created[id] = append(f.created[id], m)
		return m, nil
	}
}

// latest returns the most recently created connection for id.
func (f *fakeMediaFactory) latest(id domain.ParticipantID) *fakeMedia {
	f.mu.Lock()
	defer f.mu.Unlock()
	ms := f.created[id]
	if len(ms) == 0 {
		return nil
	}
	return ms[len(ms)-1]
}

func (f *fakeMediaFactory) count(id domain.ParticipantID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created[id])
}

// fakeSignal is an in-memory SignalingChannel with scripted readiness.
type fakeSignal struct {
	mu      sync.Mutex
	ready   chan struct{}
	events  chan core.Envelope
	sent    []core.Envelope
	sendErr error
}

func newFakeSignal() *fakeSignal {
	return &fakeSignal{
		ready:  make(chan struct{}),
		events: make(chan core.Envelope, 64),
	}
}

func newReadyFakeSignal() *fakeSignal {
	s := newFakeSignal()
	s.markReady()
	return s
}

func (s *fakeSignal) markReady() { close(s.ready) }

func (s *fakeSignal) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeSignal) Send(env core.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, env)
	return nil
}

func (s *fakeSignal) Events() <-chan core.Envelope { return s.events }

func (s *fakeSignal) Close() {}

func (s *fakeSignal) push(env core.Envelope) { s.events <- env }

func (s *fakeSignal) sentOfType(t core.EventType) []core.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Envelope
	for _, env := range s.sent {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

// fakeSink scripts Play results per call.
type fakeSink struct {
	mu       sync.Mutex
	playErrs []error
	plays    int
	stops    int
}

func (s *fakeSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	if len(s.playErrs) > 0 {
		err := s.playErrs[0]
		s.playErrs = s.playErrs[1:]
		return err
	}
	return nil
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *fakeSink) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

func (s *fakeSink) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// fakeSinkFactory hands out scripted sinks in order, then plain ones.
type fakeSinkFactory struct {
	mu       sync.Mutex
	scripted []*fakeSink
	created  map[domain.ParticipantID][]*fakeSink
}

func newFakeSinkFactory(scripted ...*fakeSink) *fakeSinkFactory {
	return &fakeSinkFactory{
		scripted: scripted,
		created:  make(map[domain.ParticipantID][]*fakeSink),
	}
}

func (f *fakeSinkFactory) factory() core.SinkFactory {
	return func(id domain.ParticipantID, track *webrtc.TrackRemote) (core.AudioSink, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var s *fakeSink
		if len(f.scripted) > 0 {
			s = f.scripted[0]
			f.scripted = f.scripted[1:]
		} else {
			s = &fakeSink{}
		}
		f.created[id] = append(f.created[id], s)
		return s, nil
	}
}

func (f *fakeSinkFactory) sinks(id domain.ParticipantID) []*fakeSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[id]
}
