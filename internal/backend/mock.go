package backend

import (
	"fmt"
	"sync"

	"github.com/gopxl/beep/v2"
)

// MockBackend is a test double for Backend. Tracks are registered with
// synthetic lengths; sinks record lifecycle calls and let tests drive
// the audio pull by hand.
type MockBackend struct {
	mu sync.Mutex

	devices     []Device
	openErrs    map[string]error
	trackLens   map[string]int // locator -> stream length in samples
	opens       []string
	sampleRate  beep.SampleRate
	sinks       []*MockSink
	sinkErr     error
	defaultCall []Device
	closed      bool
}

var _ Backend = (*MockBackend)(nil)

// NewMock creates a mock backend with a single default device.
func NewMock() *MockBackend {
	return &MockBackend{
		devices: []Device{
			{ID: "0", Name: "Mock Output", UID: "mock/Mock Output", SampleRate: 44100, Channels: 2, Default: true},
		},
		openErrs:   make(map[string]error),
		trackLens:  make(map[string]int),
		sampleRate: 44100,
	}
}

func (m *MockBackend) Open(locator string) (beep.StreamSeekCloser, beep.Format, SampleKind, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens = append(m.opens, locator)
	if err := m.openErrs[locator]; err != nil {
		return nil, beep.Format{}, SampleInteger, err
	}
	length, ok := m.trackLens[locator]
	if !ok {
		length = int(m.sampleRate) * 10 // 10s default
	}
	format := beep.Format{SampleRate: m.sampleRate, NumChannels: 2, Precision: 2}
	return &MockStream{length: length}, format, SampleInteger, nil
}

func (m *MockBackend) Devices() ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Device, len(m.devices))
	copy(out, m.devices)
	return out, nil
}

func (m *MockBackend) DefaultDevice() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.devices {
		if d.Default {
			return d, nil
		}
	}
	if len(m.devices) > 0 {
		return m.devices[0], nil
	}
	return Device{}, ErrNoDevices
}

func (m *MockBackend) SetDefaultDevice(dev Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultCall = append(m.defaultCall, dev)
	for i := range m.devices {
		m.devices[i].Default = m.devices[i].UID == dev.UID
	}
	return nil
}

func (m *MockBackend) OpenSink(dev Device, exclusive bool) (Sink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sinkErr != nil {
		return nil, m.sinkErr
	}
	found := false
	for _, d := range m.devices {
		if d.UID == dev.UID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, dev.Name)
	}
	s := &MockSink{dev: dev, exclusive: exclusive, sampleRate: m.sampleRate}
	m.sinks = append(m.sinks, s)
	return s, nil
}

func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helpers

func (m *MockBackend) SetDevices(devices ...Device) {
	m.mu.Lock()
	m.devices = devices
	m.mu.Unlock()
}

func (m *MockBackend) SetOpenError(locator string, err error) {
	m.mu.Lock()
	m.openErrs[locator] = err
	m.mu.Unlock()
}

func (m *MockBackend) SetTrackLength(locator string, samples int) {
	m.mu.Lock()
	m.trackLens[locator] = samples
	m.mu.Unlock()
}

func (m *MockBackend) SetSinkError(err error) {
	m.mu.Lock()
	m.sinkErr = err
	m.mu.Unlock()
}

// Opens returns every locator passed to Open, in order.
func (m *MockBackend) Opens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.opens))
	copy(out, m.opens)
	return out
}

// Sinks returns every sink opened so far, in order.
func (m *MockBackend) Sinks() []*MockSink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockSink, len(m.sinks))
	copy(out, m.sinks)
	return out
}

// MockSink records sink lifecycle calls and exposes Pull to simulate the
// audio callback.
type MockSink struct {
	mu         sync.Mutex
	dev        Device
	exclusive  bool
	sampleRate beep.SampleRate
	source     beep.Streamer
	started    bool
	stopped    bool
	closed     bool
}

var _ Sink = (*MockSink)(nil)

func (s *MockSink) Device() Device              { return s.dev }
func (s *MockSink) Exclusive() bool             { return s.exclusive }
func (s *MockSink) SampleRate() beep.SampleRate { return s.sampleRate }

func (s *MockSink) SetSource(src beep.Streamer) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

func (s *MockSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sink closed")
	}
	s.started = true
	s.stopped = false
	return nil
}

func (s *MockSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MockSink) Lock()   { s.mu.Lock() }
func (s *MockSink) Unlock() { s.mu.Unlock() }

// Pull simulates the audio callback reading n samples from the source.
// It returns the pulled samples for inspection.
func (s *MockSink) Pull(n int) [][2]float64 {
	buf := make([][2]float64, n)
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src == nil {
		return buf
	}
	s.mu.Lock()
	src.Stream(buf)
	s.mu.Unlock()
	return buf
}

func (s *MockSink) Started() bool { return s.startedState() }

func (s *MockSink) startedState() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.stopped && !s.closed
}

func (s *MockSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MockStream is a seekable synthetic stream of constant 0.5 samples.
type MockStream struct {
	length int
	pos    int
	closed bool
}

// NewMockStream creates a stream of the given length in samples.
func NewMockStream(length int) *MockStream {
	return &MockStream{length: length}
}

var _ beep.StreamSeekCloser = (*MockStream)(nil)

func (m *MockStream) Stream(samples [][2]float64) (n int, ok bool) {
	if m.closed || m.pos >= m.length {
		return 0, false
	}
	for i := range samples {
		if m.pos >= m.length {
			break
		}
		samples[i] = [2]float64{0.5, 0.5}
		m.pos++
		n++
	}
	return n, n > 0
}

func (m *MockStream) Err() error    { return nil }
func (m *MockStream) Len() int      { return m.length }
func (m *MockStream) Position() int { return m.pos }

func (m *MockStream) Seek(p int) error {
	if p < 0 || p > m.length {
		return fmt.Errorf("seek out of range: %d", p)
	}
	m.pos = p
	return nil
}

func (m *MockStream) Close() error {
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *MockStream) IsClosed() bool { return m.closed }
