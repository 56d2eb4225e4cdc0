package backend

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// PortAudio implements Backend on top of the PortAudio host.
type PortAudio struct {
	log zerolog.Logger

	mu     sync.Mutex
	closed bool
}

var _ Backend = (*PortAudio)(nil)

// NewPortAudio initializes the PortAudio host.
func NewPortAudio(log zerolog.Logger) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudio{log: log.With().Str("component", "portaudio").Logger()}, nil
}

// Open decodes a local file or spools and decodes a remote URL.
func (p *PortAudio) Open(locator string) (beep.StreamSeekCloser, beep.Format, SampleKind, error) {
	path := locator
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		spooled, err := Spool(locator)
		if err != nil {
			return nil, beep.Format{}, SampleInteger, err
		}
		path = spooled
	}
	return Decode(path)
}

func (p *PortAudio) Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultOutputDevice()

	var devices []Device
	for _, info := range infos {
		if info.MaxOutputChannels <= 0 {
			continue
		}
		devices = append(devices, deviceFromInfo(info, info == def))
	}
	return devices, nil
}

func (p *PortAudio) DefaultDevice() (Device, error) {
	info, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return Device{}, fmt.Errorf("%w: %v", ErrNoDevices, err)
	}
	return deviceFromInfo(info, true), nil
}

// SetDefaultDevice is not supported: PortAudio cannot change the host's
// default output.
func (p *PortAudio) SetDefaultDevice(Device) error {
	return ErrNotSupported
}

func (p *PortAudio) OpenSink(dev Device, exclusive bool) (Sink, error) {
	info, err := p.findInfo(dev)
	if err != nil {
		return nil, err
	}

	if exclusive && !hostSupportsExclusive(info.HostApi.Type) {
		return nil, ErrExclusiveUnsupported
	}

	sampleRate := dev.SampleRate
	if sampleRate <= 0 {
		sampleRate = int(info.DefaultSampleRate)
	}

	s := &paSink{
		dev:        dev,
		exclusive:  exclusive,
		sampleRate: beep.SampleRate(sampleRate),
	}

	params := portaudio.LowLatencyParameters(nil, info)
	params.Output.Channels = 2
	params.SampleRate = float64(sampleRate)

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return nil, fmt.Errorf("open stream on %s: %w", dev.Name, err)
	}
	s.stream = stream

	p.log.Debug().
		Str("device", dev.Name).
		Int("rate", sampleRate).
		Bool("exclusive", exclusive).
		Msg("sink opened")
	return s, nil
}

func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return portaudio.Terminate()
}

// findInfo maps a Device descriptor back to PortAudio's enumeration,
// by unique id first, then by the name-matching rule.
func (p *PortAudio) findInfo(dev Device) (*portaudio.DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var outputs []*portaudio.DeviceInfo
	for _, info := range infos {
		if info.MaxOutputChannels <= 0 {
			continue
		}
		if deviceUID(info) == dev.UID {
			return info, nil
		}
		outputs = append(outputs, info)
	}

	names := make([]string, len(outputs))
	for i, info := range outputs {
		names[i] = info.Name
	}
	if i, ok := MatchName(dev.Name, names); ok {
		return outputs[i], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, dev.Name)
}

// MatchName resolves a device name against a list of candidate names:
// exact match first, then substring containment in either direction.
// Device names are not guaranteed to be reported identically by every
// subsystem. First match wins.
func MatchName(name string, candidates []string) (int, bool) {
	for i, c := range candidates {
		if c == name {
			return i, true
		}
	}
	for i, c := range candidates {
		if strings.Contains(c, name) || strings.Contains(name, c) {
			return i, true
		}
	}
	return 0, false
}

func hostSupportsExclusive(t portaudio.HostApiType) bool {
	switch t {
	case portaudio.CoreAudio, portaudio.WASAPI, portaudio.ASIO:
		return true
	default:
		return false
	}
}

func deviceFromInfo(info *portaudio.DeviceInfo, isDefault bool) Device {
	return Device{
		ID:         fmt.Sprintf("%d", info.Index),
		Name:       info.Name,
		UID:        deviceUID(info),
		SampleRate: int(info.DefaultSampleRate),
		Channels:   info.MaxOutputChannels,
		Default:    isDefault,
	}
}

func deviceUID(info *portaudio.DeviceInfo) string {
	return info.HostApi.Name + "/" + info.Name
}

// paSink is a PortAudio output stream pulling from a beep streamer.
type paSink struct {
	mu         sync.Mutex
	dev        Device
	exclusive  bool
	sampleRate beep.SampleRate
	source     beep.Streamer
	buf        [][2]float64
	stream     *portaudio.Stream
	started    bool
}

var _ Sink = (*paSink)(nil)

func (s *paSink) Device() Device              { return s.dev }
func (s *paSink) Exclusive() bool             { return s.exclusive }
func (s *paSink) SampleRate() beep.SampleRate { return s.sampleRate }

func (s *paSink) SetSource(src beep.Streamer) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

func (s *paSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *paSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	return s.stream.Stop()
}

func (s *paSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}

func (s *paSink) Lock()   { s.mu.Lock() }
func (s *paSink) Unlock() { s.mu.Unlock() }

// callback runs on the real-time audio thread. It pulls from the source
// under the sink lock and interleaves float32 stereo output.
func (s *paSink) callback(out []float32) {
	frames := len(out) / 2

	s.mu.Lock()
	if len(s.buf) < frames {
		s.buf = make([][2]float64, frames)
	}
	buf := s.buf[:frames]

	n := 0
	if s.source != nil {
		n, _ = s.source.Stream(buf)
	}
	s.mu.Unlock()

	for i := 0; i < n; i++ {
		out[i*2] = clampSample(buf[i][0])
		out[i*2+1] = clampSample(buf[i][1])
	}
	for i := n * 2; i < len(out); i++ {
		out[i] = 0
	}
}

func clampSample(v float64) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return float32(v)
}
