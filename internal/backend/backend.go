// Package backend wraps the native audio layer: codec decode on one side,
// per-device output sinks on the other. Everything above it deals in
// beep streamers and Device descriptors only.
package backend

import (
	"errors"

	"github.com/gopxl/beep/v2"
)

var (
	ErrDeviceNotFound       = errors.New("audio device not found")
	ErrNoDevices            = errors.New("no audio output devices available")
	ErrUnsupportedFormat    = errors.New("unsupported audio format")
	ErrExclusiveUnsupported = errors.New("exclusive access not supported on this host")
	ErrNotSupported         = errors.New("operation not supported by backend")
)

// Device describes one audio output device.
type Device struct {
	ID         string // backend-specific identifier
	Name       string // display name as reported by the host
	UID        string // unique id, stable across enumerations
	SampleRate int    // nominal sample rate
	Channels   int    // output channel count
	Default    bool   // host's current default output device
}

// SampleKind is the decode mode of a stream: integer or floating-point
// source samples. The output pipeline always mixes float64 regardless.
type SampleKind int

const (
	SampleInteger SampleKind = iota
	SampleFloat
)

func (k SampleKind) String() string {
	if k == SampleFloat {
		return "float"
	}
	return "integer"
}

// Backend is the native audio host: decode, device enumeration, and sink
// creation.
type Backend interface {
	// Open resolves a source locator (local path or http(s) URL) to a
	// decoded sample stream. Remote sources are spooled to disk first;
	// Open may block on network I/O and is never called from the
	// control goroutine for remote locators.
	Open(locator string) (beep.StreamSeekCloser, beep.Format, SampleKind, error)

	// Devices returns all enabled output devices. Devices with zero
	// output channels are excluded.
	Devices() ([]Device, error)

	// DefaultDevice returns the host's default output device.
	DefaultDevice() (Device, error)

	// SetDefaultDevice pushes a device choice to the host default.
	// Backends without that capability return ErrNotSupported.
	SetDefaultDevice(dev Device) error

	// OpenSink opens an output stream bound to the given device.
	// With exclusive set, the backend claims sole ownership of the
	// device; hosts that cannot honor it return ErrExclusiveUnsupported.
	OpenSink(dev Device, exclusive bool) (Sink, error)

	// Close releases the backend.
	Close() error
}

// Sink is a running output stream bound to exactly one device. It pulls
// samples from a source streamer on the host's real-time thread; callers
// must hold the sink lock while mutating any streamer reachable from the
// source.
type Sink interface {
	Device() Device
	Exclusive() bool
	SampleRate() beep.SampleRate

	// SetSource swaps the streamer the sink pulls from. A nil source
	// plays silence.
	SetSource(s beep.Streamer)

	Start() error
	Stop() error
	Close() error

	// Lock/Unlock guard the streamer graph against the audio callback,
	// in the manner of beep's speaker.Lock.
	Lock()
	Unlock()
}
