package engine

import (
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/llehouerou/segue/internal/backend"
	"github.com/llehouerou/segue/internal/library"
)

// HandleState tracks a stream handle through its lifecycle. Transitions
// only move forward except playing/paused, which toggle.
type HandleState int

const (
	// HandleCreated: decoded and chained up, not yet in the mixer.
	HandleCreated HandleState = iota
	// HandlePlaying: in the mixer, producing audio.
	HandlePlaying
	// HandlePaused: in the mixer, output suspended.
	HandlePaused
	// HandleFading: demoted during a crossfade, ramping to silence.
	HandleFading
	// HandleFreed: closed; the handle must not be used again.
	HandleFreed
)

func (s HandleState) String() string {
	switch s {
	case HandleCreated:
		return "created"
	case HandlePlaying:
		return "playing"
	case HandlePaused:
		return "paused"
	case HandleFading:
		return "fading"
	case HandleFreed:
		return "freed"
	default:
		return "unknown"
	}
}

// Handle is one decoded stream wired into the playback chain:
//
//	decoder -> resample -> ctrl (pause) -> volume (mute) -> ramp (gain, fades) -> gate (end detection)
//
// The gate is what goes into the mixer. Handles are mutated only by the
// engine; the ramp and gate carry their own locks for the audio
// goroutine's sake.
type Handle struct {
	track    library.Track
	streamer beep.StreamSeekCloser
	format   beep.Format
	kind     backend.SampleKind

	ctrl *beep.Ctrl
	vol  *effects.Volume
	ramp *gainRamp
	gate *gate

	state HandleState
}

// Track returns the track this handle plays.
func (h *Handle) Track() library.Track { return h.track }

// State returns the handle's lifecycle state.
func (h *Handle) State() HandleState { return h.state }

// Gain returns the handle's current composed gain.
func (h *Handle) Gain() float64 { return h.ramp.Gain() }

// Position returns the playback position in the source stream.
func (h *Handle) Position() time.Duration {
	return h.format.SampleRate.D(h.streamer.Position())
}

// Duration returns the source stream's total duration.
func (h *Handle) Duration() time.Duration {
	return h.format.SampleRate.D(h.streamer.Len())
}
