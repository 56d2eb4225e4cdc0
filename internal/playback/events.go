package playback

import (
	"time"

	"github.com/llehouerou/segue/internal/backend"
	"github.com/llehouerou/segue/internal/library"
	"github.com/llehouerou/segue/internal/queue"
)

// StateChange is emitted when playback state changes.
type StateChange struct {
	Previous State
	Current  State
}

// TrackChange is emitted when playback starts on a different track.
//
// Rapid skips are debounced before reaching the engine, so a burst of
// next/previous requests produces a single TrackChange for the track
// that actually starts. Queue navigation without playback never emits.
type TrackChange struct {
	Previous      *library.Track
	Current       *library.Track
	PreviousIndex int
	Index         int
}

// QueueChange is emitted when the queue contents change.
type QueueChange struct {
	Tracks []library.Track
	Index  int
}

// ModeChange is emitted when repeat or shuffle mode changes.
type ModeChange struct {
	RepeatMode queue.RepeatMode
	Shuffle    bool
}

// PositionChange is emitted on seeks and on the periodic position poll
// while playing.
type PositionChange struct {
	Position time.Duration
	Duration time.Duration
}

// VolumeChange is emitted when the user volume or mute state changes.
type VolumeChange struct {
	Volume float64
	Muted  bool
}

// DeviceChange is emitted when output moves to another device or the
// exclusive-access mode changes.
type DeviceChange struct {
	Device    backend.Device
	Exclusive bool
}

// ErrorEvent is emitted when an operation fails inside the control
// loop, where no caller is waiting on a return value.
type ErrorEvent struct {
	Operation string // e.g. "play", "crossfade", "migrate"
	Track     string // track locator if applicable
	Err       error
}
