package playback

import (
	"time"

	"github.com/llehouerou/segue/internal/backend"
	"github.com/llehouerou/segue/internal/library"
	"github.com/llehouerou/segue/internal/queue"
)

// Service defines the playback service contract. All methods are safe
// for concurrent use; they marshal onto the orchestrator's control
// goroutine.
type Service interface {
	// Playback control
	Play() error
	PlayTracks(tracks []library.Track, startIndex int) error
	Pause() error
	Toggle() error
	Stop() error
	Next() error
	Previous() error
	Seek(delta time.Duration) error
	SeekTo(position time.Duration) error
	JumpTo(index int) error

	// Queue manipulation
	AddTracks(tracks ...library.Track)
	RemoveTrack(index int) error
	MoveTrack(from, to int) error
	ClearQueue()

	// State queries
	State() State
	Position() time.Duration
	Duration() time.Duration
	CurrentTrack() *library.Track
	QueueTracks() []library.Track
	QueueCurrentIndex() int
	QueueLen() int

	// Volume
	Volume() float64
	SetVolume(v float64) error
	Muted() bool
	ToggleMute() bool

	// Mode control
	RepeatMode() queue.RepeatMode
	SetRepeatMode(m queue.RepeatMode)
	CycleRepeatMode() queue.RepeatMode
	Shuffle() bool
	ToggleShuffle() bool

	// Output devices
	Devices() []backend.Device
	CurrentDevice() (backend.Device, bool)
	SelectDevice(id string) error
	SetExclusiveAccess(enabled bool) error
	ExclusiveAccess() bool

	// Session persistence
	Snapshot() Snapshot
	Restore(snap Snapshot) error

	// Event subscription
	Subscribe() *Subscription

	// Lifecycle
	Close() error
}

// Snapshot captures everything needed to resume a session: the queue,
// the position within it, and the listening modes. Restoring never
// starts playback.
type Snapshot struct {
	Tracks   []library.Track
	Index    int
	Position time.Duration
	Repeat   queue.RepeatMode
	Shuffle  bool
	Volume   float64
	Muted    bool
}
