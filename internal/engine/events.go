package engine

import "github.com/llehouerou/segue/internal/library"

// EventKind identifies an engine notification.
type EventKind int

const (
	// EventTrackEnded fires exactly once when the current handle's
	// stream runs dry naturally. Handles demoted by a crossfade never
	// fire it.
	EventTrackEnded EventKind = iota
	// EventFadeOutDone fires when a dying handle's fade-out completes
	// and the handle can be freed.
	EventFadeOutDone
)

// Event is posted on the engine's event channel from the audio
// goroutine. The channel is buffered and sends never block.
type Event struct {
	Kind  EventKind
	Track library.Track // set for EventTrackEnded
}
