package playback

// State represents the orchestrator's playback state.
type State int

const (
	StateStopped State = iota
	// StateLoading: a stream is being resolved (remote spool in flight).
	StateLoading
	StatePlaying
	StatePaused
	// StateTransitioning: a crossfade is running; the outgoing handle is
	// still audible alongside the incoming one.
	StateTransitioning
	// StateEndOfQueue: the last track finished naturally and playback
	// halted without clearing the queue.
	StateEndOfQueue
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateTransitioning:
		return "Transitioning"
	case StateEndOfQueue:
		return "EndOfQueue"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a stream handle is live (audible or paused).
func (s State) IsActive() bool {
	switch s {
	case StateLoading, StatePlaying, StatePaused, StateTransitioning:
		return true
	default:
		return false
	}
}
