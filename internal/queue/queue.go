// Package queue holds the playback queue: an ordered list of track
// references, the current position, and the repeat/shuffle modes.
// Mutated only by the orchestrator's control goroutine.
package queue

import (
	"math/rand"

	"github.com/llehouerou/segue/internal/library"
)

// RepeatMode defines the repeat behavior.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

// String returns the repeat mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "Off"
	case RepeatAll:
		return "All"
	case RepeatOne:
		return "One"
	default:
		return "Unknown"
	}
}

// Queue is an ordered sequence of tracks with a play position. With
// shuffle enabled, playback follows a permutation of the list while the
// visible order stays untouched.
type Queue struct {
	tracks  []library.Track
	order   []int // playback order over tracks; identity when shuffle off
	pos     int   // position within order; -1 when nothing current
	repeat  RepeatMode
	shuffle bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{pos: -1}
}

// Current returns the current track, or nil if none.
func (q *Queue) Current() *library.Track {
	if q.pos < 0 || q.pos >= len(q.order) {
		return nil
	}
	return &q.tracks[q.order[q.pos]]
}

// CurrentIndex returns the natural index of the current track (-1 if none).
func (q *Queue) CurrentIndex() int {
	if q.pos < 0 || q.pos >= len(q.order) {
		return -1
	}
	return q.order[q.pos]
}

// Len returns the number of tracks.
func (q *Queue) Len() int { return len(q.tracks) }

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool { return len(q.tracks) == 0 }

// Tracks returns all tracks in their visible order.
func (q *Queue) Tracks() []library.Track {
	out := make([]library.Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// Replace clears the queue, adds tracks, and positions on startIndex.
// Returns the track to play, or nil for an empty replacement.
func (q *Queue) Replace(tracks []library.Track, startIndex int) *library.Track {
	q.tracks = make([]library.Track, len(tracks))
	copy(q.tracks, tracks)
	if len(tracks) == 0 {
		q.order = nil
		q.pos = -1
		return nil
	}
	if startIndex < 0 || startIndex >= len(tracks) {
		startIndex = 0
	}
	q.rebuildOrder(startIndex)
	return q.Current()
}

// Append adds tracks to the end of the queue without changing the
// current position. With shuffle on, the new tracks are woven into the
// unplayed part of the permutation.
func (q *Queue) Append(tracks ...library.Track) {
	if len(tracks) == 0 {
		return
	}
	base := len(q.tracks)
	q.tracks = append(q.tracks, tracks...)
	for i := range tracks {
		q.order = append(q.order, base+i)
	}
	if q.shuffle {
		q.shuffleTail()
	}
	if q.pos < 0 {
		q.pos = -1
	}
}

// HasNext returns true if advancing would yield a track.
func (q *Queue) HasNext() bool {
	return q.PeekNext() != nil
}

// PeekNext returns the track that would play after the current one,
// honoring repeat mode, without advancing. Repeat-one peeks the current
// track itself; repeat-all wraps; repeat-off returns nil at the end.
func (q *Queue) PeekNext() *library.Track {
	if q.pos < 0 || len(q.order) == 0 {
		return nil
	}
	if q.repeat == RepeatOne {
		return q.Current()
	}
	if q.pos+1 < len(q.order) {
		return &q.tracks[q.order[q.pos+1]]
	}
	if q.repeat == RepeatAll {
		return &q.tracks[q.order[0]]
	}
	return nil
}

// Advance moves to the next track per repeat mode and returns it.
// Repeat-one stays on the current track; repeat-all wraps; returns nil
// when the queue is exhausted.
func (q *Queue) Advance() *library.Track {
	if q.pos < 0 || len(q.order) == 0 {
		return nil
	}
	if q.repeat == RepeatOne {
		return q.Current()
	}
	if q.pos+1 < len(q.order) {
		q.pos++
		return q.Current()
	}
	if q.repeat == RepeatAll {
		q.pos = 0
		return q.Current()
	}
	return nil
}

// Skip moves to the next track for a manual skip. Unlike Advance,
// repeat-one does not pin the position; any repeat mode wraps at the
// end, repeat-off returns nil there.
func (q *Queue) Skip() *library.Track {
	if q.pos < 0 || len(q.order) == 0 {
		return nil
	}
	if q.pos+1 < len(q.order) {
		q.pos++
		return q.Current()
	}
	if q.repeat != RepeatOff {
		q.pos = 0
		return q.Current()
	}
	return nil
}

// Previous moves to the previous track in play order and returns it.
// Stays on the first track rather than wrapping.
func (q *Queue) Previous() *library.Track {
	if q.pos <= 0 {
		return q.Current()
	}
	q.pos--
	return q.Current()
}

// JumpTo positions on the given natural index and returns its track.
func (q *Queue) JumpTo(index int) *library.Track {
	if index < 0 || index >= len(q.tracks) {
		return nil
	}
	for p, idx := range q.order {
		if idx == index {
			q.pos = p
			return q.Current()
		}
	}
	return nil
}

// RemoveAt removes the track at the given natural index, adjusting the
// play order and position. Returns false if the index is out of bounds.
func (q *Queue) RemoveAt(index int) bool {
	if index < 0 || index >= len(q.tracks) {
		return false
	}
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)

	newOrder := q.order[:0]
	newPos := q.pos
	for p, idx := range q.order {
		switch {
		case idx == index:
			if p < q.pos {
				newPos--
			}
			continue
		case idx > index:
			idx--
		}
		newOrder = append(newOrder, idx)
	}
	q.order = newOrder
	q.pos = newPos
	if q.pos >= len(q.order) {
		q.pos = len(q.order) - 1
	}
	if len(q.order) == 0 {
		q.pos = -1
	}
	return true
}

// Move moves the track at natural index from to natural index to.
func (q *Queue) Move(from, to int) bool {
	if from < 0 || from >= len(q.tracks) || to < 0 || to >= len(q.tracks) {
		return false
	}
	if from == to {
		return true
	}

	track := q.tracks[from]
	q.tracks = append(q.tracks[:from], q.tracks[from+1:]...)
	q.tracks = append(q.tracks[:to], append([]library.Track{track}, q.tracks[to:]...)...)

	// Remap the play order onto the new natural indexes.
	for p, idx := range q.order {
		switch {
		case idx == from:
			q.order[p] = to
		case from < to && idx > from && idx <= to:
			q.order[p] = idx - 1
		case to < from && idx >= to && idx < from:
			q.order[p] = idx + 1
		}
	}
	return true
}

// Repeat returns the repeat mode.
func (q *Queue) Repeat() RepeatMode { return q.repeat }

// SetRepeat sets the repeat mode.
func (q *Queue) SetRepeat(m RepeatMode) { q.repeat = m }

// CycleRepeat cycles off → all → one → off and returns the new mode.
func (q *Queue) CycleRepeat() RepeatMode {
	switch q.repeat {
	case RepeatOff:
		q.repeat = RepeatAll
	case RepeatAll:
		q.repeat = RepeatOne
	case RepeatOne:
		q.repeat = RepeatOff
	}
	return q.repeat
}

// Shuffle reports whether shuffle is enabled.
func (q *Queue) Shuffle() bool { return q.shuffle }

// SetShuffle enables or disables shuffle. Enabling keeps the current
// track and shuffles the rest after it; disabling restores the natural
// order around the current track.
func (q *Queue) SetShuffle(enabled bool) {
	if q.shuffle == enabled {
		return
	}
	q.shuffle = enabled
	cur := q.CurrentIndex()
	if len(q.tracks) == 0 {
		return
	}
	if cur < 0 {
		cur = 0
	}
	if enabled {
		q.rebuildOrder(cur)
		return
	}
	q.order = identityOrder(len(q.tracks))
	q.pos = cur
}

// ToggleShuffle flips shuffle and returns the new state.
func (q *Queue) ToggleShuffle() bool {
	q.SetShuffle(!q.shuffle)
	return q.shuffle
}

// rebuildOrder rebuilds the play order starting on the given natural
// index: identity when shuffle is off, otherwise that track first and
// the rest permuted.
func (q *Queue) rebuildOrder(startIndex int) {
	n := len(q.tracks)
	if !q.shuffle {
		q.order = identityOrder(n)
		q.pos = startIndex
		return
	}
	rest := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != startIndex {
			rest = append(rest, i)
		}
	}
	rand.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	q.order = append([]int{startIndex}, rest...)
	q.pos = 0
}

// shuffleTail permutes the unplayed part of the order.
func (q *Queue) shuffleTail() {
	start := q.pos + 1
	if start < 0 {
		start = 0
	}
	tail := q.order[start:]
	rand.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
