package library

import "time"

// Track is a read-only reference to a playable track. The playback core
// never mutates it; it only reads the fields needed to open a stream.
type Track struct {
	ID      string // opaque identifier (for local files, the path)
	Locator string // local path or http(s) URL
	Title   string
	Artist  string
	Album   string

	// Duration is the nominal duration as reported by the library.
	// The engine recomputes the real duration from the decoded stream.
	Duration time.Duration

	// GainDB is an optional ReplayGain adjustment in decibels.
	GainDB *float64
}

// IsRemote reports whether the track's source is a remote URL.
func (t Track) IsRemote() bool {
	return len(t.Locator) > 7 &&
		(t.Locator[:7] == "http://" || (len(t.Locator) > 8 && t.Locator[:8] == "https://"))
}
