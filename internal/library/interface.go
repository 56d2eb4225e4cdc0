package library

// Library is the track catalogue collaborator. The playback core resolves
// track references through it and reports completed plays back to it.
type Library interface {
	// Resolve returns the track reference for an opaque track id.
	Resolve(id string) (Track, error)

	// OnPlayed bumps the play count / history for a track.
	OnPlayed(id string)

	// RecommendNextBatch returns tracks to refill the queue with when it
	// runs low. Tracks whose ids appear in exclude are not returned.
	// May return nil when no recommendations are available.
	RecommendNextBatch(seed Track, exclude []string) []Track
}

// Loudness supplies ReplayGain-style dB adjustments for tracks.
type Loudness interface {
	// GainDB returns the dB adjustment for a track, or nil if unknown.
	GainDB(t Track) *float64
}
