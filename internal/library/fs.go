package library

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog"
)

var audioExtensions = []string{".mp3", ".flac", ".ogg", ".oga", ".wav"}

// IsAudioFile reports whether the path looks like a playable audio file.
func IsAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(audioExtensions, ext)
}

// FS is a filesystem-backed Library: track ids are file paths and
// metadata comes straight from the file's tags.
type FS struct {
	log      zerolog.Logger
	loudness Loudness
}

var _ Library = (*FS)(nil)

// NewFS creates a filesystem library.
func NewFS(log zerolog.Logger) *FS {
	return &FS{
		log:      log.With().Str("component", "library").Logger(),
		loudness: TagLoudness{},
	}
}

// Resolve reads tags for the file at the given path.
func (l *FS) Resolve(id string) (Track, error) {
	if !IsAudioFile(id) {
		return Track{}, fmt.Errorf("resolve %s: not an audio file", id)
	}
	if _, err := os.Stat(id); err != nil {
		return Track{}, fmt.Errorf("resolve %s: %w", id, err)
	}

	t := Track{
		ID:      id,
		Locator: id,
		Title:   filepath.Base(id),
	}

	f, err := os.Open(id)
	if err != nil {
		return Track{}, fmt.Errorf("resolve %s: %w", id, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		// Untagged files are still playable.
		return t, nil
	}
	if m.Title() != "" {
		t.Title = m.Title()
	}
	t.Artist = m.Artist()
	t.Album = m.Album()
	t.GainDB = l.loudness.GainDB(t)
	return t, nil
}

// OnPlayed bumps play history. The filesystem library keeps no history;
// it only logs the event.
func (l *FS) OnPlayed(id string) {
	l.log.Debug().Str("track", id).Msg("played")
}

// RecommendNextBatch returns audio files from the seed track's directory
// that have not been played yet, in name order ("folder radio").
func (l *FS) RecommendNextBatch(seed Track, exclude []string) []Track {
	dir := filepath.Dir(seed.Locator)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var batch []Track
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !IsAudioFile(path) || slices.Contains(exclude, path) {
			continue
		}
		t, err := l.Resolve(path)
		if err != nil {
			continue
		}
		batch = append(batch, t)
	}
	return batch
}

// TagLoudness reads ReplayGain adjustments from file tags.
type TagLoudness struct{}

var _ Loudness = TagLoudness{}

// GainDB returns the track's REPLAYGAIN_TRACK_GAIN value, or nil if the
// file has none.
func (TagLoudness) GainDB(t Track) *float64 {
	if t.IsRemote() {
		return nil
	}
	f, err := os.Open(t.Locator)
	if err != nil {
		return nil
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}
	for key, val := range m.Raw() {
		if !strings.EqualFold(key, "replaygain_track_gain") {
			continue
		}
		s, ok := val.(string)
		if !ok {
			continue
		}
		if db, ok := ParseGainDB(s); ok {
			return &db
		}
	}
	return nil
}

// ParseGainDB parses a ReplayGain tag value such as "-6.32 dB".
func ParseGainDB(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.ToLower(s), "db")
	s = strings.TrimSpace(s)
	db, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return db, true
}
