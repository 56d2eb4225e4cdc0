package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/llehouerou/segue/internal/library"
	"github.com/llehouerou/segue/internal/playback"
	"github.com/llehouerou/segue/internal/queue"
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := OpenAt(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func sampleSnapshot() playback.Snapshot {
	gain := -7.25
	return playback.Snapshot{
		Tracks: []library.Track{
			{ID: "t1", Locator: "/music/a.flac", Title: "One", Artist: "Ada", Album: "First", Duration: 3 * time.Minute, GainDB: &gain},
			{ID: "t2", Locator: "https://cdn.example/b.mp3", Title: "Two"},
		},
		Index:    1,
		Position: 42 * time.Second,
		Repeat:   queue.RepeatAll,
		Shuffle:  true,
		Volume:   0.65,
		Muted:    true,
	}
}

func TestGetSession_FreshDatabase(t *testing.T) {
	m := openTestManager(t)

	snap, err := m.GetSession()
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if snap.Index != -1 {
		t.Errorf("Index = %d, want -1", snap.Index)
	}
	if len(snap.Tracks) != 0 {
		t.Errorf("Tracks = %d, want 0", len(snap.Tracks))
	}
	if snap.Volume != 1.0 {
		t.Errorf("Volume = %v, want 1.0", snap.Volume)
	}
}

func TestSession_RoundTrip(t *testing.T) {
	m := openTestManager(t)
	want := sampleSnapshot()

	if err := saveSession(m.db, want); err != nil {
		t.Fatalf("saveSession: %v", err)
	}

	got, err := m.GetSession()
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	if got.Index != want.Index {
		t.Errorf("Index = %d, want %d", got.Index, want.Index)
	}
	if got.Position != want.Position {
		t.Errorf("Position = %v, want %v", got.Position, want.Position)
	}
	if got.Repeat != want.Repeat {
		t.Errorf("Repeat = %v, want %v", got.Repeat, want.Repeat)
	}
	if !got.Shuffle || !got.Muted {
		t.Error("Shuffle and Muted should round-trip as true")
	}
	if got.Volume != want.Volume {
		t.Errorf("Volume = %v, want %v", got.Volume, want.Volume)
	}
	if len(got.Tracks) != 2 {
		t.Fatalf("Tracks = %d, want 2", len(got.Tracks))
	}
	first := got.Tracks[0]
	if first.ID != "t1" || first.Locator != "/music/a.flac" || first.Artist != "Ada" {
		t.Errorf("first track = %+v", first)
	}
	if first.Duration != 3*time.Minute {
		t.Errorf("Duration = %v, want 3m", first.Duration)
	}
	if first.GainDB == nil || *first.GainDB != -7.25 {
		t.Errorf("GainDB = %v, want -7.25", first.GainDB)
	}
	if got.Tracks[1].GainDB != nil {
		t.Error("second track GainDB should be nil")
	}
}

func TestSession_SaveReplacesPrevious(t *testing.T) {
	m := openTestManager(t)

	if err := saveSession(m.db, sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	replacement := playback.Snapshot{
		Tracks: []library.Track{{ID: "t9", Locator: "/music/z.mp3", Title: "Nine"}},
		Index:  0,
		Volume: 1.0,
	}
	if err := saveSession(m.db, replacement); err != nil {
		t.Fatal(err)
	}

	got, err := m.GetSession()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tracks) != 1 || got.Tracks[0].ID != "t9" {
		t.Errorf("Tracks = %+v, want just t9", got.Tracks)
	}
}

func TestSaveSession_FlushedOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	m, err := OpenAt(path)
	if err != nil {
		t.Fatal(err)
	}

	// Debounced save is still pending when Close runs.
	m.SaveSession(sampleSnapshot())
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := OpenAt(path)
	if err != nil {
		t.Fatal(err)
	}
	defer m2.Close()
	got, err := m2.GetSession()
	if err != nil {
		t.Fatal(err)
	}
	if got.Index != 1 || len(got.Tracks) != 2 {
		t.Errorf("session not flushed: index=%d tracks=%d", got.Index, len(got.Tracks))
	}
}
