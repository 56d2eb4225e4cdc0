package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/segue/internal/backend"
	"github.com/llehouerou/segue/internal/device"
	"github.com/llehouerou/segue/internal/library"
)

const testRate = 44100

func newTestEngine(t *testing.T, b *backend.MockBackend) *Engine {
	t.Helper()
	reg, err := device.New(b, "", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	e := New(b, reg, 1.0, false, zerolog.Nop())
	t.Cleanup(e.Close)
	return e
}

func testTrack(locator string) library.Track {
	return library.Track{ID: locator, Locator: locator, Title: locator}
}

func activeSink(t *testing.T, b *backend.MockBackend) *backend.MockSink {
	t.Helper()
	sinks := b.Sinks()
	require.NotEmpty(t, sinks, "no sink opened")
	return sinks[len(sinks)-1]
}

func drainEvents(e *Engine) []Event {
	var out []Event
	for {
		select {
		case ev := <-e.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestPlay_StartsAudio(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)

	require.NoError(t, e.Play(testTrack("/a.mp3")))

	sink := activeSink(t, b)
	assert.True(t, sink.Started())

	buf := sink.Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-9, "full composed gain expected")

	cur := e.CurrentTrack()
	require.NotNil(t, cur)
	assert.Equal(t, "/a.mp3", cur.Locator)
}

func TestPlay_OpenFailure(t *testing.T) {
	b := backend.NewMock()
	b.SetOpenError("/bad.mp3", errors.New("corrupt header"))
	e := newTestEngine(t, b)

	err := e.Play(testTrack("/bad.mp3"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpenFailed)
	assert.Nil(t, e.CurrentTrack())
}

func TestPlay_OpenFailureKeepsCurrent(t *testing.T) {
	b := backend.NewMock()
	b.SetOpenError("/bad.mp3", errors.New("corrupt header"))
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))

	err := e.Play(testTrack("/bad.mp3"))

	require.Error(t, err)
	cur := e.CurrentTrack()
	require.NotNil(t, cur)
	assert.Equal(t, "/a.mp3", cur.Locator)
	buf := activeSink(t, b).Pull(10)
	assert.InDelta(t, 0.5, buf[5][0], 1e-9)
}

func TestPlay_NoDevice(t *testing.T) {
	b := backend.NewMock()
	b.SetDevices()
	e := newTestEngine(t, b)

	err := e.Play(testTrack("/a.mp3"))

	assert.ErrorIs(t, err, device.ErrDeviceInitFailed)
}

func TestCrossfade_OverlapSumsToUnity(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)
	sink.Pull(1000)

	require.NoError(t, e.CrossfadeTo(testTrack("/b.mp3"), 100*time.Millisecond))

	// Both sources are constant 0.5; the linear fades are complementary,
	// so the mixed output holds steady through the whole window.
	buf := sink.Pull(2000)
	assert.InDelta(t, 0.5, buf[500][0], 0.01)
	assert.InDelta(t, 0.5, buf[1500][0], 0.01)
}

func TestCrossfade_FadeOutCompletesAndFrees(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	require.NoError(t, e.CrossfadeTo(testTrack("/b.mp3"), 100*time.Millisecond))
	sink.Pull(testRate / 10) // the whole fade window

	events := drainEvents(e)
	require.Equal(t, 1, countKind(events, EventFadeOutDone))
	e.FreeDying()

	// Only the new track is audible afterwards.
	buf := sink.Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-6)
}

func TestCrossfade_RapidTransitionsNeverPile(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	// Two transitions before any audio is pulled: the first demotes the
	// playing track, the second frees that dying handle and kills the
	// barely-started incoming one instead of demoting it.
	require.NoError(t, e.CrossfadeTo(testTrack("/b.mp3"), 100*time.Millisecond))
	require.NoError(t, e.CrossfadeTo(testTrack("/c.mp3"), 100*time.Millisecond))

	sink.Pull(testRate / 10)
	assert.Equal(t, 0, countKind(drainEvents(e), EventFadeOutDone))

	// Only the last target remains, at full gain.
	buf := sink.Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-6)
	cur := e.CurrentTrack()
	require.NotNil(t, cur)
	assert.Equal(t, "/c.mp3", cur.Locator)
}

func TestCrossfade_OpenFailureRestoresCurrent(t *testing.T) {
	b := backend.NewMock()
	b.SetOpenError("/bad.mp3", errors.New("no such file"))
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	err := e.CrossfadeTo(testTrack("/bad.mp3"), 100*time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCrossfadeFailed)
	cur := e.CurrentTrack()
	require.NotNil(t, cur)
	assert.Equal(t, "/a.mp3", cur.Locator)

	// The restored handle ramps back to full gain and still reports its
	// natural end.
	sink.Pull(testRate) // well past the rollback ramp
	buf := sink.Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-6)
}

func TestCrossfade_WithNothingPlaying(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)

	require.NoError(t, e.CrossfadeTo(testTrack("/a.mp3"), 100*time.Millisecond))

	cur := e.CurrentTrack()
	require.NotNil(t, cur)
	assert.Equal(t, "/a.mp3", cur.Locator)

	// Fades in from silence.
	sink := activeSink(t, b)
	buf := sink.Pull(10)
	assert.Less(t, buf[5][0], 0.01)
	sink.Pull(testRate / 10)
	buf = sink.Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-6)
}

func TestTrackEnded_FiresExactlyOnce(t *testing.T) {
	b := backend.NewMock()
	b.SetTrackLength("/a.mp3", 1000)
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	sink.Pull(3000)
	sink.Pull(3000)

	events := drainEvents(e)
	require.Equal(t, 1, countKind(events, EventTrackEnded))
	for _, ev := range events {
		if ev.Kind == EventTrackEnded {
			assert.Equal(t, "/a.mp3", ev.Track.Locator)
		}
	}
}

func TestTrackEnded_DemotedHandleNeverSignals(t *testing.T) {
	b := backend.NewMock()
	b.SetTrackLength("/a.mp3", 1000)
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	// Demote the short track, then pull far past its end.
	require.NoError(t, e.CrossfadeTo(testTrack("/b.mp3"), 100*time.Millisecond))
	sink.Pull(testRate)

	events := drainEvents(e)
	assert.Equal(t, 0, countKind(events, EventTrackEnded),
		"a handle demoted by a crossfade must not report a natural end")
}

func TestPreload_SwitchIsImmediateAndFullGain(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)
	sink.Pull(1000)

	require.NoError(t, e.Preload(testTrack("/b.mp3")))
	pre := e.PreloadedTrack()
	require.NotNil(t, pre)
	assert.Equal(t, "/b.mp3", pre.Locator)

	// Preloading alone changes nothing audible.
	buf := sink.Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-9)

	require.NoError(t, e.SwitchToPreloaded())

	// The very first sample after the switch is already at full gain,
	// and the old handle is gone from the mix.
	buf = sink.Pull(100)
	assert.InDelta(t, 0.5, buf[0][0], 1e-9)
	assert.Nil(t, e.PreloadedTrack())
	cur := e.CurrentTrack()
	require.NotNil(t, cur)
	assert.Equal(t, "/b.mp3", cur.Locator)
}

func TestPreload_SwitchSignalsEndOfNewTrack(t *testing.T) {
	b := backend.NewMock()
	b.SetTrackLength("/b.mp3", 500)
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	require.NoError(t, e.Preload(testTrack("/b.mp3")))
	require.NoError(t, e.SwitchToPreloaded())
	sink.Pull(2000)

	events := drainEvents(e)
	require.Equal(t, 1, countKind(events, EventTrackEnded))
	assert.Equal(t, "/b.mp3", events[len(events)-1].Track.Locator)
}

func TestSwitchToPreloaded_NoPreload(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))

	err := e.SwitchToPreloaded()

	assert.ErrorIs(t, err, ErrNoPreloadedHandle)
}

func TestPreload_ReplacesPrevious(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))

	require.NoError(t, e.Preload(testTrack("/b.mp3")))
	require.NoError(t, e.Preload(testTrack("/c.mp3")))

	pre := e.PreloadedTrack()
	require.NotNil(t, pre)
	assert.Equal(t, "/c.mp3", pre.Locator)

	e.ClearPreload()
	assert.Nil(t, e.PreloadedTrack())
}

func TestMigrateTo_BindsBeforeFreeing(t *testing.T) {
	dac := backend.Device{ID: "1", Name: "USB DAC", UID: "mock/USB DAC", SampleRate: testRate, Channels: 2}
	b := backend.NewMock()
	devs, err := b.Devices()
	require.NoError(t, err)
	b.SetDevices(devs[0], dac)

	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	old := activeSink(t, b)

	require.NoError(t, e.MigrateTo(dac))

	sinks := b.Sinks()
	require.Len(t, sinks, 2)
	assert.True(t, old.Closed(), "old sink must be torn down after the hand-off")
	assert.True(t, sinks[1].Started())
	assert.Equal(t, "USB DAC", sinks[1].Device().Name)

	// Playback continues uninterrupted on the new sink.
	buf := sinks[1].Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-9)
}

func TestMigrateTo_FailureKeepsOldSink(t *testing.T) {
	dac := backend.Device{ID: "1", Name: "USB DAC", UID: "mock/USB DAC", SampleRate: testRate, Channels: 2}
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	old := activeSink(t, b)

	b.SetSinkError(errors.New("device busy"))
	err := e.MigrateTo(dac)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceMigrationFailed)
	assert.False(t, old.Closed())
	buf := old.Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-9)
}

func TestPauseResume(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	e.Pause()
	assert.True(t, e.Paused())
	buf := sink.Pull(100)
	assert.InDelta(t, 0, buf[50][0], 1e-9)

	e.Resume()
	assert.False(t, e.Paused())
	buf = sink.Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-9)
}

func TestSeek_PastEndDrains(t *testing.T) {
	b := backend.NewMock()
	b.SetTrackLength("/a.mp3", testRate) // one second
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	require.NoError(t, e.Seek(10*time.Second)) // clamped to the end
	sink.Pull(1000)

	assert.Equal(t, 1, countKind(drainEvents(e), EventTrackEnded))
}

func TestSeek_NothingPlaying(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)

	assert.ErrorIs(t, e.Seek(time.Second), ErrNothingPlaying)
}

func TestVolume_ScalesOutput(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	e.SetUserVolume(0.5)

	buf := sink.Pull(100)
	assert.InDelta(t, 0.25, buf[50][0], 1e-9)
	assert.InDelta(t, 0.5, e.UserVolume(), 1e-9)
}

func TestMute_PreservesGain(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	e.SetMuted(true)
	assert.True(t, e.Muted())
	buf := sink.Pull(100)
	assert.InDelta(t, 0, buf[50][0], 1e-9)

	e.SetMuted(false)
	buf = sink.Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-9, "unmuting restores the prior gain")
}

func TestReplayGain_AppliesTrackCorrection(t *testing.T) {
	b := backend.NewMock()
	reg, err := device.New(b, "", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	e := New(b, reg, 1.0, true, zerolog.Nop())
	t.Cleanup(e.Close)

	gain := -6.0
	track := testTrack("/a.mp3")
	track.GainDB = &gain
	require.NoError(t, e.Play(track))

	want := 0.5 * math.Pow(10, gain/20)
	buf := activeSink(t, b).Pull(100)
	assert.InDelta(t, want, buf[50][0], 1e-6)
}

func TestStop_ReleasesSinkAndHandles(t *testing.T) {
	b := backend.NewMock()
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	require.NoError(t, e.Preload(testTrack("/b.mp3")))
	sink := activeSink(t, b)

	e.Stop()

	assert.True(t, sink.Closed())
	assert.Nil(t, e.CurrentTrack())
	assert.Nil(t, e.PreloadedTrack())

	// A fresh sink binds on the next play.
	require.NoError(t, e.Play(testTrack("/c.mp3")))
	require.Len(t, b.Sinks(), 2)
	assert.True(t, b.Sinks()[1].Started())
}

func TestRestartCurrent_ReplaysFromStart(t *testing.T) {
	b := backend.NewMock()
	b.SetTrackLength("/a.mp3", 1000)
	e := newTestEngine(t, b)
	require.NoError(t, e.Play(testTrack("/a.mp3")))
	sink := activeSink(t, b)

	sink.Pull(2000)
	require.Equal(t, 1, countKind(drainEvents(e), EventTrackEnded))

	require.NoError(t, e.RestartCurrent())

	buf := sink.Pull(100)
	assert.InDelta(t, 0.5, buf[50][0], 1e-9)

	// The natural end fires again on the next drain.
	sink.Pull(2000)
	assert.Equal(t, 1, countKind(drainEvents(e), EventTrackEnded))
}
