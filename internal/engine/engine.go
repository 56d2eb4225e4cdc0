// Package engine owns the stream handles and the transitions between
// them: crossfade, gapless switch, and device migration. At most one
// handle is audible at full gain at any time; during a crossfade a
// second, dying handle rides its fade-out alongside.
//
// All exported methods must be called from a single goroutine (the
// orchestrator's control loop). The engine synchronizes with the audio
// callback through the sink lock and the streamers' own locks.
package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/rs/zerolog"

	"github.com/llehouerou/segue/internal/backend"
	"github.com/llehouerou/segue/internal/device"
	"github.com/llehouerou/segue/internal/library"
)

var (
	ErrOpenFailed            = errors.New("could not open audio stream")
	ErrCrossfadeFailed       = errors.New("crossfade transition failed")
	ErrDeviceMigrationFailed = errors.New("output device migration failed")
	ErrNoPreloadedHandle     = errors.New("no preloaded stream handle")
	ErrNothingPlaying        = errors.New("nothing is playing")
)

const (
	// A handle already this quiet is freed outright instead of being
	// demoted for a second fade-out.
	nearSilenceGain = 0.1

	// Ramp used when a failed crossfade hands playback back to the
	// handle it had just demoted.
	rollbackRamp = 250 * time.Millisecond

	resampleQuality = 4
)

// Engine drives up to three stream handles: the current one, a dying
// one fading out, and a preloaded one waiting for a gapless switch.
type Engine struct {
	log      zerolog.Logger
	backend  backend.Backend
	registry *device.Registry

	sink  backend.Sink
	mixer *beep.Mixer

	current   *Handle
	dying     *Handle
	preloaded *Handle

	userVolume float64
	muted      bool
	replayGain bool

	events chan Event
}

// New creates an engine. No device is claimed until the first stream
// opens.
func New(b backend.Backend, registry *device.Registry, volume float64, replayGain bool, log zerolog.Logger) *Engine {
	return &Engine{
		log:        log.With().Str("component", "engine").Logger(),
		backend:    b,
		registry:   registry,
		userVolume: clampVolume(volume),
		replayGain: replayGain,
		events:     make(chan Event, 32),
	}
}

// Events returns the engine's notification channel.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Play opens the track and makes it the current handle, replacing
// whatever was playing with no fade.
func (e *Engine) Play(track library.Track) error {
	h, err := e.open(track)
	if err != nil {
		return err
	}
	e.FreeDying()
	if e.current != nil {
		e.free(e.current)
		e.current = nil
	}
	e.attachEnd(h)
	h.state = HandlePlaying
	e.current = h
	e.withSink(func() { e.mixer.Add(h.gate) })
	e.log.Info().Str("track", track.Title).Msg("playing")
	return nil
}

// CrossfadeTo transitions to the given track: the current handle is
// demoted and fades to silence while the new one fades in over the same
// window. Any handle still dying from an earlier transition is freed
// first, and a current handle already near silence is freed instead of
// demoted, so rapid transitions never pile up streams.
//
// If the new track cannot be opened the demotion is rolled back, the
// old handle keeps playing, and ErrCrossfadeFailed is returned.
func (e *Engine) CrossfadeTo(track library.Track, fade time.Duration) error {
	if err := e.ensureSink(); err != nil {
		return err
	}

	e.FreeDying()

	var demoted *Handle
	if e.current != nil {
		if e.current.Gain() < nearSilenceGain {
			e.free(e.current)
		} else {
			demoted = e.current
			demoted.gate.SetOnDrained(nil)
			demoted.state = HandleFading
			demoted.ramp.RampTo(0, e.sink.SampleRate().N(fade), func() {
				e.post(Event{Kind: EventFadeOutDone})
			})
			e.dying = demoted
		}
		e.current = nil
	}

	h, err := e.open(track)
	if err != nil {
		if demoted != nil {
			e.dying = nil
			demoted.state = HandlePlaying
			demoted.ramp.RampTo(e.composedGain(demoted.track), e.sink.SampleRate().N(rollbackRamp), nil)
			e.attachEnd(demoted)
			e.current = demoted
			e.log.Warn().Str("track", track.Title).Err(err).Msg("crossfade failed, previous track restored")
		}
		return fmt.Errorf("%w: %v", ErrCrossfadeFailed, err)
	}

	h.ramp.Set(0)
	e.attachEnd(h)
	h.state = HandlePlaying
	e.current = h
	e.withSink(func() { e.mixer.Add(h.gate) })
	h.ramp.RampTo(e.composedGain(track), e.sink.SampleRate().N(fade), nil)
	e.log.Info().Str("track", track.Title).Dur("fade", fade).Msg("crossfading")
	return nil
}

// Preload opens the track into the preloaded slot without making it
// audible. An earlier preloaded handle is freed.
func (e *Engine) Preload(track library.Track) error {
	h, err := e.open(track)
	if err != nil {
		return err
	}
	if e.preloaded != nil {
		e.free(e.preloaded)
	}
	e.preloaded = h
	e.log.Debug().Str("track", track.Title).Msg("preloaded")
	return nil
}

// PreloadedTrack returns the track waiting in the preloaded slot, if
// any.
func (e *Engine) PreloadedTrack() *library.Track {
	if e.preloaded == nil {
		return nil
	}
	t := e.preloaded.track
	return &t
}

// ClearPreload frees the preloaded handle, if any.
func (e *Engine) ClearPreload() {
	if e.preloaded != nil {
		e.free(e.preloaded)
		e.preloaded = nil
	}
}

// SwitchToPreloaded promotes the preloaded handle to current at full
// composed gain. The new handle enters the mixer before the old one
// leaves so the track boundary stays gapless.
func (e *Engine) SwitchToPreloaded() error {
	if e.preloaded == nil {
		return ErrNoPreloadedHandle
	}
	p := e.preloaded
	e.preloaded = nil
	old := e.current

	p.ramp.Set(e.composedGain(p.track))
	e.attachEnd(p)
	p.state = HandlePlaying

	e.withSink(func() {
		e.mixer.Add(p.gate)
		if old != nil {
			old.gate.Close()
		}
	})
	if old != nil {
		if err := old.streamer.Close(); err != nil {
			e.log.Debug().Err(err).Msg("closing drained stream")
		}
		old.state = HandleFreed
	}
	e.current = p
	e.log.Info().Str("track", p.track.Title).Msg("gapless switch")
	return nil
}

// FreeDying releases the dying handle, if any. Called when its
// fade-out completes, or eagerly by the next transition.
func (e *Engine) FreeDying() {
	if e.dying != nil {
		e.free(e.dying)
		e.dying = nil
	}
}

// RestartCurrent seeks the current handle back to the start and puts it
// back into the mixer. Used after a natural end under repeat-one, where
// no transition should run.
func (e *Engine) RestartCurrent() error {
	if e.current == nil {
		return ErrNothingPlaying
	}
	h := e.current
	var err error
	e.withSink(func() {
		if err = h.streamer.Seek(0); err != nil {
			return
		}
		h.gate.Reset()
		e.mixer.Add(h.gate)
	})
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	h.ramp.Set(e.composedGain(h.track))
	return nil
}

// MigrateTo moves output to another device. The new sink is bound to
// the live mixer and started before the old one is torn down, so the
// stream handles never detach from a running graph. On failure the old
// sink keeps playing and ErrDeviceMigrationFailed is returned.
func (e *Engine) MigrateTo(dev backend.Device) error {
	if e.sink == nil {
		// Nothing bound yet; the next stream opens on the new device.
		return nil
	}
	ns, err := e.openSink(dev)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceMigrationFailed, err)
	}
	ns.SetSource(e.mixer)
	if err := ns.Start(); err != nil {
		ns.Close()
		return fmt.Errorf("%w: %v", ErrDeviceMigrationFailed, err)
	}
	old := e.sink
	e.sink = ns
	if err := old.Stop(); err != nil {
		e.log.Debug().Err(err).Msg("stopping old sink")
	}
	if err := old.Close(); err != nil {
		e.log.Debug().Err(err).Msg("closing old sink")
	}
	e.log.Info().Str("device", dev.Name).Msg("output migrated")
	return nil
}

// Rebind reopens the sink on its current device, picking up a changed
// exclusive-access request.
func (e *Engine) Rebind() error {
	if e.sink == nil {
		return nil
	}
	return e.MigrateTo(e.sink.Device())
}

// Exclusive reports whether the bound sink actually holds exclusive
// access. May differ from the requested mode after a graceful degrade.
func (e *Engine) Exclusive() bool {
	return e.sink != nil && e.sink.Exclusive()
}

// BoundDevice returns the device the active sink is bound to, if any.
func (e *Engine) BoundDevice() (backend.Device, bool) {
	if e.sink == nil {
		return backend.Device{}, false
	}
	return e.sink.Device(), true
}

// Pause suspends output without releasing anything.
func (e *Engine) Pause() {
	e.withSink(func() {
		if e.current != nil {
			e.current.ctrl.Paused = true
		}
		if e.dying != nil {
			e.dying.ctrl.Paused = true
		}
	})
	if e.current != nil {
		e.current.state = HandlePaused
	}
}

// Resume continues output after a pause.
func (e *Engine) Resume() {
	e.withSink(func() {
		if e.current != nil {
			e.current.ctrl.Paused = false
		}
		if e.dying != nil {
			e.dying.ctrl.Paused = false
		}
	})
	if e.current != nil {
		e.current.state = HandlePlaying
	}
}

// Seek moves the current handle to the given position, clamped to the
// stream bounds.
func (e *Engine) Seek(pos time.Duration) error {
	if e.current == nil {
		return ErrNothingPlaying
	}
	h := e.current
	n := h.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if max := h.streamer.Len(); n > max {
		n = max
	}
	var err error
	e.withSink(func() {
		err = h.streamer.Seek(n)
	})
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

// CurrentTrack returns the track of the current handle, if any.
func (e *Engine) CurrentTrack() *library.Track {
	if e.current == nil {
		return nil
	}
	t := e.current.track
	return &t
}

// Position returns the current handle's playback position.
func (e *Engine) Position() time.Duration {
	if e.current == nil {
		return 0
	}
	var pos time.Duration
	e.withSink(func() { pos = e.current.Position() })
	return pos
}

// Duration returns the current handle's total duration.
func (e *Engine) Duration() time.Duration {
	if e.current == nil {
		return 0
	}
	return e.current.Duration()
}

// Paused reports whether the current handle is paused.
func (e *Engine) Paused() bool {
	return e.current != nil && e.current.state == HandlePaused
}

// SetUserVolume updates the user volume. A fade in progress re-aims at
// the new composed gain instead of restarting.
func (e *Engine) SetUserVolume(v float64) {
	e.userVolume = clampVolume(v)
	if e.current != nil {
		e.current.ramp.Retarget(e.composedGain(e.current.track))
	}
}

// UserVolume returns the user volume.
func (e *Engine) UserVolume() float64 { return e.userVolume }

// SetMuted mutes or unmutes every live handle. Mute is independent of
// the gain ramps, so fades survive a mute round-trip.
func (e *Engine) SetMuted(muted bool) {
	e.muted = muted
	e.withSink(func() {
		for _, h := range []*Handle{e.current, e.dying, e.preloaded} {
			if h != nil {
				h.vol.Silent = muted
			}
		}
	})
}

// Muted reports whether output is muted.
func (e *Engine) Muted() bool { return e.muted }

// SetReplayGain toggles loudness normalization for the current and
// future handles.
func (e *Engine) SetReplayGain(on bool) {
	e.replayGain = on
	if e.current != nil {
		e.current.ramp.Retarget(e.composedGain(e.current.track))
	}
}

// Stop frees every handle and releases the sink, dropping any exclusive
// device claim.
func (e *Engine) Stop() {
	e.ClearPreload()
	e.FreeDying()
	if e.current != nil {
		e.free(e.current)
		e.current = nil
	}
	if e.sink != nil {
		if err := e.sink.Stop(); err != nil {
			e.log.Debug().Err(err).Msg("stopping sink")
		}
		if err := e.sink.Close(); err != nil {
			e.log.Debug().Err(err).Msg("closing sink")
		}
		e.sink = nil
		e.mixer = nil
	}
}

// Close shuts the engine down.
func (e *Engine) Close() {
	e.Stop()
}

// open decodes the track and builds its streamer chain against the
// bound sink's sample rate.
func (e *Engine) open(track library.Track) (*Handle, error) {
	if err := e.ensureSink(); err != nil {
		return nil, err
	}
	streamer, format, kind, err := e.backend.Open(track.Locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, track.Locator, err)
	}
	var src beep.Streamer = streamer
	if format.SampleRate != e.sink.SampleRate() {
		src = beep.Resample(resampleQuality, format.SampleRate, e.sink.SampleRate(), streamer)
	}
	ctrl := &beep.Ctrl{Streamer: src}
	vol := &effects.Volume{Streamer: ctrl, Base: 2, Silent: e.muted}
	ramp := newGainRamp(vol, e.composedGain(track))
	h := &Handle{
		track:    track,
		streamer: streamer,
		format:   format,
		kind:     kind,
		ctrl:     ctrl,
		vol:      vol,
		ramp:     ramp,
		gate:     newGate(ramp),
	}
	e.log.Debug().
		Str("track", track.Title).
		Str("decode", kind.String()).
		Int("rate", int(format.SampleRate)).
		Msg("stream handle opened")
	return h, nil
}

// ensureSink lazily binds an output sink to the registry's active
// device. An exclusive request the host cannot honor degrades to shared
// access with a warning rather than failing playback.
func (e *Engine) ensureSink() error {
	if e.sink != nil {
		return nil
	}
	dev, ok := e.registry.Current()
	if !ok {
		return fmt.Errorf("%w: %v", device.ErrDeviceInitFailed, device.ErrNoCurrentDevice)
	}
	s, err := e.openSink(dev)
	if err != nil {
		return fmt.Errorf("%w: %v", device.ErrDeviceInitFailed, err)
	}
	mixer := &beep.Mixer{}
	s.SetSource(mixer)
	if err := s.Start(); err != nil {
		s.Close()
		return fmt.Errorf("%w: %v", device.ErrDeviceInitFailed, err)
	}
	e.sink = s
	e.mixer = mixer
	e.log.Info().
		Str("device", dev.Name).
		Bool("exclusive", s.Exclusive()).
		Msg("output sink bound")
	return nil
}

func (e *Engine) openSink(dev backend.Device) (backend.Sink, error) {
	exclusive := e.registry.Exclusive()
	s, err := e.backend.OpenSink(dev, exclusive)
	if exclusive && errors.Is(err, backend.ErrExclusiveUnsupported) {
		e.log.Warn().Str("device", dev.Name).Msg("exclusive access unavailable, opening shared")
		s, err = e.backend.OpenSink(dev, false)
	}
	return s, err
}

// free closes a handle. The gate is closed under the sink lock so the
// audio callback can no longer reach the stream before it is closed.
func (e *Engine) free(h *Handle) {
	if h == nil || h.state == HandleFreed {
		return
	}
	e.withSink(func() { h.gate.Close() })
	if err := h.streamer.Close(); err != nil {
		e.log.Debug().Err(err).Msg("closing stream")
	}
	h.state = HandleFreed
}

// attachEnd arms the handle's natural-end notification.
func (e *Engine) attachEnd(h *Handle) {
	track := h.track
	h.gate.SetOnDrained(func() {
		e.post(Event{Kind: EventTrackEnded, Track: track})
	})
}

// withSink runs fn under the sink lock when a sink is bound.
func (e *Engine) withSink(fn func()) {
	if e.sink != nil {
		e.sink.Lock()
		defer e.sink.Unlock()
	}
	fn()
}

// post sends an event without blocking; called from the audio
// goroutine.
func (e *Engine) post(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

// composedGain is user volume times the track's loudness correction.
func (e *Engine) composedGain(track library.Track) float64 {
	g := e.userVolume
	if e.replayGain && track.GainDB != nil {
		g *= math.Pow(10, *track.GainDB/20)
	}
	return g
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
