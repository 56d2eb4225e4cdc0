// Package playback is the orchestrator: it owns the queue, drives the
// transition engine, and reacts to engine and device events. A single
// control goroutine serializes everything; public methods marshal onto
// it, and engine callbacks arrive as channel events rather than running
// engine code from the audio goroutine.
package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/segue/internal/backend"
	"github.com/llehouerou/segue/internal/device"
	"github.com/llehouerou/segue/internal/engine"
	"github.com/llehouerou/segue/internal/library"
	"github.com/llehouerou/segue/internal/queue"
)

var (
	ErrServiceClosed = errors.New("playback service closed")
	ErrQueueEmpty    = errors.New("queue is empty")
	ErrInvalidIndex  = errors.New("queue index out of range")
)

const (
	defaultSkipDebounce = 500 * time.Millisecond
	defaultPollInterval = 100 * time.Millisecond

	// How far before the track end the gapless preload happens.
	preloadWindow = 10 * time.Second

	// A previous-track request this far into the track restarts it
	// instead.
	restartThreshold = 3 * time.Second
)

// Options configure the orchestrator's transition behavior.
type Options struct {
	Crossfade     bool
	CrossfadeTime time.Duration
	Gapless       bool

	// AutoExtend refills the queue from the library's recommendations
	// when it runs out with repeat off.
	AutoExtend bool

	SkipDebounce time.Duration
	PollInterval time.Duration
}

func (o *Options) fillDefaults() {
	if o.SkipDebounce <= 0 {
		o.SkipDebounce = defaultSkipDebounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
}

var _ Service = (*orchestrator)(nil)

type orchestrator struct {
	log      zerolog.Logger
	opts     Options
	engine   *engine.Engine
	queue    *queue.Queue
	registry *device.Registry
	lib      library.Library // may be nil

	cmds   chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	closed sync.Once

	devSub *device.Subscription

	// Everything below is owned by the control goroutine.
	state              State
	awaitingNaturalEnd bool
	lastTrack          *library.Track
	lastIndex          int
	lastManualSkip     time.Time
	loadGen            uint64
	spoolingPreload    bool
	pendingSeek        time.Duration
	pendingSeekID      string

	subsMu sync.RWMutex
	subs   []*Subscription
}

// New creates the playback service and starts its control goroutine.
func New(e *engine.Engine, q *queue.Queue, r *device.Registry, lib library.Library, opts Options, log zerolog.Logger) Service {
	opts.fillDefaults()
	o := &orchestrator{
		log:       log.With().Str("component", "playback").Logger(),
		opts:      opts,
		engine:    e,
		queue:     q,
		registry:  r,
		lib:       lib,
		cmds:      make(chan func(), 64),
		done:      make(chan struct{}),
		devSub:    r.Subscribe(),
		lastIndex: -1,
	}
	o.wg.Add(1)
	go o.run()
	return o
}

// run is the control loop. It is the only goroutine that touches the
// engine and the queue.
func (o *orchestrator) run() {
	defer o.wg.Done()
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.done:
			o.engine.Close()
			return
		case fn := <-o.cmds:
			fn()
		case ev := <-o.engine.Events():
			o.handleEngineEvent(ev)
		case e := <-o.devSub.Changed:
			o.handleDeviceChanged(e)
		case e := <-o.devSub.NeedsReacquisition:
			o.handleReacquisition(e)
		case <-o.devSub.Lost:
			o.handleDeviceLost()
		case <-o.devSub.ListChanged:
			// Selection fallout arrives as Changed/Lost; nothing to do.
		case <-ticker.C:
			o.tick()
		}
	}
}

// do marshals fn onto the control goroutine.
func (o *orchestrator) do(fn func()) {
	select {
	case o.cmds <- fn:
	case <-o.done:
	}
}

// doErr marshals fn and waits for its result.
func (o *orchestrator) doErr(fn func() error) error {
	errc := make(chan error, 1)
	o.do(func() { errc <- fn() })
	select {
	case err := <-errc:
		return err
	case <-o.done:
		return ErrServiceClosed
	}
}

// query marshals fn and waits for its value.
func query[T any](o *orchestrator, fn func() T) T {
	out := make(chan T, 1)
	o.do(func() { out <- fn() })
	select {
	case v := <-out:
		return v
	case <-o.done:
		var zero T
		return zero
	}
}

// --- Playback control ---

func (o *orchestrator) Play() error {
	return o.doErr(func() error {
		switch o.state {
		case StatePaused:
			o.engine.Resume()
			o.setState(StatePlaying)
			return nil
		case StatePlaying, StateTransitioning, StateLoading:
			return nil
		default:
			return o.startCurrent(false)
		}
	})
}

func (o *orchestrator) PlayTracks(tracks []library.Track, startIndex int) error {
	return o.doErr(func() error {
		if o.queue.Replace(tracks, startIndex) == nil {
			o.engine.Stop()
			o.setState(StateStopped)
			o.emitQueue()
			return ErrQueueEmpty
		}
		o.emitQueue()
		return o.startCurrent(true)
	})
}

func (o *orchestrator) Pause() error {
	return o.doErr(func() error {
		if o.state == StatePlaying {
			o.engine.Pause()
			o.setState(StatePaused)
		}
		return nil
	})
}

func (o *orchestrator) Toggle() error {
	return o.doErr(func() error {
		switch o.state {
		case StatePlaying:
			o.engine.Pause()
			o.setState(StatePaused)
			return nil
		case StatePaused:
			o.engine.Resume()
			o.setState(StatePlaying)
			return nil
		case StateTransitioning:
			// A swap is in flight; pausing mid-fade would strand it.
			return nil
		default:
			return o.startCurrent(false)
		}
	})
}

func (o *orchestrator) Stop() error {
	return o.doErr(func() error {
		o.engine.Stop()
		o.awaitingNaturalEnd = false
		o.setState(StateStopped)
		return nil
	})
}

func (o *orchestrator) Next() error {
	return o.doErr(func() error {
		if !o.admitManualSkip() {
			return nil
		}
		o.maybeExtendQueue()
		if o.queue.Skip() == nil {
			if o.state.IsActive() {
				o.engine.Stop()
				o.setState(StateEndOfQueue)
			}
			return nil
		}
		if o.state.IsActive() || o.state == StateEndOfQueue {
			if err := o.startCurrent(true); err != nil {
				o.emitError("play", "", err)
			}
		}
		return nil
	})
}

func (o *orchestrator) Previous() error {
	return o.doErr(func() error {
		if !o.admitManualSkip() {
			return nil
		}
		if o.state.IsActive() && o.engine.Position() > restartThreshold {
			return o.engine.Seek(0)
		}
		if o.queue.Previous() == nil {
			return nil
		}
		if o.state.IsActive() {
			if err := o.startCurrent(true); err != nil {
				o.emitError("play", "", err)
			}
		}
		return nil
	})
}

// admitManualSkip applies the skip policy: requests during a transition
// are dropped, and requests within the debounce window of the previous
// accepted skip are ignored. Neither moves the queue pointer.
func (o *orchestrator) admitManualSkip() bool {
	if o.state == StateTransitioning {
		return false
	}
	now := time.Now()
	if now.Sub(o.lastManualSkip) < o.opts.SkipDebounce {
		return false
	}
	o.lastManualSkip = now
	return true
}

func (o *orchestrator) Seek(delta time.Duration) error {
	return o.doErr(func() error {
		return o.seekTo(o.engine.Position() + delta)
	})
}

func (o *orchestrator) SeekTo(position time.Duration) error {
	return o.doErr(func() error {
		return o.seekTo(position)
	})
}

func (o *orchestrator) seekTo(position time.Duration) error {
	if err := o.engine.Seek(position); err != nil {
		return err
	}
	o.emitPosition()
	return nil
}

func (o *orchestrator) JumpTo(index int) error {
	return o.doErr(func() error {
		if o.queue.JumpTo(index) == nil {
			return ErrInvalidIndex
		}
		return o.startCurrent(true)
	})
}

// --- Queue manipulation ---

func (o *orchestrator) AddTracks(tracks ...library.Track) {
	o.do(func() {
		o.queue.Append(tracks...)
		o.emitQueue()
	})
}

func (o *orchestrator) RemoveTrack(index int) error {
	return o.doErr(func() error {
		wasCurrent := index == o.queue.CurrentIndex()
		if !o.queue.RemoveAt(index) {
			return ErrInvalidIndex
		}
		o.emitQueue()
		if wasCurrent && o.state.IsActive() {
			if o.queue.Current() == nil {
				o.engine.Stop()
				o.setState(StateStopped)
				return nil
			}
			return o.startCurrent(false)
		}
		return nil
	})
}

func (o *orchestrator) MoveTrack(from, to int) error {
	return o.doErr(func() error {
		if !o.queue.Move(from, to) {
			return ErrInvalidIndex
		}
		o.emitQueue()
		return nil
	})
}

func (o *orchestrator) ClearQueue() {
	o.do(func() {
		o.queue.Replace(nil, 0)
		if o.state.IsActive() {
			o.engine.Stop()
		}
		o.setState(StateStopped)
		o.emitQueue()
	})
}

// --- Queries ---

func (o *orchestrator) State() State {
	return query(o, func() State { return o.state })
}

func (o *orchestrator) Position() time.Duration {
	return query(o, func() time.Duration { return o.engine.Position() })
}

func (o *orchestrator) Duration() time.Duration {
	return query(o, func() time.Duration { return o.engine.Duration() })
}

func (o *orchestrator) CurrentTrack() *library.Track {
	return query(o, func() *library.Track { return o.queue.Current() })
}

func (o *orchestrator) QueueTracks() []library.Track {
	return query(o, func() []library.Track { return o.queue.Tracks() })
}

func (o *orchestrator) QueueCurrentIndex() int {
	return query(o, func() int { return o.queue.CurrentIndex() })
}

func (o *orchestrator) QueueLen() int {
	return query(o, func() int { return o.queue.Len() })
}

// --- Volume ---

func (o *orchestrator) Volume() float64 {
	return query(o, func() float64 { return o.engine.UserVolume() })
}

func (o *orchestrator) SetVolume(v float64) error {
	return o.doErr(func() error {
		o.engine.SetUserVolume(v)
		o.emitVolume()
		return nil
	})
}

func (o *orchestrator) Muted() bool {
	return query(o, func() bool { return o.engine.Muted() })
}

func (o *orchestrator) ToggleMute() bool {
	return query(o, func() bool {
		o.engine.SetMuted(!o.engine.Muted())
		o.emitVolume()
		return o.engine.Muted()
	})
}

// --- Modes ---

func (o *orchestrator) RepeatMode() queue.RepeatMode {
	return query(o, func() queue.RepeatMode { return o.queue.Repeat() })
}

func (o *orchestrator) SetRepeatMode(m queue.RepeatMode) {
	o.do(func() {
		o.queue.SetRepeat(m)
		o.emitMode()
	})
}

func (o *orchestrator) CycleRepeatMode() queue.RepeatMode {
	return query(o, func() queue.RepeatMode {
		m := o.queue.CycleRepeat()
		o.emitMode()
		return m
	})
}

func (o *orchestrator) Shuffle() bool {
	return query(o, func() bool { return o.queue.Shuffle() })
}

func (o *orchestrator) ToggleShuffle() bool {
	return query(o, func() bool {
		on := o.queue.ToggleShuffle()
		o.emitMode()
		return on
	})
}

// --- Output devices ---

// Device queries go straight to the registry, which carries its own
// locks; the side effects of a selection come back through the
// registry's events and are handled on the control goroutine.

func (o *orchestrator) Devices() []backend.Device {
	return o.registry.Devices()
}

func (o *orchestrator) CurrentDevice() (backend.Device, bool) {
	return o.registry.Current()
}

func (o *orchestrator) SelectDevice(id string) error {
	return o.registry.SetDevice(id)
}

func (o *orchestrator) SetExclusiveAccess(enabled bool) error {
	if enabled {
		return o.registry.EnableExclusiveAccess()
	}
	return o.registry.DisableExclusiveAccess()
}

func (o *orchestrator) ExclusiveAccess() bool {
	return o.registry.Exclusive()
}

// --- Session persistence ---

func (o *orchestrator) Snapshot() Snapshot {
	return query(o, func() Snapshot {
		return Snapshot{
			Tracks:   o.queue.Tracks(),
			Index:    o.queue.CurrentIndex(),
			Position: o.engine.Position(),
			Repeat:   o.queue.Repeat(),
			Shuffle:  o.queue.Shuffle(),
			Volume:   o.engine.UserVolume(),
			Muted:    o.engine.Muted(),
		}
	})
}

func (o *orchestrator) Restore(snap Snapshot) error {
	return o.doErr(func() error {
		o.queue.SetRepeat(snap.Repeat)
		o.queue.SetShuffle(snap.Shuffle)
		o.engine.SetUserVolume(snap.Volume)
		o.engine.SetMuted(snap.Muted)
		cur := o.queue.Replace(snap.Tracks, snap.Index)
		if cur != nil && snap.Position > 0 {
			o.pendingSeek = snap.Position
			o.pendingSeekID = cur.ID
		}
		o.emitQueue()
		o.emitMode()
		o.emitVolume()
		return nil
	})
}

// --- Subscription and lifecycle ---

func (o *orchestrator) Subscribe() *Subscription {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	sub := newSubscription()
	o.subs = append(o.subs, sub)
	return sub
}

func (o *orchestrator) Close() error {
	o.closed.Do(func() {
		close(o.done)
	})
	o.wg.Wait()

	o.subsMu.Lock()
	for _, sub := range o.subs {
		sub.close()
	}
	o.subs = nil
	o.subsMu.Unlock()
	return nil
}

// --- Control-goroutine internals ---

// startCurrent begins playback of the queue's current track. Remote
// sources spool on a worker goroutine first; their failures surface as
// error events rather than a return value.
func (o *orchestrator) startCurrent(useFade bool) error {
	cur := o.queue.Current()
	if cur == nil {
		return ErrQueueEmpty
	}
	if cur.IsRemote() {
		o.spoolAndStart(*cur, useFade)
		return nil
	}
	return o.startResolved(*cur, useFade)
}

func (o *orchestrator) spoolAndStart(t library.Track, useFade bool) {
	o.loadGen++
	gen := o.loadGen
	o.setState(StateLoading)
	go func() {
		local, err := backend.Spool(t.Locator)
		o.do(func() {
			if gen != o.loadGen {
				return // superseded by a newer request
			}
			if err != nil {
				o.emitError("spool", t.Locator, err)
				o.setState(StateStopped)
				return
			}
			t.Locator = local
			if err := o.startResolved(t, useFade); err != nil {
				o.emitError("play", t.Locator, err)
			}
		})
	}()
}

// startResolved plays a track whose locator points at local data,
// crossfading from the current handle when requested and enabled.
func (o *orchestrator) startResolved(t library.Track, useFade bool) error {
	o.loadGen++
	fade := useFade && o.opts.Crossfade && o.opts.CrossfadeTime > 0 &&
		o.state.IsActive() && o.engine.CurrentTrack() != nil &&
		o.queue.Repeat() != queue.RepeatOne

	var err error
	if fade {
		err = o.engine.CrossfadeTo(t, o.opts.CrossfadeTime)
		if err != nil {
			o.log.Warn().Err(err).Msg("crossfade failed, trying hard start")
			err = o.engine.Play(t)
			fade = false
		}
	} else {
		err = o.engine.Play(t)
	}
	if err != nil {
		// The engine kept the previous handle alive; realign the queue
		// with it and let that track run out on its own.
		if o.lastIndex >= 0 && o.queue.CurrentIndex() != o.lastIndex {
			o.queue.JumpTo(o.lastIndex)
		}
		if o.state.IsActive() {
			o.awaitingNaturalEnd = true
		}
		return err
	}

	o.applyPendingSeek(t)
	o.awaitingNaturalEnd = false
	o.noteStarted(t)
	if fade {
		o.setState(StateTransitioning)
	} else {
		o.setState(StatePlaying)
	}
	return nil
}

// noteStarted records a track start and emits TrackChange.
func (o *orchestrator) noteStarted(t library.Track) {
	prev := o.lastTrack
	prevIdx := o.lastIndex
	idx := o.queue.CurrentIndex()
	cur := t
	o.emitTrack(TrackChange{Previous: prev, Current: &cur, PreviousIndex: prevIdx, Index: idx})
	o.lastTrack = &cur
	o.lastIndex = idx
	if o.lib != nil {
		go o.lib.OnPlayed(t.ID)
	}
}

func (o *orchestrator) applyPendingSeek(t library.Track) {
	if o.pendingSeek > 0 && o.pendingSeekID == t.ID {
		if err := o.engine.Seek(o.pendingSeek); err != nil {
			o.log.Warn().Err(err).Msg("resume seek failed")
		}
	}
	o.pendingSeek = 0
	o.pendingSeekID = ""
}

// tick runs on the position poll: it reports progress and arms the
// upcoming transition, whichever kind is due.
func (o *orchestrator) tick() {
	if !o.state.IsActive() || o.state == StateLoading {
		return
	}
	o.emitPosition()

	if o.state != StatePlaying || o.awaitingNaturalEnd {
		return
	}
	if o.queue.Repeat() == queue.RepeatOne {
		// Repeat-one restarts in place; no transition, no preload.
		o.engine.ClearPreload()
		return
	}

	next := o.queue.PeekNext()
	if pre := o.engine.PreloadedTrack(); pre != nil && (next == nil || pre.ID != next.ID) {
		// The queue moved under the preload; it no longer matches.
		o.engine.ClearPreload()
	}
	if next == nil {
		o.maybeExtendQueue()
		return
	}

	dur := o.engine.Duration()
	if dur <= 0 {
		return
	}
	remaining := dur - o.engine.Position()

	if o.opts.Crossfade && o.opts.CrossfadeTime > 0 {
		if remaining > 0 && remaining <= o.opts.CrossfadeTime && !next.IsRemote() {
			o.startTransition(*next)
		}
		return
	}
	if o.opts.Gapless && remaining <= preloadWindow && o.engine.PreloadedTrack() == nil {
		o.preloadNext(*next)
	}
}

// startTransition crossfades into the next queue track ahead of the
// current one's natural end.
func (o *orchestrator) startTransition(next library.Track) {
	err := o.engine.CrossfadeTo(next, o.opts.CrossfadeTime)
	if err != nil {
		if err2 := o.engine.Play(next); err2 != nil {
			// Both paths failed; the old handle is still playing. Let it
			// run out and advance then.
			o.emitError("crossfade", next.Locator, err)
			o.awaitingNaturalEnd = true
			return
		}
	}
	o.queue.Advance()
	o.noteStarted(next)
	if err == nil {
		o.setState(StateTransitioning)
	}
}

func (o *orchestrator) preloadNext(t library.Track) {
	if !t.IsRemote() {
		if err := o.engine.Preload(t); err != nil {
			o.emitError("preload", t.Locator, err)
		}
		return
	}
	if o.spoolingPreload {
		return
	}
	o.spoolingPreload = true
	go func() {
		local, err := backend.Spool(t.Locator)
		o.do(func() {
			o.spoolingPreload = false
			if err != nil {
				o.emitError("spool", t.Locator, err)
				return
			}
			next := o.queue.PeekNext()
			if next == nil || next.ID != t.ID {
				return // queue moved while spooling
			}
			t.Locator = local
			if err := o.engine.Preload(t); err != nil {
				o.emitError("preload", t.Locator, err)
			}
		})
	}()
}

func (o *orchestrator) handleEngineEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventFadeOutDone:
		o.engine.FreeDying()
		if o.state == StateTransitioning {
			o.setState(StatePlaying)
		}
	case engine.EventTrackEnded:
		o.handleTrackEnded(ev)
	}
}

func (o *orchestrator) handleTrackEnded(ev engine.Event) {
	cur := o.engine.CurrentTrack()
	if cur == nil || cur.ID != ev.Track.ID {
		return // stale notification from a replaced handle
	}
	if o.awaitingNaturalEnd {
		o.awaitingNaturalEnd = false
	} else if o.queue.Repeat() == queue.RepeatOne {
		if err := o.engine.RestartCurrent(); err != nil {
			o.emitError("repeat", cur.Locator, err)
		}
		return
	}
	o.advanceAfterEnd()
}

// advanceAfterEnd moves playback to the next track after a natural end:
// a gapless switch when the matching handle is already preloaded, a
// plain start otherwise, or end-of-queue.
func (o *orchestrator) advanceAfterEnd() {
	if next := o.queue.PeekNext(); next != nil {
		if pre := o.engine.PreloadedTrack(); pre != nil && pre.ID == next.ID {
			if err := o.engine.SwitchToPreloaded(); err == nil {
				o.queue.Advance()
				o.noteStarted(*next)
				o.setState(StatePlaying)
				return
			}
		}
	}
	o.maybeExtendQueue()
	next := o.queue.Advance()
	if next == nil {
		o.engine.Stop()
		o.setState(StateEndOfQueue)
		o.log.Info().Msg("end of queue")
		return
	}
	if err := o.startCurrent(false); err != nil {
		o.emitError("play", next.Locator, err)
		o.engine.Stop()
		o.setState(StateStopped)
	}
}

// maybeExtendQueue asks the library for more tracks when the queue is
// about to run dry with repeat off.
func (o *orchestrator) maybeExtendQueue() {
	if !o.opts.AutoExtend || o.lib == nil {
		return
	}
	if o.queue.Repeat() != queue.RepeatOff || o.queue.HasNext() {
		return
	}
	cur := o.queue.Current()
	if cur == nil {
		return
	}
	exclude := make([]string, 0, o.queue.Len())
	for _, t := range o.queue.Tracks() {
		exclude = append(exclude, t.ID)
	}
	batch := o.lib.RecommendNextBatch(*cur, exclude)
	if len(batch) == 0 {
		return
	}
	o.queue.Append(batch...)
	o.log.Debug().Int("count", len(batch)).Msg("queue extended from library")
	o.emitQueue()
}

func (o *orchestrator) handleDeviceChanged(e device.Changed) {
	if err := o.engine.MigrateTo(e.Device); err != nil {
		o.emitError("migrate", "", err)
		// The old sink keeps playing only if its device still exists;
		// when it has vanished there is nothing left to play on.
		if !o.boundDevicePresent() {
			wasActive := o.state.IsActive()
			o.engine.Stop()
			if wasActive {
				o.setState(StateStopped)
			}
		}
		return
	}
	o.emitDevice(e.Device)
}

// boundDevicePresent reports whether the device the engine's sink is
// bound to still appears in the registry's device list.
func (o *orchestrator) boundDevicePresent() bool {
	bound, ok := o.engine.BoundDevice()
	if !ok {
		return false
	}
	for _, d := range o.registry.Devices() {
		if d.UID == bound.UID {
			return true
		}
	}
	return false
}

func (o *orchestrator) handleReacquisition(e device.NeedsReacquisition) {
	if err := o.engine.Rebind(); err != nil {
		o.emitError("rebind", "", err)
		return
	}
	if e.Exclusive && o.state.IsActive() && !o.engine.Exclusive() {
		// The host would not grant exclusive access; playback continues
		// shared.
		o.emitError("exclusive", "", backend.ErrExclusiveUnsupported)
	}
	o.emitDevice(e.Device)
}

func (o *orchestrator) handleDeviceLost() {
	wasActive := o.state.IsActive()
	o.engine.Stop()
	if wasActive {
		o.setState(StateStopped)
	}
	o.emitError("device", "", backend.ErrNoDevices)
}

// --- Event emission ---

func (o *orchestrator) setState(s State) {
	if s == o.state {
		return
	}
	prev := o.state
	o.state = s
	o.log.Debug().Stringer("from", prev).Stringer("to", s).Msg("state change")
	o.subsMu.RLock()
	defer o.subsMu.RUnlock()
	for _, sub := range o.subs {
		sub.sendState(StateChange{Previous: prev, Current: s})
	}
}

func (o *orchestrator) emitTrack(e TrackChange) {
	o.subsMu.RLock()
	defer o.subsMu.RUnlock()
	for _, sub := range o.subs {
		sub.sendTrack(e)
	}
}

func (o *orchestrator) emitPosition() {
	e := PositionChange{Position: o.engine.Position(), Duration: o.engine.Duration()}
	o.subsMu.RLock()
	defer o.subsMu.RUnlock()
	for _, sub := range o.subs {
		sub.sendPosition(e)
	}
}

func (o *orchestrator) emitQueue() {
	e := QueueChange{Tracks: o.queue.Tracks(), Index: o.queue.CurrentIndex()}
	o.subsMu.RLock()
	defer o.subsMu.RUnlock()
	for _, sub := range o.subs {
		sub.sendQueue(e)
	}
}

func (o *orchestrator) emitMode() {
	e := ModeChange{RepeatMode: o.queue.Repeat(), Shuffle: o.queue.Shuffle()}
	o.subsMu.RLock()
	defer o.subsMu.RUnlock()
	for _, sub := range o.subs {
		sub.sendMode(e)
	}
}

func (o *orchestrator) emitVolume() {
	e := VolumeChange{Volume: o.engine.UserVolume(), Muted: o.engine.Muted()}
	o.subsMu.RLock()
	defer o.subsMu.RUnlock()
	for _, sub := range o.subs {
		sub.sendVolume(e)
	}
}

func (o *orchestrator) emitDevice(dev backend.Device) {
	e := DeviceChange{Device: dev, Exclusive: o.engine.Exclusive()}
	o.subsMu.RLock()
	defer o.subsMu.RUnlock()
	for _, sub := range o.subs {
		sub.sendDevice(e)
	}
}

func (o *orchestrator) emitError(op, track string, err error) {
	o.log.Error().Str("op", op).Str("track", track).Err(err).Msg("playback error")
	o.subsMu.RLock()
	defer o.subsMu.RUnlock()
	for _, sub := range o.subs {
		sub.sendError(ErrorEvent{Operation: op, Track: track, Err: err})
	}
}
