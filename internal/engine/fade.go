package engine

import (
	"sync"

	"github.com/gopxl/beep/v2"
)

var _ beep.Streamer = (*gainRamp)(nil)

// gainRamp scales samples by a gain that can slide linearly to a target
// over a fixed number of samples. It is the fade primitive for both
// crossfade directions and carries the handle's composed gain.
type gainRamp struct {
	mu        sync.Mutex
	s         beep.Streamer
	gain      float64
	target    float64
	step      float64
	remaining int
	onDone    func() // fires once when a slide completes
}

func newGainRamp(s beep.Streamer, initial float64) *gainRamp {
	return &gainRamp{s: s, gain: initial, target: initial}
}

// Stream implements beep.Streamer. The source is pulled until the
// buffer fills or it drains: the mixer removes any streamer after a
// partial read, so a short source must be exhausted within one call.
func (g *gainRamp) Stream(samples [][2]float64) (n int, ok bool) {
	var done func()
	for n < len(samples) {
		sn, sok := g.s.Stream(samples[n:])

		g.mu.Lock()
		for i := n; i < n+sn; i++ {
			if g.remaining > 0 {
				g.gain += g.step
				g.remaining--
				if g.remaining == 0 {
					g.gain = g.target
					done = g.onDone
					g.onDone = nil
				}
			}
			samples[i][0] *= g.gain
			samples[i][1] *= g.gain
		}
		// A source that runs dry mid-slide still completes the slide.
		if !sok && g.remaining > 0 {
			g.gain = g.target
			g.remaining = 0
			done = g.onDone
			g.onDone = nil
		}
		g.mu.Unlock()

		n += sn
		if !sok {
			break
		}
	}

	if done != nil {
		done()
	}
	return n, n > 0
}

// Err implements beep.Streamer.
func (g *gainRamp) Err() error {
	return g.s.Err()
}

// RampTo slides the gain linearly to target over numSamples samples.
// onDone fires from the audio goroutine when the slide completes; it
// must only post to a channel.
func (g *gainRamp) RampTo(target float64, numSamples int, onDone func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if numSamples <= 0 {
		g.gain = target
		g.target = target
		g.remaining = 0
		g.onDone = nil
		if onDone != nil {
			go onDone()
		}
		return
	}
	g.target = target
	g.step = (target - g.gain) / float64(numSamples)
	g.remaining = numSamples
	g.onDone = onDone
}

// Set applies a gain immediately, canceling any slide in progress.
func (g *gainRamp) Set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gain = v
	g.target = v
	g.remaining = 0
	g.onDone = nil
}

// Retarget changes the slide destination without restarting it: an
// in-flight slide re-aims at the new target over its remaining window,
// an idle ramp jumps immediately.
func (g *gainRamp) Retarget(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.target = v
	if g.remaining > 0 {
		g.step = (v - g.gain) / float64(g.remaining)
		return
	}
	g.gain = v
}

// Gain returns the current gain.
func (g *gainRamp) Gain() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gain
}

// Sliding reports whether a slide is in progress.
func (g *gainRamp) Sliding() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining > 0
}

var _ beep.Streamer = (*gate)(nil)

// gate sits at the top of a handle's chain. It reports stream
// exhaustion exactly once through a detachable notification, and can be
// closed to drop the handle out of the mixer immediately.
type gate struct {
	mu        sync.Mutex
	s         beep.Streamer
	closed    bool
	fired     bool
	onDrained func()
}

func newGate(s beep.Streamer) *gate {
	return &gate{s: s}
}

// Stream implements beep.Streamer. The mixer removes a streamer after
// any partial read, so this is the gate's last chance to see the
// source run dry: it pulls until the buffer fills or the source
// reports drained, and fires the notification in the same call.
func (g *gate) Stream(samples [][2]float64) (n int, ok bool) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return 0, false
	}
	g.mu.Unlock()

	for n < len(samples) {
		sn, sok := g.s.Stream(samples[n:])
		n += sn
		if !sok {
			g.fireDrained()
			break
		}
	}
	return n, n > 0
}

// fireDrained delivers the end-of-stream notification at most once.
func (g *gate) fireDrained() {
	var fire func()
	g.mu.Lock()
	if !g.fired && g.onDrained != nil {
		g.fired = true
		fire = g.onDrained
	}
	g.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// Err implements beep.Streamer.
func (g *gate) Err() error {
	return g.s.Err()
}

// SetOnDrained attaches (or, with nil, detaches) the end-of-stream
// notification.
func (g *gate) SetOnDrained(fn func()) {
	g.mu.Lock()
	g.onDrained = fn
	g.mu.Unlock()
}

// Close silences the gate permanently; the mixer drops it on the next
// pull. No drained notification fires for a closed gate.
func (g *gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.onDrained = nil
	g.mu.Unlock()
}

// Reset re-arms a drained gate so the handle can be streamed again
// after a seek back.
func (g *gate) Reset() {
	g.mu.Lock()
	g.fired = false
	g.mu.Unlock()
}
