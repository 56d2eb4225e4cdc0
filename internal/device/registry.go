// Package device tracks the system's audio output devices: the
// authoritative device list, the active device, and exclusive-access
// state. It is a leaf component with no dependency on playback state.
package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/segue/internal/backend"
)

var (
	ErrDeviceInitFailed      = errors.New("audio device initialization failed")
	ErrExclusiveAccessFailed = errors.New("exclusive device access failed")
	ErrNoCurrentDevice       = errors.New("no output device selected")
)

const defaultPollInterval = 2 * time.Second

// Registry owns the output device list and the active device selection.
type Registry struct {
	log     zerolog.Logger
	backend backend.Backend

	mu         sync.RWMutex
	devices    []backend.Device
	current    backend.Device
	hasCurrent bool
	exclusive  bool

	subsMu sync.RWMutex
	subs   []*Subscription

	pollInterval time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

// New enumerates devices and selects the initial active device: the
// preferred name if it matches an enabled device, else the host default.
func New(b backend.Backend, preferredName string, log zerolog.Logger) (*Registry, error) {
	r := &Registry{
		log:          log.With().Str("component", "devices").Logger(),
		backend:      b,
		pollInterval: defaultPollInterval,
		done:         make(chan struct{}),
	}

	devices, err := b.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceInitFailed, err)
	}
	r.devices = devices

	if preferredName != "" {
		if dev, ok := matchDevice(preferredName, devices); ok {
			r.current = dev
			r.hasCurrent = true
		}
	}
	if !r.hasCurrent {
		if def, err := b.DefaultDevice(); err == nil {
			r.current = def
			r.hasCurrent = true
		}
	}
	if r.hasCurrent {
		r.log.Info().Str("device", r.current.Name).Msg("active output device")
	} else {
		r.log.Warn().Msg("no output device available")
	}
	return r, nil
}

// Start begins watching for device-list changes. The host exposes no
// change notification, so the registry polls and diffs by unique id.
func (r *Registry) Start() {
	go func() {
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.Refresh()
			}
		}
	}()
}

// Close stops the watcher and closes all subscriptions.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.subsMu.Lock()
	for _, sub := range r.subs {
		sub.close()
	}
	r.subs = nil
	r.subsMu.Unlock()
}

// Subscribe creates a new event subscription.
func (r *Registry) Subscribe() *Subscription {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	sub := newSubscription()
	r.subs = append(r.subs, sub)
	return sub
}

// Devices returns the current device list.
func (r *Registry) Devices() []backend.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]backend.Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// Current returns the active device, if any.
func (r *Registry) Current() (backend.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.hasCurrent
}

// Exclusive reports whether exclusive ("hog") access is requested.
func (r *Registry) Exclusive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exclusive
}

// SetDevice switches the active device by id or name. The choice is also
// pushed to the host default so system volume keys keep working, where
// the backend supports that.
func (r *Registry) SetDevice(id string) error {
	r.mu.Lock()
	dev, ok := r.findLocked(id)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", backend.ErrDeviceNotFound, id)
	}
	r.current = dev
	r.hasCurrent = true
	r.mu.Unlock()

	if err := r.backend.SetDefaultDevice(dev); err != nil && !errors.Is(err, backend.ErrNotSupported) {
		r.log.Warn().Err(err).Msg("could not set host default device")
	}

	r.log.Info().Str("device", dev.Name).Msg("output device selected")
	r.emitChanged(dev)
	return nil
}

// EnableExclusiveAccess requests sole ownership of the active device for
// bit-perfect output. The actual claim happens when the transition
// engine rebinds its sink; the registry emits NeedsReacquisition to
// trigger that.
func (r *Registry) EnableExclusiveAccess() error {
	r.mu.Lock()
	if !r.hasCurrent {
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrExclusiveAccessFailed, ErrNoCurrentDevice)
	}
	if r.exclusive {
		r.mu.Unlock()
		return nil
	}
	r.exclusive = true
	dev := r.current
	r.mu.Unlock()

	r.log.Info().Str("device", dev.Name).Msg("exclusive access requested")
	r.emitNeedsReacquisition(dev, true)
	return nil
}

// DisableExclusiveAccess releases exclusive ownership.
func (r *Registry) DisableExclusiveAccess() error {
	r.mu.Lock()
	if !r.exclusive {
		r.mu.Unlock()
		return nil
	}
	r.exclusive = false
	dev := r.current
	hasDev := r.hasCurrent
	r.mu.Unlock()

	if hasDev {
		r.log.Info().Str("device", dev.Name).Msg("exclusive access released")
		r.emitNeedsReacquisition(dev, false)
	}
	return nil
}

// Refresh re-enumerates devices and reconciles the active selection.
// If the active device disappeared, the host default takes over and a
// Changed event fires; with no devices left a Lost event fires.
func (r *Registry) Refresh() {
	devices, err := r.backend.Devices()
	if err != nil {
		r.log.Warn().Err(err).Msg("device enumeration failed")
		return
	}

	r.mu.Lock()
	listChanged := !sameDevices(r.devices, devices)
	r.devices = devices

	currentGone := false
	if r.hasCurrent {
		currentGone = true
		for _, d := range devices {
			if d.UID == r.current.UID {
				currentGone = false
				break
			}
		}
	}

	var newCurrent backend.Device
	lost := false
	if currentGone {
		if def, err := r.backend.DefaultDevice(); err == nil {
			r.current = def
			newCurrent = def
		} else if len(devices) > 0 {
			r.current = devices[0]
			newCurrent = devices[0]
		} else {
			r.hasCurrent = false
			lost = true
		}
	}
	r.mu.Unlock()

	if listChanged {
		r.log.Debug().Int("count", len(devices)).Msg("device list changed")
		r.emitListChanged(devices)
	}
	if currentGone && !lost {
		r.log.Info().Str("device", newCurrent.Name).Msg("active device disappeared, falling back")
		r.emitChanged(newCurrent)
	}
	if lost {
		r.log.Warn().Msg("all output devices lost")
		r.emitLost()
	}
}

func (r *Registry) findLocked(id string) (backend.Device, bool) {
	for _, d := range r.devices {
		if d.ID == id || d.UID == id {
			return d, true
		}
	}
	return matchDevice(id, r.devices)
}

// matchDevice applies the name-matching rule: exact match, then
// substring containment in either direction; first enabled match wins.
func matchDevice(name string, devices []backend.Device) (backend.Device, bool) {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	if i, ok := backend.MatchName(name, names); ok {
		return devices[i], true
	}
	return backend.Device{}, false
}

func sameDevices(a, b []backend.Device) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].UID != b[i].UID {
			return false
		}
	}
	return true
}

func (r *Registry) emitChanged(dev backend.Device) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	for _, sub := range r.subs {
		sub.sendChanged(Changed{Device: dev})
	}
}

func (r *Registry) emitListChanged(devices []backend.Device) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	for _, sub := range r.subs {
		sub.sendListChanged(ListChanged{Devices: devices})
	}
}

func (r *Registry) emitNeedsReacquisition(dev backend.Device, exclusive bool) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	for _, sub := range r.subs {
		sub.sendNeedsReacquisition(NeedsReacquisition{Device: dev, Exclusive: exclusive})
	}
}

func (r *Registry) emitLost() {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	for _, sub := range r.subs {
		sub.sendLost()
	}
}
