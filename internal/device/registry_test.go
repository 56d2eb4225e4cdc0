package device

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/llehouerou/segue/internal/backend"
)

func testDevices() []backend.Device {
	return []backend.Device{
		{ID: "0", Name: "Built-in Output", UID: "mock/Built-in Output", SampleRate: 44100, Channels: 2, Default: true},
		{ID: "1", Name: "USB DAC", UID: "mock/USB DAC", SampleRate: 96000, Channels: 2},
	}
}

func newTestRegistry(t *testing.T, preferred string) (*Registry, *backend.MockBackend) {
	t.Helper()
	b := backend.NewMock()
	b.SetDevices(testDevices()...)
	r, err := New(b, preferred, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r, b
}

func TestNew_SelectsDefault(t *testing.T) {
	r, _ := newTestRegistry(t, "")

	cur, ok := r.Current()
	if !ok {
		t.Fatal("expected a current device")
	}
	if cur.Name != "Built-in Output" {
		t.Errorf("current = %q, want Built-in Output", cur.Name)
	}
}

func TestNew_PrefersConfiguredDevice(t *testing.T) {
	r, _ := newTestRegistry(t, "USB DAC")

	cur, ok := r.Current()
	if !ok || cur.Name != "USB DAC" {
		t.Errorf("current = %q, want USB DAC", cur.Name)
	}
}

func TestNew_PreferredMatchesBySubstring(t *testing.T) {
	// Device names are not reported identically by every subsystem:
	// a partial name must still resolve.
	r, _ := newTestRegistry(t, "DAC")

	cur, _ := r.Current()
	if cur.Name != "USB DAC" {
		t.Errorf("current = %q, want USB DAC", cur.Name)
	}
}

func TestSetDevice_EmitsChanged(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	sub := r.Subscribe()

	if err := r.SetDevice("1"); err != nil {
		t.Fatalf("SetDevice() error = %v", err)
	}

	select {
	case e := <-sub.Changed:
		if e.Device.Name != "USB DAC" {
			t.Errorf("changed to %q, want USB DAC", e.Device.Name)
		}
	default:
		t.Fatal("expected a Changed event")
	}
}

func TestSetDevice_Unknown(t *testing.T) {
	r, _ := newTestRegistry(t, "")

	if err := r.SetDevice("Bluetooth Speaker"); err == nil {
		t.Fatal("expected error for unknown device")
	}
}

func TestRefresh_DeviceLossFallsBackToDefault(t *testing.T) {
	r, b := newTestRegistry(t, "USB DAC")
	sub := r.Subscribe()

	// The DAC goes away; the built-in default remains.
	b.SetDevices(testDevices()[0])
	r.Refresh()

	cur, ok := r.Current()
	if !ok {
		t.Fatal("expected a current device after fallback")
	}
	if cur.Name != "Built-in Output" {
		t.Errorf("current = %q, want Built-in Output", cur.Name)
	}

	select {
	case e := <-sub.Changed:
		if e.Device.Name != "Built-in Output" {
			t.Errorf("changed to %q, want Built-in Output", e.Device.Name)
		}
	default:
		t.Fatal("expected a Changed event")
	}
	select {
	case <-sub.ListChanged:
	default:
		t.Fatal("expected a ListChanged event")
	}
}

func TestRefresh_AllDevicesLost(t *testing.T) {
	r, b := newTestRegistry(t, "")
	sub := r.Subscribe()

	b.SetDevices() // nothing left
	r.Refresh()

	if _, ok := r.Current(); ok {
		t.Error("expected no current device")
	}
	select {
	case <-sub.Lost:
	default:
		t.Fatal("expected a Lost event")
	}
}

func TestRefresh_NoChangeEmitsNothing(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	sub := r.Subscribe()

	r.Refresh()

	select {
	case <-sub.Changed:
		t.Fatal("unexpected Changed event")
	case <-sub.ListChanged:
		t.Fatal("unexpected ListChanged event")
	default:
	}
}

func TestExclusiveAccess_EmitsReacquisition(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	sub := r.Subscribe()

	if err := r.EnableExclusiveAccess(); err != nil {
		t.Fatalf("EnableExclusiveAccess() error = %v", err)
	}
	if !r.Exclusive() {
		t.Error("Exclusive() should be true")
	}

	select {
	case e := <-sub.NeedsReacquisition:
		if !e.Exclusive {
			t.Error("reacquisition event should request exclusive access")
		}
	default:
		t.Fatal("expected a NeedsReacquisition event")
	}

	// Enabling twice is a no-op.
	if err := r.EnableExclusiveAccess(); err != nil {
		t.Fatalf("second EnableExclusiveAccess() error = %v", err)
	}
	select {
	case <-sub.NeedsReacquisition:
		t.Fatal("no event expected for redundant enable")
	default:
	}

	if err := r.DisableExclusiveAccess(); err != nil {
		t.Fatalf("DisableExclusiveAccess() error = %v", err)
	}
	if r.Exclusive() {
		t.Error("Exclusive() should be false after disable")
	}
	select {
	case e := <-sub.NeedsReacquisition:
		if e.Exclusive {
			t.Error("reacquisition event should request shared access")
		}
	default:
		t.Fatal("expected a NeedsReacquisition event after disable")
	}
}

func TestExclusiveAccess_NoDevice(t *testing.T) {
	b := backend.NewMock()
	b.SetDevices()
	r, err := New(b, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close()

	if err := r.EnableExclusiveAccess(); err == nil {
		t.Fatal("expected error with no current device")
	}
}
