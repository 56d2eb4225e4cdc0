package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.toml in cwd

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Playback.CrossfadeSeconds != 3 {
		t.Errorf("CrossfadeSeconds = %v, want 3", cfg.Playback.CrossfadeSeconds)
	}
	if !cfg.Playback.Gapless {
		t.Error("Gapless should default to true")
	}
	if cfg.Playback.Volume != 1.0 {
		t.Errorf("Volume = %v, want 1.0", cfg.Playback.Volume)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	toml := `
log_level = "debug"

[playback]
crossfade = true
crossfade_seconds = 5.0
volume = 0.5

[output]
device = "USB DAC"
exclusive = true
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Playback.Crossfade {
		t.Error("Crossfade should be enabled")
	}
	if cfg.Playback.CrossfadeSeconds != 5 {
		t.Errorf("CrossfadeSeconds = %v, want 5", cfg.Playback.CrossfadeSeconds)
	}
	if cfg.Output.Device != "USB DAC" {
		t.Errorf("Device = %q, want USB DAC", cfg.Output.Device)
	}
	if !cfg.Output.Exclusive {
		t.Error("Exclusive should be enabled")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_ClampsOutOfRangeValues(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	toml := `
[playback]
crossfade_seconds = 120.0
volume = 3.5
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Playback.CrossfadeSeconds != 3 {
		t.Errorf("CrossfadeSeconds = %v, want clamped to 3", cfg.Playback.CrossfadeSeconds)
	}
	if cfg.Playback.Volume != 1.0 {
		t.Errorf("Volume = %v, want clamped to 1.0", cfg.Playback.Volume)
	}
}
