package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Playback PlaybackConfig `koanf:"playback"`
	Output   OutputConfig   `koanf:"output"`
	LogLevel string         `koanf:"log_level"` // "debug", "info", "warn", "error"
}

// PlaybackConfig holds transition and gain settings.
type PlaybackConfig struct {
	Crossfade        bool    `koanf:"crossfade"`         // overlap fade between tracks
	CrossfadeSeconds float64 `koanf:"crossfade_seconds"` // fade window (0.5-15, default: 3)
	Gapless          bool    `koanf:"gapless"`           // preload next track for gapless hand-off
	ReplayGain       bool    `koanf:"replaygain"`        // apply ReplayGain track adjustment
	Volume           float64 `koanf:"volume"`            // initial volume (0.0-1.0, default: 1.0)
}

// OutputConfig holds output device settings.
type OutputConfig struct {
	Device    string `koanf:"device"`    // preferred device name (empty = system default)
	Exclusive bool   `koanf:"exclusive"` // request exclusive ("hog") access at startup
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Playback: PlaybackConfig{
			CrossfadeSeconds: 3,
			Gapless:          true,
			ReplayGain:       true,
			Volume:           1.0,
		},
		LogLevel: "info",
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.Playback.CrossfadeSeconds < 0.5 || cfg.Playback.CrossfadeSeconds > 15 {
		cfg.Playback.CrossfadeSeconds = 3
	}
	if cfg.Playback.Volume < 0 || cfg.Playback.Volume > 1 {
		cfg.Playback.Volume = 1.0
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/segue/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "segue", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}
