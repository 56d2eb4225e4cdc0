package main

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/segue/internal/backend"
	"github.com/llehouerou/segue/internal/config"
	"github.com/llehouerou/segue/internal/device"
	"github.com/llehouerou/segue/internal/engine"
	"github.com/llehouerou/segue/internal/library"
	"github.com/llehouerou/segue/internal/mpris"
	"github.com/llehouerou/segue/internal/playback"
	"github.com/llehouerou/segue/internal/queue"
	"github.com/llehouerou/segue/internal/state"
	"github.com/llehouerou/segue/internal/stderr"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "segue: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Capture fd 2 before PortAudio initializes so ALSA warnings land
	// in the log instead of splattering across the daemon's output.
	logOut, capErr := stderr.Capture()
	defer stderr.Restore()

	log := newLogger(cfg.LogLevel, logOut)
	if capErr != nil {
		log.Warn().Err(capErr).Msg("could not capture native stderr")
	}
	go func() {
		for line := range stderr.Lines() {
			log.Debug().Str("source", "native").Msg(line)
		}
	}()

	stateMgr, err := state.Open()
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer stateMgr.Close()

	be, err := backend.NewPortAudio(log)
	if err != nil {
		return fmt.Errorf("init audio backend: %w", err)
	}
	defer be.Close()

	registry, err := device.New(be, cfg.Output.Device, log)
	if err != nil {
		return fmt.Errorf("init device registry: %w", err)
	}
	registry.Start()
	defer registry.Close()

	lib := library.NewFS(log)
	eng := engine.New(be, registry, cfg.Playback.Volume, cfg.Playback.ReplayGain, log)

	svc := playback.New(eng, queue.New(), registry, lib, playback.Options{
		Crossfade:     cfg.Playback.Crossfade,
		CrossfadeTime: time.Duration(cfg.Playback.CrossfadeSeconds * float64(time.Second)),
		Gapless:       cfg.Playback.Gapless,
		AutoExtend:    true,
	}, log)
	defer svc.Close()

	if cfg.Output.Exclusive {
		if err := svc.SetExclusiveAccess(true); err != nil {
			log.Warn().Err(err).Msg("exclusive access unavailable, using shared mode")
		}
	}

	tracks := collectTracks(lib, args, log)
	switch {
	case len(tracks) > 0:
		if err := svc.PlayTracks(tracks, 0); err != nil {
			return fmt.Errorf("start playback: %w", err)
		}
	default:
		if snap, err := stateMgr.GetSession(); err != nil {
			log.Warn().Err(err).Msg("could not load previous session")
		} else if len(snap.Tracks) > 0 {
			if err := svc.Restore(*snap); err != nil {
				log.Warn().Err(err).Msg("could not restore previous session")
			} else {
				log.Info().Int("tracks", len(snap.Tracks)).Msg("restored previous session")
			}
		}
	}

	mp, err := mpris.New(svc)
	if err != nil {
		log.Warn().Err(err).Msg("mpris unavailable")
	} else {
		defer mp.Close()
	}

	go persistLoop(svc, stateMgr)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	sig := <-sigc
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	stateMgr.SaveSession(svc.Snapshot())
	return nil
}

// persistLoop saves the session whenever the queue, playing track, mode
// or volume changes, so an unclean exit loses at most the position.
func persistLoop(svc playback.Service, mgr *state.Manager) {
	sub := svc.Subscribe()
	for {
		select {
		case <-sub.Done:
			return
		case <-sub.TrackChanged:
		case <-sub.QueueChanged:
		case <-sub.ModeChanged:
		case <-sub.VolumeChanged:
		case <-sub.StateChanged:
		}
		snap := svc.Snapshot()
		select {
		case <-sub.Done:
			// A closed service snapshots empty; keep the saved session.
			return
		default:
		}
		mgr.SaveSession(snap)
	}
}

// collectTracks expands command line arguments into a track list.
// Files resolve through the library, directories are walked recursively
// in name order, and http(s) URLs pass through as remote tracks.
func collectTracks(lib *library.FS, args []string, log zerolog.Logger) []library.Track {
	var tracks []library.Track
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			tracks = append(tracks, library.Track{
				ID:      arg,
				Locator: arg,
				Title:   filepath.Base(arg),
			})
			continue
		}

		abs, err := filepath.Abs(arg)
		if err != nil {
			log.Warn().Str("arg", arg).Err(err).Msg("skipping argument")
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			log.Warn().Str("arg", arg).Err(err).Msg("skipping argument")
			continue
		}

		if !info.IsDir() {
			if t, err := lib.Resolve(abs); err == nil {
				tracks = append(tracks, t)
			} else {
				log.Warn().Str("path", abs).Err(err).Msg("skipping file")
			}
			continue
		}

		var paths []string
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && library.IsAudioFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			log.Warn().Str("dir", abs).Err(err).Msg("skipping directory")
			continue
		}
		sort.Strings(paths)
		for _, path := range paths {
			if t, err := lib.Resolve(path); err == nil {
				tracks = append(tracks, t)
			}
		}
	}
	return tracks
}

func newLogger(level string, out *os.File) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
