//go:build windows

// Package stderr provides a no-op implementation for Windows.
// Windows audio libraries do not produce the same fd 2 noise as ALSA.
package stderr

import "os"

// Capture is a no-op on Windows.
func Capture() (*os.File, error) {
	return os.Stderr, nil
}

// Lines returns a channel that never delivers on Windows.
func Lines() <-chan string {
	return make(chan string)
}

// Restore is a no-op on Windows.
func Restore() {}
