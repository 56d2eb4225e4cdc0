//go:build !windows

// Package stderr captures output from C libraries (ALSA, PortAudio)
// that write directly to file descriptor 2, bypassing Go's os.Stderr.
// Without it their warnings interleave raw text with the daemon's
// structured log stream.
package stderr

import (
	"bufio"
	"os"
	"strings"
	"syscall"
)

var (
	lines      = make(chan string, 100)
	origStderr int
	pipeRead   *os.File
	pipeWrite  *os.File
	started    bool
)

// Capture redirects fd 2 into an internal pipe and returns a file
// backed by the original stderr, so the caller can keep logging there.
// Must run before any C library initialization. On error the program
// can continue, native warnings just stay on the original stderr.
func Capture() (*os.File, error) {
	if started {
		return os.NewFile(uintptr(origStderr), "stderr"), nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return os.Stderr, err
	}

	origStderr, err = syscall.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return os.Stderr, err
	}

	if err := syscall.Dup2(int(w.Fd()), int(os.Stderr.Fd())); err != nil {
		_ = syscall.Close(origStderr)
		r.Close()
		w.Close()
		return os.Stderr, err
	}

	pipeRead = r
	pipeWrite = w
	started = true

	go func() {
		scanner := bufio.NewScanner(pipeRead)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			default:
				// Full buffer drops the line rather than blocking.
			}
		}
	}()

	return os.NewFile(uintptr(origStderr), "stderr"), nil
}

// Lines returns the captured native library output, one line at a time.
func Lines() <-chan string {
	return lines
}

// Restore puts the original stderr back on fd 2. Call on exit.
func Restore() {
	if !started {
		return
	}

	_ = syscall.Dup2(origStderr, int(os.Stderr.Fd()))
	_ = syscall.Close(origStderr)

	pipeWrite.Close()
	pipeRead.Close()

	close(lines)
	started = false
}
