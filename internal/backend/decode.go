package backend

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

const (
	extMP3  = ".mp3"
	extFLAC = ".flac"
	extOGG  = ".ogg"
	extOGA  = ".oga"
	extWAV  = ".wav"
)

// Decode opens a local audio file and returns a seekable sample stream,
// its format, and the codec's native decode mode.
func Decode(path string) (beep.StreamSeekCloser, beep.Format, SampleKind, error) {
	ext := strings.ToLower(filepath.Ext(path))

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, SampleInteger, err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		kind     SampleKind
	)

	switch ext {
	case extMP3:
		streamer, format, err = decodeMP3(f)
		kind = SampleInteger
	case extFLAC:
		// Skip ID3v2 tag if present (some taggers add it to FLAC files)
		if err := skipID3v2(f); err != nil {
			f.Close()
			return nil, beep.Format{}, SampleInteger, err
		}
		streamer, format, err = flac.Decode(f)
		kind = SampleInteger
	case extOGG, extOGA:
		streamer, format, err = vorbis.Decode(f)
		kind = SampleFloat
	case extWAV:
		streamer, format, err = wav.Decode(f)
		kind = SampleInteger
	default:
		f.Close()
		return nil, beep.Format{}, SampleInteger, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, kind, err
	}

	return streamer, format, kind, nil
}

// Spool downloads a remote source to a temporary file and returns its
// path. Blocking; callers run it off the control goroutine.
func Spool(url string) (string, error) {
	resp, err := http.Get(url) //nolint:gosec // locator comes from the library
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}

	ext := filepath.Ext(strings.SplitN(url, "?", 2)[0])
	tmp, err := os.CreateTemp("", "segue-spool-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// skipID3v2 skips an ID3v2 tag if present at the beginning of the file.
// The FLAC decoder does not handle prepended ID3v2 tags.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := r.Read(header)
	if err != nil {
		return err
	}
	if n < 10 || string(header[0:3]) != "ID3" {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// ID3v2 size is a syncsafe integer in bytes 6-9 (7 bits per byte)
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
