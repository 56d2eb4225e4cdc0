package backend

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/gopxl/beep/v2"
	mp3 "github.com/llehouerou/go-mp3"
)

// mp3Stream bridges llehouerou/go-mp3 into a beep.StreamSeekCloser.
// The decoder emits interleaved stereo 16-bit little-endian PCM.
type mp3Stream struct {
	dec *mp3.Decoder
	src io.Closer
	buf []byte
	err error
}

const mp3FrameBytes = 4 // stereo, 2 bytes per channel

func decodeMP3(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	dec, err := mp3.NewDecoder(rc)
	if err != nil {
		return nil, beep.Format{}, err
	}
	rate := dec.SampleRate()
	if rate <= 0 {
		return nil, beep.Format{}, errors.New("mp3: invalid sample rate")
	}

	s := &mp3Stream{dec: dec, src: rc}
	format := beep.Format{
		SampleRate:  beep.SampleRate(rate),
		NumChannels: 2,
		Precision:   2,
	}
	return s, format, nil
}

func (s *mp3Stream) Stream(samples [][2]float64) (n int, ok bool) {
	if s.err != nil {
		return 0, false
	}

	want := len(samples) * mp3FrameBytes
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}

	read, err := io.ReadFull(s.dec, s.buf[:want])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		s.err = err
		return 0, false
	}

	frames := read / mp3FrameBytes
	if frames == 0 {
		return 0, false
	}
	for i := 0; i < frames; i++ {
		p := s.buf[i*mp3FrameBytes:]
		left := int16(binary.LittleEndian.Uint16(p))      //nolint:gosec // PCM sample
		right := int16(binary.LittleEndian.Uint16(p[2:])) //nolint:gosec // PCM sample
		samples[i][0] = float64(left) / 32768.0
		samples[i][1] = float64(right) / 32768.0
	}
	return frames, true
}

func (s *mp3Stream) Err() error {
	return s.err
}

func (s *mp3Stream) Len() int {
	if count := s.dec.SampleCount(); count > 0 {
		return int(count)
	}
	return 0
}

func (s *mp3Stream) Position() int {
	return int(s.dec.SamplePosition())
}

func (s *mp3Stream) Seek(p int) error {
	p = min(max(p, 0), s.Len())
	if err := s.dec.SeekToSample(int64(p)); err != nil {
		return err
	}
	s.err = nil
	return nil
}

func (s *mp3Stream) Close() error {
	return s.src.Close()
}
