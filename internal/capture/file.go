package capture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/obiente/translate/livesub/internal/audio"
)

// FileBackend exposes a WAV file as a single capture device. Reads are paced
// at real time and the file is followed by Tail of silence so a recognizer
// can close the last utterance.
type FileBackend struct {
	name     string
	samples  []int16
	rate     int
	Realtime bool
	Tail     time.Duration
}

// NewFileBackend decodes path up front.
func NewFileBackend(path string) (*FileBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	samples, rate, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &FileBackend{
		name:     "file: " + filepath.Base(path),
		samples:  samples,
		rate:     rate,
		Realtime: true,
		Tail:     2 * time.Second,
	}, nil
}

// NewSampleBackend serves in-memory samples, mostly for tests and demos.
func NewSampleBackend(name string, samples []int16, rate int) *FileBackend {
	return &FileBackend{name: name, samples: samples, rate: rate}
}

func (b *FileBackend) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{Index: 0, Name: b.name, MaxInputChannels: 1, DefaultSampleRate: float64(b.rate)}}, nil
}

// Open ignores the requested rate: the stream always runs at the file's rate.
func (b *FileBackend) Open(index int, cfg StreamConfig) (Stream, error) {
	if index != 0 {
		return nil, fmt.Errorf("%w: index %d", ErrNoDevice, index)
	}
	tail := int(b.Tail.Seconds() * float64(b.rate))
	return &fileStream{
		samples:  b.samples,
		total:    len(b.samples) + tail,
		rate:     b.rate,
		realtime: b.Realtime,
		closed:   make(chan struct{}),
	}, nil
}

func (b *FileBackend) Close() error { return nil }

type fileStream struct {
	samples  []int16
	total    int
	rate     int
	realtime bool

	pos     int
	started time.Time
	closed  chan struct{}
	once    sync.Once
}

func (s *fileStream) Read(buf []int16) (int, error) {
	select {
	case <-s.closed:
		return 0, ErrClosed
	default:
	}
	if s.pos >= s.total {
		return 0, io.EOF
	}
	if s.started.IsZero() {
		s.started = time.Now()
	}
	n := len(buf)
	if rest := s.total - s.pos; n > rest {
		n = rest
	}
	for i := 0; i < n; i++ {
		if p := s.pos + i; p < len(s.samples) {
			buf[i] = s.samples[p]
		} else {
			buf[i] = 0
		}
	}
	s.pos += n

	if s.realtime {
		due := s.started.Add(time.Duration(float64(s.pos) / float64(s.rate) * float64(time.Second)))
		if wait := time.Until(due); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-t.C:
			case <-s.closed:
				return 0, ErrClosed
			}
		}
	}
	return n, nil
}

func (s *fileStream) SampleRate() int { return s.rate }

func (s *fileStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
