package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livesub/internal/audio"
	"github.com/obiente/translate/livesub/internal/event"
)

// ChunkSink accepts resampled chunks without blocking. Push reports false
// when an older chunk had to be dropped.
type ChunkSink interface {
	Push(chunk []byte) bool
}

// WorkerConfig is the capture loop shape.
type WorkerConfig struct {
	FramesPerRead int
	TargetRate    int
}

// Worker owns one device stream: it reads fixed-size frames, meters and
// resamples them, and publishes the results.
type Worker struct {
	backend Backend
	device  DeviceInfo
	cfg     WorkerConfig
	out     ChunkSink
	sink    event.Sink

	mu      sync.Mutex
	stream  Stream
	aborted bool
	dropped uint64
}

// NewWorker prepares a worker for device. Nothing is opened until Run.
func NewWorker(b Backend, device DeviceInfo, cfg WorkerConfig, out ChunkSink, sink event.Sink) *Worker {
	if cfg.FramesPerRead <= 0 {
		cfg.FramesPerRead = 1024
	}
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = 16000
	}
	if sink == nil {
		sink = event.Nop{}
	}
	return &Worker{backend: b, device: device, cfg: cfg, out: out, sink: sink}
}

// Run captures until ctx is done, the source ends, or the device fails.
// Open and read failures are returned; the stream is closed on every path.
func (w *Worker) Run(ctx context.Context) error {
	stream, err := w.backend.Open(w.device.Index, StreamConfig{Channels: 1, FramesPerBuffer: w.cfg.FramesPerRead})
	if err != nil {
		return fmt.Errorf("open device %s: %w", w.device, err)
	}
	if !w.attach(stream) {
		closeStream(stream)
		return nil
	}
	defer w.detach()

	proc := audio.NewProcessor(stream.SampleRate(), w.cfg.TargetRate)
	log.Info().
		Str("device", w.device.String()).
		Int("source_rate", proc.SourceRate()).
		Int("target_rate", proc.TargetRate()).
		Int("frames", w.cfg.FramesPerRead).
		Msg("capture: stream opened")

	buf := make([]int16, w.cfg.FramesPerRead)
	for {
		if ctx.Err() != nil || w.isAborted() {
			return nil
		}
		n, err := stream.Read(buf)
		if err != nil {
			if ctx.Err() != nil || w.isAborted() {
				return nil
			}
			if errors.Is(err, io.EOF) {
				log.Info().Str("device", w.device.String()).Msg("capture: source ended")
				return nil
			}
			return fmt.Errorf("read device %s: %w", w.device, err)
		}
		if n == 0 {
			continue
		}
		level, chunk := proc.Process(buf[:n])
		w.sink.Level(level)
		if len(chunk) == 0 {
			continue
		}
		if !w.out.Push(chunk) {
			w.dropped++
			if w.dropped == 1 || w.dropped%100 == 0 {
				log.Warn().Uint64("dropped", w.dropped).Msg("capture: queue full, dropping oldest chunk")
			}
		}
	}
}

// Abort closes the stream from outside the capture goroutine so a blocked
// Read returns. Run then exits without reporting an error.
func (w *Worker) Abort() {
	w.mu.Lock()
	w.aborted = true
	s := w.stream
	w.mu.Unlock()
	if s != nil {
		closeStream(s)
	}
}

func (w *Worker) attach(s Stream) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.aborted {
		return false
	}
	w.stream = s
	return true
}

func (w *Worker) detach() {
	w.mu.Lock()
	s := w.stream
	w.stream = nil
	w.mu.Unlock()
	if s != nil {
		closeStream(s)
	}
}

func (w *Worker) isAborted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.aborted
}

// closeStream never lets a failing driver escape the capture goroutine.
func closeStream(s Stream) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("capture: stream close panicked")
		}
	}()
	if err := s.Close(); err != nil {
		log.Warn().Err(err).Msg("capture: stream close failed")
	}
}
