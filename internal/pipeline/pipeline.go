// Package pipeline wires capture, segmentation and translation together and
// owns their start/stop lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livesub/internal/capture"
	"github.com/obiente/translate/livesub/internal/event"
	"github.com/obiente/translate/livesub/internal/queue"
	"github.com/obiente/translate/livesub/internal/recognize"
	"github.com/obiente/translate/livesub/internal/segment"
	"github.com/obiente/translate/livesub/internal/translation"
)

var (
	// ErrNotReady means the recognition model failed its readiness check.
	ErrNotReady = errors.New("recognition model not ready")
	// ErrRunning means Start was called on a pipeline that already started.
	ErrRunning = errors.New("pipeline already started")
)

// abortGrace is how long Stop waits after forcing capture closed.
const abortGrace = 500 * time.Millisecond

type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ReadyFunc reports whether the recognition model can be loaded, with a
// reason when it cannot.
type ReadyFunc func() (bool, string)

// DecoderFactory loads a decoder. It runs on the segmentation goroutine.
type DecoderFactory func() (recognize.Decoder, error)

// Translator is what the pipeline needs from a bound translation route.
type Translator interface {
	segment.Translator
	Plan(ctx context.Context) translation.Plan
}

type Config struct {
	Backend     capture.Backend
	Device      capture.Selector
	Capture     capture.WorkerConfig
	QueueSize   int
	Segment     segment.Config
	StopTimeout time.Duration
}

// Snapshot is a point-in-time view for status endpoints.
type Snapshot struct {
	State   string `json:"state"`
	Session string `json:"session,omitempty"`
	Device  string `json:"device,omitempty"`
	Queued  int    `json:"queued"`
	Dropped uint64 `json:"dropped"`
	Error   string `json:"error,omitempty"`
}

// Pipeline runs one capture session. It is single use: after Stop, build a
// new one.
type Pipeline struct {
	cfg        Config
	ready      ReadyFunc
	newDecoder DecoderFactory
	tr         Translator
	sink       event.Sink
	clk        clock.Clock

	mu       sync.Mutex
	state    State
	starting chan struct{}
	session  string
	device   capture.DeviceInfo
	queue    *queue.Queue[[]byte]
	worker   *capture.Worker
	cancel   context.CancelFunc
	capDone  chan struct{}
	segDone  chan struct{}
	done     chan struct{}
	err      error

	failOnce sync.Once
}

type Option func(*Pipeline)

// WithClock replaces the clock used for the stop timeout.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clk = c }
}

// New builds an idle pipeline. A nil ready func skips the readiness check;
// a nil tr passes captions through untranslated.
func New(cfg Config, ready ReadyFunc, newDecoder DecoderFactory, tr Translator, sink event.Sink, opts ...Option) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 3 * time.Second
	}
	if sink == nil {
		sink = event.Nop{}
	}
	p := &Pipeline{
		cfg:        cfg,
		ready:      ready,
		newDecoder: newDecoder,
		tr:         tr,
		sink:       sink,
		clk:        clock.New(),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start checks the model, resolves the device and starts the segmentation
// worker, then the capture worker. Cancelling ctx stops the pipeline. The
// lock is not held while the model loads, so State and Snapshot stay
// responsive and report Starting.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != Idle {
		p.mu.Unlock()
		return ErrRunning
	}
	p.state = Starting
	p.starting = make(chan struct{})
	p.mu.Unlock()

	err := p.start(ctx)
	p.mu.Lock()
	if err != nil {
		p.state = Idle
	}
	close(p.starting)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-p.done:
		}
	}()
	return nil
}

func (p *Pipeline) start(ctx context.Context) error {
	if p.ready != nil {
		if ok, reason := p.ready(); !ok {
			return fmt.Errorf("%w: %s", ErrNotReady, reason)
		}
	}
	dev, err := capture.Resolve(p.cfg.Backend, p.cfg.Device)
	if err != nil {
		return fmt.Errorf("select device: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.session = uuid.NewString()
	p.device = dev
	p.queue = queue.New[[]byte](p.cfg.QueueSize)
	p.cancel = cancel
	p.capDone = make(chan struct{})
	p.segDone = make(chan struct{})
	segCfg := p.cfg.Segment
	segCfg.Session = p.session
	p.mu.Unlock()

	loaded := make(chan error, 1)
	go p.runSegmentation(runCtx, segCfg, loaded)
	select {
	case err := <-loaded:
		if err != nil {
			cancel()
			close(p.capDone)
			<-p.segDone
			return fmt.Errorf("load decoder: %w", err)
		}
	case <-ctx.Done():
		cancel()
		close(p.capDone)
		return ctx.Err()
	}

	// reported before capture runs so they precede any capture failure
	p.sink.Status(p.translationStatus(ctx))
	p.sink.Status("listening")

	p.mu.Lock()
	p.worker = capture.NewWorker(p.cfg.Backend, dev, p.cfg.Capture, p.queue, p.sink)
	p.state = Running
	go p.runCapture(runCtx)
	p.mu.Unlock()

	log.Info().Str("session", p.session).Str("device", dev.String()).Msg("pipeline: started")
	return nil
}

func (p *Pipeline) translationStatus(ctx context.Context) string {
	if p.tr == nil {
		return "translation: disabled"
	}
	return "translation: " + p.tr.Plan(ctx).String()
}

func (p *Pipeline) runSegmentation(ctx context.Context, cfg segment.Config, loaded chan<- error) {
	defer close(p.segDone)
	var dec recognize.Decoder
	var err error
	if p.newDecoder == nil {
		err = errors.New("no decoder configured")
	} else {
		dec, err = p.newDecoder()
	}
	loaded <- err
	if err != nil {
		return
	}
	defer func() {
		if err := dec.Close(); err != nil {
			log.Warn().Err(err).Msg("pipeline: decoder close failed")
		}
	}()

	var tr segment.Translator
	if p.tr != nil {
		tr = p.tr
	}
	eng := segment.New(cfg, dec, tr, p.sink, segment.WithClock(p.clk))
	if err := eng.Run(ctx, p.queue); err != nil {
		p.fail(fmt.Errorf("segmentation: %w", err))
	}
}

func (p *Pipeline) runCapture(ctx context.Context) {
	defer close(p.capDone)
	err := p.worker.Run(ctx)
	switch {
	case err != nil:
		p.fail(fmt.Errorf("capture: %w", err))
	case ctx.Err() == nil:
		p.sink.Status("audio source ended")
		go p.Stop()
	}
}

// fail records the first fatal error, reports it and stops the pipeline.
func (p *Pipeline) fail(err error) {
	p.failOnce.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		log.Error().Err(err).Msg("pipeline: worker failed")
		p.sink.Error(err.Error())
		go p.Stop()
	})
}

// Stop signals both workers, waits up to the stop timeout, then forces the
// capture stream closed. A stuck segmentation goroutine is abandoned. Stop
// may be called any number of times from any goroutine.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	switch p.state {
	case Starting:
		ch := p.starting
		p.mu.Unlock()
		<-ch
		p.Stop()
		return
	case Idle:
		p.state = Stopped
		close(p.done)
		p.mu.Unlock()
		return
	case Stopping, Stopped:
		p.mu.Unlock()
		<-p.done
		return
	}
	p.state = Stopping
	cancel, worker := p.cancel, p.worker
	p.mu.Unlock()

	log.Info().Msg("pipeline: stopping")
	cancel()
	exited := make(chan struct{})
	go func() {
		<-p.capDone
		<-p.segDone
		close(exited)
	}()

	timer := p.clk.Timer(p.cfg.StopTimeout)
	select {
	case <-exited:
		timer.Stop()
	case <-timer.C:
		log.Warn().Dur("timeout", p.cfg.StopTimeout).Msg("pipeline: workers did not exit, forcing capture closed")
		worker.Abort()
		grace := p.clk.Timer(abortGrace)
		select {
		case <-exited:
			grace.Stop()
		case <-grace.C:
			log.Warn().Msg("pipeline: abandoning workers still running")
		}
	}

	p.mu.Lock()
	p.state = Stopped
	p.mu.Unlock()
	p.sink.Level(0)
	p.sink.Status("stopped")
	log.Info().Str("session", p.session).Uint64("dropped_chunks", p.queue.Dropped()).Msg("pipeline: stopped")
	close(p.done)
}

// Done is closed once the pipeline has stopped.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// Err is the fatal error that stopped the pipeline, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Session is the ID stamped on captions, empty until Start.
func (p *Pipeline) Session() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{State: p.state.String(), Session: p.session}
	if p.device.Name != "" {
		s.Device = p.device.String()
	}
	if p.queue != nil {
		s.Queued = p.queue.Len()
		s.Dropped = p.queue.Dropped()
	}
	if p.err != nil {
		s.Error = p.err.Error()
	}
	return s
}
