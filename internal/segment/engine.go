// Package segment turns a stream of recognizer updates into committed,
// translated captions.
package segment

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livesub/internal/event"
	"github.com/obiente/translate/livesub/internal/recognize"
)

// DefaultPunctuation ends a partial immediately when it is the last character.
const DefaultPunctuation = ".,!?，。！？、;；:"

// Config holds the segmentation thresholds.
type Config struct {
	// IdleTimeout commits pending text that has not changed for this long.
	IdleTimeout time.Duration
	// MinChars is the shortest pending text the idle timeout commits.
	MinChars int
	// SourceMax clips source captions and forces a commit once a partial reaches it.
	SourceMax int
	// TargetMax clips translated captions.
	TargetMax int
	// PollInterval bounds each queue wait and paces the idle check.
	PollInterval time.Duration
	Punctuation  string

	SourceLang string
	TargetLang string
	Session    string
}

// DefaultConfig returns the stock thresholds: 1s idle timeout, 5 characters,
// 72/100 character caps and a 200ms poll.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:  time.Second,
		MinChars:     5,
		SourceMax:    72,
		TargetMax:    100,
		PollInterval: 200 * time.Millisecond,
		Punctuation:  DefaultPunctuation,
	}
}

// Translator translates a committed segment. It must return its input when
// it cannot translate.
type Translator interface {
	Translate(ctx context.Context, text string) string
}

// Source yields chunks in production order.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) ([]byte, bool)
}

// State is the segmentation state.
type State int

const (
	Idle State = iota
	Accumulating
)

func (s State) String() string {
	if s == Accumulating {
		return "accumulating"
	}
	return "idle"
}

// Engine owns the pending text for one pipeline run. It is driven by a
// single goroutine and is not safe for concurrent use.
type Engine struct {
	cfg    Config
	dec    recognize.Decoder
	tr     Translator
	sink   event.Sink
	clk    clock.Clock
	puncts map[rune]bool

	pending    string
	heard      string // full partial text behind pending
	spoken     string // part of the current utterance already committed
	lastChange time.Time
	seq        int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clk = c }
}

// New returns an engine in the Idle state. A nil tr disables translation.
func New(cfg Config, dec recognize.Decoder, tr Translator, sink event.Sink, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.MinChars < 0 {
		cfg.MinChars = 0
	}
	if cfg.SourceMax <= 0 {
		cfg.SourceMax = def.SourceMax
	}
	if cfg.TargetMax <= 0 {
		cfg.TargetMax = def.TargetMax
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Punctuation == "" {
		cfg.Punctuation = def.Punctuation
	}
	if sink == nil {
		sink = event.Nop{}
	}
	e := &Engine{
		cfg:    cfg,
		dec:    dec,
		tr:     tr,
		sink:   sink,
		clk:    clock.New(),
		puncts: make(map[rune]bool),
	}
	for _, r := range cfg.Punctuation {
		e.puncts[r] = true
	}
	for _, o := range opts {
		o(e)
	}
	e.lastChange = e.clk.Now()
	return e
}

// Run consumes chunks until ctx is done. Pending text is dropped on exit.
func (e *Engine) Run(ctx context.Context, src Source) error {
	log.Info().Dur("idle_timeout", e.cfg.IdleTimeout).Int("min_chars", e.cfg.MinChars).Msg("segment: engine started")
	defer log.Info().Int("commits", e.seq).Msg("segment: engine stopped")

	e.clear()
	e.spoken = ""
	for {
		if ctx.Err() != nil {
			return nil
		}
		chunk, ok := src.Pop(ctx, e.cfg.PollInterval)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			e.Tick(ctx)
			continue
		}
		e.HandleChunk(ctx, chunk)
	}
}

// HandleChunk feeds one chunk to the decoder and applies the result.
func (e *Engine) HandleChunk(ctx context.Context, chunk []byte) {
	up, err := e.dec.Accept(chunk)
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(chunk)).Msg("segment: decode failed")
		e.sink.Status(fmt.Sprintf("recognition error: %v", err))
		return
	}

	switch u := up.(type) {
	case recognize.Final:
		if text := e.unspoken(strings.TrimSpace(u.Text())); text != "" {
			e.commit(ctx, text)
		}
		e.clear()
		e.spoken = ""
		return
	case recognize.Partial:
		full := strings.TrimSpace(u.Text())
		text := e.unspoken(full)
		if text != "" && text != e.pending {
			e.pending = text
			e.heard = full
			e.lastChange = e.clk.Now()
			if e.flushNow(text) {
				e.commitPending(ctx)
				return
			}
		}
	}
	e.checkIdle(ctx)
}

// Tick runs the idle-timeout check. Run calls it whenever a poll times out.
func (e *Engine) Tick(ctx context.Context) {
	e.checkIdle(ctx)
}

// State reports whether text is pending.
func (e *Engine) State() State {
	if e.pending == "" {
		return Idle
	}
	return Accumulating
}

// Pending returns the uncommitted partial text.
func (e *Engine) Pending() string { return e.pending }

// Commits returns how many captions were emitted.
func (e *Engine) Commits() int { return e.seq }

func (e *Engine) flushNow(text string) bool {
	last, _ := utf8.DecodeLastRuneInString(text)
	if e.puncts[last] {
		return true
	}
	return utf8.RuneCountInString(text) >= e.cfg.SourceMax
}

func (e *Engine) checkIdle(ctx context.Context) {
	if e.pending == "" {
		return
	}
	if e.clk.Since(e.lastChange) < e.cfg.IdleTimeout {
		return
	}
	if utf8.RuneCountInString(e.pending) < e.cfg.MinChars {
		return
	}
	log.Debug().Str("text", e.pending).Msg("segment: idle flush")
	e.commitPending(ctx)
}

// unspoken strips the already committed head of the utterance from text.
// Decoders repeat the whole utterance in every update, so without this a
// partial commit would be committed again by the next update.
func (e *Engine) unspoken(text string) string {
	if e.spoken == "" {
		return text
	}
	if rest, ok := strings.CutPrefix(text, e.spoken); ok {
		return strings.TrimSpace(rest)
	}
	if strings.HasPrefix(e.spoken, text) {
		return ""
	}
	return text
}

func (e *Engine) commitPending(ctx context.Context) {
	e.commit(ctx, e.pending)
	e.spoken = e.heard
	e.clear()
}

func (e *Engine) clear() {
	e.pending = ""
	e.heard = ""
	e.lastChange = e.clk.Now()
}

func (e *Engine) commit(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	translated := text
	if e.tr != nil {
		if t := e.tr.Translate(ctx, text); strings.TrimSpace(t) != "" {
			translated = t
		}
	}
	e.seq++
	c := event.Caption{
		Session:    e.cfg.Session,
		Seq:        e.seq,
		Source:     Clip(text, e.cfg.SourceMax),
		Translated: Clip(translated, e.cfg.TargetMax),
		SourceLang: e.cfg.SourceLang,
		TargetLang: e.cfg.TargetLang,
		Time:       e.clk.Now(),
	}
	log.Debug().Int("seq", c.Seq).Str("source", c.Source).Msg("segment: commit")
	e.sink.Caption(c)
}
