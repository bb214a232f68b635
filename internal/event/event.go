// Package event carries pipeline output to whatever renders it.
package event

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Caption is one committed segment paired with its translation. Both texts
// are already clipped to their configured caps.
type Caption struct {
	Session    string    `json:"session"`
	Seq        int       `json:"seq"`
	Source     string    `json:"source"`
	Translated string    `json:"translated"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Time       time.Time `json:"time"`
}

// Sink receives pipeline events. Implementations must not block for long:
// Level is called from the capture loop and Caption from the segmentation loop.
type Sink interface {
	// Level reports the input level in [0,100].
	Level(percent float64)
	Caption(c Caption)
	Status(msg string)
	Error(msg string)
}

// Multi fans events out to every sink in order.
type Multi []Sink

func (m Multi) Level(percent float64) {
	for _, s := range m {
		s.Level(percent)
	}
}

func (m Multi) Caption(c Caption) {
	for _, s := range m {
		s.Caption(c)
	}
}

func (m Multi) Status(msg string) {
	for _, s := range m {
		s.Status(msg)
	}
}

func (m Multi) Error(msg string) {
	for _, s := range m {
		s.Error(msg)
	}
}

// LogSink writes events to the global zerolog logger.
type LogSink struct{}

func (LogSink) Level(percent float64) {
	log.Trace().Float64("level", percent).Msg("input level")
}

func (LogSink) Caption(c Caption) {
	log.Info().
		Int("seq", c.Seq).
		Str("src_lang", c.SourceLang).
		Str("tgt_lang", c.TargetLang).
		Str("source", c.Source).
		Str("translated", c.Translated).
		Msg("caption")
}

func (LogSink) Status(msg string) {
	log.Info().Str("status", msg).Msg("pipeline status")
}

func (LogSink) Error(msg string) {
	log.Error().Str("error", msg).Msg("pipeline error")
}

// Nop discards every event.
type Nop struct{}

func (Nop) Level(float64)   {}
func (Nop) Caption(Caption) {}
func (Nop) Status(string)   {}
func (Nop) Error(string)    {}
