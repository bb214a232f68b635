//go:build whisper_cpp

package whisper

import (
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"
	"sync"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"
)

// EngineCPP is the whisper.cpp-backed implementation of Engine.
type EngineCPP struct {
	model    whisperpkg.Model
	threads  uint
	language string     // configured language ("auto" for auto-detection)
	mu       sync.Mutex // Protect concurrent access to the model
}

func NewEngine(modelPath string, threads uint) (Engine, error) {
	if threads == 0 {
		threads = uint(runtime.NumCPU())
		log.Info().Uint("threads", threads).Msg("whisper: using default thread count (CPU cores)")
	} else {
		log.Info().Uint("threads", threads).Msg("whisper: using configured thread count")
	}

	m, err := whisperpkg.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	log.Info().Str("model", modelPath).Msg("whisper: model loaded successfully")
	return &EngineCPP{
		model:    m,
		threads:  threads,
		language: "auto",
	}, nil
}

func (e *EngineCPP) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// SetLanguage configures the language for transcription. Use "auto" for auto-detection.
func (e *EngineCPP) SetLanguage(lang string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if lang == "" {
		lang = "auto"
	}
	if lang != "auto" && !slices.Contains(e.model.Languages(), lang) {
		return fmt.Errorf("whisper: model does not support language %q", lang)
	}
	e.language = lang
	log.Info().Str("language", lang).Msg("whisper: language configured")
	return nil
}

// Process implements Engine by running a full-context transcription.
// This method is thread-safe but processes serially to avoid whisper.cpp crashes.
func (e *EngineCPP) Process(samples []float32) (string, string, error) {
	if len(samples) == 0 {
		return "", "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// If samples are too short, return empty (< 100ms)
	if len(samples) < SampleRate/10 {
		log.Debug().Int("samples", len(samples)).Msg("whisper: skipping too-short audio")
		return "", "", nil
	}

	// Limit max audio length to prevent crashes (30 seconds at 16kHz)
	const maxSamples = 30 * SampleRate
	if len(samples) > maxSamples {
		log.Warn().Int("samples", len(samples)).Int("max", maxSamples).Msg("whisper: truncating long audio")
		samples = samples[len(samples)-maxSamples:]
	}

	ctx, err := e.model.NewContext()
	if err != nil {
		return "", "", fmt.Errorf("create context: %w", err)
	}

	ctx.SetThreads(e.threads)
	if err := ctx.SetLanguage(e.language); err != nil {
		log.Warn().Err(err).Str("language", e.language).Msg("whisper: language rejected, using model default")
	}
	ctx.SetSplitOnWord(true)
	ctx.SetTokenTimestamps(true)
	ctx.SetMaxSegmentLength(0)
	ctx.SetMaxTokensPerSegment(0)
	ctx.SetAudioCtx(0)

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		log.Error().Err(err).Int("samples", len(samples)).Msg("whisper: process failed")
		return "", "", fmt.Errorf("process audio: %w", err)
	}

	var segments []string
	for {
		seg, err := ctx.NextSegment()
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Warn().Err(err).Msg("whisper: error reading segment")
			break
		}
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			segments = append(segments, text)
		}
	}

	full := strings.TrimSpace(strings.Join(segments, " "))
	lang := ctx.Language()
	if lang == "" {
		lang = ctx.DetectedLanguage()
	}

	log.Debug().
		Str("full", full).
		Str("lang", lang).
		Int("segments", len(segments)).
		Int("samples", len(samples)).
		Msg("whisper: transcription complete")

	return full, lang, nil
}
