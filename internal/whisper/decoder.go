package whisper

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livesub/internal/audio"
	"github.com/obiente/translate/livesub/internal/recognize"
)

// DecoderConfig controls how the streaming decoder endpoints utterances.
type DecoderConfig struct {
	// WorkWindowSamples is how much new audio triggers a fresh partial.
	WorkWindowSamples int
	// Silence is how long the input must stay below SilenceRMS to end an utterance.
	Silence time.Duration
	// MaxUtterance forces a final once the buffered audio reaches this length.
	MaxUtterance time.Duration
	// SilenceRMS is the RMS level below which a chunk counts as silent.
	SilenceRMS float64
}

// DefaultDecoderConfig returns 0.5s work windows, 600ms end-of-utterance
// silence and a 15s utterance cap.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		WorkWindowSamples: 8000,
		Silence:           600 * time.Millisecond,
		MaxUtterance:      15 * time.Second,
		SilenceRMS:        300,
	}
}

// sentenceEndings close a sentence in whisper output.
const sentenceEndings = ".!?。！？♪*])"

// StreamDecoder adapts an Engine to the recognize.Decoder contract. Audio of
// the current utterance is buffered and re-transcribed every work window to
// produce partials. A final is produced by trailing silence, the utterance
// cap, or a transcription that ends a sentence and is unchanged over two
// passes. A sentence final restarts the buffer but the speaker is still
// talking, so its text is cut from the next transcriptions.
type StreamDecoder struct {
	engine Engine
	cfg    DecoderConfig

	samples   []float32
	fresh     int // samples not yet covered by a transcription
	silent    int // consecutive trailing silent samples
	voiced    bool
	lastText  string
	finalized string // last sentence final within the current stretch of speech
}

var _ recognize.Decoder = (*StreamDecoder)(nil)

// NewStreamDecoder wraps engine. Zero config fields take the defaults.
func NewStreamDecoder(engine Engine, cfg DecoderConfig) *StreamDecoder {
	def := DefaultDecoderConfig()
	if cfg.WorkWindowSamples <= 0 {
		cfg.WorkWindowSamples = def.WorkWindowSamples
	}
	if cfg.Silence <= 0 {
		cfg.Silence = def.Silence
	}
	if cfg.MaxUtterance <= 0 {
		cfg.MaxUtterance = def.MaxUtterance
	}
	if cfg.SilenceRMS <= 0 {
		cfg.SilenceRMS = def.SilenceRMS
	}
	return &StreamDecoder{engine: engine, cfg: cfg}
}

// Accept feeds one PCM16LE chunk at SampleRate.
func (d *StreamDecoder) Accept(chunk []byte) (recognize.Update, error) {
	pcm, err := audio.DecodePCM16LE(chunk)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return recognize.Partial(d.lastText), nil
	}

	if audio.RMS(pcm) < d.cfg.SilenceRMS {
		d.silent += len(pcm)
	} else {
		d.silent = 0
		d.voiced = true
	}

	if !d.voiced {
		// leading silence is not worth transcribing
		d.reset()
		d.finalized = ""
		return recognize.Partial(""), nil
	}

	d.samples = append(d.samples, audio.Float32(pcm)...)
	d.fresh += len(pcm)

	endOfSpeech := d.silent >= samplesFor(d.cfg.Silence)
	tooLong := len(d.samples) >= samplesFor(d.cfg.MaxUtterance)
	if endOfSpeech || tooLong {
		text := d.lastText
		if d.fresh > 0 {
			text, err = d.transcribe()
			if err != nil {
				return nil, err
			}
		}
		log.Debug().Str("text", text).Bool("silence", endOfSpeech).Int("samples", len(d.samples)).Msg("whisper: utterance final")
		d.reset()
		if endOfSpeech {
			d.finalized = ""
		} else {
			d.finalized = text
		}
		return recognize.Final(text), nil
	}

	if d.fresh >= d.cfg.WorkWindowSamples {
		prev := d.lastText
		text, err := d.transcribe()
		if err != nil {
			return nil, err
		}
		if text != "" && text == prev && endsSentence(text) {
			log.Debug().Str("text", text).Msg("whisper: sentence final")
			d.reset()
			d.finalized = text
			return recognize.Final(text), nil
		}
	}
	return recognize.Partial(d.lastText), nil
}

func (d *StreamDecoder) transcribe() (string, error) {
	text, _, err := d.engine.Process(d.samples)
	if err != nil {
		// keep the buffer so the next window retries with the same audio
		return "", err
	}
	text = strings.TrimSpace(text)
	if d.finalized != "" {
		if rest, ok := strings.CutPrefix(text, d.finalized); ok {
			text = strings.TrimSpace(rest)
		}
	}
	d.fresh = 0
	d.lastText = text
	return text, nil
}

func endsSentence(text string) bool {
	last, _ := utf8.DecodeLastRuneInString(text)
	return strings.ContainsRune(sentenceEndings, last)
}

func (d *StreamDecoder) reset() {
	d.samples = d.samples[:0]
	d.fresh = 0
	d.silent = 0
	d.voiced = false
	d.lastText = ""
}

// Close releases the engine.
func (d *StreamDecoder) Close() error {
	return d.engine.Close()
}

func samplesFor(dur time.Duration) int {
	return int(dur.Seconds() * SampleRate)
}
