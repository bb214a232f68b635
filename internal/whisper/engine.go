package whisper

// Engine is a small interface for whisper transcription.
// Implementations may be a no-op (stub) or backed by whisper.cpp (build tag: whisper_cpp).
type Engine interface {
	// Process transcribes mono 16 kHz PCM32F samples.
	// Returns (text, language).
	Process(samples []float32) (string, string, error)
	// SetLanguage configures the language for transcription. Use "auto" for auto-detection.
	// It fails for a code the model does not know.
	SetLanguage(lang string) error
	Close() error
}

// SampleRate is the only input rate whisper accepts.
const SampleRate = 16000
