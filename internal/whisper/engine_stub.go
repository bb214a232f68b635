//go:build !whisper_cpp

package whisper

import "github.com/rs/zerolog/log"

// Default stub (no cgo) so the project builds without whisper_cpp tag.
type stubEngine struct{}

func NewEngine(modelPath string, threads uint) (Engine, error) {
	log.Warn().Str("model", modelPath).Msg("whisper: built without whisper_cpp tag, recognition disabled")
	return &stubEngine{}, nil
}
func (e *stubEngine) Close() error { return nil }
func (e *stubEngine) Process(samples []float32) (string, string, error) {
	return "", "", nil
}
func (e *stubEngine) SetLanguage(lang string) error { return nil }
