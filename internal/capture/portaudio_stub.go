//go:build !portaudio

package capture

import "errors"

// NewSystemBackend is unavailable without the portaudio build tag; use the
// file backend or rebuild with -tags portaudio.
func NewSystemBackend() (Backend, error) {
	return nil, errors.New("capture: built without portaudio support (build with -tags portaudio)")
}
