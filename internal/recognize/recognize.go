// Package recognize defines the contract between the segmentation engine and
// a streaming speech recognizer.
package recognize

// Update is the result of feeding one chunk to a Decoder. It is either a
// Partial or a Final.
type Update interface {
	// Text returns the recognized text carried by the update.
	Text() string
	update()
}

// Partial is an in-progress hypothesis for the current utterance. Later
// partials replace earlier ones.
type Partial string

// Final ends the current utterance.
type Final string

func (p Partial) Text() string { return string(p) }
func (p Partial) update()      {}

func (f Final) Text() string { return string(f) }
func (f Final) update()      {}

// Decoder turns 16-bit little-endian PCM chunks at a fixed rate into
// recognition updates. A returned error affects only the chunk that caused it.
type Decoder interface {
	Accept(chunk []byte) (Update, error)
	Close() error
}
