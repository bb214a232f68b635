package translation

import (
	"context"
	"errors"
)

// ErrPairNotInstalled is returned by Translate for a directed pair the
// capability cannot serve.
var ErrPairNotInstalled = errors.New("translation pair not installed")

// Capability is a translation engine with a fixed set of installed
// directed language pairs. Installing or removing pairs happens elsewhere.
type Capability interface {
	// Languages returns the installed language codes.
	Languages(ctx context.Context) ([]string, error)
	// Installed reports whether src->tgt can be translated directly.
	Installed(ctx context.Context, src, tgt string) (bool, error)
	// Translate translates text along an installed pair.
	Translate(ctx context.Context, text, src, tgt string) (string, error)
}
