// Package mt defines the machine-translation provider abstraction used for
// literal (word-for-word) translations. Implementations wrap external
// translation services; contextual translations go through the LLM provider
// instead.
package mt

import (
	"context"
	"errors"

	"github.com/pageglot/pageglot/pkg/lang"
)

// ErrUnavailable is returned when the translation backend cannot be reached
// or is not configured.
var ErrUnavailable = errors.New("mt: backend unavailable")

// Provider translates short text fragments between languages.
//
// Implementations must be safe for concurrent use. Translate is expected to
// honor context cancellation and return quickly; callers wrap providers with
// fallback and circuit-breaker logic (see [github.com/pageglot/pageglot/internal/resilience]).
type Provider interface {
	// Translate returns the translation of text from source to target.
	// An Unknown source asks the backend to auto-detect.
	Translate(ctx context.Context, text string, source, target lang.Tag) (string, error)

	// Available reports whether the backend can currently serve requests.
	Available(ctx context.Context) bool
}
