// Package langid defines the Provider interface for language-identification
// oracles.
//
// An identification oracle ranks candidate languages for a text sample with
// per-candidate confidence scores. Like every oracle in Pageglot its output
// is untrusted: the detect package applies a confidence gate and falls back
// to a deterministic script heuristic when the oracle is absent, throws, or
// is unsure.
package langid

import (
	"context"
	"errors"
)

// ErrUnavailable signals that the identification capability is absent or
// disabled. It is a first-class outcome: callers fall back rather than fail.
var ErrUnavailable = errors.New("langid: backend unavailable")

// Candidate is one ranked language guess.
type Candidate struct {
	// Tag is the raw language code as reported by the backend. Callers must
	// pass it through lang.Canonicalize before using it anywhere else.
	Tag string

	// Confidence is the backend's score for this candidate in [0.0, 1.0].
	Confidence float64
}

// Provider is the abstraction over any language-identification backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Identify returns candidate languages for text, ordered by decreasing
	// confidence. An empty slice means the backend could not form an opinion;
	// that is not an error.
	Identify(ctx context.Context, text string) ([]Candidate, error)

	// Available reports whether the backend can currently serve requests.
	Available(ctx context.Context) bool
}
