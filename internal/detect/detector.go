// Package detect identifies the source language of a text sample.
//
// Detection prefers an identification oracle (see
// [github.com/pageglot/pageglot/pkg/provider/langid]) but never depends on it:
// short samples, low-confidence results, and oracle failures all fall through
// to a deterministic character-range heuristic, so Detect always returns a
// usable tag.
package detect

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pageglot/pageglot/internal/observe"
	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/langid"
)

const (
	// minSampleBytes is the shortest sample worth sending to the oracle.
	// Below this the oracle is unreliable and the heuristic is used directly.
	minSampleBytes = 10

	// minConfidence gates the oracle's top-ranked candidate.
	minConfidence = 0.5

	// scriptShareThreshold is the bucket share above which the heuristic
	// commits to a script-implied language.
	scriptShareThreshold = 0.3
)

// Detector resolves a language tag for raw text.
type Detector struct {
	oracle  langid.Provider
	logger  *slog.Logger
	metrics *observe.Metrics
}

// Option is a functional option for Detector.
type Option func(*Detector)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// New creates a Detector. The oracle may be nil, in which case every call
// uses the deterministic heuristic.
func New(oracle langid.Provider, opts ...Option) *Detector {
	d := &Detector{
		oracle:  oracle,
		logger:  slog.Default(),
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect returns the canonical language tag for text.
//
// Empty input returns [lang.Unknown]. Samples shorter than ten bytes skip the
// oracle entirely. Otherwise the oracle is consulted once and its top-ranked
// candidate is used when its confidence is at least 0.5; anything else —
// including oracle errors — falls back to the script heuristic. Detect never
// returns an error: degraded detection is a quality concern, not a failure.
func (d *Detector) Detect(ctx context.Context, text string) lang.Tag {
	if strings.TrimSpace(text) == "" {
		return lang.Unknown
	}
	if len(text) < minSampleBytes {
		return detectByScript(text)
	}

	if d.oracle == nil || !d.oracle.Available(ctx) {
		d.logger.Debug("language oracle unavailable, using script heuristic")
		d.metrics.RecordFallback(ctx, "detect")
		return detectByScript(text)
	}

	candidates, err := d.oracle.Identify(ctx, text)
	if err != nil {
		d.logger.Warn("language identification failed, using script heuristic",
			"error", err)
		d.metrics.RecordOracleRequest(ctx, "langid", "error")
		d.metrics.RecordOracleError(ctx, "langid")
		d.metrics.RecordFallback(ctx, "detect")
		return detectByScript(text)
	}
	d.metrics.RecordOracleRequest(ctx, "langid", "ok")
	if len(candidates) == 0 || candidates[0].Confidence < minConfidence {
		conf := 0.0
		if len(candidates) > 0 {
			conf = candidates[0].Confidence
		}
		d.logger.Debug("language confidence below threshold, using script heuristic",
			"confidence", conf)
		d.metrics.RecordFallback(ctx, "detect")
		return detectByScript(text)
	}

	return lang.Canonicalize(candidates[0].Tag)
}

// detectByScript buckets the sample's runes into CJK ideographs, Thai script,
// and printable ASCII, then commits to the first bucket whose share of the
// three combined exceeds the threshold. CJK is checked before Thai; the order
// is a deliberate tie-break.
func detectByScript(text string) lang.Tag {
	var cjk, thai, ascii int
	for _, r := range text {
		switch {
		case lang.IsCJKRune(r):
			cjk++
		case lang.IsThaiRune(r):
			thai++
		case lang.IsPrintableASCII(r):
			ascii++
		}
	}

	total := cjk + thai + ascii
	if total == 0 {
		return lang.Default
	}

	if float64(cjk)/float64(total) > scriptShareThreshold {
		return lang.ChineseCN
	}
	if float64(thai)/float64(total) > scriptShareThreshold {
		return lang.Thai
	}
	return lang.Default
}
