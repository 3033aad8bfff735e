// Package segment partitions raw text into an ordered sequence of
// non-overlapping chunks with best-effort grammatical typing.
//
// The [Segmenter] sends the text to an [llm.Provider] with a prompt that
// demands strict JSON output of phrase spans. The model is an oracle whose
// output is validated and repaired, never trusted: reported offsets are
// recomputed by locating each item's text in the source, and items that
// cannot be located are discarded. When the oracle is unavailable or its
// output is unparseable, a deterministic word/character fallback segments the
// text instead. Segmentation therefore never fails — the fallback is the
// terminal safety net.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/pageglot/pageglot/internal/observe"
	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/llm"
	"github.com/pageglot/pageglot/pkg/types"
)

const defaultTemperature = 0.1

// systemPromptTemplate instructs the model to group text into grammatical
// phrases. The language name is interpolated at call time.
const systemPromptTemplate = `You are a text segmentation assistant.

Your task: partition the provided %s text into grammatical phrases.

Rules:
- Every phrase must be an EXACT substring of the input, byte for byte.
- Phrases must appear in left-to-right order, must not overlap, and should jointly cover the input with no gaps.
- Classify each phrase as one of: noun_phrase, verb_phrase, adjective_phrase, adverb_phrase, prepositional_phrase, single_word.
- "start" and "end" are half-open character offsets into the input. They must be exact.
- Do not merge text across sentence boundaries.

Respond with ONLY a JSON array in this exact format (no markdown, no prose):
[
  {"text": "<exact substring>", "type": "<phrase type>", "start": <int>, "end": <int>}
]`

// Option is a functional option for configuring a [Segmenter].
type Option func(*Segmenter)

// WithTemperature sets the LLM sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(s *Segmenter) {
		s.temperature = temp
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Segmenter) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Segmenter) {
		s.metrics = m
	}
}

// Segmenter produces chunk sequences from raw text. It is safe for
// concurrent use.
type Segmenter struct {
	llm         llm.Provider
	temperature float64
	logger      *slog.Logger
	metrics     *observe.Metrics

	// jaTokenizer segments Japanese text in the fallback path. Nil when the
	// dictionary failed to load; the per-character fallback is used instead.
	jaTokenizer *tokenizer.Tokenizer
}

// New returns a new [Segmenter] backed by the given [llm.Provider].
// The provider may be nil, in which case every call uses the deterministic
// fallback.
func New(provider llm.Provider, opts ...Option) *Segmenter {
	s := &Segmenter{
		llm:         provider,
		temperature: defaultTemperature,
		logger:      slog.Default(),
		metrics:     observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(s)
	}

	kg, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		s.logger.Warn("japanese tokenizer unavailable, falling back to per-character segmentation",
			"error", err)
	} else {
		s.jaTokenizer = kg
	}
	return s
}

// Segment partitions text into an ordered sequence of chunks with byte
// offsets into text. The translation field of every returned chunk is unset.
//
// Segment never returns an error: oracle unavailability, completion failures,
// and unparseable output all degrade to the deterministic fallback, which
// always succeeds. Context cancellation short-circuits the oracle call but
// still yields the fallback segmentation.
func (s *Segmenter) Segment(ctx context.Context, text string, language lang.Tag) []types.Chunk {
	if text == "" {
		return nil
	}

	if s.llm == nil || !s.llm.Available(ctx) {
		s.logger.Debug("segmentation oracle unavailable, using fallback",
			"language", language)
		return s.fallbackRecorded(ctx, text, language)
	}

	chunks, err := s.segmentWithOracle(ctx, text, language)
	if err != nil {
		s.logger.Warn("oracle segmentation failed, using fallback",
			"language", language, "error", err)
		s.metrics.RecordOracleError(ctx, "segment")
		return s.fallbackRecorded(ctx, text, language)
	}
	if len(chunks) == 0 {
		s.logger.Warn("oracle produced no usable chunks, using fallback",
			"language", language)
		return s.fallbackRecorded(ctx, text, language)
	}

	// Gaps are tolerated and render as plain text; the coverage ratio is a
	// segmentation-quality signal only.
	covered := 0
	for _, c := range chunks {
		covered += c.Width()
	}
	s.logger.Debug("oracle segmentation accepted",
		"chunks", len(chunks),
		"coverage", float64(covered)/float64(len(text)))
	s.metrics.RecordChunks(ctx, "oracle", len(chunks))
	return chunks
}

// fallbackRecorded runs the deterministic fallback and counts the activation
// and its output chunks.
func (s *Segmenter) fallbackRecorded(ctx context.Context, text string, language lang.Tag) []types.Chunk {
	chunks := s.fallback(text, language)
	s.metrics.RecordFallback(ctx, "segment")
	s.metrics.RecordChunks(ctx, "fallback", len(chunks))
	return chunks
}

// segmentWithOracle runs one prompt/parse cycle against the LLM.
func (s *Segmenter) segmentWithOracle(ctx context.Context, text string, language lang.Tag) ([]types.Chunk, error) {
	req := llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, languageName(language)),
		Temperature:  s.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: text},
		},
	}

	resp, err := s.llm.Complete(ctx, req)
	if err != nil {
		s.metrics.RecordOracleRequest(ctx, "segment", "error")
		return nil, fmt.Errorf("segment: complete: %w", err)
	}
	if resp == nil {
		s.metrics.RecordOracleRequest(ctx, "segment", "error")
		return nil, errors.New("segment: complete: nil response")
	}
	s.metrics.RecordOracleRequest(ctx, "segment", "ok")

	items, err := parseResponse(resp.Content)
	if err != nil {
		return nil, err
	}

	return s.repair(items, text, language), nil
}

// languageName maps a tag to the human-readable name used in the prompt.
func languageName(t lang.Tag) string {
	switch t.Base() {
	case "zh":
		return "Chinese"
	case "ja":
		return "Japanese"
	case "ko":
		return "Korean"
	case "th":
		return "Thai"
	case "fr":
		return "French"
	case "de":
		return "German"
	case "es":
		return "Spanish"
	case "pt":
		return "Portuguese"
	case "ru":
		return "Russian"
	case "vi":
		return "Vietnamese"
	default:
		return "English"
	}
}
