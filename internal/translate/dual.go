// Package translate produces dual-path translations for chunks: a literal
// (fast, dictionary-like) rendering from a machine-translation backend and a
// contextual (slower, meaning-aware) rendering from a language model.
//
// The two paths are independent failure domains. A contextual failure never
// invalidates a literal result already obtained, and vice versa; a chunk whose
// translation partially fails is still emitted with whatever side succeeded.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/pageglot/pageglot/internal/observe"
	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/llm"
	"github.com/pageglot/pageglot/pkg/provider/mt"
	"github.com/pageglot/pageglot/pkg/types"
)

const (
	defaultCallTimeout = 15 * time.Second
	defaultTemperature = 0.3

	// contextRadius is how many bytes of surrounding source text accompany a
	// chunk in the contextual prompt.
	contextRadius = 120
)

// contextualPromptTemplate frames the contextual rewrite request. Verb: take
// the literal rendering and the surrounding passage and produce the most
// natural meaning-preserving translation of the highlighted phrase.
const contextualPromptTemplate = `You are a translation assistant. Translate the highlighted phrase into %s.

Rules:
- Consider the surrounding passage: the translation must fit the phrase's meaning IN CONTEXT, not in isolation.
- A literal machine translation is provided as a hint. Improve on it when context demands; keep it when it is already right.
- Respond with ONLY the translated phrase. No quotes, no explanations, no markdown.%s`

// Options configure the contextual rewrite behaviour. Backends are assumed
// non-reentrant-safe across option changes mid-flight, so the session manager
// recreates the translator whenever the key changes instead of mutating a
// live instance.
type Options struct {
	// Tone adjusts the register of contextual output ("formal", "casual", "").
	Tone string

	// Format constrains output shape ("plain-text", "markdown", "").
	Format string

	// Length hints at output size ("shorter", "as-is", "longer", "").
	Length string
}

// Key returns a stable identity for the option set, used to decide whether a
// cached translator can be reused.
func (o Options) Key() string {
	return o.Tone + "|" + o.Format + "|" + o.Length
}

// instructions renders the option set as extra prompt rules. Empty options
// contribute nothing.
func (o Options) instructions() string {
	var s string
	if o.Tone != "" {
		s += fmt.Sprintf("\n- Use a %s tone.", o.Tone)
	}
	if o.Format != "" {
		s += fmt.Sprintf("\n- Output format: %s.", o.Format)
	}
	if o.Length != "" {
		s += fmt.Sprintf("\n- Preferred length relative to the original: %s.", o.Length)
	}
	return s
}

// Option is a functional option for [Dual].
type Option func(*Dual)

// WithOptions sets the contextual rewrite options.
func WithOptions(opts Options) Option {
	return func(d *Dual) {
		d.opts = opts
	}
}

// WithCallTimeout bounds each backend call. Default: 15s. A timeout is
// treated identically to a translation failure — the corresponding field is
// left empty and the batch proceeds.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Dual) {
		d.callTimeout = timeout
	}
}

// WithTemperature sets the contextual model's sampling temperature.
func WithTemperature(temp float64) Option {
	return func(d *Dual) {
		d.temperature = temp
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dual) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dual) {
		d.metrics = m
	}
}

// Dual translates chunks along the literal and contextual paths. Instances
// are long-lived and shared across chunks within one page session; per-chunk
// construction is explicitly avoided for latency.
//
// Dual is safe for concurrent use. Each chunk's translation is written by
// exactly one owner per field, so no chunk-level locking is needed.
type Dual struct {
	literal     mt.Provider
	contextual  llm.Provider
	opts        Options
	callTimeout time.Duration
	temperature float64
	logger      *slog.Logger
	metrics     *observe.Metrics
}

// New creates a [Dual]. Either backend may be nil; the corresponding path is
// then reported unavailable and its field stays empty.
func New(literal mt.Provider, contextual llm.Provider, opts ...Option) *Dual {
	d := &Dual{
		literal:     literal,
		contextual:  contextual,
		callTimeout: defaultCallTimeout,
		temperature: defaultTemperature,
		logger:      slog.Default(),
		metrics:     observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Options returns the contextual rewrite options this translator was built
// with.
func (d *Dual) Options() Options {
	return d.opts
}

// TranslateLiteral fills the Literal field of every chunk in chunks,
// sequentially to respect backend rate limits. onDone, when non-nil, is
// invoked after each chunk with the running count of completed literals.
// Returns the number of chunks translated; per-chunk failures are logged and
// skipped, never propagated.
func (d *Dual) TranslateLiteral(ctx context.Context, chunks []types.Chunk, source, target lang.Tag, onDone func(completed int)) int {
	if d.literal == nil || !d.literal.Available(ctx) {
		d.logger.Debug("literal backend unavailable, leaving literals empty")
		d.metrics.RecordFallback(ctx, "translate-literal")
		return 0
	}

	completed := 0
	for i := range chunks {
		if ctx.Err() != nil {
			return completed
		}
		out, err := d.translateLiteralOne(ctx, chunks[i].Text, source, target)
		if err != nil {
			d.logger.Warn("literal translation failed",
				"text", chunks[i].Text, "error", err)
			continue
		}
		ensureTranslation(&chunks[i]).Literal = out
		completed++
		if onDone != nil {
			onDone(completed)
		}
	}
	return completed
}

// TranslateContextual fills the Contextual field of every chunk, using the
// chunk's literal translation (when present) and a window of surrounding
// source text as context. It also recomputes the Differs flag for each chunk
// it touches. sourceText is the full original document the chunk offsets
// refer to.
func (d *Dual) TranslateContextual(ctx context.Context, sourceText string, chunks []types.Chunk, target lang.Tag, onDone func(completed int)) int {
	if d.contextual == nil || !d.contextual.Available(ctx) {
		d.logger.Debug("contextual backend unavailable, leaving contextuals empty")
		d.metrics.RecordFallback(ctx, "translate-contextual")
		return 0
	}

	completed := 0
	for i := range chunks {
		if ctx.Err() != nil {
			return completed
		}
		literal := ""
		if chunks[i].Translation != nil {
			literal = chunks[i].Translation.Literal
		}
		out, err := d.translateContextualOne(ctx, sourceText, chunks[i], literal, target)
		if err != nil {
			d.logger.Warn("contextual translation failed",
				"text", chunks[i].Text, "error", err)
			continue
		}
		tr := ensureTranslation(&chunks[i])
		tr.Contextual = out
		tr.Differs = differs(tr.Literal, tr.Contextual)
		completed++
		if onDone != nil {
			onDone(completed)
		}
	}
	return completed
}

// Translate runs both paths concurrently over the same chunk slice and
// returns the per-path completion counts. The literal goroutine writes only
// Literal fields; the contextual goroutine works from hints snapshotted
// before either goroutine starts, so it never reads a field the literal path
// may be writing. Differs is computed in a final pass once both paths have
// settled. Used for the pre-chunk early-paint batch where latency matters
// more than strict phase ordering.
func (d *Dual) Translate(ctx context.Context, sourceText string, chunks []types.Chunk, source, target lang.Tag) (literalDone, contextualDone int) {
	hints := make([]string, len(chunks))
	for i := range chunks {
		hints[i] = ensureTranslation(&chunks[i]).Literal
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		literalDone = d.TranslateLiteral(gctx, chunks, source, target, nil)
		return nil
	})
	g.Go(func() error {
		contextualDone = d.translateContextualHinted(gctx, sourceText, chunks, hints, target)
		return nil
	})
	_ = g.Wait() // workers only report counts, never errors

	for i := range chunks {
		tr := chunks[i].Translation
		tr.Differs = differs(tr.Literal, tr.Contextual)
	}
	return literalDone, contextualDone
}

// translateContextualHinted is the concurrent-path variant of
// [Dual.TranslateContextual]: literal hints come from the caller's snapshot
// instead of the chunks, only Contextual fields are written, and Differs is
// left for the post-join pass, so it is safe to run while the literal path is
// still filling in results.
func (d *Dual) translateContextualHinted(ctx context.Context, sourceText string, chunks []types.Chunk, hints []string, target lang.Tag) int {
	if d.contextual == nil || !d.contextual.Available(ctx) {
		d.logger.Debug("contextual backend unavailable, leaving contextuals empty")
		d.metrics.RecordFallback(ctx, "translate-contextual")
		return 0
	}

	completed := 0
	for i := range chunks {
		if ctx.Err() != nil {
			return completed
		}
		out, err := d.translateContextualOne(ctx, sourceText, chunks[i], hints[i], target)
		if err != nil {
			d.logger.Warn("contextual translation failed",
				"text", chunks[i].Text, "error", err)
			continue
		}
		chunks[i].Translation.Contextual = out
		completed++
	}
	return completed
}

func (d *Dual) translateLiteralOne(ctx context.Context, text string, source, target lang.Tag) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	start := time.Now()
	out, err := d.literal.Translate(callCtx, text, source, target)
	d.metrics.RecordTranslation(ctx, "literal", time.Since(start).Seconds())
	return out, err
}

func (d *Dual) translateContextualOne(ctx context.Context, sourceText string, chunk types.Chunk, literal string, target lang.Tag) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	req := llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(contextualPromptTemplate, targetName(target), d.opts.instructions()),
		Temperature:  d.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: buildUserMessage(
				contextWindow(sourceText, chunk.Start, chunk.End), chunk.Text, literal)},
		},
	}

	start := time.Now()
	resp, err := d.contextual.Complete(callCtx, req)
	d.metrics.RecordTranslation(ctx, "contextual", time.Since(start).Seconds())
	if err != nil {
		d.metrics.RecordOracleRequest(ctx, "translate", "error")
		d.metrics.RecordOracleError(ctx, "translate")
		return "", fmt.Errorf("translate: contextual complete: %w", err)
	}
	if resp == nil {
		d.metrics.RecordOracleRequest(ctx, "translate", "error")
		d.metrics.RecordOracleError(ctx, "translate")
		return "", errors.New("translate: contextual complete: nil response")
	}
	d.metrics.RecordOracleRequest(ctx, "translate", "ok")
	return trimResponse(resp.Content), nil
}

// buildUserMessage assembles the contextual user message from the passage
// window, the phrase, and the optional literal hint.
func buildUserMessage(passage, phrase, literal string) string {
	s := fmt.Sprintf("Passage:\n%s\n\nPhrase to translate: %s", passage, phrase)
	if literal != "" {
		s += fmt.Sprintf("\nLiteral translation hint: %s", literal)
	}
	return s
}

// contextWindow returns the slice of source around [start, end), expanded by
// contextRadius bytes on each side and snapped outward to rune boundaries.
func contextWindow(source string, start, end int) string {
	if start < 0 || end > len(source) || start > end {
		return source
	}
	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRadius
	if hi > len(source) {
		hi = len(source)
	}
	for lo > 0 && !utf8.RuneStart(source[lo]) {
		lo--
	}
	for hi < len(source) && !utf8.RuneStart(source[hi]) {
		hi++
	}
	return source[lo:hi]
}

// trimResponse strips the whitespace and symmetric quoting models habitually
// wrap around a bare phrase.
func trimResponse(s string) string {
	s = strings.TrimSpace(s)
	for _, pair := range [][2]string{{`"`, `"`}, {"'", "'"}, {"「", "」"}, {"“", "”"}} {
		if after, ok := strings.CutPrefix(s, pair[0]); ok {
			if inner, ok := strings.CutSuffix(after, pair[1]); ok {
				return strings.TrimSpace(inner)
			}
		}
	}
	return s
}

// ensureTranslation allocates the chunk's translation record if needed.
func ensureTranslation(c *types.Chunk) *types.Translation {
	if c.Translation == nil {
		c.Translation = &types.Translation{}
	}
	return c.Translation
}

// targetName maps a tag to the language name used in prompts.
func targetName(t lang.Tag) string {
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
