// Package annotate orchestrates the end-to-end annotation flow for one text:
// extract → detect → segment → optional prechunk → translate-literal →
// translate-contextual → finalize, with incremental batch delivery, locked
// progress totals, and graceful degradation at every phase.
//
// A [Session] drives one text through the pipeline; the [Manager] enforces
// the single-active-session rule and invalidates stale sessions when a new
// annotation request or an option change arrives.
package annotate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pageglot/pageglot/internal/detect"
	"github.com/pageglot/pageglot/internal/observe"
	"github.com/pageglot/pageglot/internal/segment"
	"github.com/pageglot/pageglot/internal/translate"
	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/types"
)

const (
	defaultBatchSize    = 16
	defaultPrechunkSize = 8
)

// SessionConfig carries everything a session needs to run.
type SessionConfig struct {
	ID     string
	Title  string
	Source string

	// Target is the translation target language.
	Target lang.Tag

	Detector   *detect.Detector
	Segmenter  *segment.Segmenter
	Translator *translate.Dual
	Sink       Sink

	// BatchSize is how many chunks are translated between flushes.
	// Default: 16.
	BatchSize int

	// PrechunkSize is how many leading chunks are fully translated before the
	// main batch pass, so the reader sees something annotated quickly.
	// Zero disables the prechunk phase.
	PrechunkSize int

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Session drives one annotation flow. Create with NewSession, run once with
// Run; a session is not reusable.
type Session struct {
	cfg SessionConfig

	mu         sync.Mutex
	progress   types.Progress
	phaseTimes map[types.Phase]time.Duration
	metrics    types.BatchMetrics
}

// NewSession fills config defaults and returns a runnable session. Detector,
// Segmenter, and Translator must be non-nil; everything else has a default.
func NewSession(cfg SessionConfig) *Session {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PrechunkSize < 0 {
		cfg.PrechunkSize = defaultPrechunkSize
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Target == lang.Unknown {
		cfg.Target = lang.Default
	}
	return &Session{
		cfg:        cfg,
		phaseTimes: make(map[types.Phase]time.Duration),
	}
}

// Progress returns a snapshot of the session's progress state.
func (s *Session) Progress() types.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Run executes the full pipeline. It blocks until the session reaches a
// terminal state and always ends with a final event carrying
// IsComplete == true — even when ctx is cancelled mid-flight, in which case
// nothing further is emitted and Run returns quietly (cancellation is a
// signal, not an error).
//
// Run never returns an error: every phase has a fallback and the worst case
// is plain, un-annotated text with a completed progress indicator.
func (s *Session) Run(ctx context.Context) {
	log := s.cfg.Logger.With("session_id", s.cfg.ID)
	sessionStart := time.Now()
	s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	defer s.cfg.Metrics.ActiveSessions.Add(ctx, -1)
	defer func() {
		s.cfg.Metrics.SessionDuration.Record(ctx, time.Since(sessionStart).Seconds())
	}()

	// Phase extract: the raw text goes out before any oracle is touched.
	// Perceived latency is hidden, not reduced.
	s.enterPhase(ctx, types.PhaseExtract)
	s.cfg.Sink.PublishText(s.cfg.ID, s.cfg.Title, s.cfg.Source)
	s.publishProgress(ctx)

	if s.cfg.Source == "" {
		// Nothing to annotate: a legitimate terminal state, not an error.
		log.Info("no extractable text, completing empty session")
		s.finish(ctx, nil)
		return
	}

	// Phase detect.
	s.enterPhase(ctx, types.PhaseDetect)
	phaseStart := time.Now()
	spanCtx, span := observe.StartSpan(ctx, "annotate.detect")
	srcLang := s.cfg.Detector.Detect(spanCtx, s.cfg.Source)
	span.End()
	s.recordPhase(ctx, types.PhaseDetect, time.Since(phaseStart))
	log.Debug("language detected", "language", srcLang)

	// Phase segment.
	s.enterPhase(ctx, types.PhaseSegment)
	phaseStart = time.Now()
	spanCtx, span = observe.StartSpan(ctx, "annotate.segment")
	chunks := s.cfg.Segmenter.Segment(spanCtx, s.cfg.Source, srcLang)
	span.End()
	s.recordPhase(ctx, types.PhaseSegment, time.Since(phaseStart))
	if ctx.Err() != nil {
		return
	}
	if len(chunks) == 0 {
		log.Info("segmentation produced no chunks, completing empty session")
		s.finish(ctx, nil)
		return
	}

	// The denominator locks here so later, smaller interim counts can never
	// regress a progress bar.
	s.setTotal(len(chunks))
	s.publishProgress(ctx)
	log.Info("segmented", "chunks", len(chunks), "language", srcLang)

	// Phase prechunk: translate a small prefix on both paths concurrently and
	// flush it immediately.
	rest := chunks
	if n := s.cfg.PrechunkSize; n > 0 && len(chunks) > n {
		s.enterPhase(ctx, types.PhasePrechunk)
		phaseStart = time.Now()
		pre := chunks[:n]
		spanCtx, span = observe.StartSpan(ctx, "annotate.prechunk")
		litN, ctxN := s.cfg.Translator.Translate(spanCtx, s.cfg.Source, pre, srcLang, s.cfg.Target)
		span.End()
		s.recordPhase(ctx, types.PhasePrechunk, time.Since(phaseStart))
		if ctx.Err() != nil {
			return
		}
		s.addCompleted(ctx, n, litN, ctxN)
		s.mu.Lock()
		s.metrics.LiteralCount += litN
		s.metrics.ContextualCount += ctxN
		s.mu.Unlock()
		s.publishBatch(ctx, pre, false)
		rest = chunks[n:]
	}

	// Phase translate-literal, in batches.
	s.enterPhase(ctx, types.PhaseTranslateLiteral)
	phaseStart = time.Now()
	litStart := time.Now()
	litTotal := 0
	spanCtx, span = observe.StartSpan(ctx, "annotate.translate-literal")
	for _, batch := range batches(rest, s.cfg.BatchSize) {
		if ctx.Err() != nil {
			span.End()
			return
		}
		n := s.cfg.Translator.TranslateLiteral(spanCtx, batch, srcLang, s.cfg.Target, nil)
		litTotal += n
		s.addCompleted(ctx, 0, n, 0)
		s.publishBatch(ctx, batch, false)
	}
	span.End()
	litTime := time.Since(litStart)
	s.recordPhase(ctx, types.PhaseTranslateLiteral, time.Since(phaseStart))

	// Phase translate-contextual, in batches. Chunk completion counts toward
	// the progress numerator here: a chunk is "done" once the contextual pass
	// has visited it, whatever the per-path outcome.
	s.enterPhase(ctx, types.PhaseTranslateContext)
	phaseStart = time.Now()
	ctxStart := time.Now()
	ctxTotal := 0
	spanCtx, span = observe.StartSpan(ctx, "annotate.translate-contextual")
	for _, batch := range batches(rest, s.cfg.BatchSize) {
		if ctx.Err() != nil {
			span.End()
			return
		}
		n := s.cfg.Translator.TranslateContextual(spanCtx, s.cfg.Source, batch, s.cfg.Target, nil)
		ctxTotal += n
		s.addCompleted(ctx, len(batch), 0, n)
		s.publishBatch(ctx, batch, false)
	}
	span.End()
	ctxTime := time.Since(ctxStart)
	s.recordPhase(ctx, types.PhaseTranslateContext, time.Since(phaseStart))

	s.mu.Lock()
	s.metrics.LiteralCount += litTotal
	s.metrics.ContextualCount += ctxTotal
	s.metrics.LiteralTime += litTime
	s.metrics.ContextualTime += ctxTime
	s.mu.Unlock()

	// Phase finalize: one closing event with the full chunk sequence, so a
	// consumer that missed partial batches still converges.
	s.finish(ctx, chunks)
	log.Info("session complete",
		"chunks", len(chunks),
		"literal_ok", litTotal,
		"contextual_ok", ctxTotal,
		"duration", time.Since(sessionStart),
	)
}

// enterPhase advances the progress phase and publishes a snapshot.
func (s *Session) enterPhase(ctx context.Context, p types.Phase) {
	s.mu.Lock()
	s.progress.Phase = p
	s.mu.Unlock()
	s.publishProgress(ctx)
}

// setTotal locks the progress denominator to its first non-zero value.
func (s *Session) setTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progress.Total == 0 && total > 0 {
		s.progress.Total = total
	}
}

// addCompleted bumps the progress counters. Completed never decreases and
// never exceeds Total.
func (s *Session) addCompleted(ctx context.Context, done, literal, contextual int) {
	s.mu.Lock()
	s.progress.Completed += done
	if s.progress.Total > 0 && s.progress.Completed > s.progress.Total {
		s.progress.Completed = s.progress.Total
	}
	s.progress.LiteralCompleted += literal
	s.progress.ContextualCompleted += contextual
	s.mu.Unlock()
	s.publishProgress(ctx)
}

// recordPhase accumulates phase timing for the session metrics and the OTel
// histogram.
func (s *Session) recordPhase(ctx context.Context, p types.Phase, d time.Duration) {
	s.mu.Lock()
	s.phaseTimes[p] += d
	s.mu.Unlock()
	s.cfg.Metrics.RecordPhase(ctx, string(p), d.Seconds())
}

// publishProgress snapshots and emits progress unless the session is dead.
func (s *Session) publishProgress(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	p := s.progress
	s.mu.Unlock()
	s.cfg.Sink.PublishProgress(s.cfg.ID, p)
}

// publishBatch emits a partial chunk event with current metrics attached.
func (s *Session) publishBatch(ctx context.Context, chunks []types.Chunk, complete bool) {
	if ctx.Err() != nil {
		return
	}
	s.cfg.Sink.PublishChunks(s.cfg.ID, types.Event{
		Chunks:     chunks,
		IsComplete: complete,
		Phase:      s.Progress().Phase,
		Metrics:    s.snapshotMetrics(),
	})
}

// finish emits the terminal event and progress. Metrics are reported even
// when phases partially failed.
func (s *Session) finish(ctx context.Context, chunks []types.Chunk) {
	s.mu.Lock()
	s.progress.Phase = types.PhaseFinalize
	s.mu.Unlock()
	s.publishProgress(ctx)

	if ctx.Err() != nil {
		return
	}
	s.cfg.Sink.PublishChunks(s.cfg.ID, types.Event{
		Chunks:     chunks,
		IsComplete: true,
		Phase:      types.PhaseFinalize,
		Metrics:    s.snapshotMetrics(),
	})

	s.mu.Lock()
	s.progress.Phase = types.PhaseDone
	s.progress.IsComplete = true
	if s.progress.Total > 0 {
		s.progress.Completed = s.progress.Total
	}
	s.mu.Unlock()
	s.publishProgress(ctx)
}

// snapshotMetrics copies the accumulated batch metrics, including cumulative
// per-phase times. Callers receive an independent copy.
func (s *Session) snapshotMetrics() *types.BatchMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.metrics
	m.PhaseTimes = make(map[types.Phase]time.Duration, len(s.phaseTimes))
	var batchTotal time.Duration
	for p, d := range s.phaseTimes {
		m.PhaseTimes[p] = d
		batchTotal += d
	}
	m.BatchTime = batchTotal
	return &m
}

// batches splits chunks into consecutive sub-slices of at most size elements.
func batches(chunks []types.Chunk, size int) [][]types.Chunk {
	if size <= 0 {
		size = defaultBatchSize
	}
	var out [][]types.Chunk
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		out = append(out, chunks[start:end])
	}
	return out
}
