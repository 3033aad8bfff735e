package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pageglot/pageglot/internal/detect"
	"github.com/pageglot/pageglot/internal/observe"
	"github.com/pageglot/pageglot/internal/segment"
	"github.com/pageglot/pageglot/internal/translate"
	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/llm"
	"github.com/pageglot/pageglot/pkg/provider/mt"
	"github.com/pageglot/pageglot/pkg/types"
)

// Request describes one annotation job.
type Request struct {
	Title  string
	Text   string
	Target lang.Tag

	// Options tune the contextual rewrite. A change of options relative to
	// the cached translator forces a teardown-and-recreate of the translation
	// backend rather than mutation of a live one.
	Options translate.Options
}

// ManagerConfig holds the manager's long-lived dependencies.
type ManagerConfig struct {
	Detector  *detect.Detector
	Segmenter *segment.Segmenter

	// Literal and Contextual are the translation backends handed to each
	// translator instance.
	Literal    mt.Provider
	Contextual llm.Provider

	Sink Sink

	Tuning Tuning

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Tuning holds the per-session knobs that can be replaced at runtime via
// [Manager.Retune]. A live session keeps the values it started with.
type Tuning struct {
	BatchSize    int
	PrechunkSize int

	// CallTimeout bounds each translation backend call. Zero keeps the
	// translator's default.
	CallTimeout time.Duration

	// Target is the default target language for requests that leave
	// Request.Target unset.
	Target lang.Tag

	// Options are the default rewrite options for requests that leave
	// Request.Options zero.
	Options translate.Options
}

// Manager runs annotation sessions. At most one session is live at a time: a
// new request cancels the previous session's context, so any late-arriving
// result from the abandoned session is discarded before it can touch a newer
// session's output.
//
// All exported methods are safe for concurrent use.
type Manager struct {
	cfg ManagerConfig

	mu         sync.Mutex
	seq        int
	current    *Session
	cancel     context.CancelFunc
	running    sync.WaitGroup
	translator *translate.Dual
	optionsKey string
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Manager{cfg: cfg}
}

// Annotate starts a new session for req, invalidating any session still in
// flight, and returns the new session's ID. The session runs on its own
// goroutine; output arrives through the configured Sink.
func (m *Manager) Annotate(ctx context.Context, req Request) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Invalidate the previous session. Its continuations check their context
	// before every publish, so nothing stale reaches the sink.
	if m.cancel != nil {
		m.cancel()
	}

	m.seq++
	id := fmt.Sprintf("session-%d-%s", m.seq, time.Now().UTC().Format("20060102T150405Z"))

	if req.Target == lang.Unknown {
		req.Target = m.cfg.Tuning.Target
	}
	if req.Options == (translate.Options{}) {
		req.Options = m.cfg.Tuning.Options
	}

	sess := NewSession(SessionConfig{
		ID:           id,
		Title:        req.Title,
		Source:       req.Text,
		Target:       req.Target,
		Detector:     m.cfg.Detector,
		Segmenter:    m.cfg.Segmenter,
		Translator:   m.translatorFor(req.Options),
		Sink:         m.cfg.Sink,
		BatchSize:    m.cfg.Tuning.BatchSize,
		PrechunkSize: m.cfg.Tuning.PrechunkSize,
		Metrics:      m.cfg.Metrics,
		Logger:       m.cfg.Logger,
	})

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.current = sess
	m.cancel = cancel

	m.running.Add(1)
	go func() {
		defer m.running.Done()
		defer cancel()
		sess.Run(sessCtx)
	}()

	m.cfg.Logger.Info("annotation session started",
		"session_id", id, "target", req.Target, "bytes", len(req.Text))
	return id
}

// translatorFor returns the cached translator when the option set matches,
// otherwise tears it down and builds a fresh one. Backends are assumed
// non-reentrant-safe across option changes mid-flight. Must be called with
// m.mu held.
func (m *Manager) translatorFor(opts translate.Options) *translate.Dual {
	key := opts.Key()
	if m.translator != nil && m.optionsKey == key {
		return m.translator
	}
	if m.translator != nil {
		m.cfg.Logger.Debug("translation options changed, recreating translator",
			"old", m.optionsKey, "new", key)
	}
	topts := []translate.Option{
		translate.WithOptions(opts),
		translate.WithLogger(m.cfg.Logger),
		translate.WithMetrics(m.cfg.Metrics),
	}
	if m.cfg.Tuning.CallTimeout > 0 {
		topts = append(topts, translate.WithCallTimeout(m.cfg.Tuning.CallTimeout))
	}
	m.translator = translate.New(m.cfg.Literal, m.cfg.Contextual, topts...)
	m.optionsKey = key
	return m.translator
}

// Retune replaces the tuning knobs. The new values apply to sessions started
// after the call. A changed call timeout drops the cached translator so the
// next session builds one with the new bound.
func (m *Manager) Retune(t Tuning) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.CallTimeout != m.cfg.Tuning.CallTimeout {
		m.translator = nil
		m.optionsKey = ""
	}
	m.cfg.Tuning = t
	m.cfg.Logger.Info("pipeline tuning updated",
		"batch_size", t.BatchSize, "prechunk_size", t.PrechunkSize,
		"call_timeout", t.CallTimeout, "target", t.Target)
}

// Progress returns the live session's progress, or a zero Progress when no
// session has run yet.
func (m *Manager) Progress() types.Progress {
	m.mu.Lock()
	sess := m.current
	m.mu.Unlock()
	if sess == nil {
		return types.Progress{}
	}
	return sess.Progress()
}

// Stop cancels the live session, if any, and waits for its goroutine to
// drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()
	m.running.Wait()
}
