// Package app wires all Pageglot subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithVocabStore, WithSink, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pageglot/pageglot/internal/annotate"
	"github.com/pageglot/pageglot/internal/config"
	"github.com/pageglot/pageglot/internal/detect"
	"github.com/pageglot/pageglot/internal/health"
	"github.com/pageglot/pageglot/internal/observe"
	"github.com/pageglot/pageglot/internal/render"
	"github.com/pageglot/pageglot/internal/resilience"
	"github.com/pageglot/pageglot/internal/segment"
	"github.com/pageglot/pageglot/internal/server"
	"github.com/pageglot/pageglot/internal/translate"
	"github.com/pageglot/pageglot/internal/vocab"
	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/langid"
	"github.com/pageglot/pageglot/pkg/provider/llm"
	"github.com/pageglot/pageglot/pkg/provider/mt"
)

// shutdownGrace bounds the HTTP server drain during shutdown.
const shutdownGrace = 10 * time.Second

// Providers holds one interface value per oracle slot. Nil means the backend
// is not configured; every pipeline stage degrades to its deterministic
// fallback. Populated by main.go via the config registry.
type Providers struct {
	LLM    llm.Provider
	LangID langid.Provider

	// MT lists literal-translation backends in failover order.
	MT []mt.Provider

	// MTNames carries the configured name of each MT entry, index-aligned
	// with MT. Used for circuit breaker labelling.
	MTNames []string
}

// App owns all subsystem lifetimes and serves the annotation pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	store      vocab.Store
	pool       *pgxpool.Pool
	hub        *server.Hub
	renderer   *render.Tracker
	manager    *annotate.Manager
	literal    mt.Provider
	contextual llm.Provider
	sink       annotate.Sink
	speaker    annotate.Speaker
	images     annotate.ImageLookup
	httpSrv    *http.Server
	tlsCert    string
	tlsKey     string

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithVocabStore injects a vocabulary store instead of creating one from config.
func WithVocabStore(s vocab.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSink injects an output sink instead of the WebSocket hub.
func WithSink(s annotate.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithSpeaker wires an external speech-synthesis collaborator.
func WithSpeaker(s annotate.Speaker) Option {
	return func(a *App) { a.speaker = s }
}

// WithImageLookup wires an external image-search collaborator.
func WithImageLookup(l annotate.ImageLookup) Option {
	return func(a *App) { a.images = l }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Vocabulary store ──────────────────────────────────────────────
	if err := a.initVocab(ctx); err != nil {
		return nil, fmt.Errorf("app: init vocab: %w", err)
	}

	// ── 2. Output hub ────────────────────────────────────────────────────
	a.hub = server.NewHub()
	if a.sink == nil {
		a.sink = a.hub
	}
	// Completed sessions feed the vocabulary store in the background, and the
	// renderer keeps an HTML surface of the active session for /api/html.
	a.renderer = render.NewTracker()
	a.sink = annotate.Fanout(a.sink, vocab.NewRecorder(a.store, slog.Default()), a.renderer)

	// ── 3. Annotation manager ────────────────────────────────────────────
	a.initManager()

	// ── 4. HTTP server ───────────────────────────────────────────────────
	a.initServer()

	return a, nil
}

// initVocab sets up the PostgreSQL vocabulary store or an in-memory one.
func (a *App) initVocab(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	dsn := a.cfg.Vocab.PostgresDSN
	if dsn == "" {
		slog.Info("no vocab database configured, using in-memory store")
		a.store = vocab.NewMemoryStore()
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	store := vocab.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return err
	}

	a.pool = pool
	a.store = store
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return nil
}

// initManager builds the detection, segmentation, and translation stack and
// the session manager on top of it.
func (a *App) initManager() {
	a.literal = a.literalBackend()
	a.contextual = a.contextualBackend()

	a.manager = annotate.NewManager(annotate.ManagerConfig{
		Detector:   detect.New(a.providers.LangID),
		Segmenter:  segment.New(a.contextual),
		Literal:    a.literal,
		Contextual: a.contextual,
		Sink:       a.sink,
		Tuning:     pipelineTuning(a.cfg.Pipeline),
	})
	a.closers = append(a.closers, func() error {
		a.manager.Stop()
		return nil
	})
}

// contextualBackend wraps the configured LLM in a circuit-breaking group so
// a flapping oracle trips open quickly and sessions take their deterministic
// fallbacks instead of waiting out timeouts on every call.
func (a *App) contextualBackend() llm.Provider {
	if a.providers.LLM == nil {
		return nil
	}
	group := resilience.NewLLMFallback(a.providers.LLM, "llm", resilience.FallbackConfig{})
	return group
}

// literalBackend folds the configured MT providers into a single backend:
// nil when none, the provider itself when one, a circuit-breaking failover
// group when several.
func (a *App) literalBackend() mt.Provider {
	mts := a.providers.MT
	switch len(mts) {
	case 0:
		return nil
	case 1:
		return mts[0]
	}

	group := resilience.NewMTFallback(mts[0], a.mtName(0), resilience.FallbackConfig{})
	for i := 1; i < len(mts); i++ {
		group.AddFallback(a.mtName(i), mts[i])
	}
	return group
}

func (a *App) mtName(i int) string {
	if i < len(a.providers.MTNames) && a.providers.MTNames[i] != "" {
		return a.providers.MTNames[i]
	}
	return fmt.Sprintf("mt-%d", i)
}

// initServer assembles the route table and the http.Server.
func (a *App) initServer() {
	var checkers []health.Checker
	if a.contextual != nil {
		checkers = append(checkers, health.ProviderChecker("llm", a.contextual))
	}
	if a.providers.LangID != nil {
		checkers = append(checkers, health.ProviderChecker("langid", a.providers.LangID))
	}
	if a.literal != nil {
		checkers = append(checkers, health.ProviderChecker("mt", a.literal))
	}
	if a.pool != nil {
		checkers = append(checkers, health.DatabaseChecker(a.pool))
	}

	srv := server.New(server.Config{
		Manager:  a.manager,
		Hub:      a.hub,
		Renderer: a.renderer,
		Store:    a.store,
		Matcher:  vocab.NewMatcher(),
		Speaker:  a.speaker,
		Images:   a.images,
		Health:   health.New(checkers...),
		Metrics:  observe.DefaultMetrics(),
	})

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.httpSrv = &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}
	if tls := a.cfg.Server.TLS; tls != nil {
		a.tlsCert = tls.CertFile
		a.tlsKey = tls.KeyFile
	}
}

// Manager exposes the annotation manager, mainly for tests and for config
// hot-reload plumbing in main.
func (a *App) Manager() *annotate.Manager {
	return a.manager
}

// ApplyPipeline hands updated pipeline settings to the session manager.
// Called by the config watcher when the pipeline section changes on disk.
func (a *App) ApplyPipeline(p config.PipelineConfig) {
	a.manager.Retune(pipelineTuning(p))
}

// pipelineTuning maps the config's pipeline section onto the manager's
// runtime knobs.
func pipelineTuning(p config.PipelineConfig) annotate.Tuning {
	t := annotate.Tuning{
		BatchSize:    p.BatchSize,
		PrechunkSize: p.PrechunkSize,
		CallTimeout:  p.CallTimeout,
		Options: translate.Options{
			Tone:   p.Options.Tone,
			Format: p.Options.Format,
			Length: p.Options.Length,
		},
	}
	if p.TargetLanguage != "" {
		t.Target = lang.Canonicalize(p.TargetLanguage)
	}
	return t
}

// Run serves HTTP and blocks until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if a.tlsCert != "" {
			err = a.httpSrv.ListenAndServeTLS(a.tlsCert, a.tlsKey)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	slog.Info("app running", "addr", a.httpSrv.Addr, "tls", a.tlsCert != "")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
