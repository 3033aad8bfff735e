package render

import (
	"log/slog"
	"sync"

	"github.com/pageglot/pageglot/internal/annotate"
	"github.com/pageglot/pageglot/pkg/types"
)

// Tracker maintains the rendered surface for the active session. It listens
// on the orchestrator's sink: the extract-phase text event starts a fresh
// [Surface], every chunk event is applied to it, and [Tracker.Snapshot]
// serves the current HTML. The manager runs one session at a time, so a new
// text event simply replaces the previous surface.
type Tracker struct {
	mu      sync.Mutex
	session string
	surface *Surface
	logger  *slog.Logger
}

var _ annotate.Sink = (*Tracker)(nil)

// TrackerOption is a functional option for Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the logger. Defaults to slog.Default().
func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker returns an empty Tracker. Snapshot reports no session until the
// first text event arrives.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{logger: slog.Default()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// PublishText starts a fresh surface over text, discarding the previous
// session's surface.
func (t *Tracker) PublishText(sessionID, title, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = sessionID
	t.surface = New(text, WithLogger(t.logger))
}

// PublishChunks applies the event's chunks to the current surface. Events
// for a session other than the current one are dropped; the surface they
// belonged to is already gone.
func (t *Tracker) PublishChunks(sessionID string, ev types.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.surface == nil || sessionID != t.session {
		return
	}
	t.surface.Apply(ev)
}

// PublishProgress is a no-op; progress does not change the rendered output.
func (t *Tracker) PublishProgress(sessionID string, p types.Progress) {}

// Snapshot returns the current session ID and its rendered HTML fragment.
// ok is false when no session has published text yet.
func (t *Tracker) Snapshot() (sessionID, html string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.surface == nil {
		return "", "", false
	}
	return t.session, t.surface.HTML(), true
}
