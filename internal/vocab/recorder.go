package vocab

import (
	"context"
	"log/slog"
	"time"

	"github.com/pageglot/pageglot/internal/annotate"
	"github.com/pageglot/pageglot/pkg/types"
)

// saveTimeout bounds a single background save batch.
const saveTimeout = 10 * time.Second

// Recorder bridges completed annotation events into a Store. Saves run on
// their own goroutine so a slow or failing store never stalls a session;
// failures are logged and dropped.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

var _ annotate.Sink = (*Recorder)(nil)

// NewRecorder returns a Recorder writing to store. A nil logger falls back to
// [slog.Default].
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// PublishText is a no-op; only finished chunks carry vocabulary.
func (r *Recorder) PublishText(sessionID, title, text string) {}

// PublishProgress is a no-op.
func (r *Recorder) PublishProgress(sessionID string, p types.Progress) {}

// PublishChunks saves the translated chunks of a final event in the
// background. Partial events are ignored so each chunk is written once.
func (r *Recorder) PublishChunks(sessionID string, ev types.Event) {
	if !ev.IsComplete {
		return
	}
	entries := make([]Entry, 0, len(ev.Chunks))
	for _, c := range ev.Chunks {
		if c.Translation == nil {
			continue
		}
		entries = append(entries, FromChunk(c))
	}
	if len(entries) == 0 {
		return
	}
	go r.save(sessionID, entries)
}

func (r *Recorder) save(sessionID string, entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	for _, e := range entries {
		if _, err := r.store.Save(ctx, e); err != nil {
			r.logger.Warn("vocab save failed",
				"session_id", sessionID,
				"text", e.Text,
				"error", err)
		}
	}
}
