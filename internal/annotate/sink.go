package annotate

import (
	"context"

	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/types"
)

// Sink consumes a session's output. It is the orchestrator's entire public
// surface toward the rest of the system: raw text first, then incremental
// chunk events, then progress updates, closed by a final event with
// IsComplete set.
//
// Implementations must not block for long — publishes happen on the session's
// pipeline goroutine. Slow consumers should buffer or drop.
type Sink interface {
	// PublishText delivers the raw extracted text for immediate display.
	// It is called exactly once per session, before any oracle call is made.
	PublishText(sessionID, title, text string)

	// PublishChunks delivers a batch of annotated chunks. Events with
	// IsComplete == false are partial; the final event has IsComplete == true
	// and closes the session.
	PublishChunks(sessionID string, ev types.Event)

	// PublishProgress delivers a progress snapshot. Within one session,
	// Completed is non-decreasing and Total never shrinks once set.
	PublishProgress(sessionID string, p types.Progress)
}

// NopSink discards everything. Useful for tests and headless runs.
type NopSink struct{}

func (NopSink) PublishText(string, string, string)     {}
func (NopSink) PublishChunks(string, types.Event)      {}
func (NopSink) PublishProgress(string, types.Progress) {}

var _ Sink = NopSink{}

// Fanout returns a Sink that forwards every publish to each sink in order.
func Fanout(sinks ...Sink) Sink {
	return fanoutSink(sinks)
}

type fanoutSink []Sink

func (f fanoutSink) PublishText(sessionID, title, text string) {
	for _, s := range f {
		s.PublishText(sessionID, title, text)
	}
}

func (f fanoutSink) PublishChunks(sessionID string, ev types.Event) {
	for _, s := range f {
		s.PublishChunks(sessionID, ev)
	}
}

func (f fanoutSink) PublishProgress(sessionID string, p types.Progress) {
	for _, s := range f {
		s.PublishProgress(sessionID, p)
	}
}

// Speaker hands chunk text to an external text-to-speech collaborator.
// Fire-and-forget: errors are the implementation's problem to log.
type Speaker interface {
	Speak(ctx context.Context, text string, language lang.Tag)
}

// ImageLookup hands translation strings to an external image-search
// collaborator. Fire-and-forget.
type ImageLookup interface {
	Lookup(ctx context.Context, query string, language lang.Tag)
}
