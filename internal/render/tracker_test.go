package render_test

import (
	"strings"
	"testing"

	"github.com/pageglot/pageglot/internal/render"
	"github.com/pageglot/pageglot/pkg/types"
)

func TestTracker_EmptyBeforeFirstSession(t *testing.T) {
	t.Parallel()

	tr := render.NewTracker()
	if _, _, ok := tr.Snapshot(); ok {
		t.Fatal("Snapshot ok before any session, want false")
	}
}

func TestTracker_AppliesChunkEvents(t *testing.T) {
	t.Parallel()

	tr := render.NewTracker()
	tr.PublishText("s1", "title", "hello world")
	tr.PublishChunks("s1", types.Event{
		Chunks: []types.Chunk{{
			Text: "hello", Start: 0, End: 5,
			Translation: &types.Translation{Literal: "hola"},
		}},
	})

	id, html, ok := tr.Snapshot()
	if !ok || id != "s1" {
		t.Fatalf("Snapshot = (%q, ok=%v), want s1", id, ok)
	}
	if !strings.Contains(html, `data-literal="hola"`) {
		t.Errorf("html missing annotated span:\n%s", html)
	}
	if !strings.Contains(html, " world") {
		t.Errorf("html missing plain-text remainder:\n%s", html)
	}
}

func TestTracker_DropsStaleSessionEvents(t *testing.T) {
	t.Parallel()

	tr := render.NewTracker()
	tr.PublishText("s1", "", "hello world")
	tr.PublishText("s2", "", "goodbye moon")

	// s1's surface was replaced; its late chunks must not touch s2's.
	tr.PublishChunks("s1", types.Event{
		Chunks: []types.Chunk{{
			Text: "hello", Start: 0, End: 5,
			Translation: &types.Translation{Literal: "hola"},
		}},
	})

	id, html, ok := tr.Snapshot()
	if !ok || id != "s2" {
		t.Fatalf("Snapshot = (%q, ok=%v), want s2", id, ok)
	}
	if strings.Contains(html, "hola") {
		t.Errorf("stale session's annotation leaked into snapshot:\n%s", html)
	}
}

func TestTracker_ReappliedChunksIdempotent(t *testing.T) {
	t.Parallel()

	tr := render.NewTracker()
	tr.PublishText("s1", "", "hello world")
	ev := types.Event{
		Chunks: []types.Chunk{{
			Text: "hello", Start: 0, End: 5,
			Translation: &types.Translation{Literal: "hola"},
		}},
	}
	tr.PublishChunks("s1", ev)
	tr.PublishChunks("s1", ev) // final event repeats every chunk

	_, html, _ := tr.Snapshot()
	if got := strings.Count(html, `data-literal="hola"`); got != 1 {
		t.Fatalf("annotated span appears %d times, want 1", got)
	}
}
