package render_test

import (
	"strings"
	"testing"

	"github.com/pageglot/pageglot/internal/render"
	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/types"
)

func reconstruct(s *render.Surface) string {
	var sb strings.Builder
	for _, r := range s.Runs() {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

func TestWrapRange_Basic(t *testing.T) {
	t.Parallel()

	s := render.New("hello wide world")
	if !s.WrapRange(6, 10, render.Annotation{Literal: "large"}) {
		t.Fatal("WrapRange returned false")
	}

	runs := s.Runs()
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].Text != "hello " || runs[0].Annotation != nil {
		t.Errorf("run 0 = %+v, want raw 'hello '", runs[0])
	}
	if runs[1].Text != "wide" || runs[1].Annotation == nil {
		t.Errorf("run 1 = %+v, want annotated 'wide'", runs[1])
	}
	if runs[2].Text != " world" || runs[2].Annotation != nil {
		t.Errorf("run 2 = %+v, want raw ' world'", runs[2])
	}
	if got := reconstruct(s); got != "hello wide world" {
		t.Fatalf("reconstructed source = %q", got)
	}
}

func TestWrapRange_Idempotent(t *testing.T) {
	t.Parallel()

	s := render.New("hello world")
	if !s.WrapRange(0, 5, render.Annotation{Literal: "first"}) {
		t.Fatal("first wrap failed")
	}
	// The same chunk re-sent: silent no-op, original annotation intact.
	if s.WrapRange(0, 5, render.Annotation{Literal: "second"}) {
		t.Fatal("re-wrap of consumed range succeeded, want no-op")
	}
	if s.WrappedCount() != 1 {
		t.Fatalf("WrappedCount = %d, want 1", s.WrappedCount())
	}
	if runs := s.Runs(); runs[0].Annotation.Literal != "first" {
		t.Fatalf("annotation = %q, want first", runs[0].Annotation.Literal)
	}
}

func TestWrapRange_OverlapSkipped(t *testing.T) {
	t.Parallel()

	s := render.New("abcdefgh")
	if !s.WrapRange(2, 6, render.Annotation{}) {
		t.Fatal("initial wrap failed")
	}

	// Every partially-overlapping range must be skipped.
	overlaps := [][2]int{{0, 3}, {4, 8}, {2, 4}, {3, 5}, {1, 7}}
	for _, o := range overlaps {
		if s.WrapRange(o[0], o[1], render.Annotation{}) {
			t.Errorf("overlapping wrap [%d, %d) succeeded, want skip", o[0], o[1])
		}
	}

	// Non-overlapping neighbours still work.
	if !s.WrapRange(0, 2, render.Annotation{}) {
		t.Error("wrap [0, 2) failed")
	}
	if !s.WrapRange(6, 8, render.Annotation{}) {
		t.Error("wrap [6, 8) failed")
	}
	if got := reconstruct(s); got != "abcdefgh" {
		t.Fatalf("reconstructed source = %q", got)
	}
}

func TestWrapRange_OutOfOrderDelivery(t *testing.T) {
	t.Parallel()

	// Chunks are not guaranteed to arrive sorted by start.
	s := render.New("one two three")
	if !s.WrapRange(8, 13, render.Annotation{}) {
		t.Fatal("wrap of 'three' failed")
	}
	if !s.WrapRange(0, 3, render.Annotation{}) {
		t.Fatal("wrap of 'one' failed")
	}
	if !s.WrapRange(4, 7, render.Annotation{}) {
		t.Fatal("wrap of 'two' failed")
	}
	if s.WrappedCount() != 3 {
		t.Fatalf("WrappedCount = %d, want 3", s.WrappedCount())
	}
	if got := reconstruct(s); got != "one two three" {
		t.Fatalf("reconstructed source = %q", got)
	}
}

func TestWrapRange_WhitespaceOnlySkipped(t *testing.T) {
	t.Parallel()

	s := render.New("a   b")
	if s.WrapRange(1, 4, render.Annotation{}) {
		t.Fatal("whitespace-only wrap succeeded, want skip")
	}
	if s.WrappedCount() != 0 {
		t.Fatalf("WrappedCount = %d, want 0", s.WrappedCount())
	}
}

func TestWrapRange_OutOfBounds(t *testing.T) {
	t.Parallel()

	s := render.New("abc")
	cases := [][2]int{{-1, 2}, {0, 4}, {2, 2}, {2, 1}}
	for _, c := range cases {
		if s.WrapRange(c[0], c[1], render.Annotation{}) {
			t.Errorf("wrap [%d, %d) succeeded, want skip", c[0], c[1])
		}
	}
}

func TestWrapRange_MultibyteBoundaries(t *testing.T) {
	t.Parallel()

	source := "你好 world"
	s := render.New(source)

	// Mid-rune start: byte 1 is inside 你.
	if s.WrapRange(1, 3, render.Annotation{}) {
		t.Fatal("mid-rune wrap succeeded, want skip")
	}
	if !s.WrapRange(0, 3, render.Annotation{Literal: "hello"}) {
		t.Fatal("wrap of 你 failed")
	}
	if !s.WrapRange(3, 6, render.Annotation{Literal: "good"}) {
		t.Fatal("wrap of 好 failed")
	}
	if got := reconstruct(s); got != source {
		t.Fatalf("reconstructed source = %q", got)
	}
}

func TestApply_StaleChunksIgnored(t *testing.T) {
	t.Parallel()

	s := render.New("hello world")
	ev := types.Event{
		Phase: types.PhaseTranslateLiteral,
		Chunks: []types.Chunk{
			{Text: "hello", Start: 0, End: 5, Translation: &types.Translation{Literal: "hola"}},
			{Text: "world", Start: 6, End: 11, Translation: &types.Translation{Literal: "mundo"}},
		},
	}
	if n := s.Apply(ev); n != 2 {
		t.Fatalf("Apply = %d, want 2", n)
	}
	// The same event re-delivered applies nothing.
	if n := s.Apply(ev); n != 0 {
		t.Fatalf("re-Apply = %d, want 0", n)
	}
	if s.WrappedCount() != 2 {
		t.Fatalf("WrappedCount = %d, want 2", s.WrappedCount())
	}
}

func TestHTML_EscapesContent(t *testing.T) {
	t.Parallel()

	s := render.New(`x <b>&</b> y`)
	if !s.WrapRange(2, 12, render.Annotation{
		Type:       types.NounPhrase,
		Literal:    `lit "quoted"`,
		Contextual: "ctx <i>",
		Differs:    true,
		Language:   lang.EnglishUS,
	}) {
		t.Fatal("wrap failed")
	}

	out := s.HTML()
	if strings.Contains(out, "<b>") {
		t.Fatalf("unescaped markup in output: %s", out)
	}
	for _, want := range []string{
		"&lt;b&gt;",
		`data-type="noun_phrase"`,
		`data-differs="true"`,
		`lang="en-US"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRuns_EmptySource(t *testing.T) {
	t.Parallel()

	s := render.New("")
	if runs := s.Runs(); len(runs) != 0 {
		t.Fatalf("got %d runs for empty source, want 0", len(runs))
	}
	if s.WrapRange(0, 0, render.Annotation{}) {
		t.Fatal("wrap on empty surface succeeded")
	}
}
