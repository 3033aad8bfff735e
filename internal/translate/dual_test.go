package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/pageglot/pageglot/internal/observe"
	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/llm"
	llmmock "github.com/pageglot/pageglot/pkg/provider/llm/mock"
	mtmock "github.com/pageglot/pageglot/pkg/provider/mt/mock"
	"github.com/pageglot/pageglot/pkg/types"
)

func TestNormalizeForCompare(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"Hello, World.", "hello, world"},
		{"  hello   world  ", "hello world"},
		{"HELLO WORLD!", "hello world"},
		{"你好。", "你好"},
		{"done", "done"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeForCompare(tc.in); got != tc.want {
			t.Errorf("normalizeForCompare(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDiffers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                string
		literal, contextual string
		want                bool
	}{
		{"identical", "hello world", "hello world", false},
		{"case only", "Hello World", "hello world", false},
		{"trailing period only", "hello world.", "hello world", false},
		{"whitespace only", "hello  world", "hello world", false},
		{"genuine difference", "bank (river)", "bank (finance)", true},
		{"missing contextual", "hello", "", false},
		{"missing literal", "", "hola", false},
		{"both missing", "", "", false},
	}
	for _, tc := range cases {
		if got := differs(tc.literal, tc.contextual); got != tc.want {
			t.Errorf("%s: differs(%q, %q) = %v, want %v",
				tc.name, tc.literal, tc.contextual, got, tc.want)
		}
	}
}

func TestTranslateLiteral(t *testing.T) {
	t.Parallel()

	backend := mtmock.New(map[string]string{
		"hello": "bonjour",
		"world": "monde",
	})
	d := New(backend, nil)

	chunks := []types.Chunk{
		{Text: "hello", Start: 0, End: 5},
		{Text: "world", Start: 6, End: 11},
	}
	var progress []int
	n := d.TranslateLiteral(context.Background(), chunks, lang.EnglishUS, lang.French,
		func(completed int) { progress = append(progress, completed) })

	if n != 2 {
		t.Fatalf("TranslateLiteral = %d, want 2", n)
	}
	if chunks[0].Translation.Literal != "bonjour" || chunks[1].Translation.Literal != "monde" {
		t.Fatalf("literals = %q, %q", chunks[0].Translation.Literal, chunks[1].Translation.Literal)
	}
	if len(progress) != 2 || progress[0] != 1 || progress[1] != 2 {
		t.Fatalf("progress callbacks = %v, want [1 2]", progress)
	}
}

func TestTranslateLiteral_BackendErrorLeavesFieldsEmpty(t *testing.T) {
	t.Parallel()

	failing := mtmock.New(nil)
	failing.TranslateErr = errors.New("quota exceeded")
	d := New(failing, nil)

	chunks := []types.Chunk{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	n := d.TranslateLiteral(context.Background(), chunks, lang.EnglishUS, lang.French, nil)
	if n != 0 {
		t.Fatalf("TranslateLiteral with failing backend = %d, want 0", n)
	}
	for i, c := range chunks {
		if c.Translation != nil && c.Translation.Literal != "" {
			t.Errorf("chunk %d literal = %q, want empty", i, c.Translation.Literal)
		}
	}
	// Every chunk was attempted: one failure never aborts the batch.
	if len(failing.TranslateCalls) != 3 {
		t.Fatalf("backend called %d times, want 3", len(failing.TranslateCalls))
	}
}

func TestTranslateLiteral_UnavailableBackend(t *testing.T) {
	t.Parallel()

	backend := mtmock.New(nil)
	backend.Unavailable = true
	d := New(backend, nil)

	chunks := []types.Chunk{{Text: "hello"}}
	if n := d.TranslateLiteral(context.Background(), chunks, lang.EnglishUS, lang.French, nil); n != 0 {
		t.Fatalf("TranslateLiteral = %d, want 0", n)
	}
	if len(backend.TranslateCalls) != 0 {
		t.Fatalf("backend called %d times while unavailable, want 0", len(backend.TranslateCalls))
	}
}

func TestTranslateContextual_UsesLiteralHintAndSetsDiffers(t *testing.T) {
	t.Parallel()

	model := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `"orilla del río"`}}
	d := New(nil, model)

	source := "He sat on the bank of the river."
	chunks := []types.Chunk{{
		Text: "bank", Start: 14, End: 18,
		Translation: &types.Translation{Literal: "banco"},
	}}

	n := d.TranslateContextual(context.Background(), source, chunks, lang.Spanish, nil)
	if n != 1 {
		t.Fatalf("TranslateContextual = %d, want 1", n)
	}
	tr := chunks[0].Translation
	if tr.Contextual != "orilla del río" {
		t.Fatalf("contextual = %q, want quote-stripped phrase", tr.Contextual)
	}
	if !tr.Differs {
		t.Fatal("Differs = false, want true")
	}
	if tr.Literal != "banco" {
		t.Fatalf("literal clobbered: %q", tr.Literal)
	}

	// The prompt must carry the literal hint and the passage.
	if len(model.CompleteCalls) != 1 {
		t.Fatalf("model called %d times, want 1", len(model.CompleteCalls))
	}
	userMsg := model.CompleteCalls[0].Req.Messages[0].Content
	for _, want := range []string{"banco", "bank of the river", "bank"} {
		if !strings.Contains(userMsg, want) {
			t.Errorf("user message missing %q:\n%s", want, userMsg)
		}
	}
}

func TestTranslateContextual_FailureKeepsLiteral(t *testing.T) {
	t.Parallel()

	model := &llmmock.Provider{CompleteErr: errors.New("overloaded")}
	d := New(nil, model)

	chunks := []types.Chunk{{
		Text: "hello", Start: 0, End: 5,
		Translation: &types.Translation{Literal: "hola"},
	}}
	n := d.TranslateContextual(context.Background(), "hello", chunks, lang.Spanish, nil)
	if n != 0 {
		t.Fatalf("TranslateContextual = %d, want 0", n)
	}
	tr := chunks[0].Translation
	if tr.Literal != "hola" || tr.Contextual != "" {
		t.Fatalf("translation = %+v, want literal preserved and contextual empty", tr)
	}
	if tr.Differs {
		t.Fatal("Differs = true with a missing side, want false")
	}
}

func TestTranslate_BothPathsConcurrently(t *testing.T) {
	t.Parallel()

	literal := mtmock.New(map[string]string{"hello": "hola."})
	model := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Hola"}}
	d := New(literal, model)

	chunks := []types.Chunk{{Text: "hello", Start: 0, End: 5}}
	litN, ctxN := d.Translate(context.Background(), "hello", chunks, lang.EnglishUS, lang.Spanish)
	if litN != 1 || ctxN != 1 {
		t.Fatalf("Translate = (%d, %d), want (1, 1)", litN, ctxN)
	}
	tr := chunks[0].Translation
	if tr.Literal != "hola." || tr.Contextual != "Hola" {
		t.Fatalf("translation = %+v", tr)
	}
	// "hola." and "Hola" normalize equal: no spurious differs flag.
	if tr.Differs {
		t.Fatal("Differs = true, want false after normalization")
	}
}

func TestOptionsKey(t *testing.T) {
	t.Parallel()

	a := Options{Tone: "formal"}
	b := Options{Tone: "casual"}
	if a.Key() == b.Key() {
		t.Fatal("distinct options share a key")
	}
	if a.Key() != (Options{Tone: "formal"}).Key() {
		t.Fatal("equal options produce different keys")
	}
}

func TestTranslate_ManyChunksBothPathsComplete(t *testing.T) {
	t.Parallel()

	// A nil translation map echoes the input, so every literal succeeds.
	literal := mtmock.New(nil)
	model := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ctx"}}
	d := New(literal, model)

	source := strings.Repeat("word ", 64)
	chunks := make([]types.Chunk, 64)
	for i := range chunks {
		chunks[i] = types.Chunk{Text: "word", Start: i * 5, End: i*5 + 4}
	}

	litN, ctxN := d.Translate(context.Background(), source, chunks, lang.EnglishUS, lang.Spanish)
	if litN != 64 || ctxN != 64 {
		t.Fatalf("Translate = (%d, %d), want (64, 64)", litN, ctxN)
	}
	for i, c := range chunks {
		if c.Translation == nil || c.Translation.Literal == "" || c.Translation.Contextual == "" {
			t.Fatalf("chunk %d incomplete: %+v", i, c.Translation)
		}
		if !c.Translation.Differs {
			t.Fatalf("chunk %d Differs = false, want true for distinct sides", i)
		}
	}
}

func TestTranslate_ContextualHintIsPreexistingLiteral(t *testing.T) {
	t.Parallel()

	// The contextual path works from a snapshot taken before the goroutines
	// start: a literal present beforehand reaches the prompt, one produced
	// mid-flight by the concurrent literal pass must not.
	literal := mtmock.New(map[string]string{"bank": "banco"})
	model := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "orilla"}}
	d := New(literal, model)

	chunks := []types.Chunk{{
		Text: "bank", Start: 0, End: 4,
		Translation: &types.Translation{Literal: "ribera"},
	}}
	d.Translate(context.Background(), "bank", chunks, lang.EnglishUS, lang.Spanish)

	if len(model.CompleteCalls) != 1 {
		t.Fatalf("model called %d times, want 1", len(model.CompleteCalls))
	}
	userMsg := model.CompleteCalls[0].Req.Messages[0].Content
	if !strings.Contains(userMsg, "ribera") {
		t.Errorf("prompt missing the pre-existing literal hint:\n%s", userMsg)
	}
	// The fresh literal still lands on the chunk after the join.
	if chunks[0].Translation.Literal != "banco" {
		t.Errorf("literal = %q, want %q", chunks[0].Translation.Literal, "banco")
	}
}

func TestTranslateContextual_NilResponseIsFailure(t *testing.T) {
	t.Parallel()

	// A zero-value mock answers (nil, nil); that must count as a failed
	// chunk, not a panic.
	model := &llmmock.Provider{}
	d := New(nil, model)

	chunks := []types.Chunk{{
		Text: "hello", Start: 0, End: 5,
		Translation: &types.Translation{Literal: "hola"},
	}}
	n := d.TranslateContextual(context.Background(), "hello", chunks, lang.Spanish, nil)
	if n != 0 {
		t.Fatalf("TranslateContextual = %d, want 0", n)
	}
	if chunks[0].Translation.Contextual != "" {
		t.Fatalf("contextual = %q, want empty", chunks[0].Translation.Contextual)
	}
}

// counterTotal sums every data point of the named int64 counter.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestTranslateContextual_RecordsOracleMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	model := &llmmock.Provider{CompleteErr: errors.New("overloaded")}
	d := New(nil, model, WithMetrics(m))

	chunks := []types.Chunk{{Text: "hello", Start: 0, End: 5}}
	d.TranslateContextual(context.Background(), "hello", chunks, lang.Spanish, nil)

	if got := counterTotal(t, reader, "pageglot.oracle.errors"); got != 1 {
		t.Errorf("oracle errors = %d, want 1", got)
	}
	if got := counterTotal(t, reader, "pageglot.oracle.requests"); got != 1 {
		t.Errorf("oracle requests = %d, want 1", got)
	}
}
