package segment_test

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/pageglot/pageglot/internal/observe"
	"github.com/pageglot/pageglot/internal/segment"
	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/llm"
	"github.com/pageglot/pageglot/pkg/provider/llm/mock"
	"github.com/pageglot/pageglot/pkg/types"
)

// verifyChunks asserts the cross-chunk invariants: exact substrings, ordered,
// non-overlapping.
func verifyChunks(t *testing.T, source string, chunks []types.Chunk) {
	t.Helper()
	prevEnd := 0
	for i, c := range chunks {
		if c.Start < prevEnd {
			t.Errorf("chunk %d overlaps previous: start %d < prev end %d", i, c.Start, prevEnd)
		}
		if c.Start >= c.End || c.End > len(source) {
			t.Errorf("chunk %d has invalid span [%d, %d)", i, c.Start, c.End)
			continue
		}
		if got := source[c.Start:c.End]; got != c.Text {
			t.Errorf("chunk %d text mismatch: source[%d:%d] = %q, chunk text %q",
				i, c.Start, c.End, got, c.Text)
		}
		prevEnd = c.End
	}
}

func TestSegment_OracleSuccess(t *testing.T) {
	t.Parallel()

	source := "The quick fox jumps over the dog"
	oracle := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "```json\n" +
			`[
				{"text": "The quick fox", "type": "noun_phrase", "start": 0, "end": 13},
				{"text": "jumps", "type": "verb_phrase", "start": 14, "end": 19},
				{"text": "over the dog", "type": "prepositional_phrase", "start": 20, "end": 32}
			]` + "\n```",
	}}

	s := segment.New(oracle)
	chunks := s.Segment(context.Background(), source, lang.EnglishUS)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	verifyChunks(t, source, chunks)
	if chunks[0].Type != types.NounPhrase {
		t.Errorf("chunk 0 type = %q, want noun_phrase", chunks[0].Type)
	}
	if chunks[2].Type != types.PrepositionalPhrase {
		t.Errorf("chunk 2 type = %q, want prepositional_phrase", chunks[2].Type)
	}
	if chunks[1].Language != lang.EnglishUS {
		t.Errorf("chunk 1 language = %q, want en-US", chunks[1].Language)
	}
}

func TestSegment_RepairsWrongOffsets(t *testing.T) {
	t.Parallel()

	// The oracle reports garbage offsets; repair recomputes them by locating
	// each item in the source.
	source := "hello wide world"
	oracle := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `[
			{"text": "hello", "type": "single_word", "start": 99, "end": 0},
			{"text": "wide world", "type": "noun_phrase", "start": "three", "end": null}
		]`,
	}}

	s := segment.New(oracle)
	chunks := s.Segment(context.Background(), source, lang.EnglishUS)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	verifyChunks(t, source, chunks)
	if chunks[0].Start != 0 || chunks[0].End != 5 {
		t.Errorf("chunk 0 span = [%d, %d), want [0, 5)", chunks[0].Start, chunks[0].End)
	}
	if chunks[1].Start != 6 || chunks[1].End != 16 {
		t.Errorf("chunk 1 span = [%d, %d), want [6, 16)", chunks[1].Start, chunks[1].End)
	}
}

func TestSegment_DiscardsUnlocatableItems(t *testing.T) {
	t.Parallel()

	source := "alpha beta gamma"
	oracle := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `[
			{"text": "beta", "type": "single_word"},
			{"text": "alpha", "type": "single_word"},
			{"text": "hallucinated", "type": "single_word"},
			{"text": "gamma", "type": "single_word"}
		]`,
	}}

	s := segment.New(oracle)
	chunks := s.Segment(context.Background(), source, lang.EnglishUS)

	// "alpha" comes before the cursor after "beta" is consumed, and
	// "hallucinated" is not in the source at all; both are discarded.
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != "beta" || chunks[1].Text != "gamma" {
		t.Fatalf("chunks = %q, %q; want beta, gamma", chunks[0].Text, chunks[1].Text)
	}
	verifyChunks(t, source, chunks)
}

func TestSegment_UnknownTypeNormalized(t *testing.T) {
	t.Parallel()

	oracle := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `[{"text": "word", "type": "interjection"}]`,
	}}

	s := segment.New(oracle)
	chunks := s.Segment(context.Background(), "word", lang.EnglishUS)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Type != types.SingleWord {
		t.Fatalf("type = %q, want single_word", chunks[0].Type)
	}
}

func TestSegment_MalformedResponseFallsBack(t *testing.T) {
	t.Parallel()

	oracle := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "I'm sorry, I cannot segment this text.",
	}}

	source := "one two  three"
	s := segment.New(oracle)
	chunks := s.Segment(context.Background(), source, lang.EnglishUS)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	verifyChunks(t, source, chunks)
	// Double space between "two" and "three": offsets must stay exact.
	if chunks[2].Start != 9 {
		t.Errorf("chunk 2 start = %d, want 9", chunks[2].Start)
	}
}

func TestSegment_OracleErrorFallsBack(t *testing.T) {
	t.Parallel()

	oracle := &mock.Provider{CompleteErr: errors.New("rate limited")}
	s := segment.New(oracle)
	chunks := s.Segment(context.Background(), "fall back please", lang.EnglishUS)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
}

func TestSegment_OracleUnavailableFallsBack(t *testing.T) {
	t.Parallel()

	oracle := &mock.Provider{Unavailable: true}
	s := segment.New(oracle)
	chunks := s.Segment(context.Background(), "no oracle here", lang.EnglishUS)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(oracle.CompleteCalls) != 0 {
		t.Fatalf("oracle called %d times while unavailable, want 0", len(oracle.CompleteCalls))
	}
}

func TestSegment_ChineseFallbackPerCharacter(t *testing.T) {
	t.Parallel()

	source := "你好 世界"
	s := segment.New(nil)
	chunks := s.Segment(context.Background(), source, lang.ChineseCN)

	// Four ideographs, whitespace skipped.
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	verifyChunks(t, source, chunks)
	if chunks[2].Text != "世" {
		t.Errorf("chunk 2 text = %q, want 世", chunks[2].Text)
	}
	// Byte offsets, not rune offsets: the space sits at byte 6.
	if chunks[2].Start != 7 {
		t.Errorf("chunk 2 start = %d, want 7", chunks[2].Start)
	}
}

func TestSegment_JapaneseFallbackOffsets(t *testing.T) {
	t.Parallel()

	source := "私は学校に行きます"
	s := segment.New(nil)
	chunks := s.Segment(context.Background(), source, lang.Japanese)

	if len(chunks) == 0 {
		t.Fatal("got no chunks")
	}
	verifyChunks(t, source, chunks)
}

func TestSegment_EmptyText(t *testing.T) {
	t.Parallel()

	s := segment.New(nil)
	if chunks := s.Segment(context.Background(), "", lang.EnglishUS); chunks != nil {
		t.Fatalf("got %d chunks for empty text, want none", len(chunks))
	}
}

func TestSegment_NilOracleResponseFallsBack(t *testing.T) {
	t.Parallel()

	// A zero-value mock answers (nil, nil); that must degrade to the
	// fallback, not panic.
	oracle := &mock.Provider{}
	s := segment.New(oracle)

	source := "the quick brown fox"
	chunks := s.Segment(context.Background(), source, lang.EnglishUS)
	if len(chunks) == 0 {
		t.Fatal("got no chunks, want fallback segmentation")
	}
	verifyChunks(t, source, chunks)
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

func TestSegment_FallbackRecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	oracle := &mock.Provider{CompleteErr: errors.New("overloaded")}
	s := segment.New(oracle, segment.WithMetrics(m))

	chunks := s.Segment(context.Background(), "the quick brown fox", lang.EnglishUS)
	if len(chunks) == 0 {
		t.Fatal("got no chunks, want fallback segmentation")
	}

	if got := counterTotal(t, reader, "pageglot.fallbacks.taken"); got != 1 {
		t.Errorf("fallbacks taken = %d, want 1", got)
	}
	if got := counterTotal(t, reader, "pageglot.oracle.errors"); got != 1 {
		t.Errorf("oracle errors = %d, want 1", got)
	}
	if got := counterTotal(t, reader, "pageglot.chunks.processed"); got != int64(len(chunks)) {
		t.Errorf("chunks processed = %d, want %d", got, len(chunks))
	}
}
