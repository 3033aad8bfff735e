// Package render maintains a live representation of annotated source text and
// applies chunk annotations to exact byte ranges.
//
// A [Surface] starts with every rune of the source occupying its own raw,
// addressable position. WrapRange consumes a contiguous run of raw positions
// and replaces them with a single annotated node. The precondition check —
// every position in the range must still be raw — is what makes re-sent,
// stale, and overlapping chunks safe no-ops; correctness never depends on
// chunks arriving sorted by offset.
package render

import (
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"

	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/types"
)

// Annotation is the data carried by a wrapped range. It is everything later
// UI behaviours (hover tooltip, click-to-speak, image lookup) need without
// re-querying the pipeline.
type Annotation struct {
	Type       types.ChunkType
	Literal    string
	Contextual string
	Differs    bool
	Language   lang.Tag
}

// node is one addressable span of the surface. Raw nodes cover exactly one
// rune; annotated nodes cover a whole wrapped range.
type node struct {
	start, end int
	ann        *Annotation // nil while raw
}

// Surface is the live output representation for one source text. It is not
// safe for concurrent use; the orchestrator serialises access per session.
type Surface struct {
	source  string
	nodes   []node
	wrapped int
	logger  *slog.Logger
}

// Option is a functional option for Surface.
type Option func(*Surface)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Surface) {
		s.logger = logger
	}
}

// New builds a Surface over source with one raw position per rune.
func New(source string, opts ...Option) *Surface {
	s := &Surface{
		source: source,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	prev := -1
	for i := range source {
		if prev >= 0 {
			s.nodes = append(s.nodes, node{start: prev, end: i})
		}
		prev = i
	}
	if prev >= 0 {
		s.nodes = append(s.nodes, node{start: prev, end: len(source)})
	}
	return s
}

// Source returns the original text the surface was built over.
func (s *Surface) Source() string {
	return s.source
}

// WrappedCount returns how many ranges have been annotated so far.
func (s *Surface) WrappedCount() int {
	return s.wrapped
}

// WrapRange annotates the byte range [start, end) of the source. It reports
// whether the wrap was applied.
//
// The operation is a silent no-op — not an error — when the range is out of
// bounds, whitespace-only, misaligned with rune boundaries, or when any
// position in it has already been consumed by an earlier wrap. Re-applying
// the same chunk is therefore idempotent.
func (s *Surface) WrapRange(start, end int, ann Annotation) bool {
	if start < 0 || end > len(s.source) || start >= end {
		s.logger.Debug("skipping wrap with invalid range", "start", start, "end", end)
		return false
	}
	if strings.TrimSpace(s.source[start:end]) == "" {
		return false
	}

	i := s.nodeAt(start)
	if i < 0 {
		// start is inside an existing node or already consumed.
		s.logger.Debug("skipping wrap, start position not raw", "start", start, "end", end)
		return false
	}

	j := i
	for {
		if j >= len(s.nodes) || s.nodes[j].ann != nil {
			s.logger.Debug("skipping wrap, range already consumed", "start", start, "end", end)
			return false
		}
		if s.nodes[j].end == end {
			break
		}
		if s.nodes[j].end > end {
			s.logger.Debug("skipping wrap, end misaligned", "start", start, "end", end)
			return false
		}
		j++
	}

	merged := node{start: start, end: end, ann: &ann}
	s.nodes = append(s.nodes[:i], append([]node{merged}, s.nodes[j+1:]...)...)
	s.wrapped++
	return true
}

// nodeAt returns the index of the node starting exactly at byte offset start,
// or -1. Nodes stay sorted by start offset, so binary search applies.
func (s *Surface) nodeAt(start int) int {
	i := sort.Search(len(s.nodes), func(k int) bool {
		return s.nodes[k].start >= start
	})
	if i < len(s.nodes) && s.nodes[i].start == start {
		return i
	}
	return -1
}

// Apply wraps every chunk in the event that carries a translation, returning
// the number of ranges actually consumed. Chunks that fail the precondition
// check are skipped silently per the WrapRange contract.
func (s *Surface) Apply(ev types.Event) int {
	applied := 0
	for _, c := range ev.Chunks {
		ann := Annotation{
			Type:     c.Type,
			Language: c.Language,
		}
		if c.Translation != nil {
			ann.Literal = c.Translation.Literal
			ann.Contextual = c.Translation.Contextual
			ann.Differs = c.Translation.Differs
		}
		if s.WrapRange(c.Start, c.End, ann) {
			applied++
		}
	}
	return applied
}

// Run is one segment of rendered output: either plain text (Annotation nil)
// or an annotated range.
type Run struct {
	Text       string
	Annotation *Annotation
}

// Runs returns the surface contents in order, with adjacent raw positions
// coalesced into single plain-text runs. Concatenating every run's text
// reproduces the source exactly.
func (s *Surface) Runs() []Run {
	var runs []Run
	rawStart := -1
	flush := func(upTo int) {
		if rawStart >= 0 {
			runs = append(runs, Run{Text: s.source[rawStart:upTo]})
			rawStart = -1
		}
	}
	for _, n := range s.nodes {
		if n.ann == nil {
			if rawStart < 0 {
				rawStart = n.start
			}
			continue
		}
		flush(n.start)
		runs = append(runs, Run{Text: s.source[n.start:n.end], Annotation: n.ann})
	}
	flush(len(s.source))
	return runs
}

// HTML renders the surface as an HTML fragment: plain runs are escaped text,
// annotated runs become span elements carrying the annotation as data
// attributes.
func (s *Surface) HTML() string {
	var sb strings.Builder
	for _, r := range s.Runs() {
		if r.Annotation == nil {
			sb.WriteString(html.EscapeString(r.Text))
			continue
		}
		a := r.Annotation
		fmt.Fprintf(&sb,
			`<span class="pageglot-chunk" data-type="%s" data-literal="%s" data-contextual="%s" data-differs="%t" lang="%s">%s</span>`,
			html.EscapeString(string(a.Type)),
			html.EscapeString(a.Literal),
			html.EscapeString(a.Contextual),
			a.Differs,
			html.EscapeString(string(a.Language)),
			html.EscapeString(r.Text),
		)
	}
	return sb.String()
}
