// Package types defines the shared data model used across all Pageglot packages.
//
// These types form the lingua franca between oracles, the segmenter, the
// translator, the orchestrator, and the renderer. They are intentionally
// minimal — each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

import (
	"time"

	"github.com/pageglot/pageglot/pkg/lang"
)

// ChunkType is the best-effort grammatical role of a chunk, as guessed by the
// segmentation oracle. It is used for display only — no pipeline decision is
// ever made based on it.
type ChunkType string

const (
	NounPhrase          ChunkType = "noun_phrase"
	VerbPhrase          ChunkType = "verb_phrase"
	AdjectivePhrase     ChunkType = "adjective_phrase"
	AdverbPhrase        ChunkType = "adverb_phrase"
	PrepositionalPhrase ChunkType = "prepositional_phrase"
	SingleWord          ChunkType = "single_word"
)

// IsValid reports whether t is one of the recognised chunk types.
func (t ChunkType) IsValid() bool {
	switch t {
	case NounPhrase, VerbPhrase, AdjectivePhrase, AdverbPhrase, PrepositionalPhrase, SingleWord:
		return true
	}
	return false
}

// Normalize returns t if it is a recognised chunk type and [SingleWord]
// otherwise. Oracle output passes through Normalize before use anywhere else.
func (t ChunkType) Normalize() ChunkType {
	if t.IsValid() {
		return t
	}
	return SingleWord
}

// Translation holds the dual translation of one chunk.
type Translation struct {
	// Literal is the fast, direct word/phrase-level translation. Empty when
	// the literal path failed or has not run yet.
	Literal string `json:"literal"`

	// Contextual is the meaning-aware rendering produced by a language model
	// given surrounding context. Empty when the contextual path failed or has
	// not run yet.
	Contextual string `json:"contextual"`

	// Differs is true only when Literal and Contextual are meaningfully
	// distinct after normalization (case, whitespace, and terminal punctuation
	// are ignored). A missing side always compares equal, so a chunk with only
	// one translation never carries a spurious Differs flag.
	Differs bool `json:"differs"`
}

// Chunk is the central entity of the annotation pipeline: a span of the
// original source text with offsets, a grammatical type guess, and a dual
// translation.
//
// Lifecycle: created by the segmenter with Translation == nil, mutated once by
// the translator, then immutable. Chunks live in the orchestrator's in-memory
// sequence for the duration of one annotation session and are discarded when
// the session ends.
type Chunk struct {
	// Text is the exact substring this chunk represents. Invariant:
	// Text == source[Start:End], byte for byte.
	Text string `json:"text"`

	// Type is the best-effort grammatical role. Display only.
	Type ChunkType `json:"type"`

	// Start and End are half-open byte offsets into the original, unmodified
	// source text. Invariant: 0 <= Start < End <= len(source). Across a chunk
	// sequence spans are ordered left to right and never overlap; gaps are
	// tolerated and rendered as plain text.
	Start int `json:"start"`
	End   int `json:"end"`

	// Language is the detected source language, propagated from detection.
	// Used to select a speech-synthesis voice and to sanitise image queries.
	Language lang.Tag `json:"language,omitempty"`

	// Translation is nil until the translator populates it.
	Translation *Translation `json:"translation,omitempty"`
}

// Width returns the byte length of the chunk's span.
func (c Chunk) Width() int {
	return c.End - c.Start
}

// Phase identifies a stage of the annotation state machine. Phases are
// strictly ordered; see the annotate package for the transition rules.
type Phase string

const (
	PhaseExtract          Phase = "extract"
	PhaseDetect           Phase = "detect"
	PhaseSegment          Phase = "segment"
	PhasePrechunk         Phase = "prechunk"
	PhaseTranslateLiteral Phase = "translate-literal"
	PhaseTranslateContext Phase = "translate-contextual"
	PhaseFinalize         Phase = "finalize"
	PhaseDone             Phase = "done"
)

// Progress is the orchestrator's ephemeral per-session progress state.
//
// Invariant: Total locks to the first non-zero value observed and never
// decreases afterwards, so a progress bar's denominator cannot regress when a
// later phase reports a smaller interim count.
type Progress struct {
	Completed  int   `json:"completed"`
	Total      int   `json:"total"`
	IsComplete bool  `json:"isComplete"`
	Phase      Phase `json:"phase"`

	// LiteralCompleted and ContextualCompleted break Completed down per
	// translation path during the translate phases.
	LiteralCompleted    int `json:"literalCompleted,omitempty"`
	ContextualCompleted int `json:"contextualCompleted,omitempty"`
}

// BatchMetrics carries per-batch timing and operation counts. Metrics exist
// for observability only and never affect control flow; they are reported even
// when a phase partially fails.
type BatchMetrics struct {
	LiteralCount    int           `json:"literalCount"`
	ContextualCount int           `json:"contextualCount"`
	LiteralTime     time.Duration `json:"literalTimeMs"`
	ContextualTime  time.Duration `json:"contextualTimeMs"`
	BatchTime       time.Duration `json:"batchTimeMs"`

	// PhaseTimes accumulates wall-clock time per completed phase for the
	// session so far.
	PhaseTimes map[Phase]time.Duration `json:"phaseTimes,omitempty"`
}

// Event is a single emission from the orchestrator toward its consumers. A
// sequence of Events with IsComplete == false delivers partial results as they
// become ready; a final Event with IsComplete == true closes the session.
type Event struct {
	Chunks     []Chunk       `json:"chunks"`
	IsComplete bool          `json:"isComplete"`
	Phase      Phase         `json:"phase"`
	Metrics    *BatchMetrics `json:"metrics,omitempty"`
}
