// Package vocab persists vocabulary entries derived from annotated chunks and
// offers fuzzy lookup over them.
//
// The core pipeline never writes storage itself; it exposes final chunk data
// and external surfaces (the debug server, a future extension bridge) forward
// accepted entries here. Lookup combines Double Metaphone phonetic filtering
// with Jaro-Winkler ranking so near-misses ("resterant") still find their
// saved entry ("restaurant").
package vocab

import (
	"context"
	"errors"
	"time"

	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/types"
)

// ErrNotFound is returned when an entry does not exist.
var ErrNotFound = errors.New("vocab: entry not found")

// Entry is one saved vocabulary item.
type Entry struct {
	ID         int64
	Text       string
	Literal    string
	Contextual string
	Language   lang.Tag
	Type       types.ChunkType
	CreatedAt  time.Time
}

// FromChunk builds an Entry from a finished chunk.
func FromChunk(c types.Chunk) Entry {
	e := Entry{
		Text:     c.Text,
		Language: c.Language,
		Type:     c.Type,
	}
	if c.Translation != nil {
		e.Literal = c.Translation.Literal
		e.Contextual = c.Translation.Contextual
	}
	return e
}

// Store persists vocabulary entries. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save upserts an entry keyed by (Text, Language) and returns the stored
	// row with ID and CreatedAt populated.
	Save(ctx context.Context, e Entry) (Entry, error)

	// List returns up to limit entries for a language, newest first. A zero
	// language lists all languages.
	List(ctx context.Context, language lang.Tag, limit int) ([]Entry, error)

	// Delete removes an entry by ID. Returns [ErrNotFound] when absent.
	Delete(ctx context.Context, id int64) error
}
