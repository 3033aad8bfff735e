package vocab

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pageglot/pageglot/pkg/lang"
)

// MemoryStore is an in-memory [Store] used when no database is configured and
// in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[int64]Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		entries: make(map[int64]Entry),
	}
}

// Save upserts an entry keyed by (Text, Language).
func (s *MemoryStore) Save(ctx context.Context, e Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.entries {
		if existing.Text == e.Text && existing.Language == e.Language {
			e.ID = id
			e.CreatedAt = existing.CreatedAt
			s.entries[id] = e
			return e, nil
		}
	}

	e.ID = s.nextID
	s.nextID++
	e.CreatedAt = time.Now().UTC()
	s.entries[e.ID] = e
	return e, nil
}

// List returns up to limit entries for a language, newest first.
func (s *MemoryStore) List(ctx context.Context, language lang.Tag, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if language != lang.Unknown && e.Language != language {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes an entry by ID.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}
