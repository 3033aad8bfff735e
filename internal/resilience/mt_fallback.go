package resilience

import (
	"context"

	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/mt"
)

// MTFallback implements [mt.Provider] with automatic failover across multiple
// machine-translation backends. The literal translation path uses this to fall
// back from Google Translate to MyMemory when the primary is failing.
type MTFallback struct {
	group *FallbackGroup[mt.Provider]
}

// Compile-time interface assertion.
var _ mt.Provider = (*MTFallback)(nil)

// NewMTFallback creates an [MTFallback] with primary as the preferred backend.
func NewMTFallback(primary mt.Provider, primaryName string, cfg FallbackConfig) *MTFallback {
	return &MTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional translation backend as a fallback.
func (f *MTFallback) AddFallback(name string, provider mt.Provider) {
	f.group.AddFallback(name, provider)
}

// Translate sends the text to the first healthy backend and returns its
// translation. If the primary fails, subsequent fallbacks are tried.
func (f *MTFallback) Translate(ctx context.Context, text string, source, target lang.Tag) (string, error) {
	return ExecuteWithResult(f.group, func(p mt.Provider) (string, error) {
		return p.Translate(ctx, text, source, target)
	})
}

// Available reports whether any entry in the group is currently available.
func (f *MTFallback) Available(ctx context.Context) bool {
	for i := range f.group.entries {
		if f.group.entries[i].value.Available(ctx) {
			return true
		}
	}
	return false
}
