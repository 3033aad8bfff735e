// Package mock provides a mock machine-translation provider for testing.
package mock

import (
	"context"
	"sync"

	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/mt"
)

// TranslateCall records the arguments of a single Translate invocation.
type TranslateCall struct {
	Text   string
	Source lang.Tag
	Target lang.Tag
}

// Provider is a mock implementation of mt.Provider that records calls and
// returns configurable results.
type Provider struct {
	mu sync.Mutex

	// Translations maps input text to output. When a text has no entry,
	// Translate returns Fallback applied to the input (or the input itself
	// when Fallback is nil).
	Translations map[string]string

	// Fallback computes a translation for texts missing from Translations.
	Fallback func(text string) string

	// TranslateErr, if set, is returned by every Translate call.
	TranslateErr error

	// Unavailable makes Available return false.
	Unavailable bool

	// TranslateCalls records all Translate invocations.
	TranslateCalls []TranslateCall
}

// New creates a mock provider with the given fixed translations.
func New(translations map[string]string) *Provider {
	return &Provider{Translations: translations}
}

// Translate implements mt.Provider.
func (p *Provider) Translate(_ context.Context, text string, source, target lang.Tag) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranslateCalls = append(p.TranslateCalls, TranslateCall{Text: text, Source: source, Target: target})
	if p.TranslateErr != nil {
		return "", p.TranslateErr
	}
	if out, ok := p.Translations[text]; ok {
		return out, nil
	}
	if p.Fallback != nil {
		return p.Fallback(text), nil
	}
	return text, nil
}

// Available implements mt.Provider.
func (p *Provider) Available(_ context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.Unavailable
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranslateCalls = nil
}

var _ mt.Provider = (*Provider)(nil)
