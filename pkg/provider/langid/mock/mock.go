// Package mock provides a mock language-identification provider for testing.
package mock

import (
	"context"
	"sync"

	"github.com/pageglot/pageglot/pkg/provider/langid"
)

// Provider is a mock implementation of langid.Provider that records calls
// and returns configurable results.
type Provider struct {
	mu sync.Mutex

	// Candidates is returned by Identify when IdentifyErr is nil.
	Candidates []langid.Candidate

	// IdentifyErr, if set, is returned by every Identify call.
	IdentifyErr error

	// Unavailable makes Available return false.
	Unavailable bool

	// IdentifyCalls records the texts passed to Identify.
	IdentifyCalls []string

	// AvailableCallCount counts Available calls.
	AvailableCallCount int
}

// New creates a mock provider that reports the given candidates.
func New(candidates ...langid.Candidate) *Provider {
	return &Provider{Candidates: candidates}
}

// Identify implements langid.Provider.
func (p *Provider) Identify(_ context.Context, text string) ([]langid.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.IdentifyCalls = append(p.IdentifyCalls, text)
	if p.IdentifyErr != nil {
		return nil, p.IdentifyErr
	}
	out := make([]langid.Candidate, len(p.Candidates))
	copy(out, p.Candidates)
	return out, nil
}

// Available implements langid.Provider.
func (p *Provider) Available(_ context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AvailableCallCount++
	return !p.Unavailable
}

// Reset clears recorded calls and counters.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.IdentifyCalls = nil
	p.AvailableCallCount = 0
}

var _ langid.Provider = (*Provider)(nil)
