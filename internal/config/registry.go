package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pageglot/pageglot/pkg/provider/langid"
	"github.com/pageglot/pageglot/pkg/provider/llm"
	"github.com/pageglot/pageglot/pkg/provider/mt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// oracle kind. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	llm    map[string]func(ProviderEntry) (llm.Provider, error)
	langid map[string]func(ProviderEntry) (langid.Provider, error)
	mt     map[string]func(ProviderEntry) (mt.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:    make(map[string]func(ProviderEntry) (llm.Provider, error)),
		langid: make(map[string]func(ProviderEntry) (langid.Provider, error)),
		mt:     make(map[string]func(ProviderEntry) (mt.Provider, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterLangID registers a language identification provider factory under name.
func (r *Registry) RegisterLangID(name string, factory func(ProviderEntry) (langid.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langid[name] = factory
}

// RegisterMT registers a machine-translation provider factory under name.
func (r *Registry) RegisterMT(name string, factory func(ProviderEntry) (mt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mt[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLangID instantiates a language identification provider using the
// factory registered under entry.Name.
func (r *Registry) CreateLangID(entry ProviderEntry) (langid.Provider, error) {
	r.mu.RLock()
	factory, ok := r.langid[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: langid/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateMT instantiates a machine-translation provider using the factory
// registered under entry.Name.
func (r *Registry) CreateMT(entry ProviderEntry) (mt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.mt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: mt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
