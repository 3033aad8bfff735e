// Package lingua provides a language-identification provider backed by
// github.com/pemistahl/lingua-go, an in-process n-gram language detector.
// It needs no network access and no API key, so it is the default
// identification oracle.
package lingua

import (
	"context"
	"strings"

	linguago "github.com/pemistahl/lingua-go"

	"github.com/pageglot/pageglot/pkg/provider/langid"
)

// defaultLanguages is the model set loaded when no explicit list is given.
// It mirrors the pipeline's supported tag set; loading fewer models keeps
// startup memory bounded and improves accuracy between the remaining
// candidates.
var defaultLanguages = []linguago.Language{
	linguago.English,
	linguago.Chinese,
	linguago.Japanese,
	linguago.Korean,
	linguago.Thai,
	linguago.French,
	linguago.German,
	linguago.Spanish,
	linguago.Portuguese,
	linguago.Russian,
	linguago.Vietnamese,
}

// Provider implements langid.Provider using lingua-go.
// It is safe for concurrent use; the underlying detector is read-only after
// construction.
type Provider struct {
	detector linguago.LanguageDetector
}

// Option is a functional option for Provider.
type Option func(*[]linguago.Language)

// WithLanguages replaces the default model set.
func WithLanguages(languages ...linguago.Language) Option {
	return func(ls *[]linguago.Language) {
		*ls = languages
	}
}

// New constructs a Provider, loading the n-gram models for the configured
// language set eagerly so the first Identify call does not pay the load cost.
func New(opts ...Option) *Provider {
	languages := defaultLanguages
	for _, o := range opts {
		o(&languages)
	}
	detector := linguago.NewLanguageDetectorBuilder().
		FromLanguages(languages...).
		WithPreloadedLanguageModels().
		Build()
	return &Provider{detector: detector}
}

// Identify implements langid.Provider. Candidates are returned in decreasing
// confidence order, tagged with lowercase ISO 639-1 codes.
func (p *Provider) Identify(_ context.Context, text string) ([]langid.Candidate, error) {
	values := p.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return nil, nil
	}

	candidates := make([]langid.Candidate, 0, len(values))
	for _, v := range values {
		candidates = append(candidates, langid.Candidate{
			Tag:        strings.ToLower(v.Language().IsoCode639_1().String()),
			Confidence: v.Value(),
		})
	}
	return candidates, nil
}

// Available implements langid.Provider. The detector is in-process and always
// ready once constructed.
func (p *Provider) Available(_ context.Context) bool {
	return p.detector != nil
}

// Ensure Provider implements langid.Provider at compile time.
var _ langid.Provider = (*Provider)(nil)
