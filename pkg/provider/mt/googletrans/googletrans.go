// Package googletrans provides a machine-translation provider backed by the
// unofficial Google Translate web endpoint via github.com/mind1949/googletrans.
// It requires no API key, which makes it the first choice in the literal
// translation fallback chain.
package googletrans

import (
	"context"
	"fmt"
	"strings"

	gt "github.com/mind1949/googletrans"

	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/mt"
)

// Provider implements mt.Provider using the Google Translate web endpoint.
type Provider struct{}

// New creates a googletrans-backed provider.
func New() *Provider {
	return &Provider{}
}

// Translate implements mt.Provider.
func (p *Provider) Translate(ctx context.Context, text string, source, target lang.Tag) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	src := "auto"
	if source != lang.Unknown {
		src = source.Base()
	}

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		translated, err := gt.Translate(gt.TranslateParams{
			Src:  src,
			Dest: target.Base(),
			Text: text,
		})
		ch <- result{text: translated.Text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("googletrans: translate: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("googletrans: translate: %w", r.err)
		}
		return r.text, nil
	}
}

// Available implements mt.Provider. The web endpoint needs no configuration,
// so the provider is optimistically available; transient failures are handled
// by the caller's fallback chain.
func (p *Provider) Available(_ context.Context) bool {
	return true
}

var _ mt.Provider = (*Provider)(nil)
