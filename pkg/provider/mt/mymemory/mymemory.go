// Package mymemory provides a machine-translation provider backed by the
// MyMemory public API (https://mymemory.translated.net/doc/spec.php).
// It serves as the secondary backend in the literal translation fallback
// chain when Google Translate is unreachable.
package mymemory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/provider/mt"
)

const (
	defaultEndpoint = "https://api.mymemory.translated.net/get"
	defaultTimeout  = 10 * time.Second

	// maxResponseBytes bounds how much of the response body is read.
	maxResponseBytes = 1 << 20
)

// Provider implements mt.Provider using the MyMemory REST API.
type Provider struct {
	endpoint string
	email    string
	client   *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithEndpoint overrides the API endpoint, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithEmail sets the contact email sent with each request, which raises
// MyMemory's daily quota.
func WithEmail(email string) Option {
	return func(p *Provider) {
		p.email = email
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// New creates a MyMemory-backed provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type apiResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus  json.Number `json:"responseStatus"`
	ResponseDetails string      `json:"responseDetails"`
}

// Translate implements mt.Provider.
func (p *Provider) Translate(ctx context.Context, text string, source, target lang.Tag) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	src := "Autodetect"
	if source != lang.Unknown {
		src = source.Base()
	}

	query := url.Values{}
	query.Set("q", text)
	query.Set("langpair", src+"|"+target.Base())
	if p.email != "" {
		query.Set("de", p.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("mymemory: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mymemory: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("mymemory: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mymemory: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("mymemory: decode response: %w", err)
	}
	if status, err := parsed.ResponseStatus.Int64(); err == nil && status != 0 && status != http.StatusOK {
		return "", fmt.Errorf("mymemory: api status %d: %s", status, parsed.ResponseDetails)
	}

	translated := strings.TrimSpace(parsed.ResponseData.TranslatedText)
	if translated == "" {
		return "", fmt.Errorf("mymemory: empty translation for %q", text)
	}
	return translated, nil
}

// Available implements mt.Provider.
func (p *Provider) Available(_ context.Context) bool {
	return p.endpoint != ""
}

var _ mt.Provider = (*Provider)(nil)
