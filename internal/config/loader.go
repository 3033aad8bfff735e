package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pageglot/pageglot/pkg/lang"
)

// ValidProviderNames lists known provider names per oracle kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":    {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"langid": {"lingua"},
	"mt":     {"googletrans", "mymemory"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("langid", cfg.Providers.LangID.Name)
	for _, entry := range cfg.Providers.MT {
		validateProviderName("mt", entry.Name)
	}
	for i, entry := range cfg.Providers.MT {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.mt[%d].name is required", i))
		}
	}

	// Oracle availability warnings — every stage degrades gracefully, but a
	// misconfigured deployment should be loud about it.
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; segmentation and contextual translation will use fallbacks only")
	}
	if cfg.Providers.LangID.Name == "" {
		slog.Warn("no language identification provider configured; detection will use the script heuristic only")
	}
	if len(cfg.Providers.MT) == 0 {
		slog.Warn("no machine-translation provider configured; literal translations will be unavailable")
	}

	// Pipeline. Canonicalize maps unrecognised tags to the default language
	// rather than failing, so an unexpected tag is a warning, not an error.
	if raw := cfg.Pipeline.TargetLanguage; raw != "" {
		t := lang.Canonicalize(raw)
		if t == lang.Default && !strings.HasPrefix(strings.ToLower(raw), "en") {
			slog.Warn("pipeline.target_language is not a recognised tag; using default", "raw", raw, "tag", t)
		}
	}
	if cfg.Pipeline.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("pipeline.batch_size %d must not be negative", cfg.Pipeline.BatchSize))
	}
	if cfg.Pipeline.PrechunkSize < 0 {
		errs = append(errs, fmt.Errorf("pipeline.prechunk_size %d must not be negative", cfg.Pipeline.PrechunkSize))
	}
	if cfg.Pipeline.CallTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.call_timeout %s must not be negative", cfg.Pipeline.CallTimeout))
	}
	if cfg.Pipeline.CallTimeout > 0 && cfg.Pipeline.CallTimeout < time.Second {
		slog.Warn("pipeline.call_timeout is very short; oracle calls may never complete", "timeout", cfg.Pipeline.CallTimeout)
	}

	// Vocab
	if cfg.Vocab.PostgresDSN == "" {
		slog.Warn("vocab.postgres_dsn is empty; saved vocabulary will not survive restarts")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
