package config_test

import (
	"strings"
	"testing"

	"github.com/pageglot/pageglot/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/pageglot/tls.crt
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for partial TLS config, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_MTEntryRequiresName(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  mt:
    - name: googletrans
    - api_key: oops
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unnamed mt entry, got nil")
	}
	if !strings.Contains(err.Error(), "mt[1].name") {
		t.Errorf("error should mention mt[1].name, got: %v", err)
	}
}

func TestValidate_NegativePipelineValues(t *testing.T) {
	t.Parallel()
	yaml := `
pipeline:
  batch_size: -1
  prechunk_size: -2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "batch_size") {
		t.Errorf("error should mention batch_size, got: %v", err)
	}
	if !strings.Contains(errStr, "prechunk_size") {
		t.Errorf("error should mention prechunk_size, got: %v", err)
	}
}

func TestValidate_MinimalConfigIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: openai
  mt:
    - name: googletrans
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	for kind, want := range map[string]string{
		"llm":    "openai",
		"langid": "lingua",
		"mt":     "googletrans",
	} {
		names := config.ValidProviderNames[kind]
		if len(names) == 0 {
			t.Fatalf("ValidProviderNames[%q] should not be empty", kind)
		}
		found := false
		for _, n := range names {
			if n == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("ValidProviderNames[%q] should contain %q", kind, want)
		}
	}
}
