package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/georgeglarson/venice-go/resilience"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VENICE_API_KEY", "sk-test-123")
	t.Setenv("VENICE_BASE_URL", "https://staging.venice.ai/api/v1")
	t.Setenv("VENICE_RETRY_MAX_RETRIES", "5")
	t.Setenv("VENICE_RETRY_JITTER", "decorrelated")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.BaseURL != "https://staging.venice.ai/api/v1" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.Jitter != "decorrelated" {
		t.Errorf("Jitter = %q", cfg.Retry.Jitter)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VENICE_API_KEY", "sk-test-123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.RateLimit.Headers.RemainingRequests == "" {
		t.Error("rate limit header names not defaulted")
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	// Make sure nothing in the process environment satisfies the key.
	t.Setenv("VENICE_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error without api key")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "venice.yml")
	yaml := []byte("api_key: sk-from-yaml\nretry:\n  max_retries: 7\n  jitter: none\nrate_limit:\n  throttle_max_wait: 2s\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("VENICE_API_KEY", "")

	cfg, err := Load(WithConfigFile(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-from-yaml" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.Retry.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d", cfg.Retry.MaxRetries)
	}
	if cfg.RateLimit.ThrottleMaxWait != 2*time.Second {
		t.Errorf("ThrottleMaxWait = %v", cfg.RateLimit.ThrottleMaxWait)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VENICE_API_KEY=sk-from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-from-dotenv" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
}

func TestLoadInvalidJitter(t *testing.T) {
	t.Setenv("VENICE_API_KEY", "sk-test-123")
	t.Setenv("VENICE_RETRY_JITTER", "sometimes")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for unknown jitter mode")
	}
}

func TestRetryConfigBuild(t *testing.T) {
	built := RetryConfig{
		MaxRetries:     4,
		InitialBackoff: 100 * time.Millisecond,
		Multiplier:     3,
		Jitter:         "none",
	}.Build()

	if built.MaxRetries != 4 {
		t.Errorf("MaxRetries = %d", built.MaxRetries)
	}
	if built.InitialBackoff != 100*time.Millisecond {
		t.Errorf("InitialBackoff = %v", built.InitialBackoff)
	}
	if built.Multiplier != 3 {
		t.Errorf("Multiplier = %v", built.Multiplier)
	}
	if built.Jitter != resilience.JitterNone {
		t.Errorf("Jitter = %v", built.Jitter)
	}
	// Unset fields keep library defaults.
	if built.MaxBackoff != 10*time.Second {
		t.Errorf("MaxBackoff = %v", built.MaxBackoff)
	}
}
