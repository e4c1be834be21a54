package apismith

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
[client]
base_url = "https://api.example.com"
endpoint = "v1"
timeout = "5s"
container = "data.items"
body_encoding = "form"
username = "bot"
password = "${APISMITH_TEST_PASSWORD}"

[client.headers]
Authorization = "Bearer ${APISMITH_TEST_TOKEN}"

[client.query]
locale = "en"

[retry]
max_retries = 0
initial_backoff = "50ms"
max_backoff = "2s"
jitter = 0.0
strategy = "decorrelated"
budget = 10

[rate_limit]
enabled = true
tokens = 20
refill = "1s"

[cache]
enabled = true

[dedup]
enabled = true
`

func TestParseConfig(t *testing.T) {
	t.Setenv("APISMITH_TEST_TOKEN", "tok")
	t.Setenv("APISMITH_TEST_PASSWORD", "pw")

	cfg, err := ParseConfig(sampleConfig)
	if err != nil {
		t.Fatalf("ParseConfig() returned error: %v", err)
	}

	if cfg.Client.BaseURL != "https://api.example.com" {
		t.Errorf("Expected base URL, got %q", cfg.Client.BaseURL)
	}
	if cfg.Client.Timeout.Duration != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", cfg.Client.Timeout.Duration)
	}
	if got := cfg.Client.Headers["Authorization"]; got != "Bearer tok" {
		t.Errorf("Expected expanded header, got %q", got)
	}
	if cfg.Client.Password != "pw" {
		t.Errorf("Expected expanded password, got %q", cfg.Client.Password)
	}
	if cfg.Retry.MaxRetries == nil || *cfg.Retry.MaxRetries != 0 {
		t.Errorf("Expected explicit max_retries 0, got %v", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.InitialBackoff.Duration != 50*time.Millisecond {
		t.Errorf("Expected initial backoff 50ms, got %v", cfg.Retry.InitialBackoff.Duration)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("Expected rate limiting enabled")
	}
}

func TestParseConfigInvalid(t *testing.T) {
	if _, err := ParseConfig("[client]\ntimeout = \"soon\""); err == nil {
		t.Error("Expected error for invalid duration")
	}
	if _, err := ParseConfig(`not toml at all =`); err == nil {
		t.Error("Expected error for invalid TOML")
	}
}

func TestConfigOptions(t *testing.T) {
	t.Setenv("APISMITH_TEST_TOKEN", "tok")
	t.Setenv("APISMITH_TEST_PASSWORD", "pw")

	cfg, err := ParseConfig(sampleConfig)
	if err != nil {
		t.Fatalf("ParseConfig() returned error: %v", err)
	}

	client := New(WithConfig(cfg))
	if !client.IsValid() {
		t.Fatalf("Expected valid client, got %v", client.ValidationError())
	}

	if client.baseURL != "https://api.example.com" {
		t.Errorf("Expected base URL, got %q", client.baseURL)
	}
	if client.endpoint != "v1" {
		t.Errorf("Expected endpoint v1, got %q", client.endpoint)
	}
	if client.timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", client.timeout)
	}
	if len(client.responseContainer) != 2 || client.responseContainer[0] != "data" || client.responseContainer[1] != "items" {
		t.Errorf("Expected container [data items], got %v", client.responseContainer)
	}
	if client.bodyEncoding != EncodeForm {
		t.Errorf("Expected form encoding, got %v", client.bodyEncoding)
	}
	if got := client.headers.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Expected Authorization header, got %q", got)
	}
	if got := client.baseQuery["locale"]; got != "en" {
		t.Errorf("Expected locale=en, got %q", got)
	}
	if client.basicAuth == nil || *client.basicAuth != [2]string{"bot", "pw"} {
		t.Errorf("Expected basic auth bot:pw, got %v", client.basicAuth)
	}
	if client.maxRetries != 0 {
		t.Errorf("Expected maxRetries 0, got %d", client.maxRetries)
	}
	if client.jitter != 0 {
		t.Errorf("Expected jitter 0, got %v", client.jitter)
	}
	if client.backoffStrategy != DecorrelatedJitter {
		t.Errorf("Expected decorrelated strategy, got %v", client.backoffStrategy)
	}
	if client.retryBudget == nil || client.retryBudget.perWindow != time.Minute {
		t.Errorf("Expected retry budget with a one minute window, got %+v", client.retryBudget)
	}
	if client.rateLimiter == nil || client.rateLimiter.maxTokens != 20 {
		t.Errorf("Expected rate limiter with 20 tokens, got %+v", client.rateLimiter)
	}
	if client.cache == nil {
		t.Error("Expected cache enabled")
	}
	if client.cacheTTL != 5*time.Minute {
		t.Errorf("Expected default cache TTL 5m, got %v", client.cacheTTL)
	}
	if client.deduplication == nil {
		t.Error("Expected deduplication enabled")
	}
}

func TestConfigOptionsErrors(t *testing.T) {
	_, err := (&Config{Client: ClientConfig{BodyEncoding: "xml"}}).Options()
	if err == nil || !strings.Contains(err.Error(), "client.body_encoding") {
		t.Errorf("Expected body_encoding error, got %v", err)
	}

	cfg := &Config{Retry: RetryConfig{Strategy: "fibonacci"}}
	if _, err := cfg.Options(); err == nil || !strings.Contains(err.Error(), "retry.strategy") {
		t.Errorf("Expected strategy error, got %v", err)
	}

	client := New(WithConfig(cfg))
	if client.IsValid() {
		t.Fatal("Expected invalid client for bad strategy")
	}
	if err := client.ValidationError(); err == nil || !strings.Contains(err.Error(), "retry.strategy") {
		t.Errorf("Expected validation error to mention retry.strategy, got %v", err)
	}
}

func TestWithConfigNil(t *testing.T) {
	if client := New(WithConfig(nil)); !client.IsValid() {
		t.Errorf("Expected valid client, got %v", client.ValidationError())
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apismith.toml")
	if err := os.WriteFile(path, []byte("[client]\nbase_url = \"http://localhost:8080\"\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if cfg.Client.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected base URL from file, got %q", cfg.Client.BaseURL)
	}

	_, err = LoadConfig(filepath.Join(dir, "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("UnmarshalText() returned error: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("Expected 90s, got %v", d.Duration)
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() returned error: %v", err)
	}
	if string(text) != "1m30s" {
		t.Errorf("Expected 1m30s, got %s", text)
	}
}
