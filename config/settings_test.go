package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RAGCHAT_BASE_URL", "RAGCHAT_MODEL", "RAGCHAT_TEMPERATURE", "RAGCHAT_TOP_P",
		"RAGCHAT_MAX_TOKENS", "RAGCHAT_RAG_MODE", "RAGCHAT_RAG_TOP_K",
		"RAGCHAT_KEYWORD_PROVIDER", "RAGCHAT_KEYWORD_MODEL", "RAGCHAT_UPLOAD_TIMEOUT",
		"RAGCHAT_LOG_LEVEL", "RAGCHAT_LOG_FILE", "RAGCHAT_JOURNAL",
		"RAGCHAT_KEYWORD_BASE_URL", "RAGCHAT_KEYWORD_MAX_TOKENS", "RAGCHAT_KEYWORD_TEMPERATURE",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragchat.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	s, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Server.Model != "qwen3-0.6b" {
		t.Errorf("expected default model 'qwen3-0.6b', got %q", s.Server.Model)
	}
	if s.Sampling.Temperature != 0.7 || s.Sampling.TopP != 0.9 {
		t.Errorf("unexpected sampling defaults: %+v", s.Sampling)
	}
	if s.Retrieval.TopK != 4 || s.Retrieval.Mode != "raw" {
		t.Errorf("unexpected retrieval defaults: %+v", s.Retrieval)
	}
	if s.Upload.Timeout.Duration != 120*time.Second {
		t.Errorf("expected 120s upload timeout, got %s", s.Upload.Timeout)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[server]
base_url = "http://gpu-box:9000"

[retrieval]
enabled = true
mode = "heuristic"
top_k = 6

[upload]
timeout = "45s"

[journal]
path = "/tmp/journal.db"
`)
	t.Setenv("RAGCHAT_RAG_TOP_K", "8")
	t.Setenv("RAGCHAT_MODEL", "qwen3-4b")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Server.BaseURL != "http://gpu-box:9000" {
		t.Errorf("file value not applied: %q", s.Server.BaseURL)
	}
	if !s.Retrieval.Enabled || s.Retrieval.Mode != "heuristic" {
		t.Errorf("file retrieval values not applied: %+v", s.Retrieval)
	}
	if s.Retrieval.TopK != 8 {
		t.Errorf("env should override file top_k, got %d", s.Retrieval.TopK)
	}
	if s.Server.Model != "qwen3-4b" {
		t.Errorf("env model not applied: %q", s.Server.Model)
	}
	if s.Upload.Timeout.Duration != 45*time.Second {
		t.Errorf("expected 45s timeout, got %s", s.Upload.Timeout)
	}
	if s.Sampling.TopP != 0.9 {
		t.Errorf("untouched default lost: top_p %v", s.Sampling.TopP)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "[server\nbase_url = 1"))
	if err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadInvalidEnvVar(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAGCHAT_TEMPERATURE", "warm")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for invalid RAGCHAT_TEMPERATURE")
	}
	if !strings.Contains(err.Error(), "RAGCHAT_TEMPERATURE") {
		t.Errorf("error should name the key: %v", err)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := map[string]string{
		"RAGCHAT_RAG_MODE":            "semantic",
		"RAGCHAT_RAG_TOP_K":           "0",
		"RAGCHAT_TOP_P":               "1.5",
		"RAGCHAT_KEYWORD_PROVIDER":    "mistral",
		"RAGCHAT_UPLOAD_TIMEOUT":      "soon",
		"RAGCHAT_KEYWORD_TEMPERATURE": "3",
		"RAGCHAT_KEYWORD_MAX_TOKENS":  "-1",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			if _, err := Load(""); err == nil {
				t.Errorf("expected error for %s=%q", key, val)
			}
		})
	}
}

func TestKeywordModel(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_MODEL", "")

	s := Defaults()
	if s.KeywordModel() != s.Server.Model {
		t.Errorf("server backend should reuse the chat model, got %q", s.KeywordModel())
	}

	s.Keywords.Provider = "claude"
	if s.KeywordModel() != "claude-haiku-4-20250514" {
		t.Errorf("expected provider default, got %q", s.KeywordModel())
	}

	s.Keywords.Model = "custom"
	if s.KeywordModel() != "custom" {
		t.Errorf("explicit model should win, got %q", s.KeywordModel())
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	key, err := APIKeyFor("gpt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "gemini-exp")

	model, err := ModelFor("google")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "gemini-exp" {
		t.Errorf("expected env model, got %q", model)
	}
}

func TestSupportedProviders(t *testing.T) {
	got := strings.Join(SupportedProviders(), ",")
	if got != "anthropic,deepseek,gemini,openai" {
		t.Errorf("unexpected providers: %s", got)
	}
}

func TestUnknownKeywordProviderListsChoices(t *testing.T) {
	s := Defaults()
	s.Keywords.Provider = "mistral"
	err := s.Validate()
	if err == nil || !strings.Contains(err.Error(), "anthropic, deepseek, gemini, openai") {
		t.Errorf("error should list the providers: %v", err)
	}
}

func TestKeywordSettings(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[keywords]
provider = "openai"
model = "qwen3-0.6b"
base_url = "http://localhost:8081/v1"
temperature = 0.2
`)
	t.Setenv("RAGCHAT_KEYWORD_MAX_TOKENS", "16")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Keywords.BaseURL != "http://localhost:8081/v1" {
		t.Errorf("base_url not applied: %q", s.Keywords.BaseURL)
	}
	if s.Keywords.MaxTokens != 16 {
		t.Errorf("env should override max_tokens, got %d", s.Keywords.MaxTokens)
	}
	if s.Keywords.Temperature != 0.2 {
		t.Errorf("temperature not applied: %v", s.Keywords.Temperature)
	}
	if Defaults().Keywords.MaxTokens != 32 {
		t.Errorf("expected 32 keyword tokens by default, got %d", Defaults().Keywords.MaxTokens)
	}
}
