// Package config provides application settings.
//
// Settings are created via Load() which handles:
// - Default value application
// - An optional TOML file
// - Environment variable overrides with validation
// - Provider-specific configuration lookup for the keyword model

package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/richinex/ragchat/retrieval"
)

// KeywordBackendServer summarizes keywords with the chat server itself.
const KeywordBackendServer = "server"

// Settings holds all application configuration.
type Settings struct {
	Server    ServerConfig    `toml:"server"`
	Sampling  SamplingConfig  `toml:"sampling"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Keywords  KeywordsConfig  `toml:"keywords"`
	Upload    UploadConfig    `toml:"upload"`
	Log       LogConfig       `toml:"log"`
	Journal   JournalConfig   `toml:"journal"`
}

// ServerConfig locates the chat server.
type ServerConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// SamplingConfig holds the fixed sampling parameters of chat turns.
type SamplingConfig struct {
	Temperature float64 `toml:"temperature"`
	TopP        float64 `toml:"top_p"`
	// MaxTokens of 0 leaves the limit to the server.
	MaxTokens int `toml:"max_tokens"`
}

// RetrievalConfig holds the retrieval defaults.
type RetrievalConfig struct {
	Enabled bool   `toml:"enabled"`
	Mode    string `toml:"mode"`
	TopK    int    `toml:"top_k"`
}

// KeywordsConfig selects the model used in the llm retrieval mode.
type KeywordsConfig struct {
	// Provider is "server" or one of SupportedProviders.
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	// BaseURL points the openai provider at any OpenAI-compatible server.
	// No API key is needed when it is set.
	BaseURL     string  `toml:"base_url"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

// UploadConfig holds upload settings.
type UploadConfig struct {
	Timeout Duration `toml:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// JournalConfig enables the SQLite turn journal when Path is set.
type JournalConfig struct {
	Path string `toml:"path"`
}

// Duration is a time.Duration written as "120s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns settings with every default applied.
func Defaults() Settings {
	return Settings{
		Server: ServerConfig{
			BaseURL: "http://localhost:8080",
			Model:   "qwen3-0.6b",
		},
		Sampling: SamplingConfig{
			Temperature: 0.7,
			TopP:        0.9,
		},
		Retrieval: RetrievalConfig{
			Enabled: false,
			Mode:    string(retrieval.ModeRaw),
			TopK:    retrieval.DefaultTopK,
		},
		Keywords: KeywordsConfig{
			Provider:  KeywordBackendServer,
			MaxTokens: 32,
		},
		Upload: UploadConfig{
			Timeout: Duration{120 * time.Second},
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load builds settings from defaults, the TOML file at path (skipped when
// path is empty) and RAGCHAT_* environment variables, in that order.
// Returns an error if the file cannot be parsed or a value is invalid.
func Load(path string) (Settings, error) {
	s := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &s); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Settings{}, fmt.Errorf("config file not found: %s", path)
			}
			return Settings{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	var err error

	s.Server.BaseURL = getEnvString("RAGCHAT_BASE_URL", s.Server.BaseURL)
	s.Server.Model = getEnvString("RAGCHAT_MODEL", s.Server.Model)

	if s.Sampling.Temperature, err = getEnvFloat64("RAGCHAT_TEMPERATURE", s.Sampling.Temperature); err != nil {
		return err
	}
	if s.Sampling.TopP, err = getEnvFloat64("RAGCHAT_TOP_P", s.Sampling.TopP); err != nil {
		return err
	}
	if s.Sampling.MaxTokens, err = getEnvInt("RAGCHAT_MAX_TOKENS", s.Sampling.MaxTokens); err != nil {
		return err
	}

	s.Retrieval.Mode = getEnvString("RAGCHAT_RAG_MODE", s.Retrieval.Mode)
	if s.Retrieval.TopK, err = getEnvInt("RAGCHAT_RAG_TOP_K", s.Retrieval.TopK); err != nil {
		return err
	}

	s.Keywords.Provider = getEnvString("RAGCHAT_KEYWORD_PROVIDER", s.Keywords.Provider)
	s.Keywords.Model = getEnvString("RAGCHAT_KEYWORD_MODEL", s.Keywords.Model)
	s.Keywords.BaseURL = getEnvString("RAGCHAT_KEYWORD_BASE_URL", s.Keywords.BaseURL)
	if s.Keywords.MaxTokens, err = getEnvInt("RAGCHAT_KEYWORD_MAX_TOKENS", s.Keywords.MaxTokens); err != nil {
		return err
	}
	if s.Keywords.Temperature, err = getEnvFloat64("RAGCHAT_KEYWORD_TEMPERATURE", s.Keywords.Temperature); err != nil {
		return err
	}

	if s.Upload.Timeout.Duration, err = getEnvDuration("RAGCHAT_UPLOAD_TIMEOUT", s.Upload.Timeout.Duration); err != nil {
		return err
	}

	s.Log.Level = getEnvString("RAGCHAT_LOG_LEVEL", s.Log.Level)
	s.Log.File = getEnvString("RAGCHAT_LOG_FILE", s.Log.File)
	s.Journal.Path = getEnvString("RAGCHAT_JOURNAL", s.Journal.Path)
	return nil
}

// Validate checks value ranges and names.
func (s Settings) Validate() error {
	if s.Server.BaseURL == "" {
		return errors.New("server base_url must not be empty")
	}
	if s.Sampling.Temperature < 0 || s.Sampling.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", s.Sampling.Temperature)
	}
	if s.Sampling.TopP <= 0 || s.Sampling.TopP > 1 {
		return fmt.Errorf("top_p must be within (0, 1], got %v", s.Sampling.TopP)
	}
	if s.Sampling.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, got %d", s.Sampling.MaxTokens)
	}
	if _, err := retrieval.ParseMode(s.Retrieval.Mode); err != nil {
		return err
	}
	if s.Retrieval.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", s.Retrieval.TopK)
	}
	if s.Keywords.Provider != KeywordBackendServer {
		if _, err := getProviderInfo(normalizeProvider(s.Keywords.Provider)); err != nil {
			return fmt.Errorf("keyword provider: %w (want %s or one of %s)",
				err, KeywordBackendServer, strings.Join(SupportedProviders(), ", "))
		}
	}
	if s.Keywords.MaxTokens < 0 {
		return fmt.Errorf("keyword max_tokens must not be negative, got %d", s.Keywords.MaxTokens)
	}
	if s.Keywords.Temperature < 0 || s.Keywords.Temperature > 2 {
		return fmt.Errorf("keyword temperature must be within [0, 2], got %v", s.Keywords.Temperature)
	}
	if s.Upload.Timeout.Duration <= 0 {
		return fmt.Errorf("upload timeout must be positive, got %s", s.Upload.Timeout.Duration)
	}
	return nil
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o-mini", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-haiku-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// KeywordModel returns the keyword model: the configured one, else the
// provider's model variable, else the provider default. The server backend
// falls back to the chat model.
func (s Settings) KeywordModel() string {
	if s.Keywords.Model != "" {
		return s.Keywords.Model
	}
	if s.Keywords.Provider == KeywordBackendServer {
		return s.Server.Model
	}
	model, err := ModelFor(s.Keywords.Provider)
	if err != nil {
		return ""
	}
	return model
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the supported provider names, sorted.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
