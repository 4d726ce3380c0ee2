// Package config provides centralized configuration for the taskforge server.
// Values come from defaults, an optional YAML file and environment variables,
// in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Providers accepted in LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	// ProviderStub returns canned output; for local development.
	ProviderStub = "stub"
)

// unsetSecret mirrors the placeholder used when a credential is not configured.
const unsetSecret = "..."

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// SecretKey authorizes inbound task requests.
	SecretKey string

	// GitHubToken authenticates repository operations.
	GitHubToken string

	// GitHubRateLimit caps GitHub API calls per second; 0 disables pacing.
	GitHubRateLimit float64

	// LLMProvider selects which LLM backend to use: "openai", "claude", "gemini", "ollama".
	LLMProvider string

	// AIPipeToken takes priority over OpenAIKey for the OpenAI-compatible backend.
	AIPipeToken string
	AIPipeURL   string

	OpenAIKey   string
	OpenAIURL   string
	OpenAIModel string

	AnthropicKey   string
	AnthropicModel string

	GeminiKey   string
	GeminiModel string
	// GeminiURL overrides the Gemini API endpoint; empty uses the SDK default.
	GeminiURL string

	OllamaURL   string
	OllamaModel string

	// DBPath is the SQLite file holding per-round artifacts.
	DBPath string

	// SlackWebhookURL receives pipeline alerts when set.
	SlackWebhookURL string

	// HTTPTimeout bounds outgoing LLM and GitHub requests.
	HTTPTimeout time.Duration

	// NotifyTimeout bounds each evaluation callback attempt.
	NotifyTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown, including in-flight pipelines.
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string
	// LogFile enables a rotated log file in addition to stdout.
	LogFile string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "7860")
	v.SetDefault("secret_key", unsetSecret)
	v.SetDefault("github_token", unsetSecret)
	v.SetDefault("github_rate_limit", 4.0)
	v.SetDefault("llm_provider", ProviderOpenAI)
	v.SetDefault("aipipe_url", "https://aipipe.org/openai/v1")
	v.SetDefault("openai_url", "https://api.openai.com/v1")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("anthropic_model", "claude-sonnet-4-20250514")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("gemini_url", "")
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("ollama_model", "llama3")
	v.SetDefault("db_path", "taskforge.db")
	v.SetDefault("http_timeout", 120*time.Second)
	v.SetDefault("notify_timeout", 30*time.Second)
	v.SetDefault("shutdown_timeout", 15*time.Second)
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
}

// envBindings accepts the lower-case variable names alongside the upper-case ones.
var envBindings = map[string][]string{
	"secret_key":   {"SECRET", "secret"},
	"github_token": {"GITHUB_TOKEN", "github_token"},
}

// Load reads configuration. If path is empty, CONFIG_FILE is consulted; with
// neither set only defaults and the environment are used.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return Config{
		Port:            v.GetString("port"),
		SecretKey:       v.GetString("secret_key"),
		GitHubToken:     v.GetString("github_token"),
		GitHubRateLimit: v.GetFloat64("github_rate_limit"),
		LLMProvider:     strings.ToLower(v.GetString("llm_provider")),
		AIPipeToken:     v.GetString("aipipe_token"),
		AIPipeURL:       v.GetString("aipipe_url"),
		OpenAIKey:       v.GetString("openai_api_key"),
		OpenAIURL:       v.GetString("openai_url"),
		OpenAIModel:     v.GetString("openai_model"),
		AnthropicKey:    v.GetString("anthropic_api_key"),
		AnthropicModel:  v.GetString("anthropic_model"),
		GeminiKey:       v.GetString("gemini_api_key"),
		GeminiModel:     v.GetString("gemini_model"),
		GeminiURL:       v.GetString("gemini_url"),
		OllamaURL:       v.GetString("ollama_url"),
		OllamaModel:     v.GetString("ollama_model"),
		DBPath:          v.GetString("db_path"),
		SlackWebhookURL: v.GetString("slack_webhook_url"),
		HTTPTimeout:     v.GetDuration("http_timeout"),
		NotifyTimeout:   v.GetDuration("notify_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		LogLevel:        strings.ToUpper(v.GetString("log_level")),
		LogFormat:       strings.ToLower(v.GetString("log_format")),
		LogFile:         v.GetString("log_file"),
	}, nil
}

// UseAI reports whether the selected provider has what it needs to run.
func (c Config) UseAI() bool {
	switch c.LLMProvider {
	case ProviderClaude:
		return c.AnthropicKey != ""
	case ProviderGemini:
		return c.GeminiKey != ""
	case ProviderOllama, ProviderStub:
		return true // no key needed
	default:
		return c.OpenAIAPIKey() != ""
	}
}

// OpenAIAPIKey returns the key for the OpenAI-compatible backend, preferring AIPIPE.
func (c Config) OpenAIAPIKey() string {
	if strings.TrimSpace(c.AIPipeToken) != "" {
		return c.AIPipeToken
	}
	return strings.TrimSpace(c.OpenAIKey)
}

// OpenAIBaseURL returns the base URL matching OpenAIAPIKey.
func (c Config) OpenAIBaseURL() string {
	if strings.TrimSpace(c.AIPipeToken) != "" {
		return c.AIPipeURL
	}
	return c.OpenAIURL
}

// GitHubConfigured reports whether a GitHub token was provided.
func (c Config) GitHubConfigured() bool {
	return c.GitHubToken != "" && c.GitHubToken != unsetSecret
}

// SecretConfigured reports whether an authorization secret was provided.
func (c Config) SecretConfigured() bool {
	return c.SecretKey != "" && c.SecretKey != unsetSecret
}
