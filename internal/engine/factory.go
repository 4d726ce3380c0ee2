package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yangwenmai/taskforge/internal/config"
)

// NewClientFactory returns a ClientFactory that builds the backend selected by
// cfg.LLMProvider. Missing credentials yield ErrNotConfigured.
func NewClientFactory(cfg config.Config) ClientFactory {
	return func(ctx context.Context) (ModelClient, error) {
		if !cfg.UseAI() {
			return nil, fmt.Errorf("%w: provider %q has no credentials", ErrNotConfigured, cfg.LLMProvider)
		}
		switch cfg.LLMProvider {
		case config.ProviderClaude:
			slog.Info("using Claude model client", "model", cfg.AnthropicModel)
			return NewClaudeClient(cfg.AnthropicKey,
				WithClaudeModel(cfg.AnthropicModel),
				WithClaudeTimeout(cfg.HTTPTimeout),
			), nil
		case config.ProviderGemini:
			slog.Info("using Gemini model client", "model", cfg.GeminiModel)
			c, err := NewGeminiClient(ctx, cfg.GeminiKey,
				WithGeminiModel(cfg.GeminiModel),
				WithGeminiBaseURL(cfg.GeminiURL),
				WithGeminiTimeout(cfg.HTTPTimeout),
			)
			if err != nil {
				return nil, err
			}
			return c, nil
		case config.ProviderStub:
			slog.Warn("using stub model client")
			return &StubModelClient{}, nil
		case config.ProviderOllama:
			slog.Info("using Ollama model client", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
			return NewOllamaClient(cfg.OllamaURL,
				WithOllamaModel(cfg.OllamaModel),
				WithOllamaTimeout(cfg.HTTPTimeout),
			), nil
		default:
			slog.Info("using OpenAI-compatible model client", "base_url", cfg.OpenAIBaseURL(), "model", cfg.OpenAIModel)
			return NewOpenAIClient(cfg.OpenAIAPIKey(),
				WithBaseURL(cfg.OpenAIBaseURL()),
				WithModel(cfg.OpenAIModel),
				WithTimeout(cfg.HTTPTimeout),
			), nil
		}
	}
}
