// Package deepseek implements the DeepSeek adapter. DeepSeek speaks the
// OpenAI-compatible dialect with a different base URL and endpoint path.
package deepseek

import (
	"time"

	"go.uber.org/zap"

	"github.com/hypermindz/perfcrew/llm/providers/openaicompat"
)

// Config configures the DeepSeek provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider implements llm.Provider for DeepSeek.
type Provider struct {
	*openaicompat.Provider
}

// New creates a new DeepSeek provider instance.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com"
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:   "deepseek",
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			DefaultModel:   cfg.Model,
			FallbackModel:  "deepseek-chat",
			Timeout:        cfg.Timeout,
			EndpointPath:   "/chat/completions",
			ModelsEndpoint: "/models",
		}, logger),
	}
}
