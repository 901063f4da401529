// Package openai implements the OpenAI adapter on top of the
// openaicompat base.
package openai

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hypermindz/perfcrew/llm/providers/openaicompat"
)

// Config configures the OpenAI provider.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Organization string
	Timeout      time.Duration
}

// Provider implements llm.Provider for OpenAI.
type Provider struct {
	*openaicompat.Provider
}

// New creates a new OpenAI provider instance.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}

	var buildHeaders func(req *http.Request, apiKey string)
	if cfg.Organization != "" {
		org := cfg.Organization
		buildHeaders = func(req *http.Request, apiKey string) {
			req.Header.Set("Authorization", "Bearer "+apiKey)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("OpenAI-Organization", org)
		}
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "openai",
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: "gpt-4o-mini",
			Timeout:       cfg.Timeout,
			BuildHeaders:  buildHeaders,
		}, logger),
	}
}
