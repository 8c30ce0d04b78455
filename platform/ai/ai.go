// Package ai provides the adaptive-text capability boundary. Providers are
// interchangeable; callers depend only on TextGenerator and wrap it with a
// circuit breaker.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/copp1723/ccl-3-final-sub003/platform/ai/gemini"
	"github.com/copp1723/ccl-3-final-sub003/platform/ai/openrouter"
	"github.com/copp1723/ccl-3-final-sub003/platform/config"
)

// TextGenerator produces adaptive text from system instructions and a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// New selects the configured provider.
func New(ctx context.Context, cfg config.AIConfig) (TextGenerator, error) {
	switch strings.ToLower(cfg.GetAIProvider()) {
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			APIKey: cfg.GetGeminiAPIKey(),
			Model:  cfg.GetGeminiModel(),
		})
	case "openrouter":
		return openrouter.NewClient(openrouter.Config{
			APIKey:  cfg.GetOpenRouterAPIKey(),
			BaseURL: cfg.GetOpenRouterBaseURL(),
			Model:   cfg.GetOpenRouterModel(),
			Timeout: cfg.GetAITimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.GetAIProvider())
	}
}
