// Package llm holds the generative model backends.
package llm

import (
	"context"

	"pdfqa/config"
	"pdfqa/internal/port"
)

// New builds the model backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (port.LLM, error) {
	if cfg.Provider == "gemini" {
		return NewGeminiClient(ctx, cfg.Model, cfg.APIKeyEnv, cfg.Temperature)
	}
	return NewChatClient(cfg.Provider, cfg.Model, cfg.BaseURL, cfg.APIKeyEnv, cfg.Temperature)
}
