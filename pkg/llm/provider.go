package llm

import (
	"context"

	"github.com/xhad/agrisaathi/internal/types"
	"github.com/xhad/agrisaathi/pkg/config"
	"github.com/xhad/agrisaathi/pkg/logger"
)

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig, log logger.Logger) (types.Generator, error) {
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	chat := ChatConfig{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		Temperature: temperature,
		MaxTokens:   cfg.MaxTokens,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Logger:      log,
	}
	if cfg.Provider == ProviderGemini {
		engine, err := NewGeminiEngine(ctx, chat)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
	engine, err := NewWithConfig(chat)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// NewEmbedder builds the Ollama embedder from cfg.
func NewEmbedder(cfg config.EmbedderConfig) (*Embedder, error) {
	return NewEmbedderWithConfig(EmbedderConfig{
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		BatchSize: cfg.BatchSize,
	})
}
