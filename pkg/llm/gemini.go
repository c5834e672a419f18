package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/xhad/agrisaathi/pkg/logger"
)

// GeminiEngine generates answers with the Gemini API.
type GeminiEngine struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
	log    logger.Logger
}

func NewGeminiEngine(ctx context.Context, config ChatConfig) (*GeminiEngine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini requires an API key")
	}
	if config.Model == "" {
		config.Model = defaultModel(ProviderGemini)
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 512
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiEngine{
		client: client,
		model:  config.Model,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(config.Temperature)),
			MaxOutputTokens: int32(config.MaxTokens),
		},
		log: logger.Or(config.Logger).With("provider", ProviderGemini, "model", config.Model),
	}, nil
}

func (g *GeminiEngine) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	g.log.Debug("generation complete", "chars", len(text))
	return text, nil
}
