package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xhad/agrisaathi/pkg/logger"
)

const (
	ProviderOllama = "ollama"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	GroqBaseURL = "https://api.groq.com/openai/v1"

	DefaultTemperature = 0.3
)

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
	APIKey      string
	Logger      logger.Logger

	// LLM overrides the provider client. Used by tests.
	LLM llms.Model
}

// ChatEngine generates answers through a langchaingo model.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
	log    logger.Logger
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 512
	}
	if config.Model == "" {
		config.Model = defaultModel(config.Provider)
	}

	model := config.LLM
	if model == nil {
		var err error
		model, err = newModel(config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
	}

	return &ChatEngine{
		config: config,
		llm:    model,
		log:    logger.Or(config.Logger).With("provider", config.Provider, "model", config.Model),
	}, nil
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderGroq:
		return "llama3-8b-8192"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.0-flash"
	default:
		return "llama3"
	}
}

func newModel(config ChatConfig) (llms.Model, error) {
	switch config.Provider {
	case ProviderOllama:
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		return ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	case ProviderGroq, ProviderOpenAI:
		if config.APIKey == "" {
			return nil, fmt.Errorf("%s requires an API key", config.Provider)
		}
		opts := []openai.Option{openai.WithModel(config.Model), openai.WithToken(config.APIKey)}
		baseURL := config.BaseURL
		if baseURL == "" && config.Provider == ProviderGroq {
			baseURL = GroqBaseURL
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported chat provider %q", config.Provider)
	}
}

// Generate sends the prompt as a single human message and returns the first
// non-empty choice.
func (ce *ChatEngine) Generate(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if response == nil {
		return "", ErrEmptyResponse
	}

	for _, choice := range response.Choices {
		if choice != nil && strings.TrimSpace(choice.Content) != "" {
			ce.log.Debug("generation complete", "chars", len(choice.Content))
			return choice.Content, nil
		}
	}
	return "", ErrEmptyResponse
}
