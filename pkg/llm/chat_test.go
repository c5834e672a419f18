package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/agrisaathi/pkg/config"
	"github.com/xhad/agrisaathi/pkg/llm"
)

type fakeModel struct {
	reply   *llms.ContentResponse
	err     error
	prompts []string
	opts    llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, m := range messages {
		for _, p := range m.Parts {
			if text, ok := p.(llms.TextContent); ok {
				f.prompts = append(f.prompts, text.Text)
			}
		}
	}
	for _, o := range options {
		o(&f.opts)
	}
	return f.reply, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func reply(texts ...string) *llms.ContentResponse {
	resp := &llms.ContentResponse{}
	for _, t := range texts {
		resp.Choices = append(resp.Choices, &llms.ContentChoice{Content: t})
	}
	return resp
}

func TestNewWithConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  llm.ChatConfig
		wantErr bool
	}{
		{"defaults", llm.ChatConfig{LLM: &fakeModel{}}, false},
		{"temperature too high", llm.ChatConfig{Temperature: 1.5, LLM: &fakeModel{}}, true},
		{"negative max tokens", llm.ChatConfig{MaxTokens: -1, LLM: &fakeModel{}}, true},
		{"groq without key", llm.ChatConfig{Provider: llm.ProviderGroq}, true},
		{"groq with key", llm.ChatConfig{Provider: llm.ProviderGroq, APIKey: "gsk_test"}, false},
		{"unknown provider", llm.ChatConfig{Provider: "bard"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := llm.NewWithConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, engine)
		})
	}
}

func TestGenerate(t *testing.T) {
	model := &fakeModel{reply: reply("", "  ", "Sow wheat in November.")}
	engine, err := llm.NewWithConfig(llm.ChatConfig{Temperature: 0.3, MaxTokens: 256, LLM: model})
	require.NoError(t, err)

	out, err := engine.Generate(context.Background(), "What should I sow?")
	require.NoError(t, err)
	assert.Equal(t, "Sow wheat in November.", out)
	assert.Equal(t, []string{"What should I sow?"}, model.prompts)
	assert.Equal(t, 256, model.opts.MaxTokens)
	assert.InDelta(t, 0.3, model.opts.Temperature, 1e-9)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
		want  error
	}{
		{"empty choices", &fakeModel{reply: reply()}, llm.ErrEmptyResponse},
		{"blank text", &fakeModel{reply: reply("   \n")}, llm.ErrEmptyResponse},
		{"nil response", &fakeModel{}, llm.ErrEmptyResponse},
		{"provider error", &fakeModel{err: errors.New("rate limited")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := llm.NewWithConfig(llm.ChatConfig{LLM: tt.model})
			require.NoError(t, err)

			_, err = engine.Generate(context.Background(), "q")
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestNewFactory(t *testing.T) {
	_, err := llm.New(context.Background(), config.LLMConfig{Provider: llm.ProviderGemini}, nil)
	assert.Error(t, err, "gemini without a key must fail")

	gen, err := llm.New(context.Background(), config.LLMConfig{Provider: llm.ProviderOpenAI, APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, gen)
}
