package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"AGRI_LLM_PROVIDER", "OLLAMA_BASE_URL", "DATABASE_URL", "GROQ_API_KEY",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "WEATHER_API_KEY", "AGRI_CORPUS_DIR", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "groq"
  model: "llama3-70b-8192"
  api_key: "gsk-test"
  max_tokens: 400
  temperature: 0.2

database:
  url: "postgres://localhost:5432/agri"
  table_name: "kb_docs"
  vector_dim: 768

corpus:
  dir: "/srv/agri/data"

budget:
  max_tokens: 1800

chunking:
  chunk_size: 4

weather:
  cache_ttl: 15m

processor:
  remove_stopwords: true
  custom_stopwords: ["kharif"]
  lowercase: true

languages:
  - name: kannada
    aliases: ["kn"]
    instruction: "ಕನ್ನಡದಲ್ಲಿ ಮಾತ್ರ ಉತ್ತರಿಸಿ."
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "groq", config.LLM.Provider)
	assert.Equal(t, "llama3-70b-8192", config.LLM.Model)
	assert.Equal(t, 400, config.LLM.MaxTokens)
	require.NotNil(t, config.LLM.Temperature)
	assert.Equal(t, 0.2, *config.LLM.Temperature)
	assert.Equal(t, "", config.LLM.BaseURL)
	assert.Equal(t, "postgres://localhost:5432/agri", config.Database.URL)
	assert.Equal(t, "kb_docs", config.Database.TableName)
	assert.Equal(t, "/srv/agri/data", config.Corpus.Dir)
	assert.Equal(t, 1800, config.Budget.MaxTokens)
	assert.Equal(t, 1500, config.Budget.ReducedTokens)
	assert.Equal(t, 4, config.Chunking.ChunkSize)
	assert.Equal(t, 2, config.Chunking.MaxChunks)
	assert.Equal(t, 15*time.Minute, config.Weather.CacheTTL)
	assert.Equal(t, filepath.Join("/srv/agri/data", "market_prices.json"), config.Market.File)
	assert.True(t, config.Processor.RemoveStopwords)
	assert.Equal(t, []string{"kharif"}, config.Processor.CustomStopwords)
	assert.True(t, config.Processor.Lowercase)
	assert.Equal(t, 1000, config.Processor.ChunkSize)
	require.Len(t, config.Languages, 1)
	assert.Equal(t, []string{"kn"}, config.Languages[0].Aliases)

	assert.Empty(t, config.Validate())
}

func TestDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, 5, config.Retrieval.K)
	assert.Equal(t, 2000, config.Budget.MaxTokens)
	assert.Equal(t, 1500, config.Budget.ReducedTokens)
	assert.Equal(t, 4500, config.Budget.HardCeiling)
	assert.Equal(t, 200, config.Budget.PromptOverhead)
	assert.Equal(t, 100, config.Budget.MinTailTokens)
	assert.Equal(t, 3, config.Chunking.ChunkSize)
	assert.Equal(t, 30*time.Minute, config.Weather.CacheTTL)
	require.NotNil(t, config.LLM.Temperature)
	assert.Equal(t, 0.3, *config.LLM.Temperature)
	assert.Empty(t, config.Validate())
}

func TestZeroTemperatureIsKept(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  temperature: 0\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config.LLM.Temperature)
	assert.Equal(t, 0.0, *config.LLM.Temperature)
	assert.Empty(t, config.Validate())
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := Config{}
		applyDefaults(&c)
		return c
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "bad llm settings",
			mutate: func(c *Config) {
				c.LLM.BaseURL = "invalid-url"
				c.LLM.MaxTokens = 9000
				temperature := 3.0
				c.LLM.Temperature = &temperature
			},
			errorMessages: []string{
				"llm.base_url: invalid base URL",
				"llm.max_tokens: max_tokens must be between 1 and 8192",
				"llm.temperature: temperature must be between 0 and 1",
			},
		},
		{
			name: "hosted provider without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "groq"
				c.LLM.BaseURL = ""
			},
			errorMessages: []string{"llm.api_key: api key is required for provider groq"},
		},
		{
			name: "bad database and budget",
			mutate: func(c *Config) {
				c.Database.URL = "mysql://localhost"
				c.Database.TableName = "docs; drop table x"
				c.Budget.ReducedTokens = 3000
				c.Budget.HardCeiling = 1000
			},
			errorMessages: []string{
				"database.url: invalid database URL",
				"database.table_name: table_name must be a plain SQL identifier",
				"budget.reduced_tokens: reduced_tokens must be positive and not above max_tokens",
				"budget.hard_ceiling: hard_ceiling must be above max_tokens",
			},
		},
		{
			name: "unnamed language",
			mutate: func(c *Config) {
				c.Languages = []LanguageConfig{{Instruction: "x"}}
			},
			errorMessages: []string{"languages[0].name: language name is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			errors := c.Validate()
			require.Len(t, errors, len(tt.errorMessages))

			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("WEATHER_API_KEY", "weather-key")
	t.Setenv("AGRI_CORPUS_DIR", "/tmp/corpus")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.Embedder.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "weather-key", config.Weather.APIKey)
	assert.Equal(t, "/tmp/corpus", config.Corpus.Dir)
}

func TestProviderKeyFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGRI_LLM_PROVIDER", "groq")
	t.Setenv("GROQ_API_KEY", "gsk-env")

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "groq", config.LLM.Provider)
	assert.Equal(t, "gsk-env", config.LLM.APIKey)
	assert.Equal(t, "llama3-8b-8192", config.LLM.Model)
	assert.Equal(t, "", config.LLM.BaseURL)
}
