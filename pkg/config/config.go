package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLMConfig selects the generator. A nil Temperature takes the default, so an
// explicit 0 is kept.
type LLMConfig struct {
	Provider    string   `yaml:"provider"` // ollama, groq, openai or gemini
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"api_key"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

type EmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
	Rebuild   bool   `yaml:"rebuild"`
}

type CorpusConfig struct {
	Dir  string `yaml:"dir"`
	Lazy bool   `yaml:"lazy"`
}

type RetrievalConfig struct {
	K int `yaml:"k"`
}

type BudgetConfig struct {
	Encoding       string `yaml:"encoding"`
	MaxTokens      int    `yaml:"max_tokens"`
	ReducedTokens  int    `yaml:"reduced_tokens"`
	HardCeiling    int    `yaml:"hard_ceiling"`
	PromptOverhead int    `yaml:"prompt_overhead"`
	MinTailTokens  int    `yaml:"min_tail_tokens"`
}

type ChunkingConfig struct {
	Enabled   bool `yaml:"enabled"`
	ChunkSize int  `yaml:"chunk_size"`
	MaxChunks int  `yaml:"max_chunks"`
}

type WeatherConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Days     int           `yaml:"days"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	CacheMax int           `yaml:"cache_max"`
	Timeout  time.Duration `yaml:"timeout"`
}

type MarketConfig struct {
	File string `yaml:"file"`
}

type LocationConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type ScraperConfig struct {
	MaxDepth          int      `yaml:"max_depth"`
	RateLimit         float64  `yaml:"rate_limit"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ProcessorConfig struct {
	ChunkSize       int      `yaml:"chunk_size"`
	ChunkOverlap    int      `yaml:"chunk_overlap"`
	RemoveStopwords bool     `yaml:"remove_stopwords"`
	CustomStopwords []string `yaml:"custom_stopwords"`
	Lowercase       bool     `yaml:"lowercase"`
}

// LanguageConfig adds or extends a language profile.
type LanguageConfig struct {
	Name          string            `yaml:"name"`
	Aliases       []string          `yaml:"aliases"`
	Instruction   string            `yaml:"instruction"`
	Corrections   map[string]string `yaml:"corrections"`
	StrayPatterns []string          `yaml:"stray_patterns"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type Config struct {
	LLM       LLMConfig        `yaml:"llm"`
	Embedder  EmbedderConfig   `yaml:"embedder"`
	Database  DatabaseConfig   `yaml:"database"`
	Corpus    CorpusConfig     `yaml:"corpus"`
	Retrieval RetrievalConfig  `yaml:"retrieval"`
	Budget    BudgetConfig     `yaml:"budget"`
	Chunking  ChunkingConfig   `yaml:"chunking"`
	Weather   WeatherConfig    `yaml:"weather"`
	Market    MarketConfig     `yaml:"market"`
	Location  LocationConfig   `yaml:"location"`
	Server    ServerConfig     `yaml:"server"`
	Scraper   ScraperConfig    `yaml:"scraper"`
	Processor ProcessorConfig  `yaml:"processor"`
	Languages []LanguageConfig `yaml:"languages"`
	Log       LogConfig        `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// A missing .env is fine; values may come from the real environment.
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/agrisaathi/config.yaml"),
			"/etc/agrisaathi/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

const defaultTemperature = 0.3

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "groq":
			config.LLM.Model = "llama3-8b-8192"
		case "gemini":
			config.LLM.Model = "gemini-2.0-flash"
		case "openai":
			config.LLM.Model = "gpt-4o-mini"
		default:
			config.LLM.Model = "llama3"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 512
	}
	if config.LLM.Temperature == nil {
		temperature := defaultTemperature
		config.LLM.Temperature = &temperature
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
	if config.Embedder.Model == "" {
		config.Embedder.Model = "all-minilm"
	}
	if config.Embedder.BatchSize == 0 {
		config.Embedder.BatchSize = 32
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "knowledge_documents"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 384
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Corpus.Dir == "" {
		config.Corpus.Dir = "data"
	}
	if config.Retrieval.K == 0 {
		config.Retrieval.K = 5
	}

	if config.Budget.Encoding == "" {
		config.Budget.Encoding = "cl100k_base"
	}
	if config.Budget.MaxTokens == 0 {
		config.Budget.MaxTokens = 2000
	}
	if config.Budget.ReducedTokens == 0 {
		config.Budget.ReducedTokens = 1500
	}
	if config.Budget.HardCeiling == 0 {
		config.Budget.HardCeiling = 4500
	}
	if config.Budget.PromptOverhead == 0 {
		config.Budget.PromptOverhead = 200
	}
	if config.Budget.MinTailTokens == 0 {
		config.Budget.MinTailTokens = 100
	}

	if config.Chunking.ChunkSize == 0 {
		config.Chunking.ChunkSize = 3
	}
	if config.Chunking.MaxChunks == 0 {
		config.Chunking.MaxChunks = 2
	}

	if config.Weather.BaseURL == "" {
		config.Weather.BaseURL = "http://api.weatherapi.com/v1"
	}
	if config.Weather.Days == 0 {
		config.Weather.Days = 7
	}
	if config.Weather.CacheTTL == 0 {
		config.Weather.CacheTTL = 30 * time.Minute
	}
	if config.Weather.CacheMax == 0 {
		config.Weather.CacheMax = 1024
	}
	if config.Weather.Timeout == 0 {
		config.Weather.Timeout = 10 * time.Second
	}

	if config.Market.File == "" {
		config.Market.File = filepath.Join(config.Corpus.Dir, "market_prices.json")
	}

	if config.Location.BaseURL == "" {
		config.Location.BaseURL = "https://api.postalpincode.in"
	}
	if config.Location.Timeout == 0 {
		config.Location.Timeout = 5 * time.Second
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Server.RequestTimeout == 0 {
		config.Server.RequestTimeout = 60 * time.Second
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 2
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if provider := os.Getenv("AGRI_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedder.BaseURL = baseURL
		if config.LLM.Provider == "" || config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" && config.LLM.Provider == "groq" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && config.LLM.Provider == "openai" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && config.LLM.Provider == "gemini" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv("WEATHER_API_KEY"); key != "" {
		config.Weather.APIKey = key
	}
	if dir := os.Getenv("AGRI_CORPUS_DIR"); dir != "" {
		config.Corpus.Dir = dir
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
