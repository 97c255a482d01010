// Package config holds codesage configuration, loaded from a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all codesage configuration.
type Config struct {
	// LLM configures the generation service.
	LLM LLMConfig `yaml:"llm"`

	// Embedding configures the embedding engine used by the search index.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Index configures the semantic code index.
	Index IndexConfig `yaml:"index"`

	// Research configures the deep-research pipeline.
	Research ResearchConfig `yaml:"research"`
}

// LLMConfig configures the generation service.
type LLMConfig struct {
	Provider string        `yaml:"provider"` // gemini, openai, ollama
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama, genai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
}

// IndexConfig configures the on-disk code index.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// ResearchConfig configures pipeline bounds and synthesis sampling.
type ResearchConfig struct {
	MaxSubQuestions       int     `yaml:"max_sub_questions"`
	ChunksPerSubQuestion  int     `yaml:"chunks_per_subquestion"`
	MaxTotalChunks        int     `yaml:"max_total_chunks"`
	MaxFollowUpQueries    int     `yaml:"max_follow_up_queries"`
	MaxConcurrentSearches int     `yaml:"max_concurrent_searches"`
	SynthesisTemperature  float64 `yaml:"synthesis_temperature"`
	SynthesisMaxTokens    int     `yaml:"synthesis_max_tokens"`
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  2 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Index: IndexConfig{
			Path: filepath.Join(".codesage", "index.db"),
		},
		Research: ResearchConfig{
			MaxSubQuestions:       4,
			ChunksPerSubQuestion:  5,
			MaxTotalChunks:        30,
			MaxFollowUpQueries:    3,
			MaxConcurrentSearches: 8,
			SynthesisTemperature:  0.5,
			SynthesisMaxTokens:    4096,
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. API keys are
// never expected to live in the config file in shared setups.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("CODESAGE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedding.GenAIAPIKey == "" {
			c.Embedding.GenAIAPIKey = key
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if endpoint := os.Getenv("CODESAGE_OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}
	if path := os.Getenv("CODESAGE_INDEX_PATH"); path != "" {
		c.Index.Path = path
	}
}

// Validate checks configuration consistency before components are built.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm provider %q requires an API key", c.LLM.Provider)
		}
	case "ollama":
		// Local provider, no key.
	default:
		return fmt.Errorf("unsupported llm provider: %s (use 'gemini', 'openai' or 'ollama')", c.LLM.Provider)
	}

	switch c.Embedding.Provider {
	case "ollama":
	case "genai":
		if c.Embedding.GenAIAPIKey == "" {
			return fmt.Errorf("embedding provider genai requires an API key")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", c.Embedding.Provider)
	}

	r := c.Research
	if r.MaxSubQuestions <= 0 || r.ChunksPerSubQuestion <= 0 || r.MaxTotalChunks <= 0 {
		return fmt.Errorf("research bounds must be positive")
	}
	if r.MaxFollowUpQueries < 0 {
		return fmt.Errorf("max_follow_up_queries must not be negative")
	}
	return nil
}
