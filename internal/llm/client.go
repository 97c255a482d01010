// Package llm provides the text-generation client used by the research
// pipeline. Providers: Google Gemini (SDK), OpenAI-compatible HTTP endpoints
// and local Ollama.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Request is a single completion request. Temperature and MaxTokens are set
// per call because structured-output calls pin low temperatures while
// synthesis is caller-tunable.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Client is the generation service. Implementations apply their own retry
// policy for transient failures; a returned error is a hard failure.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string // "gemini", "openai", "ollama"
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// New creates a client for the configured provider.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiClient(cfg)
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "ollama":
		return NewOllamaClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (use 'gemini', 'openai' or 'ollama')", cfg.Provider)
	}
}

const defaultMaxTokens = 4096

// maxTokensOrDefault guards against zero-valued requests; every provider
// needs an explicit output budget.
func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
