// Package llm provides a unified interface for the text-generation providers
// used to write game recaps. It supports OpenAI, Gemini, and Claude, with
// optional retries on transient failures and token cost tracking.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	OpenAI Provider = "openai"
	Gemini Provider = "gemini"
	Claude Provider = "claude"
)

// Config holds configuration for an LLM client.
type Config struct {
	Provider    Provider      `yaml:"provider" json:"provider" env:"LLM_PROVIDER"`
	Model       string        `yaml:"model" json:"model" env:"LLM_MODEL"`
	APIKey      string        `yaml:"api_key" json:"-" env:"LLM_API_KEY,OPENAI_API_KEY"`
	BaseURL     string        `yaml:"base_url" json:"base_url" env:"LLM_BASE_URL"`
	MaxRetries  int           `yaml:"max_retries" json:"max_retries" env:"LLM_MAX_RETRIES"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" json:"temperature" env:"LLM_TEMPERATURE"`
}

// DefaultConfig returns the settings the recap writer was tuned with.
// MaxRetries of zero means a failed call is surfaced immediately.
func DefaultConfig() Config {
	return Config{
		Provider:    OpenAI,
		Model:       "gpt-4.1",
		MaxRetries:  0,
		Timeout:     120 * time.Second,
		MaxTokens:   2000,
		Temperature: 0.7,
	}
}

// Client is the unified interface for LLM interactions.
type Client interface {
	// Generate sends a prompt and returns the LLM response.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GenerateJSON sends a prompt and unmarshals the JSON response into out.
	GenerateJSON(ctx context.Context, req *Request, out any) (*Response, error)

	// Provider returns the name of the provider.
	Provider() Provider

	// Close releases any resources held by the client.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request holds the parameters for an LLM generation request.
type Request struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	JSONMode    bool      `json:"json_mode,omitempty"`
}

// UserPrompt builds a single-turn request.
func UserPrompt(system, prompt string) *Request {
	return &Request{
		System:   system,
		Messages: []Message{{Role: "user", Content: prompt}},
	}
}

// Response holds the result of an LLM generation.
type Response struct {
	Content      string  `json:"content"`
	FinishReason string  `json:"finish_reason,omitempty"`
	TokensIn     int     `json:"tokens_in"`
	TokensOut    int     `json:"tokens_out"`
	Cost         float64 `json:"cost"`
	Model        string  `json:"model"`
	LatencyMs    int64   `json:"latency_ms"`
}

// Tokens returns the total token count of the exchange.
func (r *Response) Tokens() int {
	if r == nil {
		return 0
	}
	return r.TokensIn + r.TokensOut
}

// NewClient creates a new LLM client based on the provided config.
func NewClient(cfg Config) (Client, error) {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	var (
		c   Client
		err error
	)
	switch cfg.Provider {
	case OpenAI:
		c, err = newOpenAIClient(cfg)
	case Gemini:
		c, err = newGeminiClient(cfg)
	case Claude:
		c, err = newClaudeClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return wrapWithRetry(c, cfg.MaxRetries), nil
}

func pickInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func pickFloat(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

// decodeJSON unmarshals model output, tolerating a surrounding ```json fence.
func decodeJSON(content string, out any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("unmarshal JSON response: %w", err)
	}
	return nil
}
