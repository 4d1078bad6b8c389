package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotConfigured is returned by the assistant when no provider is configured
var ErrNotConfigured = errors.New("llm not configured: please set an API key")

// ErrBadAnswer marks a completion that could not be decoded
var ErrBadAnswer = errors.New("unusable model answer")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs a single-turn completion
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a system + user prompt pair
type CompletionRequest struct {
	System string
	Prompt string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length; 0 uses the configured limit
	MaxTokens int

	Temperature float32

	// JSONSchema, when set, asks for structured output matching the schema.
	// Providers without structured output only get the schema in the prompt.
	JSONSchema json.RawMessage
	SchemaName string
}

// CompletionResponse contains the model output
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "perplexity", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Perplexity/Anthropic
	APIKey string

	// BaseURL for custom endpoints (Ollama, Perplexity, test servers)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   60,
		MaxTokens: 2000,
	}
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

func (c Config) model(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

// promptWithSchema appends the schema for providers that cannot enforce it
func promptWithSchema(req CompletionRequest) string {
	if len(req.JSONSchema) == 0 {
		return req.Prompt
	}
	return req.Prompt + "\n\nRespond with ONLY valid JSON matching this JSON schema:\n" + string(req.JSONSchema)
}

// ExtractJSON strips markdown code fences around a JSON answer
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	return strings.TrimSpace(text)
}
