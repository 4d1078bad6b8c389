package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const ollamaBaseURL = "http://localhost:11434"

// OllamaProvider runs completions on a local Ollama server through
// /api/generate. Schemas go in the "format" field.
type OllamaProvider struct {
	api    *endpoint
	config Config
}

type ollamaRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	System  string          `json:"system,omitempty"`
	Format  json.RawMessage `json:"format,omitempty"`
	Options ollamaOptions   `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// NewOllamaProvider creates a provider for BaseURL, localhost by default
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}

	// first load of a local model is slow
	api := newEndpoint("ollama", baseURL, newHTTPClient(config, 120*time.Second))
	api.errorMessage = func(body []byte) string {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return apiErr.Error
	}

	return &OllamaProvider{api: api, config: config}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return p.api.get(ctx, "/api/tags")
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.config.model(req, "")
	if model == "" {
		return nil, errors.New("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	var resp ollamaResponse
	err := p.api.post(ctx, "/api/generate", ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Format: req.JSONSchema,
		Options: ollamaOptions{
			Temperature: float64(req.Temperature),
			NumPredict:  p.config.maxTokens(req),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Response)

	// some models report no counts: estimate 4 characters per token
	tokens := resp.PromptEvalCount + resp.EvalCount
	if tokens == 0 {
		tokens = (len(req.Prompt) + len(text)) / 4
	}

	return &CompletionResponse{Text: text, Model: resp.Model, TokensUsed: tokens}, nil
}
