package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/conflictmap/internal/model"
)

// MockProvider is a mock LLM provider for testing
type MockProvider struct {
	response string
	err      error
	requests []CompletionRequest
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &CompletionResponse{Text: m.response, Model: "mock-1", TokensUsed: 42}, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool { return true }

func TestAssistant_NotConfigured(t *testing.T) {
	a := NewAssistant(nil, nil)
	assert.False(t, a.Enabled())

	_, err := a.GenerateConflict(context.Background(), "Korean War")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = a.EnhanceDescription(context.Background(), model.Conflict{Name: "Korean War"}, "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAssistant_GenerateConflict(t *testing.T) {
	mock := &MockProvider{response: "```json\n" + `{
		"id": "ignored",
		"name": "Korean War",
		"type": "type1",
		"countries": ["kp", " KR"],
		"startDate": "1950-06-25",
		"endDate": "1953-07-27",
		"description": "War on the Korean peninsula.",
		"casualties": {"us": 36574, "total": 3000000},
		"outcome": "Armistice",
		"wikiLink": "https://en.wikipedia.org/wiki/Korean_War"
	}` + "\n```"}

	draft, err := NewAssistant(mock, nil).GenerateConflict(context.Background(), "  the Korean War ")
	require.NoError(t, err)

	assert.Empty(t, draft.ID)
	assert.Equal(t, "Korean War", draft.Name)
	assert.Equal(t, model.TypeDirectWar, draft.Type)
	assert.Equal(t, []string{"KP", "KR"}, draft.Countries)
	assert.Equal(t, int64(36574), draft.Casualties.US)

	require.Len(t, mock.requests, 1)
	assert.Contains(t, mock.requests[0].Prompt, "the Korean War")
	assert.Contains(t, mock.requests[0].Prompt, "type4: Political Destabilization")
	assert.NotEmpty(t, mock.requests[0].JSONSchema)
}

func TestAssistant_GenerateConflict_Errors(t *testing.T) {
	_, err := NewAssistant(&MockProvider{}, nil).GenerateConflict(context.Background(), "   ")
	assert.Error(t, err)

	_, err = NewAssistant(&MockProvider{response: "not json"}, nil).GenerateConflict(context.Background(), "x")
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = NewAssistant(&MockProvider{err: boom}, nil).GenerateConflict(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestAssistant_EnhanceDescription(t *testing.T) {
	mock := &MockProvider{response: `"A better description."`}
	c := model.Conflict{
		Name:        "Gulf War",
		Type:        model.TypeDirectWar,
		Countries:   []string{"IQ", "KW"},
		StartDate:   "1990-08-02",
		EndDate:     "1991-02-28",
		Description: "Old text.",
	}

	text, err := NewAssistant(mock, nil).EnhanceDescription(context.Background(), c, "Lead paragraph.")
	require.NoError(t, err)
	assert.Equal(t, "A better description.", text)

	prompt := mock.requests[0].Prompt
	assert.Contains(t, prompt, "Iraq, Kuwait")
	assert.Contains(t, prompt, "Direct War & Occupation")
	assert.Contains(t, prompt, "Reference text: Lead paragraph.")
	assert.Empty(t, mock.requests[0].JSONSchema)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Here:\n```\n{\"a\":1}\n```\nDone", `{"a":1}`},
		{"  [1]  ", "[1]"},
	}
	for _, tt := range tests {
		if got := ExtractJSON(tt.in); got != tt.want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{})
	assert.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewProvider(Config{Provider: "gemini"})
	assert.Error(t, err)

	p, err = NewProvider(Config{Provider: "Ollama", Model: "llama3.1"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestConfigFromModel_EnvKeys(t *testing.T) {
	t.Setenv("PERPLEXITY_API_KEY", "pplx-key")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	cfg := ConfigFromModel(model.LLMConfig{Provider: "perplexity", Model: "sonar-pro"}, model.HTTPConfig{HTTPProxy: "http://proxy:3128"})
	assert.Equal(t, "pplx-key", cfg.APIKey)
	assert.Equal(t, "http://proxy:3128", cfg.HTTPProxy)

	cfg = ConfigFromModel(model.LLMConfig{Provider: "perplexity", APIKey: "explicit"}, model.HTTPConfig{})
	assert.Equal(t, "explicit", cfg.APIKey)

	cfg = ConfigFromModel(model.LLMConfig{Provider: "ollama"}, model.HTTPConfig{})
	assert.Equal(t, "http://ollama:11434", cfg.BaseURL)
	assert.True(t, strings.HasPrefix(cfg.BaseURL, "http://"))
}

func TestAssistant_GenerateConflict_BadAnswer(t *testing.T) {
	mock := &MockProvider{response: "I could not find that conflict."}

	_, err := NewAssistant(mock, nil).GenerateConflict(context.Background(), "Battle of Nowhere")
	assert.ErrorIs(t, err, ErrBadAnswer)
}
