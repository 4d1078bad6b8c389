package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/model"
)

const assistantSystem = "You are a careful military historian helping maintain a dataset of U.S. military conflicts, interventions and covert operations since 1900. Be factual and concise."

// conflictDraftSchema describes the JSON object requested by GenerateConflict
var conflictDraftSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "type": {"type": "string", "enum": ["type1", "type2", "type3", "type4"]},
    "countries": {"type": "array", "items": {"type": "string"}},
    "startDate": {"type": "string"},
    "endDate": {"type": "string"},
    "description": {"type": "string"},
    "casualties": {
      "type": "object",
      "properties": {"us": {"type": "integer"}, "total": {"type": "integer"}},
      "required": ["us", "total"]
    },
    "outcome": {"type": "string"},
    "wikiLink": {"type": "string"}
  },
  "required": ["name", "type", "countries", "startDate", "endDate", "description", "casualties", "outcome", "wikiLink"]
}`)

// Assistant drafts and polishes conflict records for the editor
type Assistant struct {
	provider Provider
	logger   *zap.Logger
}

// NewAssistant wraps provider; a nil provider yields an assistant that fails fast
func NewAssistant(provider Provider, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{provider: provider, logger: logger}
}

// Enabled reports whether a provider is configured
func (a *Assistant) Enabled() bool {
	return a != nil && a.provider != nil
}

// GenerateConflict drafts a conflict record from a free-text prompt.
// The draft has no id; the editor derives one on save.
func (a *Assistant) GenerateConflict(ctx context.Context, prompt string) (model.Conflict, error) {
	if !a.Enabled() {
		return model.Conflict{}, ErrNotConfigured
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return model.Conflict{}, fmt.Errorf("generate conflict: empty prompt")
	}

	var types strings.Builder
	for _, def := range model.ConflictTypes {
		fmt.Fprintf(&types, "- %s: %s (%s)\n", def.ID, def.Name, def.Description)
	}

	resp, err := a.provider.Complete(ctx, CompletionRequest{
		System: assistantSystem,
		Prompt: fmt.Sprintf(`Draft a dataset entry for this U.S. conflict or intervention:

%s

Rules:
- countries are ISO 3166-1 alpha-2 codes of the countries where it took place
- dates are YYYY-MM-DD; use the best known approximation
- type is one of:
%s- casualties are integers, 0 when unknown
- wikiLink is the English Wikipedia article URL`, prompt, types.String()),
		JSONSchema:  conflictDraftSchema,
		SchemaName:  "conflict",
		Temperature: 0.2,
	})
	if err != nil {
		return model.Conflict{}, fmt.Errorf("generate conflict: %w", err)
	}

	var draft model.Conflict
	if err := json.Unmarshal([]byte(ExtractJSON(resp.Text)), &draft); err != nil {
		return model.Conflict{}, fmt.Errorf("decode generated conflict: %w: %v", ErrBadAnswer, err)
	}
	draft.ID = ""
	for i, code := range draft.Countries {
		draft.Countries[i] = strings.ToUpper(strings.TrimSpace(code))
	}

	a.logger.Info("conflict drafted",
		zap.String("provider", a.provider.Name()),
		zap.String("name", draft.Name),
		zap.Int("tokens", resp.TokensUsed))
	return draft, nil
}

// EnhanceDescription rewrites a conflict description. source is optional
// text (the lead of the conflict's reference page) the rewrite may draw on.
func (a *Assistant) EnhanceDescription(ctx context.Context, c model.Conflict, source string) (string, error) {
	if !a.Enabled() {
		return "", ErrNotConfigured
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rewrite the description of %q (%s to %s, %s) in two or three factual sentences.\n",
		c.Name, c.StartDate, c.EndDate, c.Type.DisplayName())
	fmt.Fprintf(&sb, "Countries: %s\n", strings.Join(countryNames(c.Countries), ", "))
	if c.Outcome != "" {
		fmt.Fprintf(&sb, "Outcome: %s\n", c.Outcome)
	}
	fmt.Fprintf(&sb, "Current description: %s\n", c.Description)
	if source != "" {
		fmt.Fprintf(&sb, "Reference text: %s\n", source)
	}
	sb.WriteString("Reply with the new description only, without quotes or commentary.")

	resp, err := a.provider.Complete(ctx, CompletionRequest{
		System:      assistantSystem,
		Prompt:      sb.String(),
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("enhance description: %w", err)
	}

	text := strings.Trim(strings.TrimSpace(resp.Text), `"`)
	if text == "" {
		return "", fmt.Errorf("enhance description: empty response")
	}
	return text, nil
}

func countryNames(codes []string) []string {
	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = model.CountryName(code)
	}
	return names
}
