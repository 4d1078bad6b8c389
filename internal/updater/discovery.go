package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/conflictmap/internal/llm"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/worker"
)

// Action is one candidate event reported by the discovery model
type Action struct {
	Name            string  `json:"name"`
	StartDate       string  `json:"startDate"`
	EndDate         *string `json:"endDate"`
	Description     string  `json:"description"`
	Type            string  `json:"type"`
	CasualtiesUS    int64   `json:"casualties_us"`
	CasualtiesTotal int64   `json:"casualties_total"`
	Outcome         string  `json:"outcome"`
	SourceURL       string  `json:"source_url"`

	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
}

type actionList struct {
	Actions []Action `json:"actions"`
}

var actionsSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "startDate": {"type": "string"},
          "endDate": {"type": ["string", "null"]},
          "description": {"type": "string"},
          "type": {"type": "string"},
          "casualties_us": {"type": "integer"},
          "casualties_total": {"type": "integer"},
          "outcome": {"type": "string"},
          "source_url": {"type": "string"}
        },
        "required": ["name", "startDate", "endDate", "description", "type", "casualties_us", "casualties_total", "outcome", "source_url"]
      }
    }
  },
  "required": ["actions"]
}`)

// discoveryPrompt asks for actions against one country since the last check,
// or within the lookback window on the first check
func discoveryPrompt(countryName, lastCheck string, lookbackDays int) string {
	window := fmt.Sprintf("in the last %d days", lookbackDays)
	if lastCheck != "" {
		window = "since " + lastCheck
	}

	types := make([]string, len(model.ConflictTypes))
	for i, def := range model.ConflictTypes {
		types[i] = fmt.Sprintf("%s (%s)", def.ID, def.Name)
	}

	return fmt.Sprintf(`Find any recent US military actions, interventions, sanctions, covert operations,
or acts of aggression against %s %s.

Include:
- Military strikes, raids, or drone attacks
- New sanctions or economic measures
- Covert operations or CIA activities
- Military support to opposition groups
- Political destabilization efforts
- Weapons deployments or military buildups targeting this country

For each action found, provide:
- name: Short descriptive name
- startDate: YYYY-MM-DD format
- endDate: YYYY-MM-DD format or null if ongoing
- description: Detailed description of the action
- type: one of %s
- casualties_us: US casualties count (0 if unknown)
- casualties_total: Total casualties count (0 if unknown)
- outcome: Current outcome or status
- source_url: URL to a reliable source

Include a source URL for each action.

If no actions are found, return an empty list.`, countryName, window, strings.Join(types, ", "))
}

// discoverJob queries the discovery model for one country
type discoverJob struct {
	index        int
	code         string
	lastCheck    string
	lookbackDays int
	provider     llm.Provider
	limiter      *worker.Limiter
}

type discoverResult struct {
	index   int
	code    string
	actions []Action
	err     error
}

func (r *discoverResult) GetError() error {
	return r.err
}

func (j *discoverJob) Execute(ctx context.Context) worker.Result {
	result := &discoverResult{index: j.index, code: j.code}

	if err := j.limiter.WaitKey(ctx, j.provider.Name()); err != nil {
		result.err = fmt.Errorf("rate limit: %w", err)
		return result
	}

	name := model.CountryName(j.code)
	resp, err := j.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:     discoveryPrompt(name, j.lastCheck, j.lookbackDays),
		JSONSchema: actionsSchema,
		SchemaName: "actions",
	})
	if err != nil {
		result.err = fmt.Errorf("discover %s: %w", j.code, err)
		return result
	}

	var list actionList
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Text)), &list); err != nil {
		result.err = fmt.Errorf("decode actions for %s: %w", j.code, err)
		return result
	}

	for i := range list.Actions {
		list.Actions[i].CountryCode = j.code
		list.Actions[i].CountryName = name
	}
	result.actions = list.Actions
	return result
}
