package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/conflictmap/internal/editor"
	"github.com/ppiankov/conflictmap/internal/llm"
	"github.com/ppiankov/conflictmap/internal/model"
)

const (
	verifySystem         = "You are an expert analyst verifying and deduplicating conflict data. Always respond with valid JSON only."
	maxSummaryDescLength = 200
	defaultOutcome       = "Ongoing"
)

// Verdict is the verification model's judgement on one action.
// Missing is_duplicate counts as a duplicate; missing is_credible as credible.
type Verdict struct {
	IsDuplicate     *bool  `json:"is_duplicate"`
	Reason          string `json:"reason"`
	RecommendedType string `json:"recommended_type"`
	SuggestedID     string `json:"suggested_id"`
	ValidatedName   string `json:"validated_name"`
	IsCredible      *bool  `json:"is_credible"`
	CredibilityNote string `json:"credibility_note"`
}

// Rejection explains why a verdict does not produce a new conflict
func (v Verdict) Rejection() string {
	if v.IsDuplicate == nil || *v.IsDuplicate {
		return "duplicate: " + orDefault(v.Reason, "no reason given")
	}
	if v.IsCredible != nil && !*v.IsCredible {
		return "not credible: " + orDefault(v.CredibilityNote, "no note")
	}
	return ""
}

type existingSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	StartDate   model.Date `json:"startDate"`
	EndDate     model.Date `json:"endDate"`
	Description string     `json:"description"`
}

// summarizeExisting lists the known conflicts touching code, descriptions shortened
func summarizeExisting(conflicts []model.Conflict, code string) []existingSummary {
	out := []existingSummary{}
	for _, c := range conflicts {
		if !c.HasCountry(code) {
			continue
		}
		desc := c.Description
		if len(desc) > maxSummaryDescLength {
			desc = desc[:maxSummaryDescLength] + "..."
		}
		out = append(out, existingSummary{
			ID:          c.ID,
			Name:        c.Name,
			StartDate:   c.StartDate,
			EndDate:     c.EndDate,
			Description: desc,
		})
	}
	return out
}

func verifyPrompt(action Action, existing []model.Conflict) (string, error) {
	actionJSON, err := json.MarshalIndent(action, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal action: %w", err)
	}
	summaryJSON, err := json.MarshalIndent(summarizeExisting(existing, action.CountryCode), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal existing conflicts: %w", err)
	}

	var types strings.Builder
	for _, def := range model.ConflictTypes {
		fmt.Fprintf(&types, "- %s: %s (%s)\n", def.ID, def.Name, def.Description)
	}

	return fmt.Sprintf(`Analyze if this new action is a duplicate or update of any existing conflict.

NEW ACTION:
%s

EXISTING CONFLICTS FOR %s:
%s

Determine:
1. Is this new action already covered by an existing conflict? (Same event, just different wording)
2. Is this an update/continuation of an existing conflict that should update the existing entry instead?
3. Is this genuinely new information that should be added as a separate entry?

Also verify the conflict type is appropriate:
%s
Respond with ONLY valid JSON:
{
    "is_duplicate": true/false,
    "reason": "explanation",
    "recommended_type": "type1|type2|type3|type4",
    "suggested_id": "kebab-case-id-for-new-entry",
    "validated_name": "Corrected or improved name if needed",
    "is_credible": true/false,
    "credibility_note": "Note about source credibility if concerns exist"
}`, actionJSON, action.CountryName, summaryJSON, types.String()), nil
}

// verify asks the verification model about one action
func (u *Updater) verify(ctx context.Context, action Action, existing []model.Conflict) (Verdict, error) {
	prompt, err := verifyPrompt(action, existing)
	if err != nil {
		return Verdict{}, err
	}

	if err := u.limiter.WaitKey(ctx, u.verifier.Name()); err != nil {
		return Verdict{}, fmt.Errorf("rate limit: %w", err)
	}

	resp, err := u.verifier.Complete(ctx, llm.CompletionRequest{
		System:      verifySystem,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("verify %q: %w", action.Name, err)
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Text)), &verdict); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict for %q: %w", action.Name, err)
	}
	return verdict, nil
}

// buildConflict turns an accepted action into a dataset record with an id
// unique among existing
func buildConflict(action Action, verdict Verdict, existing []model.Conflict, now time.Time) model.Conflict {
	today := model.DateOf(now)

	name := orDefault(verdict.ValidatedName, orDefault(action.Name, "Unknown Action"))

	conflictType := model.ConflictType(verdict.RecommendedType)
	if !conflictType.Valid() {
		conflictType = model.ConflictType(action.Type)
	}
	if !conflictType.Valid() {
		conflictType = model.TypeDirectIntervention
	}

	start := model.Date(action.StartDate)
	if start == "" {
		start = today
	}
	end := today
	if action.EndDate != nil && *action.EndDate != "" {
		end = model.Date(*action.EndDate)
	}

	idBase := verdict.SuggestedID
	if editor.Slugify(idBase) == "" {
		idBase = name
	}

	return model.Conflict{
		ID:          editor.GenerateID(idBase, existing, ""),
		Name:        name,
		Type:        conflictType,
		Countries:   []string{action.CountryCode},
		StartDate:   start,
		EndDate:     end,
		Description: action.Description,
		Casualties: model.Casualties{
			US:    action.CasualtiesUS,
			Total: action.CasualtiesTotal,
		},
		Outcome:  orDefault(action.Outcome, defaultOutcome),
		WikiLink: action.SourceURL,
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
