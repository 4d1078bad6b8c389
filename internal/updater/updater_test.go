package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/conflictmap/internal/editor"
	"github.com/ppiankov/conflictmap/internal/llm"
	"github.com/ppiankov/conflictmap/internal/model"
)

// scriptedProvider answers with the first reply whose key appears in the prompt
type scriptedProvider struct {
	name    string
	replies map[string]string
	errs    map[string]error

	mu      sync.Mutex
	prompts []string
}

func (p *scriptedProvider) Name() string                     { return p.name }
func (p *scriptedProvider) IsAvailable(context.Context) bool { return true }

func (p *scriptedProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, req.Prompt)
	p.mu.Unlock()

	for key, err := range p.errs {
		if strings.Contains(req.Prompt, key) {
			return nil, err
		}
	}
	for key, text := range p.replies {
		if strings.Contains(req.Prompt, key) {
			return &llm.CompletionResponse{Text: text}, nil
		}
	}
	return &llm.CompletionResponse{Text: `{"actions": []}`}, nil
}

func (p *scriptedProvider) promptsContaining(s string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, prompt := range p.prompts {
		if strings.Contains(prompt, s) {
			out = append(out, prompt)
		}
	}
	return out
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 5, 0, time.UTC)

const iraqActions = "```json\n" + `{"actions": [
  {"name": "Strike on Jurf al-Sakhar", "startDate": "2026-02-02", "endDate": null,
   "description": "Airstrikes on militia depots.", "type": "type2",
   "casualties_us": 0, "casualties_total": 12, "outcome": "", "source_url": "https://www.reuters.com/world/strike"},
  {"name": "Iraq War continued", "startDate": "2003-03-20", "endDate": "2011-12-18",
   "description": "Same war.", "type": "type1",
   "casualties_us": 4492, "casualties_total": 200000, "outcome": "Withdrawal", "source_url": "https://en.wikipedia.org/wiki/Iraq_War"}
]}` + "\n```"

func newTestUpdater(t *testing.T, discovery, verifier *scriptedProvider, countries []string) (*Updater, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := model.UpdaterConfig{
		Countries:    countries,
		StateFile:    filepath.Join(dir, "state.json"),
		BackupDir:    "backups",
		LookbackDays: 90,
	}
	u, err := New(discovery, verifier, cfg, 2, nil)
	require.NoError(t, err)
	u.now = func() time.Time { return fixedNow }

	dataset := filepath.Join(dir, "conflicts.json")
	data, err := editor.MarshalDataset([]model.Conflict{{
		ID:          "iraq-war",
		Name:        "Iraq War",
		Type:        model.TypeDirectWar,
		Countries:   []string{"IQ"},
		StartDate:   "2003-03-20",
		EndDate:     "2011-12-18",
		Description: strings.Repeat("Long description. ", 20),
	}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dataset, data, 0o644))

	return u, dataset
}

func newVerifier() *scriptedProvider {
	return &scriptedProvider{
		name: "openai",
		replies: map[string]string{
			`"name": "Strike on Jurf al-Sakhar"`: `{"is_duplicate": false, "reason": "new event", "recommended_type": "type2",
				"suggested_id": "iraq-war", "validated_name": "Jurf al-Sakhar Strikes", "is_credible": true, "credibility_note": ""}`,
			`"name": "Iraq War continued"`: `{"is_duplicate": true, "reason": "covered by iraq-war"}`,
		},
	}
}

func TestRun_DiscoverVerifySave(t *testing.T) {
	discovery := &scriptedProvider{
		name:    "perplexity",
		replies: map[string]string{"against Iraq": iraqActions},
		errs:    map[string]error{"against Syria": errors.New("upstream timeout")},
	}
	verifier := newVerifier()
	u, dataset := newTestUpdater(t, discovery, verifier, []string{"IQ", "SY"})

	report, err := u.Run(context.Background(), Options{DatasetPath: dataset})
	require.NoError(t, err)

	assert.Equal(t, []string{"IQ", "SY"}, report.Countries)
	assert.Equal(t, 2, report.Found)
	require.Len(t, report.New, 1)
	require.Len(t, report.Rejected, 1)
	assert.Contains(t, report.Rejected[0].Reason, "duplicate")
	assert.Contains(t, report.Failed, "SY")

	added := report.New[0]
	assert.Equal(t, "iraq-war-1", added.ID, "suggested id collides with an existing record")
	assert.Equal(t, "Jurf al-Sakhar Strikes", added.Name)
	assert.Equal(t, model.TypeDirectIntervention, added.Type)
	assert.Equal(t, []string{"IQ"}, added.Countries)
	assert.Equal(t, model.Date("2026-03-14"), added.EndDate, "ongoing actions end today")
	assert.Equal(t, "Ongoing", added.Outcome)
	assert.Equal(t, "https://www.reuters.com/world/strike", added.WikiLink)

	data, err := os.ReadFile(dataset)
	require.NoError(t, err)
	saved, err := editor.ParseDataset(data)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "iraq-war-1", saved[1].ID)
	assert.Contains(t, string(data), "\n    {\n        \"id\"")

	require.True(t, report.Saved)
	assert.Equal(t, "conflicts_2026-03-14_093005.json", filepath.Base(report.BackupPath))
	assert.Equal(t, "backups", filepath.Base(filepath.Dir(report.BackupPath)))
	backup, err := editor.ParseDataset(mustRead(t, report.BackupPath))
	require.NoError(t, err)
	assert.Len(t, backup, 1)

	state, err := LoadState(u.cfg.StateFile)
	require.NoError(t, err)
	assert.Equal(t, State{"IQ": "2026-03-14"}, state, "failed countries keep their window")
}

func TestRun_LaterActionsSeeAcceptedOnes(t *testing.T) {
	discovery := &scriptedProvider{
		name: "perplexity",
		replies: map[string]string{"against Iraq": `{"actions": [
			{"name": "Strike on Jurf al-Sakhar", "startDate": "2026-02-02", "endDate": "2026-02-03", "description": "a", "type": "type2", "casualties_us": 0, "casualties_total": 0, "outcome": "Done", "source_url": ""},
			{"name": "Second wave", "startDate": "2026-02-10", "endDate": "2026-02-11", "description": "b", "type": "type2", "casualties_us": 0, "casualties_total": 0, "outcome": "Done", "source_url": ""}
		]}`},
	}
	verifier := newVerifier()
	u, dataset := newTestUpdater(t, discovery, verifier, []string{"IQ"})

	_, err := u.Run(context.Background(), Options{DatasetPath: dataset})
	require.NoError(t, err)

	// no scripted verdict for "Second wave": decoded as a duplicate
	prompts := verifier.promptsContaining(`"name": "Second wave"`)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], `"id": "iraq-war-1"`)
}

func TestRun_DryRun(t *testing.T) {
	discovery := &scriptedProvider{name: "perplexity", replies: map[string]string{"against Iraq": iraqActions}}
	u, dataset := newTestUpdater(t, discovery, newVerifier(), []string{"IQ"})
	before := mustRead(t, dataset)

	report, err := u.Run(context.Background(), Options{DatasetPath: dataset, DryRun: true})
	require.NoError(t, err)

	assert.Len(t, report.New, 1)
	assert.False(t, report.Saved)
	assert.False(t, report.StateSaved)
	assert.Equal(t, before, mustRead(t, dataset))
	_, err = os.Stat(u.cfg.StateFile)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_NoNewConflictsStillSavesState(t *testing.T) {
	discovery := &scriptedProvider{name: "perplexity"}
	u, dataset := newTestUpdater(t, discovery, newVerifier(), []string{"VE"})
	require.NoError(t, State{"VE": "2026-01-01"}.Save(u.cfg.StateFile))
	before := mustRead(t, dataset)

	report, err := u.Run(context.Background(), Options{DatasetPath: dataset})
	require.NoError(t, err)

	assert.Empty(t, report.New)
	assert.False(t, report.Saved)
	assert.True(t, report.StateSaved)
	assert.Equal(t, before, mustRead(t, dataset))

	state, err := LoadState(u.cfg.StateFile)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", state["VE"])

	require.Len(t, discovery.prompts, 1)
	assert.Contains(t, discovery.prompts[0], "against Venezuela since 2026-01-01")
}

func TestRun_CountryFilter(t *testing.T) {
	discovery := &scriptedProvider{name: "perplexity"}
	u, dataset := newTestUpdater(t, discovery, newVerifier(), []string{"IQ", "SY"})

	report, err := u.Run(context.Background(), Options{DatasetPath: dataset, Country: "ye"})
	require.NoError(t, err)
	assert.Equal(t, []string{"YE"}, report.Countries)

	_, err = u.Run(context.Background(), Options{DatasetPath: dataset, Country: "ZZ"})
	assert.ErrorContains(t, err, "unknown country code: ZZ")
}

func TestNew_RequiresProviders(t *testing.T) {
	_, err := New(nil, &scriptedProvider{}, model.UpdaterConfig{}, 1, nil)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)

	_, err = New(&scriptedProvider{}, nil, model.UpdaterConfig{}, 1, nil)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)

	u, err := New(&scriptedProvider{}, &scriptedProvider{}, model.UpdaterConfig{}, 1, nil)
	require.NoError(t, err)
	_, err = u.countries("")
	assert.ErrorIs(t, err, ErrNoCountries)
}

func TestVerdict_Rejection(t *testing.T) {
	yes, no := true, false

	assert.Contains(t, Verdict{}.Rejection(), "duplicate: no reason given")
	assert.Contains(t, Verdict{IsDuplicate: &yes, Reason: "same"}.Rejection(), "duplicate: same")
	assert.Equal(t, "", Verdict{IsDuplicate: &no}.Rejection())
	assert.Equal(t, "not credible: blog post", Verdict{IsDuplicate: &no, IsCredible: &no, CredibilityNote: "blog post"}.Rejection())
}

func TestBuildConflict_Fallbacks(t *testing.T) {
	no := false
	action := Action{
		Name:        "Naval blockade of Caracas",
		StartDate:   "2026-01-05",
		Type:        "bogus",
		CountryCode: "VE",
	}

	c := buildConflict(action, Verdict{IsDuplicate: &no, RecommendedType: "type9"}, nil, fixedNow)

	assert.Equal(t, "naval-blockade-of-caracas", c.ID)
	assert.Equal(t, "Naval blockade of Caracas", c.Name)
	assert.Equal(t, model.TypeDirectIntervention, c.Type)
	assert.Equal(t, model.Date("2026-01-05"), c.StartDate)
	assert.Equal(t, model.Date("2026-03-14"), c.EndDate)
}

func TestSummarizeExisting(t *testing.T) {
	conflicts := []model.Conflict{
		{ID: "a", Countries: []string{"IQ"}, Description: strings.Repeat("x", 250)},
		{ID: "b", Countries: []string{"SY"}, Description: "short"},
		{ID: "c", Countries: []string{"SY", "IQ"}, Description: "short"},
	}

	got := summarizeExisting(conflicts, "IQ")
	require.Len(t, got, 2)
	assert.Equal(t, strings.Repeat("x", 200)+"...", got[0].Description)
	assert.Equal(t, "c", got[1].ID)

	assert.Empty(t, summarizeExisting(conflicts, "VE"))
}

func TestDiscoveryPrompt_Window(t *testing.T) {
	assert.Contains(t, discoveryPrompt("Somalia", "", 90), "against Somalia in the last 90 days")
	assert.Contains(t, discoveryPrompt("Somalia", "2026-02-01", 90), "against Somalia since 2026-02-01")
	assert.Contains(t, discoveryPrompt("Somalia", "", 30), "type4 (Political Destabilization)")
}

func TestLoadState(t *testing.T) {
	dir := t.TempDir()

	state, err := LoadState(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, state)

	path := filepath.Join(dir, "nested", "state.json")
	require.NoError(t, State{"SY": "2026-01-02", "IQ": "2026-01-01"}.Save(path))
	state, err = LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"IQ", "SY"}, state.Countries())

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadState(path)
	assert.Error(t, err)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
