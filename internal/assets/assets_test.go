package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/conflictmap/internal/cache"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/reference"
)

func testFetcher() *reference.Fetcher {
	cfg := model.DefaultConfig().HTTP
	cfg.Timeout = 5
	return reference.NewFetcher(cfg)
}

func TestLoader_Embedded(t *testing.T) {
	l := NewLoader(model.DataConfig{}, nil, nil)
	ctx := context.Background()

	conflicts, err := l.LoadConflicts(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, conflicts)

	ids := make(map[string]bool)
	for _, c := range conflicts {
		assert.False(t, ids[c.ID], "duplicate id %s", c.ID)
		ids[c.ID] = true
		assert.True(t, c.Type.Valid(), "conflict %s has type %s", c.ID, c.Type)
		assert.True(t, c.StartDate.Valid(), "conflict %s start %s", c.ID, c.StartDate)
	}
	assert.True(t, ids["afghanistan"])

	presidents, err := l.LoadPresidents(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, presidents)
	assert.Equal(t, "William McKinley", presidents[0].Name)
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conflicts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x","name":"X","type":"type2","countries":["IQ"],"startDate":"2000-01-01","endDate":"2001-01-01"}]`), 0644))

	l := NewLoader(model.DataConfig{ConflictsSource: path}, nil, nil)
	conflicts, err := l.LoadConflicts(context.Background())
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.TypeDirectIntervention, conflicts[0].Type)
	assert.Equal(t, []string{path}, l.WatchPaths())
}

func TestLoader_URLFailureDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	l := NewLoader(model.DataConfig{ConflictsSource: server.URL + "/conflicts.json"}, testFetcher(), nil)

	_, err := l.LoadConflicts(context.Background())
	require.Error(t, err)

	conflicts := l.ConflictsOrEmpty(context.Background())
	assert.NotNil(t, conflicts)
	assert.Empty(t, conflicts)
}

func TestLoader_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"not":"an array"`)
	}))
	defer server.Close()

	l := NewLoader(model.DataConfig{PresidentsSource: server.URL}, testFetcher(), nil)
	_, err := l.LoadPresidents(context.Background())
	require.Error(t, err)
	assert.Empty(t, l.PresidentsOrEmpty(context.Background()))
}

const sampleGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"Iraq","ISO3166-1-Alpha-2":"IQ"},"geometry":null},
{"type":"Feature","properties":{"name":"Kosovo","ISO3166-1-Alpha-2":"-99"},"geometry":null},
{"type":"Feature","properties":{"name":"Afghanistan","ISO3166-1-Alpha-2":"AF"},"geometry":null},
{"type":"Feature","properties":{"name":"Nowhere"},"geometry":null}]}`

func TestParseBoundaries(t *testing.T) {
	b, err := ParseBoundaries([]byte(sampleGeoJSON), "ISO3166-1-Alpha-2", "name")
	require.NoError(t, err)

	assert.Equal(t, []BoundaryCountry{
		{Code: "AF", Name: "Afghanistan"},
		{Code: "IQ", Name: "Iraq"},
	}, b.Countries)
	assert.Equal(t, "Iraq", b.Name("IQ"))
	assert.Equal(t, "Vietnam", b.Name("VN"))

	_, err = ParseBoundaries([]byte("nope"), "ISO3166-1-Alpha-2", "name")
	assert.Error(t, err)
}

func TestBoundaryLoader_UsesCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, sampleGeoJSON)
	}))
	defer server.Close()

	cfg := model.DefaultConfig().Data
	cfg.BoundariesURL = server.URL
	l := NewBoundaryLoader(cfg, testFetcher(), cache.NewMemoryCache(time.Minute, time.Minute), nil)

	for i := 0; i < 2; i++ {
		b, err := l.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, b.Countries, 2)
	}
	assert.EqualValues(t, 1, hits.Load())
}

func TestPending(t *testing.T) {
	release := make(chan struct{})
	p := LoadInBackground(context.Background(), func(context.Context) (*Boundaries, error) {
		<-release
		return &Boundaries{Countries: []BoundaryCountry{{Code: "IQ"}}}, nil
	})
	assert.False(t, p.Ready())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	b, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Len(t, b.Countries, 1)
	assert.True(t, p.Ready())

	// later resolutions are ignored
	p.Resolve(nil, errors.New("late"))
	_, err = p.Wait(context.Background())
	assert.NoError(t, err)
}
