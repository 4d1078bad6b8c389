package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/cache"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/reference"
)

// unassignedCode marks features without an ISO code in the geo-countries dataset
const unassignedCode = "-99"

// BoundaryCountry is one country feature of the boundaries GeoJSON
type BoundaryCountry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Boundaries is the country layer: the raw GeoJSON served to the browser plus the
// codes and names found in its features
type Boundaries struct {
	Raw       []byte
	Countries []BoundaryCountry
}

// Name returns the GeoJSON name of a country, or the display table name
func (b *Boundaries) Name(code string) string {
	for _, c := range b.Countries {
		if c.Code == code && c.Name != "" {
			return c.Name
		}
	}
	return model.CountryName(code)
}

type featureCollection struct {
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// ParseBoundaries extracts the country codes of a GeoJSON feature collection.
// Features with no code or the "-99" placeholder are skipped.
func ParseBoundaries(raw []byte, codeProp, nameProp string) (*Boundaries, error) {
	var fc featureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	seen := make(map[string]bool)
	b := &Boundaries{Raw: raw}
	for _, f := range fc.Features {
		code, _ := f.Properties[codeProp].(string)
		if code == "" || code == unassignedCode || seen[code] {
			continue
		}
		seen[code] = true
		name, _ := f.Properties[nameProp].(string)
		b.Countries = append(b.Countries, BoundaryCountry{Code: code, Name: name})
	}

	sort.Slice(b.Countries, func(i, j int) bool {
		return b.Countries[i].Code < b.Countries[j].Code
	})
	return b, nil
}

// BoundaryLoader fetches the boundaries GeoJSON through the cache
type BoundaryLoader struct {
	cfg     model.DataConfig
	fetcher *reference.Fetcher
	cache   cache.Cache
	logger  *zap.Logger
}

// NewBoundaryLoader creates a boundary loader; c may be nil
func NewBoundaryLoader(cfg model.DataConfig, fetcher *reference.Fetcher, c cache.Cache, logger *zap.Logger) *BoundaryLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoundaryLoader{cfg: cfg, fetcher: fetcher, cache: c, logger: logger}
}

// Load fetches (or reads from cache) and parses the boundaries
func (l *BoundaryLoader) Load(ctx context.Context) (*Boundaries, error) {
	ttl := time.Duration(l.cfg.BoundariesTTLDays) * 24 * time.Hour
	raw, hit, err := cache.GetOrFetch(l.cache, l.cfg.BoundariesURL, ttl, func() ([]byte, error) {
		doc, err := l.fetcher.FetchWithRetry(ctx, l.cfg.BoundariesURL, "application/geo+json,application/json")
		if err != nil {
			return nil, err
		}
		return doc.Body, nil
	})
	if raw == nil {
		return nil, fmt.Errorf("load boundaries: %w", err)
	}
	if err != nil {
		l.logger.Warn("boundaries cache write failed", zap.Error(err))
	}

	b, err := ParseBoundaries(raw, l.cfg.BoundaryCodeProp, l.cfg.BoundaryNameProp)
	if err != nil {
		return nil, fmt.Errorf("load boundaries: %w", err)
	}

	l.logger.Info("boundaries loaded",
		zap.Int("countries", len(b.Countries)),
		zap.Bool("cached", hit))
	return b, nil
}

// Pending is a readiness gate for data loaded in the background
type Pending struct {
	done chan struct{}
	once sync.Once
	b    *Boundaries
	err  error
}

// NewPending creates an unresolved gate
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// LoadInBackground starts load and returns a gate resolved when it finishes
func LoadInBackground(ctx context.Context, load func(context.Context) (*Boundaries, error)) *Pending {
	p := NewPending()
	go func() {
		b, err := load(ctx)
		p.Resolve(b, err)
	}()
	return p
}

// Resolve publishes the result; only the first call has an effect
func (p *Pending) Resolve(b *Boundaries, err error) {
	p.once.Do(func() {
		p.b, p.err = b, err
		close(p.done)
	})
}

// Ready reports whether the result is available without blocking
func (p *Pending) Ready() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the boundaries are resolved or ctx is done
func (p *Pending) Wait(ctx context.Context) (*Boundaries, error) {
	select {
	case <-p.done:
		return p.b, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
