package reference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/cache"
)

// ErrDisallowed is returned when robots.txt forbids fetching a reference page
var ErrDisallowed = errors.New("disallowed by robots.txt")

const htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Reader fetches and summarizes reference pages (a conflict's wikiLink)
type Reader struct {
	fetcher *Fetcher
	robots  *RobotsChecker
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewReader creates a reader. robots may be nil to skip robots.txt checks; c may be nil.
func NewReader(f *Fetcher, robots *RobotsChecker, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{fetcher: f, robots: robots, cache: c, ttl: ttl, logger: logger}
}

// Page returns the title and lead paragraph of rawURL
func (r *Reader) Page(ctx context.Context, rawURL string) (*Page, error) {
	if r.robots != nil && !r.robots.IsAllowed(ctx, rawURL) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}

	body, hit, err := cache.GetOrFetch(r.cache, rawURL, r.ttl, func() ([]byte, error) {
		doc, err := r.fetcher.FetchWithRetry(ctx, rawURL, htmlAccept)
		if err != nil {
			return nil, err
		}
		return doc.Body, nil
	})
	if err != nil && body == nil {
		return nil, fmt.Errorf("fetch reference %s: %w", rawURL, err)
	}
	if err != nil {
		r.logger.Warn("reference cache write failed", zap.String("url", rawURL), zap.Error(err))
	}
	r.logger.Debug("reference page loaded", zap.String("url", rawURL), zap.Bool("cached", hit))

	return ParsePage(body)
}
