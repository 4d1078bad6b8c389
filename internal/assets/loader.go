package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/cache"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/reference"
)

const jsonAccept = "application/json,*/*;q=0.5"

// Loader reads the datasets from the embedded copy, a file path or an http(s) URL
type Loader struct {
	conflictsSource  string
	presidentsSource string
	fetcher          *reference.Fetcher
	logger           *zap.Logger
}

// NewLoader creates a loader for the data section of the configuration.
// fetcher may be nil when no source is a URL.
func NewLoader(cfg model.DataConfig, fetcher *reference.Fetcher, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		conflictsSource:  cfg.ConflictsSource,
		presidentsSource: cfg.PresidentsSource,
		fetcher:          fetcher,
		logger:           logger,
	}
}

// LoadConflicts reads and decodes the conflict dataset
func (l *Loader) LoadConflicts(ctx context.Context) ([]model.Conflict, error) {
	data, err := l.read(ctx, l.conflictsSource, embeddedConflicts)
	if err != nil {
		return nil, fmt.Errorf("load conflicts: %w", err)
	}

	var conflicts []model.Conflict
	if err := json.Unmarshal(data, &conflicts); err != nil {
		return nil, fmt.Errorf("decode conflicts: %w", err)
	}
	if conflicts == nil {
		conflicts = []model.Conflict{}
	}

	l.logger.Debug("conflicts loaded",
		zap.String("source", describe(l.conflictsSource)),
		zap.Int("count", len(conflicts)))
	return conflicts, nil
}

// LoadPresidents reads and decodes the presidents dataset
func (l *Loader) LoadPresidents(ctx context.Context) ([]model.President, error) {
	data, err := l.read(ctx, l.presidentsSource, embeddedPresidents)
	if err != nil {
		return nil, fmt.Errorf("load presidents: %w", err)
	}

	var presidents []model.President
	if err := json.Unmarshal(data, &presidents); err != nil {
		return nil, fmt.Errorf("decode presidents: %w", err)
	}
	if presidents == nil {
		presidents = []model.President{}
	}

	l.logger.Debug("presidents loaded",
		zap.String("source", describe(l.presidentsSource)),
		zap.Int("count", len(presidents)))
	return presidents, nil
}

// ConflictsOrEmpty loads the conflicts, logging a failure and returning an empty set
func (l *Loader) ConflictsOrEmpty(ctx context.Context) []model.Conflict {
	conflicts, err := l.LoadConflicts(ctx)
	if err != nil {
		l.logger.Error("conflict dataset unavailable, continuing with an empty set", zap.Error(err))
		return []model.Conflict{}
	}
	return conflicts
}

// PresidentsOrEmpty loads the presidents, logging a failure and returning an empty set
func (l *Loader) PresidentsOrEmpty(ctx context.Context) []model.President {
	presidents, err := l.LoadPresidents(ctx)
	if err != nil {
		l.logger.Error("president dataset unavailable, continuing with an empty set", zap.Error(err))
		return []model.President{}
	}
	return presidents
}

// WatchPaths returns the local files backing the datasets
func (l *Loader) WatchPaths() []string {
	var paths []string
	for _, src := range []string{l.conflictsSource, l.presidentsSource} {
		if p, ok := LocalPath(src); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

func (l *Loader) read(ctx context.Context, source, embedded string) ([]byte, error) {
	switch {
	case source == "" || source == SourceEmbedded:
		return files.ReadFile(embedded)
	case isURL(source):
		if l.fetcher == nil {
			return nil, fmt.Errorf("no http fetcher for %s", source)
		}
		doc, err := l.fetcher.FetchWithRetry(ctx, source, jsonAccept)
		if err != nil {
			return nil, err
		}
		return doc.Body, nil
	default:
		path, err := cache.ExpandHome(source)
		if err != nil {
			return nil, err
		}
		return os.ReadFile(path)
	}
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func isLocalFile(source string) bool {
	return source != "" && source != SourceEmbedded && !isURL(source)
}

func describe(source string) string {
	if source == "" {
		return SourceEmbedded
	}
	return source
}

// LocalPath resolves a data source to a file path; ok is false for URLs and the embedded dataset
func LocalPath(source string) (string, bool) {
	if !isLocalFile(source) {
		return "", false
	}
	p, err := cache.ExpandHome(source)
	if err != nil {
		return "", false
	}
	return p, true
}
