package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/assets"
	"github.com/ppiankov/conflictmap/internal/cache"
	"github.com/ppiankov/conflictmap/internal/editor"
	"github.com/ppiankov/conflictmap/internal/llm"
	"github.com/ppiankov/conflictmap/internal/logging"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/reference"
	"github.com/ppiankov/conflictmap/internal/storage"
)

const referencePageTTL = 7 * 24 * time.Hour

// app holds the components shared by the subcommands
type app struct {
	cfg     model.Config
	logger  *zap.Logger
	fetcher *reference.Fetcher
	cache   cache.Cache
	robots  *reference.RobotsChecker
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(verbose)
	if err != nil {
		return nil, err
	}

	c, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Warn("cache disabled", zap.Error(err))
		c = nil
	}

	fetcher := reference.NewFetcher(cfg.HTTP)
	a := &app{
		cfg:     cfg,
		logger:  logger,
		fetcher: fetcher,
		cache:   c,
	}
	if cfg.HTTP.RespectRobots {
		a.robots = reference.NewRobotsChecker(fetcher)
	}
	return a, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) loader() *assets.Loader {
	return assets.NewLoader(a.cfg.Data, a.fetcher, a.logger)
}

func (a *app) boundaryLoader() *assets.BoundaryLoader {
	return assets.NewBoundaryLoader(a.cfg.Data, a.fetcher, a.cache, a.logger)
}

func (a *app) reader() *reference.Reader {
	return reference.NewReader(a.fetcher, a.robots, a.cache, referencePageTTL, a.logger)
}

// openEditor opens the editor's local storage and loads the working set.
// The returned func closes the storage.
func (a *app) openEditor(ctx context.Context) (*editor.Editor, func(), error) {
	path, err := cache.ExpandHome(a.cfg.Editor.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, nil, err
	}

	ed, err := editor.New(ctx, store, a.loader(), a.logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	a.logger.Debug("editor storage opened",
		zap.String("path", store.Path()),
		zap.String("source", string(ed.Source())))
	return ed, func() { _ = store.Close() }, nil
}

// assistant builds the authoring assistant. An unconfigured provider yields an
// assistant whose calls fail with llm.ErrNotConfigured.
func (a *app) assistant() (*llm.Assistant, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(a.cfg.LLM, a.cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("configure assistant: %w", err)
	}
	return llm.NewAssistant(provider, a.logger), nil
}
