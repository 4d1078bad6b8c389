// Package server exposes the viewer and the editor over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/conflictmap/internal/assets"
	"github.com/ppiankov/conflictmap/internal/editor"
	"github.com/ppiankov/conflictmap/internal/llm"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/reference"
	"github.com/ppiankov/conflictmap/internal/render"
	"github.com/ppiankov/conflictmap/internal/viewer"
)

// Options wires the server's collaborators. Assistant and Reader are optional.
type Options struct {
	Config     model.Config
	Loader     *assets.Loader
	Boundaries *assets.Pending
	Editor     *editor.Editor
	Assistant  *llm.Assistant
	Reader     *reference.Reader
	Logger     *zap.Logger
}

// Server serves the map viewer, the editor and their JSON APIs
type Server struct {
	cfg        model.Config
	span       viewer.Span
	dataset    atomic.Pointer[viewer.Dataset]
	loader     *assets.Loader
	boundaries *assets.Pending
	editor     *editor.Editor
	assistant  *llm.Assistant
	reader     *reference.Reader
	renderer   *render.Renderer
	logger     *zap.Logger
	router     *http.ServeMux
	startTime  time.Time
}

// New creates a server with an empty dataset; call Load or SetDataset before serving
func New(opts Options) (*Server, error) {
	if opts.Editor == nil {
		return nil, errors.New("editor is required")
	}
	if opts.Boundaries == nil {
		return nil, errors.New("boundaries gate is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	renderer, err := render.New()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg: opts.Config,
		span: viewer.Span{
			MinYear: opts.Config.Timeline.MinYear,
			MaxYear: opts.Config.Timeline.MaxYear,
		},
		loader:     opts.Loader,
		boundaries: opts.Boundaries,
		editor:     opts.Editor,
		assistant:  opts.Assistant,
		reader:     opts.Reader,
		renderer:   renderer,
		logger:     logger,
		router:     http.NewServeMux(),
		startTime:  time.Now(),
	}
	s.dataset.Store(viewer.NewDataset(nil, nil))

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.Handle("GET /static/", http.StripPrefix("/static/", render.Static()))

	// viewer
	s.router.HandleFunc("GET /{$}", s.handleViewerPage)
	s.router.HandleFunc("GET /api/conflicts", s.handleConflicts)
	s.router.HandleFunc("GET /api/conflicts/{id}", s.handleConflict)
	s.router.HandleFunc("GET /api/conflicts/{id}/detail", s.handleConflictDetail)
	s.router.HandleFunc("GET /api/presidents", s.handlePresidents)
	s.router.HandleFunc("GET /api/types", s.handleTypes)
	s.router.HandleFunc("GET /api/view", s.handleView)
	s.router.HandleFunc("POST /api/view/reduce", s.handleReduce)
	s.router.HandleFunc("GET /api/countries/{code}", s.handleCountry)
	s.router.HandleFunc("GET /api/map/styles", s.handleMapStyles)
	s.router.HandleFunc("GET /geo/countries.geojson", s.handleBoundaries)

	// editor page
	s.router.HandleFunc("GET /editor", s.handleEditorPage)
	s.router.HandleFunc("POST /editor/save", s.handleEditorSave)
	s.router.HandleFunc("POST /editor/delete", s.handleEditorDelete)
	s.router.HandleFunc("POST /editor/sort", s.handleEditorSort)
	s.router.HandleFunc("POST /editor/reset", s.handleEditorReset)
	s.router.HandleFunc("POST /editor/import", s.handleEditorImport)
	s.router.HandleFunc("GET /editor/export", s.handleExport)
	s.router.HandleFunc("POST /editor/assist/generate", s.handleEditorAssistGenerate)
	s.router.HandleFunc("POST /editor/assist/enhance", s.handleEditorAssistEnhance)

	// editor API
	s.router.HandleFunc("GET /api/editor/conflicts", s.handleEditorList)
	s.router.HandleFunc("POST /api/editor/conflicts", s.handleEditorCreate)
	s.router.HandleFunc("GET /api/editor/conflicts/{id}", s.handleEditorGet)
	s.router.HandleFunc("PUT /api/editor/conflicts/{id}", s.handleEditorUpdate)
	s.router.HandleFunc("DELETE /api/editor/conflicts/{id}", s.handleEditorDeleteAPI)
	s.router.HandleFunc("GET /api/editor/status", s.handleEditorStatus)
	s.router.HandleFunc("POST /api/editor/sort", s.handleEditorSortAPI)
	s.router.HandleFunc("POST /api/editor/reset", s.handleEditorResetAPI)
	s.router.HandleFunc("POST /api/editor/import", s.handleEditorImportAPI)
	s.router.HandleFunc("GET /api/editor/export", s.handleExport)
	s.router.HandleFunc("POST /api/editor/assist/generate", s.handleAssistGenerate)
	s.router.HandleFunc("POST /api/editor/assist/enhance/{id}", s.handleAssistEnhance)
}

// Handler returns the router wrapped in the request middleware
func (s *Server) Handler() http.Handler {
	return s.recoverer(s.requestID(s.accessLog(s.router)))
}

// Dataset returns the current viewer data
func (s *Server) Dataset() *viewer.Dataset {
	return s.dataset.Load()
}

// SetDataset swaps in new viewer data. Requests in flight keep the old one.
func (s *Server) SetDataset(conflicts []model.Conflict, presidents []model.President) {
	s.dataset.Store(viewer.NewDataset(conflicts, presidents))
}

// Load reads conflicts and presidents concurrently. Failures degrade to empty
// lists so the viewer keeps working.
func (s *Server) Load(ctx context.Context) error {
	if s.loader == nil {
		return errors.New("no dataset loader configured")
	}

	var (
		conflicts  []model.Conflict
		presidents []model.President
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		conflicts = s.loader.ConflictsOrEmpty(gctx)
		return nil
	})
	g.Go(func() error {
		presidents = s.loader.PresidentsOrEmpty(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.SetDataset(conflicts, presidents)
	s.logger.Info("dataset loaded",
		zap.Int("conflicts", len(conflicts)),
		zap.Int("presidents", len(presidents)))
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
// With server.watch set, the dataset is reloaded when its source file changes.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if s.cfg.Server.Watch && s.loader != nil {
		paths := s.loader.WatchPaths()
		if len(paths) == 0 {
			s.logger.Warn("watch requested but the dataset is not a local file")
		} else {
			g.Go(func() error {
				return Watch(gctx, paths, watchDebounce, func() {
					if err := s.Load(gctx); err != nil {
						s.logger.Error("reload dataset", zap.Error(err))
					}
				}, s.logger)
			})
		}
	}

	return g.Wait()
}
