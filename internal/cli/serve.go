package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/assets"
	"github.com/ppiankov/conflictmap/internal/llm"
	"github.com/ppiankov/conflictmap/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conflict map and the dataset editor",
	Long: `Serve starts the HTTP server:
- the map viewer at / with its JSON API under /api
- the dataset editor at /editor with its JSON API under /api/editor
- the country boundaries GeoJSON at /geo/countries.geojson

Country boundaries are fetched in the background and cached; the page is
usable before they arrive.

Example:
  conflictmap serve
  conflictmap serve --addr :9000 --conflicts ./data/conflicts.json --watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Bool("watch", false, "reload the dataset when its file changes")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.watch", serveCmd.Flags().Lookup("watch"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	boundaries := assets.LoadInBackground(ctx, a.boundaryLoader().Load)

	ed, closeStore, err := a.openEditor(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	assistant, err := a.assistant()
	if err != nil {
		a.logger.Warn("assistant disabled", zap.Error(err))
		assistant = llm.NewAssistant(nil, a.logger)
	}

	srv, err := server.New(server.Options{
		Config:     a.cfg,
		Loader:     a.loader(),
		Boundaries: boundaries,
		Editor:     ed,
		Assistant:  assistant,
		Reader:     a.reader(),
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}
	if err := srv.Load(ctx); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  conflictmap\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Viewer:     http://localhost%s/\n", a.cfg.Server.Addr)
	fmt.Fprintf(os.Stderr, "  Editor:     http://localhost%s/editor\n", a.cfg.Server.Addr)
	fmt.Fprintf(os.Stderr, "  Conflicts:  %d\n", len(srv.Dataset().Conflicts))
	fmt.Fprintf(os.Stderr, "  Assistant:  %v\n", assistant.Enabled())
	fmt.Fprintf(os.Stderr, "  Watch:      %v\n", a.cfg.Server.Watch)
	fmt.Fprintf(os.Stderr, "\n")

	return srv.Run(ctx)
}
