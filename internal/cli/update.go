package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/conflictmap/internal/assets"
	"github.com/ppiankov/conflictmap/internal/llm"
	"github.com/ppiankov/conflictmap/internal/updater"
)

var (
	updateCountry string
	updateDryRun  bool
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Discover recent U.S. actions and append them to the dataset",
	Long: `Update asks a web-search model (updater.discovery, Perplexity by default)
for U.S. military actions in each configured country since its last check,
then asks a second model (updater.verification) to drop duplicates and
non-credible reports. Accepted entries are appended to the dataset file after
a timestamped backup.

The dataset must be a local file: pass --conflicts or set data.conflicts_source.

Example:
  conflictmap update --conflicts ./data/conflicts.json --dry-run
  conflictmap update --conflicts ./data/conflicts.json --country YE`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().StringVar(&updateCountry, "country", "", "only check this ISO country code")
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "report what would be added without writing anything")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	path, ok := assets.LocalPath(a.cfg.Data.ConflictsSource)
	if !ok {
		return errors.New("update needs a local dataset file: pass --conflicts or set data.conflicts_source")
	}

	discovery, err := llm.NewProvider(llm.ConfigFromModel(a.cfg.Updater.Discovery, a.cfg.HTTP))
	if err != nil {
		return fmt.Errorf("discovery provider: %w", err)
	}
	verifier, err := llm.NewProvider(llm.ConfigFromModel(a.cfg.Updater.Verification, a.cfg.HTTP))
	if err != nil {
		return fmt.Errorf("verification provider: %w", err)
	}

	u, err := updater.New(discovery, verifier, a.cfg.Updater, a.cfg.Concurrency.Workers, a.logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Conflict Update\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Dataset:       %s\n", path)
	fmt.Fprintf(os.Stderr, "  Discovery:     %s/%s\n", a.cfg.Updater.Discovery.Provider, a.cfg.Updater.Discovery.Model)
	fmt.Fprintf(os.Stderr, "  Verification:  %s/%s\n", a.cfg.Updater.Verification.Provider, a.cfg.Updater.Verification.Model)
	if updateCountry != "" {
		fmt.Fprintf(os.Stderr, "  Country:       %s\n", strings.ToUpper(updateCountry))
	}
	if updateDryRun {
		fmt.Fprintf(os.Stderr, "  Mode:          dry run\n")
	}
	fmt.Fprintf(os.Stderr, "\n")

	report, err := u.Run(ctx, updater.Options{
		DatasetPath: path,
		Country:     updateCountry,
		DryRun:      updateDryRun,
	})
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	updater.PrintReport(cmd.OutOrStdout(), report, updateDryRun)
	for code, ferr := range report.Failed {
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", code, ferr)
	}
	return nil
}
