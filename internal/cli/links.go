package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/validate"
	"github.com/ppiankov/conflictmap/internal/worker"
)

var (
	linksFromEditor bool
	linksJSON       bool
	linksStrict     bool
	linksTimeout    time.Duration
)

// linksCmd represents the links command
var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Audit the reference links of every conflict",
	Long: `Links checks each conflict's reference link (wikiLink):
- whether it still resolves, following redirects
- whether robots.txt allows fetching it
- the authority tier of its domain (authority.* in the config)

Requests are rate limited per host and retried with backoff on transient errors.

Example:
  conflictmap links
  conflictmap links --editor --strict
  conflictmap links --json > links.json`,
	Args: cobra.NoArgs,
	RunE: runLinks,
}

func init() {
	rootCmd.AddCommand(linksCmd)

	linksCmd.Flags().BoolVar(&linksFromEditor, "editor", false, "audit the editor working set instead of the dataset")
	linksCmd.Flags().BoolVar(&linksJSON, "json", false, "print every check as JSON")
	linksCmd.Flags().BoolVar(&linksStrict, "strict", false, "exit with an error when a link is dead")
	linksCmd.Flags().DurationVar(&linksTimeout, "timeout", 5*time.Minute, "overall audit timeout")
}

func runLinks(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), linksTimeout)
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var conflicts []model.Conflict
	if linksFromEditor {
		ed, closeStore, err := a.openEditor(ctx)
		if err != nil {
			return err
		}
		conflicts = ed.Conflicts()
		closeStore()
	} else {
		conflicts, err = a.loader().LoadConflicts(ctx)
		if err != nil {
			return err
		}
	}

	limiter := worker.NewLimiter(a.cfg.RateLimiting.RequestsPerSecond, a.cfg.RateLimiting.Burst)
	checker := validate.NewLinkChecker(a.fetcher, a.cfg.Concurrency.LinkWorkers, &a.cfg.Authority, a.robots, limiter)

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Checking links of %d conflicts...\n", len(conflicts))
	}
	checks := checker.Check(ctx, conflicts)

	if linksJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(checks); err != nil {
			return err
		}
	} else {
		printLinkReport(cmd.OutOrStdout(), checks)
	}

	if sum := validate.Summarize(checks); linksStrict && sum.Dead > 0 {
		return fmt.Errorf("%d dead links", sum.Dead)
	}
	return nil
}

func printLinkReport(out io.Writer, checks []model.LinkCheck) {
	for _, c := range checks {
		switch {
		case c.IsAccessible && c.RedirectURL != "":
			fmt.Fprintf(out, "→ %s: %s redirects to %s\n", c.ConflictID, c.URL, c.RedirectURL)
		case c.IsAccessible:
			if verbose {
				fmt.Fprintf(out, "✓ %s: %s\n", c.ConflictID, c.URL)
			}
		case c.Disallowed:
			fmt.Fprintf(out, "⊘ %s: %s (robots.txt)\n", c.ConflictID, c.URL)
		default:
			fmt.Fprintf(out, "✗ %s: %s (%s)\n", c.ConflictID, c.URL, linkProblem(c))
		}
	}

	sum := validate.Summarize(checks)
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "  Checked:     %d\n", sum.Checked)
	fmt.Fprintf(out, "  Accessible:  %d\n", sum.Accessible)
	fmt.Fprintf(out, "  Dead:        %d\n", sum.Dead)
	fmt.Fprintf(out, "  Disallowed:  %d\n", sum.Disallowed)

	tiers := make([]model.AuthorityTier, 0, len(sum.ByTier))
	for tier := range sum.ByTier {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })
	for _, tier := range tiers {
		fmt.Fprintf(out, "  %-11s  %d\n", tier.String()+":", sum.ByTier[tier])
	}
}

func linkProblem(c model.LinkCheck) string {
	if c.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d", c.StatusCode)
	}
	if c.Error != "" {
		return c.Error
	}
	return "unreachable"
}
