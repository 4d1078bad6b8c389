package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/render"
	"github.com/ppiankov/conflictmap/internal/viewer"
)

var (
	activeFrom      int
	activeTo        int
	activePresident string
	activeJSON      bool
)

// activeCmd represents the active command
var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "List the conflicts, presidents and countries active in a period",
	Long: `Active prints what the map shows for a year range or a presidential term:
- conflicts overlapping the period, by start date
- presidents in office during the period
- every country touched by an active conflict, with its conflict count

Example:
  conflictmap active --from 1950 --to 1953
  conflictmap active --president "George W. Bush"
  conflictmap active --president "Donald Trump@2025-01-20"
  conflictmap active --from 2003 --to 2011 --json`,
	Args: cobra.NoArgs,
	RunE: runActive,
}

func init() {
	rootCmd.AddCommand(activeCmd)

	activeCmd.Flags().IntVar(&activeFrom, "from", 0, "first year (default: timeline.min_year)")
	activeCmd.Flags().IntVar(&activeTo, "to", 0, "last year (default: timeline.max_year)")
	activeCmd.Flags().StringVarP(&activePresident, "president", "p", "", "use the term of this president (name, or name@start-date when several terms)")
	activeCmd.Flags().BoolVar(&activeJSON, "json", false, "print the snapshot as JSON")
}

func runActive(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var (
		conflicts  []model.Conflict
		presidents []model.President
	)
	loader := a.loader()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		conflicts, err = loader.LoadConflicts(gctx)
		return err
	})
	g.Go(func() (err error) {
		presidents, err = loader.LoadPresidents(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	span := viewer.Span{MinYear: a.cfg.Timeline.MinYear, MaxYear: a.cfg.Timeline.MaxYear}
	st, err := activeState(span, presidents)
	if err != nil {
		return err
	}

	snap := viewer.NewDataset(conflicts, presidents).Snapshot(st)
	if activeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	printSnapshot(cmd.OutOrStdout(), snap)
	return nil
}

func activeState(span viewer.Span, presidents []model.President) (viewer.State, error) {
	st := viewer.NewState(span)
	if activePresident != "" {
		if _, ok := model.FindTerm(presidents, activePresident); !ok {
			if terms := model.TermsOf(presidents, activePresident); len(terms) > 1 {
				ids := make([]string, len(terms))
				for i, p := range terms {
					ids[i] = strconv.Quote(p.TermID())
				}
				return st, fmt.Errorf("%q served more than one term, pick one of %s", activePresident, strings.Join(ids, ", "))
			}
			return st, fmt.Errorf("unknown president: %q", activePresident)
		}
		return viewer.Reduce(st, viewer.SelectPresident{Term: activePresident}, presidents), nil
	}

	from, to := activeFrom, activeTo
	if from == 0 {
		from = span.MinYear
	}
	if to == 0 {
		to = span.MaxYear
	}
	return viewer.Reduce(st, viewer.RangeChanged{StartYear: from, EndYear: to, Origin: viewer.OriginUser}, presidents), nil
}

func printSnapshot(out io.Writer, snap viewer.Snapshot) {
	sidebar := render.SidebarFor(snap)

	if snap.State.HasSelection() {
		fmt.Fprintf(out, "%s (%s)\n\n", snap.State.SelectedName(), sidebar.RangeLabel)
	} else {
		fmt.Fprintf(out, "%s\n\n", sidebar.RangeLabel)
	}

	fmt.Fprintf(out, "Presidents (%d)\n", len(snap.Presidents))
	for _, p := range sidebar.Presidents {
		fmt.Fprintf(out, "  %s  %s\n", p.Name, p.Dates)
	}

	fmt.Fprintf(out, "\nConflicts (%d)\n", len(snap.Conflicts))
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range snap.Conflicts {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", render.YearSpan(c.StartDate, c.EndDate), c.Name, c.Type.DisplayName())
	}
	_ = w.Flush()

	codes := make([]string, 0, len(snap.Countries))
	for code := range snap.Countries {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		a, b := snap.Countries[codes[i]], snap.Countries[codes[j]]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return codes[i] < codes[j]
	})

	fmt.Fprintf(out, "\nCountries (%d)\n", len(codes))
	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, code := range codes {
		stat := snap.Countries[code]
		fmt.Fprintf(w, "  %s\t%s\t%d\t%s\n", code, model.CountryName(code), stat.Count, stat.PrimaryType.DisplayName())
	}
	_ = w.Flush()
}
