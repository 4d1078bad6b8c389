package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ppiankov/conflictmap/internal/editor"
	"github.com/ppiankov/conflictmap/internal/model"
)

var errAborted = errors.New("aborted")

var (
	listSearch  string
	listCountry string
	listType    string
	listSort    string
	listDesc    bool
	exportOut   string
	assumeYes   bool
)

// editorCmd represents the editor command
var editorCmd = &cobra.Command{
	Use:   "editor",
	Short: "Edit the local conflict working set",
	Long: `Editor manages the same working set as the /editor page.

Edits are kept in local storage (editor.storage_path) until exported.
Until the first edit the working set is a copy of the configured dataset.`,
}

var editorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conflicts, optionally filtered and sorted",
	Args:  cobra.NoArgs,
	RunE: withEditor(func(ctx context.Context, cmd *cobra.Command, ed *editor.Editor, args []string) error {
		f := editor.Filter{
			Search:  listSearch,
			Country: strings.ToUpper(listCountry),
			Type:    model.ConflictType(listType),
		}
		if listSort != "" {
			col, err := editor.ParseColumn(listSort)
			if err != nil {
				return err
			}
			dir := editor.Ascending
			if listDesc {
				dir = editor.Descending
			}
			ed.SetSort(editor.SortState{Column: col, Direction: dir})
		}

		printConflictTable(cmd.OutOrStdout(), ed.View(f))

		st, err := ed.Status(ctx, f)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	}),
}

var editorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a conflict interactively",
	Args:  cobra.NoArgs,
	RunE: withEditor(func(ctx context.Context, cmd *cobra.Command, ed *editor.Editor, args []string) error {
		c, err := promptConflict(model.Conflict{Type: model.TypeDirectWar})
		if err != nil {
			return err
		}
		saved, err := ed.Create(ctx, c)
		if err != nil {
			return describeSaveError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s (%s)\n", saved.Name, saved.ID)
		return nil
	}),
}

var editorEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a conflict interactively",
	Args:  cobra.ExactArgs(1),
	RunE: withEditor(func(ctx context.Context, cmd *cobra.Command, ed *editor.Editor, args []string) error {
		existing, ok := ed.Get(args[0])
		if !ok {
			return fmt.Errorf("conflict not found: %s", args[0])
		}
		c, err := promptConflict(existing)
		if err != nil {
			return err
		}
		saved, _, err := ed.Update(ctx, existing.ID, c)
		if err != nil {
			return describeSaveError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated %s (%s)\n", saved.Name, saved.ID)
		return nil
	}),
}

var editorDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conflict",
	Args:  cobra.ExactArgs(1),
	RunE: withEditor(func(ctx context.Context, cmd *cobra.Command, ed *editor.Editor, args []string) error {
		c, ok := ed.Get(args[0])
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Nothing to delete: %s\n", args[0])
			return nil
		}
		if err := confirm(fmt.Sprintf("Delete %q", c.Name)); err != nil {
			return err
		}
		if _, err := ed.Delete(ctx, c.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", c.ID)
		return nil
	}),
}

var editorExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the working set as conflicts.json",
	Args:  cobra.NoArgs,
	RunE: withEditor(func(ctx context.Context, cmd *cobra.Command, ed *editor.Editor, args []string) (err error) {
		if exportOut == "" || exportOut == "-" {
			return ed.Export(ctx, cmd.OutOrStdout())
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close export file: %w", closeErr)
			}
		}()
		if err := ed.Export(ctx, f); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Exported %d conflicts to %s\n", len(ed.Conflicts()), exportOut)
		return nil
	}),
}

var editorImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the working set with a conflicts.json file",
	Args:  cobra.ExactArgs(1),
	RunE: withEditor(func(ctx context.Context, cmd *cobra.Command, ed *editor.Editor, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer func() { _ = f.Close() }()

		n, err := ed.Import(ctx, f)
		if err != nil {
			return fmt.Errorf("import %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d conflicts\n", n)
		return nil
	}),
}

var editorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard local edits and reload the original dataset",
	Args:  cobra.NoArgs,
	RunE: withEditor(func(ctx context.Context, cmd *cobra.Command, ed *editor.Editor, args []string) error {
		if err := confirm("Discard all local changes"); err != nil {
			return err
		}
		if err := ed.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Reset to %d conflicts\n", len(ed.Conflicts()))
		return nil
	}),
}

var editorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the working set size and whether it has unexported edits",
	Args:  cobra.NoArgs,
	RunE: withEditor(func(ctx context.Context, cmd *cobra.Command, ed *editor.Editor, args []string) error {
		st, err := ed.Status(ctx, editor.Filter{})
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), st)
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded from: %s\n", ed.Source())
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(editorCmd)
	editorCmd.AddCommand(editorListCmd, editorAddCmd, editorEditCmd, editorDeleteCmd,
		editorExportCmd, editorImportCmd, editorResetCmd, editorStatusCmd)

	editorListCmd.Flags().StringVarP(&listSearch, "search", "q", "", "match name, description or id")
	editorListCmd.Flags().StringVar(&listCountry, "country", "", "ISO country code")
	editorListCmd.Flags().StringVar(&listType, "type", "", "conflict type (type1..type4)")
	editorListCmd.Flags().StringVar(&listSort, "sort", "", "sort column: name, type, startDate, endDate")
	editorListCmd.Flags().BoolVar(&listDesc, "desc", false, "sort descending")

	editorExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")

	editorDeleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	editorResetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

type editorFunc func(ctx context.Context, cmd *cobra.Command, ed *editor.Editor, args []string) error

// withEditor opens the working set around fn
func withEditor(fn editorFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ed, closeStore, err := a.openEditor(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		return fn(ctx, cmd, ed, args)
	}
}

func printConflictTable(out io.Writer, conflicts []model.Conflict) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tCOUNTRIES\tSTART\tEND")
	for _, c := range conflicts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, c.Type.DisplayName(), strings.Join(c.Countries, ","), c.StartDate, c.EndDate)
	}
	_ = w.Flush()
}

func printStatus(out io.Writer, st editor.Status) {
	fmt.Fprintln(out, st.Summary())
	if st.Modified {
		fmt.Fprintln(out, "Unsaved changes: export to keep them")
	}
}

func describeSaveError(err error) error {
	var verr *editor.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	var sb strings.Builder
	sb.WriteString("invalid conflict:")
	for _, fe := range verr.Errors {
		fmt.Fprintf(&sb, "\n  %s: %s", fe.Field, fe.Message)
	}
	return errors.New(sb.String())
}

func confirm(label string) error {
	if assumeYes {
		return nil
	}
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrAbort || err == promptui.ErrInterrupt {
			return errAborted
		}
		return err
	}
	return nil
}

// promptConflict walks through every field, starting from c
func promptConflict(c model.Conflict) (model.Conflict, error) {
	var err error
	ask := func(label, def string, validate promptui.ValidateFunc) string {
		if err != nil {
			return def
		}
		prompt := promptui.Prompt{Label: label, Default: def, AllowEdit: true, Validate: validate}
		var v string
		v, err = prompt.Run()
		return strings.TrimSpace(v)
	}

	c.Name = ask("Name", c.Name, required)
	if err == nil {
		c.Type, err = promptType(c.Type)
	}
	c.Countries = editor.ParseCountries(ask("Countries (ISO codes)", strings.Join(c.Countries, ", "), validCountries))
	c.StartDate = model.Date(ask("Start date (YYYY-MM-DD)", string(c.StartDate), validDate))
	c.EndDate = model.Date(ask("End date (YYYY-MM-DD)", string(c.EndDate), validDate))
	c.Description = ask("Description", c.Description, nil)
	c.Casualties.US, _ = editor.ParseCount(ask("U.S. deaths", strconv.FormatInt(c.Casualties.US, 10), validCount))
	c.Casualties.Total, _ = editor.ParseCount(ask("Total deaths", strconv.FormatInt(c.Casualties.Total, 10), validCount))
	c.Outcome = ask("Outcome", c.Outcome, nil)
	c.WikiLink = ask("Reference link", c.WikiLink, nil)

	if err != nil {
		if err == promptui.ErrInterrupt || err == promptui.ErrEOF {
			return c, errAborted
		}
		return c, err
	}
	return c, nil
}

func promptType(current model.ConflictType) (model.ConflictType, error) {
	items := make([]string, len(model.ConflictTypes))
	cursor := 0
	for i, def := range model.ConflictTypes {
		items[i] = def.Name
		if def.ID == current {
			cursor = i
		}
	}

	prompt := promptui.Select{
		Label:     "Type",
		Items:     items,
		Size:      len(items),
		CursorPos: cursor,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return current, err
	}
	return model.ConflictTypes[idx].ID, nil
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func validCountries(s string) error {
	codes := editor.ParseCountries(s)
	if len(codes) == 0 {
		return errors.New("at least one country code")
	}
	for _, code := range codes {
		if len(code) != 2 {
			return fmt.Errorf("%s is not a two-letter code", code)
		}
	}
	return nil
}

func validDate(s string) error {
	if !model.Date(s).Valid() {
		return errors.New("use YYYY-MM-DD")
	}
	return nil
}

func validCount(s string) error {
	if _, ok := editor.ParseCount(s); !ok {
		return errors.New("whole number")
	}
	return nil
}
