package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/conflictmap/internal/assets"
	"github.com/ppiankov/conflictmap/internal/schema"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Lint a conflicts dataset",
	Long: `Validate checks a conflicts.json file against the dataset schema, then for
duplicate ids, impossible dates, intervals that end before they start and
unknown country codes. The last two are warnings.

Without a file argument the configured dataset is linted, or the embedded
one when the dataset is not a local file.

Example:
  conflictmap validate ./data/conflicts.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		result *schema.Result
		target string
		err    error
	)

	switch {
	case len(args) == 1:
		target = args[0]
		result, err = schema.LintFile(target)
	default:
		cfg, cfgErr := loadConfig()
		if cfgErr != nil {
			return cfgErr
		}
		if path, ok := assets.LocalPath(cfg.Data.ConflictsSource); ok {
			target = path
			result, err = schema.LintFile(path)
		} else {
			target = assets.SourceEmbedded
			result, err = schema.Lint(assets.EmbeddedConflicts())
		}
	}
	if err != nil {
		return err
	}

	printLintResult(cmd.OutOrStdout(), target, result)
	if !result.Valid() {
		return fmt.Errorf("%s: %d errors", target, result.Errors())
	}
	return nil
}

func printLintResult(out io.Writer, target string, r *schema.Result) {
	for _, issue := range r.Issues {
		mark := "✗"
		if issue.Warning {
			mark = "!"
		}
		where := issue.ConflictID
		if issue.Field != "" {
			where += "." + issue.Field
		}
		if where == "" {
			where = "(dataset)"
		}
		fmt.Fprintf(out, "%s %s: %s\n", mark, where, issue.Message)
	}
	fmt.Fprintf(out, "%s: %d records, %d errors, %d warnings\n", target, r.Records, r.Errors(), r.Warnings())
}
