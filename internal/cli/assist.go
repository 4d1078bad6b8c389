package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/editor"
	"github.com/ppiankov/conflictmap/internal/llm"
)

var (
	assistSave    bool
	assistNoFetch bool
)

// assistCmd represents the assist command
var assistCmd = &cobra.Command{
	Use:   "assist",
	Short: "Draft and polish conflict records with an LLM",
	Long: `Assist uses the configured LLM (llm.provider) to help author the dataset.

Providers: openai, anthropic, ollama, perplexity. API keys come from the
config file or OPENAI_API_KEY / ANTHROPIC_API_KEY / PERPLEXITY_API_KEY.

Example:
  conflictmap assist generate "1989 U.S. invasion of Panama"
  conflictmap assist enhance korean-war --save`,
}

var assistGenerateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Draft a conflict record from a description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAssistant(func(ctx context.Context, a *app, ed *editor.Editor, assistant *llm.Assistant) error {
			draft, err := assistant.GenerateConflict(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			draft.ID = ed.GenerateID(draft.Name, "")

			if assistSave {
				saved, err := ed.Create(ctx, draft)
				if err != nil {
					return describeSaveError(err)
				}
				fmt.Fprintf(os.Stderr, "✓ Added %s (%s)\n", saved.Name, saved.ID)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "    ")
			enc.SetEscapeHTML(false)
			return enc.Encode(draft)
		})
	},
}

var assistEnhanceCmd = &cobra.Command{
	Use:   "enhance <id>",
	Short: "Rewrite the description of a conflict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAssistant(func(ctx context.Context, a *app, ed *editor.Editor, assistant *llm.Assistant) error {
			c, ok := ed.Get(args[0])
			if !ok {
				return fmt.Errorf("conflict not found: %s", args[0])
			}

			var source string
			if c.WikiLink != "" && !assistNoFetch {
				page, err := a.reader().Page(ctx, c.WikiLink)
				if err != nil {
					a.logger.Warn("reference page unavailable", zap.String("url", c.WikiLink), zap.Error(err))
				} else {
					source = page.Lead
				}
			}

			desc, err := assistant.EnhanceDescription(ctx, c, source)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), desc)

			if assistSave {
				c.Description = desc
				if _, _, err := ed.Update(ctx, c.ID, c); err != nil {
					return describeSaveError(err)
				}
				fmt.Fprintf(os.Stderr, "✓ Updated %s\n", c.ID)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(assistCmd)
	assistCmd.AddCommand(assistGenerateCmd, assistEnhanceCmd)

	assistCmd.PersistentFlags().BoolVar(&assistSave, "save", false, "save the result to the editor working set")
	assistEnhanceCmd.Flags().BoolVar(&assistNoFetch, "no-fetch", false, "do not read the reference page for context")
}

func withAssistant(fn func(ctx context.Context, a *app, ed *editor.Editor, assistant *llm.Assistant) error) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	assistant, err := a.assistant()
	if err != nil {
		return err
	}
	if !assistant.Enabled() {
		return fmt.Errorf("%w: set llm.provider in the config file", llm.ErrNotConfigured)
	}

	ed, closeStore, err := a.openEditor(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, a, ed, assistant)
}
