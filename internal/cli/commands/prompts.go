package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ledgerlens/internal/cli/output"
	"github.com/leapstack-labs/ledgerlens/internal/prompt"
	"github.com/leapstack-labs/ledgerlens/internal/report"
)

// NewPromptsCommand creates the prompts command.
func NewPromptsCommand() *cobra.Command {
	var showText bool
	cmd := &cobra.Command{
		Use:   "prompts [key]",
		Short: "List the built-in summary instructions",
		Long: `List the instruction catalog used by summarize and menu.

With a key, print the full instruction text.`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return prompt.Keys(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			r := NewCommandContext(cmd).Renderer
			if len(args) == 1 {
				t, err := prompt.Resolve(args[0])
				if err != nil {
					return err
				}
				return renderPrompt(r, t)
			}
			return renderPromptList(r, prompt.Catalog(), showText)
		},
	}

	cmd.Flags().BoolVar(&showText, "text", false, "Include the instruction text")

	return cmd
}

func renderPrompt(r *output.Renderer, t prompt.Template) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(t)
	}
	r.Header(1, t.Title)
	r.Println(output.FormatKeyValue("Key", t.Key))
	r.Println(output.FormatKeyValue("Tag", t.Tag))
	r.Println("")
	r.Println(t.Text)
	return nil
}

func renderPromptList(r *output.Renderer, catalog []prompt.Template, showText bool) error {
	if r.EffectiveMode() == output.ModeJSON {
		if !showText {
			for i := range catalog {
				catalog[i].Text = ""
			}
		}
		return r.JSON(catalog)
	}

	header := []string{"Key", "Title", "Result File"}
	if showText {
		header = append(header, "Instruction")
	}
	rows := make([][]string, 0, len(catalog))
	for _, t := range catalog {
		row := []string{t.Key, t.Title, t.Tag + report.FileSuffix}
		if showText {
			row = append(row, firstLine(t.Text))
		}
		rows = append(rows, row)
	}
	r.Table(header, rows)
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
