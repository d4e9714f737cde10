package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ledgerlens/internal/cli/output"
	"github.com/leapstack-labs/ledgerlens/internal/prompt"
	"github.com/leapstack-labs/ledgerlens/internal/summary"
)

// SummarizeOptions holds options for the summarize command.
type SummarizeOptions struct {
	Prompt string
	Custom string
	Hybrid bool
	Base   string
	Refine string
	DryRun bool
	NoSave bool
}

// NewSummarizeCommand creates the summarize command.
func NewSummarizeCommand() *cobra.Command {
	opts := &SummarizeOptions{}
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Generate an accounting summary with the configured model",
		Long: `Load the accounting tables from the data directory, reduce them into a
bounded prompt and ask the configured model for a summary.

The answer is saved to <results_dir>/<model>/<Tag>_resultado.txt.

Modes:
  --prompt <key>   use a catalog instruction (see 'ledgerlens prompts')
  --custom <text>  use an ad-hoc instruction
  --hybrid         run --base first, then refine its answer with --refine`,
		Example: `  # Concise sector analysis
  ledgerlens summarize --prompt prompt1

  # Base + refine chain
  ledgerlens summarize --hybrid --base prompt1 --refine prompt2

  # Show what would be sent without calling the model
  ledgerlens summarize --prompt prompt2 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSummarize(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Prompt, "prompt", "p", "", "Catalog prompt key (default from config)")
	cmd.Flags().StringVar(&opts.Custom, "custom", "", "Custom instruction text")
	cmd.Flags().BoolVar(&opts.Hybrid, "hybrid", false, "Run a base+refine chain")
	cmd.Flags().StringVar(&opts.Base, "base", "prompt1", "Base prompt of the hybrid chain")
	cmd.Flags().StringVar(&opts.Refine, "refine", "prompt2", "Refine prompt of the hybrid chain")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Assemble the prompt without calling the model")
	cmd.Flags().BoolVar(&opts.NoSave, "no-save", false, "Do not write the result file")

	cmd.MarkFlagsMutuallyExclusive("prompt", "custom", "hybrid")

	promptCompletion := func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return prompt.Keys(), cobra.ShellCompDirectiveNoFileComp
	}
	_ = cmd.RegisterFlagCompletionFunc("prompt", promptCompletion)
	_ = cmd.RegisterFlagCompletionFunc("base", promptCompletion)
	_ = cmd.RegisterFlagCompletionFunc("refine", promptCompletion)

	return cmd
}

// resolveJob turns the command options into a Job.
func resolveJob(opts *SummarizeOptions, defaultPrompt string) (Job, error) {
	switch {
	case opts.Hybrid:
		base, err := prompt.Resolve(opts.Base)
		if err != nil {
			return Job{}, err
		}
		refine, err := prompt.Resolve(opts.Refine)
		if err != nil {
			return Job{}, err
		}
		return HybridJob(base, refine), nil
	case strings.TrimSpace(opts.Custom) != "":
		return SingleJob(prompt.Custom(strings.TrimSpace(opts.Custom))), nil
	default:
		key := opts.Prompt
		if key == "" {
			key = defaultPrompt
		}
		t, err := prompt.Resolve(key)
		if err != nil {
			return Job{}, err
		}
		return SingleJob(t), nil
	}
}

// SummaryOutput is the JSON output of the summarize command.
type SummaryOutput struct {
	Tag       string `json:"tag"`
	Hybrid    bool   `json:"hybrid"`
	Model     string `json:"model"`
	Summary   string `json:"summary,omitempty"`
	Path      string `json:"path,omitempty"`
	Attempts  int    `json:"attempts"`
	Cached    bool   `json:"cached"`
	Bytes     int    `json:"bytes"`
	EstTokens int    `json:"estimated_tokens"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Aborted   bool   `json:"aborted,omitempty"`
}

func runSummarize(cmd *cobra.Command, opts *SummarizeOptions) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	job, err := resolveJob(opts, cc.Cfg.Prompt)
	if err != nil {
		return err
	}

	data, cleanup, err := loadDataset(ctx, cc)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, skipped := range data.Batch.Skipped {
		r.Warning(skipped.Error())
	}

	if opts.DryRun {
		return renderDryRun(r, cc, job, data)
	}

	session, closeSession, err := newSession(cc, data, !opts.NoSave)
	if err != nil {
		return err
	}
	defer closeSession()

	cc.Logger.Info("generating summary", "tag", job.Tag, "model", session.Model(), "hybrid", job.Hybrid())
	out, err := session.Run(ctx, job)
	if err != nil {
		return err
	}

	stats := data.Stats()
	if r.EffectiveMode() == output.ModeJSON {
		jsonOut := SummaryOutput{
			Tag:       job.Tag,
			Hybrid:    job.Hybrid(),
			Model:     out.Model,
			Summary:   out.Text,
			Path:      out.Path,
			Attempts:  out.Attempts,
			Cached:    out.Cached,
			Bytes:     stats.Bytes,
			EstTokens: stats.EstimatedTokens,
			Aborted:   out.Aborted,
		}
		if out.Err != nil {
			jsonOut.Error = out.Err.Error()
			jsonOut.ErrorKind = summary.Classify(out.Err).String()
			jsonOut.Hint = failureHint(out.Err)
		}
		if err := r.JSON(jsonOut); err != nil {
			return err
		}
		return out.Err
	}

	if !out.OK() {
		if out.Aborted {
			r.Error(summary.AbortMessage)
		}
		if hint := failureHint(out.Err); hint != "" {
			r.Muted("Hint: " + hint)
		}
		return fmt.Errorf("could not generate summary %s: %w", job.Tag, out.Err)
	}

	r.Header(1, "Resumo Gerado")
	r.Println(out.Text)
	r.Println("")
	if out.Path != "" {
		r.Success(fmt.Sprintf("Summary saved to %s", displayPath(out.Path)))
	}
	if out.Cached {
		r.Muted("(served from cache)")
	}
	return nil
}

// DryRunOutput is the JSON output of a dry run.
type DryRunOutput struct {
	Tag       string   `json:"tag"`
	Hybrid    bool     `json:"hybrid"`
	Files     []string `json:"files"`
	System    string   `json:"system"`
	User      string   `json:"user"`
	Bytes     int      `json:"bytes"`
	EstTokens int      `json:"estimated_tokens"`
}

func renderDryRun(r *output.Renderer, cc *CommandContext, job Job, data *Dataset) error {
	directive := prompt.ResolveDirective(cc.Cfg.OutputDirective)
	user := prompt.UserMessage(job.Base.Text, data.Data, "")
	if !job.Hybrid() {
		user = prompt.UserMessage(job.Base.Text, data.Data, directive)
	}
	stats := prompt.Measure(user)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(DryRunOutput{
			Tag:       job.Tag,
			Hybrid:    job.Hybrid(),
			Files:     data.Batch.Names(),
			System:    prompt.SystemPersona,
			User:      user,
			Bytes:     stats.Bytes,
			EstTokens: stats.EstimatedTokens,
		})
	}

	r.Header(1, "Dry Run: "+job.Tag)
	r.Println(output.FormatKeyValue("Files", strings.Join(data.Batch.Names(), ", ")))
	r.Println(output.FormatKeyValue("Prompt size", stats.String()))
	if job.Hybrid() {
		r.Println(output.FormatKeyValue("Refine", job.Refine.Key+" (sent after the base answer)"))
	}
	r.Println("")
	r.Header(2, "System")
	r.Println(prompt.SystemPersona)
	r.Println("")
	r.Header(2, "User")
	r.Println(user)
	return nil
}
