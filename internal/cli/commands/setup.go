package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ledgerlens/internal/cli/config"
	"github.com/leapstack-labs/ledgerlens/internal/cli/output"
	"github.com/leapstack-labs/ledgerlens/internal/dataset"
	"github.com/leapstack-labs/ledgerlens/internal/prompt"
	"github.com/leapstack-labs/ledgerlens/internal/reduce"
	"github.com/leapstack-labs/ledgerlens/internal/report"
	"github.com/leapstack-labs/ledgerlens/internal/summary"
	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// ErrNoData is returned when nothing could be loaded from the data directory.
var ErrNoData = errors.New("no data loaded")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the command context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		DataDir:      getEnvOrDefault("LEDGERLENS_DATA_DIR", config.DefaultDataDir),
		ResultsDir:   getEnvOrDefault("LEDGERLENS_RESULTS_DIR", config.DefaultResultsDir),
		Prompt:       getEnvOrDefault("LEDGERLENS_PROMPT", config.DefaultPrompt),
		Verbose:      os.Getenv("LEDGERLENS_VERBOSE") == "true",
		OutputFormat: os.Getenv("LEDGERLENS_OUTPUT"),
		Provider: config.ProviderConfig{
			Type: getEnvOrDefault("LEDGERLENS_PROVIDER__TYPE", config.DefaultProvider),
		},
		Reduction: reduce.DefaultPolicy(),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Dataset is the loaded and reduced input of a run.
type Dataset struct {
	Batch    *dataset.Batch
	Excerpts []reduce.Excerpt
	// Data is the assembled data section shared by every prompt of the run.
	Data string
}

// Stats measures the data section.
func (d *Dataset) Stats() prompt.Stats {
	return prompt.Measure(d.Data)
}

// loadDataset opens an in-memory store, loads the configured files, reduces
// them and assembles the data section. The returned cleanup closes the store.
func loadDataset(ctx context.Context, cc *CommandContext) (*Dataset, func(), error) {
	cfg := cc.Cfg
	if err := cfg.ValidateDirectories(); err != nil {
		return nil, nil, err
	}

	store, err := dataset.Open(ctx, "", cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = store.Close() }

	loader := dataset.NewLoader(store, cc.Logger)
	var batch *dataset.Batch
	if len(cfg.Files) > 0 {
		batch, err = loader.Load(ctx, cfg.DataDir, cfg.Files)
	} else {
		batch, err = loader.LoadDir(ctx, cfg.DataDir)
	}
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	reducer := reduce.New(store.DB(), cfg.Reduction, cc.Logger)
	excerpts := reducer.ReduceAll(ctx, batch.Items)
	data := prompt.DataBlock(excerpts)
	if len(batch.Items) == 0 || data == "" {
		cleanup()
		return nil, nil, fmt.Errorf("%w from %s", ErrNoData, cfg.DataDir)
	}

	return &Dataset{Batch: batch, Excerpts: excerpts, Data: data}, cleanup, nil
}

// Job is one summary to produce: a single instruction, or a hybrid chain
// when Refine is set.
type Job struct {
	Tag    string
	Base   prompt.Template
	Refine *prompt.Template
}

// Hybrid reports whether the job is a base+refine chain.
func (j Job) Hybrid() bool { return j.Refine != nil }

// SingleJob returns a job for one template.
func SingleJob(t prompt.Template) Job {
	return Job{Tag: t.Tag, Base: t}
}

// HybridJob returns a base+refine job.
func HybridJob(base, refine prompt.Template) Job {
	return Job{Tag: prompt.HybridTag(base, refine), Base: base, Refine: &refine}
}

// Outcome is the result of running a Job.
type Outcome struct {
	Job      Job
	Model    string
	Text     string
	Path     string
	Attempts int
	Cached   bool
	// Aborted is set when the base stage of a hybrid chain failed.
	Aborted bool
	Err     error
}

// OK reports whether a summary was produced.
func (o *Outcome) OK() bool { return o.Err == nil }

// Session runs jobs against one dataset with one provider.
type Session struct {
	data      *Dataset
	gen       *summary.Generator
	writer    *report.Writer
	model     string
	directive string
	save      bool
	logger    *slog.Logger
}

// newSession builds the provider, generator and report writer. It fails
// with config.ErrConfigMissing before any network access when the
// credential is absent.
func newSession(cc *CommandContext, data *Dataset, save bool) (*Session, func(), error) {
	cfg := cc.Cfg
	if err := cfg.RequireCredential(); err != nil {
		return nil, nil, err
	}

	p, err := provider.New(cfg.ProviderSettings(), cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := p.(io.Closer); ok {
			_ = c.Close()
		}
	}

	var options []summary.Option
	if cfg.CacheDir != "" {
		options = append(options, summary.WithCache(summary.NewFileCache(cfg.CacheDir)))
	}

	opts := cfg.GenerationOptions()
	opts.Model = provider.ResolveModel(p, opts.Model)

	return &Session{
		data:      data,
		gen:       summary.NewGenerator(p, opts, cc.Logger, options...),
		writer:    report.NewWriter(cfg.ResultsDir, cfg.Provider.ModelDir, cc.Logger),
		model:     opts.Model,
		directive: prompt.ResolveDirective(cfg.OutputDirective),
		save:      save,
		logger:    cc.Logger,
	}, cleanup, nil
}

// Model returns the model the session sends requests to.
func (s *Session) Model() string { return s.model }

// Run produces the summary for job and, when saving is enabled, writes the
// result file. Provider failures are reported in Outcome.Err; only a
// failure to write the result file is returned as error.
func (s *Session) Run(ctx context.Context, job Job) (*Outcome, error) {
	out := &Outcome{Job: job, Model: s.model}

	var entry report.Entry
	if job.Hybrid() {
		chain := s.gen.Hybrid(ctx, summary.HybridRequest{
			Base:      job.Base.Text,
			Refine:    job.Refine.Text,
			Data:      s.data.Data,
			Directive: s.directive,
		})
		out.Aborted = chain.Aborted
		out.Attempts = chain.Base.Attempts + chain.Refined.Attempts
		out.Cached = chain.Base.Cached && chain.Refined.Cached
		if !chain.OK() {
			out.Err = chain.Err()
			return out, nil
		}
		out.Text = chain.Text()
		entry = report.Hybrid(s.model, job.Tag, job.Base.Text, job.Refine.Text, out.Text)
	} else {
		res := s.gen.Generate(ctx, summary.Request{
			Instruction: job.Base.Text,
			Data:        s.data.Data,
			Directive:   s.directive,
		})
		out.Attempts = res.Attempts
		out.Cached = res.Cached
		if !res.OK {
			out.Err = res.Err()
			return out, nil
		}
		out.Text = res.Text
		entry = report.Single(s.model, job.Tag, job.Base.Text, out.Text)
	}

	if !s.save {
		return out, nil
	}
	path, err := s.writer.Write(entry)
	if err != nil {
		return out, err
	}
	out.Path = path
	return out, nil
}

// failureHint returns the remediation hint carried by err, if any.
func failureHint(err error) string {
	var f *summary.Failure
	if errors.As(err, &f) {
		return f.Hint()
	}
	return ""
}

// displayPath shortens p relative to the working directory when possible.
func displayPath(p string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return p
	}
	if rel, err := filepath.Rel(cwd, p); err == nil && !filepath.IsAbs(rel) && len(rel) < len(p) {
		return rel
	}
	return p
}
