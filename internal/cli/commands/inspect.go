package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ledgerlens/internal/cli/output"
	"github.com/leapstack-labs/ledgerlens/internal/reduce"
)

// InspectOptions holds options for the inspect command.
type InspectOptions struct {
	ShowData bool
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	opts := &InspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show how the data directory is reduced into the prompt",
		Long: `Load and reduce the configured files exactly as summarize does, then
report the strategy chosen for each table and the size of the data section.

No provider credential is needed; the model is never called.`,
		Example: `  # Per-file reduction report
  ledgerlens inspect

  # Include the full data section
  ledgerlens inspect --data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ShowData, "data", false, "Print the assembled data section")

	return cmd
}

// InspectOutput is the JSON output of the inspect command.
type InspectOutput struct {
	DataDir   string        `json:"data_dir"`
	Items     []InspectItem `json:"items"`
	Skipped   []SkippedFile `json:"skipped,omitempty"`
	Bytes     int           `json:"bytes"`
	KiB       float64       `json:"kib"`
	EstTokens int           `json:"estimated_tokens"`
	Data      string        `json:"data,omitempty"`
}

// InspectItem describes the reduction of one item.
type InspectItem struct {
	Name     string   `json:"name"`
	Strategy string   `json:"strategy"`
	Shape    string   `json:"shape"`
	Window   int      `json:"window,omitempty"`
	Bytes    int      `json:"bytes"`
	Errors   []string `json:"errors,omitempty"`
}

// SkippedFile is a file that could not be loaded.
type SkippedFile struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func buildInspectOutput(dataDir string, data *Dataset, withData bool) InspectOutput {
	stats := data.Stats()
	out := InspectOutput{
		DataDir:   dataDir,
		Bytes:     stats.Bytes,
		KiB:       stats.KiB,
		EstTokens: stats.EstimatedTokens,
	}
	for _, ex := range data.Excerpts {
		item := InspectItem{
			Name:     ex.Name,
			Strategy: string(ex.Strategy),
			Shape:    ex.Shape(),
			Window:   ex.Window,
			Bytes:    len(ex.Text),
		}
		for _, e := range ex.Errors {
			item.Errors = append(item.Errors, e.Error())
		}
		out.Items = append(out.Items, item)
	}
	for _, s := range data.Batch.Skipped {
		out.Skipped = append(out.Skipped, SkippedFile{Path: s.Path, Name: s.Name, Reason: s.Err.Error()})
	}
	if withData {
		out.Data = data.Data
	}
	return out
}

func runInspect(cmd *cobra.Command, opts *InspectOptions) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	data, cleanup, err := loadDataset(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer cleanup()

	out := buildInspectOutput(cc.Cfg.DataDir, data, opts.ShowData)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Data Inspection")
	r.Println(output.FormatKeyValue("Data directory", displayPath(out.DataDir)))
	r.Println(output.FormatKeyValue("Items", fmt.Sprintf("%d", len(out.Items))))
	r.Println(output.FormatKeyValue("Prompt data", data.Stats().String()))
	r.Println("")

	rows := make([][]string, 0, len(out.Items))
	for _, item := range out.Items {
		window := "-"
		if item.Strategy == string(reduce.StrategyHeadTailDescribe) {
			window = fmt.Sprintf("%d", item.Window)
		}
		status := "ok"
		if len(item.Errors) > 0 {
			status = "degraded"
		}
		rows = append(rows, []string{item.Name, item.Shape, item.Strategy, window, fmt.Sprintf("%d", item.Bytes), status})
	}
	r.Table([]string{"Name", "Shape", "Strategy", "Window", "Bytes", "Status"}, rows)

	if len(out.Skipped) > 0 {
		r.Println("")
		r.Header(2, "Skipped")
		for _, s := range out.Skipped {
			r.StatusLine(s.Name, "skipped", s.Reason)
		}
	}

	if opts.ShowData {
		r.Println("")
		r.Header(2, "Data Section")
		r.Println(strings.TrimRight(out.Data, "\n"))
	}
	return nil
}
