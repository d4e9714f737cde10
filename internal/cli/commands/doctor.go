package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ledgerlens/internal/cli/config"
	"github.com/leapstack-labs/ledgerlens/internal/cli/output"
	"github.com/leapstack-labs/ledgerlens/internal/dataset"
	"github.com/leapstack-labs/ledgerlens/internal/prompt"
	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// Check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, data files and credentials",
		Long: `Verify that ledgerlens is ready to run:
- configuration file and .env discovery
- data directory and configured files
- provider type and credential
- default prompt and results directory

Nothing is sent to the provider.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run all checks
  ledgerlens doctor

  # Output as JSON
  ledgerlens doctor -o json`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Checks []HealthCheck `json:"checks"`
	Errors int           `json:"errors"`
	Warns  int           `json:"warnings"`
}

// HealthCheck represents a single check result.
type HealthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "pass", "warn", "error"
	Detail  string `json:"detail,omitempty"`
	Remedy  string `json:"remedy,omitempty"`
	Section string `json:"section"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	out := buildDoctorOutput(cc.Cfg, config.GetConfigFileUsed(), config.GetEnvFileUsed())

	var err error
	switch r.EffectiveMode() {
	case output.ModeJSON:
		err = r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	if err != nil {
		return err
	}
	if out.Errors > 0 {
		return fmt.Errorf("%d check(s) failed", out.Errors)
	}
	return nil
}

func buildDoctorOutput(cfg *config.Config, configFile, envFile string) *DoctorOutput {
	var checks []HealthCheck
	add := func(section, name, status, detail, remedy string) {
		checks = append(checks, HealthCheck{Section: section, Name: name, Status: status, Detail: detail, Remedy: remedy})
	}

	// configuration
	if configFile != "" {
		add("configuration", "Config file", statusPass, configFile, "")
	} else {
		add("configuration", "Config file", statusWarn, "none found, using defaults", "Create ledgerlens.yaml in the project root")
	}
	if envFile != "" {
		add("configuration", ".env file", statusPass, envFile, "")
	}
	if err := cfg.Validate(); err != nil {
		add("configuration", "Settings", statusError, strings.ReplaceAll(err.Error(), "\n", "; "), "Fix the listed keys")
	} else {
		add("configuration", "Settings", statusPass, "", "")
	}

	// data
	checks = append(checks, dataChecks(cfg)...)

	// provider
	if provider.IsRegistered(cfg.Provider.Type) {
		add("provider", "Provider type", statusPass, cfg.Provider.Type, "")
	} else {
		add("provider", "Provider type", statusError, fmt.Sprintf("%q is not available", cfg.Provider.Type),
			"Use one of: "+strings.Join(provider.List(), ", "))
	}
	if err := cfg.RequireCredential(); err != nil {
		add("provider", "Credential", statusError, "missing", strings.TrimPrefix(err.Error(), config.ErrConfigMissing.Error()+": "))
	} else {
		add("provider", "Credential", statusPass, "configured", "")
	}

	// prompts and results
	if _, err := prompt.Resolve(cfg.Prompt); err != nil {
		add("output", "Default prompt", statusError, cfg.Prompt, "Use one of: "+strings.Join(prompt.Keys(), ", "))
	} else {
		add("output", "Default prompt", statusPass, cfg.Prompt, "")
	}
	add("output", "Results directory", resultsDirStatus(cfg.ResultsDir), cfg.ResultsDir, "")

	out := &DoctorOutput{Checks: checks}
	for _, c := range checks {
		switch c.Status {
		case statusError:
			out.Errors++
		case statusWarn:
			out.Warns++
		}
	}
	return out
}

func dataChecks(cfg *config.Config) []HealthCheck {
	if err := cfg.ValidateDirectories(); err != nil {
		first, _, _ := strings.Cut(err.Error(), "\n")
		return []HealthCheck{{Section: "data", Name: "Data directory", Status: statusError, Detail: first,
			Remedy: "Create the directory or use --data-dir"}}
	}
	checks := []HealthCheck{{Section: "data", Name: "Data directory", Status: statusPass, Detail: cfg.DataDir}}

	if len(cfg.Files) == 0 {
		entries, _ := os.ReadDir(cfg.DataDir)
		supported := 0
		for _, e := range entries {
			if !e.IsDir() && dataset.Supported(e.Name()) {
				supported++
			}
		}
		status, remedy := statusPass, ""
		if supported == 0 {
			status, remedy = statusError, "Add .csv, .xlsx, .parquet, .json or .yaml files"
		}
		return append(checks, HealthCheck{Section: "data", Name: "Data files", Status: status,
			Detail: fmt.Sprintf("%d supported file(s)", supported), Remedy: remedy})
	}

	for _, f := range cfg.Files {
		path := filepath.Join(cfg.DataDir, f.File)
		name := f.Name
		if name == "" {
			name = dataset.LogicalName(f.File)
		}
		switch _, err := os.Stat(path); {
		case errors.Is(err, os.ErrNotExist):
			checks = append(checks, HealthCheck{Section: "data", Name: name, Status: statusWarn, Detail: f.File + " not found", Remedy: "The file will be skipped"})
		case !dataset.Supported(f.File):
			checks = append(checks, HealthCheck{Section: "data", Name: name, Status: statusWarn, Detail: f.File + " has an unsupported format", Remedy: "The file will be skipped"})
		case err != nil:
			checks = append(checks, HealthCheck{Section: "data", Name: name, Status: statusWarn, Detail: err.Error()})
		default:
			checks = append(checks, HealthCheck{Section: "data", Name: name, Status: statusPass, Detail: f.File})
		}
	}
	return checks
}

// resultsDirStatus passes when the directory exists or can be created.
func resultsDirStatus(dir string) string {
	if info, err := os.Stat(dir); err == nil {
		if info.IsDir() {
			return statusPass
		}
		return statusError
	}
	parent := filepath.Dir(dir)
	for {
		info, err := os.Stat(parent)
		if err == nil {
			if info.IsDir() {
				return statusPass
			}
			return statusError
		}
		next := filepath.Dir(parent)
		if next == parent {
			return statusWarn
		}
		parent = next
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("ledgerlens Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))

	section := ""
	for _, check := range out.Checks {
		if check.Section != section {
			section = check.Section
			r.Println("")
			r.Println(styles.Bold.Render("   " + output.Title(section)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.StatusFailed.String()
		}

		line := fmt.Sprintf("   %s %s", icon, check.Name)
		if check.Detail != "" {
			line += ": " + check.Detail
		}
		r.Println(line)
		if check.Remedy != "" && check.Status != statusPass {
			r.Println(styles.Muted.Render("       - " + check.Remedy))
		}
	}

	r.Println("")
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	switch {
	case out.Errors > 0:
		r.Printf("   %s\n", styles.Error.Render(fmt.Sprintf("%d error(s), %d warning(s)", out.Errors, out.Warns)))
	case out.Warns > 0:
		r.Printf("   %s\n", styles.Warning.Render(fmt.Sprintf("Ready with %d warning(s)", out.Warns)))
	default:
		r.Printf("   %s\n", styles.Success.Render("Ready"))
	}
	r.Println("")
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# ledgerlens Health Report")
	r.Println("")

	section := ""
	for _, check := range out.Checks {
		if check.Section != section {
			if section != "" {
				r.Println("")
			}
			section = check.Section
			r.Println("## " + output.Title(section))
			r.Println("")
		}

		r.Printf("- **[%s]** %s", strings.ToUpper(check.Status), check.Name)
		if check.Detail != "" {
			r.Printf(": %s", check.Detail)
		}
		r.Println("")
		if check.Remedy != "" && check.Status != statusPass {
			r.Printf("  - %s\n", check.Remedy)
		}
	}
	r.Println("")
	r.Println("## Result")
	r.Println("")
	r.Printf("**%d error(s), %d warning(s)**\n", out.Errors, out.Warns)
}
