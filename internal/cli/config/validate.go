package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/leapstack-labs/ledgerlens/internal/cli/output"
	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// ErrConfigMissing is returned when a provider credential is required but
// not configured.
var ErrConfigMissing = errors.New("provider credential not configured")

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	}
	if c.ResultsDir == "" {
		errs = append(errs, fmt.Errorf("results_dir is required"))
	}
	if !output.Valid(c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output must be one of auto, text, markdown, json (got %q)", c.OutputFormat))
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json (got %q)", c.LogFormat))
	}
	if c.Provider.Type == "" {
		errs = append(errs, fmt.Errorf("provider.type is required"))
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("provider.max_retries must not be negative"))
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, fmt.Errorf("provider.temperature must be within [0, 2]"))
	}
	if c.Provider.TopP < 0 || c.Provider.TopP > 1 {
		errs = append(errs, fmt.Errorf("provider.top_p must be within [0, 1]"))
	}
	for i, f := range c.Files {
		if f.File == "" {
			errs = append(errs, fmt.Errorf("files[%d].file is required", i))
		}
	}
	if err := c.Reduction.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	info, err := os.Stat(c.DataDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("data directory does not exist: %s\nHint: Create the directory or use --data-dir to specify a different path", c.DataDir)
	}
	if err != nil {
		return fmt.Errorf("failed to access data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data_dir is not a directory: %s", c.DataDir)
	}
	return nil
}

// RequireCredential returns ErrConfigMissing when the provider needs an API
// key and none was configured.
func (c *Config) RequireCredential() error {
	envName := c.Provider.APIKeyEnv
	if envName == "" {
		envName = DefaultAPIKeyEnv(c.Provider.Type)
	}
	if envName == "" || c.Provider.APIKey != "" {
		return nil
	}
	return fmt.Errorf("%w: set %s (in the environment or a .env file) or provider.api_key in ledgerlens.yaml", ErrConfigMissing, envName)
}

// ProviderSettings converts the provider section to a provider.Config.
func (c *Config) ProviderSettings() provider.Config {
	return provider.Config{
		Type:    c.Provider.Type,
		APIKey:  c.Provider.APIKey,
		BaseURL: c.Provider.BaseURL,
		Model:   c.Provider.Model,
		Options: c.Provider.Options,
	}
}
