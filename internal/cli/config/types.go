// Package config provides configuration management for the ledgerlens CLI.
//
// Configuration is layered with koanf: built-in defaults, ledgerlens.yaml,
// a .env file, LEDGERLENS_ environment variables and explicitly set flags,
// in increasing order of precedence.
package config

import (
	"time"

	"github.com/leapstack-labs/ledgerlens/internal/dataset"
	"github.com/leapstack-labs/ledgerlens/internal/reduce"
	"github.com/leapstack-labs/ledgerlens/internal/summary"
	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// Config holds all CLI configuration options.
type Config struct {
	DataDir         string                `koanf:"data_dir"`
	ResultsDir      string                `koanf:"results_dir"`
	CacheDir        string                `koanf:"cache_dir"`
	Files           []dataset.FileMapping `koanf:"files"`
	Prompt          string                `koanf:"prompt"`
	OutputDirective string                `koanf:"output_directive"`
	Verbose         bool                  `koanf:"verbose"`
	OutputFormat    string                `koanf:"output"`
	LogFormat       string                `koanf:"log_format"`
	Provider        ProviderConfig        `koanf:"provider"`
	Reduction       reduce.Policy         `koanf:"reduction"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// ProviderConfig selects and tunes the LLM provider.
type ProviderConfig struct {
	Type        string         `koanf:"type"`
	Model       string         `koanf:"model"`
	APIKey      string         `koanf:"api_key"`
	APIKeyEnv   string         `koanf:"api_key_env"`
	BaseURL     string         `koanf:"base_url"`
	MaxTokens   int            `koanf:"max_tokens"`
	Temperature float64        `koanf:"temperature"`
	TopP        float64        `koanf:"top_p"`
	Timeout     time.Duration  `koanf:"timeout"`
	MaxRetries  int            `koanf:"max_retries"`
	ModelDir    string         `koanf:"model_dir"`
	Options     map[string]any `koanf:"options"`
}

// Default configuration values.
const (
	DefaultDataDir    = "util/data"
	DefaultResultsDir = "resultados"
	DefaultPrompt     = "prompt1"
	DefaultProvider   = "openai"
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogFormat  = "text"
	EnvPrefix         = "LEDGERLENS_"
)

// ConfigFileNames are searched, in order, in the project root.
var ConfigFileNames = []string{"ledgerlens.yaml", "ledgerlens.yml"}

// defaultAPIKeyEnv names the credential variable of each provider type.
var defaultAPIKeyEnv = map[string]string{
	"openai":            "OPENAI_API_KEY",
	"openai-compatible": "OPENAI_API_KEY",
	"anthropic":         "ANTHROPIC_API_KEY",
	"gemini":            "GEMINI_API_KEY",
}

// DefaultAPIKeyEnv returns the credential variable for a provider type, or
// "" when the provider needs none. The type is matched like the registry
// matches it.
func DefaultAPIKeyEnv(providerType string) string {
	return defaultAPIKeyEnv[provider.Normalize(providerType)]
}

// GenerationOptions maps the provider settings onto summary options.
func (c *Config) GenerationOptions() summary.Options {
	opts := summary.DefaultOptions()
	p := c.Provider
	opts.Model = p.Model
	if p.MaxTokens > 0 {
		opts.MaxTokens = p.MaxTokens
	}
	if p.Temperature > 0 {
		opts.Temperature = p.Temperature
	}
	if p.TopP > 0 {
		opts.TopP = p.TopP
	}
	if p.Timeout > 0 {
		opts.Timeout = p.Timeout
	}
	opts.MaxRetries = p.MaxRetries
	return opts
}
