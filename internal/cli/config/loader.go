package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/ledgerlens/internal/reduce"
	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	envFileUsed    string
	currentConfig  *Config
)

// flagKeys maps flag names whose config key differs from the
// kebab-to-snake rewrite.
var flagKeys = map[string]string{
	"data-dir":    "data_dir",
	"results-dir": "results_dir",
	"cache-dir":   "cache_dir",
	"provider":    "provider.type",
	"model":       "provider.model",
	"base-url":    "provider.base_url",
	"max-tokens":  "provider.max_tokens",
	"temperature": "provider.temperature",
	"top-p":       "provider.top_p",
	"timeout":     "provider.timeout",
	"max-retries": "provider.max_retries",
	"model-dir":   "provider.model_dir",
}

// defaults returns the lowest configuration layer.
func defaults() map[string]any {
	policy := reduce.DefaultPolicy()
	return map[string]any{
		"data_dir":                    DefaultDataDir,
		"results_dir":                 DefaultResultsDir,
		"cache_dir":                   "",
		"prompt":                      DefaultPrompt,
		"output_directive":            "",
		"verbose":                     false,
		"output":                      DefaultOutput,
		"log_format":                  DefaultLogFormat,
		"provider.type":               DefaultProvider,
		"provider.max_tokens":         4096,
		"provider.temperature":        0.3,
		"provider.top_p":              0.9,
		"provider.timeout":            "120s",
		"provider.max_retries":        2,
		"reduction.full_max_rows":     policy.FullMaxRows,
		"reduction.medium_max_rows":   policy.MediumMaxRows,
		"reduction.large_max_rows":    policy.LargeMaxRows,
		"reduction.medium_window":     policy.MediumWindow,
		"reduction.large_window":      policy.LargeWindow,
		"reduction.very_large_window": policy.VeryLargeWindow,
	}
}

// configExistsIn returns the config file inside dir, or "".
func configExistsIn(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a ledgerlens config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	envFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from defaults, the config file, the .env
// file, environment variables and flags.
// Precedence (highest to lowest): flags > env vars > .env > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""
	envFileUsed = ""

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file: explicit path or upward search from CWD
	projectRoot := cwd
	if cfgFile != "" {
		configFileUsed = cfgFile
	} else {
		configFileUsed = findConfigUpward(cwd)
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. .env next to the config (or in CWD); never overrides the environment
	if err := loadDotEnv(projectRoot, cwd); err != nil {
		return nil, err
	}

	// 4. Environment variables (LEDGERLENS_ prefix, "__" separates levels)
	// Transform: LEDGERLENS_PROVIDER__MODEL -> provider.model
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 6. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 7. Paths from flags are relative to CWD, everything else to the project root
	cfg.ProjectRoot = projectRoot
	cfg.DataDir = resolveConfigPath(flags, "data-dir", cfg.DataDir, cwd, projectRoot)
	cfg.ResultsDir = resolveConfigPath(flags, "results-dir", cfg.ResultsDir, cwd, projectRoot)
	cfg.CacheDir = resolveConfigPath(flags, "cache-dir", cfg.CacheDir, cwd, projectRoot)

	cfg.Provider.Type = provider.Normalize(cfg.Provider.Type)
	expandProviderEnvVars(&cfg.Provider)
	cfg.Provider.APIKey = resolveAPIKey(cfg.Provider)

	currentConfig = &cfg
	return &cfg, nil
}

func resolveConfigPath(flags *pflag.FlagSet, flag, value, cwd, projectRoot string) string {
	if flags != nil && flags.Changed(flag) {
		return resolvePathRelativeTo(value, cwd)
	}
	return resolvePathRelativeTo(value, projectRoot)
}

// loadDotEnv loads the first .env file found in dirs into the process
// environment. Variables already set win.
func loadDotEnv(dirs ...string) error {
	for _, dir := range dirs {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("error reading env file %s: %w", path, err)
		}
		envFileUsed = path
		return nil
	}
	return nil
}

// resolveAPIKey returns the configured key, falling back to the credential
// variable of the provider.
func resolveAPIKey(p ProviderConfig) string {
	if p.APIKey != "" {
		return p.APIKey
	}
	name := p.APIKeyEnv
	if name == "" {
		name = DefaultAPIKeyEnv(p.Type)
	}
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetEnvFileUsed returns the path to the .env file loaded, if any.
func GetEnvFileUsed() string {
	return envFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandProviderEnvVars expands environment variables in sensitive provider fields.
func expandProviderEnvVars(p *ProviderConfig) {
	p.APIKey = expandEnvVars(p.APIKey)
	p.BaseURL = expandEnvVars(p.BaseURL)
	if envVarPattern.MatchString(p.APIKey) {
		// unresolved reference; let the api_key_env fallback apply
		p.APIKey = ""
	}
}
