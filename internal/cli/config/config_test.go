package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ledgerlens/internal/dataset"
	"github.com/leapstack-labs/ledgerlens/internal/reduce"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "ledgerlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("data-dir", "", "")
	fs.String("model", "", "")
	fs.String("provider", "", "")
	fs.Float64("temperature", 0, "")
	fs.BoolP("verbose", "v", false, "")
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "", GetConfigFileUsed())
	assert.Equal(t, filepath.Join(dir, DefaultDataDir), cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, DefaultResultsDir), cfg.ResultsDir)
	assert.Equal(t, "", cfg.CacheDir)
	assert.Equal(t, DefaultPrompt, cfg.Prompt)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, "openai", cfg.Provider.Type)
	assert.Equal(t, 4096, cfg.Provider.MaxTokens)
	assert.InDelta(t, 0.3, cfg.Provider.Temperature, 1e-9)
	assert.InDelta(t, 0.9, cfg.Provider.TopP, 1e-9)
	assert.Equal(t, 120*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 2, cfg.Provider.MaxRetries)
	assert.Equal(t, reduce.DefaultPolicy(), cfg.Reduction)
	assert.Same(t, cfg, GetCurrentConfig())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileSearchedUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
data_dir: dados
prompt: prompt2
files:
  - file: contas-a-pagar.csv
    name: contas_a_pagar
  - file: vendas.csv
    name: vendas
provider:
  type: anthropic
  model: claude-haiku-4-5-20251001
  timeout: 30s
  options:
    headers:
      X-Team: finance
reduction:
  full_max_rows: 50
`)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "ledgerlens.yaml"), GetConfigFileUsed())
	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, "dados"), cfg.DataDir)
	assert.Equal(t, "prompt2", cfg.Prompt)
	assert.Equal(t, []dataset.FileMapping{
		{File: "contas-a-pagar.csv", Name: "contas_a_pagar"},
		{File: "vendas.csv", Name: "vendas"},
	}, cfg.Files)
	assert.Equal(t, "anthropic", cfg.Provider.Type)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, int64(50), cfg.Reduction.FullMaxRows)
	assert.Equal(t, int64(200), cfg.Reduction.MediumMaxRows)
	require.Contains(t, cfg.Provider.Options, "headers")
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
data_dir: from-file
provider:
  model: file-model
  temperature: 0.5
`)
	t.Chdir(dir)
	t.Setenv("LEDGERLENS_PROVIDER__MODEL", "env-model")
	t.Setenv("LEDGERLENS_DATA_DIR", "from-env")
	ResetConfig()

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--data-dir", "from-flag", "--temperature", "0.1"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	// flags > env > file
	assert.Equal(t, filepath.Join(dir, "from-flag"), cfg.DataDir)
	assert.Equal(t, "env-model", cfg.Provider.Model)
	assert.InDelta(t, 0.1, cfg.Provider.Temperature, 1e-9)
}

func TestLoadConfig_UnsetFlagsDoNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "provider:\n  model: file-model\n")
	t.Chdir(dir)
	ResetConfig()

	flags := newFlags()
	require.NoError(t, flags.Parse(nil))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "file-model", cfg.Provider.Model)
}

func TestLoadConfig_DotEnvCredential(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "provider:\n  type: openai\n  api_key_env: LEDGERLENS_TEST_DOTENV_KEY\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEDGERLENS_TEST_DOTENV_KEY=sk-from-dotenv\n"), 0o600))
	t.Chdir(dir)
	ResetConfig()
	t.Cleanup(func() { _ = os.Unsetenv("LEDGERLENS_TEST_DOTENV_KEY") })

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-dotenv", cfg.Provider.APIKey)
	assert.Equal(t, filepath.Join(dir, ".env"), GetEnvFileUsed())
	assert.NoError(t, cfg.RequireCredential())
}

func TestLoadConfig_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "provider:\n  api_key_env: LEDGERLENS_TEST_KEY\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEDGERLENS_TEST_KEY=from-file\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("LEDGERLENS_TEST_KEY", "from-env")
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Provider.APIKey)
}

func TestLoadConfig_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "provider:\n  api_key: ${LEDGERLENS_TEST_SECRET}\n  base_url: https://${LEDGERLENS_TEST_HOST}/v1\n")
	t.Chdir(dir)
	t.Setenv("LEDGERLENS_TEST_SECRET", "sk-expanded")
	t.Setenv("LEDGERLENS_TEST_HOST", "gateway.local")
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-expanded", cfg.Provider.APIKey)
	assert.Equal(t, "https://gateway.local/v1", cfg.Provider.BaseURL)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "provider: [unclosed\n")
	t.Chdir(dir)
	ResetConfig()

	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DataDir:    "data",
			ResultsDir: "out",
			Provider:   ProviderConfig{Type: "openai", Temperature: 0.3, TopP: 0.9},
			Reduction:  reduce.DefaultPolicy(),
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing data dir", func(c *Config) { c.DataDir = "" }, "data_dir is required"},
		{"bad output", func(c *Config) { c.OutputFormat = "xml" }, "output must be one of"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"negative retries", func(c *Config) { c.Provider.MaxRetries = -1 }, "max_retries"},
		{"top_p out of range", func(c *Config) { c.Provider.TopP = 1.5 }, "top_p"},
		{"file without name", func(c *Config) { c.Files = []dataset.FileMapping{{Name: "x"}} }, "files[0].file"},
		{"bad policy", func(c *Config) { c.Reduction.MediumWindow = 0 }, "reduction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_RequireCredential(t *testing.T) {
	cfg := Config{Provider: ProviderConfig{Type: "openai", APIKeyEnv: "LEDGERLENS_TEST_UNSET_KEY"}}
	err := cfg.RequireCredential()
	require.ErrorIs(t, err, ErrConfigMissing)
	assert.Contains(t, err.Error(), "LEDGERLENS_TEST_UNSET_KEY")

	cfg.Provider.APIKey = "sk-test"
	assert.NoError(t, cfg.RequireCredential())

	echo := Config{Provider: ProviderConfig{Type: "echo"}}
	assert.NoError(t, echo.RequireCredential())
}

func TestDefaultAPIKeyEnv_MatchesRegistryNames(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", DefaultAPIKeyEnv("openai_compatible"))
	assert.Equal(t, "OPENAI_API_KEY", DefaultAPIKeyEnv(" OpenAI-Compatible "))
	assert.Equal(t, "ANTHROPIC_API_KEY", DefaultAPIKeyEnv("Anthropic"))
	assert.Empty(t, DefaultAPIKeyEnv("echo"))
}

func TestLoadConfig_NormalizesProviderType(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "provider:\n  type: OpenAI_Compatible\n")
	t.Chdir(dir)
	t.Setenv("OPENAI_API_KEY", "")
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "openai-compatible", cfg.Provider.Type)

	err = cfg.RequireCredential()
	require.ErrorIs(t, err, ErrConfigMissing)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestConfig_ValidateDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir}
	assert.NoError(t, cfg.ValidateDirectories())

	cfg.DataDir = filepath.Join(dir, "missing")
	err := cfg.ValidateDirectories()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--data-dir")
}

func TestConfig_GenerationOptions(t *testing.T) {
	cfg := Config{Provider: ProviderConfig{Model: "m", MaxTokens: 100, Temperature: 0.5, TopP: 0.8, MaxRetries: 1}}
	opts := cfg.GenerationOptions()
	assert.Equal(t, "m", opts.Model)
	assert.Equal(t, 100, opts.MaxTokens)
	assert.InDelta(t, 0.5, opts.Temperature, 1e-9)
	assert.Equal(t, 120*time.Second, opts.Timeout)
	assert.Equal(t, 1, opts.MaxRetries)
}

func TestGetLogger_Fallback(t *testing.T) {
	logger := GetLogger(context.Background())
	require.NotNil(t, logger)
	logger.Info("discarded")
}
