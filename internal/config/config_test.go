package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepilot/internal/storage"
	"pagepilot/internal/testutils"
)

// isolate keeps the test away from the user's files and PAGEPILOT_* variables.
func isolate(t *testing.T) LoadOptions {
	t.Helper()
	for _, key := range []string{"PAGEPILOT_CHAT_MODEL", "PAGEPILOT_TIMEOUT", "PAGEPILOT_STORE_DRIVER", "PAGEPILOT_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Chdir(t.TempDir())
	return LoadOptions{ConfigDirs: []string{t.TempDir()}}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(isolate(t))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.ContextLength)
	assert.Equal(t, 3, cfg.MaxReflections)
	assert.Equal(t, storage.DriverJSON, cfg.Store.Driver)
	assert.NotEmpty(t, cfg.Store.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	opts := isolate(t)
	files := testutils.NewFileHelpers()

	opts.ConfigDirs = []string{files.CreateTempDir(t, map[string]string{
		"config.yaml": "chat_model: from-file\ntool_model: tools-from-file\ntimeout: 30s\nstore:\n  driver: sqlite\n  path: /tmp/pagepilot.db\n",
	})}
	opts.EnvFiles = []string{files.CreateTempFile(t, ".env", "PAGEPILOT_TOOL_MODEL=tools-from-dotenv\nOPENAI_API_KEY=sk-dotenv\n")}
	t.Setenv("PAGEPILOT_CHAT_MODEL", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("PAGEPILOT_TOOL_MODEL") })

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("context-length", 0, "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Parse([]string{"--context-length=4"}))
	opts.Flags = flags

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.ChatModel, "environment beats the config file")
	assert.Equal(t, "tools-from-dotenv", cfg.ToolModel, ".env feeds the environment")
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.ContextLength, "flags beat everything")
	assert.Equal(t, storage.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "sk-dotenv", cfg.APIKey, "provider key variable is the fallback")
}

func TestLoad_ProjectFileOverridesUserFile(t *testing.T) {
	opts := isolate(t)
	opts.ConfigDirs = []string{testutils.NewFileHelpers().CreateTempDir(t, map[string]string{
		"config.yaml": "language: German\nstyle: dark\n",
	})}
	require.NoError(t, os.WriteFile("pagepilot.yaml", []byte("language: French\n"), 0644))

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "French", cfg.Language)
	assert.Equal(t, "dark", cfg.Style)
}

func TestLoad_ExplicitFile(t *testing.T) {
	opts := isolate(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Load(opts)
	assert.Error(t, err)

	opts.ConfigFile = testutils.NewFileHelpers().CreateTempFile(t, "custom.yaml", "endpoint: http://localhost:11434/v1\n")
	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.ProviderID())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Provider:       "openai",
			Timeout:        time.Minute,
			ContextLength:  10,
			MaxReflections: 3,
			Style:          "auto",
			Store:          StoreConfig{Driver: storage.DriverJSON, Path: "/tmp/x"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "endpoint replaces provider", mutate: func(c *Config) { c.Provider = ""; c.Endpoint = "https://api.groq.com/openai/v1" }},
		{name: "bad endpoint", mutate: func(c *Config) { c.Endpoint = "not a url" }, wantErr: "Endpoint"},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "skynet" }, wantErr: "Provider"},
		{name: "short timeout", mutate: func(c *Config) { c.Timeout = time.Millisecond }, wantErr: "Timeout"},
		{name: "too many reflections", mutate: func(c *Config) { c.MaxReflections = 50 }, wantErr: "MaxReflections"},
		{name: "bad store driver", mutate: func(c *Config) { c.Store.Driver = "redis" }, wantErr: "Driver"},
		{name: "bad style", mutate: func(c *Config) { c.Style = "neon" }, wantErr: "Style"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestModelConfig(t *testing.T) {
	cfg := &Config{Provider: "anthropic", APIKey: "k", ChatModel: "claude", Timeout: time.Second}
	mc := cfg.ModelConfig()
	assert.Equal(t, "anthropic", mc.Provider)
	assert.Equal(t, "claude", mc.Settings.ChatModel)
	assert.Equal(t, time.Second, mc.Settings.Timeout)
}
