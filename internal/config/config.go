// Package config loads PagePilot settings from defaults, YAML files, .env files, PAGEPILOT_*
// environment variables and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pagepilot/internal/model"
	"pagepilot/internal/storage"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "PAGEPILOT"

// StoreConfig selects where conversations are persisted.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// Config holds every PagePilot setting.
type Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	ChatModel       string        `mapstructure:"chat_model"`
	ToolModel       string        `mapstructure:"tool_model"`
	MultimodalModel string        `mapstructure:"multimodal_model"`
	ReasoningModel  string        `mapstructure:"reasoning_model"`
	Timeout         time.Duration `mapstructure:"timeout"`

	ContextLength  int    `mapstructure:"context_length"`
	Reflection     bool   `mapstructure:"reflection"`
	MaxReflections int    `mapstructure:"max_reflections"`
	ChainOfThought bool   `mapstructure:"chain_of_thought"`
	Multimodal     bool   `mapstructure:"multimodal"`
	Language       string `mapstructure:"language"`
	Style          string `mapstructure:"style"`

	Store    StoreConfig `mapstructure:"store"`
	LogLevel string      `mapstructure:"log_level"`
	LogFile  string      `mapstructure:"log_file"`
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigFile, when set, replaces the default search of config.yaml and pagepilot.yaml.
	ConfigFile string
	// ConfigDirs are searched in order for config.yaml. Defaults to the user config directory.
	ConfigDirs []string
	// EnvFiles are loaded into the process environment without overriding existing variables.
	EnvFiles []string
	// Flags are bound by name, e.g. --chat-model sets chat_model.
	Flags *pflag.FlagSet
}

// providerKeyEnv lists the conventional API key variables per provider.
var providerKeyEnv = map[string][]string{
	"openai":     {"OPENAI_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"gemini":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"moonshot":   {"MOONSHOT_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
	"deepseek":   {"DEEPSEEK_API_KEY"},
	"groq":       {"GROQ_API_KEY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "")
	v.SetDefault("provider", "openai")
	v.SetDefault("api_key", "")
	v.SetDefault("chat_model", "")
	v.SetDefault("tool_model", "")
	v.SetDefault("multimodal_model", "")
	v.SetDefault("reasoning_model", "")
	v.SetDefault("timeout", 60*time.Second)
	v.SetDefault("context_length", 10)
	v.SetDefault("reflection", false)
	v.SetDefault("max_reflections", 3)
	v.SetDefault("chain_of_thought", false)
	v.SetDefault("multimodal", false)
	v.SetDefault("language", "")
	v.SetDefault("style", "auto")
	v.SetDefault("store.driver", storage.DriverJSON)
	v.SetDefault("store.path", filepath.Join(DefaultDataDir(), "conversations"))
	v.SetDefault("log_level", "")
	v.SetDefault("log_file", "")
}

// DefaultConfigDir returns ~/.config/pagepilot, or the working directory when no home is known.
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "pagepilot")
}

// DefaultDataDir returns the directory conversations are stored in by default.
func DefaultDataDir() string {
	return filepath.Join(DefaultConfigDir(), "data")
}

// Load reads the configuration. Missing files are not an error.
func Load(opts LoadOptions) (*Config, error) {
	for _, file := range opts.EnvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if err := readFiles(v, opts); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !isKnown(v, key) {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.resolveAPIKey()
	return &cfg, nil
}

func readFiles(v *viper.Viper, opts LoadOptions) error {
	v.SetConfigType("yaml")

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read %s: %w", opts.ConfigFile, err)
		}
		return nil
	}

	dirs := opts.ConfigDirs
	if len(dirs) == 0 {
		dirs = []string{DefaultConfigDir()}
	}
	v.SetConfigName("config")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	// a project file in the working directory overrides the user file
	if _, err := os.Stat("pagepilot.yaml"); err == nil {
		v.SetConfigFile("pagepilot.yaml")
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to read pagepilot.yaml: %w", err)
		}
	}
	return nil
}

func isKnown(v *viper.Viper, key string) bool {
	for _, k := range v.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// resolveAPIKey falls back to the provider's conventional API key variable.
func (c *Config) resolveAPIKey() {
	if c.APIKey != "" {
		return
	}
	for _, name := range providerKeyEnv[c.ProviderID()] {
		if key := os.Getenv(name); key != "" {
			c.APIKey = key
			return
		}
	}
}

// ProviderID returns the profile that serves the configuration: the endpoint decides when set.
func (c *Config) ProviderID() string {
	if c.Endpoint != "" {
		return model.SelectProfile(c.Endpoint).ID
	}
	return c.Provider
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, is.URL),
		validation.Field(&c.Provider, validation.When(c.Endpoint == "",
			validation.Required, validation.In(toAny(model.ProfileIDs())...))),
		validation.Field(&c.Timeout, validation.Min(time.Second)),
		validation.Field(&c.ContextLength, validation.Min(-1)),
		validation.Field(&c.MaxReflections, validation.Min(1), validation.Max(10)),
		validation.Field(&c.Style, validation.In("auto", "dark", "light", "notty", "ascii")),
		validation.Field(&c.Store),
	)
}

// Validate checks the store settings.
func (s StoreConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Driver, validation.Required, validation.In(storage.DriverJSON, storage.DriverSQLite)),
		validation.Field(&s.Path, validation.Required),
	)
}

// ModelConfig converts the settings into the model service factory configuration.
func (c *Config) ModelConfig() model.Config {
	return model.Config{
		Endpoint: c.Endpoint,
		Provider: c.Provider,
		APIKey:   c.APIKey,
		Settings: model.Settings{
			ChatModel:       c.ChatModel,
			ToolModel:       c.ToolModel,
			MultimodalModel: c.MultimodalModel,
			ReasoningModel:  c.ReasoningModel,
			Timeout:         c.Timeout,
		},
	}
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
