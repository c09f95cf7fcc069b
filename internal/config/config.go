// Package config loads and manages termwave configuration.
// Configuration source priority (highest to lowest):
// 1. Environment variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, TERMWAVE_PROVIDER, ...)
// 2. Config file path specified via --config flag, or ~/.config/termwave/config.yaml
// 3. Built-in defaults (defaults.yaml, embedded)
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/termwave/termwave/internal/provider"
)

//go:embed defaults.yaml
var defaultConfigYAML []byte

//go:embed providers_default.yaml
var defaultProvidersYAML []byte

// ProviderConfig holds configuration for a single provider. Every key other
// than api_key and base_url is a provider option (model, temperature, ...).
type ProviderConfig struct {
	APIKey  string         `yaml:"api_key,omitempty"`
	BaseURL string         `yaml:"base_url,omitempty"`
	Options map[string]any `yaml:",inline"`
}

// Settings converts the config entry into provider construction settings.
func (pc *ProviderConfig) Settings() provider.Settings {
	if pc == nil {
		return provider.Settings{}
	}
	opts := make(map[string]any, len(pc.Options))
	for k, v := range pc.Options {
		opts[k] = v
	}
	return provider.Settings{APIKey: pc.APIKey, BaseURL: pc.BaseURL, Options: opts}
}

type UIConfig struct {
	// Theme selects the markdown style: "dark" | "light" | "auto".
	Theme string `yaml:"theme"`
}

type StorageConfig struct {
	// DBPath is the SQLite file. Empty = ~/.local/share/termwave/chat_history.db.
	DBPath string `yaml:"db_path"`
}

type LogConfig struct {
	// Level: "debug" | "info" | "warn" | "error".
	Level string `yaml:"level"`
	// File is the log destination. Empty = ~/.local/share/termwave/termwave.log.
	File string `yaml:"file"`
}

// Config is the complete configuration structure for termwave.
type Config struct {
	// DefaultProvider is the provider selected at startup.
	DefaultProvider string `yaml:"default_provider"`

	// Providers holds per-provider configuration.
	Providers map[string]*ProviderConfig `yaml:"providers"`

	UI      UIConfig      `yaml:"ui"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`

	// path is the file this config was loaded from and saves to.
	path string
}

// envOverrides lists the environment variables that take precedence over
// the config file.
type envOverrides struct {
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	Provider        string `env:"TERMWAVE_PROVIDER"`
	DBPath          string `env:"TERMWAVE_DB"`
	LogLevel        string `env:"TERMWAVE_LOG_LEVEL"`
}

// DefaultPath returns ~/.config/termwave/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "termwave", "config.yaml"), nil
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultConfigYAML, cfg); err != nil {
		panic(fmt.Sprintf("embedded defaults.yaml is invalid: %v", err))
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}
	return cfg
}

// Load reads the config file, deep-merges it over the built-in defaults and
// applies environment overrides. A missing file is created from the defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	var defaults map[string]any
	if err := yaml.Unmarshal(defaultConfigYAML, &defaults); err != nil {
		return nil, fmt.Errorf("embedded defaults.yaml is invalid: %w", err)
	}

	merged := defaults
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		var user map[string]any
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
		merged = deepMerge(defaults, user)
	case os.IsNotExist(err):
		// First run: leave an editable copy of the defaults behind. Failing to
		// write it is not fatal.
		_ = WriteDefaults(configPath)
	default:
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	out, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("merge config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(out, cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}
	cfg.path = configPath

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefaults writes the built-in defaults to path unless the file exists.
func WriteDefaults(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.ErrExist
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	if err := os.WriteFile(path, defaultConfigYAML, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// GetProviderConfig returns the config for the named provider, or an empty config if not found.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok && pc != nil {
		return pc
	}
	return &ProviderConfig{}
}

// ProviderSettings returns construction settings for the named provider.
func (c *Config) ProviderSettings(name string) provider.Settings {
	return c.GetProviderConfig(name).Settings()
}

// SaveProvider persists the active provider name and the given option
// values into the config file, preserving all other user settings.
func (c *Config) SaveProvider(name string, options map[string]any) error {
	if c.path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = p
	}

	// Read existing file into a generic map to preserve unknown fields.
	raw := make(map[string]any)
	if data, err := os.ReadFile(c.path); err == nil {
		_ = yaml.Unmarshal(data, &raw) // start fresh if corrupt
	}

	providers, _ := raw["providers"].(map[string]any)
	if providers == nil {
		providers = make(map[string]any)
	}
	entry, _ := providers[name].(map[string]any)
	if entry == nil {
		entry = make(map[string]any)
	}
	for k, v := range options {
		entry[k] = v
	}
	if len(entry) > 0 {
		providers[name] = entry
	}
	raw["providers"] = providers
	raw["default_provider"] = name

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	// Keep the in-memory view consistent with the file.
	c.DefaultProvider = name
	pc := c.Providers[name]
	if pc == nil {
		pc = &ProviderConfig{}
		c.Providers[name] = pc
	}
	if pc.Options == nil {
		pc.Options = make(map[string]any)
	}
	for k, v := range options {
		pc.Options[k] = v
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) error {
	var e envOverrides
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	if e.OpenAIAPIKey != "" {
		providerEntry(cfg, "openai").APIKey = e.OpenAIAPIKey
	}
	if e.AnthropicAPIKey != "" {
		providerEntry(cfg, "anthropic").APIKey = e.AnthropicAPIKey
	}
	if e.Provider != "" {
		cfg.DefaultProvider = e.Provider
	}
	if e.DBPath != "" {
		cfg.Storage.DBPath = e.DBPath
	}
	if e.LogLevel != "" {
		cfg.Log.Level = e.LogLevel
	}
	return nil
}

func providerEntry(cfg *Config, name string) *ProviderConfig {
	if cfg.Providers[name] == nil {
		cfg.Providers[name] = &ProviderConfig{}
	}
	return cfg.Providers[name]
}

// deepMerge returns dst with src merged over it. Nested maps merge key by
// key; any other value in src replaces the one in dst.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := out[k].(map[string]any); ok {
				out[k] = deepMerge(dm, sm)
				continue
			}
		}
		out[k] = sv
	}
	return out
}

// ProviderDefaults holds the defaults of an OpenAI-compatible service.
type ProviderDefaults struct {
	DisplayName  string `yaml:"display_name"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	KeyOptional  bool   `yaml:"key_optional"`
}

// LoadProviderDefaults parses the embedded OpenAI-compatible service list
// and merges any user overrides from providers.yaml next to the config file.
func LoadProviderDefaults(configPath string) map[string]ProviderDefaults {
	defs := make(map[string]ProviderDefaults)
	_ = yaml.Unmarshal(defaultProvidersYAML, &defs)

	if configPath == "" {
		if p, err := DefaultPath(); err == nil {
			configPath = p
		}
	}
	if configPath == "" {
		return defs
	}
	userPath := filepath.Join(filepath.Dir(configPath), "providers.yaml")
	data, err := os.ReadFile(userPath)
	if err != nil {
		return defs
	}
	userDefs := make(map[string]ProviderDefaults)
	if yaml.Unmarshal(data, &userDefs) != nil {
		return defs
	}
	for name, ud := range userDefs {
		d := defs[name]
		if ud.DisplayName != "" {
			d.DisplayName = ud.DisplayName
		}
		if ud.BaseURL != "" {
			d.BaseURL = ud.BaseURL
		}
		if ud.DefaultModel != "" {
			d.DefaultModel = ud.DefaultModel
		}
		if ud.KeyOptional {
			d.KeyOptional = true
		}
		defs[name] = d
	}
	return defs
}

// Endpoints converts provider defaults into registry endpoints.
func Endpoints(defs map[string]ProviderDefaults) map[string]provider.Endpoint {
	out := make(map[string]provider.Endpoint, len(defs))
	for name, d := range defs {
		out[name] = provider.Endpoint{
			DisplayName:  d.DisplayName,
			BaseURL:      d.BaseURL,
			DefaultModel: d.DefaultModel,
			KeyOptional:  d.KeyOptional,
		}
	}
	return out
}
