package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "TERMWAVE_PROVIDER", "TERMWAVE_DB", "TERMWAVE_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DefaultProvider != "mock" {
		t.Errorf("expected default provider 'mock', got %q", cfg.DefaultProvider)
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("expected default theme 'dark', got %q", cfg.UI.Theme)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level 'info', got %q", cfg.Log.Level)
	}
	mock := cfg.GetProviderConfig("mock")
	if mock.Options["response_type"] != "normal" {
		t.Errorf("expected mock response_type 'normal', got %v", mock.Options["response_type"])
	}
	if mock.Options["response_delay"] != 0.5 {
		t.Errorf("expected mock response_delay 0.5, got %v", mock.Options["response_delay"])
	}
	openai := cfg.GetProviderConfig("openai")
	if openai.Options["max_tokens"] != 1000 {
		t.Errorf("expected openai max_tokens 1000, got %v", openai.Options["max_tokens"])
	}
}

func TestLoad_CreatesFileOnFirstRun(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultProvider != "mock" {
		t.Errorf("expected default provider, got %q", cfg.DefaultProvider)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
}

func TestLoad_DeepMergesOverDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
default_provider: eliza
providers:
  mock:
    response_type: code
  deepseek:
    api_key: sk-ds
ui:
  theme: light
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultProvider != "eliza" {
		t.Errorf("default_provider = %q", cfg.DefaultProvider)
	}
	mock := cfg.GetProviderConfig("mock")
	if mock.Options["response_type"] != "code" {
		t.Errorf("mock.response_type = %v, want code", mock.Options["response_type"])
	}
	if mock.Options["response_delay"] != 0.5 {
		t.Errorf("mock.response_delay should keep its default, got %v", mock.Options["response_delay"])
	}
	if cfg.GetProviderConfig("deepseek").APIKey != "sk-ds" {
		t.Error("deepseek api_key not loaded")
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("ui.theme = %q", cfg.UI.Theme)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level should keep its default, got %q", cfg.Log.Level)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("providers: [unclosed"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("providers:\n  openai:\n    api_key: from-file\n"), 0644)

	t.Setenv("OPENAI_API_KEY", "env-key-123")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("TERMWAVE_PROVIDER", "openai")
	t.Setenv("TERMWAVE_DB", "/tmp/tw.db")
	t.Setenv("TERMWAVE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.GetProviderConfig("openai").APIKey; got != "env-key-123" {
		t.Errorf("openai api_key = %q", got)
	}
	if got := cfg.GetProviderConfig("anthropic").APIKey; got != "sk-ant-test" {
		t.Errorf("anthropic api_key = %q", got)
	}
	if cfg.DefaultProvider != "openai" {
		t.Errorf("default_provider = %q", cfg.DefaultProvider)
	}
	if cfg.Storage.DBPath != "/tmp/tw.db" {
		t.Errorf("db_path = %q", cfg.Storage.DBPath)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
}

func TestProviderSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers["openai"].APIKey = "k"
	s := cfg.ProviderSettings("openai")
	if s.APIKey != "k" {
		t.Errorf("APIKey = %q", s.APIKey)
	}
	if s.Options["model"] != "gpt-4o-mini" {
		t.Errorf("model option = %v", s.Options["model"])
	}
	if _, ok := s.Options["api_key"]; ok {
		t.Error("api_key must not leak into options")
	}

	s.Options["model"] = "changed"
	if cfg.Providers["openai"].Options["model"] != "gpt-4o-mini" {
		t.Error("Settings() must copy options")
	}

	if got := cfg.ProviderSettings("unknown"); got.APIKey != "" || len(got.Options) != 0 {
		t.Errorf("unknown provider settings = %+v", got)
	}
}

func TestSaveProvider(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("ui:\n  theme: light\ncustom_key: keep-me\n"), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.SaveProvider("eliza", map[string]any{"response_delay": 0.25}); err != nil {
		t.Fatalf("SaveProvider: %v", err)
	}

	data, _ := os.ReadFile(path)
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["default_provider"] != "eliza" {
		t.Errorf("default_provider = %v", raw["default_provider"])
	}
	if raw["custom_key"] != "keep-me" {
		t.Error("unknown keys must be preserved")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.DefaultProvider != "eliza" {
		t.Errorf("reloaded default_provider = %q", reloaded.DefaultProvider)
	}
	if d := reloaded.GetProviderConfig("eliza").Options["response_delay"]; d != 0.25 {
		t.Errorf("reloaded eliza.response_delay = %v", d)
	}
	if reloaded.UI.Theme != "light" {
		t.Errorf("ui.theme lost: %q", reloaded.UI.Theme)
	}
	if cfg.DefaultProvider != "eliza" {
		t.Error("in-memory config not updated")
	}
}

func TestLoadProviderDefaults(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "providers.yaml"), []byte("deepseek:\n  default_model: deepseek-reasoner\nlocal:\n  base_url: http://127.0.0.1:8080/v1\n"), 0644)

	defs := LoadProviderDefaults(filepath.Join(dir, "config.yaml"))
	if defs["deepseek"].DefaultModel != "deepseek-reasoner" {
		t.Errorf("deepseek model override not applied: %+v", defs["deepseek"])
	}
	if defs["deepseek"].BaseURL != "https://api.deepseek.com/v1" {
		t.Errorf("deepseek base_url should keep its default: %+v", defs["deepseek"])
	}
	if defs["local"].BaseURL != "http://127.0.0.1:8080/v1" {
		t.Errorf("user-defined provider missing: %+v", defs["local"])
	}
	if !defs["ollama"].KeyOptional {
		t.Error("ollama should not need a key")
	}

	eps := Endpoints(defs)
	if eps["groq"].DisplayName != "Groq" {
		t.Errorf("groq endpoint = %+v", eps["groq"])
	}
}
