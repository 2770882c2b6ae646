package config

import (
	"os"
	"path/filepath"
	"testing"
)

// pointLoadAt directs Load at a config file in a temp dir and neutralizes
// ambient env that would leak into the result.
func pointLoadAt(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	t.Setenv("AGENTGATE_CONFIG", path)
	t.Setenv("AGENTGATE_ENV_FILE", filepath.Join(dir, "no-env-file"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	return path
}

func TestDefaultsWhenNoFile(t *testing.T) {
	pointLoadAt(t, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "gpt-4o" || cfg.Model.MaxToolIterations != 10 {
		t.Errorf("model defaults = %+v", cfg.Model)
	}
	if !cfg.Gateway.SafeMode {
		t.Error("safe mode must default to on")
	}
	if cfg.Tools.Terminal.TimeoutSeconds != 30 {
		t.Errorf("terminal timeout = %d", cfg.Tools.Terminal.TimeoutSeconds)
	}
}

func TestLoadFromFile(t *testing.T) {
	pointLoadAt(t, `{
		"model": {"name": "test-model", "maxTokens": 512},
		"gateway": {"port": 9999, "safeMode": false},
		"tools": {"search": {"maxResults": 3}}
	}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "test-model" || cfg.Model.MaxTokens != 512 {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Gateway.Port != 9999 || cfg.Gateway.SafeMode {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Tools.Search.MaxResults != 3 {
		t.Errorf("search = %+v", cfg.Tools.Search)
	}
	// Untouched groups keep defaults.
	if cfg.Provider.APIBase != "https://api.openai.com/v1" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	pointLoadAt(t, `{"model": {"name": "from-file"}}`)
	t.Setenv("AGENTGATE_MODEL_MODEL", "from-env")
	t.Setenv("AGENTGATE_GATEWAY_PORT", "7777")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "from-env" {
		t.Errorf("model name = %q", cfg.Model.Name)
	}
	if cfg.Gateway.Port != 7777 {
		t.Errorf("port = %d", cfg.Gateway.Port)
	}
}

func TestEnvSubstitutionInFile(t *testing.T) {
	pointLoadAt(t, `{"provider": {"apiKey": "${TEST_SUBST_KEY}"}}`)
	t.Setenv("TEST_SUBST_KEY", "sk-resolved")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "sk-resolved" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}
}

func TestOpenAIKeyFallback(t *testing.T) {
	pointLoadAt(t, "")
	t.Setenv("OPENAI_API_KEY", "sk-ambient")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "sk-ambient" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}
}

func TestConfigPathExplicit(t *testing.T) {
	t.Setenv("AGENTGATE_CONFIG", "/tmp/agentgate-test.json")
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	if path != "/tmp/agentgate-test.json" {
		t.Errorf("path = %q", path)
	}
}

func TestConfigPathHome(t *testing.T) {
	t.Setenv("AGENTGATE_CONFIG", "")
	t.Setenv("AGENTGATE_HOME", t.TempDir())
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	want := filepath.Join(os.Getenv("AGENTGATE_HOME"), ConfigDir, ConfigFile)
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := pointLoadAt(t, "")

	cfg := DefaultConfig()
	cfg.Model.Name = "saved-model"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Model.Name != "saved-model" {
		t.Errorf("model name = %q", loaded.Model.Name)
	}
}
