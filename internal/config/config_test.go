package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JULIOS_CONFIG", "")
	t.Setenv("OLLAMA_MODEL", "")
	cfg := Load()

	if cfg.OllamaModel != "llama3:8b" {
		t.Errorf("expected default model llama3:8b, got %s", cfg.OllamaModel)
	}
	if cfg.OllamaFallbackModel != "mistral" {
		t.Errorf("expected fallback mistral, got %s", cfg.OllamaFallbackModel)
	}
	if cfg.AutomationHotReload {
		t.Error("hot reload should be off by default")
	}
	if cfg.ContextWindowDays != 7 {
		t.Errorf("expected 7 window days, got %d", cfg.ContextWindowDays)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "julios.yaml")
	content := "ollama_model: qwen2:7b\nhttp_port: \"9000\"\nautomation_hot_reload: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JULIOS_CONFIG", path)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("OLLAMA_MODEL", "")

	cfg := Load()
	if cfg.OllamaModel != "qwen2:7b" {
		t.Errorf("yaml should set model, got %s", cfg.OllamaModel)
	}
	if cfg.HTTPPort != "9100" {
		t.Errorf("env should override yaml port, got %s", cfg.HTTPPort)
	}
	if !cfg.AutomationHotReload {
		t.Error("yaml should enable hot reload")
	}
}

func TestLoadBadEnvKeepsDefault(t *testing.T) {
	t.Setenv("JULIOS_CONFIG", "")
	t.Setenv("DEFAULT_USER_ID", "abc")
	t.Setenv("DEFAULT_TEMPERATURE", "warm")

	cfg := Load()
	if cfg.DefaultUserID != 1 {
		t.Errorf("expected user 1, got %d", cfg.DefaultUserID)
	}
	if cfg.DefaultTemperature != 0.3 {
		t.Errorf("expected 0.3, got %v", cfg.DefaultTemperature)
	}
}
