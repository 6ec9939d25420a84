package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIPort != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.APIPort)
	}
	if cfg.OllamaModel != "llama3.2" {
		t.Fatalf("expected default model, got %s", cfg.OllamaModel)
	}
	if cfg.OllamaHealthTimeout != 2*time.Second {
		t.Fatalf("expected 2s health timeout, got %s", cfg.OllamaHealthTimeout)
	}
	if cfg.ChatContextChars != 2500 {
		t.Fatalf("expected 2500 context chars, got %d", cfg.ChatContextChars)
	}
	if cfg.OCRQueueCapacity != 4 {
		t.Fatalf("expected queue capacity 4, got %d", cfg.OCRQueueCapacity)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("OCR_LANGUAGES", "eng+deu")
	t.Setenv("OLLAMA_TIMEOUT", "30s")
	t.Setenv("CHAT_TOP_K", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIPort != "9999" {
		t.Fatalf("expected env port, got %s", cfg.APIPort)
	}
	if cfg.OCRLanguages != "eng+deu" {
		t.Fatalf("expected env languages, got %s", cfg.OCRLanguages)
	}
	if cfg.OllamaTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.OllamaTimeout)
	}
	if cfg.ChatTopK != 7 {
		t.Fatalf("expected top_k 7, got %d", cfg.ChatTopK)
	}
}

func TestLoadIgnoresMalformedEnvValues(t *testing.T) {
	t.Setenv("CHAT_TOP_K", "not-a-number")
	t.Setenv("OLLAMA_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChatTopK != 3 {
		t.Fatalf("expected fallback top_k, got %d", cfg.ChatTopK)
	}
	if cfg.OllamaTimeout != 120*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.OllamaTimeout)
	}
}

func TestLoadAppliesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "api_port: \"7070\"\nollama_model: mistral\nchat_top_k: 5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIPort != "7070" {
		t.Fatalf("expected yaml port override, got %s", cfg.APIPort)
	}
	if cfg.OllamaModel != "mistral" {
		t.Fatalf("expected yaml model override, got %s", cfg.OllamaModel)
	}
	if cfg.ChatTopK != 5 {
		t.Fatalf("expected yaml top_k override, got %d", cfg.ChatTopK)
	}
	// Values the file does not mention keep their defaults.
	if cfg.StoragePath != "./data/knowledge" {
		t.Fatalf("expected default storage path, got %s", cfg.StoragePath)
	}
}

func TestLoadFailsOnMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
