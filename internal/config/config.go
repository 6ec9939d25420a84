package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	StoragePath string `yaml:"storage_path"`

	OllamaURL           string        `yaml:"ollama_url"`
	OllamaModel         string        `yaml:"ollama_model"`
	OllamaTimeout       time.Duration `yaml:"ollama_timeout"`
	OllamaHealthTimeout time.Duration `yaml:"ollama_health_timeout"`

	OCRLanguages     string        `yaml:"ocr_languages"`
	OCRQueueCapacity int           `yaml:"ocr_queue_capacity"`
	OCRQueueWait     time.Duration `yaml:"ocr_queue_wait"`

	ChatTopK         int `yaml:"chat_top_k"`
	ChatContextChars int `yaml:"chat_context_chars"`
	ChatHistoryTurns int `yaml:"chat_history_turns"`

	MaxUploadBytes      int64         `yaml:"max_upload_bytes"`
	APIRateLimitRPS     int           `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst   int           `yaml:"api_rate_limit_burst"`
	APIMaxConcurrent    int           `yaml:"api_max_concurrent"`
	APIBackpressureWait time.Duration `yaml:"api_backpressure_wait"`
}

// Load reads configuration from the environment, then applies overrides
// from the YAML file named by CONFIG_FILE when one is set.
func Load() (Config, error) {
	cfg := Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		StoragePath: mustEnv("STORAGE_PATH", "./data/knowledge"),

		OllamaURL:           mustEnv("OLLAMA_URL", "http://127.0.0.1:11434"),
		OllamaModel:         mustEnv("OLLAMA_MODEL", "llama3.2"),
		OllamaTimeout:       mustEnvDuration("OLLAMA_TIMEOUT", 120*time.Second),
		OllamaHealthTimeout: mustEnvDuration("OLLAMA_HEALTH_TIMEOUT", 2*time.Second),

		OCRLanguages:     mustEnv("OCR_LANGUAGES", "eng"),
		OCRQueueCapacity: mustEnvInt("OCR_QUEUE_CAPACITY", 4),
		OCRQueueWait:     mustEnvDuration("OCR_QUEUE_WAIT", 10*time.Second),

		ChatTopK:         mustEnvInt("CHAT_TOP_K", 3),
		ChatContextChars: mustEnvInt("CHAT_CONTEXT_CHARS", 2500),
		ChatHistoryTurns: mustEnvInt("CHAT_HISTORY_TURNS", 10),

		MaxUploadBytes:      int64(mustEnvInt("MAX_UPLOAD_BYTES", 20<<20)),
		APIRateLimitRPS:     mustEnvInt("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 0),
		APIMaxConcurrent:    mustEnvInt("API_MAX_CONCURRENT", 0),
		APIBackpressureWait: mustEnvDuration("API_BACKPRESSURE_WAIT", 200*time.Millisecond),
	}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
