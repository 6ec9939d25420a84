// Package ollama talks to a local Ollama server over its HTTP API.
package ollama

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kvolkov/docsense/internal/core/domain"
	"github.com/kvolkov/docsense/internal/infrastructure/resilience"
)

type Client struct {
	baseURL string
	model   string
	log     *slog.Logger

	httpClient   *http.Client
	healthClient *http.Client

	executor *resilience.Executor
}

// New builds a client for baseURL generating with model. timeout bounds
// a single completion; healthTimeout bounds the liveness probe, which
// is expected to answer fast or not at all.
func New(baseURL, model string, timeout, healthTimeout time.Duration, executor *resilience.Executor, log *slog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		log:          log,
		httpClient:   &http.Client{Timeout: timeout},
		healthClient: &http.Client{Timeout: healthTimeout},
		executor:     executor,
	}
}

// Complete sends prompt to /api/generate and returns the model response.
// Transport failures, timeouts, and retryable server statuses surface as
// ErrLLMUnavailable after the retry budget is spent.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.executor.Execute(ctx, "ollama.generate", func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", request, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", wrapUnavailable("generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

// Health probes /api/tags with the short-timeout client. It never
// returns an error; an unreachable server reports Connected=false.
func (c *Client) Health(ctx context.Context) domain.LLMHealth {
	health := domain.LLMHealth{Model: c.model}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/tags", &tags, "tags"); err != nil {
		c.log.Warn("ollama_unreachable", "error", err)
		return health
	}

	health.Connected = true
	health.AvailableModels = make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		health.AvailableModels = append(health.AvailableModels, m.Name)
	}
	return health
}
