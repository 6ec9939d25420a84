// Package bootstrap wires the service's components together.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpadapter "github.com/kvolkov/docsense/internal/adapters/http"
	"github.com/kvolkov/docsense/internal/config"
	"github.com/kvolkov/docsense/internal/core/usecase"
	"github.com/kvolkov/docsense/internal/infrastructure/imaging"
	"github.com/kvolkov/docsense/internal/infrastructure/knowledge"
	"github.com/kvolkov/docsense/internal/infrastructure/llm/ollama"
	"github.com/kvolkov/docsense/internal/infrastructure/ocr/tesseract"
	"github.com/kvolkov/docsense/internal/infrastructure/resilience"
	"github.com/kvolkov/docsense/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Handler http.Handler

	closeFn func()
}

func New(cfg config.Config, log *slog.Logger) (*App, error) {
	store, err := knowledge.Open(cfg.StoragePath, log)
	if err != nil {
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}

	engine, err := tesseract.New(cfg.OCRLanguages, cfg.OCRQueueCapacity, cfg.OCRQueueWait, log)
	if err != nil {
		return nil, fmt.Errorf("init ocr engine: %w", err)
	}

	pipeline := imaging.NewPipeline(log)
	executor := resilience.NewExecutor(resilience.DefaultPolicy(), log)
	llmClient := ollama.New(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaTimeout, cfg.OllamaHealthTimeout, executor, log)

	ingestUC := usecase.NewIngestUseCase(pipeline, engine, store, log)
	chatUC := usecase.NewChatUseCase(store, llmClient, cfg.ChatTopK, cfg.ChatContextChars, cfg.ChatHistoryTurns, log)

	httpMetrics := metrics.NewHTTPServerMetrics("docsense-api")
	router := httpadapter.NewRouter(ingestUC, chatUC, store, llmClient, httpMetrics, httpadapter.Options{
		MaxUploadBytes:   cfg.MaxUploadBytes,
		RateLimitRPS:     float64(cfg.APIRateLimitRPS),
		RateLimitBurst:   cfg.APIRateLimitBurst,
		MaxConcurrent:    cfg.APIMaxConcurrent,
		BackpressureWait: cfg.APIBackpressureWait,
	})

	return &App{
		Config:  cfg,
		Handler: router.Handler(),
		closeFn: func() {
			if err := engine.Close(); err != nil {
				log.Warn("ocr_engine_close", "error", err)
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// ShutdownGrace is how long in-flight requests get to finish on SIGTERM.
const ShutdownGrace = 10 * time.Second
