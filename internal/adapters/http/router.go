// Package httpadapter exposes the service over HTTP.
package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kvolkov/docsense/internal/core/domain"
	"github.com/kvolkov/docsense/internal/core/ports"
	"github.com/kvolkov/docsense/internal/observability/metrics"
)

const (
	serviceName      = "docsense-api"
	sessionIDHeader  = "X-Session-Id"
	defaultSessionID = "default"
	previewChars     = 200
)

// Options carries the transport-level knobs the router needs.
type Options struct {
	MaxUploadBytes   int64
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxConcurrent    int
	BackpressureWait time.Duration
}

type Router struct {
	ingest  ports.DocumentIngestor
	chat    ports.ChatService
	store   ports.KnowledgeStore
	llm     ports.LLMClient
	metrics *metrics.HTTPServerMetrics
	opts    Options
}

func NewRouter(ingest ports.DocumentIngestor, chat ports.ChatService, store ports.KnowledgeStore, llm ports.LLMClient, m *metrics.HTTPServerMetrics, opts Options) *Router {
	return &Router{
		ingest:  ingest,
		chat:    chat,
		store:   store,
		llm:     llm,
		metrics: m,
		opts:    opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/api/health", rt.health)
	mux.HandleFunc("/api/ollama/status", rt.ollamaStatus)
	mux.HandleFunc("/api/ocr/upload", rt.uploadDocument)
	mux.HandleFunc("/api/ocr/capture", rt.captureDocument)
	mux.HandleFunc("/api/chat", rt.chatMessage)
	mux.HandleFunc("/api/chat/clear", rt.chatClear)
	mux.HandleFunc("/api/documents", rt.listDocuments)
	mux.HandleFunc("/api/documents/", rt.documentByID)
	mux.HandleFunc("/api/knowledge/stats", rt.knowledgeStats)
	mux.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	if rt.opts.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxConcurrent, rt.opts.BackpressureWait)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := rt.store.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	llm := rt.llm.Health(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"ollama":           connectionState(llm.Connected),
		"model":            llm.Model,
		"available_models": llm.AvailableModels,
		"knowledge_base":   stats,
	})
}

func (rt *Router) ollamaStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	llm := rt.llm.Health(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           connectionState(llm.Connected),
		"model":            llm.Model,
		"available_models": llm.AvailableModels,
	})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload: " + err.Error()})
		return
	}

	source, err := domain.ParseSourceType(r.FormValue("source_type"))
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	doc, err := rt.ingest.Upload(r.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data, source)
	if err != nil {
		rt.recordIngestFailure(string(source), err)
		writeError(w, err)
		return
	}
	rt.metrics.RecordOCRIngestion(serviceName, string(source), "success", doc.BlockCount, time.Since(start))

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": documentViewOf(doc)})
}

func (rt *Router) captureDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)

	var req struct {
		ImageBase64 string `json:"image_base64"`
		Filename    string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	doc, err := rt.ingest.Capture(r.Context(), req.ImageBase64, req.Filename)
	if err != nil {
		rt.recordIngestFailure(string(domain.SourceCamera), err)
		writeError(w, err)
		return
	}
	rt.metrics.RecordOCRIngestion(serviceName, string(domain.SourceCamera), "success", doc.BlockCount, time.Since(start))

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": documentViewOf(doc)})
}

func (rt *Router) chatMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Message      string `json:"message"`
		UseKnowledge *bool  `json:"use_knowledge"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	useKnowledge := true
	if req.UseKnowledge != nil {
		useKnowledge = *req.UseKnowledge
	}

	start := time.Now()
	result, err := rt.chat.Chat(r.Context(), sessionID(r), req.Message, useKnowledge)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.RecordChatObservation(serviceName, len(result.Sources), time.Since(start))

	writeJSON(w, http.StatusOK, map[string]any{
		"response": result.Response,
		"sources":  result.Sources,
	})
}

func (rt *Router) chatClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	rt.chat.Clear(sessionID(r))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "conversation history cleared"})
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	docs, stats, err := rt.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]documentSummaryView, 0, len(docs))
	for i := range docs {
		views = append(views, summaryViewOf(&docs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": views,
		"stats":     stats,
	})
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := rt.store.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, documentViewOf(doc))
	case http.MethodDelete:
		if err := rt.store.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "document " + id + " deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (rt *Router) knowledgeStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := rt.store.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) recordIngestFailure(source string, err error) {
	if domain.IsKind(err, domain.ErrBusy) {
		rt.metrics.RecordOCRQueueRejection(serviceName)
	}
	rt.metrics.RecordOCRIngestion(serviceName, source, "error", 0, 0)
}

func connectionState(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}

func sessionID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(sessionIDHeader))
	if id == "" {
		return defaultSessionID
	}
	return id
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
