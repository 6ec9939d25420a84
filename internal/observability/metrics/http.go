package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics holds the service's Prometheus collectors behind a
// private registry so /metrics exposes only what the service records.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ocrProcessedTotal  *prometheus.CounterVec
	ocrDuration        *prometheus.HistogramVec
	ocrBlocks          *prometheus.HistogramVec
	ocrQueueRejections *prometheus.CounterVec

	chatRequestsTotal  *prometheus.CounterVec
	chatRetrievalHit   *prometheus.CounterVec
	chatNoContextTotal *prometheus.CounterVec
	chatSources        *prometheus.HistogramVec
	chatDuration       *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsense",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsense",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docsense",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ocrProcessedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsense",
			Subsystem: "ocr",
			Name:      "documents_processed_total",
			Help:      "Total OCR ingestions by status.",
		},
		[]string{"service", "source", "status"},
	)
	ocrDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsense",
			Subsystem: "ocr",
			Name:      "processing_duration_seconds",
			Help:      "End-to-end OCR processing duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "source"},
	)
	ocrBlocks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsense",
			Subsystem: "ocr",
			Name:      "extracted_blocks",
			Help:      "Distribution of text blocks extracted per document.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
		},
		[]string{"service", "source"},
	)
	ocrQueueRejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsense",
			Subsystem: "ocr",
			Name:      "queue_rejections_total",
			Help:      "Total OCR requests rejected because the queue was full.",
		},
		[]string{"service"},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsense",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total successful chat requests.",
		},
		[]string{"service"},
	)
	chatRetrievalHit := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsense",
			Subsystem: "chat",
			Name:      "retrieval_hit_total",
			Help:      "Total chat requests with at least one grounding document.",
		},
		[]string{"service"},
	)
	chatNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsense",
			Subsystem: "chat",
			Name:      "no_context_total",
			Help:      "Total chat requests answered without grounding documents.",
		},
		[]string{"service"},
	)
	chatSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsense",
			Subsystem: "chat",
			Name:      "sources",
			Help:      "Distribution of sources cited per successful chat request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsense",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Chat request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ocrProcessedTotal,
		ocrDuration,
		ocrBlocks,
		ocrQueueRejections,
		chatRequestsTotal,
		chatRetrievalHit,
		chatNoContextTotal,
		chatSources,
		chatDuration,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		ocrProcessedTotal:  ocrProcessedTotal,
		ocrDuration:        ocrDuration,
		ocrBlocks:          ocrBlocks,
		ocrQueueRejections: ocrQueueRejections,
		chatRequestsTotal:  chatRequestsTotal,
		chatRetrievalHit:   chatRetrievalHit,
		chatNoContextTotal: chatNoContextTotal,
		chatSources:        chatSources,
		chatDuration:       chatDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/documents/"):
		return "/api/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordOCRIngestion(service, source, status string, blocks int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.ocrProcessedTotal.WithLabelValues(service, source, status).Inc()
	if status != "success" {
		return
	}
	m.ocrDuration.WithLabelValues(service, source).Observe(duration.Seconds())
	m.ocrBlocks.WithLabelValues(service, source).Observe(float64(blocks))
}

func (m *HTTPServerMetrics) RecordOCRQueueRejection(service string) {
	m.ocrQueueRejections.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordChatObservation(service string, sourceCount int, duration time.Duration) {
	m.chatRequestsTotal.WithLabelValues(service).Inc()
	m.chatSources.WithLabelValues(service).Observe(float64(sourceCount))
	m.chatDuration.WithLabelValues(service).Observe(duration.Seconds())

	if sourceCount > 0 {
		m.chatRetrievalHit.WithLabelValues(service).Inc()
		return
	}
	m.chatNoContextTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
