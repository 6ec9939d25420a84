package ollama

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kvolkov/docsense/internal/core/domain"
	"github.com/kvolkov/docsense/internal/infrastructure/resilience"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Policy{
		MaxAttempts:    2,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
		BreakerEnabled: false,
	}, testLogger())
}

func newTestClient(baseURL string) *Client {
	return New(baseURL, "llama3.2", 5*time.Second, 1*time.Second, testExecutor(), testLogger())
}

func TestCompleteReturnsTrimmedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "llama3.2" {
			t.Fatalf("expected model llama3.2, got %v", req["model"])
		}
		if req["stream"] != false {
			t.Fatalf("expected stream=false, got %v", req["stream"])
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "  the answer \n"})
	}))
	defer server.Close()

	answer, err := newTestClient(server.URL).Complete(context.Background(), "question")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if answer != "the answer" {
		t.Fatalf("expected trimmed answer, got %q", answer)
	}
}

func TestCompleteRetriesServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "recovered"})
	}))
	defer server.Close()

	answer, err := newTestClient(server.URL).Complete(context.Background(), "question")
	if err != nil {
		t.Fatalf("complete after retry: %v", err)
	}
	if answer != "recovered" {
		t.Fatalf("expected recovered answer, got %q", answer)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestCompleteMapsConnectionFailureToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), "question")
	if !domain.IsKind(err, domain.ErrLLMUnavailable) {
		t.Fatalf("expected ErrLLMUnavailable, got %v", err)
	}
}

func TestCompleteMapsClientTimeoutToUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := New(server.URL, "llama3.2", 50*time.Millisecond, time.Second, testExecutor(), testLogger())
	_, err := client.Complete(context.Background(), "question")
	if !domain.IsKind(err, domain.ErrLLMUnavailable) {
		t.Fatalf("expected ErrLLMUnavailable for hung backend, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected timeout to be retried, got %d calls", got)
	}
}

func TestCompleteCallerCancellationIsNotUnavailable(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		close(started)
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := newTestClient(server.URL).Complete(ctx, "question")
	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if domain.IsKind(err, domain.ErrLLMUnavailable) {
		t.Fatalf("caller cancellation must not map to ErrLLMUnavailable, got %v", err)
	}
}

func TestCompleteMapsExhaustedServerErrorToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), "question")
	if !domain.IsKind(err, domain.ErrLLMUnavailable) {
		t.Fatalf("expected ErrLLMUnavailable, got %v", err)
	}
}

func TestHealthReportsModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{
				{"name": "llama3.2"},
				{"name": "mistral"},
			},
		})
	}))
	defer server.Close()

	health := newTestClient(server.URL).Health(context.Background())
	if !health.Connected {
		t.Fatalf("expected connected health")
	}
	if health.Model != "llama3.2" {
		t.Fatalf("expected configured model in health, got %q", health.Model)
	}
	if len(health.AvailableModels) != 2 || health.AvailableModels[1] != "mistral" {
		t.Fatalf("unexpected available models %v", health.AvailableModels)
	}
}

func TestHealthDisconnectedWhenServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	health := newTestClient(server.URL).Health(context.Background())
	if health.Connected {
		t.Fatalf("expected disconnected health for unreachable server")
	}
	if len(health.AvailableModels) != 0 {
		t.Fatalf("expected no models, got %v", health.AvailableModels)
	}
}
