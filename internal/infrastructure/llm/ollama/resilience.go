package ollama

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kvolkov/docsense/internal/core/domain"
	"github.com/kvolkov/docsense/internal/infrastructure/resilience"
)

func classifyOllamaError(err error) resilience.Outcome {
	if err == nil {
		return resilience.Outcome{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.Outcome{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.Outcome{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if retryableStatus(statusErr.StatusCode) {
			return resilience.Outcome{Retryable: true, RecordFailure: true}
		}
		return resilience.Outcome{Retryable: false, RecordFailure: false}
	}

	// The http client's own timeout surfaces as a url.Error wrapping
	// context.DeadlineExceeded, so a deadline here means the backend
	// hung, not that the caller gave up. Caller cancellation is
	// distinguished at the call site via ctx.Err().
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Outcome{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.Outcome{Retryable: true, RecordFailure: true}
	}

	return resilience.Outcome{Retryable: false, RecordFailure: true}
}

// wrapUnavailable translates exhausted transport failures into the
// service-level unavailability error so handlers can map them to 503.
func wrapUnavailable(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrLLMUnavailable) {
		return err
	}
	class := classifyOllamaError(err)
	if class.Retryable || class.RecordFailure {
		return domain.WrapError(domain.ErrLLMUnavailable, operation, err)
	}
	return err
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
