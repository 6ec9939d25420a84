package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrExtraction       = errors.New("extraction failed")
	ErrStorage          = errors.New("storage failure")
	ErrDocumentNotFound = errors.New("document not found")
	ErrLLMUnavailable   = errors.New("llm unavailable")
	ErrBusy             = errors.New("service busy")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
