package ports

import (
	"context"

	"github.com/kvolkov/docsense/internal/core/domain"
)

// DocumentIngestor is the inbound contract for OCR document ingestion.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, contentType string, data []byte, source domain.SourceType) (*domain.Document, error)
	Capture(ctx context.Context, imageBase64, filename string) (*domain.Document, error)
}

// ChatService is the inbound contract for knowledge-grounded chat.
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string, useKnowledge bool) (*domain.ChatResult, error)
	Clear(sessionID string)
}
