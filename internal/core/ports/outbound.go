package ports

import (
	"context"
	"image"

	"github.com/kvolkov/docsense/internal/core/domain"
)

// ImagePreparer decodes raw bytes and runs the preprocessing chain.
type ImagePreparer interface {
	Prepare(data []byte) (*image.Gray, error)
}

// OCREngine recognizes text blocks on a prepared image. An image with no
// text yields zero blocks and no error.
type OCREngine interface {
	Extract(ctx context.Context, img image.Image) ([]domain.TextBlock, error)
}

// KnowledgeStore persists documents and answers lexical search queries.
type KnowledgeStore interface {
	Create(ctx context.Context, blocks []domain.TextBlock, filename string, source domain.SourceType, processingSeconds float64) (*domain.Document, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, domain.KnowledgeBaseStats, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, topK int) ([]domain.ScoredDocument, error)
	Stats(ctx context.Context) (domain.KnowledgeBaseStats, error)
}

// LLMClient is the thin adapter to the local inference service.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Health(ctx context.Context) domain.LLMHealth
}
