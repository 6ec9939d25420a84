package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kvolkov/docsense/internal/core/domain"
	"github.com/kvolkov/docsense/internal/core/ports"
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
	"image/bmp":  {},
	"image/gif":  {},
	"image/tiff": {},
}

// IngestUseCase runs the upload-to-document pipeline: prepare the image,
// extract text, persist the result.
type IngestUseCase struct {
	preparer ports.ImagePreparer
	engine   ports.OCREngine
	store    ports.KnowledgeStore
	log      *slog.Logger
}

func NewIngestUseCase(preparer ports.ImagePreparer, engine ports.OCREngine, store ports.KnowledgeStore, log *slog.Logger) *IngestUseCase {
	return &IngestUseCase{
		preparer: preparer,
		engine:   engine,
		store:    store,
		log:      log,
	}
}

// Upload processes an uploaded image file end to end. contentType may be
// empty when the caller has no declared type; actual decodability is
// still enforced by the preparer.
func (uc *IngestUseCase) Upload(ctx context.Context, filename, contentType string, data []byte, source domain.SourceType) (*domain.Document, error) {
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("empty payload"))
	}
	if contentType != "" {
		base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
		if _, ok := allowedImageTypes[base]; !ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("unsupported content type %q", base))
		}
	}

	start := time.Now()

	img, err := uc.preparer.Prepare(data)
	if err != nil {
		return nil, err
	}

	blocks, err := uc.engine.Extract(ctx, img)
	if err != nil {
		return nil, err
	}

	// A cancelled request must not leave a partially ingested document.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start).Seconds()
	doc, err := uc.store.Create(ctx, blocks, filename, source, elapsed)
	if err != nil {
		return nil, err
	}

	uc.log.Info("document_ingested",
		"document_id", doc.ID,
		"filename", filename,
		"source", string(source),
		"blocks", doc.BlockCount,
		"confidence", doc.OCRConfidence,
		"seconds", elapsed,
	)
	return doc, nil
}

// Capture ingests a camera frame delivered as base64. A missing filename
// gets a timestamped one so captures stay distinguishable in the store.
func (uc *IngestUseCase) Capture(ctx context.Context, imageBase64, filename string) (*domain.Document, error) {
	data, err := decodeImagePayload(imageBase64)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(filename) == "" {
		filename = "capture_" + time.Now().UTC().Format("20060102_150405") + ".jpg"
	}
	return uc.Upload(ctx, filename, "", data, domain.SourceCamera)
}

// decodeImagePayload strips an optional data-URL prefix and decodes the
// base64 frame.
func decodeImagePayload(encoded string) ([]byte, error) {
	if idx := strings.Index(encoded, ","); idx >= 0 {
		encoded = encoded[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode image payload", err)
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode image payload", fmt.Errorf("empty payload"))
	}
	return data, nil
}
