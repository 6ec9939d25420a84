package httpadapter

import (
	"time"

	"github.com/kvolkov/docsense/internal/core/domain"
)

type documentView struct {
	ID             string             `json:"id"`
	Filename       string             `json:"filename"`
	SourceType     string             `json:"source_type"`
	ExtractedText  string             `json:"extracted_text"`
	Blocks         []domain.TextBlock `json:"blocks,omitempty"`
	BlockCount     int                `json:"block_count"`
	OCRConfidence  float64            `json:"ocr_confidence"`
	ProcessingTime float64            `json:"processing_time"`
	CreatedAt      time.Time          `json:"created_at"`
}

// documentSummaryView trims the full text down to a preview for list
// responses.
type documentSummaryView struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	SourceType    string    `json:"source_type"`
	TextPreview   string    `json:"text_preview"`
	BlockCount    int       `json:"block_count"`
	OCRConfidence float64   `json:"ocr_confidence"`
	CreatedAt     time.Time `json:"created_at"`
}

func documentViewOf(doc *domain.Document) documentView {
	return documentView{
		ID:             doc.ID,
		Filename:       doc.Filename,
		SourceType:     string(doc.SourceType),
		ExtractedText:  doc.ExtractedText,
		Blocks:         doc.Blocks,
		BlockCount:     doc.BlockCount,
		OCRConfidence:  doc.OCRConfidence,
		ProcessingTime: doc.ProcessingTime,
		CreatedAt:      doc.CreatedAt,
	}
}

func summaryViewOf(doc *domain.Document) documentSummaryView {
	return documentSummaryView{
		ID:            doc.ID,
		Filename:      doc.Filename,
		SourceType:    string(doc.SourceType),
		TextPreview:   previewOf(doc.ExtractedText),
		BlockCount:    doc.BlockCount,
		OCRConfidence: doc.OCRConfidence,
		CreatedAt:     doc.CreatedAt,
	}
}

func previewOf(text string) string {
	runes := []rune(text)
	if len(runes) <= previewChars {
		return text
	}
	return string(runes[:previewChars]) + "..."
}
