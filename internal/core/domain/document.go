package domain

import "time"

// SourceType is the closed set of document origins.
type SourceType string

const (
	SourceUpload  SourceType = "upload"
	SourceCamera  SourceType = "camera"
	SourceDigital SourceType = "digital"
)

// ParseSourceType maps the wire value onto the enumeration. Empty input
// defaults to upload, matching the form-field default.
func ParseSourceType(raw string) (SourceType, error) {
	switch SourceType(raw) {
	case SourceUpload, SourceCamera, SourceDigital:
		return SourceType(raw), nil
	case "":
		return SourceUpload, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse source type", errUnknownSourceType(raw))
	}
}

type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TextBlock is one recognized text region. Blocks keep detection order,
// not reading order.
type TextBlock struct {
	Text       string      `json:"text"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
}

type Document struct {
	ID             string      `json:"id"`
	Filename       string      `json:"filename"`
	SourceType     SourceType  `json:"source_type"`
	Blocks         []TextBlock `json:"blocks,omitempty"`
	ExtractedText  string      `json:"extracted_text"`
	BlockCount     int         `json:"block_count"`
	OCRConfidence  float64     `json:"ocr_confidence"`
	ProcessingTime float64     `json:"processing_time"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ScoredDocument is a search hit with its retrieval relevance score.
type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}

type KnowledgeBaseStats struct {
	TotalDocuments  int     `json:"total_documents"`
	TotalBlocks     int     `json:"total_blocks"`
	TotalCharacters int     `json:"total_characters"`
	AvgConfidence   float64 `json:"avg_confidence"`
}

// ClampConfidence normalizes a model confidence into [0,1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MeanConfidence is the document-level confidence: the arithmetic mean of
// clamped block confidences, 0 when there are no blocks.
func MeanConfidence(blocks []TextBlock) float64 {
	if len(blocks) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range blocks {
		sum += ClampConfidence(b.Confidence)
	}
	return sum / float64(len(blocks))
}

type errUnknownSourceType string

func (e errUnknownSourceType) Error() string {
	return "unknown source type: " + string(e)
}
