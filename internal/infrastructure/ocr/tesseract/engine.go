// Package tesseract runs text extraction through a Tesseract client.
// The client holds C state and is not safe for concurrent use, so the
// engine serializes recognition behind a mutex and bounds the waiting
// line with a semaphore so overload turns into fast rejection instead
// of an unbounded queue.
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/kvolkov/docsense/internal/core/domain"
)

type recognizeFunc func(pngData []byte) ([]gosseract.BoundingBox, error)

type Engine struct {
	log       *slog.Logger
	queue     chan struct{}
	queueWait time.Duration

	mu        sync.Mutex
	client    *gosseract.Client
	recognize recognizeFunc
}

// New creates an engine recognizing the given languages ("eng",
// "eng+deu", ...). queueCapacity bounds how many requests may wait for
// the client; queueWait is how long a request waits for a slot before
// being rejected with ErrBusy.
func New(languages string, queueCapacity int, queueWait time.Duration, log *slog.Logger) (*Engine, error) {
	if queueCapacity <= 0 {
		queueCapacity = 1
	}

	client := gosseract.NewClient()
	langs := strings.Split(languages, "+")
	if err := client.SetLanguage(langs...); err != nil {
		client.Close()
		return nil, domain.WrapError(domain.ErrExtraction, "set tesseract language", err)
	}

	e := &Engine{
		log:       log,
		queue:     make(chan struct{}, queueCapacity),
		queueWait: queueWait,
		client:    client,
	}
	e.recognize = e.recognizeWithClient
	return e, nil
}

// Extract runs recognition on img and returns per-line text blocks with
// normalized confidences. Empty lines are dropped.
func (e *Engine) Extract(ctx context.Context, img image.Image) ([]domain.TextBlock, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "encode image", err)
	}

	e.mu.Lock()
	boxes, err := e.recognize(buf.Bytes())
	e.mu.Unlock()
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "recognize", err)
	}
	return convertBoxes(boxes), nil
}

// acquire takes a queue slot, waiting up to queueWait. A full queue for
// the whole wait means the engine is saturated and the caller should
// back off.
func (e *Engine) acquire(ctx context.Context) (func(), error) {
	select {
	case e.queue <- struct{}{}:
		return func() { <-e.queue }, nil
	default:
	}

	timer := time.NewTimer(e.queueWait)
	defer timer.Stop()
	select {
	case e.queue <- struct{}{}:
		return func() { <-e.queue }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, domain.WrapError(domain.ErrBusy, "ocr queue", fmt.Errorf("no slot available within %s", e.queueWait))
	}
}

func (e *Engine) recognizeWithClient(pngData []byte) ([]gosseract.BoundingBox, error) {
	if e.client == nil {
		return nil, errors.New("engine is closed")
	}
	if err := e.client.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}
	return boxes, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func convertBoxes(boxes []gosseract.BoundingBox) []domain.TextBlock {
	blocks := make([]domain.TextBlock, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		blocks = append(blocks, domain.TextBlock{
			Text: text,
			Box: domain.BoundingBox{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
			Confidence: domain.ClampConfidence(b.Confidence / 100.0),
		})
	}
	return blocks
}
