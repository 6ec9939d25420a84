package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"testing"

	"github.com/kvolkov/docsense/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// syntheticPage draws dark glyph-like bars on a light background.
func syntheticPage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 220})
		}
	}
	for line := 0; line < h/20; line++ {
		y0 := line*20 + 5
		for y := y0; y < y0+4 && y < h; y++ {
			for x := w / 10; x < w-w/10; x++ {
				img.SetGray(x, y, color.Gray{Y: 30})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareProducesGrayImage(t *testing.T) {
	p := NewPipeline(testLogger())

	out, err := p.Prepare(encodePNG(t, syntheticPage(1200, 800)))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if out == nil || out.Rect.Dx() == 0 || out.Rect.Dy() == 0 {
		t.Fatalf("expected non-empty output image")
	}
}

func TestPrepareRejectsGarbage(t *testing.T) {
	p := NewPipeline(testLogger())

	_, err := p.Prepare([]byte("definitely not an image"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	p := NewPipeline(testLogger())
	src := syntheticPage(600, 400)

	first := p.Run(src)
	second := p.Run(src)
	if !bytes.Equal(first.Pix, second.Pix) {
		t.Fatalf("expected identical output for identical input")
	}
}

func TestResizeUpscalesSmallImages(t *testing.T) {
	out, err := resizeForOCR(syntheticPage(400, 300))
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if out.Rect.Dx() != 800 || out.Rect.Dy() != 600 {
		t.Fatalf("expected 2x upscale to 800x600, got %dx%d", out.Rect.Dx(), out.Rect.Dy())
	}
}

func TestResizeDownscalesHugeImages(t *testing.T) {
	out, err := resizeForOCR(image.NewGray(image.Rect(0, 0, 6000, 3000)))
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if out.Rect.Dx() != 3000 {
		t.Fatalf("expected longer side brought to 3000, got %d", out.Rect.Dx())
	}
	if out.Rect.Dy() != 1500 {
		t.Fatalf("expected aspect ratio preserved, got height %d", out.Rect.Dy())
	}
}

func TestResizeLeavesMidRangeAlone(t *testing.T) {
	src := syntheticPage(2000, 1500)
	out, err := resizeForOCR(src)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if out != src {
		t.Fatalf("expected mid-range image to pass through unchanged")
	}
}

func TestToGrayNormalizesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 50, 30))
	out := toGray(src)
	if out.Rect.Min.X != 0 || out.Rect.Min.Y != 0 {
		t.Fatalf("expected zero-origin bounds, got %v", out.Rect)
	}
	if out.Rect.Dx() != 40 || out.Rect.Dy() != 20 {
		t.Fatalf("expected 40x20, got %dx%d", out.Rect.Dx(), out.Rect.Dy())
	}
}
