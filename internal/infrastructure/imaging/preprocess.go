// Package imaging conditions raw document photographs for OCR. The
// pipeline is a fixed chain of grayscale transforms; every stage is pure
// and the whole chain is safe for concurrent use.
package imaging

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"

	xdraw "golang.org/x/image/draw"
)

const (
	// Images whose longer side is below this are upscaled before OCR so
	// small captures reach a usable effective resolution.
	upscaleBelowDim = 1000
	upscaleFactor   = 2.0

	// Very large scans are brought down to bound memory and runtime.
	downscaleAboveDim = 4000
	downscaleTarget   = 3000

	// Skew under half a degree is left alone; correcting it introduces
	// more resampling artifacts than it removes.
	minSkewDegrees = 0.5
)

type stageFunc func(*image.Gray) (*image.Gray, error)

type stage struct {
	name string
	fn   stageFunc
}

// Pipeline is the fixed preprocessing chain:
// resize, deskew, shadow removal, denoise, contrast, sharpen.
type Pipeline struct {
	log    *slog.Logger
	stages []stage
}

func NewPipeline(log *slog.Logger) *Pipeline {
	return &Pipeline{
		log: log,
		stages: []stage{
			{"resize", resizeForOCR},
			{"deskew", deskew},
			{"shadow_removal", removeShadows},
			{"denoise", denoise},
			{"contrast", enhanceContrast},
			{"sharpen", sharpen},
		},
	}
}

// Prepare decodes raw bytes and runs the full chain.
func (p *Pipeline) Prepare(data []byte) (*image.Gray, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return p.Run(img), nil
}

// Run executes every stage in order. A failing stage passes its input
// through unchanged instead of aborting the chain.
func (p *Pipeline) Run(src image.Image) *image.Gray {
	img := toGray(src)
	for _, s := range p.stages {
		out, err := runStage(s, img)
		if err != nil {
			p.log.Warn("preprocess_stage_skipped", "stage", s.name, "error", err)
			continue
		}
		img = out
	}
	return img
}

func runStage(s stage, img *image.Gray) (out *image.Gray, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s: %v", s.name, r)
		}
	}()
	out, err = s.fn(img)
	if err == nil && out == nil {
		err = fmt.Errorf("stage %s produced no image", s.name)
	}
	return out, err
}

// toGray converts any decoded image into a zero-origin grayscale buffer.
// Every later stage assumes zero-origin bounds.
func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func resizeForOCR(img *image.Gray) (*image.Gray, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image %dx%d", w, h)
	}
	maxDim := w
	if h > maxDim {
		maxDim = h
	}
	switch {
	case maxDim < upscaleBelowDim:
		return scaleGray(img, upscaleFactor, xdraw.CatmullRom), nil
	case maxDim > downscaleAboveDim:
		return scaleGray(img, float64(downscaleTarget)/float64(maxDim), xdraw.ApproxBiLinear), nil
	default:
		return img, nil
	}
}

func scaleGray(img *image.Gray, factor float64, scaler xdraw.Scaler) *image.Gray {
	w := int(math.Round(float64(img.Rect.Dx()) * factor))
	h := int(math.Round(float64(img.Rect.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
