package imaging

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

const (
	skewSearchDegrees = 15.0
	skewStepDegrees   = 0.5
	skewEstimateWidth = 512
)

// deskew estimates the dominant text-line angle and rotates it out.
// Skew below minSkewDegrees is left untouched.
func deskew(img *image.Gray) (*image.Gray, error) {
	angle := estimateSkew(img)
	if math.Abs(angle) < minSkewDegrees {
		return img, nil
	}
	return rotate(img, angle), nil
}

// estimateSkew scores candidate angles with a projection profile: text
// lines aligned with the projection axis concentrate ink into few rows,
// maximizing the sum of squared row counts. Returns the correction angle
// in degrees.
func estimateSkew(img *image.Gray) float64 {
	work := img
	if w := img.Rect.Dx(); w > skewEstimateWidth {
		work = scaleGray(img, float64(skewEstimateWidth)/float64(w), xdraw.ApproxBiLinear)
	}
	w, h := work.Rect.Dx(), work.Rect.Dy()
	if w < 2 || h < 2 {
		return 0
	}

	threshold := meanIntensity(work)
	type point struct{ x, y int }
	var ink []point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if work.Pix[y*work.Stride+x] < threshold {
				ink = append(ink, point{x, y})
			}
		}
	}
	if len(ink) == 0 {
		return 0
	}

	bins := make([]int, h+w+1)
	bestAngle, bestScore := 0.0, -1.0
	for angle := -skewSearchDegrees; angle <= skewSearchDegrees; angle += skewStepDegrees {
		rad := angle * math.Pi / 180
		sin, cos := math.Sin(rad), math.Cos(rad)
		for i := range bins {
			bins[i] = 0
		}
		for _, p := range ink {
			row := int(float64(p.y)*cos-float64(p.x)*sin) + w
			if row >= 0 && row < len(bins) {
				bins[row]++
			}
		}
		score := 0.0
		for _, c := range bins {
			score += float64(c) * float64(c)
		}
		if score > bestScore {
			bestScore = score
			bestAngle = angle
		}
	}
	return bestAngle
}

func meanIntensity(img *image.Gray) uint8 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return 128
	}
	sum := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum += int(img.Pix[y*img.Stride+x])
		}
	}
	return uint8(sum / (w * h))
}

// rotate spins the image by the given angle (degrees, counter-clockwise)
// about its center with bilinear sampling and replicated borders, keeping
// the original dimensions.
func rotate(img *image.Gray, degrees float64) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewGray(img.Rect)

	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(w-1)/2, float64(h-1)/2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			srcX := dx*cos - dy*sin + cx
			srcY := dx*sin + dy*cos + cy
			out.Pix[y*out.Stride+x] = sampleBilinear(img, srcX, srcY)
		}
	}
	return out
}

func sampleBilinear(img *image.Gray, x, y float64) uint8 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	at := func(xx, yy int) float64 {
		return float64(img.Pix[clampInt(yy, 0, h-1)*img.Stride+clampInt(xx, 0, w-1)])
	}
	top := at(x0, y0)*(1-fx) + at(x0+1, y0)*fx
	bottom := at(x0, y0+1)*(1-fx) + at(x0+1, y0+1)*fx
	return uint8(math.Round(top*(1-fy) + bottom*fy))
}
