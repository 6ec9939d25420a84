package imaging

import (
	"image"
	"sort"
)

// removeShadows flattens uneven lighting: a dilate-then-blur pass
// estimates the low-frequency illumination map, which is subtracted out
// and the remainder re-normalized to full range.
func removeShadows(img *image.Gray) (*image.Gray, error) {
	bg := boxBlur(dilate(img, 7), 21)
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewGray(img.Rect)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		bgRow := bg.Pix[y*bg.Stride : y*bg.Stride+w]
		outRow := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := 0; x < w; x++ {
			d := int(row[x]) - int(bgRow[x])
			if d < 0 {
				d = -d
			}
			outRow[x] = uint8(255 - d)
		}
	}
	return normalizeMinMax(out), nil
}

// denoise applies a 3x3 median filter; it kills salt-and-pepper noise
// while keeping character strokes sharp.
func denoise(img *image.Gray) (*image.Gray, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewGray(img.Rect)
	var window [9]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				yy := clampInt(y+dy, 0, h-1)
				for dx := -1; dx <= 1; dx++ {
					xx := clampInt(x+dx, 0, w-1)
					window[n] = int(img.Pix[yy*img.Stride+xx])
					n++
				}
			}
			s := window[:]
			sort.Ints(s)
			out.Pix[y*out.Stride+x] = uint8(s[4])
		}
	}
	return out, nil
}

// sharpen counteracts the blur the earlier smoothing stages introduce.
func sharpen(img *image.Gray) (*image.Gray, error) {
	kernel := [3][3]int{
		{-1, -1, -1},
		{-1, 9, -1},
		{-1, -1, -1},
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewGray(img.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for dy := -1; dy <= 1; dy++ {
				yy := clampInt(y+dy, 0, h-1)
				for dx := -1; dx <= 1; dx++ {
					xx := clampInt(x+dx, 0, w-1)
					sum += kernel[dy+1][dx+1] * int(img.Pix[yy*img.Stride+xx])
				}
			}
			out.Pix[y*out.Stride+x] = clampU8(sum)
		}
	}
	return out, nil
}

// dilate is a grayscale max filter with a square k x k structuring
// element, done as two separable passes.
func dilate(img *image.Gray, k int) *image.Gray {
	r := k / 2
	w, h := img.Rect.Dx(), img.Rect.Dy()

	horiz := image.NewGray(img.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			maxV := uint8(0)
			for dx := -r; dx <= r; dx++ {
				v := img.Pix[y*img.Stride+clampInt(x+dx, 0, w-1)]
				if v > maxV {
					maxV = v
				}
			}
			horiz.Pix[y*horiz.Stride+x] = maxV
		}
	}

	out := image.NewGray(img.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			maxV := uint8(0)
			for dy := -r; dy <= r; dy++ {
				v := horiz.Pix[clampInt(y+dy, 0, h-1)*horiz.Stride+x]
				if v > maxV {
					maxV = v
				}
			}
			out.Pix[y*out.Stride+x] = maxV
		}
	}
	return out
}

// boxBlur is a separable k x k mean filter using running sums.
func boxBlur(img *image.Gray, k int) *image.Gray {
	r := k / 2
	w, h := img.Rect.Dx(), img.Rect.Dy()

	horiz := make([]int, w*h)
	for y := 0; y < h; y++ {
		sum := 0
		for dx := -r; dx <= r; dx++ {
			sum += int(img.Pix[y*img.Stride+clampInt(dx, 0, w-1)])
		}
		for x := 0; x < w; x++ {
			horiz[y*w+x] = sum
			sum -= int(img.Pix[y*img.Stride+clampInt(x-r, 0, w-1)])
			sum += int(img.Pix[y*img.Stride+clampInt(x+r+1, 0, w-1)])
		}
	}

	out := image.NewGray(img.Rect)
	norm := k * k
	for x := 0; x < w; x++ {
		sum := 0
		for dy := -r; dy <= r; dy++ {
			sum += horiz[clampInt(dy, 0, h-1)*w+x]
		}
		for y := 0; y < h; y++ {
			out.Pix[y*out.Stride+x] = uint8((sum + norm/2) / norm)
			sum -= horiz[clampInt(y-r, 0, h-1)*w+x]
			sum += horiz[clampInt(y+r+1, 0, h-1)*w+x]
		}
	}
	return out
}

// normalizeMinMax stretches the intensity range to the full [0,255].
func normalizeMinMax(img *image.Gray) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	minV, maxV := 255, 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := int(img.Pix[y*img.Stride+x])
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}
	if maxV <= minV {
		return img
	}
	out := image.NewGray(img.Rect)
	span := maxV - minV
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := int(img.Pix[y*img.Stride+x])
			out.Pix[y*out.Stride+x] = uint8((v - minV) * 255 / span)
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampU8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
