package imaging

import "image"

const (
	claheTiles     = 8
	claheClipLimit = 2.0
)

// enhanceContrast runs contrast-limited adaptive histogram equalization:
// the image is divided into a tile grid, each tile gets a clipped
// equalization mapping, and per-pixel output bilinearly interpolates
// between the four surrounding tile mappings to avoid visible seams.
func enhanceContrast(img *image.Gray) (*image.Gray, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w < claheTiles || h < claheTiles {
		return img, nil
	}

	tileW := (w + claheTiles - 1) / claheTiles
	tileH := (h + claheTiles - 1) / claheTiles

	maps := make([][256]uint8, claheTiles*claheTiles)
	for ty := 0; ty < claheTiles; ty++ {
		for tx := 0; tx < claheTiles; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := clampInt(x0+tileW, 0, w), clampInt(y0+tileH, 0, h)
			maps[ty*claheTiles+tx] = tileMapping(img, x0, y0, x1, y1)
		}
	}

	out := image.NewGray(img.Rect)
	for y := 0; y < h; y++ {
		// Position relative to tile centers drives the interpolation
		// weights; border pixels clamp to the edge tiles.
		fy := (float64(y) - float64(tileH)/2) / float64(tileH)
		ty0 := int(fy)
		if fy < 0 {
			ty0 = 0
			fy = 0
		}
		ty1 := clampInt(ty0+1, 0, claheTiles-1)
		if ty0 > claheTiles-1 {
			ty0 = claheTiles - 1
			fy = float64(ty0)
		}
		wy := fy - float64(ty0)
		if wy < 0 {
			wy = 0
		} else if wy > 1 {
			wy = 1
		}

		for x := 0; x < w; x++ {
			fx := (float64(x) - float64(tileW)/2) / float64(tileW)
			tx0 := int(fx)
			if fx < 0 {
				tx0 = 0
				fx = 0
			}
			tx1 := clampInt(tx0+1, 0, claheTiles-1)
			if tx0 > claheTiles-1 {
				tx0 = claheTiles - 1
				fx = float64(tx0)
			}
			wx := fx - float64(tx0)
			if wx < 0 {
				wx = 0
			} else if wx > 1 {
				wx = 1
			}

			v := img.Pix[y*img.Stride+x]
			tl := float64(maps[ty0*claheTiles+tx0][v])
			tr := float64(maps[ty0*claheTiles+tx1][v])
			bl := float64(maps[ty1*claheTiles+tx0][v])
			br := float64(maps[ty1*claheTiles+tx1][v])
			top := tl*(1-wx) + tr*wx
			bottom := bl*(1-wx) + br*wx
			out.Pix[y*out.Stride+x] = uint8(top*(1-wy) + bottom*wy + 0.5)
		}
	}
	return out, nil
}

// tileMapping builds the clipped-equalization lookup table for one tile.
func tileMapping(img *image.Gray, x0, y0, x1, y1 int) [256]uint8 {
	var hist [256]int
	total := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[img.Pix[y*img.Stride+x]]++
			total++
		}
	}

	var mapping [256]uint8
	if total == 0 {
		for i := range mapping {
			mapping[i] = uint8(i)
		}
		return mapping
	}

	clip := int(claheClipLimit * float64(total) / 256)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > clip {
			excess += hist[i] - clip
			hist[i] = clip
		}
	}
	// Redistribute the clipped mass evenly across all bins.
	share := excess / 256
	rem := excess % 256
	for i := range hist {
		hist[i] += share
		if i < rem {
			hist[i]++
		}
	}

	cdf := 0
	for i := range hist {
		cdf += hist[i]
		mapping[i] = uint8((cdf*255 + total/2) / total)
	}
	return mapping
}
