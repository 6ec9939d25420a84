package imaging

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kvolkov/docsense/internal/core/domain"
)

// Decode parses raw image bytes in any of the supported raster formats
// (JPEG, PNG, GIF, WebP, BMP, TIFF).
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode image", err)
	}
	return img, nil
}
