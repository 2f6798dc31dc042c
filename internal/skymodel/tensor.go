package skymodel

import (
	"bytes"
	"fmt"
	"image"

	// Sky camera uploads arrive as jpeg, png or gif.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/mkallio/skycast-go/internal/errors"
)

// PrepareImageTensor decodes raw image bytes, resizes them to a square of the
// given size with bilinear interpolation and returns a float32 slice laid out
// in NHWC order with shape (1, size, size, 3). Pixel values are normalized to
// the 0-1 range.
func PrepareImageTensor(data []byte, size int) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(fmt.Errorf("decoding sky image: %w", err)).
			Component("skymodel").
			Category(errors.CategoryImageDecode).
			Context("bytes", len(data)).
			Build()
	}

	resized := resizeToSquare(img, size)

	// NHWC with batch=1: length = 1 * size * size * 3
	out := make([]float32, 1*size*size*3)

	bounds := resized.Bounds()
	// iterate rows (y) then columns (x) so memory layout matches NHWC
	for y := range size {
		for x := range size {
			r32, g32, b32, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Convert 16-bit color to 8-bit
			r := float32(r32 >> 8)
			g := float32(g32 >> 8)
			b := float32(b32 >> 8)

			base := ((y * size) + x) * 3
			out[base+0] = r / 255.0
			out[base+1] = g / 255.0
			out[base+2] = b / 255.0
		}
	}

	return out, nil
}

// resizeToSquare scales the image to size x size. Images already at the target
// resolution are drawn through unchanged.
func resizeToSquare(img image.Image, size int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}
