package preprocess_test

import (
	"github.com/Brownie44l1/hwr-api/internal/preprocess"
)

// canvas returns a black buffer.
func canvas(w, h int) *preprocess.PixelBuffer {
	return preprocess.NewPixelBuffer(w, h)
}

// fillRect paints an inclusive-exclusive rectangle with a gray value.
func fillRect(buf *preprocess.PixelBuffer, x0, y0, x1, y1 int, v uint8) *preprocess.PixelBuffer {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			buf.SetRGB(x, y, v, v, v)
		}
	}
	return buf
}

// inkBounds returns the bounding box of the non-background content of a
// normalized buffer.
func inkBounds(buf *preprocess.PixelBuffer) preprocess.BoundingBox {
	return preprocess.ExtractBounds(buf, 15)
}
