package preprocess

import "image"

// BoundingBox is an inclusive pixel rectangle in source coordinates.
type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (b BoundingBox) Width() int  { return b.Right - b.Left + 1 }
func (b BoundingBox) Height() int { return b.Bottom - b.Top + 1 }

// Rect converts to a half-open image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right+1, b.Bottom+1)
}

// FullBox spans the whole buffer.
func FullBox(buf *PixelBuffer) BoundingBox {
	if buf.Empty() {
		return BoundingBox{}
	}
	return BoundingBox{Left: 0, Top: 0, Right: buf.Width - 1, Bottom: buf.Height - 1}
}

// ExtractBounds scans every pixel and returns the tightest box around those
// brighter than threshold. A blank buffer yields the full extent.
func ExtractBounds(buf *PixelBuffer, threshold int) BoundingBox {
	if buf.Empty() {
		return BoundingBox{}
	}
	left, top := buf.Width, buf.Height
	right, bottom := -1, -1

	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			if buf.Luminance(x, y) <= threshold {
				continue
			}
			if x < left {
				left = x
			}
			if x > right {
				right = x
			}
			if y < top {
				top = y
			}
			if y > bottom {
				bottom = y
			}
		}
	}

	if left > right || top > bottom {
		return FullBox(buf)
	}
	return BoundingBox{Left: left, Top: top, Right: right, Bottom: bottom}
}
