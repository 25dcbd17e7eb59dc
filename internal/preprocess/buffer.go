package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

var ErrInvalidBuffer = errors.New("invalid pixel buffer")

// PixelBuffer is an RGB raster stored row-major with three bytes per pixel.
// Buffers handed to the pipeline are snapshots and are never mutated by it.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelBuffer allocates a black buffer of the given size.
func NewPixelBuffer(width, height int) *PixelBuffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// FromRGB copies a packed RGB slice into a new buffer.
func FromRGB(width, height int, pix []uint8) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidBuffer, width, height)
	}
	if len(pix) != width*height*3 {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidBuffer, width*height*3, len(pix))
	}
	buf := NewPixelBuffer(width, height)
	copy(buf.Pix, pix)
	return buf, nil
}

// FromARGB converts packed 0xAARRGGBB pixels, the layout most drawing
// surfaces export. Alpha is ignored.
func FromARGB(width, height int, pixels []uint32) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidBuffer, width, height)
	}
	if len(pixels) != width*height {
		return nil, fmt.Errorf("%w: expected %d pixels, got %d", ErrInvalidBuffer, width*height, len(pixels))
	}
	buf := NewPixelBuffer(width, height)
	for i, p := range pixels {
		buf.Pix[i*3] = uint8(p >> 16)
		buf.Pix[i*3+1] = uint8(p >> 8)
		buf.Pix[i*3+2] = uint8(p)
	}
	return buf, nil
}

// FromImage snapshots any image.Image. Transparent areas become black because
// RGBA() is alpha-premultiplied, matching a cleared drawing canvas.
func FromImage(img image.Image) *PixelBuffer {
	b := img.Bounds()
	buf := NewPixelBuffer(b.Dx(), b.Dy())
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < buf.Height; y++ {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride:]
			for x := 0; x < buf.Width; x++ {
				s := (x + b.Min.X - rgba.Rect.Min.X) * 4
				d := (y*buf.Width + x) * 3
				buf.Pix[d] = row[s]
				buf.Pix[d+1] = row[s+1]
				buf.Pix[d+2] = row[s+2]
			}
		}
		return buf
	}
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			buf.SetRGB(x, y, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
		}
	}
	return buf
}

func (b *PixelBuffer) Empty() bool {
	return b == nil || b.Width <= 0 || b.Height <= 0
}

func (b *PixelBuffer) RGB(x, y int) (r, g, bl uint8) {
	i := (y*b.Width + x) * 3
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

func (b *PixelBuffer) SetRGB(x, y int, r, g, bl uint8) {
	i := (y*b.Width + x) * 3
	b.Pix[i] = r
	b.Pix[i+1] = g
	b.Pix[i+2] = bl
}

// Luminance is the unweighted integer mean of the three channels.
func (b *PixelBuffer) Luminance(x, y int) int {
	i := (y*b.Width + x) * 3
	return (int(b.Pix[i]) + int(b.Pix[i+1]) + int(b.Pix[i+2])) / 3
}

func (b *PixelBuffer) Clone() *PixelBuffer {
	c := &PixelBuffer{Width: b.Width, Height: b.Height, Pix: make([]uint8, len(b.Pix))}
	copy(c.Pix, b.Pix)
	return c
}

// RGBA copies the rectangle r (clipped to the buffer) into an *image.RGBA
// whose bounds start at the origin.
func (b *PixelBuffer) RGBA(r image.Rectangle) *image.RGBA {
	r = r.Intersect(b.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			s := ((r.Min.Y+y)*b.Width + r.Min.X + x) * 3
			d := y*out.Stride + x*4
			out.Pix[d] = b.Pix[s]
			out.Pix[d+1] = b.Pix[s+1]
			out.Pix[d+2] = b.Pix[s+2]
			out.Pix[d+3] = 0xff
		}
	}
	return out
}

// image.Image implementation, used by scalers and encoders.

func (b *PixelBuffer) ColorModel() color.Model { return color.RGBAModel }

func (b *PixelBuffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.Width, b.Height) }

func (b *PixelBuffer) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.RGBA{A: 0xff}
	}
	r, g, bl := b.RGB(x, y)
	return color.RGBA{R: r, G: g, B: bl, A: 0xff}
}
