package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// minMargin keeps tiny strokes from touching the crop edge.
const minMargin = 2

// Placement describes how a crop of the source maps into the target square.
type Placement struct {
	Crop  image.Rectangle // source region, half-open
	Scale float64
	Dst   image.Rectangle // region of the target covered by scaled content
}

// Normalizer crops around a bounding box and centers the result into a
// TargetSize square without distorting the aspect ratio.
type Normalizer struct {
	MarginRatio   float64
	TargetSize    int
	Interpolation resize.InterpolationFunction
}

func NewNormalizer(marginRatio float64, targetSize int) Normalizer {
	return Normalizer{
		MarginRatio:   marginRatio,
		TargetSize:    targetSize,
		Interpolation: resize.Bilinear,
	}
}

// Normalize is the default-interpolation form of Normalizer.Normalize.
func Normalize(buf *PixelBuffer, box BoundingBox, marginRatio float64, targetSize int) *PixelBuffer {
	return NewNormalizer(marginRatio, targetSize).Normalize(buf, box)
}

func (n Normalizer) Normalize(buf *PixelBuffer, box BoundingBox) *PixelBuffer {
	out, _ := n.normalize(buf, box)
	return out
}

func (n Normalizer) normalize(buf *PixelBuffer, box BoundingBox) (*PixelBuffer, Placement) {
	size := max(1, n.TargetSize)
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	if buf.Empty() {
		return FromImage(dst), Placement{}
	}

	p := Plan(box, buf.Width, buf.Height, n.MarginRatio, size)
	crop := buf.RGBA(p.Crop)
	scaled := resize.Resize(uint(p.Dst.Dx()), uint(p.Dst.Dy()), crop, n.Interpolation)
	draw.Draw(dst, p.Dst, scaled, scaled.Bounds().Min, draw.Src)
	return FromImage(dst), p
}

// Plan computes the margin-expanded crop and its centered placement.
// Margins are clamped to the buffer independently on each side, so a box
// near an edge gets less margin there rather than a shifted window.
func Plan(box BoundingBox, width, height int, marginRatio float64, targetSize int) Placement {
	box = clipBox(box, width, height)

	marginX := margin(box.Width(), marginRatio)
	marginY := margin(box.Height(), marginRatio)
	crop := image.Rect(
		max(box.Left-marginX, 0),
		max(box.Top-marginY, 0),
		min(box.Right+marginX, width-1)+1,
		min(box.Bottom+marginY, height-1)+1,
	)

	cw, ch := float64(crop.Dx()), float64(crop.Dy())
	t := float64(targetSize)
	scale := math.Min(t/cw, t/ch)

	sw := clampInt(int(math.Round(cw*scale)), 1, targetSize)
	sh := clampInt(int(math.Round(ch*scale)), 1, targetSize)
	ox := (targetSize - sw) / 2
	oy := (targetSize - sh) / 2

	return Placement{
		Crop:  crop,
		Scale: scale,
		Dst:   image.Rect(ox, oy, ox+sw, oy+sh),
	}
}

func margin(extent int, ratio float64) int {
	// 1e-9 absorbs float noise such as 20*0.3 landing just above 6.
	m := int(math.Ceil(float64(extent)*ratio - 1e-9))
	return max(m, minMargin)
}

func clipBox(box BoundingBox, width, height int) BoundingBox {
	box.Left = clampInt(box.Left, 0, width-1)
	box.Right = clampInt(box.Right, 0, width-1)
	box.Top = clampInt(box.Top, 0, height-1)
	box.Bottom = clampInt(box.Bottom, 0, height-1)
	if box.Left > box.Right {
		box.Left, box.Right = box.Right, box.Left
	}
	if box.Top > box.Bottom {
		box.Top, box.Bottom = box.Bottom, box.Top
	}
	return box
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

// ParseInterpolation maps a config name onto a resize kernel.
func ParseInterpolation(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bilinear":
		return resize.Bilinear, nil
	case "nearest", "nearestneighbor":
		return resize.NearestNeighbor, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "mitchell", "mitchellnetravali":
		return resize.MitchellNetravali, nil
	case "lanczos2":
		return resize.Lanczos2, nil
	case "lanczos3":
		return resize.Lanczos3, nil
	}
	return resize.Bilinear, fmt.Errorf("unknown interpolation %q", name)
}
