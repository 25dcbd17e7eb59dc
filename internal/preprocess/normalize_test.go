package preprocess_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/hwr-api/internal/preprocess"
)

func TestPlan_MarginAndCenter(t *testing.T) {
	box := preprocess.BoundingBox{Left: 40, Top: 40, Right: 59, Bottom: 59}
	p := preprocess.Plan(box, 100, 100, 0.3, 28)

	// ceil(20*0.3) = 6 on each side.
	assert.Equal(t, image.Rect(34, 34, 66, 66), p.Crop)
	assert.InDelta(t, 28.0/32.0, p.Scale, 1e-9)
	assert.Equal(t, image.Rect(0, 0, 28, 28), p.Dst)
}

func TestPlan_MinimumMargin(t *testing.T) {
	box := preprocess.BoundingBox{Left: 50, Top: 50, Right: 50, Bottom: 50}
	p := preprocess.Plan(box, 100, 100, 0.3, 28)
	assert.Equal(t, image.Rect(48, 48, 53, 53), p.Crop)
}

func TestPlan_AsymmetricClampAtEdge(t *testing.T) {
	box := preprocess.BoundingBox{Left: 0, Top: 0, Right: 9, Bottom: 9}
	p := preprocess.Plan(box, 100, 100, 0.3, 28)
	assert.Equal(t, image.Rect(0, 0, 13, 13), p.Crop)

	box = preprocess.BoundingBox{Left: 95, Top: 1, Right: 99, Bottom: 20}
	p = preprocess.Plan(box, 100, 100, 0.3, 28)
	// x: margin max(ceil(1.5),2)=2; y: ceil(6)=6
	assert.Equal(t, image.Rect(93, 0, 100, 27), p.Crop)
}

func TestPlan_ScaleNeverStretches(t *testing.T) {
	cases := []struct {
		name string
		w, h int
		box  preprocess.BoundingBox
	}{
		{"square", 100, 100, preprocess.BoundingBox{Left: 10, Top: 10, Right: 89, Bottom: 89}},
		{"wide", 400, 100, preprocess.BoundingBox{Left: 0, Top: 0, Right: 399, Bottom: 99}},
		{"tall", 100, 400, preprocess.BoundingBox{Left: 0, Top: 0, Right: 99, Bottom: 399}},
		{"tiny", 3, 3, preprocess.BoundingBox{Left: 1, Top: 1, Right: 1, Bottom: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := preprocess.Plan(tc.box, tc.w, tc.h, 0.3, 28)
			cw, ch := float64(p.Crop.Dx()), float64(p.Crop.Dy())
			assert.LessOrEqual(t, p.Scale, 28/cw+1e-12)
			assert.LessOrEqual(t, p.Scale, 28/ch+1e-12)
			assert.True(t, p.Dst.In(image.Rect(0, 0, 28, 28)), "dst %v inside target", p.Dst)
		})
	}
}

func TestNormalize_AlwaysTargetSquare(t *testing.T) {
	cases := []struct {
		name       string
		w, h       int
		wantW      int
		wantH      int
		tolerance  int
	}{
		{"1:1", 100, 100, 28, 28, 1},
		{"4:1", 400, 100, 28, 7, 1},
		{"1:4", 100, 400, 7, 28, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Ink covers the whole buffer so the margin is clamped away.
			buf := fillRect(canvas(tc.w, tc.h), 0, 0, tc.w, tc.h, 255)
			box := preprocess.ExtractBounds(buf, 15)

			out := preprocess.Normalize(buf, box, 0.3, 28)
			require.Equal(t, 28, out.Width)
			require.Equal(t, 28, out.Height)
			require.Len(t, out.Pix, 28*28*3)

			ink := inkBounds(out)
			assert.InDelta(t, tc.wantW, ink.Width(), float64(tc.tolerance))
			assert.InDelta(t, tc.wantH, ink.Height(), float64(tc.tolerance))
		})
	}
}

func TestNormalize_CentersContent(t *testing.T) {
	buf := fillRect(canvas(400, 100), 0, 0, 400, 100, 255)
	out := preprocess.Normalize(buf, preprocess.FullBox(buf), 0.3, 28)

	ink := inkBounds(out)
	top := ink.Top
	bottom := 27 - ink.Bottom
	assert.InDelta(t, top, bottom, 1, "vertical padding should be balanced")

	r, g, b := out.RGB(0, 0)
	assert.Equal(t, [3]uint8{0, 0, 0}, [3]uint8{r, g, b}, "padding is black")
}

func TestNormalize_DoesNotMutateSource(t *testing.T) {
	buf := fillRect(canvas(60, 60), 20, 20, 40, 40, 255)
	before := buf.Clone()

	preprocess.Normalize(buf, preprocess.ExtractBounds(buf, 15), 0.3, 28)
	assert.Equal(t, before.Pix, buf.Pix)
}

func TestNormalize_BoxOutsideBufferIsClipped(t *testing.T) {
	buf := fillRect(canvas(50, 50), 10, 10, 20, 20, 255)
	box := preprocess.BoundingBox{Left: -20, Top: -5, Right: 500, Bottom: 80}

	out := preprocess.Normalize(buf, box, 0.3, 28)
	assert.Equal(t, 28, out.Width)
	assert.Equal(t, 28, out.Height)
}

func TestParseInterpolation(t *testing.T) {
	for _, name := range []string{"", "bilinear", "nearest", "bicubic", "mitchell", "lanczos2", "Lanczos3"} {
		_, err := preprocess.ParseInterpolation(name)
		assert.NoError(t, err, name)
	}
	_, err := preprocess.ParseInterpolation("sinc")
	assert.Error(t, err)
}
