// Package preprocess turns an arbitrary canvas snapshot into the fixed-size
// tensor the handwriting classifier expects.
//
// Every function here is total and allocation-only: degenerate input takes an
// explicit fallback path instead of returning an error, and no state is
// shared between calls, so independent evaluations can run concurrently.
package preprocess

import "github.com/nfnt/resize"

type Options struct {
	Threshold     int
	MarginRatio   float64
	MinStrokeArea int
	TargetSize    int
	Invert        bool
	Interpolation resize.InterpolationFunction
}

func DefaultOptions() Options {
	return Options{
		Threshold:     15,
		MarginRatio:   0.3,
		MinStrokeArea: 100,
		TargetSize:    28,
		Invert:        true,
		Interpolation: resize.Bilinear,
	}
}

// Result carries the intermediate products of a preprocessing run.
type Result struct {
	Box       BoundingBox
	Placement Placement
	Image     *PixelBuffer // normalized and smoothed target square
	Tensor    Tensor
}

// Run executes bounds extraction, normalization, smoothing and tensor
// conversion. It does not apply the content gate; see HasContent.
func Run(buf *PixelBuffer, opts Options) Result {
	box := ExtractBounds(buf, opts.Threshold)

	n := Normalizer{
		MarginRatio:   opts.MarginRatio,
		TargetSize:    opts.TargetSize,
		Interpolation: opts.Interpolation,
	}
	normalized, placement := n.normalize(buf, box)
	smoothed := Blur(normalized)

	return Result{
		Box:       box,
		Placement: placement,
		Image:     smoothed,
		Tensor:    BuildTensor(smoothed, opts.Invert),
	}
}
