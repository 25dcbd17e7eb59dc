package preprocess

// gridDivisions controls the sampling stride of HasContent.
const gridDivisions = 20

// HasContent reports whether the canvas holds a stroke worth evaluating.
// It samples a coarse grid and succeeds once minStrokeArea/4 samples are
// brighter than threshold, so thin single strokes still register.
func HasContent(buf *PixelBuffer, threshold, minStrokeArea int) bool {
	if buf.Empty() {
		return false
	}
	step := max(1, min(buf.Width, buf.Height)/gridDivisions)
	need := max(1, minStrokeArea/4)

	count := 0
	for y := 0; y < buf.Height; y += step {
		for x := 0; x < buf.Width; x += step {
			if buf.Luminance(x, y) > threshold {
				count++
				if count >= need {
					return true
				}
			}
		}
	}
	return false
}
