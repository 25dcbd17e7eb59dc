package preprocess

// Tensor is a single-channel float image in row-major HWC layout.
type Tensor struct {
	Height   int
	Width    int
	Channels int
	Values   []float32
}

// Shape is the NHWC shape for a batch of one.
func (t Tensor) Shape() []int64 {
	return []int64{1, int64(t.Height), int64(t.Width), int64(t.Channels)}
}

func (t Tensor) Len() int { return len(t.Values) }

// ToTensor converts the buffer with the inverted polarity the classifier was
// trained on: each value is 1 - mean(r,g,b)/255.
func ToTensor(buf *PixelBuffer) Tensor {
	return BuildTensor(buf, true)
}

// BuildTensor converts the buffer to normalized luminance, optionally inverted.
func BuildTensor(buf *PixelBuffer, invert bool) Tensor {
	if buf.Empty() {
		return Tensor{Channels: 1}
	}
	values := make([]float32, buf.Width*buf.Height)
	for i := range values {
		gray := float32(int(buf.Pix[i*3])+int(buf.Pix[i*3+1])+int(buf.Pix[i*3+2])) / 3 / 255
		if invert {
			gray = 1 - gray
		}
		values[i] = min(max(gray, 0), 1)
	}
	return Tensor{
		Height:   buf.Height,
		Width:    buf.Width,
		Channels: 1,
		Values:   values,
	}
}
