package preprocess

var blurKernel = [3][3]float32{
	{1, 2, 1},
	{2, 4, 2},
	{1, 2, 1},
}

const blurKernelSum = 16

// Blur applies a single 3x3 Gaussian pass to interior pixels and returns a
// new grayscale buffer. Border pixels are copied unchanged.
func Blur(buf *PixelBuffer) *PixelBuffer {
	if buf.Empty() {
		return NewPixelBuffer(0, 0)
	}
	out := buf.Clone()
	w, h := buf.Width, buf.Height

	gray := make([]float32, w*h)
	for i := range gray {
		gray[i] = float32(int(buf.Pix[i*3])+int(buf.Pix[i*3+1])+int(buf.Pix[i*3+2])) / 3
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var sum float32
			for ky := -1; ky <= 1; ky++ {
				row := (y + ky) * w
				for kx := -1; kx <= 1; kx++ {
					sum += gray[row+x+kx] * blurKernel[ky+1][kx+1]
				}
			}
			v := uint8(clampInt(int(sum/blurKernelSum), 0, 255))
			out.SetRGB(x, y, v, v, v)
		}
	}
	return out
}
