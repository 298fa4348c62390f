package infer

import (
	"fmt"
	"image"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Preprocess decodes an uploaded image and turns it into the flat input
// vector the model expects: resized to the model's input edge, channels
// first, each channel normalized with the model's mean and std.
func Preprocess(r io.Reader, m *Model) ([]float64, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	size := m.InputSize
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	plane := size * size
	out := make([]float64, m.Channels*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			px := dst.RGBAAt(x, y)
			vals := [4]float64{
				float64(px.R) / 255,
				float64(px.G) / 255,
				float64(px.B) / 255,
				float64(px.A) / 255,
			}
			for c := 0; c < m.Channels; c++ {
				out[c*plane+y*size+x] = (vals[c] - m.Mean[c]) / m.Std[c]
			}
		}
	}
	return out, nil
}
