package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// Features flattens a multi-channel slice (X, Y, C) into a feature vector.
// Each channel is resized to side x side and then average-pooled 2x2 pools
// times; pooling stops early once a channel is a single pixel. Values are in
// [0, 1], stretched over the slice's own range.
func Features(slice *volume.Volume, side, pools int) ([]float64, error) {
	if side <= 0 {
		return nil, fmt.Errorf("invalid feature side %d", side)
	}
	lo, hi := slice.MinMax()
	span := hi - lo

	var out []float64
	for c := 0; c < slice.Z; c++ {
		img := image.NewGray(image.Rect(0, 0, slice.Y, slice.X))
		for x := 0; x < slice.X; x++ {
			for y := 0; y < slice.Y; y++ {
				g := 0.0
				if span > 0 {
					g = (slice.At(x, y, c) - lo) / span
				}
				img.SetGray(y, x, color.Gray{Y: uint8(g*255 + 0.5)})
			}
		}
		resized := imaging.Resize(img, side, side, imaging.Linear)

		plane := make([][]float64, side)
		for r := 0; r < side; r++ {
			plane[r] = make([]float64, side)
			for col := 0; col < side; col++ {
				plane[r][col] = float64(resized.NRGBAAt(col, r).R) / 255
			}
		}
		for p := 0; p < pools && len(plane) > 1; p++ {
			plane = pool2x2(plane)
		}
		for _, row := range plane {
			out = append(out, row...)
		}
	}
	return out, nil
}

// FeatureLen returns the length of the vector Features produces.
func FeatureLen(side, pools, channels int) int {
	for p := 0; p < pools && side > 1; p++ {
		side /= 2
	}
	return side * side * channels
}

// pool2x2 averages non-overlapping 2x2 blocks. An odd trailing row or column
// is dropped.
func pool2x2(plane [][]float64) [][]float64 {
	n := len(plane) / 2
	out := make([][]float64, n)
	for r := 0; r < n; r++ {
		out[r] = make([]float64, n)
		for c := 0; c < n; c++ {
			out[r][c] = (plane[2*r][2*c] + plane[2*r][2*c+1] +
				plane[2*r+1][2*c] + plane[2*r+1][2*c+1]) / 4
		}
	}
	return out
}
