package volume

import (
	"math"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/stats"
)

// StatisticsHeader names the columns produced by Statistics.Row.
var StatisticsHeader = []string{
	"mean", "median", "stddev", "surface", "volume", "surf_vol_ratio",
	"dissimilarity", "correlation", "asm",
}

// Statistics describes the intensities of a volume and the shape of its mask.
type Statistics struct {
	Mean         float64      `json:"mean"`
	Median       float64      `json:"median"`
	StdDev       float64      `json:"stddev"`
	Surface      int          `json:"surface"`
	Voxels       int          `json:"volume"`
	SurfaceRatio float64      `json:"surf_vol_ratio"`
	Texture      GLCMFeatures `json:"texture"`
}

// Compute returns the statistics of v and m. When scale is non-zero the
// intensities are multiplied by it first (use 255 for [0,1] volumes).
func Compute(v *Volume, m *Mask, scale float64) (*Statistics, error) {
	if v.Shape != m.Shape {
		return nil, ErrShapeMismatch
	}
	data := v
	if scale != 0 && scale != 1 {
		data = v.Clone()
		for i := range data.Data {
			data.Data[i] *= scale
		}
	}
	voxels := m.Count()
	surface := Surface(m)
	ratio := math.NaN()
	if voxels > 0 {
		ratio = float64(surface) / float64(voxels)
	}
	return &Statistics{
		Mean:         stats.Mean(data.Data),
		Median:       stats.Median(data.Data),
		StdDev:       stats.Std(data.Data),
		Surface:      surface,
		Voxels:       voxels,
		SurfaceRatio: ratio,
		Texture:      GLCM(data),
	}, nil
}

// Row returns the statistics in StatisticsHeader order.
func (s *Statistics) Row() []float64 {
	return []float64{
		s.Mean, s.Median, s.StdDev,
		float64(s.Surface), float64(s.Voxels), s.SurfaceRatio,
		s.Texture.Dissimilarity, s.Texture.Correlation, s.Texture.ASM,
	}
}
