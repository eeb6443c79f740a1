package dataset

import (
	"fmt"
	"math"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// DICOMSpacing is the voxel spacing (x, y, z) of the source scans in mm.
var DICOMSpacing = [3]float64{4.07283, 4.07283, 5.0}

// Interpolate resamples every sample onto a grid of cubic voxels whose side
// is the smallest spacing. Voxel i along an axis sits at i*spacing; the new
// grid runs from 0 up to the last original voxel. Volumes use trilinear
// interpolation; masks are interpolated the same way and thresholded at 0.5.
// progress, when non-nil, is called after each sample.
func Interpolate(s *Set, spacing [3]float64, progress func(done, total int)) (*Set, error) {
	side := math.Inf(1)
	for _, sp := range spacing {
		if sp <= 0 {
			return nil, fmt.Errorf("invalid voxel spacing %v", spacing)
		}
		side = math.Min(side, sp)
	}
	out := &Set{Samples: make([]Sample, len(s.Samples))}
	for i, smp := range s.Samples {
		if sh := smp.Volume.Shape; sh.X == 0 || sh.Y == 0 || sh.Z == 0 {
			return nil, fmt.Errorf("sample %d (%s) is %s: %w", i, smp.Patient, sh, ErrEmptyVolume)
		}
		vol := resample(smp.Volume, spacing, side)
		maskVol := resample(maskToVolume(smp.Mask), spacing, side)
		m := volume.NewMask(maskVol.X, maskVol.Y, maskVol.Z)
		for j, v := range maskVol.Data {
			m.Data[j] = v >= 0.5
		}
		out.Samples[i] = Sample{Volume: vol, Mask: m, Patient: smp.Patient, Label: smp.Label}
		if progress != nil {
			progress(i+1, len(s.Samples))
		}
	}
	return out, nil
}

// resampledLen returns the number of points of arange(0, last+0.01, side).
func resampledLen(n int, spacing, side float64) int {
	stop := float64(n-1)*spacing + 0.01
	return int(math.Ceil(stop / side))
}

func resample(v *volume.Volume, spacing [3]float64, side float64) *volume.Volume {
	nx := resampledLen(v.X, spacing[0], side)
	ny := resampledLen(v.Y, spacing[1], side)
	nz := resampledLen(v.Z, spacing[2], side)
	out := volume.New(nx, ny, nz)
	for i := 0; i < nx; i++ {
		x0, x1, fx := axisWeights(float64(i)*side/spacing[0], v.X)
		for j := 0; j < ny; j++ {
			y0, y1, fy := axisWeights(float64(j)*side/spacing[1], v.Y)
			for k := 0; k < nz; k++ {
				z0, z1, fz := axisWeights(float64(k)*side/spacing[2], v.Z)
				c00 := lerp(v.At(x0, y0, z0), v.At(x1, y0, z0), fx)
				c10 := lerp(v.At(x0, y1, z0), v.At(x1, y1, z0), fx)
				c01 := lerp(v.At(x0, y0, z1), v.At(x1, y0, z1), fx)
				c11 := lerp(v.At(x0, y1, z1), v.At(x1, y1, z1), fx)
				out.Set(i, j, k, lerp(lerp(c00, c10, fy), lerp(c01, c11, fy), fz))
			}
		}
	}
	return out
}

// axisWeights returns the bracketing grid indices of a fractional position
// and the weight of the upper one. Positions are clamped to the grid.
func axisWeights(pos float64, n int) (int, int, float64) {
	if pos <= 0 || n == 1 {
		return 0, 0, 0
	}
	last := float64(n - 1)
	if pos >= last {
		return n - 1, n - 1, 0
	}
	lo := int(math.Floor(pos))
	return lo, lo + 1, pos - float64(lo)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func maskToVolume(m *volume.Mask) *volume.Volume {
	v := volume.New(m.X, m.Y, m.Z)
	for i, on := range m.Data {
		if on {
			v.Data[i] = 1
		}
	}
	return v
}
