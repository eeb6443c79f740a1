package augment

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/dataset"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// DefaultScales are the zoom factors tried by ScaleAll and RandomScale.
var DefaultScales = []float64{1, 1.2, 1.4, 1.6}

// DefaultMaxDistance bounds the length of a random translation in voxels.
const DefaultMaxDistance = 5.0

// Precision is the number of decimals augmented intensities are rounded to.
const Precision = 6

// RandomAngles draws three rotation angles uniformly in [0, 360).
func RandomAngles(rng *rand.Rand) [3]float64 {
	return [3]float64{rng.Float64() * 360, rng.Float64() * 360, rng.Float64() * 360}
}

// RandomShift draws a translation whose squared length is
// (u*maxDistance)^2, split over the three axes at two sorted uniform cut
// points, each component with a random sign.
func RandomShift(rng *rand.Rand, maxDistance float64) [3]float64 {
	d := rng.Float64() * maxDistance
	dist := d * d
	cuts := []float64{rng.Float64() * dist, rng.Float64() * dist}
	sort.Float64s(cuts)
	parts := [3]float64{cuts[0], cuts[1] - cuts[0], dist - cuts[1]}
	var shift [3]float64
	for i, p := range parts {
		shift[i] = math.Sqrt(p)
		if rng.Intn(2) == 0 {
			shift[i] = -shift[i]
		}
	}
	return shift
}

// RandomRotate rotates v and m by RandomAngles.
func RandomRotate(rng *rand.Rand, v *volume.Volume, m *volume.Mask) (*volume.Volume, *volume.Mask, error) {
	rv, rm, err := Rotate(v, m, RandomAngles(rng))
	if err != nil {
		return nil, nil, err
	}
	return Round(rv, Precision), rm, nil
}

// RandomTranslate shifts v and m by RandomShift.
func RandomTranslate(rng *rand.Rand, v *volume.Volume, m *volume.Mask, maxDistance float64) (*volume.Volume, *volume.Mask, error) {
	tv, tm, err := Translate(v, m, RandomShift(rng, maxDistance))
	if err != nil {
		return nil, nil, err
	}
	return Round(tv, Precision), tm, nil
}

// RandomScale zooms v and m by a factor picked from scales.
func RandomScale(rng *rand.Rand, v *volume.Volume, m *volume.Mask, scales []float64) (*volume.Volume, *volume.Mask, error) {
	if len(scales) == 0 {
		return nil, nil, fmt.Errorf("no scales to pick from")
	}
	return Scale(v, m, scales[rng.Intn(len(scales))])
}

// Round rounds every voxel of v to the given number of decimals.
func Round(v *volume.Volume, decimals int) *volume.Volume {
	p := math.Pow(10, float64(decimals))
	out := v.Clone()
	for i, d := range out.Data {
		out.Data[i] = math.RoundToEven(d*p) / p
	}
	return out
}

// Options selects the transforms Expand applies.
type Options struct {
	Copies      int // augmented copies per sample
	Rotate      bool
	Translate   bool
	Scale       bool
	MaxDistance float64
	Scales      []float64
}

// DefaultOptions enables every transform with one copy per sample.
func DefaultOptions() Options {
	return Options{
		Copies:      1,
		Rotate:      true,
		Translate:   true,
		Scale:       true,
		MaxDistance: DefaultMaxDistance,
		Scales:      DefaultScales,
	}
}

// Expand returns s followed by opts.Copies augmented copies of every
// sample. Copies keep their label and take the patient id
// "<patient>_aug<n>" so patient-level folds keep them apart.
func Expand(rng *rand.Rand, s *dataset.Set, opts Options) (*dataset.Set, error) {
	out := &dataset.Set{Samples: append([]dataset.Sample(nil), s.Samples...)}
	for _, smp := range s.Samples {
		for n := 1; n <= opts.Copies; n++ {
			v, m := smp.Volume, smp.Mask
			var err error
			if opts.Scale {
				if v, m, err = RandomScale(rng, v, m, opts.Scales); err != nil {
					return nil, fmt.Errorf("scale %s: %w", smp.Patient, err)
				}
			}
			if opts.Rotate {
				if v, m, err = RandomRotate(rng, v, m); err != nil {
					return nil, fmt.Errorf("rotate %s: %w", smp.Patient, err)
				}
			}
			if opts.Translate {
				if v, m, err = RandomTranslate(rng, v, m, opts.MaxDistance); err != nil {
					return nil, fmt.Errorf("translate %s: %w", smp.Patient, err)
				}
			}
			out.Samples = append(out.Samples, dataset.Sample{
				Volume:  v,
				Mask:    m,
				Patient: fmt.Sprintf("%s_aug%d", smp.Patient, n),
				Label:   smp.Label,
			})
		}
	}
	return out, nil
}
