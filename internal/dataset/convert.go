package dataset

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ConvertOptions controls how 3D samples become 2D slices.
type ConvertOptions struct {
	// SlicesPerSample is the number of adjacent z-slices stacked as channels.
	SlicesPerSample int
	// Rotate adds the 90, 180 and 270 degree rotations of every volume.
	Rotate bool
	// Normalize rescales every volume to [0, 1] before slicing.
	Normalize bool
	// Workers bounds the number of volumes converted at once. Zero uses
	// GOMAXPROCS.
	Workers int
	// Progress, when non-nil, is called after each volume.
	Progress func(done, total int)
}

// DefaultConvertOptions mirrors the original organised datasets: three
// channel slices, normalised, no rotations.
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{SlicesPerSample: 3, Normalize: true}
}

// Convert2D cuts every volume into windows of SlicesPerSample adjacent
// slices. With Rotate, each volume is also rotated in the x-y plane by 90,
// 180 and 270 degrees and the rotated slices carry the patient id with the
// angle appended ("p01" becomes "p0190"). Masks are cut the same way. The
// output order matches a sequential walk over samples, rotations and
// windows.
func Convert2D(ctx context.Context, s *Set, opts ConvertOptions) (*SliceSet, error) {
	if opts.SlicesPerSample <= 0 {
		return nil, fmt.Errorf("invalid slices per sample %d", opts.SlicesPerSample)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	parts := make([][]Slice, len(s.Samples))
	var mu sync.Mutex
	done := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range s.Samples {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slices, err := convertSample(s.Samples[i], opts)
			if err != nil {
				return fmt.Errorf("sample %d (%s): %w", i, s.Samples[i].Patient, err)
			}
			parts[i] = slices
			if opts.Progress != nil {
				mu.Lock()
				done++
				opts.Progress(done, len(s.Samples))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &SliceSet{}
	for _, p := range parts {
		out.Slices = append(out.Slices, p...)
	}
	return out, nil
}

func convertSample(smp Sample, opts ConvertOptions) ([]Slice, error) {
	vol := smp.Volume
	if opts.Normalize {
		vol = vol.Clone()
		vol.Normalize()
	}
	rotations := 1
	if opts.Rotate {
		rotations = 4
	}
	var out []Slice
	for r := 0; r < rotations; r++ {
		rv := vol.Rot90(r)
		rm := smp.Mask.Rot90(r)
		patient := smp.Patient
		if r != 0 {
			patient += strconv.Itoa(r * 90)
		}
		for idx := 0; idx+opts.SlicesPerSample <= rv.Z; idx++ {
			img, err := rv.Window(idx, opts.SlicesPerSample)
			if err != nil {
				return nil, err
			}
			m, err := rm.Window(idx, opts.SlicesPerSample)
			if err != nil {
				return nil, err
			}
			out = append(out, Slice{Image: img, Mask: m, Patient: patient, Label: smp.Label})
		}
	}
	return out, nil
}
