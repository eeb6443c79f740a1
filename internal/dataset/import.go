package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/imaging"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// Volume formats applied at import.
const (
	// FormatFull keeps the whole volume.
	FormatFull = ""
	// FormatCut crops the volume to the mask bounding box.
	FormatCut = "cut"
	// FormatMarginCut crops to the mask bounding box plus CutMargin voxels.
	FormatMarginCut = "margincut"
)

// CutMargin is the margin kept by FormatMarginCut.
const CutMargin = 3

// RawName is the stored name of an imported set: "dataset" followed by 1
// for FormatCut or 2 for FormatMarginCut.
func RawName(format string) string {
	switch format {
	case FormatCut:
		return "dataset1"
	case FormatMarginCut:
		return "dataset2"
	}
	return "dataset"
}

// ImportOptions controls Import.
type ImportOptions struct {
	// Format is one of FormatFull, FormatCut and FormatMarginCut.
	Format string
	// HealthyMargin, when non-negative, drops healthy top and bottom slices
	// keeping that many on each side. Negative keeps every slice.
	HealthyMargin int
	// Workers bounds the number of patients read at once. Zero uses
	// GOMAXPROCS.
	Workers int
}

// DefaultImportOptions keeps volumes whole.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{HealthyMargin: -1}
}

// Import reads <root>/<label>/<patient>/image_NNN.png and mask_NNN.png
// stacks. Label directories must be named 0 or 1; other entries are
// skipped. Patients are ordered by label, then by name.
func Import(ctx context.Context, root string, opts ImportOptions) (*Set, error) {
	switch opts.Format {
	case FormatFull, FormatCut, FormatMarginCut:
	default:
		return nil, fmt.Errorf("unknown volume format %q", opts.Format)
	}

	type entry struct {
		dir     string
		patient string
		label   int
	}
	var entries []entry
	for _, label := range []int{0, 1} {
		labelDir := filepath.Join(root, strconv.Itoa(label))
		dirs, err := os.ReadDir(labelDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", labelDir, err)
		}
		for _, d := range dirs {
			if d.IsDir() {
				entries = append(entries, entry{filepath.Join(labelDir, d.Name()), d.Name(), label})
			}
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no patients under %s: %w", root, ErrEmptySet)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	samples := make([]Sample, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			smp, err := importPatient(e.dir, opts)
			if err != nil {
				return fmt.Errorf("patient %s: %w", e.patient, err)
			}
			smp.Patient, smp.Label = e.patient, e.label
			samples[i] = smp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Set{Samples: samples}, nil
}

func importPatient(dir string, opts ImportOptions) (Sample, error) {
	images, err := stackFiles(dir, "image_")
	if err != nil {
		return Sample{}, err
	}
	masks, err := stackFiles(dir, "mask_")
	if err != nil {
		return Sample{}, err
	}
	if len(images) != len(masks) {
		return Sample{}, fmt.Errorf("%d image slices but %d mask slices: %w", len(images), len(masks), ErrLengthMismatch)
	}

	cache := imaging.NewImageCache()
	defer cache.Clear()
	vol, err := imaging.LoadStack(cache, images)
	if err != nil {
		return Sample{}, err
	}
	mask, err := imaging.LoadMaskStack(cache, masks)
	if err != nil {
		return Sample{}, err
	}
	if vol.Shape != mask.Shape {
		return Sample{}, fmt.Errorf("image %s, mask %s: %w", vol.Shape, mask.Shape, volume.ErrShapeMismatch)
	}

	if opts.HealthyMargin >= 0 {
		if vol, mask, err = volume.TrimHealthy(vol, mask, opts.HealthyMargin); err != nil {
			return Sample{}, err
		}
	}
	switch opts.Format {
	case FormatCut:
		vol, mask, err = volume.CropToMask(vol, mask, 0)
	case FormatMarginCut:
		vol, mask, err = volume.CropToMask(vol, mask, CutMargin)
	}
	if err != nil {
		return Sample{}, err
	}
	return Sample{Volume: vol, Mask: mask}, nil
}

// stackFiles lists dir/<prefix>NNN.png sorted by slice number.
func stackFiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	type file struct {
		path string
		n    int
	}
	var files []file
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".png") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".png"))
		if err != nil {
			continue
		}
		files = append(files, file{filepath.Join(dir, name), n})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s*.png slices in %s", prefix, dir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}
