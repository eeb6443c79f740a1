package dataset

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// Subset names of an organised dataset.
const (
	TrainName = "training_set"
	TestName  = "test_set"
)

// Ext is the extension of every stored file.
const Ext = ".gob.gz"

// ErrMissingArrays is returned when a stored archive has neither the named
// nor the positional keys.
var ErrMissingArrays = errors.New("dataset: archive has no x/y arrays")

// Layout tells whether an archive holds 3D volumes or 2D slices.
type Layout string

const (
	Layout3D Layout = "3d"
	Layout2D Layout = "2d"
)

// array is one stored n-dimensional array.
type array struct {
	Shape []int
	Data  []float64
}

// archive is the on-disk form of a set: named arrays, each a list so
// volumes of different shapes can be stored side by side. Images are under
// "x" and labels under "y"; older archives use "arr_0" and "arr_1".
type archive struct {
	Layout Layout
	Arrays map[string][]array
}

// maskArray is a stored mask.
type maskArray struct {
	Shape []int
	Data  []bool
}

// Save writes s as <dir>/<name>.gob.gz with its _patients and _masks
// sidecars.
func Save(dir, name string, s *Set) error {
	vols := make([]*volume.Volume, s.Len())
	masks := make([]*volume.Mask, s.Len())
	for i, smp := range s.Samples {
		vols[i], masks[i] = smp.Volume, smp.Mask
	}
	return save(dir, name, Layout3D, vols, s.Labels(), s.Patients(), masks)
}

// SaveSlices writes ss like Save.
func SaveSlices(dir, name string, ss *SliceSet) error {
	vols := make([]*volume.Volume, ss.Len())
	masks := make([]*volume.Mask, ss.Len())
	for i, sl := range ss.Slices {
		vols[i], masks[i] = sl.Image, sl.Mask
	}
	return save(dir, name, Layout2D, vols, ss.Labels(), ss.Patients(), masks)
}

func save(dir, name string, layout Layout, vols []*volume.Volume, labels []int, patients []string, masks []*volume.Mask) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	base := filepath.Join(dir, name)

	x := make([]array, len(vols))
	for i, v := range vols {
		x[i] = array{Shape: []int{v.X, v.Y, v.Z}, Data: v.Data}
	}
	y := make([]float64, len(labels))
	for i, l := range labels {
		y[i] = float64(l)
	}
	arc := archive{Layout: layout, Arrays: map[string][]array{
		"x": x,
		"y": {{Shape: []int{len(y)}, Data: y}},
	}}
	if err := writeGob(base+Ext, arc); err != nil {
		return err
	}
	if err := writeGob(base+"_patients"+Ext, patients); err != nil {
		return err
	}
	ms := make([]maskArray, len(masks))
	for i, m := range masks {
		ms[i] = maskArray{Shape: []int{m.X, m.Y, m.Z}, Data: m.Data}
	}
	return writeGob(base+"_masks"+Ext, ms)
}

// loaded is the raw content of a stored set.
type loaded struct {
	layout   Layout
	vols     []*volume.Volume
	labels   []int
	patients []string
	masks    []*volume.Mask
}

func load(dir, name string) (*loaded, error) {
	base := filepath.Join(dir, name)
	var arc archive
	if err := readGob(base+Ext, &arc); err != nil {
		return nil, err
	}
	x, ok := arc.Arrays["x"]
	if !ok {
		x, ok = arc.Arrays["arr_0"]
	}
	y, yok := arc.Arrays["y"]
	if !yok {
		y, yok = arc.Arrays["arr_1"]
	}
	if !ok || !yok || len(y) != 1 {
		return nil, fmt.Errorf("%s: %w", base+Ext, ErrMissingArrays)
	}

	l := &loaded{layout: arc.Layout}
	for i, a := range x {
		if len(a.Shape) != 3 {
			return nil, fmt.Errorf("%s: array %d has %d dimensions, want 3", base+Ext, i, len(a.Shape))
		}
		v, err := volume.FromData(volume.Shape{X: a.Shape[0], Y: a.Shape[1], Z: a.Shape[2]}, a.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: array %d: %w", base+Ext, i, err)
		}
		l.vols = append(l.vols, v)
	}
	for i, f := range y[0].Data {
		if f != 0 && f != 1 {
			return nil, fmt.Errorf("%s: label %d: %w, got %g", base+Ext, i, ErrInvalidLabel, f)
		}
		l.labels = append(l.labels, int(f))
	}
	if err := readGob(base+"_patients"+Ext, &l.patients); err != nil {
		return nil, err
	}
	var ms []maskArray
	if err := readGob(base+"_masks"+Ext, &ms); err != nil {
		return nil, err
	}
	for i, m := range ms {
		if len(m.Shape) != 3 {
			return nil, fmt.Errorf("%s: mask %d has %d dimensions, want 3", base, i, len(m.Shape))
		}
		mask := volume.NewMask(m.Shape[0], m.Shape[1], m.Shape[2])
		if len(m.Data) != len(mask.Data) {
			return nil, fmt.Errorf("%s: mask %d: %w", base, i, volume.ErrShapeMismatch)
		}
		copy(mask.Data, m.Data)
		l.masks = append(l.masks, mask)
	}
	n := len(l.vols)
	if len(l.labels) != n || len(l.patients) != n || len(l.masks) != n {
		return nil, fmt.Errorf("%s: %w", base, ErrLengthMismatch)
	}
	return l, nil
}

// Load reads a 3D set written by Save.
func Load(dir, name string) (*Set, error) {
	l, err := load(dir, name)
	if err != nil {
		return nil, err
	}
	if l.layout == Layout2D {
		return nil, fmt.Errorf("%s holds 2D slices, not volumes", filepath.Join(dir, name))
	}
	return FromParallel(l.vols, l.labels, l.patients, l.masks)
}

// LoadSlices reads a 2D set written by SaveSlices.
func LoadSlices(dir, name string) (*SliceSet, error) {
	l, err := load(dir, name)
	if err != nil {
		return nil, err
	}
	if l.layout == Layout3D {
		return nil, fmt.Errorf("%s holds 3D volumes, not slices", filepath.Join(dir, name))
	}
	ss := &SliceSet{Slices: make([]Slice, len(l.vols))}
	for i := range l.vols {
		ss.Slices[i] = Slice{Image: l.vols[i], Mask: l.masks[i], Patient: l.patients[i], Label: l.labels[i]}
	}
	if err := ss.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(dir, name), err)
	}
	return ss, nil
}

// StoredLayout reports the layout of a stored set.
func StoredLayout(dir, name string) (Layout, error) {
	var arc archive
	if err := readGob(filepath.Join(dir, name)+Ext, &arc); err != nil {
		return "", err
	}
	return arc.Layout, nil
}

// LoadOrganized reads the training and test sets of an organised dataset
// as slices. 3D datasets are converted with DefaultConvertOptions.
func LoadOrganized(ctx context.Context, dir string) (train, test *SliceSet, err error) {
	get := func(name string) (*SliceSet, error) {
		layout, err := StoredLayout(dir, name)
		if err != nil {
			return nil, err
		}
		if layout != Layout3D {
			return LoadSlices(dir, name)
		}
		s, err := Load(dir, name)
		if err != nil {
			return nil, err
		}
		return Convert2D(ctx, s, DefaultConvertOptions())
	}
	if train, err = get(TrainName); err != nil {
		return nil, nil, err
	}
	if test, err = get(TestName); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func writeGob(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	return f.Close()
}

func readGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer zr.Close()
	if err := gob.NewDecoder(zr).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
