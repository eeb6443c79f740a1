package dataset

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/imaging"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	set := &Set{Samples: []Sample{
		sample(t, "a", 0, 4, 3),
		sample(t, "b", 1, 6, 5),
	}}
	if err := Save(dir, TrainName, set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for _, suffix := range []string{"", "_patients", "_masks"} {
		if _, err := os.Stat(filepath.Join(dir, TrainName+suffix+Ext)); err != nil {
			t.Errorf("missing file for %q: %v", suffix, err)
		}
	}

	back, err := Load(dir, TrainName)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if back.Len() != 2 {
		t.Fatalf("loaded %d samples, want 2", back.Len())
	}
	for i := range set.Samples {
		want, got := set.Samples[i], back.Samples[i]
		if got.Patient != want.Patient || got.Label != want.Label {
			t.Errorf("sample %d: %s/%d, want %s/%d", i, got.Patient, got.Label, want.Patient, want.Label)
		}
		if !volume.Equal(got.Volume, want.Volume, 0) {
			t.Errorf("sample %d volume changed", i)
		}
		if got.Mask.Count() != want.Mask.Count() {
			t.Errorf("sample %d mask count %d, want %d", i, got.Mask.Count(), want.Mask.Count())
		}
	}

	if _, err := LoadSlices(dir, TrainName); err == nil {
		t.Error("LoadSlices should refuse a 3D archive")
	}
}

func TestSaveLoadSlices(t *testing.T) {
	dir := t.TempDir()
	set := &Set{Samples: []Sample{sample(t, "a", 1, 4, 4)}}
	slices, err := Convert2D(context.Background(), set, DefaultConvertOptions())
	if err != nil {
		t.Fatalf("Convert2D failed: %v", err)
	}
	if err := SaveSlices(dir, TestName, slices); err != nil {
		t.Fatalf("SaveSlices failed: %v", err)
	}
	back, err := LoadSlices(dir, TestName)
	if err != nil {
		t.Fatalf("LoadSlices failed: %v", err)
	}
	if back.Len() != 2 || back.Slices[1].Label != 1 {
		t.Errorf("loaded %d slices", back.Len())
	}
	if _, err := Load(dir, TestName); err == nil {
		t.Error("Load should refuse a 2D archive")
	}
}

func TestLoadSlices_Corrupt(t *testing.T) {
	s := sample(t, "a", 1, 3, 3)
	write := func(t *testing.T, dir string, labels []float64, patients []string) {
		t.Helper()
		base := filepath.Join(dir, "slices")
		arc := archive{Layout: Layout2D, Arrays: map[string][]array{
			"x": {{Shape: []int{4, 4, 3}, Data: s.Volume.Data}},
			"y": {{Shape: []int{len(labels)}, Data: labels}},
		}}
		if err := writeGob(base+Ext, arc); err != nil {
			t.Fatalf("writeGob failed: %v", err)
		}
		if err := writeGob(base+"_patients"+Ext, patients); err != nil {
			t.Fatalf("writeGob failed: %v", err)
		}
		if err := writeGob(base+"_masks"+Ext, []maskArray{{Shape: []int{4, 4, 3}, Data: s.Mask.Data}}); err != nil {
			t.Fatalf("writeGob failed: %v", err)
		}
	}

	tests := []struct {
		name     string
		labels   []float64
		patients []string
		want     error
	}{
		{"label out of range", []float64{2}, []string{"a"}, ErrInvalidLabel},
		{"fractional label", []float64{0.5}, []string{"a"}, ErrInvalidLabel},
		{"negative label", []float64{-1}, []string{"a"}, ErrInvalidLabel},
		{"missing label", []float64{}, []string{"a"}, ErrLengthMismatch},
		{"extra patient", []float64{1}, []string{"a", "b"}, ErrLengthMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			write(t, dir, tt.labels, tt.patients)
			if _, err := LoadSlices(dir, "slices"); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	dir := t.TempDir()
	write(t, dir, []float64{1}, []string{"a"})
	ss, err := LoadSlices(dir, "slices")
	if err != nil {
		t.Fatalf("LoadSlices failed: %v", err)
	}
	if ss.Len() != 1 || ss.Slices[0].Label != 1 {
		t.Errorf("unexpected set %+v", ss.Slices)
	}
}

func TestLoad_PositionalKeys(t *testing.T) {
	dir := t.TempDir()
	s := sample(t, "a", 1, 3, 3)
	arc := archive{Layout: Layout3D, Arrays: map[string][]array{
		"arr_0": {{Shape: []int{4, 4, 3}, Data: s.Volume.Data}},
		"arr_1": {{Shape: []int{1}, Data: []float64{1}}},
	}}
	base := filepath.Join(dir, "legacy")
	if err := writeGob(base+Ext, arc); err != nil {
		t.Fatalf("writeGob failed: %v", err)
	}
	if err := writeGob(base+"_patients"+Ext, []string{"a"}); err != nil {
		t.Fatalf("writeGob failed: %v", err)
	}
	if err := writeGob(base+"_masks"+Ext, []maskArray{{Shape: []int{4, 4, 3}, Data: s.Mask.Data}}); err != nil {
		t.Fatalf("writeGob failed: %v", err)
	}

	set, err := Load(dir, "legacy")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Len() != 1 || set.Samples[0].Label != 1 {
		t.Errorf("unexpected set %+v", set.Samples)
	}

	arc.Arrays = map[string][]array{"z": nil}
	if err := writeGob(base+Ext, arc); err != nil {
		t.Fatalf("writeGob failed: %v", err)
	}
	if _, err := Load(dir, "legacy"); !errors.Is(err, ErrMissingArrays) {
		t.Errorf("error = %v, want ErrMissingArrays", err)
	}
}

// organizeSet builds 10 label-0 and 4 label-1 samples of varied depth and
// tumour size.
func organizeSet(t *testing.T) *Set {
	t.Helper()
	set := &Set{}
	for i := 0; i < 10; i++ {
		set.Samples = append(set.Samples, sample(t, "n"+string(rune('a'+i)), 0, 5+i%4, 3+i%3))
	}
	for i := 0; i < 4; i++ {
		set.Samples = append(set.Samples, sample(t, "t"+string(rune('a'+i)), 1, 5+i, 3+i))
	}
	return set
}

func TestOrganize(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOrganizeOptions()
	opts.Dir = dir
	opts.TrainRatio = 0.5
	var out strings.Builder
	opts.Out = &out

	res, err := Organize(context.Background(), organizeSet(t), opts)
	if err != nil {
		t.Fatalf("Organize failed: %v", err)
	}
	if res.Name != "organized" {
		t.Errorf("name = %s", res.Name)
	}
	if res.TrainCount+res.TestCount != 14 {
		t.Errorf("split %d + %d, want 14 samples", res.TrainCount, res.TestCount)
	}
	if res.TrainSlices == 0 || res.TestSlices == 0 {
		t.Errorf("slices %d/%d, want both non-zero", res.TrainSlices, res.TestSlices)
	}

	train, test, err := LoadOrganized(context.Background(), res.Path)
	if err != nil {
		t.Fatalf("LoadOrganized failed: %v", err)
	}
	if train.Len() != res.TrainSlices || test.Len() != res.TestSlices {
		t.Errorf("loaded %d/%d slices, want %d/%d", train.Len(), test.Len(), res.TrainSlices, res.TestSlices)
	}
	for _, name := range []string{"analysis.csv", "histogram.csv"} {
		if _, err := os.Stat(filepath.Join(res.Path, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
	if !strings.Contains(out.String(), "DATASET DIVIDED IN TRAINING AND TEST SET") {
		t.Error("split report missing from output")
	}
}

func TestOrganize_TrimIn3D(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOrganizeOptions()
	opts.Dir = dir
	opts.Trim = true
	opts.In3D = true

	res, err := Organize(context.Background(), organizeSet(t), opts)
	if err != nil {
		t.Fatalf("Organize failed: %v", err)
	}
	if res.Name != "organized_3d_trimmed2" {
		t.Errorf("name = %s, want organized_3d_trimmed2", res.Name)
	}
	if len(res.Trims) != 3 {
		t.Errorf("ran %d trims, want 3", len(res.Trims))
	}
	if res.TrainRatio != DefaultTrimmedTrainRatio {
		t.Errorf("ratio = %v, want %v", res.TrainRatio, DefaultTrimmedTrainRatio)
	}
	layout, err := StoredLayout(res.Path, TrainName)
	if err != nil || layout != Layout3D {
		t.Errorf("layout = %q, %v", layout, err)
	}
	// 3D datasets are sliced on load.
	if _, _, err := LoadOrganized(context.Background(), res.Path); err != nil {
		t.Errorf("LoadOrganized failed: %v", err)
	}
}

func TestOrganize_Declined(t *testing.T) {
	opts := DefaultOrganizeOptions()
	opts.Dir = t.TempDir()
	opts.Confirm = func() bool { return false }
	_, err := Organize(context.Background(), organizeSet(t), opts)
	if !errors.Is(err, ErrAborted) {
		t.Errorf("error = %v, want ErrAborted", err)
	}
	if _, err := os.Stat(filepath.Join(opts.Dir, "organized", TrainName+Ext)); !os.IsNotExist(err) {
		t.Error("declined run should not write the training set")
	}
}

func TestRawName(t *testing.T) {
	for format, want := range map[string]string{FormatFull: "dataset", FormatCut: "dataset1", FormatMarginCut: "dataset2"} {
		if got := RawName(format); got != want {
			t.Errorf("RawName(%q) = %s, want %s", format, got, want)
		}
	}
}

func TestDatasetName(t *testing.T) {
	spacing := DICOMSpacing
	tests := []struct {
		name string
		opts OrganizeOptions
		want string
	}{
		{"plain", OrganizeOptions{Name: "organized"}, "organized"},
		{"slices trim", OrganizeOptions{Name: "organized", Trim: true, TrimMethod: TrimSlices}, "organized_trimmed1"},
		{"all", OrganizeOptions{Name: "d", In3D: true, Trim: true, TrimMethod: TrimBoxSizes, Spacing: &spacing}, "d_3d_trimmed3_interpolated"},
		{"augmented", OrganizeOptions{Name: "d", Augment: func(s *Set) (*Set, error) { return s, nil }}, "d_augmented"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DatasetName(tt.opts); got != tt.want {
				t.Errorf("DatasetName = %s, want %s", got, tt.want)
			}
		})
	}
}

// writeStack writes image_NNN.png and mask_NNN.png slices for one patient.
func writeStack(t *testing.T, dir string, depth, maskFrom, maskTo int) {
	t.Helper()
	for z := 0; z < depth; z++ {
		img := image.NewGray(image.Rect(0, 0, 6, 5))
		mask := image.NewGray(image.Rect(0, 0, 6, 5))
		for x := 1; x < 4; x++ {
			for y := 1; y < 4; y++ {
				img.SetGray(y, x, color.Gray{Y: uint8(20 * (z + 1))})
				if z >= maskFrom && z < maskTo {
					mask.SetGray(y, x, color.Gray{Y: 255})
				}
			}
		}
		name := func(prefix string) string {
			return filepath.Join(dir, prefix+string([]byte{'0', '0', byte('0' + z)})+".png")
		}
		if err := imaging.SavePNG(name("image_"), img); err != nil {
			t.Fatalf("SavePNG failed: %v", err)
		}
		if err := imaging.SavePNG(name("mask_"), mask); err != nil {
			t.Fatalf("SavePNG failed: %v", err)
		}
	}
}

func TestImport(t *testing.T) {
	root := t.TempDir()
	writeStack(t, filepath.Join(root, "0", "p002"), 6, 2, 5)
	writeStack(t, filepath.Join(root, "0", "p001"), 4, 0, 4)
	writeStack(t, filepath.Join(root, "1", "p003"), 5, 1, 4)
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := Import(context.Background(), root, DefaultImportOptions())
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if got := strings.Join(set.Patients(), ","); got != "p001,p002,p003" {
		t.Errorf("patients = %s", got)
	}
	if got := set.Labels(); got[0] != 0 || got[2] != 1 {
		t.Errorf("labels = %v", got)
	}
	first := set.Samples[0]
	if first.Volume.Shape != (volume.Shape{X: 5, Y: 6, Z: 4}) {
		t.Errorf("shape = %s, want (5, 6, 4)", first.Volume.Shape)
	}
	if first.Mask.Count() != 36 {
		t.Errorf("mask voxels = %d, want 36", first.Mask.Count())
	}

	opts := DefaultImportOptions()
	opts.HealthyMargin = 0
	opts.Format = FormatCut
	set, err = Import(context.Background(), root, opts)
	if err != nil {
		t.Fatalf("Import with cut failed: %v", err)
	}
	if got := set.Samples[1].Volume.Shape; got != (volume.Shape{X: 3, Y: 3, Z: 3}) {
		t.Errorf("cut shape = %s, want (3, 3, 3)", got)
	}
}

func TestImport_Errors(t *testing.T) {
	if _, err := Import(context.Background(), t.TempDir(), DefaultImportOptions()); !errors.Is(err, ErrEmptySet) {
		t.Errorf("error = %v, want ErrEmptySet", err)
	}
	opts := DefaultImportOptions()
	opts.Format = "square"
	if _, err := Import(context.Background(), t.TempDir(), opts); err == nil {
		t.Error("Import should reject an unknown format")
	}

	root := t.TempDir()
	dir := filepath.Join(root, "1", "p")
	writeStack(t, dir, 3, 0, 3)
	if err := os.Remove(filepath.Join(dir, "mask_002.png")); err != nil {
		t.Fatal(err)
	}
	if _, err := Import(context.Background(), root, DefaultImportOptions()); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("error = %v, want ErrLengthMismatch", err)
	}
}

func TestStatistics(t *testing.T) {
	set := &Set{Samples: []Sample{sample(t, "a", 0, 4, 4), sample(t, "b", 1, 5, 3)}}
	all, err := SampleStatistics(set, 0)
	if err != nil {
		t.Fatalf("SampleStatistics failed: %v", err)
	}
	var buf strings.Builder
	if err := WriteStatisticsCSV(&buf, set, all); err != nil {
		t.Fatalf("WriteStatisticsCSV failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "patient,label,mean") {
		t.Errorf("csv = %q", buf.String())
	}

	header, row := AggregateHeader(), AggregateRow(all)
	if len(header) != 27 || len(row) != 27 {
		t.Fatalf("aggregate has %d/%d columns, want 27", len(header), len(row))
	}
	if header[0] != "mean_mean" || header[26] != "stddev_asm" {
		t.Errorf("header = %v", header)
	}
	if row[4] != (16.0+12.0)/2 {
		t.Errorf("mean volume = %v, want 14", row[4])
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	if err := writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "a,b\n")
		return err
	}); err != nil {
		t.Fatalf("writeFile failed: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "a,b\n" {
		t.Errorf("file holds %q", data)
	}

	boom := errors.New("boom")
	if err := writeFile(path, func(io.Writer) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("error = %v, want the write error", err)
	}
	if err := writeFile(filepath.Join(dir, "missing", "out.csv"), func(io.Writer) error { return nil }); err == nil {
		t.Error("writeFile into a missing folder should fail")
	}
}
