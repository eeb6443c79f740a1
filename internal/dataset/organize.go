package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrAborted is returned when the save confirmation is declined.
var ErrAborted = errors.New("dataset: save aborted")

// DefaultTrimWindows are the lower and upper fractions each trim method
// keeps.
var DefaultTrimWindows = map[TrimMethod][2]float64{
	TrimSlices:   {0.1, 0.9},
	TrimSizes:    {0.11, 0.89},
	TrimBoxSizes: {0.11, 0.89},
}

// OrganizeOptions controls Organize.
type OrganizeOptions struct {
	// Dir is the parent folder of organised datasets.
	Dir string
	// Name is the dataset base name; suffixes describing the options are
	// appended to it.
	Name string
	// Trim removes outliers with TrimMethod. Every method is still run and
	// reported so they can be compared.
	Trim       bool
	TrimMethod TrimMethod
	// TrimWindows overrides DefaultTrimWindows per method.
	TrimWindows map[TrimMethod][2]float64
	// Spacing, when non-nil, resamples volumes to cubic voxels.
	Spacing *[3]float64
	// TrainRatio is the training fraction. Zero picks DefaultTrainRatio, or
	// DefaultTrimmedTrainRatio when trimming.
	TrainRatio float64
	// In3D saves volumes instead of converting them to slices.
	In3D    bool
	Convert ConvertOptions
	// Augment, when set, expands the training split before it is saved.
	// Its output is saved with an "_augmented" name suffix.
	Augment func(train *Set) (*Set, error)
	// Confirm is asked before anything is written. Nil skips the question.
	Confirm func() bool
	// Out receives the reports. Nil discards them.
	Out io.Writer
}

// DefaultOrganizeOptions returns the options of a plain organised dataset.
func DefaultOrganizeOptions() OrganizeOptions {
	return OrganizeOptions{
		Dir:        "data",
		Name:       "organized",
		TrimMethod: TrimSizes,
		Convert:    DefaultConvertOptions(),
	}
}

// OrganizeResult summarises a finished Organize run.
type OrganizeResult struct {
	Name        string        `json:"name"`
	Path        string        `json:"path"`
	Analysis    *Analysis     `json:"-"`
	Trims       []*TrimResult `json:"trims,omitempty"`
	TrainRatio  float64       `json:"train_ratio"`
	TrainCount  int           `json:"train_samples"`
	TestCount   int           `json:"test_samples"`
	TrainSlices int           `json:"train_slices,omitempty"`
	TestSlices  int           `json:"test_slices,omitempty"`
}

// DatasetName appends the suffixes describing opts to the base name:
// "_3d" for volumes, "_trimmed<option>" with the 1-based TrimMethods option
// "_interpolated" and "_augmented".
func DatasetName(opts OrganizeOptions) string {
	name := opts.Name
	if opts.In3D {
		name += "_3d"
	}
	if opts.Trim {
		for i, m := range TrimMethods {
			if m == opts.TrimMethod {
				name += fmt.Sprintf("_trimmed%d", i+1)
			}
		}
	}
	if opts.Spacing != nil {
		name += "_interpolated"
	}
	if opts.Augment != nil {
		name += "_augmented"
	}
	return name
}

// Organize analyses, optionally trims and interpolates, splits and saves s
// as <Dir>/<name>/training_set and test_set. An analysis CSV is written
// beside them for every stage.
func Organize(ctx context.Context, s *Set, opts OrganizeOptions) (*OrganizeResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	if opts.Convert.SlicesPerSample == 0 {
		opts.Convert = DefaultConvertOptions()
	}
	name := DatasetName(opts)
	path := filepath.Join(opts.Dir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	res := &OrganizeResult{Name: name, Path: path}

	analysis, err := analyzeStage(s, path, "", out)
	if err != nil {
		return nil, err
	}

	if opts.Trim {
		if _, err := ParseTrimMethod(string(opts.TrimMethod)); err != nil {
			return nil, err
		}
		var chosen *Set
		var chosenAnalysis *Analysis
		for _, m := range TrimMethods {
			window := DefaultTrimWindows[m]
			if w, ok := opts.TrimWindows[m]; ok {
				window = w
			}
			values, err := m.Values(analysis)
			if err != nil {
				return nil, err
			}
			trimmed, tr, err := TrimEdges(s, values, m, window[0], window[1])
			if err != nil {
				return nil, err
			}
			tr.Report(out)
			res.Trims = append(res.Trims, tr)
			a, err := analyzeStage(trimmed, path, "_trimmed_"+string(m), out)
			if err != nil {
				return nil, err
			}
			if m == opts.TrimMethod {
				chosen, chosenAnalysis = trimmed, a
			}
		}
		s, analysis = chosen, chosenAnalysis
	}

	if opts.Spacing != nil {
		fmt.Fprintln(out, "Interpolating. This may take a few minutes...")
		s, err = Interpolate(s, *opts.Spacing, func(done, total int) {
			fmt.Fprintf(out, "%d/%d\n", done, total)
		})
		if err != nil {
			return nil, err
		}
		if analysis, err = analyzeStage(s, path, "_interpolated_slices", out); err != nil {
			return nil, err
		}
	}
	res.Analysis = analysis

	ratio := opts.TrainRatio
	if ratio == 0 {
		ratio = DefaultTrainRatio
		if opts.Trim {
			ratio = DefaultTrimmedTrainRatio
		}
	}
	res.TrainRatio = ratio
	train, test, err := Split(s, analysis, ratio)
	if err != nil {
		return nil, err
	}
	if opts.Augment != nil {
		if train, err = opts.Augment(train); err != nil {
			return nil, fmt.Errorf("augment training set: %w", err)
		}
	}
	ReportSplit(out, train, test)
	res.TrainCount, res.TestCount = train.Len(), test.Len()

	if opts.Confirm != nil && !opts.Confirm() {
		return nil, ErrAborted
	}

	if opts.In3D {
		if err := Save(path, TrainName, train); err != nil {
			return nil, err
		}
		if err := Save(path, TestName, test); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Dataset saved in: '%s'\n", path)
		return res, nil
	}

	for _, part := range []struct {
		name  string
		set   *Set
		count *int
	}{
		{TrainName, train, &res.TrainSlices},
		{TestName, test, &res.TestSlices},
	} {
		conv := opts.Convert
		userProgress := conv.Progress
		conv.Progress = func(done, total int) {
			fmt.Fprintf(out, "%d / %d patients processed\n", done, total)
			if userProgress != nil {
				userProgress(done, total)
			}
		}
		slices, err := Convert2D(ctx, part.set, conv)
		if err != nil {
			return nil, err
		}
		if err := SaveSlices(path, part.name, slices); err != nil {
			return nil, err
		}
		*part.count = slices.Len()
		fmt.Fprintf(out, "Dataset saved in: '%s'\n", filepath.Join(path, part.name+Ext))
	}
	return res, nil
}

// analyzeStage analyses s, prints the report and writes
// analysis<suffix>.csv and histogram<suffix>.csv into dir.
func analyzeStage(s *Set, dir, suffix string, out io.Writer) (*Analysis, error) {
	a := Analyze(s)
	a.Report(out)
	if err := writeFile(filepath.Join(dir, "analysis"+suffix+".csv"), a.WriteCSV); err != nil {
		return nil, fmt.Errorf("failed to write analysis: %w", err)
	}
	err := writeFile(filepath.Join(dir, "histogram"+suffix+".csv"), func(w io.Writer) error {
		return a.WriteHistogramCSV(w, HistogramBins)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write histograms: %w", err)
	}
	return a, nil
}

// writeFile creates path and fills it with write. The close error is
// returned when the write itself succeeded.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
