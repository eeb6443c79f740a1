// Package experiment runs cross-validation for every combination of a
// hyper-parameter grid and stores the results for later search.
package experiment

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/crossval"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/dataset"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/logging"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/model"
)

const rule = "--------------------------------------------------------------------------------------"

// Options controls Run.
type Options struct {
	// DatasetDir is the organised dataset to load.
	DatasetDir string
	// Root is where the nnNNNN run folder is created. Empty means the
	// working directory.
	Root     string
	Grid     Grid
	Crossval crossval.Options
	Factory  model.Factory
	// Command is echoed in the header block.
	Command string
	// Out receives the progress. Nil discards it.
	Out io.Writer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Outcome describes a finished run.
type Outcome struct {
	RunID       string
	Location    string
	ResultsPath string
	Results     []*crossval.Result
}

// sample is one entry of the results document.
type sample struct {
	Params model.Params   `yaml:"params"`
	Result map[string]any `yaml:"result"`
}

// Run loads the organised dataset, merges its training and test sets and
// cross-validates every grid combination into <location>/<combination>.
// A results<suffix>.yaml document keyed by combination is written into the
// run folder.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("experiment: no model factory")
	}

	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "|  Running: %-71s  |\n", opts.Command)
	fmt.Fprintf(out, "|  Time:    %-71s  |\n", now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out, rule)

	train, test, err := dataset.LoadOrganized(ctx, opts.DatasetDir)
	if err != nil {
		return nil, fmt.Errorf("experiment: load %s: %w", opts.DatasetDir, err)
	}
	whole := &dataset.SliceSet{}
	whole.Append(train)
	whole.Append(test)
	if whole.Len() == 0 {
		return nil, fmt.Errorf("experiment: %s: %w", opts.DatasetDir, dataset.ErrEmptySet)
	}
	numPatients := crossval.UniquePatients(whole.Patients())

	fmt.Fprintf(out, "Training set shape:  %s\n", setShape(train))
	fmt.Fprintf(out, "Test set shape:      %s\n", setShape(test))
	fmt.Fprintf(out, "Whole set shape:     %s\n", setShape(whole))
	fmt.Fprintf(out, "Existing labels:     %s\n", existingLabels(whole.Labels()))
	fmt.Fprintf(out, "Number of patients:  %d\n", numPatients)
	fmt.Fprintf(out, "Number of slices:    %d\n", whole.Len())

	location, err := NextLocation(opts.Root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, fmt.Errorf("experiment: create %s: %w", location, err)
	}
	oc := &Outcome{RunID: uuid.NewString(), Location: location}
	logger, err := logging.Open(location, oc.RunID)
	if err != nil {
		return nil, err
	}
	defer logger.Close()
	logger.Event(logging.StageRun, "%s on %s (%d slices, %d patients)", oc.RunID, opts.DatasetDir, whole.Len(), numPatients)

	cvOpts := opts.Crossval
	cvOpts.Out = out
	cvOpts.Log = logger
	samples := map[string]sample{}
	for _, p := range opts.Grid.Combinations() {
		dir := filepath.Join(location, p.String())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("experiment: create %s: %w", dir, err)
		}
		logger.Event(logging.StageCombination, "%s", p)
		res, err := crossval.Run(ctx, whole, opts.Factory, p, cvOpts)
		if err != nil {
			logger.Event(logging.StageCombination, "%s failed: %v", p, err)
			return nil, fmt.Errorf("experiment: %s: %w", p, err)
		}
		if err := writeCombination(dir, res); err != nil {
			return nil, err
		}
		oc.Results = append(oc.Results, res)
		samples[p.String()] = sample{Params: p, Result: resultFields(oc.RunID, dir, res)}
	}

	oc.ResultsPath = filepath.Join(location, "results"+opts.Grid.Suffix()+".yaml")
	fmt.Fprintln(out, "Saving data, this may take a few minutes.")
	data, err := yaml.Marshal(samples)
	if err != nil {
		return nil, fmt.Errorf("experiment: encode results: %w", err)
	}
	if err := os.WriteFile(oc.ResultsPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("experiment: write results: %w", err)
	}
	fmt.Fprintf(out, "Data saved in '%s'.\n", oc.ResultsPath)
	logger.Event(logging.StageResults, "written to %s", oc.ResultsPath)
	return oc, nil
}

// writeCombination stores the fold table, the accuracy curves and the full
// result of one combination.
func writeCombination(dir string, res *crossval.Result) error {
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"folds.csv", res.WriteCSV},
		{"history.csv", res.WriteHistoryCSV},
		{"result.yaml", func(w io.Writer) error {
			enc := yaml.NewEncoder(w)
			if err := enc.Encode(res); err != nil {
				return err
			}
			return enc.Close()
		}},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		fh, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("experiment: create %s: %w", path, err)
		}
		if err := f.write(fh); err != nil {
			fh.Close()
			return fmt.Errorf("experiment: write %s: %w", path, err)
		}
		if err := fh.Close(); err != nil {
			return fmt.Errorf("experiment: close %s: %w", path, err)
		}
	}
	return nil
}

// resultFields flattens the summary of res into the searchable result map.
func resultFields(runID, dir string, res *crossval.Result) map[string]any {
	s := res.Summary()
	return map[string]any{
		"run_id":             runID,
		"location":           dir,
		"folds":              res.Folds,
		"num_patients":       res.NumPatients,
		"patient_level":      res.PatientLevel,
		"accuracy":           s.Accuracy,
		"recall0":            s.Recall[0],
		"recall1":            s.Recall[1],
		"precision0":         s.Precision[0],
		"precision1":         s.Precision[1],
		"train_accuracy":     s.TrainAccuracy,
		"patient_accuracy":   s.PatientAccuracy,
		"patient_recall0":    s.PatientRecall[0],
		"patient_recall1":    s.PatientRecall[1],
		"patient_precision0": s.PatientPrecision[0],
		"patient_precision1": s.PatientPrecision[1],
		"auc0":               s.AUC[0],
		"auc1":               s.AUC[1],
		"auc_micro":          s.AUC[2],
		"final_val_accuracy": s.FinalValAcc,
	}
}

// setShape formats (n, x, y, channels) from the first slice.
func setShape(s *dataset.SliceSet) string {
	if s.Len() == 0 {
		return "(0,)"
	}
	sh := s.Slices[0].Image.Shape
	return fmt.Sprintf("(%d, %d, %d, %d)", s.Len(), sh.X, sh.Y, sh.Z)
}

// existingLabels formats the distinct labels in ascending order, "[0 1]".
func existingLabels(labels []int) string {
	var seen [2]bool
	for _, l := range labels {
		if l >= 0 && l < 2 {
			seen[l] = true
		}
	}
	var parts []string
	for l, ok := range seen {
		if ok {
			parts = append(parts, fmt.Sprint(l))
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
