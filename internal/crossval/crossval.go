// Package crossval runs k-fold cross-validation of a classifier over a
// slice dataset, at slice level or with folds aligned to patients.
package crossval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/dataset"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/logging"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/metrics"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/model"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

var (
	ErrTooFewFolds   = errors.New("crossval: need at least two folds")
	ErrTooFewSamples = errors.New("crossval: too few samples for the requested folds")
)

// Options controls Run.
type Options struct {
	// PatientLevel aligns folds to patients instead of cutting the slice
	// list evenly.
	PatientLevel bool
	// Folds overrides DefaultSliceFolds or DefaultPatientFolds.
	Folds  int
	Epochs int
	// Out receives the per-fold reports. Nil discards them.
	Out io.Writer
	// Log, when set, gets one line per fold.
	Log *logging.RunLog
}

// Log collects one value per fold.
type Log struct {
	HistoryAcc    [][]float64 `yaml:"history_acc,omitempty" json:"history_acc,omitempty"`
	HistoryValAcc [][]float64 `yaml:"history_val_acc,omitempty" json:"history_val_acc,omitempty"`
	Accuracy      []float64   `yaml:"accuracy" json:"accuracy"`
	Recall0       []float64   `yaml:"recall0" json:"recall0"`
	Recall1       []float64   `yaml:"recall1" json:"recall1"`
	Precision0    []float64   `yaml:"precision0" json:"precision0"`
	Precision1    []float64   `yaml:"precision1" json:"precision1"`
	NumLabel0     []int       `yaml:"num_label0" json:"num_label0"`
	NumLabel1     []int       `yaml:"num_label1" json:"num_label1"`
	NumLabels     []int       `yaml:"num_labels" json:"num_labels"`
}

func (l *Log) add(r *metrics.Report) {
	l.Accuracy = append(l.Accuracy, r.Accuracy)
	l.Recall0 = append(l.Recall0, r.Recall[0])
	l.Recall1 = append(l.Recall1, r.Recall[1])
	l.Precision0 = append(l.Precision0, r.Precision[0])
	l.Precision1 = append(l.Precision1, r.Precision[1])
	l.NumLabel0 = append(l.NumLabel0, r.NumTrue[0])
	l.NumLabel1 = append(l.NumLabel1, r.NumTrue[1])
	l.NumLabels = append(l.NumLabels, r.NumTrue[0]+r.NumTrue[1])
}

// PatientLog adds the per-patient label fractions of every fold, in fold
// order.
type PatientLog struct {
	Log             `yaml:",inline" json:",inline"`
	PredPercentages []float64 `yaml:"pred_percentages" json:"pred_percentages"`
	TruePercentages []float64 `yaml:"true_percentages" json:"true_percentages"`
}

// Result is everything one cross-validation run produced.
type Result struct {
	Params       model.Params `yaml:"params" json:"params"`
	PatientLevel bool         `yaml:"patient_level" json:"patient_level"`
	Folds        int          `yaml:"folds" json:"folds"`
	NumPatients  int          `yaml:"num_patients" json:"num_patients"`

	CV      Log        `yaml:"cv" json:"cv"`
	Train   Log        `yaml:"train" json:"train"`
	Patient PatientLog `yaml:"patient" json:"patient"`

	// MeanAcc and MeanValAcc average the fold histories epoch by epoch.
	MeanAcc    []float64 `yaml:"mean_acc" json:"mean_acc"`
	MeanValAcc []float64 `yaml:"mean_val_acc" json:"mean_val_acc"`

	ROCs []*metrics.ROCSet `yaml:"rocs" json:"rocs"`

	// DataSplits are the first slice index of every fold but the first.
	DataSplits []int `yaml:"data_splits" json:"data_splits"`
	// PatientSplits are the number of patients in every fold.
	PatientSplits []int `yaml:"patient_splits" json:"patient_splits"`
}

// Run cross-validates a fresh classifier from factory on every fold of s.
// The context is checked between folds and passed to Fit.
func Run(ctx context.Context, s *dataset.SliceSet, factory model.Factory, params model.Params, opts Options) (*Result, error) {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	if opts.Epochs < 1 {
		return nil, fmt.Errorf("crossval: invalid epochs %d", opts.Epochs)
	}
	k := opts.Folds
	if k == 0 {
		k = DefaultSliceFolds
		if opts.PatientLevel {
			k = DefaultPatientFolds
		}
	}

	labels := s.Labels()
	patients := s.Patients()
	images := make([]*volume.Volume, s.Len())
	for i, sl := range s.Slices {
		images[i] = sl.Image
	}
	onehot := metrics.OneHot(labels)
	numPatients := UniquePatients(patients)

	var bounds []int
	var err error
	if opts.PatientLevel {
		bounds, err = PatientFolds(patients, numPatients, k)
	} else {
		bounds, err = SliceFolds(s.Len(), k)
	}
	if err != nil {
		return nil, err
	}
	folds := len(bounds) - 1

	res := &Result{Params: params, PatientLevel: opts.PatientLevel, Folds: folds, NumPatients: numPatients}
	for i := 0; i < folds; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "\n%s\n", strings.Repeat("-", 80))
		fmt.Fprintf(out, "\nFold %d/%d in Cross Validation Analysis\n", i+1, folds)
		start := time.Now()

		idx0, idx1 := bounds[i], bounds[i+1]
		if i != 0 {
			res.DataSplits = append(res.DataSplits, idx0)
		}
		train := model.Data{X: without(images, idx0, idx1), Y: without(onehot, idx0, idx1)}
		test := model.Data{X: images[idx0:idx1], Y: onehot[idx0:idx1]}
		trainLabels := without(labels, idx0, idx1)
		testLabels := labels[idx0:idx1]

		clf := factory(params)
		h, err := clf.Fit(ctx, train, test, opts.Epochs)
		if err != nil {
			return nil, fmt.Errorf("fold %d: fit: %w", i+1, err)
		}
		res.MeanAcc = accumulate(res.MeanAcc, h.Acc)
		res.MeanValAcc = accumulate(res.MeanValAcc, h.ValAcc)

		fmt.Fprintln(out, "Cross Validation Statistics:")
		probs, err := clf.PredictProba(test.X)
		if err != nil {
			return nil, fmt.Errorf("fold %d: predict: %w", i+1, err)
		}
		pred := metrics.ArgMax(probs)
		cv, err := metrics.Evaluate(testLabels, pred)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", i+1, err)
		}
		cv.Print(out)
		res.CV.HistoryAcc = append(res.CV.HistoryAcc, h.Acc)
		res.CV.HistoryValAcc = append(res.CV.HistoryValAcc, h.ValAcc)
		res.CV.add(cv)

		fmt.Fprintln(out, "Training Statistics:")
		trProbs, err := clf.PredictProba(train.X)
		if err != nil {
			return nil, fmt.Errorf("fold %d: predict: %w", i+1, err)
		}
		tr, err := metrics.Evaluate(trainLabels, metrics.ArgMax(trProbs))
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", i+1, err)
		}
		tr.Print(out)
		res.Train.add(tr)

		fmt.Fprintln(out, "Patient Level Statistics")
		pat, err := metrics.EvaluatePatients(testLabels, pred, patients[idx0:idx1])
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", i+1, err)
		}
		pat.Print(out)
		res.Patient.add(pat.Report)
		res.Patient.PredPercentages = append(res.Patient.PredPercentages, pat.Predicted...)
		res.Patient.TruePercentages = append(res.Patient.TruePercentages, pat.True...)
		res.PatientSplits = append(res.PatientSplits, len(pat.Predicted))

		rocs, err := metrics.ClassROC(test.Y, probs)
		if err != nil {
			return nil, fmt.Errorf("fold %d: roc: %w", i+1, err)
		}
		res.ROCs = append(res.ROCs, rocs)

		elapsed := time.Since(start)
		fmt.Fprintf(out, "\nAccuracy Training: %v\n", last(h.Acc))
		fmt.Fprintf(out, "Accuracy Test:     %v\n", last(h.ValAcc))
		fmt.Fprintf(out, "Time taken:        %.3f seconds\n", elapsed.Seconds())
		opts.Log.Event(logging.StageFold, "%d/%d %s: slices [%d, %d) accuracy %.4f patient accuracy %.4f auc %.4f (%s)",
			i+1, folds, params, idx0, idx1, cv.Accuracy, pat.Accuracy, rocs.Micro.Area, elapsed.Round(time.Millisecond))
	}

	for e := range res.MeanAcc {
		res.MeanAcc[e] /= float64(folds)
	}
	for e := range res.MeanValAcc {
		res.MeanValAcc[e] /= float64(folds)
	}
	return res, nil
}

// without returns s with [i, j) removed, as a new slice.
func without[T any](s []T, i, j int) []T {
	out := make([]T, 0, len(s)-(j-i))
	out = append(out, s[:i]...)
	return append(out, s[j:]...)
}

func accumulate(sum, h []float64) []float64 {
	if sum == nil {
		return append([]float64(nil), h...)
	}
	for e := range sum {
		if e < len(h) {
			sum[e] += h[e]
		}
	}
	return sum
}

func last(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return x[len(x)-1]
}
