// Package metrics scores binary classifiers: confusion matrices, accuracy,
// precision and recall per class, patient-level aggregation and ROC curves.
package metrics

import (
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrLengthMismatch = errors.New("metrics: length mismatch")
	ErrInvalidLabel   = errors.New("metrics: label must be 0 or 1")
	ErrEmpty          = errors.New("metrics: no labels")
)

// Matrix is a binary confusion matrix: rows are true labels, columns are
// predicted labels.
type Matrix [2][2]int

// Confusion counts label pairs. Classes absent from both inputs keep zero
// rows and columns, so the result is always 2x2.
func Confusion(trueLabels, predLabels []int) (Matrix, error) {
	var m Matrix
	if len(trueLabels) != len(predLabels) {
		return m, fmt.Errorf("%w: %d true labels, %d predictions", ErrLengthMismatch, len(trueLabels), len(predLabels))
	}
	for i, t := range trueLabels {
		p := predLabels[i]
		if t < 0 || t > 1 || p < 0 || p > 1 {
			return m, fmt.Errorf("%w: pair %d is (%d, %d)", ErrInvalidLabel, i, t, p)
		}
		m[t][p]++
	}
	return m, nil
}

// Report holds the scores of one evaluation.
type Report struct {
	Errors    int        `yaml:"errors" json:"errors"`
	Total     int        `yaml:"total" json:"total"`
	Accuracy  float64    `yaml:"accuracy" json:"accuracy"`
	Precision [2]float64 `yaml:"precision" json:"precision"`
	Recall    [2]float64 `yaml:"recall" json:"recall"`
	NumTrue   [2]int     `yaml:"num_true" json:"num_true"`
	NumPred   [2]int     `yaml:"num_pred" json:"num_pred"`
	Matrix    Matrix     `yaml:"matrix" json:"matrix"`

	trueLabels, predLabels []int
}

// Evaluate scores predLabels against trueLabels. Precision and recall of a
// class that never occurs (0/0) are NaN.
func Evaluate(trueLabels, predLabels []int) (*Report, error) {
	if len(trueLabels) == 0 {
		return nil, ErrEmpty
	}
	m, err := Confusion(trueLabels, predLabels)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Matrix:     m,
		Total:      len(trueLabels),
		trueLabels: trueLabels,
		predLabels: predLabels,
	}
	r.Errors = m[0][1] + m[1][0]
	r.Accuracy = 1 - float64(r.Errors)/float64(r.Total)
	for c := 0; c < 2; c++ {
		r.NumTrue[c] = m[c][0] + m[c][1]
		r.NumPred[c] = m[0][c] + m[1][c]
		r.Recall[c] = ratio(m[c][c], r.NumTrue[c])
		r.Precision[c] = ratio(m[c][c], r.NumPred[c])
	}
	return r, nil
}

// ratio divides like numpy: 0/0 is NaN.
func ratio(a, b int) float64 {
	if b == 0 {
		if a == 0 {
			return math.NaN()
		}
		return math.Inf(1)
	}
	return float64(a) / float64(b)
}

// Print writes the evaluation block shown after every fold.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "  Results: %d errors from %d examples.\n", r.Errors, r.Total)
	fmt.Fprintf(w, "  Accuracy: %v\n", r.Accuracy)
	fmt.Fprintln(w, "  Confusion Matrix (true 0s are col 0, true 1s are col 1):")
	fmt.Fprintf(w, "        %v\n        %v\n", r.Matrix[0], r.Matrix[1])
	fmt.Fprintln(w, "  Precision and Recall:")
	fmt.Fprintf(w, "    Precision: %v\n", r.Precision)
	fmt.Fprintf(w, "    Recall: %v\n", r.Recall)
	if r.trueLabels != nil {
		fmt.Fprintln(w, indent(ClassificationReport(r.trueLabels, r.predLabels), "    "))
	}
}

// ArgMax returns the index of the larger column of every row. Ties pick 0.
func ArgMax(rows [][2]float64) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		if r[1] > r[0] {
			out[i] = 1
		}
	}
	return out
}

// OneHot encodes 0/1 labels as two-column rows.
func OneHot(labels []int) [][2]float64 {
	out := make([][2]float64, len(labels))
	for i, l := range labels {
		out[i][l] = 1
	}
	return out
}

// PatientLabels averages labels over every run of consecutive equal
// patient ids, giving the fraction of a patient's slices labelled 1.
func PatientLabels(labels []int, patients []string) ([]float64, error) {
	if len(labels) != len(patients) {
		return nil, fmt.Errorf("%w: %d labels, %d patients", ErrLengthMismatch, len(labels), len(patients))
	}
	var out []float64
	n := 0
	for i, l := range labels {
		if i > 0 && patients[i] == patients[i-1] {
			out[len(out)-1] += float64(l)
			n++
			continue
		}
		if len(out) > 0 {
			out[len(out)-1] /= float64(n)
		}
		out = append(out, float64(l))
		n = 1
	}
	if len(out) > 0 {
		out[len(out)-1] /= float64(n)
	}
	return out, nil
}

// PatientReport scores classification per patient.
type PatientReport struct {
	*Report
	// Predicted and True are the per-patient fractions of slices labelled 1.
	Predicted []float64 `yaml:"pred_percentages" json:"pred_percentages"`
	True      []float64 `yaml:"true_percentages" json:"true_percentages"`
}

// EvaluatePatients labels every patient 1 when more than half its slices
// are 1, for both the truth and the predictions, and scores the result.
func EvaluatePatients(trueLabels, predLabels []int, patients []string) (*PatientReport, error) {
	if len(trueLabels) != len(predLabels) {
		return nil, fmt.Errorf("%w: %d true labels, %d predictions", ErrLengthMismatch, len(trueLabels), len(predLabels))
	}
	pred, err := PatientLabels(predLabels, patients)
	if err != nil {
		return nil, err
	}
	truth, err := PatientLabels(trueLabels, patients)
	if err != nil {
		return nil, err
	}
	r, err := Evaluate(threshold(truth), threshold(pred))
	if err != nil {
		return nil, err
	}
	return &PatientReport{Report: r, Predicted: pred, True: truth}, nil
}

func threshold(fracs []float64) []int {
	out := make([]int, len(fracs))
	for i, f := range fracs {
		if f > 0.5 {
			out[i] = 1
		}
	}
	return out
}
