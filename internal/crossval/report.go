package crossval

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

var logColumns = []string{"accuracy", "recall0", "recall1", "precision0", "precision1", "num_label0", "num_label1", "num_labels"}

// FoldsHeader is the header row of WriteCSV.
func FoldsHeader() []string {
	h := []string{"fold", "first_slice", "patients"}
	for _, prefix := range []string{"cv_", "train_", "patient_"} {
		for _, c := range logColumns {
			h = append(h, prefix+c)
		}
	}
	return append(h, "auc0", "auc1", "auc_micro")
}

func (l *Log) row(i int) []string {
	return []string{
		formatFloat(l.Accuracy[i]),
		formatFloat(l.Recall0[i]),
		formatFloat(l.Recall1[i]),
		formatFloat(l.Precision0[i]),
		formatFloat(l.Precision1[i]),
		strconv.Itoa(l.NumLabel0[i]),
		strconv.Itoa(l.NumLabel1[i]),
		strconv.Itoa(l.NumLabels[i]),
	}
}

// WriteCSV writes one row per fold with the cross-validation, training and
// patient scores and the fold's areas under the ROC curves.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FoldsHeader()); err != nil {
		return err
	}
	first := 0
	for i := 0; i < r.Folds; i++ {
		if i > 0 {
			first = r.DataSplits[i-1]
		}
		row := []string{strconv.Itoa(i + 1), strconv.Itoa(first), strconv.Itoa(r.PatientSplits[i])}
		row = append(row, r.CV.row(i)...)
		row = append(row, r.Train.row(i)...)
		row = append(row, r.Patient.row(i)...)
		roc := r.ROCs[i]
		row = append(row, formatFloat(roc.Class[0].Area), formatFloat(roc.Class[1].Area), formatFloat(roc.Micro.Area))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHistoryCSV writes the mean accuracy curves followed by every fold's
// curves, one row per epoch.
func (r *Result) WriteHistoryCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"epoch", "mean_acc", "mean_val_acc"}
	for i := range r.CV.HistoryAcc {
		header = append(header, fmt.Sprintf("fold%d_acc", i+1), fmt.Sprintf("fold%d_val_acc", i+1))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for e := range r.MeanAcc {
		row := []string{strconv.Itoa(e + 1), formatFloat(r.MeanAcc[e]), formatFloat(at(r.MeanValAcc, e))}
		for i := range r.CV.HistoryAcc {
			row = append(row, formatFloat(at(r.CV.HistoryAcc[i], e)), formatFloat(at(r.CV.HistoryValAcc[i], e)))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summary averages the per-fold scores. Folds where a score is undefined
// (NaN) are left out of its mean.
type Summary struct {
	Accuracy         float64    `yaml:"accuracy" json:"accuracy"`
	Recall           [2]float64 `yaml:"recall" json:"recall"`
	Precision        [2]float64 `yaml:"precision" json:"precision"`
	TrainAccuracy    float64    `yaml:"train_accuracy" json:"train_accuracy"`
	PatientAccuracy  float64    `yaml:"patient_accuracy" json:"patient_accuracy"`
	PatientRecall    [2]float64 `yaml:"patient_recall" json:"patient_recall"`
	PatientPrecision [2]float64 `yaml:"patient_precision" json:"patient_precision"`
	AUC              [3]float64 `yaml:"auc" json:"auc"`
	FinalValAcc      float64    `yaml:"final_val_acc" json:"final_val_acc"`
}

// Summary computes the fold means of r.
func (r *Result) Summary() Summary {
	var auc [3][]float64
	for _, roc := range r.ROCs {
		auc[0] = append(auc[0], roc.Class[0].Area)
		auc[1] = append(auc[1], roc.Class[1].Area)
		auc[2] = append(auc[2], roc.Micro.Area)
	}
	return Summary{
		Accuracy:         nanMean(r.CV.Accuracy),
		Recall:           [2]float64{nanMean(r.CV.Recall0), nanMean(r.CV.Recall1)},
		Precision:        [2]float64{nanMean(r.CV.Precision0), nanMean(r.CV.Precision1)},
		TrainAccuracy:    nanMean(r.Train.Accuracy),
		PatientAccuracy:  nanMean(r.Patient.Accuracy),
		PatientRecall:    [2]float64{nanMean(r.Patient.Recall0), nanMean(r.Patient.Recall1)},
		PatientPrecision: [2]float64{nanMean(r.Patient.Precision0), nanMean(r.Patient.Precision1)},
		AUC:              [3]float64{nanMean(auc[0]), nanMean(auc[1]), nanMean(auc[2])},
		FinalValAcc:      at(r.MeanValAcc, len(r.MeanValAcc)-1),
	}
}

// Print writes the summary as aligned lines.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Mean accuracy:            %.4f\n", s.Accuracy)
	fmt.Fprintf(w, "Mean recall (0, 1):       %.4f, %.4f\n", s.Recall[0], s.Recall[1])
	fmt.Fprintf(w, "Mean precision (0, 1):    %.4f, %.4f\n", s.Precision[0], s.Precision[1])
	fmt.Fprintf(w, "Mean training accuracy:   %.4f\n", s.TrainAccuracy)
	fmt.Fprintf(w, "Mean patient accuracy:    %.4f\n", s.PatientAccuracy)
	fmt.Fprintf(w, "Mean AUC (0, 1, micro):   %.4f, %.4f, %.4f\n", s.AUC[0], s.AUC[1], s.AUC[2])
}

func nanMean(x []float64) float64 {
	var sum float64
	n := 0
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func at(x []float64, i int) float64 {
	if i < 0 || i >= len(x) {
		return math.NaN()
	}
	return x[i]
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
