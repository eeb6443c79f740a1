package crossval

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/dataset"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/model"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

func TestSliceFolds(t *testing.T) {
	got, err := SliceFolds(25, 10)
	if err != nil {
		t.Fatalf("SliceFolds failed: %v", err)
	}
	want := []int{0, 2, 5, 8, 10, 12, 15, 18, 20, 22, 25}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("boundary %d = %d, want %d", i, got[i], want[i])
		}
	}

	if _, err := SliceFolds(5, 10); !errors.Is(err, ErrTooFewSamples) {
		t.Errorf("error = %v, want ErrTooFewSamples", err)
	}
	if _, err := SliceFolds(5, 1); !errors.Is(err, ErrTooFewFolds) {
		t.Errorf("error = %v, want ErrTooFewFolds", err)
	}
}

func TestPatientFolds(t *testing.T) {
	tests := []struct {
		name     string
		patients []string
		k        int
		want     []int
	}{
		{"uneven", strings.Split("a a b c c c d e", " "), 2, []int{0, 6, 8}},
		{"one per fold", strings.Split("a b c", " "), 3, []int{0, 1, 2, 3}},
		{"fewer folds than k", strings.Split("a a b b c", " "), 4, []int{0, 2, 4, 5}},
		{"rotated ids", strings.Split("p p90 p180 p270", " "), 2, []int{0, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PatientFolds(tt.patients, UniquePatients(tt.patients), tt.k)
			if err != nil {
				t.Fatalf("PatientFolds failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}

	if _, err := PatientFolds([]string{"a", "a"}, 1, 2); !errors.Is(err, ErrTooFewSamples) {
		t.Errorf("error = %v, want ErrTooFewSamples", err)
	}
}

// thresholdClassifier predicts label 1 when the first voxel exceeds 0.5.
type thresholdClassifier struct{ fits *int }

func (c thresholdClassifier) Fit(ctx context.Context, train, val model.Data, epochs int) (model.History, error) {
	*c.fits++
	var h model.History
	for e := 0; e < epochs; e++ {
		h.Acc = append(h.Acc, float64(e+1)/float64(epochs))
		h.ValAcc = append(h.ValAcc, 0.5)
	}
	return h, ctx.Err()
}

func (c thresholdClassifier) PredictProba(x []*volume.Volume) ([][2]float64, error) {
	out := make([][2]float64, len(x))
	for i, v := range x {
		if v.Data[0] > 0.5 {
			out[i] = [2]float64{0.2, 0.8}
		} else {
			out[i] = [2]float64{0.9, 0.1}
		}
	}
	return out, nil
}

// sixPatients has two slices per patient p0..p5, odd patients labelled 1.
// The second slice of p1 looks like label 0.
func sixPatients(t *testing.T) *dataset.SliceSet {
	t.Helper()
	s := &dataset.SliceSet{}
	for p := 0; p < 6; p++ {
		for j := 0; j < 2; j++ {
			label := p % 2
			img := volume.New(2, 2, 1)
			if label == 1 && !(p == 1 && j == 1) {
				for i := range img.Data {
					img.Data[i] = 1
				}
			}
			s.Slices = append(s.Slices, dataset.Slice{
				Image:   img,
				Mask:    volume.NewMask(2, 2, 1),
				Patient: "p" + string(rune('0'+p)),
				Label:   label,
			})
		}
	}
	return s
}

func TestRun(t *testing.T) {
	for _, patientLevel := range []bool{false, true} {
		name := "slice level"
		if patientLevel {
			name = "patient level"
		}
		t.Run(name, func(t *testing.T) {
			fits := 0
			factory := func(model.Params) model.Classifier { return thresholdClassifier{fits: &fits} }
			var out bytes.Buffer
			res, err := Run(context.Background(), sixPatients(t), factory, model.DefaultParams(), Options{
				PatientLevel: patientLevel,
				Folds:        3,
				Epochs:       2,
				Out:          &out,
			})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if fits != 3 || res.Folds != 3 {
				t.Fatalf("fits = %d, folds = %d, want 3", fits, res.Folds)
			}
			if res.NumPatients != 6 {
				t.Errorf("NumPatients = %d, want 6", res.NumPatients)
			}
			wantAcc := []float64{0.75, 1, 1}
			for i, w := range wantAcc {
				if res.CV.Accuracy[i] != w {
					t.Errorf("cv accuracy[%d] = %v, want %v", i, res.CV.Accuracy[i], w)
				}
			}
			if res.Train.Accuracy[1] != 0.875 {
				t.Errorf("train accuracy[1] = %v, want 0.875", res.Train.Accuracy[1])
			}
			if res.Patient.Accuracy[0] != 0.5 {
				t.Errorf("patient accuracy[0] = %v, want 0.5", res.Patient.Accuracy[0])
			}
			if got := res.Patient.PredPercentages; len(got) != 6 || got[1] != 0.5 {
				t.Errorf("pred percentages = %v", got)
			}
			if len(res.DataSplits) != 2 || res.DataSplits[0] != 4 || res.DataSplits[1] != 8 {
				t.Errorf("DataSplits = %v, want [4 8]", res.DataSplits)
			}
			if len(res.PatientSplits) != 3 || res.PatientSplits[2] != 2 {
				t.Errorf("PatientSplits = %v, want [2 2 2]", res.PatientSplits)
			}
			if len(res.MeanAcc) != 2 || res.MeanAcc[0] != 0.5 || res.MeanAcc[1] != 1 {
				t.Errorf("MeanAcc = %v, want [0.5 1]", res.MeanAcc)
			}
			if res.CV.NumLabels[0] != 4 || res.CV.NumLabel1[0] != 2 {
				t.Errorf("label counts = %v/%v", res.CV.NumLabels, res.CV.NumLabel1)
			}
			if len(res.ROCs) != 3 || res.ROCs[1].Micro.Area != 1 {
				t.Errorf("ROCs = %d, fold 2 micro AUC %v", len(res.ROCs), res.ROCs[1].Micro.Area)
			}
			if !strings.Contains(out.String(), "Fold 3/3 in Cross Validation Analysis") {
				t.Error("fold banner missing from output")
			}

			s := res.Summary()
			if math.Abs(s.Accuracy-2.75/3) > 1e-12 {
				t.Errorf("summary accuracy = %v", s.Accuracy)
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	fits := 0
	factory := func(model.Params) model.Classifier { return thresholdClassifier{fits: &fits} }
	set := sixPatients(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, set, factory, model.DefaultParams(), Options{Epochs: 1, Folds: 3}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if _, err := Run(context.Background(), set, factory, model.DefaultParams(), Options{Epochs: 0}); err == nil {
		t.Error("Run should reject zero epochs")
	}
	if _, err := Run(context.Background(), set, factory, model.DefaultParams(), Options{Epochs: 1, Folds: 20}); !errors.Is(err, ErrTooFewSamples) {
		t.Errorf("error = %v, want ErrTooFewSamples", err)
	}
}

func TestResultCSV(t *testing.T) {
	fits := 0
	factory := func(model.Params) model.Classifier { return thresholdClassifier{fits: &fits} }
	res, err := Run(context.Background(), sixPatients(t), factory, model.DefaultParams(), Options{Folds: 3, Epochs: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var buf bytes.Buffer
	if err := res.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("csv has %d lines, want 4", len(lines))
	}
	if cols := strings.Split(lines[0], ","); len(cols) != len(FoldsHeader()) || len(FoldsHeader()) != 30 {
		t.Errorf("header has %d columns", len(cols))
	}
	if !strings.HasPrefix(lines[2], "2,4,2,1,") {
		t.Errorf("fold 2 row = %s", lines[2])
	}

	buf.Reset()
	if err := res.WriteHistoryCSV(&buf); err != nil {
		t.Fatalf("WriteHistoryCSV failed: %v", err)
	}
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "1,0.5,0.5,0.5,0.5") {
		t.Errorf("history csv = %q", buf.String())
	}

	buf.Reset()
	res.Summary().Print(&buf)
	if !strings.Contains(buf.String(), "Mean accuracy:") {
		t.Errorf("summary = %q", buf.String())
	}
}
