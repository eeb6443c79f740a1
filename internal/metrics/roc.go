package metrics

import (
	"fmt"
	"math"
	"sort"
)

// Curve is a receiver operating characteristic curve. Thresholds are in
// decreasing order; the first point (0, 0) has an infinite threshold.
type Curve struct {
	FPR        []float64 `yaml:"fpr" json:"fpr"`
	TPR        []float64 `yaml:"tpr" json:"tpr"`
	Thresholds []float64 `yaml:"-" json:"-"`
	Area       float64   `yaml:"auc" json:"auc"`
}

// ROC computes the curve of scores against binary truth, one point per
// distinct score. Rates are NaN when a class is missing from truth.
func ROC(truth []int, scores []float64) (Curve, error) {
	if len(truth) != len(scores) {
		return Curve{}, fmt.Errorf("%w: %d labels, %d scores", ErrLengthMismatch, len(truth), len(scores))
	}
	if len(truth) == 0 {
		return Curve{}, ErrEmpty
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	c := Curve{FPR: []float64{0}, TPR: []float64{0}, Thresholds: []float64{math.Inf(1)}}
	var tp, fp float64
	for i, idx := range order {
		switch truth[idx] {
		case 1:
			tp++
		case 0:
			fp++
		default:
			return Curve{}, fmt.Errorf("%w: %d", ErrInvalidLabel, truth[idx])
		}
		if i+1 < len(order) && scores[order[i+1]] == scores[idx] {
			continue
		}
		c.TPR = append(c.TPR, tp)
		c.FPR = append(c.FPR, fp)
		c.Thresholds = append(c.Thresholds, scores[idx])
	}
	for i := range c.TPR {
		c.TPR[i] = rate(c.TPR[i], tp)
		c.FPR[i] = rate(c.FPR[i], fp)
	}
	c.Area = AUC(c.FPR, c.TPR)
	return c, nil
}

func rate(n, total float64) float64 {
	if total == 0 {
		return math.NaN()
	}
	return n / total
}

// AUC integrates y over x with the trapezoid rule.
func AUC(x, y []float64) float64 {
	var area float64
	for i := 1; i < len(x) && i < len(y); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return area
}

// ROCSet holds the curves of both classes and their micro average.
type ROCSet struct {
	Class [2]Curve `yaml:"class" json:"class"`
	Micro Curve    `yaml:"micro" json:"micro"`
}

// ClassROC computes a curve per column of one-hot truth against predicted
// probabilities, and the micro-average curve over every cell.
func ClassROC(truth, probs [][2]float64) (*ROCSet, error) {
	if len(truth) != len(probs) {
		return nil, fmt.Errorf("%w: %d labels, %d predictions", ErrLengthMismatch, len(truth), len(probs))
	}
	set := &ROCSet{}
	allTruth := make([]int, 0, 2*len(truth))
	allScores := make([]float64, 0, 2*len(truth))
	for c := 0; c < 2; c++ {
		t := make([]int, len(truth))
		s := make([]float64, len(truth))
		for i := range truth {
			t[i] = int(truth[i][c])
			s[i] = probs[i][c]
		}
		curve, err := ROC(t, s)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", c, err)
		}
		set.Class[c] = curve
	}
	// Row-major ravel.
	for i := range truth {
		for c := 0; c < 2; c++ {
			allTruth = append(allTruth, int(truth[i][c]))
			allScores = append(allScores, probs[i][c])
		}
	}
	micro, err := ROC(allTruth, allScores)
	if err != nil {
		return nil, fmt.Errorf("micro: %w", err)
	}
	set.Micro = micro
	return set, nil
}
