package crossval

import (
	"fmt"
	"math"
)

// Default fold counts. Eleven patient-level folds divide 77 patients
// evenly.
const (
	DefaultSliceFolds   = 10
	DefaultPatientFolds = 11
)

// SliceFolds returns the k+1 boundaries round(i*n/k), i = 0..k, that cut n
// slices into k contiguous folds. Rounding is half to even.
func SliceFolds(n, k int) ([]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: %d folds", ErrTooFewFolds, k)
	}
	if n < k {
		return nil, fmt.Errorf("%w: %d slices for %d folds", ErrTooFewSamples, n, k)
	}
	size := float64(n) / float64(k)
	out := make([]int, k+1)
	for i := 0; i <= k; i++ {
		out[i] = int(math.RoundToEven(float64(i) * size))
	}
	return out, nil
}

// PatientFolds walks the runs of consecutive equal patient ids and starts a
// new fold whenever the current one already holds ceil(numPatients/k)
// patients. The boundaries always start at 0 and end at len(patients); a
// patient's slices never straddle two folds. There may be fewer than k
// folds.
func PatientFolds(patients []string, numPatients, k int) ([]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: %d folds", ErrTooFewFolds, k)
	}
	if len(patients) == 0 || numPatients <= 0 {
		return nil, fmt.Errorf("%w: no patients", ErrTooFewSamples)
	}
	perFold := int(math.Ceil(float64(numPatients) / float64(k)))
	out := []int{0}
	count := 0
	for i, p := range patients {
		if i > 0 && p == patients[i-1] {
			continue
		}
		count++
		if count > perFold {
			out = append(out, i)
			count = 1
		}
	}
	out = append(out, len(patients))
	if len(out) < 3 {
		return nil, fmt.Errorf("%w: %d patients give a single fold", ErrTooFewSamples, numPatients)
	}
	return out, nil
}

// UniquePatients counts distinct patient ids.
func UniquePatients(patients []string) int {
	seen := make(map[string]struct{}, len(patients))
	for _, p := range patients {
		seen[p] = struct{}{}
	}
	return len(seen)
}
