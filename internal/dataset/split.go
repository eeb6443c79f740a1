package dataset

import (
	"fmt"
	"io"
	"math"
)

// Default train-to-total ratios: 63 of 77 patients for an untrimmed set,
// and a tenth when trimmed.
const (
	DefaultTrainRatio        = 63.0 / 77.0
	DefaultTrimmedTrainRatio = 0.1
)

// Bucket tells which of two buckets the next item should go to so that
// b0/(b0+b1) approaches ratio: 0 while the current ratio is below it, 1
// otherwise. Two empty buckets count as ratio 0.
func Bucket(b0, b1 int, ratio float64) int {
	current := 0.0
	if b0+b1 != 0 {
		current = float64(b0) / float64(b0+b1)
	}
	if current < ratio {
		return 0
	}
	return 1
}

// Split distributes s into a training and a test set so that each label,
// and within it the samples below and above the label's median slice count,
// is divided by ratio. Samples exactly at the median are placed afterwards
// by label totals. Samples shallower than MinSlices, or whose mask spans
// fewer than MinSlices slices, are left out. Finally one sample moves across
// when that brings the training fraction closer to ratio.
//
// a must be the analysis of s.
func Split(s *Set, a *Analysis, ratio float64) (train, test *Set, err error) {
	if len(a.AbsSlices) != len(s.Samples) {
		return nil, nil, fmt.Errorf("analysis covers %d samples, set has %d: %w",
			len(a.AbsSlices), len(s.Samples), ErrLengthMismatch)
	}
	train, test = &Set{}, &Set{}
	// Indexed [below/above median][label].
	var trainNums, testNums [2][2]int
	var atMedian [2][]int

	for i, smp := range s.Samples {
		depth := smp.Volume.Z
		if depth < MinSlices || a.AbsSlices[i] < MinSlices {
			continue
		}
		l := smp.Label
		median := a.Medians[l]
		var half int
		switch {
		case float64(depth) < median:
			half = 0
		case float64(depth) > median:
			half = 1
		default:
			atMedian[l] = append(atMedian[l], i)
			continue
		}
		if Bucket(trainNums[half][l], testNums[half][l], ratio) == 0 {
			trainNums[half][l]++
			train.Samples = append(train.Samples, smp)
		} else {
			testNums[half][l]++
			test.Samples = append(test.Samples, smp)
		}
	}

	for l, indices := range atMedian {
		for _, i := range indices {
			if Bucket(trainNums[0][l]+trainNums[1][l], testNums[0][l]+testNums[1][l], ratio) == 0 {
				trainNums[0][l]++
				train.Samples = append(train.Samples, s.Samples[i])
			} else {
				testNums[0][l]++
				test.Samples = append(test.Samples, s.Samples[i])
			}
		}
	}

	total := float64(train.Len() + test.Len())
	if total == 0 {
		return train, test, nil
	}
	nTrain := float64(train.Len())
	current := math.Abs(nTrain/total - ratio)
	plusOne := math.Abs((nTrain+1)/total - ratio)
	minusOne := math.Abs((nTrain-1)/total - ratio)
	switch {
	case plusOne < current && test.Len() > 0:
		last := test.Samples[test.Len()-1]
		test.Samples = test.Samples[:test.Len()-1]
		train.Samples = append(train.Samples, last)
	case minusOne < current && train.Len() > 0:
		last := train.Samples[train.Len()-1]
		train.Samples = train.Samples[:train.Len()-1]
		test.Samples = append(test.Samples, last)
	}
	return train, test, nil
}

// ReportSplit prints the size and label frequency of both sets.
func ReportSplit(w io.Writer, train, test *Set) {
	fmt.Fprintln(w, "\nDATASET DIVIDED IN TRAINING AND TEST SET")
	fmt.Fprintln(w, "  TRAINING SET")
	fmt.Fprintf(w, "    Number of samples: %d\n", train.Len())
	fmt.Fprintf(w, "    Label frequency: %s\n", FormatFrequency(LabelFrequency(train.Labels())))
	fmt.Fprintln(w, "  TEST SET")
	fmt.Fprintf(w, "    Number of samples: %d\n", test.Len())
	fmt.Fprintf(w, "    Label frequency: %s\n\n", FormatFrequency(LabelFrequency(test.Labels())))
}
