// Package stats holds the small descriptive-statistics helpers used when
// analysing datasets and aggregating cross-validation folds.
//
// Functions follow numpy conventions: Variance is the population variance,
// Median averages the two central values of an even-length input, and an
// empty input yields NaN rather than a panic.
package stats

import (
	"errors"
	"math"
	"sort"
)

// ErrBins is returned by Histogram for a non-positive bucket count or an
// empty range.
var ErrBins = errors.New("histogram needs at least one bucket and lo < hi")

// Sum returns the sum of x.
func Sum(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s
}

// Mean returns the arithmetic mean of x, or NaN when x is empty.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return Sum(x) / float64(len(x))
}

// Variance returns the population variance of x.
func Variance(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := Mean(x)
	s := 0.0
	for _, v := range x {
		d := v - m
		s += d * d
	}
	return s / float64(len(x))
}

// Std returns the population standard deviation of x.
func Std(x []float64) float64 { return math.Sqrt(Variance(x)) }

// Min returns the smallest value of x.
func Min(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := x[0]
	for _, v := range x[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest value of x.
func Max(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	m := x[0]
	for _, v := range x[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Sorted returns a sorted copy of x.
func Sorted(x []float64) []float64 {
	s := make([]float64, len(x))
	copy(s, x)
	sort.Float64s(s)
	return s
}

// Median returns the median of x.
func Median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := Sorted(x)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Quantiles returns, for each fraction p, the element of the sorted data at
// index round(len*p) (half to even), clamped to the last element.
func Quantiles(x []float64, ps ...float64) []float64 {
	s := Sorted(x)
	out := make([]float64, len(ps))
	if len(s) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	for i, p := range ps {
		pos := int(math.RoundToEven(float64(len(s)) * p))
		if pos >= len(s) {
			pos = len(s) - 1
		}
		if pos < 0 {
			pos = 0
		}
		out[i] = s[pos]
	}
	return out
}

// Summary collects the descriptive values printed for each measure.
type Summary struct {
	Count    int     `json:"count" yaml:"count"`
	Mean     float64 `json:"mean" yaml:"mean"`
	Median   float64 `json:"median" yaml:"median"`
	Variance float64 `json:"variance" yaml:"variance"`
	Min      float64 `json:"min" yaml:"min"`
	Max      float64 `json:"max" yaml:"max"`
}

// Describe summarises x.
func Describe(x []float64) Summary {
	return Summary{
		Count:    len(x),
		Mean:     Mean(x),
		Median:   Median(x),
		Variance: Variance(x),
		Min:      Min(x),
		Max:      Max(x),
	}
}

// SharedAxis returns a common [min, max] range for plotting a and b side by
// side, widened by factor of the span. The upper bound is widened first and
// the lower bound uses the widened span.
func SharedAxis(a, b []float64, factor float64) (float64, float64) {
	hi := math.Max(Max(a), Max(b))
	lo := math.Min(Min(a), Min(b))
	hi += (hi - lo) * factor
	lo -= (hi - lo) * factor
	return lo, hi
}

// Histogram counts x into bins equal-width buckets over [lo, hi]. Values
// equal to hi land in the last bucket; values outside the range are ignored.
func Histogram(x []float64, bins int, lo, hi float64) ([]int, error) {
	if bins <= 0 || !(hi > lo) {
		return nil, ErrBins
	}
	counts := make([]int, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range x {
		if v < lo || v > hi {
			continue
		}
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}
	return counts, nil
}

// Ints converts integer samples for the float helpers.
func Ints(x []int) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}
