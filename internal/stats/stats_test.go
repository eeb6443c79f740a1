package stats

import (
	"errors"
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.in); got != tt.want {
				t.Errorf("Median(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEmptyInputsAreNaN(t *testing.T) {
	for name, f := range map[string]func([]float64) float64{
		"Mean": Mean, "Median": Median, "Variance": Variance, "Min": Min, "Max": Max,
	} {
		if got := f(nil); !math.IsNaN(got) {
			t.Errorf("%s(nil) = %v, want NaN", name, got)
		}
	}
}

func TestVarianceIsPopulation(t *testing.T) {
	got := Variance([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if got != 4 {
		t.Errorf("Variance = %v, want 4", got)
	}
	if s := Std([]float64{2, 4, 4, 4, 5, 5, 7, 9}); s != 2 {
		t.Errorf("Std = %v, want 2", s)
	}
}

func TestDescribe(t *testing.T) {
	s := Describe([]float64{1, 2, 3, 4})
	if s.Count != 4 || s.Mean != 2.5 || s.Median != 2.5 || s.Min != 1 || s.Max != 4 {
		t.Errorf("Describe = %+v", s)
	}
}

func TestQuantiles(t *testing.T) {
	x := []float64{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}
	got := Quantiles(x, 0.1, 0.25, 0.75, 0.9, 1.0)
	want := []float64{1, 2, 8, 9, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Quantiles[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSharedAxis(t *testing.T) {
	lo, hi := SharedAxis([]float64{0, 5}, []float64{10}, 0.1)
	if hi != 11 {
		t.Errorf("hi = %v, want 11", hi)
	}
	// The lower bound is widened with the already widened span.
	if math.Abs(lo-(-1.1)) > 1e-9 {
		t.Errorf("lo = %v, want -1.1", lo)
	}
}

func TestHistogram(t *testing.T) {
	got, err := Histogram([]float64{0, 0.5, 1, 1.5, 2, 3}, 2, 0, 2)
	if err != nil {
		t.Fatalf("Histogram failed: %v", err)
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Histogram = %v, want [2 3]", got)
	}
}

func TestHistogram_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		bins   int
		lo, hi float64
	}{
		{"no buckets", 0, 0, 1},
		{"negative buckets", -3, 0, 1},
		{"empty range", 4, 2, 2},
		{"reversed range", 4, 2, 1},
		{"nan range", 4, math.NaN(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Histogram([]float64{1}, tt.bins, tt.lo, tt.hi); !errors.Is(err, ErrBins) {
				t.Errorf("error = %v, want ErrBins", err)
			}
		})
	}
}
