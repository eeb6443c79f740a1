package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/stats"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// Analysis holds the per-label distributions of a set.
type Analysis struct {
	// NumLabels counts the analysed samples of each label.
	NumLabels [2]int
	// Medians is the median slice count of each label.
	Medians [2]float64
	// Slices, Sizes and BoxSizes hold, per label, the depth, the granular
	// mask volume and the mask bounding-box volume of each analysed sample.
	Slices   [2][]int
	Sizes    [2][]int
	BoxSizes [2][]int
	// MeanBox is the mean bounding-box size of each label along x, y and z.
	MeanBox [2][3]float64
	// AbsSlices is indexed like the analysed set and holds the z-extent of
	// each sample's mask, or -1 when the sample is shallower than MinSlices.
	AbsSlices []int
}

// Analyze computes the distributions used for trimming and splitting.
// Samples with fewer than MinSlices slices are ignored. Samples whose mask
// spans fewer than MinSlices slices are recorded in AbsSlices and ignored
// otherwise.
func Analyze(s *Set) *Analysis {
	a := &Analysis{AbsSlices: make([]int, len(s.Samples))}
	var boxSum [2][3]int
	for i, smp := range s.Samples {
		a.AbsSlices[i] = -1
		if smp.Volume.Z < MinSlices {
			continue
		}
		size, voxels := volume.MaskBox(smp.Mask)
		a.AbsSlices[i] = size[2]
		if size[2] < MinSlices {
			continue
		}
		l := smp.Label
		a.Sizes[l] = append(a.Sizes[l], voxels)
		for d := 0; d < 3; d++ {
			boxSum[l][d] += size[d]
		}
		a.BoxSizes[l] = append(a.BoxSizes[l], volume.BoxVolume(size))
		a.Slices[l] = append(a.Slices[l], smp.Volume.Z)
		a.NumLabels[l]++
	}
	for l := 0; l < 2; l++ {
		a.Medians[l] = stats.Median(stats.Ints(a.Slices[l]))
		for d := 0; d < 3; d++ {
			a.MeanBox[l][d] = float64(boxSum[l][d]) / float64(a.NumLabels[l])
		}
	}
	return a
}

// Total returns the number of analysed samples.
func (a *Analysis) Total() int { return a.NumLabels[0] + a.NumLabels[1] }

// AllSlices returns the slice counts of label 0 followed by label 1.
func (a *Analysis) AllSlices() []int { return concat(a.Slices) }

// AllSizes returns the granular volumes of label 0 followed by label 1.
func (a *Analysis) AllSizes() []int { return concat(a.Sizes) }

// AllBoxSizes returns the box volumes of label 0 followed by label 1.
func (a *Analysis) AllBoxSizes() []int { return concat(a.BoxSizes) }

func concat(v [2][]int) []int {
	out := make([]int, 0, len(v[0])+len(v[1]))
	out = append(out, v[0]...)
	return append(out, v[1]...)
}

// measure is one named distribution of the report.
type measure struct {
	name   string
	values [2][]int
}

func (a *Analysis) measures() []measure {
	return []measure{
		{"box_volume", a.BoxSizes},
		{"slices", a.Slices},
		{"granular_volume", a.Sizes},
	}
}

// Report prints the LABEL 1 and LABEL 0 summary blocks.
func (a *Analysis) Report(w io.Writer) {
	fmt.Fprintf(w, "\nNumber patients: %d\n\n", a.Total())
	for _, l := range []int{1, 0} {
		meanBox := a.MeanBox[l]
		fmt.Fprintf(w, "LABEL %d\n", l)
		fmt.Fprintf(w, "  NUMBER SAMPLES: %d\n", a.NumLabels[l])

		box := stats.Describe(stats.Ints(a.BoxSizes[l]))
		fmt.Fprintln(w, "  TUMOR BOX VOLUME (px^3 of tumor box)")
		fmt.Fprintf(w, "    Mean:     %g (in 3 directions: [%g %g %g])\n",
			meanBox[0]*meanBox[1]*meanBox[2], meanBox[0], meanBox[1], meanBox[2])
		writeSpread(w, box)

		fmt.Fprintln(w, "  NUMBER SLICES")
		writeSummary(w, stats.Describe(stats.Ints(a.Slices[l])))

		fmt.Fprintln(w, "  GRANULAR VOLUME (px^3 that were labeled as tumor)")
		writeSummary(w, stats.Describe(stats.Ints(a.Sizes[l])))
		fmt.Fprintln(w)
	}
}

func writeSummary(w io.Writer, s stats.Summary) {
	fmt.Fprintf(w, "    Mean:     %g\n", s.Mean)
	writeSpread(w, s)
}

func writeSpread(w io.Writer, s stats.Summary) {
	fmt.Fprintf(w, "    Median:   %g\n", s.Median)
	fmt.Fprintf(w, "    Variance: %g\n", s.Variance)
	fmt.Fprintf(w, "    Min:      %g\n", s.Min)
	fmt.Fprintf(w, "    Max:      %g\n", s.Max)
}

// AnalysisQuantiles are the fractions reported next to each summary, the
// same index rule TrimEdges uses to place its cuts.
var AnalysisQuantiles = []float64{0.1, 0.25, 0.75, 0.9}

// AnalysisHeader names the columns written by WriteCSV.
var AnalysisHeader = []string{
	"label", "measure", "count", "mean", "median", "variance", "min", "max",
	"q10", "q25", "q75", "q90",
}

// WriteCSV writes one row per label and measure.
func (a *Analysis) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AnalysisHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for l := 0; l < 2; l++ {
		for _, m := range a.measures() {
			x := stats.Ints(m.values[l])
			s := stats.Describe(x)
			row := []string{
				strconv.Itoa(l), m.name, strconv.Itoa(s.Count),
				formatFloat(s.Mean), formatFloat(s.Median), formatFloat(s.Variance),
				formatFloat(s.Min), formatFloat(s.Max),
			}
			for _, q := range stats.Quantiles(x, AnalysisQuantiles...) {
				row = append(row, formatFloat(q))
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// HistogramBins is the default bucket count of the analysis histograms.
const HistogramBins = 10

// HistogramMargin widens the range shared by both labels of a histogram.
const HistogramMargin = 0.05

// Histogram is the distribution of one measure for both labels over a
// common range.
type Histogram struct {
	Measure string   `json:"measure"`
	Lo      float64  `json:"lo"`
	Hi      float64  `json:"hi"`
	Counts  [2][]int `json:"counts"`
}

// Histograms buckets every measure of both labels into bins buckets over a
// range shared by the two labels. Measures with no analysed sample are
// skipped.
func (a *Analysis) Histograms(bins int) ([]Histogram, error) {
	var out []Histogram
	for _, m := range a.measures() {
		x0, x1 := stats.Ints(m.values[0]), stats.Ints(m.values[1])
		if len(x0)+len(x1) == 0 {
			continue
		}
		// A missing label must not turn the shared range into NaN.
		axis0, axis1 := x0, x1
		if len(axis0) == 0 {
			axis0 = axis1
		}
		if len(axis1) == 0 {
			axis1 = axis0
		}
		lo, hi := stats.SharedAxis(axis0, axis1, HistogramMargin)
		if hi <= lo {
			lo, hi = lo-0.5, hi+0.5
		}
		h := Histogram{Measure: m.name, Lo: lo, Hi: hi}
		for l, x := range [2][]float64{x0, x1} {
			counts, err := stats.Histogram(x, bins, lo, hi)
			if err != nil {
				return nil, fmt.Errorf("histogram of %s: %w", m.name, err)
			}
			h.Counts[l] = counts
		}
		out = append(out, h)
	}
	return out, nil
}

// HistogramHeader names the columns written by WriteHistogramCSV.
var HistogramHeader = []string{"measure", "label", "bin_lo", "bin_hi", "count"}

// WriteHistogramCSV writes one row per measure, label and bucket.
func (a *Analysis) WriteHistogramCSV(w io.Writer, bins int) error {
	hists, err := a.Histograms(bins)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(HistogramHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, h := range hists {
		width := (h.Hi - h.Lo) / float64(bins)
		for l, counts := range h.Counts {
			for i, c := range counts {
				row := []string{
					h.Measure, strconv.Itoa(l),
					formatFloat(h.Lo + float64(i)*width), formatFloat(h.Lo + float64(i+1)*width),
					strconv.Itoa(c),
				}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("failed to write row: %w", err)
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
