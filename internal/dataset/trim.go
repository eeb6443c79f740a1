package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// ErrUnknownTrimMethod is returned for a trim method other than the three
// TrimMethod constants.
var ErrUnknownTrimMethod = errors.New("dataset: unknown trim method")

// TrimMethod selects the per-sample value outliers are judged by.
type TrimMethod string

const (
	// TrimSlices trims on the volume depth.
	TrimSlices TrimMethod = "slices"
	// TrimSizes trims on the number of mask voxels.
	TrimSizes TrimMethod = "sizes"
	// TrimBoxSizes trims on the volume of the mask bounding box.
	TrimBoxSizes TrimMethod = "sizes_masks"
)

// TrimMethods lists the methods in option order: option 1 is slices, 2 is
// sizes and 3 is box sizes.
var TrimMethods = []TrimMethod{TrimSlices, TrimSizes, TrimBoxSizes}

// ParseTrimMethod returns the method named s.
func ParseTrimMethod(s string) (TrimMethod, error) {
	for _, m := range TrimMethods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q, accepted: %v", ErrUnknownTrimMethod, s, TrimMethods)
}

// Values returns the distribution a method reads from an analysis.
func (m TrimMethod) Values(a *Analysis) ([]int, error) {
	switch m {
	case TrimSlices:
		return a.AllSlices(), nil
	case TrimSizes:
		return a.AllSizes(), nil
	case TrimBoxSizes:
		return a.AllBoxSizes(), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownTrimMethod, string(m))
}

// Discarded describes a sample removed by TrimEdges.
type Discarded struct {
	Index   int    `json:"index"`
	Patient string `json:"patient"`
	Slices  int    `json:"slices"`
	Size    int    `json:"size"`
	BoxSize int    `json:"box_size"`
}

// TrimResult reports what TrimEdges kept and removed.
type TrimResult struct {
	Method    TrimMethod  `json:"method"`
	Lower     float64     `json:"lower"`
	Upper     float64     `json:"upper"`
	Kept      int         `json:"kept"`
	Discarded []Discarded `json:"discarded"`
}

// TrimEdges removes the samples whose value for method lies at or beyond
// the lo and hi fractions of values. With n values, round(n*lo) are cut on
// the left and round(n*(1-hi+lo)) in total; the sample is kept only when its
// own value is strictly between the two cut values. An empty cut on either
// side leaves that side unbounded.
func TrimEdges(s *Set, values []int, method TrimMethod, lo, hi float64) (*Set, *TrimResult, error) {
	switch method {
	case TrimSlices, TrimSizes, TrimBoxSizes:
	default:
		return nil, nil, fmt.Errorf("%w %q, accepted: %v", ErrUnknownTrimMethod, string(method), TrimMethods)
	}
	n := len(values)
	if n == 0 {
		return nil, nil, fmt.Errorf("trim on %s: %w", method, ErrEmptySet)
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	numLeft := int(math.RoundToEven(float64(n) * lo))
	numRight := int(math.RoundToEven(float64(n)*(1-hi+lo))) - numLeft
	lower, upper := math.Inf(-1), math.Inf(1)
	if numLeft > 0 && numLeft <= n {
		lower = float64(sorted[numLeft-1])
	}
	if numRight > 0 && numRight <= n {
		upper = float64(sorted[n-numRight])
	}

	res := &TrimResult{Method: method, Lower: lower, Upper: upper}
	kept := &Set{}
	for i, smp := range s.Samples {
		size, voxels := volume.MaskBox(smp.Mask)
		box := volume.BoxVolume(size)
		var v int
		switch method {
		case TrimSlices:
			v = smp.Volume.Z
		case TrimSizes:
			v = voxels
		case TrimBoxSizes:
			v = box
		}
		if float64(v) > lower && float64(v) < upper {
			kept.Samples = append(kept.Samples, smp)
			continue
		}
		res.Discarded = append(res.Discarded, Discarded{
			Index: i, Patient: smp.Patient, Slices: smp.Volume.Z, Size: voxels, BoxSize: box,
		})
	}
	res.Kept = kept.Len()
	return kept, res, nil
}

// Report prints the discarded samples and the remaining size.
func (r *TrimResult) Report(w io.Writer) {
	fmt.Fprintf(w, "\nDISCARDED DATA POINTS BASED ON '%s':\n", r.Method)
	for i, d := range r.Discarded {
		fmt.Fprintf(w, "  %d: Index: %d, Patient: %s, Slices: %d, Size: %d, Box Size: %d\n",
			i+1, d.Index, d.Patient, d.Slices, d.Size, d.BoxSize)
	}
	fmt.Fprintln(w, "\nREMAINING DATA DIMENSIONS:")
	fmt.Fprintf(w, "  Removed data with '%[1]s' <= %[2]g, or '%[1]s' >= %[3]g\n", r.Method, r.Lower, r.Upper)
	fmt.Fprintf(w, "  Size new dataset: %d\n", r.Kept)
}
