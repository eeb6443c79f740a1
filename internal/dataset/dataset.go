package dataset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

var (
	// ErrLengthMismatch is returned when parallel lists differ in length.
	ErrLengthMismatch = errors.New("dataset: volumes, labels, patients and masks differ in length")
	// ErrInvalidLabel is returned for labels other than 0 and 1.
	ErrInvalidLabel = errors.New("dataset: label must be 0 or 1")
	// ErrEmptySet is returned when an operation needs at least one sample.
	ErrEmptySet = errors.New("dataset: empty set")
	// ErrEmptyVolume is returned for a sample with a zero-length dimension.
	ErrEmptyVolume = errors.New("dataset: volume has a zero-length dimension")
)

// MinSlices is the smallest depth (and mask z-extent) a sample needs to be
// analysed or split.
const MinSlices = 3

// Sample is one patient volume with its tumour mask and class label.
type Sample struct {
	Volume  *volume.Volume
	Mask    *volume.Mask
	Patient string
	Label   int
}

// Set is an ordered collection of 3D samples.
type Set struct {
	Samples []Sample
}

// FromParallel pairs positionally aligned lists into a Set.
func FromParallel(vols []*volume.Volume, labels []int, patients []string, masks []*volume.Mask) (*Set, error) {
	n := len(vols)
	if len(labels) != n || len(patients) != n || len(masks) != n {
		return nil, fmt.Errorf("%w: %d volumes, %d labels, %d patients, %d masks",
			ErrLengthMismatch, n, len(labels), len(patients), len(masks))
	}
	s := &Set{Samples: make([]Sample, n)}
	for i := range vols {
		s.Samples[i] = Sample{Volume: vols[i], Mask: masks[i], Patient: patients[i], Label: labels[i]}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks labels and that every mask matches its volume.
func (s *Set) Validate() error {
	for i, smp := range s.Samples {
		if smp.Label != 0 && smp.Label != 1 {
			return fmt.Errorf("sample %d (%s): %w, got %d", i, smp.Patient, ErrInvalidLabel, smp.Label)
		}
		if smp.Volume == nil || smp.Mask == nil {
			return fmt.Errorf("sample %d (%s): missing volume or mask", i, smp.Patient)
		}
		if smp.Volume.Shape != smp.Mask.Shape {
			return fmt.Errorf("sample %d (%s): volume %s, mask %s: %w",
				i, smp.Patient, smp.Volume.Shape, smp.Mask.Shape, volume.ErrShapeMismatch)
		}
	}
	return nil
}

// Len returns the number of samples.
func (s *Set) Len() int { return len(s.Samples) }

// Labels returns the label of every sample in order.
func (s *Set) Labels() []int {
	out := make([]int, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = smp.Label
	}
	return out
}

// Patients returns the patient id of every sample in order.
func (s *Set) Patients() []string {
	out := make([]string, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = smp.Patient
	}
	return out
}

// Slice is a 2D sample: a window of adjacent z-slices stored as channels.
type Slice struct {
	Image   *volume.Volume
	Mask    *volume.Mask
	Patient string
	Label   int
}

// SliceSet is an ordered collection of 2D samples. Slices of one patient
// are contiguous.
type SliceSet struct {
	Slices []Slice
}

// Len returns the number of slices.
func (s *SliceSet) Len() int { return len(s.Slices) }

// Labels returns the label of every slice in order.
func (s *SliceSet) Labels() []int {
	out := make([]int, len(s.Slices))
	for i, sl := range s.Slices {
		out[i] = sl.Label
	}
	return out
}

// Patients returns the patient id of every slice in order.
func (s *SliceSet) Patients() []string {
	out := make([]string, len(s.Slices))
	for i, sl := range s.Slices {
		out[i] = sl.Patient
	}
	return out
}

// Validate checks labels and that every mask matches its image.
func (s *SliceSet) Validate() error {
	for i, sl := range s.Slices {
		if sl.Label != 0 && sl.Label != 1 {
			return fmt.Errorf("slice %d (%s): %w, got %d", i, sl.Patient, ErrInvalidLabel, sl.Label)
		}
		if sl.Image == nil || sl.Mask == nil {
			return fmt.Errorf("slice %d (%s): missing image or mask", i, sl.Patient)
		}
		if sl.Image.Shape != sl.Mask.Shape {
			return fmt.Errorf("slice %d (%s): image %s, mask %s: %w",
				i, sl.Patient, sl.Image.Shape, sl.Mask.Shape, volume.ErrShapeMismatch)
		}
	}
	return nil
}

// Append adds the slices of o after those of s.
func (s *SliceSet) Append(o *SliceSet) {
	s.Slices = append(s.Slices, o.Slices...)
}

// NumPatients counts consecutive runs of equal patient ids.
func NumPatients(patients []string) int {
	n := 0
	for i, p := range patients {
		if i == 0 || p != patients[i-1] {
			n++
		}
	}
	return n
}

// LabelFrequency counts labels, the way a Counter over the label list does.
func LabelFrequency(labels []int) map[int]int {
	freq := make(map[int]int)
	for _, l := range labels {
		freq[l]++
	}
	return freq
}

// FormatFrequency renders a frequency map as "{0: 12, 1: 4}".
func FormatFrequency(freq map[int]int) string {
	keys := make([]int, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d: %d", k, freq[k])
	}
	return out + "}"
}
