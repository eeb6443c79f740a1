package dataset

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/stats"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// SampleStatistics computes volume.Statistics for every sample. scale is
// passed to volume.Compute.
func SampleStatistics(s *Set, scale float64) ([]*volume.Statistics, error) {
	out := make([]*volume.Statistics, len(s.Samples))
	for i, smp := range s.Samples {
		st, err := volume.Compute(smp.Volume, smp.Mask, scale)
		if err != nil {
			return nil, fmt.Errorf("sample %d (%s): %w", i, smp.Patient, err)
		}
		out[i] = st
	}
	return out, nil
}

// WriteStatisticsCSV writes one row per sample: patient, label and the
// volume.StatisticsHeader columns.
func WriteStatisticsCSV(w io.Writer, s *Set, all []*volume.Statistics) error {
	cw := csv.NewWriter(w)
	header := append([]string{"patient", "label"}, volume.StatisticsHeader...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, st := range all {
		row := []string{s.Samples[i].Patient, fmt.Sprint(s.Samples[i].Label)}
		for _, v := range st.Row() {
			row = append(row, formatFloat(v))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AggregateHeader names the columns of AggregateRow: mean_, median_ and
// stddev_ of every statistic.
func AggregateHeader() []string {
	var out []string
	for _, prefix := range []string{"mean_", "median_", "stddev_"} {
		for _, name := range volume.StatisticsHeader {
			out = append(out, prefix+name)
		}
	}
	return out
}

// AggregateRow returns the mean, median and standard deviation of every
// statistic column over the samples, in AggregateHeader order.
func AggregateRow(all []*volume.Statistics) []float64 {
	cols := make([][]float64, len(volume.StatisticsHeader))
	for _, st := range all {
		for j, v := range st.Row() {
			cols[j] = append(cols[j], v)
		}
	}
	out := make([]float64, 0, 3*len(cols))
	for _, f := range []func([]float64) float64{stats.Mean, stats.Median, stats.Std} {
		for _, c := range cols {
			out = append(out, f(c))
		}
	}
	return out
}
