package experiment

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/config"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/model"
)

// Flags selects which hyper-parameters take their candidate lists instead
// of the single default value.
type Flags struct {
	Filters  bool
	Units    bool
	NumConv  bool
	Dropout1 bool
	Dropout2 bool
}

// Grid is the set of hyper-parameter values to try.
type Grid struct {
	Filters  []int
	Units    []int
	NumConv  []int
	Dropout1 []float64
	Dropout2 []float64

	suffix string
}

// NewGrid starts from model.DefaultParams and swaps in the candidate list of
// every flagged parameter.
func NewGrid(candidates config.GridConfig, f Flags) Grid {
	d := model.DefaultParams()
	g := Grid{
		Filters:  []int{d.Filters},
		Units:    []int{d.Units},
		NumConv:  []int{d.NumConv},
		Dropout1: []float64{d.Dropout1},
		Dropout2: []float64{d.Dropout2},
	}
	if f.Filters {
		g.Filters = candidates.Filters
		g.suffix += "-filters"
	}
	if f.Units {
		g.Units = candidates.Units
		g.suffix += "-units"
	}
	if f.NumConv {
		g.NumConv = candidates.NumConv
		g.suffix += "-num_conv"
	}
	if f.Dropout1 {
		g.Dropout1 = candidates.Dropout1
		g.suffix += "-dropout1"
	}
	if f.Dropout2 {
		g.Dropout2 = candidates.Dropout2
		g.suffix += "-dropout2"
	}
	return g
}

// Suffix names the varied parameters, e.g. "-filters-dropout2". It is empty
// for the default grid.
func (g Grid) Suffix() string { return g.suffix }

// Combinations returns the cartesian product, varying dropout2 fastest and
// filters slowest.
func (g Grid) Combinations() []model.Params {
	var out []model.Params
	for _, f := range g.Filters {
		for _, u := range g.Units {
			for _, c := range g.NumConv {
				for _, d1 := range g.Dropout1 {
					for _, d2 := range g.Dropout2 {
						out = append(out, model.Params{Filters: f, Units: u, NumConv: c, Dropout1: d1, Dropout2: d2})
					}
				}
			}
		}
	}
	return out
}

// NextLocation returns the first root/nnNNNN folder that does not exist.
func NextLocation(root string) (string, error) {
	for n := 0; n < 10000; n++ {
		path := filepath.Join(root, fmt.Sprintf("nn%04d", n))
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("experiment: stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("experiment: no free run folder in %s", root)
}
