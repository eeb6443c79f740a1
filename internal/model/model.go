// Package model defines the classifier contract cross-validation trains
// against, and a small multilayer perceptron that satisfies it.
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

var ErrNoData = errors.New("model: no training data")

// Params are the hyper-parameters an experiment grid varies.
type Params struct {
	Filters  int     `yaml:"filters" json:"filters"`
	Units    int     `yaml:"units" json:"units"`
	NumConv  int     `yaml:"num_conv" json:"num_conv"`
	Dropout1 float64 `yaml:"dropout1" json:"dropout1"`
	Dropout2 float64 `yaml:"dropout2" json:"dropout2"`
}

// DefaultParams are used when no grid flag is given.
func DefaultParams() Params {
	return Params{Filters: 16, Units: 16, NumConv: 1}
}

// String joins the values with dashes, the name of the combination's
// result folder.
func (p Params) String() string {
	return fmt.Sprintf("%d-%d-%d-%v-%v", p.Filters, p.Units, p.NumConv, p.Dropout1, p.Dropout2)
}

// Data pairs multi-channel slices with one-hot labels.
type Data struct {
	X []*volume.Volume
	Y [][2]float64
}

// Len returns the number of examples.
func (d Data) Len() int { return len(d.X) }

// History records accuracy after every epoch.
type History struct {
	Acc    []float64 `yaml:"acc" json:"acc"`
	ValAcc []float64 `yaml:"val_acc" json:"val_acc"`
}

// Classifier is a trainable binary classifier.
type Classifier interface {
	// Fit trains for epochs passes over train, measuring val after each.
	Fit(ctx context.Context, train, val Data, epochs int) (History, error)
	// PredictProba returns the class probabilities of every example.
	PredictProba(x []*volume.Volume) ([][2]float64, error)
}

// Factory builds an untrained classifier.
type Factory func(Params) Classifier
