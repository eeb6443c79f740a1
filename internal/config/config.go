// internal/config/config.go
//
// This package loads radiomics.yaml. An embedded default document is parsed
// first and the user's file is layered on top, so a config only needs the
// keys it changes.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/dataset"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/model"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "radiomics.yaml"

const defaultConfigYAML = `# radiomics toolkit configuration
log_level: info

data:
  root: data
  dataset: organized

organize:
  trim: false
  # slices, sizes or sizes_masks
  trim_method: sizes
  trim_windows:
    slices: [0.1, 0.9]
    sizes: [0.11, 0.89]
    sizes_masks: [0.11, 0.89]
  # 0 picks 63/77, or 0.1 when trimming
  train_ratio: 0
  slices_per_sample: 3
  rotate: false
  normalize: true
  in_3d: false
  interpolate: false
  spacing: [4.07283, 4.07283, 5.0]
  augment_copies: 0

crossval:
  slice_folds: 10
  patient_folds: 11
  patient_level: true
  epochs: 50
  batch_size: 32
  learning_rate: 0.05
  seed: 1

# Candidate values tried when the matching grid flag is set.
grid:
  filters: [8, 16, 32]
  units: [8, 16, 32]
  num_conv: [1, 2, 3]
  dropout1: [0, 0.25, 0.5]
  dropout2: [0, 0.25, 0.5]
`

// DataConfig locates organised datasets.
type DataConfig struct {
	Root    string `yaml:"root"`
	Dataset string `yaml:"dataset"`
}

// OrganizeConfig mirrors dataset.OrganizeOptions.
type OrganizeConfig struct {
	Trim            bool                  `yaml:"trim"`
	TrimMethod      string                `yaml:"trim_method"`
	TrimWindows     map[string][2]float64 `yaml:"trim_windows"`
	TrainRatio      float64               `yaml:"train_ratio"`
	SlicesPerSample int                   `yaml:"slices_per_sample"`
	Rotate          bool                  `yaml:"rotate"`
	Normalize       bool                  `yaml:"normalize"`
	In3D            bool                  `yaml:"in_3d"`
	Interpolate     bool                  `yaml:"interpolate"`
	Spacing         [3]float64            `yaml:"spacing"`
	AugmentCopies   int                   `yaml:"augment_copies"`
}

// CrossvalConfig holds fold counts and training settings.
type CrossvalConfig struct {
	SliceFolds   int     `yaml:"slice_folds"`
	PatientFolds int     `yaml:"patient_folds"`
	PatientLevel bool    `yaml:"patient_level"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	Seed         int64   `yaml:"seed"`
}

// GridConfig lists the candidate hyper-parameters.
type GridConfig struct {
	Filters  []int     `yaml:"filters"`
	Units    []int     `yaml:"units"`
	NumConv  []int     `yaml:"num_conv"`
	Dropout1 []float64 `yaml:"dropout1"`
	Dropout2 []float64 `yaml:"dropout2"`
}

// Config models radiomics.yaml.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Data     DataConfig     `yaml:"data"`
	Organize OrganizeConfig `yaml:"organize"`
	Crossval CrossvalConfig `yaml:"crossval"`
	Grid     GridConfig     `yaml:"grid"`
}

// Default returns the embedded configuration.
func Default() *Config {
	var c Config
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &c); err != nil {
		panic(fmt.Sprintf("config: embedded default is invalid: %v", err))
	}
	return &c
}

// DefaultYAML returns the embedded default document, for `radiomics config`
// style bootstrapping.
func DefaultYAML() string { return defaultConfigYAML }

// Load reads path over the defaults. An empty path reads DefaultFile and
// tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	c := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.normalize()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Organize.TrimMethod = strings.ToLower(strings.TrimSpace(c.Organize.TrimMethod))
	c.Data.Root = filepath.Clean(strings.TrimSpace(c.Data.Root))
	c.Data.Dataset = strings.TrimSpace(c.Data.Dataset)
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "", "info", "debug":
	default:
		return fmt.Errorf("log_level must be 'info' or 'debug'")
	}
	if c.Data.Dataset == "" {
		return fmt.Errorf("data.dataset is required")
	}
	if _, err := dataset.ParseTrimMethod(c.Organize.TrimMethod); err != nil {
		return fmt.Errorf("organize.trim_method: %w", err)
	}
	for name, w := range c.Organize.TrimWindows {
		if _, err := dataset.ParseTrimMethod(name); err != nil {
			return fmt.Errorf("organize.trim_windows: %w", err)
		}
		if w[0] < 0 || w[1] > 1 || w[0] >= w[1] {
			return fmt.Errorf("organize.trim_windows[%s]: want 0 <= lower < upper <= 1, got %v", name, w)
		}
	}
	if c.Organize.TrainRatio < 0 || c.Organize.TrainRatio >= 1 {
		return fmt.Errorf("organize.train_ratio must be in [0, 1)")
	}
	if c.Organize.SlicesPerSample < 1 {
		return fmt.Errorf("organize.slices_per_sample must be >= 1")
	}
	for i, s := range c.Organize.Spacing {
		if s <= 0 {
			return fmt.Errorf("organize.spacing[%d] must be positive", i)
		}
	}
	if c.Organize.AugmentCopies < 0 {
		return fmt.Errorf("organize.augment_copies must be >= 0")
	}
	if c.Crossval.SliceFolds < 2 || c.Crossval.PatientFolds < 2 {
		return fmt.Errorf("crossval folds must be >= 2")
	}
	if c.Crossval.Epochs < 1 {
		return fmt.Errorf("crossval.epochs must be >= 1")
	}
	if len(c.Grid.Filters) == 0 || len(c.Grid.Units) == 0 || len(c.Grid.NumConv) == 0 ||
		len(c.Grid.Dropout1) == 0 || len(c.Grid.Dropout2) == 0 {
		return fmt.Errorf("grid lists must not be empty")
	}
	return nil
}

// DatasetDir returns <data.root>/<data.dataset>.
func (c *Config) DatasetDir() string {
	return filepath.Join(c.Data.Root, c.Data.Dataset)
}

// OrganizeOptions converts the organize section.
func (c *Config) OrganizeOptions() dataset.OrganizeOptions {
	opts := dataset.DefaultOrganizeOptions()
	o := c.Organize
	opts.Dir = c.Data.Root
	opts.Name = c.Data.Dataset
	opts.Trim = o.Trim
	opts.TrimMethod = dataset.TrimMethod(o.TrimMethod)
	opts.TrimWindows = map[dataset.TrimMethod][2]float64{}
	for name, w := range o.TrimWindows {
		opts.TrimWindows[dataset.TrimMethod(name)] = w
	}
	opts.TrainRatio = o.TrainRatio
	opts.In3D = o.In3D
	opts.Convert.SlicesPerSample = o.SlicesPerSample
	opts.Convert.Rotate = o.Rotate
	opts.Convert.Normalize = o.Normalize
	if o.Interpolate {
		spacing := o.Spacing
		opts.Spacing = &spacing
	}
	return opts
}

// TrainOptions converts the crossval training settings.
func (c *Config) TrainOptions() model.TrainOptions {
	return model.TrainOptions{
		BatchSize:    c.Crossval.BatchSize,
		LearningRate: c.Crossval.LearningRate,
		Seed:         c.Crossval.Seed,
	}
}
