package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/augment"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/config"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/crossval"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/dataset"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/experiment"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/imaging"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/model"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/results"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/server"
)

// errUsage reports a flag error that has already been printed.
var errUsage = errors.New("usage")

// flags wraps a subcommand flag set with the shared --config option.
type flags struct {
	*flag.FlagSet
	configPath *string
}

func newFlags(name, usage string) *flags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	f := &flags{
		FlagSet:    fs,
		configPath: fs.String("config", "", "configuration file (default ./"+config.DefaultFile+" when present)"),
	}
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: radiomics %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return f
}

// parse parses args and loads the configuration. A help request returns
// a nil config and no error.
func (f *flags) parse(args []string) (*config.Config, error) {
	if err := f.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil
		}
		return nil, errUsage
	}
	cfg, err := config.Load(*f.configPath)
	if err != nil {
		return nil, err
	}
	if cfg.LogLevel == "debug" || os.Getenv("RADIOMICS_LOG_LEVEL") == "debug" {
		log.Printf("%s: config %+v", f.Name(), *cfg)
	}
	return cfg, nil
}

// visited reports whether name was set on the command line.
func (f *flags) visited(name string) bool {
	found := false
	f.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

func runImport(ctx context.Context, args []string) error {
	f := newFlags("import", "[options] <source folder>")
	format := f.String("format", "full", "volume format: full, cut or margincut")
	margin := f.Int("healthy-margin", -1, "keep this many healthy slices above and below the tumour (-1 keeps all)")
	workers := f.Int("workers", 0, "patients read at once (0 uses every CPU)")
	out := f.String("out", "", "output folder (default data.root)")
	cfg, err := f.parse(args)
	if cfg == nil {
		return err
	}
	if f.NArg() != 1 {
		f.Usage()
		return errUsage
	}

	opts := dataset.DefaultImportOptions()
	switch *format {
	case "full":
		opts.Format = dataset.FormatFull
	case "cut", "margincut":
		opts.Format = *format
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
	opts.HealthyMargin = *margin
	opts.Workers = *workers
	if *out == "" {
		*out = cfg.Data.Root
	}

	set, err := dataset.Import(ctx, f.Arg(0), opts)
	if err != nil {
		return err
	}
	name := dataset.RawName(opts.Format)
	if err := dataset.Save(*out, name, set); err != nil {
		return err
	}
	fmt.Printf("Number of samples:   %d\n", set.Len())
	fmt.Printf("Label frequency:     %s\n", dataset.FormatFrequency(dataset.LabelFrequency(set.Labels())))
	fmt.Printf("Dataset saved in: '%s'\n", filepath.Join(*out, name+dataset.Ext))
	return nil
}

func runStats(ctx context.Context, args []string) error {
	f := newFlags("stats", "[options]")
	in := f.String("in", "", "folder of the imported set (default data.root)")
	name := f.String("name", dataset.RawName(dataset.FormatFull), "stored set name")
	scale := f.Float64("scale", 255, "intensity multiplier applied before the statistics")
	out := f.String("out", "", "CSV file (default stdout)")
	cfg, err := f.parse(args)
	if cfg == nil {
		return err
	}
	if *in == "" {
		*in = cfg.Data.Root
	}

	set, err := dataset.Load(*in, *name)
	if err != nil {
		return err
	}
	all, err := dataset.SampleStatistics(set, *scale)
	if err != nil {
		return err
	}

	if *out == "" {
		return dataset.WriteStatisticsCSV(os.Stdout, set, all)
	}
	fh, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *out, err)
	}
	if err := dataset.WriteStatisticsCSV(fh, set, all); err != nil {
		fh.Close()
		return err
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", *out, err)
	}
	header, row := dataset.AggregateHeader(), dataset.AggregateRow(all)
	for i := range header {
		fmt.Printf("%22s: %.4f\n", header[i], row[i])
	}
	fmt.Printf("Statistics saved in '%s'\n", *out)
	return nil
}

func runOrganize(ctx context.Context, args []string) error {
	f := newFlags("organize", "[options]")
	in := f.String("in", "", "folder of the imported set (default data.root)")
	name := f.String("name", dataset.RawName(dataset.FormatFull), "stored set name")
	trim := f.Bool("trim", false, "remove outliers (overrides organize.trim)")
	trimMethod := f.String("trim-method", "", "slices, sizes or sizes_masks (overrides organize.trim_method)")
	interpolate := f.Bool("interpolate", false, "resample volumes to cubic voxels (overrides organize.interpolate)")
	in3D := f.Bool("3d", false, "save volumes instead of slices (overrides organize.in_3d)")
	copies := f.Int("augment", -1, "augmented copies per training sample (overrides organize.augment_copies)")
	seed := f.Int64("seed", 0, "augmentation seed (default crossval.seed)")
	yes := f.Bool("yes", false, "skip the confirmation, overwriting data without asking")
	cfg, err := f.parse(args)
	if cfg == nil {
		return err
	}
	if *in == "" {
		*in = cfg.Data.Root
	}
	if f.visited("trim") {
		cfg.Organize.Trim = *trim
	}
	if *trimMethod != "" {
		cfg.Organize.TrimMethod = *trimMethod
	}
	if f.visited("interpolate") {
		cfg.Organize.Interpolate = *interpolate
	}
	if f.visited("3d") {
		cfg.Organize.In3D = *in3D
	}
	if *copies >= 0 {
		cfg.Organize.AugmentCopies = *copies
	}
	if !f.visited("seed") {
		*seed = cfg.Crossval.Seed
	}

	set, err := dataset.Load(*in, *name)
	if err != nil {
		return err
	}
	opts := cfg.OrganizeOptions()
	opts.Out = os.Stdout
	if !*yes {
		opts.Confirm = confirm(os.Stdin, os.Stdout)
	}
	if n := cfg.Organize.AugmentCopies; n > 0 {
		rng := rand.New(rand.NewSource(*seed))
		augOpts := augment.DefaultOptions()
		augOpts.Copies = n
		opts.Augment = func(train *dataset.Set) (*dataset.Set, error) {
			return augment.Expand(rng, train, augOpts)
		}
	}

	res, err := dataset.Organize(ctx, set, opts)
	if errors.Is(err, dataset.ErrAborted) {
		fmt.Println("Nothing was saved.")
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("organize: %s (%d train, %d test samples)", res.Path, res.TrainCount, res.TestCount)
	return nil
}

// confirm asks before data is overwritten, until the answer starts with y.
func confirm(in io.Reader, out io.Writer) func() bool {
	return func() bool {
		sc := bufio.NewScanner(in)
		for {
			fmt.Fprintln(out, "Are you sure you want to save? This may overwrite some files.")
			fmt.Fprint(out, "Type 'y' to save data or Ctrl-C to abort.\n>> ")
			if !sc.Scan() {
				return false
			}
			if answer := strings.ToLower(strings.TrimSpace(sc.Text())); strings.HasPrefix(answer, "y") {
				return true
			}
		}
	}
}

func runCrossval(ctx context.Context, args []string) error {
	f := newFlags("crossval", "[options]")
	dir := f.String("dataset", "", "organised dataset folder (default data.root/data.dataset)")
	root := f.String("root", ".", "folder receiving the nnNNNN run folder")
	patient := f.Bool("patient-level", false, "align folds to patients (overrides crossval.patient_level)")
	folds := f.Int("folds", 0, "number of folds (default crossval.slice_folds or patient_folds)")
	epochs := f.Int("epochs", 0, "training epochs per fold (default crossval.epochs)")
	var grid experiment.Flags
	f.BoolVar(&grid.Filters, "filters", false, "try every grid.filters value")
	f.BoolVar(&grid.Units, "units", false, "try every grid.units value")
	f.BoolVar(&grid.NumConv, "num_conv", false, "try every grid.num_conv value")
	f.BoolVar(&grid.Dropout1, "dropout1", false, "try every grid.dropout1 value")
	f.BoolVar(&grid.Dropout2, "dropout2", false, "try every grid.dropout2 value")
	cfg, err := f.parse(args)
	if cfg == nil {
		return err
	}
	if *dir == "" {
		*dir = cfg.DatasetDir()
	}
	if f.visited("patient-level") {
		cfg.Crossval.PatientLevel = *patient
	}
	if *epochs > 0 {
		cfg.Crossval.Epochs = *epochs
	}
	if *folds == 0 {
		*folds = cfg.Crossval.SliceFolds
		if cfg.Crossval.PatientLevel {
			*folds = cfg.Crossval.PatientFolds
		}
	}

	_, err = experiment.Run(ctx, experiment.Options{
		DatasetDir: *dir,
		Root:       *root,
		Grid:       experiment.NewGrid(cfg.Grid, grid),
		Crossval: crossval.Options{
			PatientLevel: cfg.Crossval.PatientLevel,
			Folds:        *folds,
			Epochs:       cfg.Crossval.Epochs,
		},
		Factory: model.MLPFactory(cfg.TrainOptions()),
		Command: strings.Join(append([]string{"radiomics crossval"}, args...), " "),
		Out:     os.Stdout,
	})
	return err
}

// filterFlag collects repeated key=value filters.
type filterFlag map[string]string

func (f filterFlag) String() string { return fmt.Sprint(map[string]string(f)) }

func (f filterFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("filter %q is not key=value", s)
	}
	f[strings.TrimSpace(k)] = strings.TrimSpace(v)
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	f := newFlags("search", "[options] [results.yaml or run folder]")
	filters := filterFlag{}
	f.Var(filters, "filter", "parameter filter key=value, repeatable (prints without prompting)")
	plain := f.Bool("plain", false, "print every match without the interactive prompt")
	cfg, err := f.parse(args)
	if cfg == nil {
		return err
	}
	path := "."
	if f.NArg() > 0 {
		path = f.Arg(0)
	}

	doc, err := results.Load(path)
	if err != nil {
		return err
	}
	if *plain || len(filters) > 0 {
		n := doc.Print(os.Stdout, filters)
		fmt.Printf("%d of %d samples match.\n", n, len(doc.Keys))
		return nil
	}
	return results.Run(doc, os.Stdin, os.Stdout)
}

func runPreview(ctx context.Context, args []string) error {
	f := newFlags("preview", "[options] <sample index>")
	in := f.String("in", "", "folder of the stored set (default data.root)")
	name := f.String("name", dataset.RawName(dataset.FormatFull), "stored set name")
	out := f.String("out", "", "PNG file (default preview_<patient>.png)")
	cols := f.Int("cols", 6, "montage columns")
	zoom := f.Float64("zoom", 4, "scale factor of every slice")
	overlay := f.Bool("overlay", true, "draw the mask outline in the label colour")
	cfg, err := f.parse(args)
	if cfg == nil {
		return err
	}
	if f.NArg() != 1 {
		f.Usage()
		return errUsage
	}
	var index int
	if _, err := fmt.Sscan(f.Arg(0), &index); err != nil {
		return fmt.Errorf("invalid sample index %q", f.Arg(0))
	}
	if *in == "" {
		*in = cfg.Data.Root
	}

	set, err := dataset.Load(*in, *name)
	if err != nil {
		return err
	}
	if index < 0 || index >= set.Len() {
		return fmt.Errorf("index %d outside set of %d samples", index, set.Len())
	}
	smp := set.Samples[index]

	tiles := make([]image.Image, smp.Volume.Z)
	for z := range tiles {
		var img image.Image
		if *overlay {
			img, err = imaging.Overlay(smp.Volume, smp.Mask, z, smp.Label)
		} else {
			img, err = imaging.SliceImage(smp.Volume, z)
		}
		if err != nil {
			return err
		}
		tiles[z] = imaging.Scale(img, *zoom)
	}
	montage, err := imaging.Montage(tiles, *cols, 2)
	if err != nil {
		return err
	}
	if *out == "" {
		*out = "preview_" + smp.Patient + ".png"
	}
	if err := imaging.SavePNG(*out, montage); err != nil {
		return err
	}
	fmt.Printf("Patient %s (label %d, shape %s) saved in '%s'\n", smp.Patient, smp.Label, smp.Volume.Shape, *out)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	f := newFlags("serve", "")
	cfg, err := f.parse(args)
	if cfg == nil {
		return err
	}
	server.Version = Version
	return server.New().Run()
}

func runConfig(ctx context.Context, args []string) error {
	fmt.Print(config.DefaultYAML())
	return nil
}
