// Package dataset curates labelled 3D samples into training and test sets.
//
// A Set pairs each patient volume with its tumour mask, patient id and a
// 0/1 label. The package analyses the distributions of depth and tumour
// size per label, trims outliers, resamples to cubic voxels, splits the set
// so both labels and both halves of each label's depth distribution are
// divided by the same ratio, and cuts volumes into multi-channel 2D slices.
//
// Organised datasets are stored as gzip-compressed gob archives under
// <dir>/<name>/training_set.gob.gz and test_set.gob.gz, each with
// _patients and _masks sidecars.
package dataset
