// Package volume provides the 3D voxel containers used across the toolkit.
//
// A Volume holds voxel intensities and a Mask marks the region of interest
// (for example a tumour contour) inside a volume of the same shape. Both are
// stored flat in x-major order with z varying fastest, so a z-window of a
// single (x, y) column is contiguous.
//
// # Axes
//
// Axis 0 is X (rows), axis 1 is Y (columns) and axis 2 is Z (slices). A 2D
// training sample is a z-window of a volume: an X×Y image with one channel per
// slice in the window.
//
// # Rotations
//
// Rot90 follows the numpy convention for rotating the first two axes:
// rotating once maps out[a][b][z] = in[b][Y-1-a][z]. Rotating four times is
// the identity.
//
// # Statistics
//
// MaskBox, Surface, GLCM and Statistics compute the descriptors written to
// the per-dataset statistics CSV: intensity mean/median/std, mask surface and
// granular volume, and three grey-level co-occurrence features.
package volume
