package volume

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when a volume and a mask do not share a shape.
var ErrShapeMismatch = errors.New("volume: shape mismatch")

// Shape is the extent of a volume along X, Y and Z.
type Shape struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Len returns the number of voxels.
func (s Shape) Len() int { return s.X * s.Y * s.Z }

// Index returns the flat offset of voxel (x, y, z).
func (s Shape) Index(x, y, z int) int { return (x*s.Y+y)*s.Z + z }

func (s Shape) String() string { return fmt.Sprintf("(%d, %d, %d)", s.X, s.Y, s.Z) }

// Volume is a dense 3D array of voxel intensities.
type Volume struct {
	Shape
	Data []float64
}

// New allocates a zero-filled volume.
func New(x, y, z int) *Volume {
	s := Shape{X: x, Y: y, Z: z}
	return &Volume{Shape: s, Data: make([]float64, s.Len())}
}

// FromData wraps data in a volume of the given shape.
func FromData(s Shape, data []float64) (*Volume, error) {
	if len(data) != s.Len() {
		return nil, fmt.Errorf("volume: %d values for shape %s", len(data), s)
	}
	return &Volume{Shape: s, Data: data}, nil
}

// At returns the voxel at (x, y, z).
func (v *Volume) At(x, y, z int) float64 { return v.Data[v.Index(x, y, z)] }

// Set stores val at (x, y, z).
func (v *Volume) Set(x, y, z int, val float64) { v.Data[v.Index(x, y, z)] = val }

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	out := &Volume{Shape: v.Shape, Data: make([]float64, len(v.Data))}
	copy(out.Data, v.Data)
	return out
}

// MinMax returns the smallest and largest voxel values.
func (v *Volume) MinMax() (float64, float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	lo, hi := v.Data[0], v.Data[0]
	for _, d := range v.Data[1:] {
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	return lo, hi
}

// Normalize rescales the volume in place to [0, 1]. A constant volume
// becomes all zeros.
func (v *Volume) Normalize() {
	lo, hi := v.MinMax()
	span := hi - lo
	for i, d := range v.Data {
		if span == 0 {
			v.Data[i] = 0
			continue
		}
		v.Data[i] = (d - lo) / span
	}
}

// Rot90 returns the volume rotated k quarter turns in the X-Y plane.
func (v *Volume) Rot90(k int) *Volume {
	out, idx := rot90Shape(v.Shape, k)
	res := &Volume{Shape: out, Data: make([]float64, len(v.Data))}
	for i, src := range idx {
		res.Data[i] = v.Data[src]
	}
	return res
}

// Window returns the sub-volume [:, :, start:start+n].
func (v *Volume) Window(start, n int) (*Volume, error) {
	if start < 0 || n <= 0 || start+n > v.Z {
		return nil, fmt.Errorf("window [%d:%d] outside %d slices", start, start+n, v.Z)
	}
	out := New(v.X, v.Y, n)
	for x := 0; x < v.X; x++ {
		for y := 0; y < v.Y; y++ {
			copy(out.Data[out.Index(x, y, 0):out.Index(x, y, 0)+n], v.Data[v.Index(x, y, start):v.Index(x, y, start)+n])
		}
	}
	return out, nil
}

// Slice returns plane z as a row-major X×Y grid.
func (v *Volume) Slice(z int) [][]float64 {
	plane := make([][]float64, v.X)
	for x := 0; x < v.X; x++ {
		plane[x] = make([]float64, v.Y)
		for y := 0; y < v.Y; y++ {
			plane[x][y] = v.At(x, y, z)
		}
	}
	return plane
}

// SetSlice overwrites plane z from a row-major X×Y grid.
func (v *Volume) SetSlice(z int, plane [][]float64) {
	for x := 0; x < v.X && x < len(plane); x++ {
		for y := 0; y < v.Y && y < len(plane[x]); y++ {
			v.Set(x, y, z, plane[x][y])
		}
	}
}

// SubVolume copies the box [min, max) into a new volume.
func (v *Volume) SubVolume(min, max [3]int) *Volume {
	out := New(max[0]-min[0], max[1]-min[1], max[2]-min[2])
	for x := min[0]; x < max[0]; x++ {
		for y := min[1]; y < max[1]; y++ {
			for z := min[2]; z < max[2]; z++ {
				out.Set(x-min[0], y-min[1], z-min[2], v.At(x, y, z))
			}
		}
	}
	return out
}

// rot90Shape returns the rotated shape and, for each output voxel, the
// source offset in the input.
func rot90Shape(s Shape, k int) (Shape, []int) {
	k = ((k % 4) + 4) % 4
	out := s
	if k%2 == 1 {
		out.X, out.Y = s.Y, s.X
	}
	idx := make([]int, s.Len())
	for a := 0; a < out.X; a++ {
		for b := 0; b < out.Y; b++ {
			var sx, sy int
			switch k {
			case 0:
				sx, sy = a, b
			case 1:
				sx, sy = b, s.Y-1-a
			case 2:
				sx, sy = s.X-1-a, s.Y-1-b
			case 3:
				sx, sy = s.X-1-b, a
			}
			for z := 0; z < s.Z; z++ {
				idx[out.Index(a, b, z)] = s.Index(sx, sy, z)
			}
		}
	}
	return out, idx
}

// Equal reports whether two volumes have the same shape and values within tol.
func Equal(a, b *Volume, tol float64) bool {
	if a.Shape != b.Shape {
		return false
	}
	for i := range a.Data {
		if math.Abs(a.Data[i]-b.Data[i]) > tol {
			return false
		}
	}
	return true
}
