package volume

import (
	"errors"
	"fmt"
)

// ErrEmptyMask is returned by operations that need at least one set voxel.
var ErrEmptyMask = errors.New("volume: mask has no set voxels")

// Mask is a binary volume marking the region of interest.
type Mask struct {
	Shape
	Data []bool
}

// NewMask allocates an empty mask.
func NewMask(x, y, z int) *Mask {
	s := Shape{X: x, Y: y, Z: z}
	return &Mask{Shape: s, Data: make([]bool, s.Len())}
}

// At reports whether voxel (x, y, z) is set.
func (m *Mask) At(x, y, z int) bool { return m.Data[m.Index(x, y, z)] }

// Set marks voxel (x, y, z).
func (m *Mask) Set(x, y, z int, on bool) { m.Data[m.Index(x, y, z)] = on }

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{Shape: m.Shape, Data: make([]bool, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, on := range m.Data {
		if on {
			n++
		}
	}
	return n
}

// Rot90 returns the mask rotated k quarter turns in the X-Y plane.
func (m *Mask) Rot90(k int) *Mask {
	out, idx := rot90Shape(m.Shape, k)
	res := &Mask{Shape: out, Data: make([]bool, len(m.Data))}
	for i, src := range idx {
		res.Data[i] = m.Data[src]
	}
	return res
}

// Window returns the sub-mask [:, :, start:start+n].
func (m *Mask) Window(start, n int) (*Mask, error) {
	if start < 0 || n <= 0 || start+n > m.Z {
		return nil, fmt.Errorf("window [%d:%d] outside %d slices", start, start+n, m.Z)
	}
	out := NewMask(m.X, m.Y, n)
	for x := 0; x < m.X; x++ {
		for y := 0; y < m.Y; y++ {
			for z := 0; z < n; z++ {
				out.Set(x, y, z, m.At(x, y, start+z))
			}
		}
	}
	return out, nil
}

// SubMask copies the box [min, max) into a new mask.
func (m *Mask) SubMask(min, max [3]int) *Mask {
	out := NewMask(max[0]-min[0], max[1]-min[1], max[2]-min[2])
	for x := min[0]; x < max[0]; x++ {
		for y := min[1]; y < max[1]; y++ {
			for z := min[2]; z < max[2]; z++ {
				out.Set(x-min[0], y-min[1], z-min[2], m.At(x, y, z))
			}
		}
	}
	return out
}

// Box is the inclusive bounding box of the set voxels of a mask.
type Box struct {
	Min [3]int `json:"min"`
	Max [3]int `json:"max"`
}

// Size returns the extent of the box along each axis.
func (b Box) Size() [3]int {
	return [3]int{b.Max[0] - b.Min[0] + 1, b.Max[1] - b.Min[1] + 1, b.Max[2] - b.Min[2] + 1}
}

// Bounds returns the bounding box of the set voxels. ok is false for an
// empty mask.
func (m *Mask) Bounds() (box Box, ok bool) {
	box.Min = [3]int{m.X, m.Y, m.Z}
	box.Max = [3]int{-1, -1, -1}
	for x := 0; x < m.X; x++ {
		for y := 0; y < m.Y; y++ {
			for z := 0; z < m.Z; z++ {
				if !m.At(x, y, z) {
					continue
				}
				ok = true
				p := [3]int{x, y, z}
				for i := range p {
					if p[i] < box.Min[i] {
						box.Min[i] = p[i]
					}
					if p[i] > box.Max[i] {
						box.Max[i] = p[i]
					}
				}
			}
		}
	}
	return box, ok
}

// MaskBox returns the size of the box that fits every set voxel and the
// number of set voxels (the granular volume). An empty mask has size zero.
func MaskBox(m *Mask) (size [3]int, voxels int) {
	box, ok := m.Bounds()
	if !ok {
		return [3]int{}, 0
	}
	return box.Size(), m.Count()
}

// BoxVolume is the product of the box size components.
func BoxVolume(size [3]int) int { return size[0] * size[1] * size[2] }

// TrimHealthy removes the top and bottom slices whose mask is empty, keeping
// margin extra slices on each side of the contour.
func TrimHealthy(v *Volume, m *Mask, margin int) (*Volume, *Mask, error) {
	if v.Shape != m.Shape {
		return nil, nil, ErrShapeMismatch
	}
	box, ok := m.Bounds()
	if !ok {
		return nil, nil, ErrEmptyMask
	}
	lo := box.Min[2] - margin
	if lo < 0 {
		lo = 0
	}
	hi := box.Max[2] + margin + 1
	if hi > v.Z {
		hi = v.Z
	}
	min := [3]int{0, 0, lo}
	max := [3]int{v.X, v.Y, hi}
	return v.SubVolume(min, max), m.SubMask(min, max), nil
}

// CropToMask crops volume and mask to the mask bounding box grown by margin
// voxels along every axis, clamped to the volume.
func CropToMask(v *Volume, m *Mask, margin int) (*Volume, *Mask, error) {
	if v.Shape != m.Shape {
		return nil, nil, ErrShapeMismatch
	}
	box, ok := m.Bounds()
	if !ok {
		return nil, nil, ErrEmptyMask
	}
	limits := [3]int{v.X, v.Y, v.Z}
	var min, max [3]int
	for i := 0; i < 3; i++ {
		min[i] = clamp(box.Min[i]-margin, 0, limits[i])
		max[i] = clamp(box.Max[i]+margin+1, 0, limits[i])
	}
	return v.SubVolume(min, max), m.SubMask(min, max), nil
}

// clamp constrains val to [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
