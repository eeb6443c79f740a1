package volume

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
)

// Surface returns the number of boundary voxels of the mask: voxels that are
// set but do not survive a 3D erosion with the 6-connected structuring
// element. Voxels outside the volume count as unset.
func Surface(m *Mask) int {
	return Boundary(m).Count()
}

// Boundary returns the mask minus its 3D erosion. A voxel is interior when
// its six face neighbours are all set; edge and corner neighbours do not
// matter.
func Boundary(m *Mask) *Mask {
	set := func(x, y, z int) bool {
		return x >= 0 && x < m.X && y >= 0 && y < m.Y && z >= 0 && z < m.Z && m.At(x, y, z)
	}
	out := NewMask(m.X, m.Y, m.Z)
	for x := 0; x < m.X; x++ {
		for y := 0; y < m.Y; y++ {
			for z := 0; z < m.Z; z++ {
				if !m.At(x, y, z) {
					continue
				}
				interior := set(x-1, y, z) && set(x+1, y, z) &&
					set(x, y-1, z) && set(x, y+1, z) &&
					set(x, y, z-1) && set(x, y, z+1)
				if !interior {
					out.Set(x, y, z, true)
				}
			}
		}
	}
	return out
}

// Outline returns the contour drawn over rendered slices: each slice minus
// its radius-1 erosion.
func Outline(m *Mask) *Mask {
	out := NewMask(m.X, m.Y, m.Z)
	for z := 0; z < m.Z; z++ {
		eroded := effect.Erode(maskPlane(m, z), 1)
		for x := 0; x < m.X; x++ {
			for y := 0; y < m.Y; y++ {
				if !m.At(x, y, z) {
					continue
				}
				// Image coordinates are (column, row) = (y+1, x+1).
				r, _, _, _ := eroded.At(y+1, x+1).RGBA()
				if r>>8 < 128 {
					out.Set(x, y, z, true)
				}
			}
		}
	}
	return out
}

// maskPlane renders slice z of the mask as a black/white image with a
// one-pixel black frame so contours touching the border erode too.
func maskPlane(m *Mask, z int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Y+2, m.X+2))
	for x := 0; x < m.X; x++ {
		for y := 0; y < m.Y; y++ {
			if m.At(x, y, z) {
				img.SetGray(y+1, x+1, color.Gray{Y: 255})
			}
		}
	}
	return img
}
