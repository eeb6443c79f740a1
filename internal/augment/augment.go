// Package augment produces rotated, translated and scaled copies of a
// volume and its mask.
//
// In-plane resampling goes through 8-bit images (bild for rotation,
// disintegration/imaging for zoom), so intensities are quantised to 1/255
// of the volume's range. Masks are resampled the same way and thresholded
// back to binary at half scale.
package augment

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/segment"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// Rotate rotates every z-slice by angles[0] degrees counter-clockwise, turns
// the volume a quarter over axes (y, z), rotates by angles[1], turns a
// quarter over axes (x, z) and rotates by angles[2]. Voxels rotated in from
// outside are zero.
func Rotate(v *volume.Volume, m *volume.Mask, angles [3]float64) (*volume.Volume, *volume.Mask, error) {
	if v.Shape != m.Shape {
		return nil, nil, volume.ErrShapeMismatch
	}
	mv := maskVolume(m)
	for i, theta := range angles {
		v = rotateSlices(v, theta)
		mv = rotateSlices(mv, theta)
		switch i {
		case 0:
			v, mv = rot90Axes(v, 1, 2), rot90Axes(mv, 1, 2)
		case 1:
			v, mv = rot90Axes(v, 0, 2), rot90Axes(mv, 0, 2)
		}
	}
	return v, binarize(mv), nil
}

// Translate shifts the volume by shift voxels along x, y and z. Fractional
// shifts blend the two neighbouring integer shifts linearly. Voxels shifted
// in from outside are zero.
func Translate(v *volume.Volume, m *volume.Mask, shift [3]float64) (*volume.Volume, *volume.Mask, error) {
	if v.Shape != m.Shape {
		return nil, nil, volume.ErrShapeMismatch
	}
	mv := maskVolume(m)
	for axis, d := range shift {
		lo := math.Floor(d)
		f := d - lo
		v = blend(shiftAxis(v, axis, int(lo)), shiftAxis(v, axis, int(lo)+1), f)
		mv = blend(shiftAxis(mv, axis, int(lo)), shiftAxis(mv, axis, int(lo)+1), f)
	}
	return v, binarize(mv), nil
}

// Scale zooms the volume by scale and crops (scale >= 1) or zero-pads
// (scale < 1) it around the centre back to its original shape. Slices are
// resized linearly; depth is sampled nearest-neighbour.
func Scale(v *volume.Volume, m *volume.Mask, scale float64) (*volume.Volume, *volume.Mask, error) {
	if v.Shape != m.Shape {
		return nil, nil, volume.ErrShapeMismatch
	}
	if scale <= 0 {
		return nil, nil, fmt.Errorf("invalid scale %v", scale)
	}
	mv := maskVolume(m)
	return fitShape(zoom(v, scale), v.Shape), binarize(fitShape(zoom(mv, scale), v.Shape)), nil
}

// ScaleAll applies Scale once per scale factor.
func ScaleAll(v *volume.Volume, m *volume.Mask, scales []float64) ([]*volume.Volume, []*volume.Mask, error) {
	vols := make([]*volume.Volume, len(scales))
	masks := make([]*volume.Mask, len(scales))
	for i, s := range scales {
		sv, sm, err := Scale(v, m, s)
		if err != nil {
			return nil, nil, err
		}
		vols[i], masks[i] = sv, sm
	}
	return vols, masks, nil
}

// rotateSlices rotates every z-slice counter-clockwise about its centre, so
// a quarter turn matches Volume.Rot90(1).
func rotateSlices(v *volume.Volume, theta float64) *volume.Volume {
	if math.Mod(theta, 360) == 0 {
		return v.Clone()
	}
	lo, hi := v.MinMax()
	out := volume.New(v.X, v.Y, v.Z)
	// bild pivots on a whole pixel; at twice the size the slice centre is one.
	pivot := &image.Point{X: v.Y, Y: v.X}
	for z := 0; z < v.Z; z++ {
		big := transform.Resize(toGray(v, z, lo, hi), 2*v.Y, 2*v.X, transform.NearestNeighbor)
		// bild rotates clockwise.
		rotated := transform.Rotate(big, -theta, &transform.RotationOptions{Pivot: pivot})
		fromImage(out, z, transform.Resize(rotated, v.Y, v.X, transform.Box), lo, hi)
	}
	return out
}

// zoom resamples v to round(shape*scale).
func zoom(v *volume.Volume, scale float64) *volume.Volume {
	nx := int(math.Round(float64(v.X) * scale))
	ny := int(math.Round(float64(v.Y) * scale))
	nz := int(math.Round(float64(v.Z) * scale))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	if nz < 1 {
		nz = 1
	}
	lo, hi := v.MinMax()
	out := volume.New(nx, ny, nz)
	for k := 0; k < nz; k++ {
		src := int(float64(k) * float64(v.Z) / float64(nz))
		if src >= v.Z {
			src = v.Z - 1
		}
		resized := imaging.Resize(toGray(v, src, lo, hi), ny, nx, imaging.Linear)
		fromImage(out, k, resized, lo, hi)
	}
	return out
}

// fitShape crops or zero-pads z around the centre to shape s.
func fitShape(z *volume.Volume, s volume.Shape) *volume.Volume {
	out := volume.New(s.X, s.Y, s.Z)
	// Offsets of z inside out; negative when z is larger.
	off := [3]int{
		-int(float64(z.X-s.X) / 2),
		-int(float64(z.Y-s.Y) / 2),
		-int(float64(z.Z-s.Z) / 2),
	}
	for x := 0; x < s.X; x++ {
		sx := x - off[0]
		if sx < 0 || sx >= z.X {
			continue
		}
		for y := 0; y < s.Y; y++ {
			sy := y - off[1]
			if sy < 0 || sy >= z.Y {
				continue
			}
			for k := 0; k < s.Z; k++ {
				sz := k - off[2]
				if sz < 0 || sz >= z.Z {
					continue
				}
				out.Set(x, y, k, z.At(sx, sy, sz))
			}
		}
	}
	return out
}

// shiftAxis moves v by n voxels along axis, filling with zeros.
func shiftAxis(v *volume.Volume, axis, n int) *volume.Volume {
	out := volume.New(v.X, v.Y, v.Z)
	for x := 0; x < v.X; x++ {
		for y := 0; y < v.Y; y++ {
			for z := 0; z < v.Z; z++ {
				src := [3]int{x, y, z}
				src[axis] -= n
				if src[0] < 0 || src[0] >= v.X || src[1] < 0 || src[1] >= v.Y || src[2] < 0 || src[2] >= v.Z {
					continue
				}
				out.Set(x, y, z, v.At(src[0], src[1], src[2]))
			}
		}
	}
	return out
}

func blend(a, b *volume.Volume, f float64) *volume.Volume {
	out := volume.New(a.X, a.Y, a.Z)
	for i := range out.Data {
		out.Data[i] = a.Data[i]*(1-f) + b.Data[i]*f
	}
	return out
}

// rot90Axes turns v a quarter in the plane of axes a and b, like numpy
// rot90(v, axes=(a, b)): out[..p..q..] = in[..q..N_b-1-p..].
func rot90Axes(v *volume.Volume, a, b int) *volume.Volume {
	in := [3]int{v.X, v.Y, v.Z}
	dims := in
	dims[a], dims[b] = in[b], in[a]
	out := volume.New(dims[0], dims[1], dims[2])
	for x := 0; x < dims[0]; x++ {
		for y := 0; y < dims[1]; y++ {
			for z := 0; z < dims[2]; z++ {
				o := [3]int{x, y, z}
				src := o
				src[a] = o[b]
				src[b] = in[b] - 1 - o[a]
				out.Set(x, y, z, v.At(src[0], src[1], src[2]))
			}
		}
	}
	return out
}

// toGray renders slice z over [lo, hi] as an 8-bit image; columns are y.
func toGray(v *volume.Volume, z int, lo, hi float64) *image.Gray {
	span := hi - lo
	img := image.NewGray(image.Rect(0, 0, v.Y, v.X))
	for x := 0; x < v.X; x++ {
		for y := 0; y < v.Y; y++ {
			g := 0.0
			if span > 0 {
				g = (v.At(x, y, z) - lo) / span
			}
			img.SetGray(y, x, color.Gray{Y: uint8(math.Round(g * 255))})
		}
	}
	return img
}

// fromImage writes img back into slice z of v, undoing toGray. Pixels
// outside img are left zero.
func fromImage(v *volume.Volume, z int, img image.Image, lo, hi float64) {
	b := img.Bounds()
	span := hi - lo
	for x := 0; x < v.X && x < b.Dy(); x++ {
		for y := 0; y < v.Y && y < b.Dx(); y++ {
			r, _, _, a := img.At(b.Min.X+y, b.Min.Y+x).RGBA()
			if a == 0 {
				continue
			}
			v.Set(x, y, z, lo+float64(r)/0xffff*span)
		}
	}
}

func maskVolume(m *volume.Mask) *volume.Volume {
	v := volume.New(m.X, m.Y, m.Z)
	for i, on := range m.Data {
		if on {
			v.Data[i] = 1
		}
	}
	return v
}

// binarize thresholds an interpolated mask at 0.5, going through
// segment.Threshold one slice at a time.
func binarize(v *volume.Volume) *volume.Mask {
	m := volume.NewMask(v.X, v.Y, v.Z)
	for z := 0; z < v.Z; z++ {
		// Fixed [0, 1] range so 0.5 maps to level 128.
		bin := segment.Threshold(toGray(v, z, 0, 1), 128)
		for x := 0; x < v.X; x++ {
			for y := 0; y < v.Y; y++ {
				if bin.GrayAt(y, x).Y == 255 {
					m.Set(x, y, z, true)
				}
			}
		}
	}
	return m
}
