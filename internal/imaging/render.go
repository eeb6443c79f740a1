package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// OverlayAlpha is the weight of the label colour on mask contours.
const OverlayAlpha = 0.7

// PreviewResult contains an encoded preview image.
type PreviewResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// SliceImage renders slice z of v as a grey image. Intensities are stretched
// over the value range of the whole volume so neighbouring slices share a
// scale. Image columns are Y and rows are X.
func SliceImage(v *volume.Volume, z int) (*image.Gray, error) {
	if z < 0 || z >= v.Z {
		return nil, fmt.Errorf("slice %d outside volume depth %d", z, v.Z)
	}
	lo, hi := v.MinMax()
	span := hi - lo
	img := image.NewGray(image.Rect(0, 0, v.Y, v.X))
	for x := 0; x < v.X; x++ {
		for y := 0; y < v.Y; y++ {
			g := 0.0
			if span > 0 {
				g = (v.At(x, y, z) - lo) / span
			}
			img.SetGray(y, x, color.Gray{Y: uint8(g*255 + 0.5)})
		}
	}
	return img, nil
}

// Overlay renders slice z with the outline of the mask drawn in the colour
// of label.
func Overlay(v *volume.Volume, m *volume.Mask, z, label int) (*image.NRGBA, error) {
	if v.Shape != m.Shape {
		return nil, volume.ErrShapeMismatch
	}
	grey, err := SliceImage(v, z)
	if err != nil {
		return nil, err
	}
	outline := volume.Outline(m)
	tint := LabelColor(label)

	out := image.NewNRGBA(grey.Bounds())
	for x := 0; x < v.X; x++ {
		for y := 0; y < v.Y; y++ {
			g := grey.GrayAt(y, x).Y
			if outline.At(x, y, z) {
				out.SetNRGBA(y, x, Blend(float64(g)/255, tint, OverlayAlpha))
				continue
			}
			out.SetNRGBA(y, x, color.NRGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return out, nil
}

// Scale resizes img by factor. Factors of 1 or below zero return img
// unchanged. Nearest-neighbour sampling keeps voxel edges crisp.
func Scale(img image.Image, factor float64) image.Image {
	if factor == 1 || factor <= 0 {
		return img
	}
	b := img.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, w, h, imaging.NearestNeighbor)
}

// Encode returns img as a base64 PNG preview.
func Encode(img image.Image) (*PreviewResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return &PreviewResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// SavePNG writes img to path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
