package imaging

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// squareCase builds a 5x5x2 volume with a bright 3x3 centre and its mask.
func squareCase(t *testing.T) (*volume.Volume, *volume.Mask) {
	t.Helper()
	v := volume.New(5, 5, 2)
	m := volume.NewMask(5, 5, 2)
	for x := 1; x < 4; x++ {
		for y := 1; y < 4; y++ {
			for z := 0; z < 2; z++ {
				v.Set(x, y, z, 10)
				m.Set(x, y, z, true)
			}
		}
	}
	return v, m
}

func TestSliceImage(t *testing.T) {
	v, _ := squareCase(t)
	img, err := SliceImage(v, 1)
	if err != nil {
		t.Fatalf("SliceImage failed: %v", err)
	}
	if img.Bounds().Dx() != 5 || img.Bounds().Dy() != 5 {
		t.Fatalf("unexpected dimensions %v", img.Bounds())
	}
	if got := img.GrayAt(2, 2).Y; got != 255 {
		t.Errorf("centre = %d, want 255", got)
	}
	if got := img.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("corner = %d, want 0", got)
	}

	for _, z := range []int{-1, 2} {
		if _, err := SliceImage(v, z); err == nil {
			t.Errorf("SliceImage(%d) should fail", z)
		}
	}
}

func TestSliceImage_Orientation(t *testing.T) {
	v := volume.New(2, 3, 1)
	v.Set(1, 2, 0, 1)
	img, err := SliceImage(v, 0)
	if err != nil {
		t.Fatalf("SliceImage failed: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("image is %dx%d, want 3x2", img.Bounds().Dx(), img.Bounds().Dy())
	}
	if img.GrayAt(2, 1).Y != 255 {
		t.Error("voxel (1, 2) should render at column 2, row 1")
	}
}

func TestOverlay(t *testing.T) {
	v, m := squareCase(t)
	img, err := Overlay(v, m, 0, 1)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}

	edge := img.NRGBAAt(1, 1)
	if edge.R == edge.G && edge.G == edge.B {
		t.Errorf("contour pixel should be tinted, got %v", edge)
	}
	centre := img.NRGBAAt(2, 2)
	if centre.R != centre.G || centre.G != centre.B {
		t.Errorf("interior pixel should stay grey, got %v", centre)
	}
	outside := img.NRGBAAt(0, 0)
	if outside != (color.NRGBA{A: 255}) {
		t.Errorf("background pixel = %v, want black", outside)
	}

	if _, err := Overlay(v, volume.NewMask(5, 5, 3), 0, 1); err == nil {
		t.Error("Overlay should reject mismatched shapes")
	}
}

func TestScale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	tests := []struct {
		name   string
		factor float64
		w, h   int
	}{
		{"identity", 1, 4, 3},
		{"negative", -2, 4, 3},
		{"double", 2, 8, 6},
		{"tiny", 0.01, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Scale(img, tt.factor).Bounds()
			if b.Dx() != tt.w || b.Dy() != tt.h {
				t.Errorf("got %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.w, tt.h)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 6, 2))
	res, err := Encode(img)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if res.Width != 6 || res.Height != 2 {
		t.Errorf("dimensions = %dx%d, want 6x2", res.Width, res.Height)
	}
	if res.MimeType != "image/png" || res.ImageBase64 == "" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSavePNG(t *testing.T) {
	v, m := squareCase(t)
	img, err := Overlay(v, m, 0, 0)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "previews", "p001.png")
	if err := SavePNG(path, img); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}

	back, err := NewImageCache().Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if back.Bounds().Dx() != 5 || back.Bounds().Dy() != 5 {
		t.Errorf("reloaded image is %v", back.Bounds())
	}
}
