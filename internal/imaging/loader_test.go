package imaging

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestImageCache(t *testing.T) {
	dir := t.TempDir()
	slice := image.NewGray(image.Rect(0, 0, 8, 6))
	path := writeSlice(t, dir, "slice.png", slice)

	cache := NewImageCache()
	first, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := first.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Errorf("slice is %dx%d, want 8x6", b.Dx(), b.Dy())
	}
	again, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if first != again || cache.Len() != 1 {
		t.Errorf("second Load was not served from the cache (len %d)", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Clear left %d images", cache.Len())
	}
}

func TestImageCache_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.png"), corrupt} {
		cache := NewImageCache()
		if _, err := cache.Load(path); err == nil {
			t.Errorf("Load(%s) should fail", filepath.Base(path))
		}
		if cache.Len() != 0 {
			t.Errorf("failed Load of %s was cached", filepath.Base(path))
		}
	}
}

func TestImageCache_Parallel(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 4; i++ {
		paths = append(paths, writeSlice(t, dir, string(rune('a'+i))+".png", image.NewGray(image.Rect(0, 0, 4, 4))))
	}

	cache := NewImageCache()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}(paths[i%len(paths)])
	}
	wg.Wait()

	if cache.Len() != len(paths) {
		t.Errorf("cache holds %d images, want %d", cache.Len(), len(paths))
	}
}

// writeSlice encodes a grey slice into dir/name.
func writeSlice(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
	return path
}

func TestLoadStack(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for z := 0; z < 3; z++ {
		// 4 wide (Y), 2 tall (X)
		img := image.NewGray(image.Rect(0, 0, 4, 2))
		img.SetGray(3, 1, color.Gray{Y: uint8(100 * z)})
		paths = append(paths, writeSlice(t, dir, []string{"a.png", "b.png", "c.png"}[z], img))
	}

	cache := NewImageCache()
	vol, err := LoadStack(cache, paths)
	if err != nil {
		t.Fatalf("LoadStack failed: %v", err)
	}
	if vol.X != 2 || vol.Y != 4 || vol.Z != 3 {
		t.Fatalf("stack shape = %s, want (2, 4, 3)", vol.Shape)
	}
	if got, want := vol.At(1, 3, 2), 200.0/255; math.Abs(got-want) > 1e-3 {
		t.Errorf("vol[1][3][2] = %v, want %v", got, want)
	}
	if vol.At(0, 0, 2) != 0 {
		t.Errorf("vol[0][0][2] = %v, want 0", vol.At(0, 0, 2))
	}
	if cache.Len() != 3 {
		t.Errorf("cache holds %d images, want 3", cache.Len())
	}
}

func TestLoadStack_Errors(t *testing.T) {
	dir := t.TempDir()
	a := writeSlice(t, dir, "a.png", image.NewGray(image.Rect(0, 0, 4, 4)))
	b := writeSlice(t, dir, "b.png", image.NewGray(image.Rect(0, 0, 3, 4)))

	tests := []struct {
		name  string
		paths []string
	}{
		{"empty", nil},
		{"size mismatch", []string{a, b}},
		{"missing file", []string{a, filepath.Join(dir, "missing.png")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadStack(NewImageCache(), tt.paths); err == nil {
				t.Error("LoadStack should fail")
			}
		})
	}
}

func TestLoadMaskStack(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	img.SetGray(1, 1, color.Gray{Y: 255})
	img.SetGray(0, 0, color.Gray{Y: 100})
	path := writeSlice(t, dir, "mask.png", img)

	m, err := LoadMaskStack(NewImageCache(), []string{path})
	if err != nil {
		t.Fatalf("LoadMaskStack failed: %v", err)
	}
	if m.Count() != 1 || !m.At(1, 1, 0) {
		t.Errorf("mask count = %d, centre set = %v", m.Count(), m.At(1, 1, 0))
	}
}
