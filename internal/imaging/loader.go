package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// ImageCache provides thread-safe caching of decoded slice images.
//
// Stacks are often read more than once (statistics first, then import), so
// decoded images are kept keyed by their file path until Evict or Clear.
//
// ImageCache is safe for concurrent use by multiple goroutines.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Supported formats are PNG, JPEG and GIF. The cache key is the exact path
// string, so relative and absolute paths to one file are cached separately.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open slice: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode slice %s: %w", path, err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear drops every cached image.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// LoadStack reads one image per z-slice and stacks their luminance into a
// volume. Image columns map to Y and rows to X. Every slice must have the
// dimensions of the first one.
//
// Values are luminance in [0, 1] using ITU-R BT.601 weights.
func LoadStack(cache *ImageCache, paths []string) (*volume.Volume, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("empty slice stack")
	}
	var vol *volume.Volume
	for z, p := range paths {
		img, err := cache.Load(p)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if vol == nil {
			vol = volume.New(b.Dy(), b.Dx(), len(paths))
		}
		if b.Dy() != vol.X || b.Dx() != vol.Y {
			return nil, fmt.Errorf("slice %s is %dx%d, stack is %dx%d", p, b.Dx(), b.Dy(), vol.Y, vol.X)
		}
		for x := 0; x < vol.X; x++ {
			for y := 0; y < vol.Y; y++ {
				vol.Set(x, y, z, luminance(img, b.Min.X+y, b.Min.Y+x))
			}
		}
	}
	return vol, nil
}

// LoadMaskStack reads a binary mask stack: pixels brighter than half scale
// are set.
func LoadMaskStack(cache *ImageCache, paths []string) (*volume.Mask, error) {
	vol, err := LoadStack(cache, paths)
	if err != nil {
		return nil, err
	}
	m := volume.NewMask(vol.X, vol.Y, vol.Z)
	for i, v := range vol.Data {
		m.Data[i] = v >= 0.5
	}
	return m, nil
}

// luminance returns the grey value of pixel (px, py) in [0, 1].
func luminance(img image.Image, px, py int) float64 {
	r, g, b, _ := img.At(px, py).RGBA()
	rf := float64(r) / 0xffff
	gf := float64(g) / 0xffff
	bf := float64(b) / 0xffff
	return 0.299*rf + 0.587*gf + 0.114*bf
}
