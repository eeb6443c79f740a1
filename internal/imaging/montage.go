package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// MontageBackground fills the gaps between montage tiles.
var MontageBackground = color.NRGBA{R: 0, G: 0, B: 0, A: 255}

// Montage pastes images row by row into a grid with cols columns. Every cell
// is as large as the largest tile; spacing pixels separate cells and frame
// the grid.
func Montage(images []image.Image, cols, spacing int) (*image.NRGBA, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("montage needs at least one image")
	}
	if cols <= 0 {
		return nil, fmt.Errorf("invalid column count %d", cols)
	}
	if spacing < 0 {
		spacing = 0
	}
	if cols > len(images) {
		cols = len(images)
	}
	rows := (len(images) + cols - 1) / cols

	cellW, cellH := 0, 0
	for _, img := range images {
		b := img.Bounds()
		if b.Dx() > cellW {
			cellW = b.Dx()
		}
		if b.Dy() > cellH {
			cellH = b.Dy()
		}
	}

	width := cols*cellW + (cols+1)*spacing
	height := rows*cellH + (rows+1)*spacing
	canvas := imaging.New(width, height, MontageBackground)

	for i, img := range images {
		r, c := i/cols, i%cols
		x := spacing + c*(cellW+spacing)
		y := spacing + r*(cellH+spacing)
		canvas = imaging.Paste(canvas, img, image.Pt(x, y))
	}
	return canvas, nil
}
