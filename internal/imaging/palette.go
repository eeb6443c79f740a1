package imaging

import (
	"fmt"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Label colours used for overlays and montage frames. Label 0 is drawn in
// cyan and label 1 in magenta, matching the dataset distribution charts.
var labelHex = map[int]string{
	0: "#00ffff",
	1: "#ff00ff",
}

// LabelColor returns the overlay colour of a class label. Unknown labels get
// a neutral yellow.
func LabelColor(label int) colorful.Color {
	hex, ok := labelHex[label]
	if !ok {
		hex = "#ffff00"
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{R: 1, G: 1}
	}
	return c
}

// Blend mixes a grey intensity in [0, 1] with an overlay colour in CIE-L*a*b*
// space. alpha is the weight of the overlay.
func Blend(grey float64, overlay colorful.Color, alpha float64) color.NRGBA {
	base := colorful.Color{R: grey, G: grey, B: grey}
	mixed := base.BlendLab(overlay, alpha).Clamped()
	r, g, b := mixed.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// ParseHexColor parses "#RRGGBB" into an opaque colour.
func ParseHexColor(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
