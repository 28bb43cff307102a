package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// minWhiteContrast is the contrast against white above which label text is
// drawn in white.
const minWhiteContrast = 1.5

// RGB is a color with channels in [0, 1]
type RGB struct {
	R, G, B float64
}

var white = RGB{1, 1, 1}

// HexToRGB parses "#rrggbb", "rrggbb" or the short "#rgb" form, where each
// digit is doubled.
func HexToRGB(hex string) (RGB, error) {
	hex = strings.TrimPrefix(hex, "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return RGB{}, fmt.Errorf("invalid hex color length %d", len(hex))
	}

	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return RGB{
		R: float64(value>>16&0xff) / 255,
		G: float64(value>>8&0xff) / 255,
		B: float64(value&0xff) / 255,
	}, nil
}

// Hex formats the color as lower-case "rrggbb"
func (c RGB) Hex() string {
	channel := func(v float64) int {
		return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return fmt.Sprintf("%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

// Luminance is the WCAG relative luminance
func (c RGB) Luminance() float64 {
	return 0.2126*linearize(c.R) + 0.7152*linearize(c.G) + 0.0722*linearize(c.B)
}

func linearize(v float64) float64 {
	if v <= 0.03928 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// Contrast is the WCAG contrast ratio of two colors, from 1 to 21
func Contrast(a, b RGB) float64 {
	la, lb := a.Luminance(), b.Luminance()
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// LabelForeground picks white or black text for a label background
func LabelForeground(background string) (string, error) {
	rgb, err := HexToRGB(background)
	if err != nil {
		return "", err
	}
	if Contrast(rgb, white) >= minWhiteContrast {
		return "#ffffff", nil
	}
	return "#000000", nil
}
