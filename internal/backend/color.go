package backend

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidColor is returned for strings that are not "#rrggbb" or "#rgb"
var ErrInvalidColor = errors.New("invalid colour")

// FormatColor renders c as lowercase "#rrggbb", dropping alpha.
func FormatColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return colorful.Color{
		R: float64(r>>8) / 255,
		G: float64(g>>8) / 255,
		B: float64(b>>8) / 255,
	}.Hex()
}

// NormalizeColor parses a hex colour, with or without the leading '#', and
// returns it as lowercase "#rrggbb".
func NormalizeColor(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "#") {
		trimmed = "#" + trimmed
	}
	if len(trimmed) != 4 && len(trimmed) != 7 {
		return "", fmt.Errorf("%w %q", ErrInvalidColor, s)
	}
	c, err := colorful.Hex(strings.ToLower(trimmed))
	if err != nil {
		return "", fmt.Errorf("%w %q", ErrInvalidColor, s)
	}
	return c.Hex(), nil
}
