package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// Color is written as an SVG color name ("midnightblue") or as
// #rgb, #rrggbb or #rrggbbaa.
type Color struct {
	color.NRGBA
}

func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Color{}, fmt.Errorf("%w: empty color", core.ErrUnsupportedConfig)
	}
	if s[0] == '#' {
		return parseHex(s[1:])
	}
	switch low := strings.ToLower(s); low {
	case "transparent":
		return Color{color.NRGBA{}}, nil
	default:
		c, ok := colornames.Map[low]
		if !ok {
			return Color{}, fmt.Errorf("%w: color name %q", core.ErrUnsupportedConfig, s)
		}
		return Color{color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}}, nil
	}
}

func parseHex(x string) (Color, error) {
	switch len(x) {
	case 3:
		x = string([]byte{x[0], x[0], x[1], x[1], x[2], x[2]}) + "ff"
	case 6:
		x += "ff"
	case 8:
	default:
		return Color{}, fmt.Errorf("%w: hex color %q", core.ErrUnsupportedConfig, "#"+x)
	}
	v, err := strconv.ParseUint(x, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: hex color %q", core.ErrUnsupportedConfig, "#"+x)
	}
	return Color{color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}}, nil
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Color) ClearColor() metadata.ClearColor {
	return metadata.ClearColorFrom(c.NRGBA)
}
