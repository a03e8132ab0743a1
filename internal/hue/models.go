package hue

import (
	"fmt"
	"strconv"
	"strings"
)

// Light is a light as enumerated from the bridge.
type Light struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RGB is an 8-bit per channel color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ParseRGB parses a six digit hex color such as "FF20FF" or "#ff20ff".
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustParseRGB is like ParseRGB but panics on error.
func MustParseRGB(s string) RGB {
	c, err := ParseRGB(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex returns the color as uppercase RRGGBB.
func (c RGB) Hex() string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

func (c RGB) String() string {
	return "#" + c.Hex()
}

// Effect is a dynamic light effect.
type Effect string

const (
	EffectNone      Effect = "none"
	EffectColorLoop Effect = "colorloop"
)

// MaxBrightness is the highest brightness the v1 API accepts.
const MaxBrightness = 254

// Command is a light state change. Brightness, Color and Effect are only
// sent when On is true.
type Command struct {
	On         bool   `json:"on"`
	Brightness uint8  `json:"bri,omitempty"`
	Color      *RGB   `json:"color,omitempty"`
	Effect     Effect `json:"effect,omitempty"`
}

// Off returns a command that switches a light off.
func Off() Command {
	return Command{On: false}
}

// ColorCommand returns a full-brightness command for the given color.
func ColorCommand(c RGB, effect Effect) Command {
	return Command{
		On:         true,
		Brightness: 255,
		Color:      &c,
		Effect:     effect,
	}
}
