// Package color provides the RGB/HSV math used by the animation engine.
package color

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGB triple. Tag is the hue-wrap direction used by
// RainbowLerp: true travels towards increasing hue, false towards decreasing.
type Color struct {
	R   uint8 `json:"r" yaml:"r"`
	G   uint8 `json:"g" yaml:"g"`
	B   uint8 `json:"b" yaml:"b"`
	Tag bool  `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// Black is the zero color.
var Black = Color{}

// RGB builds an untagged color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// IsZero reports whether every field, including the tag, is zero.
func (c Color) IsZero() bool {
	return c == Color{}
}

// SameRGB compares channels only.
func (c Color) SameRGB(o Color) bool {
	return c.R == o.R && c.G == o.G && c.B == o.B
}

// WithTag returns c with the given direction bit.
func (c Color) WithTag(tag bool) Color {
	c.Tag = tag
	return c
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// HSV holds hue, saturation and value, each in [0,1].
type HSV struct {
	H float64
	S float64
	V float64
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

func fromColorful(c colorful.Color) Color {
	r, g, b := c.Clamped().RGB255()
	return Color{R: r, G: g, B: b}
}

// ToHSV converts to normalized HSV. Black yields {0,0,0}.
func ToHSV(c Color) HSV {
	if c.R == 0 && c.G == 0 && c.B == 0 {
		return HSV{}
	}
	h, s, v := c.colorful().Hsv()
	return HSV{H: h / 360.0, S: s, V: v}
}

// FromHSV converts normalized HSV back to RGB. The hue is wrapped into [0,1).
func FromHSV(hsv HSV) Color {
	h := wrapUnit(hsv.H)
	return fromColorful(colorful.Hsv(h*360.0, clamp01(hsv.S), clamp01(hsv.V)))
}

// Average returns the per-channel mean of a packed RGB buffer.
func Average(pixels []byte) Color {
	n := len(pixels) / 3
	if n == 0 {
		return Color{}
	}
	var r, g, b int
	for i := 0; i < n*3; i += 3 {
		r += int(pixels[i])
		g += int(pixels[i+1])
		b += int(pixels[i+2])
	}
	return Color{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// wrapUnit folds any hue into [0,1).
func wrapUnit(h float64) float64 {
	h = math.Mod(h, 1.0)
	if h < 0 {
		h += 1.0
	}
	if h >= 1.0 {
		h = 0
	}
	return h
}
