package color

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Lerp interpolates each channel linearly. t is clamped to [0,1].
func Lerp(a, b Color, t float64) Color {
	t = clamp01(t)
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	return fromColorful(a.colorful().BlendRgb(b.colorful(), t))
}

// SineEase maps linear progress to sin(t*pi): 0 at both ends, 1 halfway.
func SineEase(t float64) float64 {
	return math.Sin(t * math.Pi)
}

// RainbowLerp interpolates through HSV space. The direction around the hue
// circle is chosen by b.Tag: when set, a lower target hue is lifted by one
// turn so the transition travels forward; when clear, a lower source hue is
// lifted so it travels backward.
func RainbowLerp(a, b Color, t float64) Color {
	t = clamp01(t)
	switch t {
	case 0:
		return a
	case 1:
		return b
	}

	ha := ToHSV(a)
	hb := ToHSV(b)

	if b.Tag && hb.H < ha.H {
		hb.H += 1.0
	} else if !b.Tag && ha.H < hb.H {
		ha.H += 1.0
	}

	out := FromHSV(HSV{
		H: ha.H + (hb.H-ha.H)*t,
		S: ha.S + (hb.S-ha.S)*t,
		V: ha.V + (hb.V-ha.V)*t,
	})
	out.Tag = b.Tag
	return out
}

// Spectrum returns n colors at full saturation and value with equally spaced
// hues, starting at red.
func Spectrum(n int) []Color {
	out := make([]Color, n)
	for i := range out {
		out[i] = fromColorful(colorful.Hsv(float64(i)*360.0/float64(n), 1, 1))
	}
	return out
}
