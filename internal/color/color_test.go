package color

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func within(t *testing.T, want, got Color, tol int) {
	t.Helper()
	diff := func(a, b uint8) int {
		d := int(a) - int(b)
		if d < 0 {
			return -d
		}
		return d
	}
	if diff(want.R, got.R) > tol || diff(want.G, got.G) > tol || diff(want.B, got.B) > tol {
		t.Errorf("color %v not within %d of %v", got, tol, want)
	}
}

func TestToHSV_Black(t *testing.T) {
	assert.Equal(t, HSV{}, ToHSV(Black))
	assert.Equal(t, HSV{}, ToHSV(Color{Tag: true}))
}

func TestToHSV_Primaries(t *testing.T) {
	tests := []struct {
		name string
		in   Color
		want HSV
	}{
		{"red", RGB(255, 0, 0), HSV{H: 0, S: 1, V: 1}},
		{"green", RGB(0, 255, 0), HSV{H: 1.0 / 3.0, S: 1, V: 1}},
		{"blue", RGB(0, 0, 255), HSV{H: 2.0 / 3.0, S: 1, V: 1}},
		{"white", RGB(255, 255, 255), HSV{H: 0, S: 0, V: 1}},
		{"dim_blue", RGB(0, 0, 44), HSV{H: 2.0 / 3.0, S: 1, V: 44.0 / 255.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToHSV(tt.in)
			assert.InDelta(t, tt.want.H, got.H, 1e-9)
			assert.InDelta(t, tt.want.S, got.S, 1e-9)
			assert.InDelta(t, tt.want.V, got.V, 1e-9)
		})
	}
}

func TestFromHSV_WrapsHue(t *testing.T) {
	assert.Equal(t, RGB(255, 0, 0), FromHSV(HSV{H: 1.0, S: 1, V: 1}))
	assert.Equal(t, RGB(255, 0, 0), FromHSV(HSV{H: 2.0, S: 1, V: 1}))
	assert.Equal(t, FromHSV(HSV{H: 0.75, S: 1, V: 1}), FromHSV(HSV{H: -0.25, S: 1, V: 1}))
}

func TestHSVRoundTrip(t *testing.T) {
	for h := 0.0; h < 1.0; h += 0.05 {
		for _, s := range []float64{0.2, 0.5, 1} {
			for _, v := range []float64{0.1, 0.5, 1} {
				c := FromHSV(HSV{H: h, S: s, V: v})
				within(t, c, FromHSV(ToHSV(c)), 1)
			}
		}
	}
}

func TestLerp(t *testing.T) {
	a := RGB(0, 100, 200)
	b := RGB(200, 100, 0)

	assert.Equal(t, a, Lerp(a, b, 0))
	assert.Equal(t, b, Lerp(a, b, 1))
	assert.Equal(t, a, Lerp(a, b, -3), "t below range clamps to start")
	assert.Equal(t, b, Lerp(a, b, 7), "t above range clamps to end")
	within(t, RGB(100, 100, 100), Lerp(a, b, 0.5), 1)
}

func TestSineEase(t *testing.T) {
	assert.InDelta(t, 0, SineEase(0), 1e-12)
	assert.InDelta(t, 1, SineEase(0.5), 1e-12)
	assert.InDelta(t, 0, SineEase(1), 1e-12)
	assert.InDelta(t, math.Sqrt2/2, SineEase(0.25), 1e-12)
}

func TestRainbowLerp_Endpoints(t *testing.T) {
	pairs := []struct{ a, b Color }{
		{RGB(0, 0, 44), RGB(64, 0, 56)},
		{RGB(64, 0, 56), RGB(220, 220, 0)},
		{RGB(220, 220, 0), RGB(64, 0, 56)},
		{Black, RGB(255, 0, 0)},
		{RGB(255, 255, 255), Black},
	}
	for _, p := range pairs {
		for _, ta := range []bool{false, true} {
			for _, tb := range []bool{false, true} {
				a := p.a.WithTag(ta)
				b := p.b.WithTag(tb)
				assert.True(t, RainbowLerp(a, b, 0).SameRGB(a), "t=0 %v->%v", a, b)
				assert.True(t, RainbowLerp(a, b, 1).SameRGB(b), "t=1 %v->%v", a, b)
			}
		}
	}
}

func TestRainbowLerp_Direction(t *testing.T) {
	// Red (h=0) to blue (h=2/3).
	red := RGB(255, 0, 0)
	blue := RGB(0, 0, 255)

	// Forward: hue increases through green.
	fwd := ToHSV(RainbowLerp(red, blue.WithTag(true), 0.5))
	assert.InDelta(t, 1.0/3.0, fwd.H, 0.01)

	// Backward: red is lifted to h=1, travelling down through magenta.
	bwd := ToHSV(RainbowLerp(red, blue.WithTag(false), 0.5))
	assert.InDelta(t, 5.0/6.0, bwd.H, 0.01)
}

func TestRainbowLerp_ForwardWrap(t *testing.T) {
	// Magenta (5/6) forward to yellow (1/6) must cross red.
	magenta := RGB(255, 0, 255)
	yellow := RGB(255, 255, 0).WithTag(true)

	mid := ToHSV(RainbowLerp(magenta, yellow, 0.5))
	assert.InDelta(t, 0.0, math.Min(mid.H, 1-mid.H), 0.01)
}

func TestAverage(t *testing.T) {
	assert.Equal(t, Black, Average(nil))
	assert.Equal(t, RGB(10, 20, 30), Average([]byte{10, 20, 30}))
	assert.Equal(t, RGB(5, 10, 15), Average([]byte{0, 0, 0, 10, 20, 30}))
}

func TestSpectrum(t *testing.T) {
	s := Spectrum(6)
	require.Len(t, s, 6)
	assert.Equal(t, RGB(255, 0, 0), s[0])
	assert.Equal(t, RGB(0, 255, 0), s[2])
	assert.Equal(t, RGB(0, 0, 255), s[4])
}
