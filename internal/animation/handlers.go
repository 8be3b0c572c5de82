package animation

import "github.com/dokzlo13/sunlamp/internal/color"

const (
	cometTicks   = 3
	rainbowTicks = 5
	fadeTicks    = 4
	fadeSteps    = 30
)

var cometColors = [3]color.Color{
	color.RGB(255, 0, 0),
	color.RGB(0, 255, 0),
	color.RGB(0, 0, 255),
}

// Color, Sine and Rainbow

func (e *Engine) setTimed(cmd Command) {
	cmd = cmd.Normalize().resolve(e.strip.Average())

	period := cmd.Interval / (e.tickMs * 1000)
	if period == 0 {
		period = 1
	}
	e.st.cmd = cmd
	e.st.period = period
	e.st.counter = period
	e.st.elapsed = cmd.Duration
	e.st.step = period * e.tickMs

	e.strip.SetAll(cmd.at(cmd.Duration))
	e.render()
}

func (e *Engine) iterateTimed() {
	cmd := e.st.cmd
	e.st.elapsed += e.st.step
	if e.st.elapsed >= cmd.Interval {
		final := cmd.Dst
		if cmd.Kind == KindSine {
			final = cmd.Src
		}
		e.strip.SetAll(final)
		e.render()
		e.st = state{kind: KindEmpty}
		return
	}
	e.strip.SetAll(cmd.at(e.st.elapsed))
	e.render()
}

// RgbCirculation: one comet pixel walks the strip, changing color on wrap.

func (e *Engine) setCirculation(cmd Command) {
	e.st.cmd = cmd
	e.st.period = cometTicks
	e.st.counter = cometTicks

	e.strip.Clear()
	e.strip.SetPixel(0, cometColors[0])
	e.render()
}

func (e *Engine) iterateCirculation() {
	e.strip.SetPixel(e.st.pixel, color.Black)
	e.st.pixel++
	if e.st.pixel >= e.strip.Len() {
		e.st.pixel = 0
		e.st.hue = (e.st.hue + 1) % len(cometColors)
	}
	e.strip.SetPixel(e.st.pixel, cometColors[e.st.hue])
	e.render()
}

// PingPong: the comet bounces between the ends, changing color at each end.

func (e *Engine) setPingPong(cmd Command) {
	e.setCirculation(cmd)
	e.st.dir = 1
}

func (e *Engine) iteratePingPong() {
	n := e.strip.Len()
	e.strip.SetPixel(e.st.pixel, color.Black)

	next := e.st.pixel + e.st.dir
	if next < 0 || next >= n {
		e.st.dir = -e.st.dir
		e.st.hue = (e.st.hue + 1) % len(cometColors)
		next = e.st.pixel + e.st.dir
	}
	if next < 0 || next >= n {
		next = 0
	}
	e.st.pixel = next

	e.strip.SetPixel(e.st.pixel, cometColors[e.st.hue])
	e.render()
}

// RainbowCirculation: a full spectrum across the strip. A zero Dst paints it
// once; otherwise it rotates, forward when Dst.Tag is set.

func (e *Engine) setRainbowCirculation(cmd Command) {
	for i, c := range color.Spectrum(e.strip.Len()) {
		e.strip.SetPixel(i, c)
	}
	e.render()

	if cmd.Dst.IsZero() {
		e.st = state{kind: KindEmpty}
		return
	}
	e.st.cmd = cmd
	e.st.period = rainbowTicks
	e.st.counter = rainbowTicks
}

func (e *Engine) iterateRainbowCirculation() {
	e.strip.Rotate(e.st.cmd.Dst.Tag)
	e.render()
}

// Fade: Dst's value sweeps 0 to 1 and back, forever.

func (e *Engine) setFade(cmd Command) {
	e.st.cmd = cmd
	e.st.hsv = color.ToHSV(cmd.Dst)
	e.st.period = fadeTicks
	e.st.counter = fadeTicks
	e.st.fade = 0
	e.renderFade()
}

func (e *Engine) iterateFade() {
	e.st.fade = (e.st.fade + 1) % (2 * fadeSteps)
	e.renderFade()
}

func (e *Engine) renderFade() {
	hsv := e.st.hsv
	hsv.V = fadeLevel(e.st.fade)
	e.strip.SetAll(color.FromHSV(hsv))
	e.render()
}

// fadeLevel maps a position in [0, 2*fadeSteps) onto a triangle wave.
func fadeLevel(pos int) float64 {
	if pos <= fadeSteps {
		return float64(pos) / fadeSteps
	}
	return float64(2*fadeSteps-pos) / fadeSteps
}
