package animation

import "github.com/dokzlo13/sunlamp/internal/color"

const (
	// MinInterval is the shortest accepted transition, in milliseconds.
	MinInterval uint32 = 1000
	// DefaultInterval replaces out of range timing.
	DefaultInterval uint32 = 1000
)

// Command asks the engine to start an animation. Interval is the total
// transition length and Duration the already elapsed offset, both in
// milliseconds.
type Command struct {
	Kind     Kind        `json:"kind"`
	Dst      color.Color `json:"dst"`
	Src      color.Color `json:"src"`
	Interval uint32      `json:"interval_ms"`
	Duration uint32      `json:"duration_ms"`
}

// Normalize substitutes default timing when Interval is below MinInterval or
// Duration has already reached Interval.
func (c Command) Normalize() Command {
	if c.Interval < MinInterval || c.Duration >= c.Interval {
		c.Interval = DefaultInterval
		c.Duration = 0
	}
	return c
}

// resolve fills in the defaults the engine applies when a command starts,
// given the buffer's current average color.
func (c Command) resolve(current color.Color) Command {
	switch c.Kind {
	case KindColor, KindSine:
		if c.Src.IsZero() {
			c.Src = current
		}
	case KindRainbow:
		if c.Src.Tag == c.Dst.Tag {
			c.Src = current.WithTag(false)
			c.Dst.Tag = true
		}
	}
	return c
}

// at returns the color a timed command shows after elapsed milliseconds.
func (c Command) at(elapsed uint32) color.Color {
	t := float64(elapsed) / float64(c.Interval)
	switch c.Kind {
	case KindSine:
		return color.Lerp(c.Src, c.Dst, color.SineEase(t))
	case KindRainbow:
		return color.RainbowLerp(c.Src, c.Dst, t)
	default:
		return color.Lerp(c.Src, c.Dst, t)
	}
}

// DetermineColor returns the color the engine would be showing once cmd has
// reached its Duration offset, starting from a buffer averaging current.
// Non-timed kinds yield Dst, or current when Dst is unset.
func DetermineColor(cmd Command, current color.Color) color.Color {
	if !cmd.Kind.Timed() {
		if cmd.Dst.IsZero() {
			return current.WithTag(false)
		}
		return cmd.Dst.WithTag(false)
	}
	cmd = cmd.Normalize().resolve(current)
	return cmd.at(cmd.Duration).WithTag(false)
}
