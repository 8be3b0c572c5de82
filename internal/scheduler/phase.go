package scheduler

import (
	"fmt"
	"time"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/color"
	"github.com/dokzlo13/sunlamp/internal/geo"
)

// PhaseCount is the number of phases tiling a day.
const PhaseCount = 7

// PhaseNames label the phases in order.
var PhaseNames = [PhaseCount]string{
	"midnight",
	"blue_hour",
	"golden_hour",
	"day",
	"evening_golden_hour",
	"evening_blue_hour",
	"night",
}

// Style is the transition a phase runs.
type Style struct {
	Kind animation.Kind `json:"kind"`
	Src  color.Color    `json:"src"`
	Dst  color.Color    `json:"dst"`
}

// Palette assigns a style to each phase.
type Palette [PhaseCount]Style

// DefaultPalette: dim blue through the night, rainbow transitions around
// dawn and dusk, and a slow yellow-white breath across the day.
var DefaultPalette = Palette{
	{Kind: animation.KindColor, Src: tagged(0, 0, 32, true), Dst: tagged(0, 0, 44, true)},
	{Kind: animation.KindRainbow, Src: tagged(0, 0, 44, false), Dst: tagged(64, 0, 56, true)},
	{Kind: animation.KindRainbow, Src: tagged(64, 0, 56, false), Dst: tagged(220, 220, 0, true)},
	{Kind: animation.KindSine, Src: tagged(220, 220, 0, true), Dst: tagged(255, 255, 255, true)},
	{Kind: animation.KindRainbow, Src: tagged(220, 220, 0, true), Dst: tagged(64, 0, 56, false)},
	{Kind: animation.KindRainbow, Src: tagged(64, 0, 56, true), Dst: tagged(0, 0, 44, false)},
	{Kind: animation.KindColor, Src: tagged(0, 0, 44, true), Dst: tagged(0, 0, 32, true)},
}

func tagged(r, g, b uint8, tag bool) color.Color {
	return color.Color{R: r, G: g, B: b, Tag: tag}
}

// Phase is one interval of the day.
type Phase struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Style
}

// End returns Start+Duration.
func (p Phase) End() time.Time {
	return p.Start.Add(p.Duration)
}

// Command builds the animation command for this phase as seen at now.
// Both timings have whole-second resolution.
func (p Phase) Command(now time.Time) animation.Command {
	elapsed := now.Sub(p.Start)
	if elapsed < 0 {
		elapsed = 0
	}
	return animation.Command{
		Kind:     p.Kind,
		Src:      p.Src,
		Dst:      p.Dst,
		Interval: uint32(p.Duration/time.Second) * 1000,
		Duration: uint32(elapsed/time.Second) * 1000,
	}
}

// BuildPhases derives the seven phases for the local day containing now.
// Phase 0 starts at local midnight and phase 6 ends 24 hours later.
func BuildPhases(calc *geo.Calculator, now time.Time, palette Palette) ([]Phase, error) {
	ref := calc.ReferenceFor(now)
	times, err := calc.Times(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to compute solar times for %s: %w", ref.Format("2006-01-02"), err)
	}

	midnight := calc.StartOfDay(now)
	starts := [PhaseCount]time.Time{
		midnight,
		times.MorningBlueHour,
		times.MorningGoldenHour,
		times.Day,
		times.EveningGoldenHour,
		times.EveningBlueHour,
		times.Night,
	}
	end := midnight.Add(24 * time.Hour)

	phases := make([]Phase, PhaseCount)
	for i := range phases {
		next := end
		if i+1 < PhaseCount {
			next = starts[i+1]
		}
		if !next.After(starts[i]) {
			return nil, fmt.Errorf("phase %s at %s does not precede %s",
				PhaseNames[i], starts[i].Format(time.RFC3339), next.Format(time.RFC3339))
		}
		phases[i] = Phase{
			Index:    i,
			Name:     PhaseNames[i],
			Start:    starts[i],
			Duration: next.Sub(starts[i]),
			Style:    palette[i],
		}
	}
	return phases, nil
}
