// Package control exposes the lamp to the outside: an HTTP API, the binary
// websocket protocol of the original lamp app, and a Controller shared with
// the MQTT bridge.
package control

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/color"
	"github.com/dokzlo13/sunlamp/internal/eventbus"
	"github.com/dokzlo13/sunlamp/internal/geo"
	"github.com/dokzlo13/sunlamp/internal/scheduler"
)

// ErrBusy is returned when a queue is full and the request was dropped.
var ErrBusy = errors.New("lamp is busy, request dropped")

// Engine is the part of the animation engine the control surface drives.
type Engine interface {
	Send(cmd animation.Command) bool
	CurrentColor() color.Color
	Kind() animation.Kind
}

// Scheduler is the part of the day-phase scheduler the control surface drives.
type Scheduler interface {
	SunEnable() bool
	SunDisable() bool
	IsSunImitationActive() bool
	ClockTrusted() bool
	Phases() []scheduler.Phase
	Alarm() (time.Time, bool)
}

// Controller turns requests from any transport into engine commands and
// scheduler messages, and reports the lamp's status.
type Controller struct {
	engine Engine
	sched  Scheduler
	calc   *geo.Calculator
	bus    *eventbus.Bus
	now    func() time.Time
}

// NewController creates a controller. bus may be nil.
func NewController(engine Engine, sched Scheduler, calc *geo.Calculator, bus *eventbus.Bus) *Controller {
	return &Controller{
		engine: engine,
		sched:  sched,
		calc:   calc,
		bus:    bus,
		now:    time.Now,
	}
}

// SetColor fades to c with default timing and turns sun imitation off.
func (c *Controller) SetColor(source string, col color.Color) (string, error) {
	return c.Animate(source, animation.Command{Kind: animation.KindColor, Dst: col.WithTag(false)})
}

// Animate sends cmd to the engine and turns sun imitation off so the next
// phase alarm does not override it.
func (c *Controller) Animate(source string, cmd animation.Command) (string, error) {
	cmd = cmd.Normalize()
	id := uuid.NewString()

	if !c.sched.SunDisable() {
		return id, ErrBusy
	}
	if !c.engine.Send(cmd) {
		return id, ErrBusy
	}

	log.Info().
		Str("source", source).
		Str("request_id", id).
		Str("kind", cmd.Kind.String()).
		Str("dst", cmd.Dst.String()).
		Uint32("interval_ms", cmd.Interval).
		Msg("Animation requested")

	c.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeCommand,
		Data: map[string]any{
			"request_id":  id,
			"source":      source,
			"kind":        cmd.Kind.String(),
			"src":         cmd.Src.String(),
			"dst":         cmd.Dst.String(),
			"interval_ms": cmd.Interval,
			"duration_ms": cmd.Duration,
		},
	})
	return id, nil
}

// SetSun switches sun imitation on or off.
func (c *Controller) SetSun(source string, enabled bool) (string, error) {
	id := uuid.NewString()

	var ok bool
	if enabled {
		ok = c.sched.SunEnable()
	} else {
		ok = c.sched.SunDisable()
	}
	if !ok {
		return id, ErrBusy
	}

	log.Info().Str("source", source).Str("request_id", id).Bool("enabled", enabled).Msg("Sun imitation requested")

	c.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeCommand,
		Data: map[string]any{
			"request_id": id,
			"source":     source,
			"sun":        enabled,
		},
	})
	return id, nil
}

// Mode values reported by Status, matching the websocket protocol.
const (
	ModeSun   = "sun"
	ModeColor = "color"
)

// PhaseStatus is one row of the day's phase table.
type PhaseStatus struct {
	Index    int         `json:"index"`
	Name     string      `json:"name"`
	Start    time.Time   `json:"start"`
	Duration string      `json:"duration"`
	Kind     string      `json:"kind"`
	Src      color.Color `json:"src"`
	Dst      color.Color `json:"dst"`
	Active   bool        `json:"active"`
}

// Status is a snapshot of the lamp.
type Status struct {
	Mode         string        `json:"mode"`
	ClockTrusted bool          `json:"clock_trusted"`
	Color        color.Color   `json:"color"`
	Kind         string        `json:"kind"`
	LocalTime    time.Time     `json:"local_time"`
	Location     string        `json:"location"`
	SunAltitude  float64       `json:"sun_altitude"`
	NextAlarm    *time.Time    `json:"next_alarm,omitempty"`
	Phases       []PhaseStatus `json:"phases"`
}

// Status reads the current lamp state.
func (c *Controller) Status() Status {
	now := c.now()

	st := Status{
		Mode:         ModeColor,
		ClockTrusted: c.sched.ClockTrusted(),
		Color:        c.engine.CurrentColor(),
		Kind:         c.engine.Kind().String(),
		LocalTime:    now.In(c.calc.Timezone()),
		Location:     c.calc.Location().Name,
		SunAltitude:  c.calc.Altitude(now),
		Phases:       []PhaseStatus{},
	}
	if c.sched.IsSunImitationActive() {
		st.Mode = ModeSun
	}
	if alarm, ok := c.sched.Alarm(); ok {
		local := alarm.In(c.calc.Timezone())
		st.NextAlarm = &local
	}

	for _, p := range c.sched.Phases() {
		st.Phases = append(st.Phases, PhaseStatus{
			Index:    p.Index,
			Name:     p.Name,
			Start:    p.Start.In(c.calc.Timezone()),
			Duration: p.Duration.String(),
			Kind:     p.Kind.String(),
			Src:      p.Src,
			Dst:      p.Dst,
			Active:   !now.Before(p.Start) && now.Before(p.End()),
		})
	}
	return st
}
