// Package scheduler keeps the lamp in step with the sun. It derives the day's
// phase table, arms a single alarm for the next phase boundary and sends the
// matching animation to the engine when the alarm fires.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/color"
	"github.com/dokzlo13/sunlamp/internal/eventbus"
	"github.com/dokzlo13/sunlamp/internal/geo"
)

// Defaults
const (
	DefaultMinYear     = 2024
	DefaultRetryBudget = 20
	DefaultTick        = time.Second
	DefaultQueueSize   = 8

	// PreTransitionInterval is the length of the corrective fade sent ahead
	// of a phase command, and PreTransitionWait how long to let it run.
	PreTransitionInterval uint32 = 1200
	PreTransitionWait            = 1300 * time.Millisecond
)

// Engine is the animation side the scheduler drives.
type Engine interface {
	Send(cmd animation.Command) bool
	CurrentColor() color.Color
}

// Message switches sun imitation on or off.
type Message int

const (
	MessageSunEnable Message = iota
	MessageSunDisable
)

func (m Message) String() string {
	if m == MessageSunEnable {
		return "sun_enable"
	}
	return "sun_disable"
}

// Options tune the scheduler; zero values select the defaults.
type Options struct {
	MinYear     int
	RetryBudget int
	Tick        time.Duration
	QueueSize   int
	Palette     *Palette
}

// Scheduler owns the phase table and the alarm. Run is the only goroutine
// that mutates them; accessors copy under the read lock.
type Scheduler struct {
	calc    *geo.Calculator
	clock   Clock
	engine  Engine
	bus     *eventbus.Bus
	palette Palette

	minYear     int
	retryBudget int
	tick        time.Duration
	inbox       chan Message
	retries     int // consecutive untrusted polls

	mu     sync.RWMutex
	phases []Phase
	alarm  time.Time // zero when unset

	sunMode  atomic.Bool
	trusted  atomic.Bool
	lastKind atomic.Uint32
}

// New creates a scheduler. bus may be nil.
func New(calc *geo.Calculator, clock Clock, engine Engine, bus *eventbus.Bus, opts Options) *Scheduler {
	if opts.MinYear == 0 {
		opts.MinYear = DefaultMinYear
	}
	if opts.RetryBudget <= 0 {
		opts.RetryBudget = DefaultRetryBudget
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = DefaultQueueSize
	}
	palette := DefaultPalette
	if opts.Palette != nil {
		palette = *opts.Palette
	}

	s := &Scheduler{
		calc:        calc,
		clock:       clock,
		engine:      engine,
		bus:         bus,
		palette:     palette,
		minYear:     opts.MinYear,
		retryBudget: opts.RetryBudget,
		tick:        opts.Tick,
		inbox:       make(chan Message, opts.QueueSize),
	}
	s.lastKind.Store(uint32(animation.KindEmpty))
	return s
}

// Send enqueues a mode message without blocking. Messages are read only once
// the clock is trusted.
func (s *Scheduler) Send(msg Message) bool {
	select {
	case s.inbox <- msg:
		return true
	default:
		log.Debug().Str("message", msg.String()).Msg("Scheduler queue full, dropping message")
		return false
	}
}

// SunEnable queues a request to start sun imitation.
func (s *Scheduler) SunEnable() bool {
	return s.Send(MessageSunEnable)
}

// SunDisable queues a request to stop sun imitation.
func (s *Scheduler) SunDisable() bool {
	return s.Send(MessageSunDisable)
}

// IsSunImitationActive reports whether sun imitation is enabled.
func (s *Scheduler) IsSunImitationActive() bool {
	return s.sunMode.Load()
}

// ClockTrusted reports whether the last poll saw a synchronized clock.
func (s *Scheduler) ClockTrusted() bool {
	return s.trusted.Load()
}

// LastKind returns the kind of the last dispatched phase command.
func (s *Scheduler) LastKind() animation.Kind {
	return animation.Kind(s.lastKind.Load())
}

// Phases returns a copy of the current phase table.
func (s *Scheduler) Phases() []Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Phase, len(s.phases))
	copy(out, s.phases)
	return out
}

// Alarm returns the armed alarm, or false when unset.
func (s *Scheduler) Alarm() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alarm, !s.alarm.IsZero()
}

// Run polls the clock once per tick until ctx is cancelled. While the clock
// is trusted each poll handles at most one inbound message and then checks
// the alarm; otherwise it counts towards a resync request.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	log.Info().Dur("tick", s.tick).Int("min_year", s.minYear).Msg("Scheduler started")

	for {
		if !s.checkClock(s.clock.Now()) {
			select {
			case <-ctx.Done():
				log.Info().Msg("Scheduler stopping")
				return nil
			case <-ticker.C:
			}
			continue
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler stopping")
			return nil
		case msg := <-s.inbox:
			s.HandleMessage(ctx, msg)
		case <-ticker.C:
		}

		s.OnTick(ctx, s.clock.Now())
	}
}

// checkClock reports whether now is trustworthy. Untrusted polls are counted
// and every retryBudget of them trigger a resync.
func (s *Scheduler) checkClock(now time.Time) bool {
	if now.Year() >= s.minYear {
		if !s.trusted.Swap(true) {
			log.Info().Time("now", now).Msg("Clock synchronized")
		}
		s.retries = 0
		return true
	}

	s.trusted.Store(false)
	s.retries++
	if s.retries < s.retryBudget {
		return false
	}
	s.retries = 0

	log.Warn().Int("year", now.Year()).Int("budget", s.retryBudget).Msg("Clock still untrusted, resyncing")
	if err := s.clock.Resync(); err != nil {
		log.Error().Err(err).Msg("Clock resync failed")
	}
	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeClock,
		Data: map[string]any{"action": "resync", "year": now.Year()},
	})
	return false
}

// HandleMessage applies a mode message.
func (s *Scheduler) HandleMessage(ctx context.Context, msg Message) {
	log.Info().Str("message", msg.String()).Msg("Scheduler message")

	switch msg {
	case MessageSunEnable:
		s.sunMode.Store(true)
		now := s.clock.Now()
		if err := s.Recompute(now); err != nil {
			log.Error().Err(err).Msg("Failed to compute phases")
		} else {
			s.ArmNextAlarm(now)
			s.Dispatch(ctx, now, true)
		}
	case MessageSunDisable:
		s.sunMode.Store(false)
	}

	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeMode,
		Data: map[string]any{"sun": s.sunMode.Load()},
	})
}

// OnTick checks for local midnight and for the alarm. It does nothing while
// sun imitation is off.
func (s *Scheduler) OnTick(ctx context.Context, now time.Time) {
	if !s.sunMode.Load() {
		return
	}

	alarm, armed := s.Alarm()
	if !armed {
		local := now.In(s.calc.Timezone())
		if local.Hour() != 0 || local.Minute() != 0 {
			return
		}
		log.Info().Time("now", now).Msg("Midnight, recomputing phases")
		if err := s.Recompute(now); err != nil {
			log.Error().Err(err).Msg("Failed to compute phases")
			return
		}
		s.ArmNextAlarm(now)
		s.Dispatch(ctx, now, true)
		return
	}

	if now.Before(alarm) {
		return
	}
	log.Info().Time("alarm", alarm).Msg("Alarm fired")
	s.ArmNextAlarm(now)
	s.Dispatch(ctx, now, true)
}

// Recompute rebuilds the phase table for the local day containing now and
// clears the alarm. On error the previous table is kept and the alarm stays
// unset.
func (s *Scheduler) Recompute(now time.Time) error {
	phases, err := BuildPhases(s.calc, now, s.palette)

	s.mu.Lock()
	s.alarm = time.Time{}
	if err == nil {
		s.phases = phases
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}

	for _, p := range phases {
		log.Debug().
			Int("index", p.Index).
			Str("phase", p.Name).
			Str("start", p.Start.Format("15:04:05")).
			Dur("duration", p.Duration).
			Str("kind", p.Kind.String()).
			Msg("Phase")
	}
	log.Info().Str("day", phases[0].Start.Format("2006-01-02")).Msg("Phases computed")
	return nil
}

// ArmNextAlarm arms the first phase start after now, or clears the alarm
// when none is left today.
func (s *Scheduler) ArmNextAlarm(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alarm = time.Time{}
	for _, p := range s.phases {
		if p.Start.After(now) {
			s.alarm = p.Start
			break
		}
	}

	if s.alarm.IsZero() {
		log.Debug().Msg("No phases left today, alarm unset")
		return
	}
	log.Debug().Time("alarm", s.alarm).Msg("Alarm armed")
}

// phaseAt returns the last phase starting at or before now.
func (s *Scheduler) phaseAt(now time.Time) (Phase, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.phases) - 1; i >= 0; i-- {
		if !now.Before(s.phases[i].Start) {
			return s.phases[i], true
		}
	}
	return Phase{}, false
}

// Dispatch sends the command for the phase containing now. With pre set it
// first fades to where that command would be, waits for the fade, then sends
// the command itself.
func (s *Scheduler) Dispatch(ctx context.Context, now time.Time, pre bool) {
	phase, ok := s.phaseAt(now)
	if !ok {
		log.Warn().Time("now", now).Msg("No phase contains the current time")
		return
	}
	cmd := phase.Command(now)

	log.Info().
		Str("phase", phase.Name).
		Str("kind", cmd.Kind.String()).
		Uint32("interval_ms", cmd.Interval).
		Uint32("duration_ms", cmd.Duration).
		Bool("pre", pre).
		Msg("Dispatching phase")

	if pre {
		target := animation.DetermineColor(cmd, s.engine.CurrentColor())
		s.engine.Send(animation.Command{
			Kind:     animation.KindColor,
			Dst:      target,
			Interval: PreTransitionInterval,
		})
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(PreTransitionWait):
		}
	}

	s.engine.Send(cmd)
	s.lastKind.Store(uint32(cmd.Kind))

	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypePhase,
		Data: map[string]any{
			"phase":       phase.Name,
			"index":       phase.Index,
			"kind":        cmd.Kind.String(),
			"start":       phase.Start,
			"interval_ms": cmd.Interval,
			"duration_ms": cmd.Duration,
			"pre":         pre,
		},
	})
}
