package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/color"
	"github.com/dokzlo13/sunlamp/internal/eventbus"
	"github.com/dokzlo13/sunlamp/internal/geo"
	"github.com/dokzlo13/sunlamp/internal/scheduler"
)

// 2024-02-29 12:01 UTC, 14:01 in Lviv.
var refTime = time.Unix(1709208060, 0)

type fakeEngine struct {
	mu    sync.Mutex
	sent  []animation.Command
	full  bool
	color color.Color
	kind  animation.Kind
}

func (e *fakeEngine) Send(cmd animation.Command) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.full {
		return false
	}
	e.sent = append(e.sent, cmd)
	return true
}

func (e *fakeEngine) CurrentColor() color.Color { return e.color }
func (e *fakeEngine) Kind() animation.Kind      { return e.kind }

func (e *fakeEngine) Sent() []animation.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]animation.Command(nil), e.sent...)
}

type fakeScheduler struct {
	mu       sync.Mutex
	sun      bool
	trusted  bool
	full     bool
	phases   []scheduler.Phase
	alarm    time.Time
	messages []bool
}

func (s *fakeScheduler) send(enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.messages = append(s.messages, enabled)
	s.sun = enabled
	return true
}

func (s *fakeScheduler) SunEnable() bool  { return s.send(true) }
func (s *fakeScheduler) SunDisable() bool { return s.send(false) }

func (s *fakeScheduler) IsSunImitationActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sun
}

func (s *fakeScheduler) ClockTrusted() bool        { return s.trusted }
func (s *fakeScheduler) Phases() []scheduler.Phase { return s.phases }

func (s *fakeScheduler) Alarm() (time.Time, bool) {
	return s.alarm, !s.alarm.IsZero()
}

func (s *fakeScheduler) Messages() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.messages...)
}

type fixture struct {
	engine *fakeEngine
	sched  *fakeScheduler
	calc   *geo.Calculator
	bus    *eventbus.Bus
	ctrl   *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	calc, err := geo.NewCalculator(geo.Location{Name: "Lviv", Latitude: 49.839684, Longitude: 24.029716, Timezone: "Europe/Kyiv"})
	require.NoError(t, err)

	phases, err := scheduler.BuildPhases(calc, refTime, scheduler.DefaultPalette)
	require.NoError(t, err)

	f := &fixture{
		engine: &fakeEngine{color: color.RGB(220, 220, 0), kind: animation.KindSine},
		sched:  &fakeScheduler{sun: true, trusted: true, phases: phases, alarm: phases[4].Start},
		calc:   calc,
		bus:    eventbus.NewWithConfig(1, 10),
	}
	f.ctrl = NewController(f.engine, f.sched, calc, f.bus)
	f.ctrl.now = func() time.Time { return refTime }
	t.Cleanup(func() { f.bus.Close(context.Background()) })
	return f
}
