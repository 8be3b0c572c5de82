package control

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/color"
	"github.com/dokzlo13/sunlamp/internal/eventbus"
)

func TestSetColor_SendsColorAndDisablesSun(t *testing.T) {
	f := newFixture(t)

	events := make(chan eventbus.Event, 1)
	f.bus.Subscribe(func(e eventbus.Event) { events <- e }, eventbus.EventTypeCommand)

	id, err := f.ctrl.SetColor("test", color.Color{R: 10, G: 20, B: 30, Tag: true})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	assert.Equal(t, []bool{false}, f.sched.Messages())
	assert.Equal(t, []animation.Command{{
		Kind:     animation.KindColor,
		Dst:      color.RGB(10, 20, 30),
		Interval: animation.DefaultInterval,
	}}, f.engine.Sent())

	select {
	case e := <-events:
		assert.Equal(t, id, e.Data["request_id"])
		assert.Equal(t, "test", e.Data["source"])
		assert.Equal(t, "color", e.Data["kind"])
	case <-time.After(time.Second):
		t.Fatal("command event not published")
	}
}

func TestAnimate_NormalizesTiming(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Animate("test", animation.Command{
		Kind:     animation.KindRainbow,
		Dst:      color.RGB(0, 0, 255),
		Interval: 500,
		Duration: 100,
	})
	require.NoError(t, err)

	sent := f.engine.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, animation.DefaultInterval, sent[0].Interval)
	assert.Zero(t, sent[0].Duration)
}

func TestAnimate_Busy(t *testing.T) {
	t.Run("engine", func(t *testing.T) {
		f := newFixture(t)
		f.engine.full = true
		_, err := f.ctrl.SetColor("test", color.RGB(1, 2, 3))
		assert.ErrorIs(t, err, ErrBusy)
	})
	t.Run("scheduler", func(t *testing.T) {
		f := newFixture(t)
		f.sched.full = true
		_, err := f.ctrl.SetColor("test", color.RGB(1, 2, 3))
		assert.ErrorIs(t, err, ErrBusy)
		assert.Empty(t, f.engine.Sent())
	})
}

func TestSetSun(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.SetSun("test", false)
	require.NoError(t, err)
	_, err = f.ctrl.SetSun("test", true)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true}, f.sched.Messages())
	assert.Empty(t, f.engine.Sent())
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	st := f.ctrl.Status()
	assert.Equal(t, ModeSun, st.Mode)
	assert.True(t, st.ClockTrusted)
	assert.Equal(t, color.RGB(220, 220, 0), st.Color)
	assert.Equal(t, "sine", st.Kind)
	assert.Equal(t, "Lviv", st.Location)
	assert.Equal(t, "2024-02-29 14:01", st.LocalTime.Format("2006-01-02 15:04"))
	assert.Greater(t, st.SunAltitude, 20.0)
	require.NotNil(t, st.NextAlarm)
	assert.Equal(t, int64(1709220082), st.NextAlarm.Unix())

	require.Len(t, st.Phases, 7)
	for _, p := range st.Phases {
		assert.Equal(t, p.Name == "day", p.Active, p.Name)
	}

	f.sched.sun = false
	assert.Equal(t, ModeColor, f.ctrl.Status().Mode)
}
