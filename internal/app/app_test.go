package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/config"
	"github.com/dokzlo13/sunlamp/internal/db"
	"github.com/dokzlo13/sunlamp/internal/eventbus"
	"github.com/dokzlo13/sunlamp/internal/ledger"
	"github.com/dokzlo13/sunlamp/internal/scheduler"
)

func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(fmt.Sprintf(`
geo:
  name: Lviv
  lat: 49.839684
  lon: 24.029716
  timezone: Europe/Kyiv
strip:
  sink: none
%s`, extra)))
	require.NoError(t, err)
	cfg.BaseDir = t.TempDir()
	return cfg
}

func TestEventService_RecordsBusEvents(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer database.Close()

	bus := eventbus.NewWithConfig(1, 10)
	l := ledger.New(database.DB)
	NewEventService(bus, l).Start()

	bus.Publish(eventbus.Event{Type: eventbus.EventTypeCommand, Data: map[string]any{"source": "http", "kind": "color"}})
	bus.Publish(eventbus.Event{Type: eventbus.EventTypePhase, Data: map[string]any{"phase": "day"}})
	bus.Publish(eventbus.Event{Type: eventbus.EventTypeClock, Data: map[string]any{"action": "resync"}})
	bus.Close(context.Background())

	commands, err := l.GetByType(ledger.EventCommandReceived, 10)
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, "http", commands[0].Source)
	assert.Equal(t, "color", commands[0].Payload["kind"])

	phases, err := l.GetByType(ledger.EventPhaseDispatched, 10)
	require.NoError(t, err)
	require.Len(t, phases, 1)
	assert.Equal(t, "scheduler", phases[0].Source)

	resyncs, err := l.GetByType(ledger.EventClockResync, 10)
	require.NoError(t, err)
	require.Len(t, resyncs, 1)
	assert.Equal(t, "clock", resyncs[0].Source)
}

func TestLoadPalette(t *testing.T) {
	cfg := testConfig(t, "")
	calc, palette, err := CheckConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, scheduler.DefaultPalette, palette)

	script := `local p = require("palette").default(); p[1].kind = "fade"; return p`
	require.NoError(t, os.WriteFile(filepath.Join(cfg.BaseDir, "palette.lua"), []byte(script), 0o644))
	cfg.Palette.Script = "palette.lua"

	palette, err = LoadPalette(cfg, calc)
	require.NoError(t, err)
	assert.Equal(t, animation.KindFade, palette[0].Kind)

	cfg.Palette.Script = "missing.lua"
	_, err = LoadPalette(cfg, calc)
	assert.Error(t, err)
}

func TestCheckConfig_RejectsPolarLocation(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Geo.Name = "Longyearbyen"
	cfg.Geo.Lat = 78.22
	cfg.Geo.Lon = 15.65
	cfg.Geo.Timezone = "Arctic/Longyearbyen"

	_, _, err := CheckConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Longyearbyen")
}

func TestResyncCommand(t *testing.T) {
	assert.Nil(t, resyncCommand(""))
	assert.Nil(t, resyncCommand("   "))

	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip("no /bin/true")
	}
	assert.NoError(t, resyncCommand("/bin/true")())
	assert.Error(t, resyncCommand("/bin/false --flag")())
}

func TestServices_StartStop(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sunlamp.db")
	cfg := testConfig(t, fmt.Sprintf("database:\n  path: %s\n", dbPath))

	services, err := NewServices(cfg)
	require.NoError(t, err)
	require.NotNil(t, services.Ledger)
	assert.Nil(t, services.MQTT)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, services.Start(ctx, func(error) { cancel() }))

	sched := services.Scheduler.Scheduler
	require.Eventually(t, func() bool {
		return len(sched.Phases()) == scheduler.PhaseCount && sched.IsSunImitationActive()
	}, 3*time.Second, 10*time.Millisecond)

	// the mode change is published after the phase dispatch and its pre-transition
	require.Eventually(t, func() bool {
		entries, err := services.Ledger.GetByType(ledger.EventModeChanged, 1)
		return err == nil && len(entries) == 1
	}, 5*time.Second, 20*time.Millisecond)

	entries, err := services.Ledger.GetByType(ledger.EventPhaseDispatched, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].Payload["pre"])

	cancel()
	require.NoError(t, services.Stop())
}
