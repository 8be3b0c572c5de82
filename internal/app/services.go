package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/config"
	"github.com/dokzlo13/sunlamp/internal/control"
	"github.com/dokzlo13/sunlamp/internal/db"
	"github.com/dokzlo13/sunlamp/internal/geo"
	"github.com/dokzlo13/sunlamp/internal/ledger"
	"github.com/dokzlo13/sunlamp/internal/scheduler"
	"github.com/dokzlo13/sunlamp/internal/strip"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config
	wg  sync.WaitGroup

	// Core infrastructure, nil when database.path is empty
	DB     *db.DB
	Ledger *ledger.Ledger

	GeoCalc *geo.Calculator
	Palette scheduler.Palette

	// High-level services
	Lamp       *LampService
	Scheduler  *SchedulerService
	Controller *control.Controller
	Events     *EventService
	Control    *ControlService
	MQTT       *MQTTService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	geoCalc, palette, err := CheckConfig(cfg)
	if err != nil {
		return nil, err
	}
	s.GeoCalc = geoCalc
	s.Palette = palette

	// Initialize database and ledger
	if cfg.Database.Path != "" {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
	} else {
		log.Info().Msg("No database path configured, event ledger disabled")
	}

	// MQTT client first so frames can be mirrored from the strip
	var sinks []strip.Sink
	if cfg.MQTT.Enabled() {
		s.MQTT = NewMQTTService(cfg)
		if cfg.MQTT.PublishFrames {
			sinks = append(sinks, s.MQTT.FrameSink())
		}
	}

	s.Lamp = NewLampService(cfg, sinks...)
	s.Scheduler = NewSchedulerService(cfg, geoCalc, s.Lamp.Engine, s.Lamp.Bus, s.Ledger, palette)
	s.Controller = control.NewController(s.Lamp.Engine, s.Scheduler.Scheduler, geoCalc, s.Lamp.Bus)

	var history control.History
	if s.Ledger != nil {
		s.Events = NewEventService(s.Lamp.Bus, s.Ledger)
		history = s.Ledger
	}
	s.Control = NewControlService(cfg, s.Controller, history)

	if s.MQTT != nil {
		s.MQTT.Attach(s.Controller)
	}

	return s, nil
}

// CheckConfig validates what Load cannot: the location must see every solar
// threshold all year, and the palette script must load.
func CheckConfig(cfg *config.Config) (*geo.Calculator, scheduler.Palette, error) {
	geoCalc, err := geo.NewCalculator(geo.Location{
		Name:      cfg.Geo.Name,
		Latitude:  cfg.Geo.Lat,
		Longitude: cfg.Geo.Lon,
		Timezone:  cfg.Geo.Timezone,
	})
	if err != nil {
		return nil, scheduler.Palette{}, err
	}
	if err := geoCalc.CheckLocation(time.Now().Year()); err != nil {
		return nil, scheduler.Palette{}, fmt.Errorf("unsupported location %q: %w", cfg.Geo.Name, err)
	}

	palette, err := LoadPalette(cfg, geoCalc)
	if err != nil {
		return nil, scheduler.Palette{}, err
	}
	return geoCalc, palette, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs (e.g., the control port is taken).
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Subscribers first so startup events are recorded
	if s.Events != nil {
		s.Events.Start()
	}
	if s.MQTT != nil {
		s.MQTT.Start(ctx, s.Lamp.Bus)
	}

	s.Lamp.Start(ctx, &s.wg)
	s.Scheduler.Start(ctx, &s.wg)
	s.Control.Start(ctx, &s.wg, onFatalError)

	return nil
}

// Stop gracefully stops all services. The context passed to Start must be
// cancelled first.
func (s *Services) Stop() error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.GetShutdownTimeout()):
		log.Warn().Msg("Timed out waiting for services to stop")
	}

	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.Lamp != nil {
		s.Lamp.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
