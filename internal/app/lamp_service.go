package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/config"
	"github.com/dokzlo13/sunlamp/internal/eventbus"
	"github.com/dokzlo13/sunlamp/internal/strip"
)

// LampService owns the pixel buffer, the animation engine and the event bus.
type LampService struct {
	cfg *config.Config

	Strip  *strip.Buffer
	Engine *animation.Engine
	Bus    *eventbus.Bus
}

// NewLampService creates the strip and engine. extra sinks receive every
// frame in addition to the configured one.
func NewLampService(cfg *config.Config, extra ...strip.Sink) *LampService {
	var sinks strip.MultiSink
	if cfg.Strip.Sink == "log" {
		sinks = append(sinks, strip.NewLogSink(zerolog.DebugLevel))
	}
	sinks = append(sinks, extra...)

	buf := strip.NewBuffer(cfg.Strip.Pixels, sinks)
	engine := animation.NewEngine(buf, cfg.Animation.Tick.Duration(), cfg.Animation.QueueSize)

	// Initialize event bus
	bus := eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	return &LampService{
		cfg:    cfg,
		Strip:  buf,
		Engine: engine,
		Bus:    bus,
	}
}

// Start runs the engine until ctx is cancelled.
func (s *LampService) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Animation engine error")
		}
	}()
}

// Close drains the event bus.
func (s *LampService) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		s.Bus.Close(ctx)
	}
}
