package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/config"
	"github.com/dokzlo13/sunlamp/internal/control"
)

// ControlService wraps the HTTP and websocket control server.
type ControlService struct {
	cfg    *config.Config
	server *control.Server
}

// NewControlService creates a new ControlService. history may be nil.
func NewControlService(cfg *config.Config, ctrl *control.Controller, history control.History) *ControlService {
	server := control.NewServer(cfg.HTTP.Addr(), ctrl, history, cfg.HTTP.RateLimit, cfg.HTTP.Burst)
	return &ControlService{
		cfg:    cfg,
		server: server,
	}
}

// Start begins the control server if enabled. A listen failure is fatal.
func (s *ControlService) Start(ctx context.Context, wg *sync.WaitGroup, onFatalError func(error)) {
	if !s.cfg.HTTP.Enabled {
		log.Debug().Msg("Control server disabled")
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.server.Run(ctx, s.cfg.GetShutdownTimeout()); err != nil {
			log.Error().Err(err).Msg("Control server error")
			if onFatalError != nil {
				onFatalError(err)
			}
		}
	}()
}
