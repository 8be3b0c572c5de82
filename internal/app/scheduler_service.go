package app

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/config"
	"github.com/dokzlo13/sunlamp/internal/eventbus"
	"github.com/dokzlo13/sunlamp/internal/geo"
	"github.com/dokzlo13/sunlamp/internal/ledger"
	"github.com/dokzlo13/sunlamp/internal/scheduler"
)

const resyncTimeout = 30 * time.Second

// SchedulerService wraps the day-phase scheduler and related periodic tasks.
type SchedulerService struct {
	cfg       *config.Config
	Scheduler *scheduler.Scheduler
	ledger    *ledger.Ledger
}

// NewSchedulerService creates a new SchedulerService. l may be nil.
func NewSchedulerService(
	cfg *config.Config,
	geoCalc *geo.Calculator,
	engine scheduler.Engine,
	bus *eventbus.Bus,
	l *ledger.Ledger,
	palette scheduler.Palette,
) *SchedulerService {
	clock := scheduler.SystemClock{ResyncFunc: resyncCommand(cfg.Clock.ResyncCmd)}

	sched := scheduler.New(geoCalc, clock, engine, bus, scheduler.Options{
		MinYear:     cfg.Clock.MinYear,
		RetryBudget: cfg.Clock.RetryBudget,
		Tick:        cfg.Clock.Tick.Duration(),
		QueueSize:   cfg.Scheduler.QueueSize,
		Palette:     &palette,
	})

	return &SchedulerService{
		cfg:       cfg,
		Scheduler: sched,
		ledger:    l,
	}
}

// Start begins the scheduler and related periodic tasks.
func (s *SchedulerService) Start(ctx context.Context, wg *sync.WaitGroup) {
	if s.cfg.Scheduler.IsEnabledOnStart() {
		// Handled once the clock is trusted
		s.Scheduler.SunEnable()
	} else {
		log.Info().Msg("Sun imitation is off until enabled")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler error")
		}
	}()

	// Ledger cleanup (if ledger is enabled)
	if s.ledger != nil {
		go s.runLedgerCleanup(ctx)
	}

	if interval := s.cfg.Log.PrintSchedule.Duration(); interval > 0 {
		go s.runPrintSchedule(ctx, interval)
	}
}

// runLedgerCleanup periodically cleans up old ledger entries.
func (s *SchedulerService) runLedgerCleanup(ctx context.Context) {
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
	interval := s.cfg.Ledger.CleanupInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}

// runPrintSchedule periodically logs the phase table.
func (s *SchedulerService) runPrintSchedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.printSchedule()
		}
	}
}

func (s *SchedulerService) printSchedule() {
	phases := s.Scheduler.Phases()
	if len(phases) == 0 {
		log.Info().Bool("sun", s.Scheduler.IsSunImitationActive()).Msg("No phases computed yet")
		return
	}

	alarm, armed := s.Scheduler.Alarm()
	now := time.Now()
	for _, p := range phases {
		ev := log.Info().
			Str("phase", p.Name).
			Str("start", p.Start.Format("15:04:05")).
			Str("end", p.End().Format("15:04:05")).
			Str("kind", p.Kind.String())
		if !now.Before(p.Start) && now.Before(p.End()) {
			ev = ev.Bool("active", true)
		}
		if armed && alarm.Equal(p.Start) {
			ev = ev.Bool("next", true)
		}
		ev.Msg("Schedule")
	}
}

// resyncCommand returns a hook running cmdline, or nil when it is empty.
func resyncCommand(cmdline string) func() error {
	args := strings.Fields(cmdline)
	if len(args) == 0 {
		return nil
	}
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
		defer cancel()

		out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("resync command %q failed: %w: %s", cmdline, err, strings.TrimSpace(string(out)))
		}
		log.Info().Str("cmd", cmdline).Msg("Clock resync command finished")
		return nil
	}
}
