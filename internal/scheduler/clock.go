package scheduler

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Clock is the wall-clock source the scheduler trusts once its year passes
// the configured threshold.
type Clock interface {
	Now() time.Time
	// After behaves like time.After and bounds the pre-transition wait.
	After(d time.Duration) <-chan time.Time
	// Resync asks the time source to synchronize again.
	Resync() error
}

// SystemClock reads the host clock. Synchronization itself belongs to the
// host (NTP, chrony, systemd-timesyncd); Resync only calls the optional hook.
type SystemClock struct {
	ResyncFunc func() error
}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (c SystemClock) Resync() error {
	log.Warn().Msg("System clock not synchronized, requesting resync")
	if c.ResyncFunc == nil {
		return nil
	}
	return c.ResyncFunc()
}
