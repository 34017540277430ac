package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the suggested tick period from spec §4.12.
const DefaultInterval = 100 * time.Millisecond

// SweepFunc performs one unit of periodic work. It must not block.
type SweepFunc func(now time.Time)

// Ticker drives the server's single periodic tick: keyspace expiry sweep,
// blocking-registry timeout sweep, and WAIT deadline sweep all run from
// here, in that order, once per interval.
type Ticker struct {
	interval time.Duration
	sweeps   []SweepFunc
	log      *zap.Logger
}

// New creates a Ticker that invokes each sweep, in order, every interval.
func New(log *zap.Logger, interval time.Duration, sweeps ...SweepFunc) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{interval: interval, sweeps: sweeps, log: log.Named("scheduler")}
}

// Run blocks, ticking until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.log.Info("scheduler stopping")
			return ctx.Err()
		case now := <-ticker.C:
			for _, sweep := range t.sweeps {
				sweep(now)
			}
		}
	}
}
