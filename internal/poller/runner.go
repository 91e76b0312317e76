package poller

import (
	"context"
	"time"
)

// Run polls immediately, then on every tick until ctx is cancelled.
// Cycles run sequentially on this goroutine; a slow cycle delays the next
// tick rather than overlapping it.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.log.Info().Dur("interval", c.cfg.Interval).Msg("control loop started")

	c.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("control loop stopped")
			return nil
		case <-ticker.C:
			c.PollOnce(ctx)
		}
	}
}
