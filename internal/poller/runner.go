// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run starts the ticker loop until ctx is done.
// One goroutine per sensor. No overlap. No retries: a failed
// cycle is simply retried on the next tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", p.cfg.Interval).Msg("acquisition started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.SampleOnce()
		}
	}
}
