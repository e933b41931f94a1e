package pricing

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Advance returns the next progress value: cur+step, held at ceiling.
// The result never exceeds ceiling, so ticks alone cannot reach 100.
func Advance(cur, step, ceiling int) int {
	if cur >= ceiling {
		return cur
	}
	next := cur + step
	if next > ceiling {
		return ceiling
	}
	return next
}

// runTicker advances progress for submission id every interval until ctx is
// done. ctx is the submission's own token; the completion path cancels it.
func (c *Controller) runTicker(ctx context.Context, id string) {
	t := time.NewTicker(c.opts.TickInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !c.tick(ctx, id) {
				return
			}
		}
	}
}

// tick applies one step. It reports false once the tick belongs to a
// submission that is no longer current.
func (c *Controller) tick(ctx context.Context, id string) bool {
	c.mu.Lock()
	if ctx.Err() != nil || c.current != id || c.status != StatusSubmitting {
		c.mu.Unlock()
		return false
	}
	prev := c.progress
	c.progress = Advance(prev, c.opts.TickStep, c.opts.TickCeiling)
	cur := c.progress
	c.mu.Unlock()

	if cur != prev {
		c.tickLog.Do(func() {
			zap.L().Debug("pricing: progress tick",
				zap.String("submission_id", id),
				zap.Int("progress", cur),
			)
		})
		c.publish()
	}
	return true
}
