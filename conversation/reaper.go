package conversation

import (
	"context"
	"time"
)

// RunIdleReaper ends conversations nobody has touched for idle, checking
// every interval until ctx is done. It returns immediately when idle <= 0.
func (o *Orchestrator) RunIdleReaper(ctx context.Context, interval, idle time.Duration) {
	if idle <= 0 {
		return
	}
	if interval <= 0 {
		interval = idle / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.ReapIdle(ctx, idle)
		}
	}
}

// ReapIdle ends every conversation idle for longer than idle and returns how many it ended.
func (o *Orchestrator) ReapIdle(ctx context.Context, idle time.Duration) int {
	reaped := 0
	for _, userID := range o.deps.Sessions.IdleSince(o.now().Add(-idle)) {
		if _, err := o.End(ctx, userID); err != nil {
			continue
		}
		reaped++
	}
	if reaped > 0 {
		o.logger.With(map[string]any{"count": reaped, "idle": idle}).Info("ended idle conversations")
	}
	return reaped
}
