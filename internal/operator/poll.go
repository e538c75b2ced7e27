package operator

import (
	"context"
	"time"
)

// pollInterval is how often WatchKubeconfig retries Start while the
// controller sits Stopped, mirroring the Rust original's
// wait_for_kubeconfig convenience poller.
const pollInterval = 5 * time.Second

// WatchKubeconfig retries Start every pollInterval until it succeeds or
// ctx is cancelled, without blocking the caller. A Start call that returns
// an error is logged and ends the polling. It is a convenience on
// top of the control-plane-triggered Start: either path may bring the
// controller up, and a concurrent winner is a no-op for the loser since
// Start is idempotent against an already-Running controller.
func (c *Controller) WatchKubeconfig(ctx context.Context) {
	if c.Status().Running {
		return
	}

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				started, err := c.Start(ctx)
				if err != nil {
					c.log.Error(err, "background kubeconfig poll failed to start controller")
					return
				}
				if started {
					return
				}
			}
		}
	}()
}
