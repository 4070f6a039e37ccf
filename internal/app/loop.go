package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/filbot/iss-tracker/internal/display"
	"github.com/filbot/iss-tracker/internal/fix"
	"github.com/filbot/iss-tracker/internal/render"
	"github.com/filbot/iss-tracker/internal/watchdog"
)

// positioner is the slice of the estimator the render loop needs.
type positioner interface {
	Estimate() fix.Fix
	RestartIfNeeded(ctx context.Context) bool
}

// loopConfig carries the render cadence and the failure thresholds.
type loopConfig struct {
	frameInterval   time.Duration
	estimatorCheck  time.Duration
	watchdogPing    time.Duration
	reinitThreshold int
	abortThreshold  int
}

// runLoop drives the fixed-cadence render cycle: estimate, composite,
// blit, panel maintenance. Consecutive blit failures escalate: at the
// re-init threshold the display gets one full re-initialization, at the
// abort threshold the loop gives up so the supervisor can restart the
// process. Any successful blit resets the count.
func runLoop(ctx context.Context, lc loopConfig, pos positioner, comp *render.Compositor,
	drv display.Driver, busy func(bool), onFrame func([]byte)) error {

	ticker := time.NewTicker(lc.frameInterval)
	defer ticker.Stop()
	check := time.NewTicker(lc.estimatorCheck)
	defer check.Stop()

	var pingC <-chan time.Time
	if lc.watchdogPing > 0 {
		ping := time.NewTicker(lc.watchdogPing)
		defer ping.Stop()
		pingC = ping.C
	}

	count := comp.FrameCount()
	idx := 0
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-pingC:
			watchdog.Ping()

		case <-check.C:
			pos.RestartIfNeeded(ctx)

		case <-ticker.C:
			buf := comp.Composite(idx, pos.Estimate())
			idx = (idx + 1) % count

			if err := drv.Blit(buf); err != nil {
				failures++
				log.Printf("loop: blit failed (%d consecutive): %v", failures, err)
				if failures == lc.reinitThreshold {
					log.Printf("loop: re-initializing display after %d failures", failures)
					if rerr := drv.Reinit(); rerr != nil {
						log.Printf("loop: display re-init failed: %v", rerr)
					}
				}
				if failures >= lc.abortThreshold {
					return fmt.Errorf("render loop: %d consecutive blit failures: %w", failures, err)
				}
				if busy != nil {
					busy(true)
				}
				continue
			}

			failures = 0
			if busy != nil {
				busy(false)
			}
			if onFrame != nil {
				onFrame(buf)
			}
			drv.Maintain()
		}
	}
}
