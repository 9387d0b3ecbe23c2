package runbook

import (
	"context"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
)

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll calls check every interval until it reports done, returns an error or timeout elapses.
// elapsed passed to check is the sum of intervals slept so far.
// Timeout results in errorj.PollTimeoutError.
func Poll(ctx context.Context, what string, interval, timeout time.Duration, check func(ctx context.Context, elapsed time.Duration) (bool, error)) error {
	if interval <= 0 {
		interval = time.Second
	}
	for elapsed := time.Duration(0); elapsed < timeout; elapsed += interval {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := check(ctx, elapsed)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err = Sleep(ctx, interval); err != nil {
			return err
		}
	}
	return errorj.PollTimeoutError.New("%s did not complete within %s", what, timeout)
}
