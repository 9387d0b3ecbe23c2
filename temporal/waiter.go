package temporal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/jitsucom/backfill-runbooks/runbook"
)

const (
	DefaultPollInterval   = 30 * time.Second
	DefaultTimeout        = 3600 * time.Second
	DefaultDiscoveryDelay = 15 * time.Second
)

// Waiter polls workflow statuses until none of them is running
type Waiter struct {
	appbase.Service
	engine       Engine
	tunnel       runbook.Tunnel
	PollInterval time.Duration
	Timeout      time.Duration
}

func NewWaiter(engine Engine, tunnel runbook.Tunnel) *Waiter {
	return &Waiter{
		Service:      appbase.NewServiceBase("workflow-waiter"),
		engine:       engine,
		tunnel:       tunnel,
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
	}
}

// WaitWorkflows fails when any workflow ended failed, timed out, canceled or terminated.
// Workflows that could not be described are considered running.
func (w *Waiter) WaitWorkflows(ctx context.Context, ids []string) error {
	return runbook.Poll(ctx, "workflows", w.PollInterval, w.Timeout, func(ctx context.Context, elapsed time.Duration) (bool, error) {
		if w.tunnel != nil {
			if err := w.tunnel.EnsureAlive(ctx); err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				w.Warnf("tunnel is not available: %v", err)
				return false, nil
			}
		}
		allDone, anyFailed := true, false
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			status, err := w.engine.Describe(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				w.Debugf("failed to describe %s: %v", id, err)
				status = StatusUnknown
			}
			parts = append(parts, fmt.Sprintf("%s=%s", shortID(id), status))
			switch {
			case status == StatusRunning || status == StatusUnknown:
				allDone = false
			case status.Failed():
				anyFailed = true
			}
		}
		if allDone {
			if anyFailed {
				return false, errorj.ExternalCallError.New("Workflows finished with failures: %s", strings.Join(parts, ", "))
			}
			return true, nil
		}
		w.Infof("[%s] %s", elapsed, strings.Join(parts, " | "))
		return false, nil
	})
}
