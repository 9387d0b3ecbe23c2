package runbook

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
)

const DefaultBatchSize = 10

type DriverConfig struct {
	// BatchSize number of units between progress summaries
	BatchSize int
	// SingleActiveStatus units use `running` in place of both `deleting` and `backfilling`
	SingleActiveStatus bool
	// SkipDelete skips delete step for all units
	SkipDelete bool
}

type DriverOption func(d *Driver)

func WithDeleter(deleter Deleter) DriverOption {
	return func(d *Driver) {
		d.deleter = deleter
	}
}

// WithCounter enables post-run row counts
func WithCounter(counter Counter) DriverOption {
	return func(d *Driver) {
		d.counter = counter
	}
}

// WithTunnel makes driver own the tunnel for the duration of the run
func WithTunnel(tunnel Tunnel) DriverOption {
	return func(d *Driver) {
		d.tunnel = tunnel
	}
}

// Driver runs units sequentially through delete, convergence wait, job and completion wait.
// Every state transition is saved before the next external call.
type Driver struct {
	appbase.Service
	store      Store
	backfiller Backfiller
	deleter    Deleter
	counter    Counter
	tunnel     Tunnel
	config     DriverConfig
	now        func() time.Time
}

func NewDriver(name string, store Store, backfiller Backfiller, config DriverConfig, opts ...DriverOption) *Driver {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	d := &Driver{
		Service:    appbase.NewServiceBase(name),
		store:      store,
		backfiller: backfiller,
		config:     config,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes all not completed units of t. Unit failures are recorded in t and never abort the run.
// Returns error only when progress could not be saved or ctx was cancelled.
func (d *Driver) Run(ctx context.Context, t *Tracking) (err error) {
	units := t.Unfinished()
	if len(units) == 0 {
		d.Infof("All units are completed. Nothing to do.")
		return nil
	}
	d.Infof("%d units to process", len(units))
	if d.tunnel != nil {
		if err = d.tunnel.Start(ctx); err != nil {
			return errorj.Decorate(err, "failed to start tunnel")
		}
		defer func() {
			if stopErr := d.tunnel.Stop(); stopErr != nil {
				d.Warnf("failed to stop tunnel: %v", stopErr)
			}
		}()
	}
	batches := utils.Chunks(units, d.config.BatchSize)
	for i, batch := range batches {
		d.Infof("Batch %d/%d: %s", i+1, len(batches), strings.Join(batch, ", "))
		for _, id := range batch {
			if err = d.processUnit(ctx, t, id); err != nil {
				return err
			}
		}
		counts := t.CountByStatus()
		d.Infof("Batch %d done. Completed: %d, Failed: %d, Remaining: %d", i+1,
			counts[StatusCompleted], counts[StatusFailed], len(t.Unfinished())-counts[StatusFailed])
	}
	return nil
}

func (d *Driver) deleteStatus() Status {
	return utils.Ternary(d.config.SingleActiveStatus, StatusRunning, StatusDeleting)
}

func (d *Driver) backfillStatus() Status {
	return utils.Ternary(d.config.SingleActiveStatus, StatusRunning, StatusBackfilling)
}

func (d *Driver) processUnit(ctx context.Context, t *Tracking, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u := t.Units[id]
	spec := t.Spec(id)
	d.Infof("=== %s (%s) ===", id, spec.Window)
	active := u.Status == StatusBackfilling || u.Status == StatusRunning
	if active && u.JobName != "" && !u.Tracked {
		// workflows spawned by the job can't be discovered reliably anymore
		d.Warnf("[%s] Job %s was interrupted before its workflows were tracked. Submitting new job", id, u.JobName)
	}
	if active && u.JobName != "" && u.Tracked {
		d.Infof("[%s] Resuming wait for job %s", id, u.JobName)
	} else {
		now := d.now()
		u.Status = d.deleteStatus()
		u.StartedAt = &now
		u.CompletedAt = nil
		u.Error = ""
		u.clearJob()
		if err := d.save(ctx, t); err != nil {
			return err
		}
		if d.deleter != nil && !u.DeleteDone && !d.config.SkipDelete {
			d.Infof("[%s] Deleting data...", id)
			if err := d.deleter.Delete(ctx, spec); err != nil {
				return d.fail(ctx, t, id, "", err)
			}
			d.Infof("[%s] Waiting for mutations...", id)
			if err := d.deleter.WaitConverged(ctx, spec); err != nil {
				return d.fail(ctx, t, id, "", err)
			}
			u.DeleteDone = true
		} else if d.deleter != nil {
			d.Infof("[%s] Delete skipped (already done or disabled)", id)
		}
		u.Status = d.backfillStatus()
		if err := d.save(ctx, t); err != nil {
			return err
		}
	}

	windows := []Window{spec.Window}
	if u.Split {
		days, err := spec.Window.Days()
		if err != nil {
			return d.fail(ctx, t, id, "", err)
		}
		windows = days
		d.Infof("[%s] Running sequential backfill: %d days, %d already completed", id, len(days), len(u.CompletedDays))
	}
	for _, w := range windows {
		if u.Split && slices.Contains(u.CompletedDays, w.Start) {
			continue
		}
		prefix := utils.Ternary(u.Split, fmt.Sprintf("Day %s: ", w.Start), "")
		daySpec := spec
		daySpec.Window = w
		job := Job{Name: u.JobName, WorkflowIDs: u.WorkflowIDs}
		if job.Name == "" || (u.Split && u.CurrentDay != w.Start) {
			name, err := d.backfiller.Submit(ctx, daySpec)
			if err != nil {
				return d.fail(ctx, t, id, prefix, err)
			}
			d.Infof("[%s] %sJob created: %s", id, prefix, name)
			u.JobName = name
			if u.Split {
				u.CurrentDay = w.Start
			}
			if err = d.save(ctx, t); err != nil {
				return err
			}
			u.WorkflowIDs = d.backfiller.Track(ctx, daySpec, name)
			if err = ctx.Err(); err != nil {
				return err
			}
			u.Tracked = true
			if len(u.WorkflowIDs) > 0 {
				d.Infof("[%s] %sFound %d workflow(s): %s", id, prefix, len(u.WorkflowIDs), strings.Join(u.WorkflowIDs, ", "))
			}
			if err = d.save(ctx, t); err != nil {
				return err
			}
			job = Job{Name: name, WorkflowIDs: u.WorkflowIDs}
		}
		if err := d.backfiller.Wait(ctx, job); err != nil {
			return d.fail(ctx, t, id, prefix, err)
		}
		if u.Split {
			u.CompletedDays = append(u.CompletedDays, w.Start)
			u.clearJob()
			if err := d.save(ctx, t); err != nil {
				return err
			}
		}
	}

	if d.counter != nil {
		after, err := d.counter.Count(ctx, spec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.Warnf("[%s] failed to count rows after backfill: %v", id, err)
		} else {
			u.AfterCounts = after
		}
	}
	now := d.now()
	u.Status = StatusCompleted
	u.CompletedAt = &now
	if err := d.save(ctx, t); err != nil {
		return err
	}
	d.Infof("[%s] DONE%s", id, countsDelta(u.BeforeCounts, u.AfterCounts))
	return nil
}

// fail records unit failure. Cancellation is not a unit failure: unit stays at its last checkpoint.
func (d *Driver) fail(ctx context.Context, t *Tracking, id, prefix string, err error) error {
	if ctx.Err() != nil {
		d.Warnf("[%s] interrupted: %v", id, err)
		return ctx.Err()
	}
	if errorj.IsStoreError(err) {
		return err
	}
	u := t.Units[id]
	u.Status = StatusFailed
	u.Error = prefix + errorj.Message(err)
	d.Errorf("[%s] FAILED: %s", id, u.Error)
	return d.save(ctx, t)
}

// save checkpoints progress even if ctx is already cancelled
func (d *Driver) save(ctx context.Context, t *Tracking) error {
	if err := d.store.Save(context.WithoutCancel(ctx), t); err != nil {
		return errorj.Decorate(err, "failed to save progress to %s", d.store.Location())
	}
	ObserveTracking(t)
	return nil
}

func countsDelta(before, after Counts) string {
	if len(after) == 0 {
		return ""
	}
	keys := make([]string, 0, len(after))
	for k := range after {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := utils.ArrayMap(keys, func(k string) string {
		return fmt.Sprintf("%s %d -> %d (-%d)", k, before[k], after[k], before[k]-after[k])
	})
	return ": " + strings.Join(parts, ", ")
}
