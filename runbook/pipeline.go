package runbook

import (
	"context"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/logging"
)

// Deleter removes unit's rows for its window from the data store
type Deleter interface {
	Delete(ctx context.Context, spec UnitSpec) error
	// WaitConverged waits until asynchronous effects of Delete are applied everywhere
	WaitConverged(ctx context.Context, spec UnitSpec) error
}

// Counter counts unit's rows for its window by tracked table
type Counter interface {
	Count(ctx context.Context, spec UnitSpec) (Counts, error)
}

// Job references externally running re-processing job
type Job struct {
	Name        string
	WorkflowIDs []string
}

// Backfiller starts re-processing for a unit window and waits for its completion
type Backfiller interface {
	Submit(ctx context.Context, spec UnitSpec) (string, error)
	// Track discovers workflows spawned by the job. Failure to recognize them is not an error.
	Track(ctx context.Context, spec UnitSpec, jobName string) []string
	Wait(ctx context.Context, job Job) error
}

// Tunnel is a scoped network forward to otherwise unreachable endpoint
type Tunnel interface {
	Start(ctx context.Context) error
	Stop() error
	EnsureAlive(ctx context.Context) error
}

// JobTrigger creates re-processing job for unit spec and returns job name
type JobTrigger interface {
	TriggerJob(ctx context.Context, spec UnitSpec) (string, error)
}

type WorkflowFinder interface {
	FindWorkflows(ctx context.Context, spec UnitSpec) ([]string, error)
}

type WorkflowWaiter interface {
	WaitWorkflows(ctx context.Context, ids []string) error
}

type JobWaiter interface {
	WaitJob(ctx context.Context, jobName string) error
}

// WorkflowBackfill triggers job and tracks workflows it spawns in the workflow engine
type WorkflowBackfill struct {
	Trigger JobTrigger
	Finder  WorkflowFinder
	Waiter  WorkflowWaiter
	// DiscoveryDelay time given to the job to spawn workflows before looking them up
	DiscoveryDelay time.Duration
}

func (b *WorkflowBackfill) Submit(ctx context.Context, spec UnitSpec) (string, error) {
	return b.Trigger.TriggerJob(ctx, spec)
}

func (b *WorkflowBackfill) Track(ctx context.Context, spec UnitSpec, jobName string) []string {
	if err := Sleep(ctx, b.DiscoveryDelay); err != nil {
		return nil
	}
	ids, err := b.Finder.FindWorkflows(ctx, spec)
	if err != nil {
		logging.Warnf("[%s] job %s: failed to find workflows: %v. Proceeding without workflow tracking", spec.ID, jobName, err)
		return nil
	}
	if len(ids) == 0 {
		logging.Warnf("[%s] job %s: no running workflows found (may have completed instantly)", spec.ID, jobName)
	}
	return ids
}

func (b *WorkflowBackfill) Wait(ctx context.Context, job Job) error {
	if len(job.WorkflowIDs) == 0 {
		return nil
	}
	return b.Waiter.WaitWorkflows(ctx, job.WorkflowIDs)
}

// JobBackfill triggers job and waits for its completion in the cluster
type JobBackfill struct {
	Trigger JobTrigger
	Waiter  JobWaiter
}

func (b *JobBackfill) Submit(ctx context.Context, spec UnitSpec) (string, error) {
	return b.Trigger.TriggerJob(ctx, spec)
}

func (b *JobBackfill) Track(context.Context, UnitSpec, string) []string {
	return nil
}

func (b *JobBackfill) Wait(ctx context.Context, job Job) error {
	return b.Waiter.WaitJob(ctx, job.Name)
}
