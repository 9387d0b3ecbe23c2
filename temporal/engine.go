package temporal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultNamespace = "ingestion"
	DefaultAddress   = "localhost:7233"

	statusPrefix = "WORKFLOW_EXECUTION_STATUS_"
)

// Status is workflow execution status without WORKFLOW_EXECUTION_STATUS_ prefix, e.g. RUNNING
type Status string

const (
	StatusRunning        Status = "RUNNING"
	StatusCompleted      Status = "COMPLETED"
	StatusFailed         Status = "FAILED"
	StatusCanceled       Status = "CANCELED"
	StatusTerminated     Status = "TERMINATED"
	StatusContinuedAsNew Status = "CONTINUED_AS_NEW"
	StatusTimedOut       Status = "TIMED_OUT"
	StatusUnknown        Status = "UNKNOWN"
)

// ParseStatus accepts both WORKFLOW_EXECUTION_STATUS_RUNNING and Running forms
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusUnknown
	}
	s = strings.TrimPrefix(strings.ToUpper(s), statusPrefix)
	switch s {
	case "CONTINUEDASNEW":
		return StatusContinuedAsNew
	case "TIMEDOUT":
		return StatusTimedOut
	}
	return Status(s)
}

// Failed reports statuses that mean workflow did not do its work
func (s Status) Failed() bool {
	switch s {
	case StatusFailed, StatusTimedOut, StatusCanceled, StatusTerminated:
		return true
	}
	return false
}

// Execution is an entry of workflow list
type Execution struct {
	WorkflowID string
	StartTime  time.Time
}

// Engine is the subset of workflow engine API used by runbooks
type Engine interface {
	Describe(ctx context.Context, workflowID string) (Status, error)
	List(ctx context.Context, query string) ([]Execution, error)
	Close() error
}

// ReindexPrefix workflow id prefix of reindex conversations workflows of customer on cluster
func ReindexPrefix(customer, cluster string) string {
	return fmt.Sprintf("reindexconversations-%s-%s", customer, cluster)
}

// RunningQuery visibility query selecting running workflows with id starting with any of prefixes
func RunningQuery(prefixes ...string) string {
	conds := make([]string, len(prefixes))
	for i, p := range prefixes {
		conds[i] = fmt.Sprintf(`WorkflowId STARTS_WITH "%s"`, p)
	}
	filter := strings.Join(conds, " OR ")
	if len(conds) > 1 {
		filter = "(" + filter + ")"
	}
	return `ExecutionStatus = "Running" AND ` + filter
}

// shortID is the last dash separated segment of workflow id limited to 8 chars
func shortID(workflowID string) string {
	short := workflowID
	if i := strings.LastIndex(workflowID, "-"); i >= 0 {
		short = workflowID[i+1:]
	}
	if len(short) > 8 {
		short = short[:8]
	}
	return short
}
