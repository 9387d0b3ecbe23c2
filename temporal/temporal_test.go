package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/jitsucom/backfill-runbooks/runbook"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
)

type fakeEngine struct {
	// statuses returned by consecutive Describe calls per workflow. Last one repeats.
	statuses   map[string][]Status
	describeEr error
	executions []Execution
	queries    []string
}

func (f *fakeEngine) Describe(_ context.Context, id string) (Status, error) {
	if f.describeEr != nil {
		return StatusUnknown, f.describeEr
	}
	seq := f.statuses[id]
	s := seq[0]
	if len(seq) > 1 {
		f.statuses[id] = seq[1:]
	}
	return s, nil
}

func (f *fakeEngine) List(_ context.Context, query string) ([]Execution, error) {
	f.queries = append(f.queries, query)
	return f.executions, nil
}

func (f *fakeEngine) Close() error { return nil }

type countingTunnel struct{ checks int }

func (c *countingTunnel) Start(context.Context) error       { return nil }
func (c *countingTunnel) Stop() error                       { return nil }
func (c *countingTunnel) EnsureAlive(context.Context) error { c.checks++; return nil }

func fastWaiter(engine Engine, tunnel runbook.Tunnel) *Waiter {
	w := NewWaiter(engine, tunnel)
	w.PollInterval = time.Millisecond
	w.Timeout = 100 * time.Millisecond
	return w
}

func TestParseStatus(t *testing.T) {
	require.Equal(t, StatusRunning, ParseStatus("WORKFLOW_EXECUTION_STATUS_RUNNING"))
	require.Equal(t, StatusTimedOut, ParseStatus("WORKFLOW_EXECUTION_STATUS_TIMED_OUT"))
	require.Equal(t, StatusTimedOut, ParseStatus("TimedOut"))
	require.Equal(t, StatusCompleted, ParseStatus("Completed"))
	require.Equal(t, StatusUnknown, ParseStatus(""))
	require.True(t, StatusTerminated.Failed())
	require.False(t, StatusCompleted.Failed())
	require.Equal(t, StatusTerminated, statusFromEnum(enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED))
	require.Equal(t, StatusUnknown, statusFromEnum(enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED))
}

func TestRunningQuery(t *testing.T) {
	require.Equal(t, `ExecutionStatus = "Running" AND WorkflowId STARTS_WITH "reindexconversations-hilton-voice-prod"`,
		RunningQuery(ReindexPrefix("hilton", "voice-prod")))
	require.Equal(t, `ExecutionStatus = "Running" AND (WorkflowId STARTS_WITH "reindexconversations-cvs-us-west-2" OR WorkflowId STARTS_WITH "reindexconversations-oportun-us-west-2")`,
		RunningQuery(CustomerPrefixes("us-west-2")(runbook.UnitSpec{Customer: "cvs, oportun"})...))
}

func TestShortID(t *testing.T) {
	require.Equal(t, "0a1b2c3d", shortID("reindexconversations-hilton-voice-prod-0a1b2c3d4e5f"))
	require.Equal(t, "abcdefgh", shortID("abcdefghij"))
}

func TestWaitWorkflowsSuccess(t *testing.T) {
	engine := &fakeEngine{statuses: map[string][]Status{
		"wf-1": {StatusRunning, StatusRunning, StatusCompleted},
		"wf-2": {StatusCompleted},
	}}
	tunnel := &countingTunnel{}
	require.NoError(t, fastWaiter(engine, tunnel).WaitWorkflows(context.Background(), []string{"wf-1", "wf-2"}))
	require.Equal(t, 3, tunnel.checks)
}

func TestWaitWorkflowsFailure(t *testing.T) {
	engine := &fakeEngine{statuses: map[string][]Status{
		"reindex-aaaa": {StatusFailed},
		"reindex-bbbb": {StatusCompleted},
	}}
	err := fastWaiter(engine, nil).WaitWorkflows(context.Background(), []string{"reindex-aaaa", "reindex-bbbb"})
	require.Error(t, err)
	require.Equal(t, "Workflows finished with failures: aaaa=FAILED, bbbb=COMPLETED", errorj.Message(err))
}

func TestWaitWorkflowsDescribeErrorsKeepWaiting(t *testing.T) {
	engine := &fakeEngine{describeEr: errors.New("connection refused")}
	w := fastWaiter(engine, nil)
	w.Timeout = 5 * time.Millisecond
	err := w.WaitWorkflows(context.Background(), []string{"wf-1"})
	require.True(t, errorj.IsTimeout(err))
}

func TestFinderMaxAge(t *testing.T) {
	now := time.Date(2026, 2, 9, 14, 0, 0, 0, time.UTC)
	engine := &fakeEngine{executions: []Execution{
		{WorkflowID: "reindexconversations-hilton-voice-prod-new", StartTime: now.Add(-time.Minute)},
		{WorkflowID: "reindexconversations-hilton-voice-prod-old", StartTime: now.Add(-10 * time.Minute)},
	}}
	tunnel := &countingTunnel{}
	f := NewFinder(engine, tunnel, CustomerPrefixes("voice-prod"), DefaultCleanupMaxAge)
	f.now = func() time.Time { return now }

	ids, err := f.FindWorkflows(context.Background(), runbook.UnitSpec{ID: "hilton", Customer: "hilton"})
	require.NoError(t, err)
	require.Equal(t, []string{"reindexconversations-hilton-voice-prod-new"}, ids)
	require.Equal(t, 1, tunnel.checks)
	require.Equal(t, []string{`ExecutionStatus = "Running" AND WorkflowId STARTS_WITH "reindexconversations-hilton-voice-prod"`}, engine.queries)
}

func TestCLIEngine(t *testing.T) {
	var calls [][]string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		if args[1] == "describe" {
			return []byte(`{"workflowExecutionInfo":{"execution":{"workflowId":"wf-1"},"status":"WORKFLOW_EXECUTION_STATUS_FAILED"}}`), nil
		}
		return []byte(`[
  {"execution":{"workflowId":"wf-1","runId":"r1"},"startTime":"2026-02-09T14:00:00.123456Z","status":"WORKFLOW_EXECUTION_STATUS_RUNNING"},
  {"execution":{"workflowId":"wf-2"},"startTime":""},
  {"execution":{"workflowId":""},"startTime":"2026-02-09T14:00:00Z"}
]`), nil
	}
	engine := NewCLIEngine(DefaultAddress, DefaultNamespace, run)

	status, err := engine.Describe(context.Background(), "wf-1")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, status)
	require.Equal(t, []string{"temporal", "workflow", "describe", "--namespace", "ingestion", "--address", "localhost:7233",
		"--workflow-id", "wf-1", "--output", "json"}, calls[0])

	list, err := engine.List(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, []Execution{{WorkflowID: "wf-1", StartTime: time.Date(2026, 2, 9, 14, 0, 0, 123456000, time.UTC)}}, list)
}

func TestCLIParseErrors(t *testing.T) {
	_, err := ParseDescribe([]byte("not json"))
	require.Error(t, err)
	list, err := ParseList([]byte("  "))
	require.NoError(t, err)
	require.Empty(t, list)
}
