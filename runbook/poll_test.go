package runbook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/stretchr/testify/require"
)

func TestPollTimeout(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), "mutations", time.Millisecond, 5*time.Millisecond, func(context.Context, time.Duration) (bool, error) {
		calls++
		return false, nil
	})
	require.Error(t, err)
	require.True(t, errorj.IsTimeout(err))
	require.Contains(t, err.Error(), "mutations did not complete within 5ms")
	require.Equal(t, 5, calls)
}

func TestPollDoneAndError(t *testing.T) {
	var seen []time.Duration
	err := Poll(context.Background(), "x", time.Millisecond, time.Second, func(_ context.Context, elapsed time.Duration) (bool, error) {
		seen = append(seen, elapsed)
		return len(seen) == 3, nil
	})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{0, time.Millisecond, 2 * time.Millisecond}, seen)

	boom := errors.New("boom")
	err = Poll(context.Background(), "x", time.Millisecond, time.Second, func(context.Context, time.Duration) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestPollCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Poll(ctx, "x", time.Hour, 10*time.Hour, func(context.Context, time.Duration) (bool, error) {
		cancel()
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errorj.IsTimeout(err))
}

type fakeFinder struct {
	ids []string
	err error
}

func (f fakeFinder) FindWorkflows(context.Context, UnitSpec) ([]string, error) { return f.ids, f.err }

type recordingWaiter struct{ called [][]string }

func (r *recordingWaiter) WaitWorkflows(_ context.Context, ids []string) error {
	r.called = append(r.called, ids)
	return nil
}

func TestWorkflowBackfillSoftTrackingFailure(t *testing.T) {
	waiter := &recordingWaiter{}
	b := &WorkflowBackfill{Finder: fakeFinder{err: errors.New("tunnel down")}, Waiter: waiter}
	ids := b.Track(context.Background(), UnitSpec{ID: "a"}, "job")
	require.Empty(t, ids)
	require.NoError(t, b.Wait(context.Background(), Job{Name: "job"}))
	require.Empty(t, waiter.called)

	b.Finder = fakeFinder{ids: []string{"wf-1"}}
	ids = b.Track(context.Background(), UnitSpec{ID: "a"}, "job")
	require.NoError(t, b.Wait(context.Background(), Job{Name: "job", WorkflowIDs: ids}))
	require.Equal(t, [][]string{{"wf-1"}}, waiter.called)
}
