package cmdbase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jitsucom/backfill-runbooks/runbook"
	"github.com/stretchr/testify/require"
)

func newCommand(store runbook.Store) (*Command, *strings.Builder) {
	out := &strings.Builder{}
	cmd := NewCommand("test", store, runbook.ReportOptions{Title: "TEST"})
	cmd.Out = out
	return cmd, out
}

func TestStatusWithoutTracking(t *testing.T) {
	cmd, out := newCommand(runbook.NewMemoryStore())
	require.NoError(t, cmd.Execute(context.Background(), &TrackingConfig{Status: true}, func(context.Context) error {
		t.Fatal("run must not be called")
		return nil
	}))
	require.Contains(t, out.String(), "No tracking found at memory")
}

func TestLoadOrInitAndReset(t *testing.T) {
	store := runbook.NewMemoryStore()
	cmd, out := newCommand(store)
	discovered := 0
	discover := func(context.Context) (map[string]*runbook.UnitState, error) {
		discovered++
		return runbook.DayUnits("2026-01-01", "2026-01-04")
	}
	tr, err := cmd.LoadOrInit(context.Background(), runbook.Tracking{Cluster: "c1"}, discover)
	require.NoError(t, err)
	require.Len(t, tr.Units, 3)

	tr.Units["2026-01-02"].Status = runbook.StatusFailed
	tr.Units["2026-01-02"].Error = "boom"
	require.NoError(t, store.Save(context.Background(), tr))

	resumed, err := cmd.LoadOrInit(context.Background(), runbook.Tracking{}, discover)
	require.NoError(t, err)
	require.Equal(t, tr.RunID, resumed.RunID)
	require.Equal(t, 1, discovered)

	require.NoError(t, cmd.Execute(context.Background(), &TrackingConfig{Reset: "2026-01-02"}, nil))
	require.Equal(t, "Reset 2026-01-02: failed -> pending\n", out.String())
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, runbook.StatusPending, loaded.Units["2026-01-02"].Status)
	require.Empty(t, loaded.Units["2026-01-02"].Error)

	err = cmd.Reset(context.Background(), "2027-01-01")
	require.ErrorIs(t, err, runbook.ErrUnknownUnit)
}

func TestRunPrintsStatus(t *testing.T) {
	store := runbook.NewMemoryStore()
	cmd, out := newCommand(store)
	err := cmd.Execute(context.Background(), &TrackingConfig{}, func(ctx context.Context) error {
		_, err := runbook.Init(ctx, store, runbook.Tracking{Cluster: "c1"}, map[string]*runbook.UnitState{"a": {}})
		return err
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "TEST - c1")

	boom := errors.New("boom")
	out.Reset()
	require.ErrorIs(t, cmd.Execute(context.Background(), &TrackingConfig{}, func(context.Context) error { return boom }), boom)
	require.Empty(t, out.String())
}

func TestOpenFileStore(t *testing.T) {
	store, closer, err := OpenStore(context.Background(), &TrackingConfig{}, "cleanup_voice-prod")
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	require.Equal(t, filepath.Join("tracking", "cleanup_voice-prod.json"), store.Location())

	store, _, err = OpenStore(context.Background(), &TrackingConfig{TrackingFile: "/tmp/x.json"}, "ignored")
	require.NoError(t, err)
	require.Equal(t, "/tmp/x.json", store.Location())
}
