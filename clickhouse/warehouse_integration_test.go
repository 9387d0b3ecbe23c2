//go:build integration

package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/jitsucom/backfill-runbooks/runbook"
	"github.com/jitsucom/backfill-runbooks/testcontainers"
	"github.com/stretchr/testify/require"
)

func TestWarehouseAgainstServer(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainers.NewClickhouseContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	cfg := NewConfig(container.Host, container.Port, "default", "", false)
	querier, err := NewNativeQuerier(ctx, cfg)
	require.NoError(t, err)
	defer querier.Close()

	for _, stmt := range []string{
		"CREATE DATABASE IF NOT EXISTS hilton_chat",
		"CREATE TABLE hilton_chat.scorecard (id UInt64, scorecard_time DateTime) ENGINE = MergeTree ORDER BY id",
		"CREATE TABLE hilton_chat.score (id UInt64, scorecard_time DateTime) ENGINE = MergeTree ORDER BY id",
		"INSERT INTO hilton_chat.scorecard VALUES (1, '2026-01-05 10:00:00'), (2, '2026-01-06 10:00:00'), (3, '2026-03-01 00:00:00')",
		"INSERT INTO hilton_chat.score VALUES (1, '2026-01-05 10:00:00')",
	} {
		require.NoError(t, querier.Exec(ctx, stmt))
	}

	w := NewWarehouse(querier, "")
	w.MutationPollInterval = 200 * time.Millisecond
	w.MutationTimeout = time.Minute
	customers, err := w.DiscoverCustomers(ctx, scorecard, window)
	require.NoError(t, err)
	require.Equal(t, runbook.Counts{"scorecard": 2, "score": 1}, customers["hilton"].Counts)

	steps := &DatabaseSteps{Warehouse: w, Tables: scorecard}
	spec := runbook.UnitSpec{ID: "hilton", Databases: customers["hilton"].Databases, Window: window}
	require.NoError(t, steps.Delete(ctx, spec))
	require.NoError(t, steps.WaitConverged(ctx, spec))

	after, err := steps.Count(ctx, spec)
	require.NoError(t, err)
	require.Equal(t, runbook.Counts{"scorecard": 0, "score": 0}, after)

	outside, err := w.Count(ctx, scorecard.scope("hilton_chat", "scorecard"), runbook.Window{Start: "2026-03-01", End: "2026-03-02"})
	require.NoError(t, err)
	require.EqualValues(t, 1, outside)
}
