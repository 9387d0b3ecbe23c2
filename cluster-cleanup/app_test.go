package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jitsucom/backfill-runbooks/clickhouse"
	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/runbook"
	"github.com/jitsucom/backfill-runbooks/temporal"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// scriptedQuerier answers with the first rule whose substring is found in query
type scriptedQuerier struct {
	rules [][2]string
	execs []string
}

func (q *scriptedQuerier) QueryColumn(_ context.Context, query string) ([]string, error) {
	for _, r := range q.rules {
		if strings.Contains(query, r[0]) {
			return strings.Split(r[1], "\n"), nil
		}
	}
	return nil, fmt.Errorf("unexpected query: %s", query)
}

func (q *scriptedQuerier) Exec(_ context.Context, query string) error {
	q.execs = append(q.execs, query)
	return nil
}

func (q *scriptedQuerier) Close() error { return nil }

type recordingTrigger struct{ specs []runbook.UnitSpec }

func (r *recordingTrigger) TriggerJob(_ context.Context, spec runbook.UnitSpec) (string, error) {
	r.specs = append(r.specs, spec)
	return fmt.Sprintf("job-%s-%s", spec.Customer, spec.Window.Start), nil
}

type idleEngine struct{ queries []string }

func (e *idleEngine) Describe(context.Context, string) (temporal.Status, error) {
	return temporal.StatusCompleted, nil
}

func (e *idleEngine) List(_ context.Context, query string) ([]temporal.Execution, error) {
	e.queries = append(e.queries, query)
	return nil, nil
}

func (e *idleEngine) Close() error { return nil }

func testConfig() *Config {
	return &Config{
		Cluster:        "voice-prod",
		StartDate:      "2026-01-01",
		EndDate:        "2026-01-03",
		SkipCustomers:  "mutualofomaha",
		LargeCustomers: "cvs",
		BatchSize:      10,
		EngineConfig:   temporal.EngineConfig{WorkflowPollIntervalSec: 1, WorkflowTimeoutSec: 1},
	}
}

func TestCleanupEndToEnd(t *testing.T) {
	querier := &scriptedQuerier{rules: [][2]string{
		{"system.tables", "cvs_voice\nempty_voice\nhilton_chat\nmutualofomaha_voice"},
		{"system.mutations", "0"},
		{"FROM empty_voice.", "0"},
		{"SELECT count()", "7"},
	}}
	warehouse := clickhouse.NewWarehouse(querier, clickhouse.DefaultCluster)
	config := testConfig()
	store := runbook.NewMemoryStore()
	ctx := context.Background()

	units, err := discoverUnits(ctx, warehouse, config)
	require.NoError(t, err)
	require.Len(t, units, 3)
	require.True(t, units["cvs"].Split)
	require.False(t, units["hilton"].Split)
	require.Equal(t, runbook.Counts{"scorecard": 7, "score": 7}, units["hilton"].BeforeCounts)
	require.Equal(t, runbook.StatusCompleted, units["mutualofomaha"].Status)
	require.Equal(t, "previously completed", units["mutualofomaha"].Note)

	tr, err := runbook.Init(ctx, store, runbook.Tracking{Runbook: runbookName, Cluster: config.Cluster,
		DateRange: [2]string{config.StartDate, config.EndDate}}, units)
	require.NoError(t, err)

	trigger := &recordingTrigger{}
	engine := &idleEngine{}
	require.NoError(t, newDriver(config, store, warehouse, trigger, engine, nil).Run(ctx, tr))

	require.Equal(t, []runbook.UnitSpec{
		{ID: "cvs", Customer: "cvs", Databases: []string{"cvs_voice"}, Window: runbook.Window{Start: "2026-01-01", End: "2026-01-02"}},
		{ID: "cvs", Customer: "cvs", Databases: []string{"cvs_voice"}, Window: runbook.Window{Start: "2026-01-02", End: "2026-01-03"}},
		{ID: "hilton", Customer: "hilton", Databases: []string{"hilton_chat"}, Window: runbook.Window{Start: "2026-01-01", End: "2026-01-03"}},
	}, trigger.specs)
	require.Len(t, querier.execs, 4)
	require.Equal(t, "ALTER TABLE cvs_voice.scorecard ON CLUSTER 'conversations' DELETE WHERE scorecard_time >= '2026-01-01' AND scorecard_time < '2026-01-03' SETTINGS replication_wait_for_inactive_replica_timeout = 0",
		querier.execs[0])
	require.Contains(t, engine.queries, `ExecutionStatus = "Running" AND WorkflowId STARTS_WITH "reindexconversations-hilton-voice-prod"`)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	for _, id := range []string{"cvs", "hilton", "mutualofomaha"} {
		require.Equal(t, runbook.StatusCompleted, loaded.Units[id].Status, id)
	}
	require.Equal(t, []string{"2026-01-01", "2026-01-02"}, loaded.Units["cvs"].CompletedDays)
	require.Equal(t, runbook.Counts{"scorecard": 7, "score": 7}, loaded.Units["hilton"].AfterCounts)
}

func TestConfigPositionalArgs(t *testing.T) {
	flags := pflag.NewFlagSet("cluster-cleanup", pflag.ContinueOnError)
	flags.Bool("status", false, "")
	require.NoError(t, flags.Parse([]string{"chat-prod", "ch.example", "secret", "--status"}))
	config := &Config{StartDate: "2026-01-01", EndDate: "2026-02-21"}
	require.NoError(t, config.PostInit(&appbase.AppSettings{Flags: flags}))
	require.Equal(t, "chat-prod", config.Cluster)
	require.Equal(t, "ch.example", config.CHHost)
	require.Equal(t, "secret", config.CHPassword)

	require.Error(t, (&Config{StartDate: "2026-01-01", EndDate: "2026-02-21"}).PostInit(&appbase.AppSettings{}))
}
