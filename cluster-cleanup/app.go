package main

import (
	"context"
	"io"
	"net/http"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/jitsucom/backfill-runbooks/clickhouse"
	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/jitsucom/backfill-runbooks/k8s"
	"github.com/jitsucom/backfill-runbooks/runbook"
	"github.com/jitsucom/backfill-runbooks/runbook/cmdbase"
	"github.com/jitsucom/backfill-runbooks/temporal"
)

const runbookName = "cluster-cleanup"

var scorecardTables = clickhouse.TrackedTables{
	Primary:    "scorecard",
	Tables:     []string{"scorecard", "score"},
	TimeColumn: "scorecard_time",
}

var report = runbook.ReportOptions{
	Title:    "Appeal Scorecard Cleanup",
	Totals:   true,
	Failures: true,
}

type Context struct {
	config      *Config
	store       runbook.Store
	storeCloser io.Closer
	command     *cmdbase.Command
	server      *http.Server
	warehouse   *clickhouse.Warehouse
	engine      temporal.Engine
}

func (a *Context) InitContext(settings *appbase.AppSettings) error {
	var err error
	a.config = &Config{}
	if err = appbase.InitAppConfig(a.config, settings); err != nil {
		return err
	}
	a.store, a.storeCloser, err = cmdbase.OpenStore(context.Background(), &a.config.TrackingConfig, "cleanup_"+a.config.Cluster)
	if err != nil {
		return err
	}
	a.command = cmdbase.NewCommand(runbookName, a.store, report)
	if !a.config.Status && a.config.Reset == "" {
		a.server = runbook.NewStatusServer(a.store, a.config.HTTPPort, a.config.AuthToken)
	}
	return nil
}

func (a *Context) Run(ctx context.Context) error {
	return a.command.Execute(ctx, &a.config.TrackingConfig, a.run)
}

func (a *Context) run(ctx context.Context) error {
	var err error
	a.warehouse, err = a.config.NewNativeWarehouse(ctx)
	if err != nil {
		return err
	}
	t, err := a.command.LoadOrInit(ctx, a.header(), func(ctx context.Context) (map[string]*runbook.UnitState, error) {
		return discoverUnits(ctx, a.warehouse, a.config)
	})
	if err != nil {
		return err
	}
	if len(t.Units) == 0 {
		a.command.Infof("No customers with scorecard data found.")
		return nil
	}
	_ = a.command.PrintStatus(ctx)

	client, err := a.config.NewClient(a.config.Cluster)
	if err != nil {
		return err
	}
	a.engine, err = a.config.NewEngine()
	if err != nil {
		return err
	}
	var tunnel runbook.Tunnel
	if a.config.TemporalTunnel {
		tunnel = k8s.NewTemporalTunnel(client)
	}
	driver := newDriver(a.config, a.store, a.warehouse,
		k8s.NewJobTrigger(client.Clientset, k8s.CronNamespace, k8s.ReindexCronJob, k8s.ReindexJobName, k8s.ReindexEnv),
		a.engine, tunnel)
	return driver.Run(ctx, t)
}

func (a *Context) header() runbook.Tracking {
	return runbook.Tracking{
		Runbook:   runbookName,
		Cluster:   a.config.Cluster,
		Host:      a.config.CHHost,
		DateRange: [2]string{a.config.StartDate, a.config.EndDate},
	}
}

// newDriver wires delete, mutations wait, reindex job and workflow tracking of a customer unit
func newDriver(config *Config, store runbook.Store, warehouse *clickhouse.Warehouse, trigger runbook.JobTrigger,
	engine temporal.Engine, tunnel runbook.Tunnel) *runbook.Driver {
	steps := &clickhouse.DatabaseSteps{Warehouse: warehouse, Tables: scorecardTables}
	backfill := &runbook.WorkflowBackfill{
		Trigger:        trigger,
		Finder:         temporal.NewFinder(engine, tunnel, temporal.CustomerPrefixes(config.Cluster), temporal.DefaultCleanupMaxAge),
		Waiter:         config.NewWaiter(engine, tunnel),
		DiscoveryDelay: config.DiscoveryDelay(),
	}
	opts := []runbook.DriverOption{runbook.WithDeleter(steps), runbook.WithCounter(steps)}
	if tunnel != nil {
		opts = append(opts, runbook.WithTunnel(tunnel))
	}
	return runbook.NewDriver(runbookName, store, backfill, runbook.DriverConfig{BatchSize: config.BatchSize}, opts...)
}

// discoverUnits finds customers with scorecards in the window. Skipped customers start completed.
func discoverUnits(ctx context.Context, warehouse *clickhouse.Warehouse, config *Config) (map[string]*runbook.UnitState, error) {
	customers, err := warehouse.DiscoverCustomers(ctx, scorecardTables, config.Window())
	if err != nil {
		return nil, errorj.Decorate(err, "failed to discover customers")
	}
	skip := utils.SplitNonEmpty(config.SkipCustomers)
	policy := config.SplitPolicy()
	units := make(map[string]*runbook.UnitState, len(customers))
	for id, c := range customers {
		u := &runbook.UnitState{
			Status:       runbook.StatusPending,
			Customer:     id,
			Databases:    c.Databases,
			BeforeCounts: c.Counts,
			Split:        policy.Split(id, c.Counts),
		}
		if slices.Contains(skip, id) {
			warehouse.Infof("Marking %s as completed (already done)", id)
			u.Status = runbook.StatusCompleted
			u.Note = "previously completed"
		}
		units[id] = u
	}
	return units, nil
}

func (a *Context) Cleanup() error {
	var err error
	if a.warehouse != nil {
		if e := a.warehouse.Close(); e != nil {
			err = multierror.Append(err, e)
		}
	}
	if a.engine != nil {
		if e := a.engine.Close(); e != nil {
			err = multierror.Append(err, e)
		}
	}
	if a.storeCloser != nil {
		if e := a.storeCloser.Close(); e != nil {
			err = multierror.Append(err, e)
		}
	}
	if e := a.config.Close(); e != nil {
		err = multierror.Append(err, e)
	}
	return err
}

func (a *Context) Server() *http.Server {
	return a.server
}

func (a *Context) Config() *Config {
	return a.config
}
