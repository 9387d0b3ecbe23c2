package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/jitsucom/backfill-runbooks/k8s"
	"github.com/jitsucom/backfill-runbooks/runbook"
	"github.com/jitsucom/backfill-runbooks/runbook/cmdbase"
	"github.com/jitsucom/backfill-runbooks/temporal"
)

const runbookName = "rerun-sequential"

var report = runbook.ReportOptions{
	Title:      "Sequential Backfill Progress",
	NameFormat: runbook.CompactDays,
	Failures:   true,
}

type Context struct {
	config      *Config
	store       runbook.Store
	storeCloser io.Closer
	command     *cmdbase.Command
	server      *http.Server
	engine      temporal.Engine
}

func (a *Context) InitContext(settings *appbase.AppSettings) error {
	var err error
	a.config = &Config{}
	if err = appbase.InitAppConfig(a.config, settings); err != nil {
		return err
	}
	a.store, a.storeCloser, err = cmdbase.OpenStore(context.Background(), &a.config.TrackingConfig, "sequential_"+a.config.Cluster)
	if err != nil {
		return err
	}
	a.command = cmdbase.NewCommand(runbookName, a.store, report)
	a.command.ResolveUnit = resolveDay
	if !a.config.Status && a.config.Reset == "" {
		a.server = runbook.NewStatusServer(a.store, a.config.HTTPPort, a.config.AuthToken)
	}
	return nil
}

func (a *Context) Run(ctx context.Context) error {
	return a.command.Execute(ctx, &a.config.TrackingConfig, a.run)
}

func (a *Context) run(ctx context.Context) error {
	t, err := a.command.LoadOrInit(ctx, a.header(), func(context.Context) (map[string]*runbook.UnitState, error) {
		return dayUnits(a.config)
	})
	if err != nil {
		return err
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
	trigger := k8s.NewJobTrigger(client.Clientset, k8s.CronNamespace, k8s.ReindexCronJob, k8s.SequentialJobName, k8s.ReindexEnv)
	return newDriver(a.config, a.store, trigger, a.engine, tunnel).Run(ctx, t)
}

func (a *Context) header() runbook.Tracking {
	return runbook.Tracking{
		Runbook:   runbookName,
		Cluster:   a.config.Cluster,
		Customers: utils.SplitNonEmpty(a.config.Customers),
		DateRange: [2]string{a.config.StartDate, a.config.EndDate},
	}
}

// newDriver runs one reindex job per day for all customers at once, no deletes
func newDriver(config *Config, store runbook.Store, trigger runbook.JobTrigger, engine temporal.Engine, tunnel runbook.Tunnel) *runbook.Driver {
	backfill := &runbook.WorkflowBackfill{
		Trigger:        trigger,
		Finder:         temporal.NewFinder(engine, tunnel, temporal.CustomerPrefixes(config.WorkflowCluster), temporal.DefaultRerunMaxAge),
		Waiter:         config.NewWaiter(engine, tunnel),
		DiscoveryDelay: config.DiscoveryDelay(),
	}
	var opts []runbook.DriverOption
	if tunnel != nil {
		opts = append(opts, runbook.WithTunnel(tunnel))
	}
	return runbook.NewDriver(runbookName, store, backfill,
		runbook.DriverConfig{BatchSize: config.BatchSize, SingleActiveStatus: true}, opts...)
}

// dayUnits creates day units. Days backfilled before the first run start completed.
func dayUnits(config *Config) (map[string]*runbook.UnitState, error) {
	units, err := runbook.DayUnits(config.StartDate, config.EndDate)
	if err != nil {
		return nil, err
	}
	completedAt, err := config.completedAt()
	if err != nil {
		return nil, err
	}
	for _, day := range utils.SplitNonEmpty(config.CompletedDays) {
		if u, ok := units[day]; ok {
			u.Status = runbook.StatusCompleted
			u.StartedAt = completedAt
			u.CompletedAt = completedAt
		}
	}
	return units, nil
}

// resolveDay accepts YYYY-MM-DD or 1-based day number within the date range
func resolveDay(t *runbook.Tracking, arg string) (string, error) {
	if _, ok := t.Units[arg]; ok {
		return arg, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	ids := t.SortedIDs()
	if n < 1 || n > len(ids) {
		return "", fmt.Errorf("day %d is out of range 1-%d", n, len(ids))
	}
	return ids[n-1], nil
}

func (a *Context) Cleanup() error {
	var err error
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

