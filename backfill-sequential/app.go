package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"github.com/jitsucom/backfill-runbooks/clickhouse"
	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/k8s"
	"github.com/jitsucom/backfill-runbooks/runbook"
	"github.com/jitsucom/backfill-runbooks/runbook/cmdbase"
)

const runbookName = "backfill-sequential"

var report = runbook.ReportOptions{
	Title:      "Backfill Progress: conversation_with_labels",
	NameFormat: runbook.CompactDays,
	Failures:   true,
}

// labelsScope rows of conversation_with_labels. Counts go to the distributed table.
var labelsScope = clickhouse.Scope{
	Database:       "conversations",
	Table:          "conversation_with_labels",
	TimeColumn:     "conversation_end_time",
	DateTime:       true,
	CustomerColumn: "customer_id",
}

const labelsCountTable = "conversation_with_labels_d"

type Context struct {
	config      *Config
	store       runbook.Store
	storeCloser io.Closer
	command     *cmdbase.Command
	server      *http.Server
	warehouse   *clickhouse.Warehouse
}

func (a *Context) InitContext(settings *appbase.AppSettings) error {
	var err error
	a.config = &Config{}
	if err = appbase.InitAppConfig(a.config, settings); err != nil {
		return err
	}
	name := fmt.Sprintf("tracking_%s_%s", a.config.Cluster, a.config.trackingCustomer())
	a.store, a.storeCloser, err = cmdbase.OpenStore(context.Background(), &a.config.TrackingConfig, name)
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
	t, err := a.command.LoadOrInit(ctx, a.header(), func(context.Context) (map[string]*runbook.UnitState, error) {
		return runbook.DayUnits(a.config.StartDate, a.config.EndDate)
	})
	if err != nil {
		return err
	}
	_ = a.command.PrintStatus(ctx)
	client, err := a.config.NewClient(a.config.Cluster)
	if err != nil {
		return err
	}
	if !a.config.SkipDelete {
		a.warehouse, err = openWarehouse(ctx, a.config, client)
		if err != nil {
			return err
		}
	}
	trigger := k8s.NewJobTrigger(client.Clientset, k8s.CronNamespace, k8s.LabelCronJob, k8s.LabelJobName, k8s.LabelEnv)
	waiter := a.config.NewJobWaiter(client.Clientset, k8s.CronNamespace)
	return newDriver(a.config, a.store, a.warehouse, trigger, waiter).Run(ctx, t)
}

func (a *Context) header() runbook.Tracking {
	return runbook.Tracking{
		Runbook:   runbookName,
		Cluster:   a.config.Cluster,
		Host:      a.config.CHHost,
		Customers: []string{a.config.trackingCustomer()},
		DateRange: [2]string{a.config.StartDate, a.config.EndDate},
	}
}

// openWarehouse connects natively when CH_HOST is set, otherwise runs clickhouse-client inside ClickHouse pod
func openWarehouse(ctx context.Context, config *Config, client *k8s.Client) (*clickhouse.Warehouse, error) {
	if config.CHHost != "" {
		return config.NewNativeWarehouse(ctx)
	}
	pod, err := k8s.FindPod(ctx, client.Clientset, k8s.ClickHouseNamespace, k8s.ClickHousePodSelector)
	if err != nil {
		return nil, err
	}
	querier := clickhouse.NewClientQuerier(k8s.NewPodExecutor(client, k8s.ClickHouseNamespace, pod, ""))
	w := config.Configure(clickhouse.NewWarehouse(querier, config.CHCluster))
	w.Infof("Using ClickHouse pod: %s", pod)
	return w, nil
}

// newDriver processes one day at a time: delete the day, wait for mutations, run label job and wait for it
func newDriver(config *Config, store runbook.Store, warehouse *clickhouse.Warehouse, trigger runbook.JobTrigger, waiter runbook.JobWaiter) *runbook.Driver {
	var opts []runbook.DriverOption
	if warehouse != nil {
		steps := &clickhouse.TableSteps{Warehouse: warehouse, Scope: labelsScope, CountTable: labelsCountTable}
		opts = append(opts, runbook.WithDeleter(steps))
	}
	backfill := &runbook.JobBackfill{Trigger: trigger, Waiter: waiter}
	return runbook.NewDriver(runbookName, store, backfill, runbook.DriverConfig{
		BatchSize:          config.BatchSize,
		SingleActiveStatus: true,
		SkipDelete:         config.SkipDelete,
	}, opts...)
}

func (a *Context) Cleanup() error {
	var err error
	if a.warehouse != nil {
		if e := a.warehouse.Close(); e != nil {
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
