package main

import (
	"errors"

	"github.com/jitsucom/backfill-runbooks/clickhouse"
	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/jitsucom/backfill-runbooks/k8s"
	"github.com/jitsucom/backfill-runbooks/runbook"
	"github.com/jitsucom/backfill-runbooks/runbook/cmdbase"
	"github.com/jitsucom/backfill-runbooks/temporal"
)

type Config struct {
	// # BASE CONFIG - logging, status server
	appbase.Config `mapstructure:",squash"`
	// # TRACKING CONFIG - progress store and command mode
	cmdbase.TrackingConfig `mapstructure:",squash"`
	// # CLICKHOUSE CONFIG
	clickhouse.ConnectionConfig `mapstructure:",squash"`
	// # KUBERNETES CONFIG - reindex job trigger
	k8s.KubernetesConfig `mapstructure:",squash"`
	// # TEMPORAL CONFIG - workflow tracking
	temporal.EngineConfig `mapstructure:",squash"`

	// Cluster name, e.g. voice-prod. Also selects <cluster>_dev kube context and workflow id prefix.
	Cluster   string `mapstructure:"CLUSTER"`
	StartDate string `mapstructure:"START_DATE" default:"2026-01-01"`
	EndDate   string `mapstructure:"END_DATE" default:"2026-02-21"`

	// SkipCustomers are marked completed at discovery
	SkipCustomers string `mapstructure:"SKIP_CUSTOMERS" default:"mutualofomaha"`
	// LargeCustomers are backfilled one day at a time
	LargeCustomers string `mapstructure:"LARGE_CUSTOMERS" default:"cvs,oportun"`
	// SplitRowThreshold also splits customers with at least that many rows. 0 disables.
	SplitRowThreshold int64 `mapstructure:"SPLIT_ROW_THRESHOLD" default:"0" validate:"gte=0"`
	BatchSize         int   `mapstructure:"BATCH_SIZE" default:"10" validate:"gt=0"`
}

func (c *Config) PostInit(settings *appbase.AppSettings) error {
	if err := c.Config.PostInit(settings); err != nil {
		return err
	}
	args := settings.PositionalArgs()
	positional := []*string{&c.Cluster, &c.CHHost, &c.CHPassword}
	for i := 0; i < len(args) && i < len(positional); i++ {
		*positional[i] = args[i]
	}
	if c.Cluster == "" {
		return errors.New("cluster is required")
	}
	if _, err := utils.DayRange(c.StartDate, c.EndDate); err != nil {
		return err
	}
	return nil
}

func (c *Config) Window() runbook.Window {
	return runbook.Window{Start: c.StartDate, End: c.EndDate}
}

func (c *Config) SplitPolicy() runbook.SplitPolicy {
	return runbook.SplitPolicy{Units: utils.SplitNonEmpty(c.LargeCustomers), RowThreshold: c.SplitRowThreshold}
}
