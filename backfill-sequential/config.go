package main

import (
	"fmt"

	"github.com/jitsucom/backfill-runbooks/clickhouse"
	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/jitsucom/backfill-runbooks/k8s"
	"github.com/jitsucom/backfill-runbooks/runbook/cmdbase"
)

const allCustomers = "all"

type Config struct {
	// # BASE CONFIG - logging, status server
	appbase.Config `mapstructure:",squash"`
	// # TRACKING CONFIG - progress store and command mode
	cmdbase.TrackingConfig `mapstructure:",squash"`
	// # CLICKHOUSE CONFIG - CH_HOST is optional, queries go through ClickHouse pod without it
	clickhouse.ConnectionConfig `mapstructure:",squash"`
	// # KUBERNETES CONFIG - label job trigger
	k8s.KubernetesConfig `mapstructure:",squash"`

	Cluster    string `mapstructure:"CLUSTER"`
	Customer   string `mapstructure:"CUSTOMER"`
	StartDate  string `mapstructure:"START" default:"2026-01-01"`
	EndDate    string `mapstructure:"END" default:"2026-02-19"`
	SkipDelete bool   `mapstructure:"SKIP_DELETE"`
	BatchSize  int    `mapstructure:"BATCH_SIZE" default:"10" validate:"gt=0"`
}

func (c *Config) PostInit(settings *appbase.AppSettings) error {
	if err := c.Config.PostInit(settings); err != nil {
		return err
	}
	if c.Cluster == "" {
		return fmt.Errorf("--cluster is required")
	}
	if _, err := utils.DayRange(c.StartDate, c.EndDate); err != nil {
		return err
	}
	return nil
}

// trackingCustomer is customer id used in tracking file name and job names
func (c *Config) trackingCustomer() string {
	return utils.NvlString(c.Customer, allCustomers)
}
