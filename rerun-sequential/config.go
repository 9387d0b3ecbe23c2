package main

import (
	"fmt"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/jitsucom/backfill-runbooks/k8s"
	"github.com/jitsucom/backfill-runbooks/runbook/cmdbase"
	"github.com/jitsucom/backfill-runbooks/temporal"
)

type Config struct {
	// # BASE CONFIG - logging, status server
	appbase.Config `mapstructure:",squash"`
	// # TRACKING CONFIG - progress store and command mode
	cmdbase.TrackingConfig `mapstructure:",squash"`
	// # KUBERNETES CONFIG - reindex job trigger
	k8s.KubernetesConfig `mapstructure:",squash"`
	// # TEMPORAL CONFIG - workflow tracking
	temporal.EngineConfig `mapstructure:",squash"`

	Cluster string `mapstructure:"CLUSTER" default:"us-west-2-prod"`
	// WorkflowCluster is cluster part of workflow ids: reindexconversations-<customer>-<WorkflowCluster>
	WorkflowCluster string `mapstructure:"WORKFLOW_CLUSTER" default:"us-west-2"`
	Customers       string `mapstructure:"CUSTOMERS" default:"cvs,oportun"`
	StartDate       string `mapstructure:"START_DATE" default:"2026-01-01"`
	EndDate         string `mapstructure:"END_DATE" default:"2026-02-01"`

	// CompletedDays days already backfilled before the first run
	CompletedDays string `mapstructure:"COMPLETED_DAYS" default:"2026-01-01"`
	CompletedAt   string `mapstructure:"COMPLETED_AT" default:"2026-02-09T14:00:00Z"`
	BatchSize     int    `mapstructure:"BATCH_SIZE" default:"10" validate:"gt=0"`
}

func (c *Config) PostInit(settings *appbase.AppSettings) error {
	if err := c.Config.PostInit(settings); err != nil {
		return err
	}
	if len(utils.SplitNonEmpty(c.Customers)) == 0 {
		return fmt.Errorf("customers are required")
	}
	if _, err := utils.DayRange(c.StartDate, c.EndDate); err != nil {
		return err
	}
	if _, err := c.completedAt(); err != nil {
		return err
	}
	return nil
}

func (c *Config) completedAt() (*time.Time, error) {
	if c.CompletedAt == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, c.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid COMPLETED_AT: %w", err)
	}
	return &t, nil
}
