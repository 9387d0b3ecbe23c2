package main

import (
	"fmt"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/k8s"
)

const (
	defaultOutput    = "backfill_tracking.json"
	defaultStartTime = "2026-01-01T00:00:00Z"
	defaultEndTime   = "2026-02-01T00:00:00Z"
)

type Config struct {
	// # BASE CONFIG - logging
	appbase.Config `mapstructure:",squash"`
	// # KUBERNETES CONFIG - reindex job trigger
	k8s.KubernetesConfig `mapstructure:",squash"`

	// ConfigFile clusters and customers to process, see ClustersConfig
	ConfigFile string `mapstructure:"CONFIG"`
	Output     string `mapstructure:"OUTPUT" default:"backfill_tracking.json"`
	StartTime  string `mapstructure:"START_TIME" default:"2026-01-01T00:00:00Z"`
	EndTime    string `mapstructure:"END_TIME" default:"2026-02-01T00:00:00Z"`
	DryRun     bool   `mapstructure:"DRY_RUN"`
	SkipLogs   bool   `mapstructure:"SKIP_LOGS"`
	Cluster    string `mapstructure:"CLUSTER"`
	Customer   string `mapstructure:"CUSTOMER"`
	Status     bool   `mapstructure:"STATUS"`

	LogsMaxWaitSec      int `mapstructure:"LOGS_MAX_WAIT_SEC" default:"300" validate:"gt=0"`
	LogsPollIntervalSec int `mapstructure:"LOGS_POLL_INTERVAL_SEC" default:"10" validate:"gt=0"`
}

func (c *Config) PostInit(settings *appbase.AppSettings) error {
	if err := c.Config.PostInit(settings); err != nil {
		return err
	}
	return c.validate()
}

func (c *Config) validate() error {
	if c.Output == "" {
		return fmt.Errorf("--output is required")
	}
	if c.Status {
		return nil
	}
	if c.ConfigFile == "" {
		return fmt.Errorf("--config is required")
	}
	start, err := time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return fmt.Errorf("invalid --start-time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, c.EndTime)
	if err != nil {
		return fmt.Errorf("invalid --end-time: %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("start time %s must be before end time %s", c.StartTime, c.EndTime)
	}
	return nil
}

func (c *Config) logsMaxWait() time.Duration {
	return time.Duration(c.LogsMaxWaitSec) * time.Second
}

func (c *Config) logsPollInterval() time.Duration {
	return time.Duration(c.LogsPollIntervalSec) * time.Second
}
