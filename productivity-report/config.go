package main

import (
	"errors"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
)

type Config struct {
	// # BASE CONFIG - logging
	appbase.Config `mapstructure:",squash"`

	StatsFile   string `mapstructure:"STATS"`
	PeriodsFile string `mapstructure:"PERIODS"`
	Exclude     string `mapstructure:"EXCLUDE"`
}

func (c *Config) PostInit(settings *appbase.AppSettings) error {
	if err := c.Config.PostInit(settings); err != nil {
		return err
	}
	if args := settings.PositionalArgs(); len(args) > 0 && c.StatsFile == "" {
		c.StatsFile = args[0]
	}
	if c.StatsFile == "" {
		return errors.New("stats file is required")
	}
	return nil
}
