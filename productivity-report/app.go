package main

import (
	"context"
	"net/http"
	"os"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
)

type Context struct {
	config *Config
}

func (a *Context) InitContext(settings *appbase.AppSettings) error {
	a.config = &Config{}
	return appbase.InitAppConfig(a.config, settings)
}

func (a *Context) Run(context.Context) error {
	periods, err := LoadPeriods(a.config.PeriodsFile)
	if err != nil {
		return err
	}
	if exclude := utils.SplitNonEmpty(a.config.Exclude); len(exclude) > 0 {
		periods.Exclude = exclude
		periods.ExcludeLabel = ""
	}
	f, err := os.Open(a.config.StatsFile)
	if err != nil {
		return err
	}
	defer f.Close()
	stats, err := ParseStats(f)
	if err != nil {
		return err
	}
	NewReport(stats, periods).Write(os.Stdout)
	return nil
}

func (a *Context) Cleanup() error {
	return a.config.Close()
}

func (a *Context) Server() *http.Server {
	return nil
}

func (a *Context) Config() *Config {
	return a.config
}
