package main

import (
	"os"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/logging"
	"github.com/jitsucom/backfill-runbooks/runbook/cmdbase"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("rerun-sequential", pflag.ExitOnError)
	cmdbase.RegisterFlags(flags, "day (number or YYYY-MM-DD)")
	flags.String("cluster", "", "Cluster name")
	flags.String("customers", "", "Comma separated customer ids")

	settings := &appbase.AppSettings{
		ConfigPath: os.Getenv("RERUN_CONFIG_PATH"),
		Name:       "rerun-sequential",
		EnvPrefix:  "RERUN",
		ConfigName: "rerun",
		ConfigType: "env",
		Flags:      flags,
		Args:       os.Args[1:],
	}
	application, err := appbase.NewApp[Config](&Context{}, settings)
	if err != nil {
		logging.Fatalf("%v", err)
	}
	os.Exit(application.Run())
}
