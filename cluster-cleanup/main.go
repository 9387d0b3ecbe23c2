package main

import (
	"os"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/logging"
	"github.com/jitsucom/backfill-runbooks/runbook/cmdbase"
	"github.com/spf13/pflag"
)

// cluster-cleanup <cluster> [ch_host] [ch_password] [--status | --reset CUSTOMER]
func main() {
	flags := pflag.NewFlagSet("cluster-cleanup", pflag.ExitOnError)
	cmdbase.RegisterFlags(flags, "customer")
	flags.String("cluster", "", "Cluster name (e.g., voice-prod)")
	flags.String("ch-host", "", "ClickHouse host")
	flags.String("ch-password", "", "ClickHouse admin password")
	flags.Int("batch-size", 10, "Number of customers between progress summaries")

	settings := &appbase.AppSettings{
		ConfigPath: os.Getenv("CLEANUP_CONFIG_PATH"),
		Name:       "cluster-cleanup",
		EnvPrefix:  "CLEANUP",
		ConfigName: "cleanup",
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
