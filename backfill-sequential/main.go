package main

import (
	"os"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/logging"
	"github.com/jitsucom/backfill-runbooks/runbook/cmdbase"
	"github.com/spf13/pflag"
)

// backfill-sequential --cluster voice-prod [--customer alaska-air] [--start 2026-01-01 --end 2026-02-19]
func main() {
	flags := pflag.NewFlagSet("backfill-sequential", pflag.ExitOnError)
	cmdbase.RegisterFlags(flags, "day (YYYY-MM-DD)")
	flags.String("cluster", "", "Cluster name (e.g., voice-prod)")
	flags.String("customer", "", "Customer id. Empty backfills all customers")
	flags.String("start", "2026-01-01", "First day (inclusive)")
	flags.String("end", "2026-02-19", "Last day (exclusive)")
	flags.Bool("skip-delete", false, "Do not delete existing rows before backfill")
	flags.String("ch-host", "", "ClickHouse host. Empty runs clickhouse-client inside ClickHouse pod")

	settings := &appbase.AppSettings{
		ConfigPath: os.Getenv("BACKFILL_CONFIG_PATH"),
		Name:       "backfill-sequential",
		EnvPrefix:  "BACKFILL",
		ConfigName: "backfill",
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
