package main

import (
	"os"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/logging"
	"github.com/spf13/pflag"
)

// backfill-all -c clusters.hjson [--dry-run] [--cluster us-east-1-prod] [--customer sunbit]
func main() {
	flags := pflag.NewFlagSet("backfill-all", pflag.ExitOnError)
	flags.StringP("config", "c", "", "Clusters config file (HJSON, JSON or YAML)")
	flags.StringP("output", "o", defaultOutput, "Output file for tracking info")
	flags.String("start-time", defaultStartTime, "Reindex start time (RFC3339)")
	flags.String("end-time", defaultEndTime, "Reindex end time (RFC3339)")
	flags.Bool("dry-run", false, "Show what would be done without creating jobs")
	flags.Bool("skip-logs", false, "Skip waiting for logs (faster, but no temporal workflow IDs)")
	flags.String("cluster", "", "Only process a specific cluster")
	flags.String("customer", "", "Only process a specific customer")
	flags.Bool("status", false, "Print summary of the output file and exit")

	settings := &appbase.AppSettings{
		ConfigPath: os.Getenv("BACKFILL_ALL_CONFIG_PATH"),
		Name:       "backfill-all",
		EnvPrefix:  "BACKFILL_ALL",
		ConfigName: "backfill-all",
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
