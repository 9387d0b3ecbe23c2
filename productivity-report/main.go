package main

import (
	"os"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/logging"
	"github.com/spf13/pflag"
)

// productivity-report monthly_stats.tsv [--periods periods.hjson]
func main() {
	flags := pflag.NewFlagSet("productivity-report", pflag.ExitOnError)
	flags.String("stats", "", "Monthly stats TSV: month additions deletions total_lines merged_prs total_prs")
	flags.String("periods", "", "Periods config (HJSON). Built-in periods are used when empty")
	flags.String("exclude", "", "Comma separated months to exclude. Overrides periods config")

	settings := &appbase.AppSettings{
		ConfigPath: os.Getenv("REPORT_CONFIG_PATH"),
		Name:       "productivity-report",
		EnvPrefix:  "REPORT",
		ConfigName: "report",
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
