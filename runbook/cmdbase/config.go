package cmdbase

import (
	"context"
	"io"
	"path/filepath"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/runbook"
	"github.com/jitsucom/backfill-runbooks/runbook/pgstore"
	"github.com/spf13/pflag"
)

const DefaultTrackingDir = "tracking"

// TrackingConfig progress store and command mode settings shared by runbooks
type TrackingConfig struct {
	// TrackingFile path of progress document. Default path depends on runbook.
	TrackingFile string `mapstructure:"TRACKING_FILE"`
	// TrackingDatabaseURL keeps progress in Postgres instead of a file
	TrackingDatabaseURL string `mapstructure:"TRACKING_DATABASE_URL"`

	// Status prints progress and exits
	Status bool `mapstructure:"STATUS"`
	// Reset force-sets unit to pending and exits
	Reset string `mapstructure:"RESET"`

	// AuthToken protects status server endpoints
	AuthToken string `mapstructure:"AUTH_TOKEN"`
}

func (c *TrackingConfig) PostInit(settings *appbase.AppSettings) error {
	return nil
}

// RegisterFlags adds flags shared by all runbooks
func RegisterFlags(flags *pflag.FlagSet, resetArg string) {
	flags.Bool("status", false, "Show progress and exit")
	flags.String("reset", "", "Reset a "+resetArg+" to pending and exit")
	flags.String("tracking-file", "", "Progress document path")
	flags.Int("http-port", 0, "Port of status server. 0 disables it")
}

// OpenStore returns Postgres store when TrackingDatabaseURL is set, otherwise file store at TrackingFile
// or tracking/<name>.json
func OpenStore(ctx context.Context, cfg *TrackingConfig, name string) (runbook.Store, io.Closer, error) {
	if cfg.TrackingDatabaseURL != "" {
		store, err := pgstore.New(ctx, cfg.TrackingDatabaseURL, name)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	path := cfg.TrackingFile
	if path == "" {
		path = filepath.Join(DefaultTrackingDir, name+".json")
	}
	return runbook.NewFileStore(path), io.NopCloser(nil), nil
}
