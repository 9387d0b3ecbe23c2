package clickhouse

import (
	"context"
	"errors"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
)

// ConnectionConfig env/flag settings of runbooks that talk to ClickHouse natively
type ConnectionConfig struct {
	CHHost     string `mapstructure:"CH_HOST"`
	CHPort     int    `mapstructure:"CH_PORT" default:"9440"`
	CHUser     string `mapstructure:"CH_USER" default:"admin"`
	CHPassword string `mapstructure:"CH_PASSWORD"`
	CHSecure   bool   `mapstructure:"CH_SECURE" default:"true"`
	// CHCluster is used in ON CLUSTER clause of deletes. Empty deletes on connected node only.
	CHCluster         string `mapstructure:"CH_CLUSTER" default:"conversations"`
	CHQueryTimeoutSec int    `mapstructure:"CH_QUERY_TIMEOUT_SEC" default:"300"`

	MutationPollIntervalSec int `mapstructure:"MUTATION_POLL_INTERVAL_SEC" default:"10" validate:"gt=0"`
	MutationTimeoutSec      int `mapstructure:"MUTATION_TIMEOUT_SEC" default:"600" validate:"gt=0"`
}

func (c *ConnectionConfig) PostInit(settings *appbase.AppSettings) error {
	return nil
}

// NativeConfig returns native connection config. Fails when host is not set.
func (c *ConnectionConfig) NativeConfig() (*Config, error) {
	if c.CHHost == "" {
		return nil, errors.New("ClickHouse host is required (--ch-host or CH_HOST)")
	}
	cfg := NewConfig(c.CHHost, c.CHPort, c.CHUser, c.CHPassword, c.CHSecure)
	cfg.QueryTimeout = time.Duration(c.CHQueryTimeoutSec) * time.Second
	return cfg, cfg.Validate()
}

// Configure applies mutation wait settings to w
func (c *ConnectionConfig) Configure(w *Warehouse) *Warehouse {
	w.MutationPollInterval = time.Duration(c.MutationPollIntervalSec) * time.Second
	w.MutationTimeout = time.Duration(c.MutationTimeoutSec) * time.Second
	return w
}

// NewNativeWarehouse connects to ClickHouse over native protocol
func (c *ConnectionConfig) NewNativeWarehouse(ctx context.Context) (*Warehouse, error) {
	cfg, err := c.NativeConfig()
	if err != nil {
		return nil, err
	}
	querier, err := NewNativeQuerier(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return c.Configure(NewWarehouse(querier, c.CHCluster)), nil
}
