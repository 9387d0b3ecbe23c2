package temporal

import (
	"fmt"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/runbook"
)

const (
	EngineSDK = "sdk"
	EngineCLI = "cli"
)

// EngineConfig env/flag settings of runbooks that wait for workflows
type EngineConfig struct {
	// TemporalEngine `sdk` uses Go client, `cli` shells out to `temporal` binary
	TemporalEngine    string `mapstructure:"TEMPORAL_ENGINE" default:"sdk" validate:"oneof=sdk cli"`
	TemporalAddress   string `mapstructure:"TEMPORAL_ADDRESS" default:"localhost:7233"`
	TemporalNamespace string `mapstructure:"TEMPORAL_NAMESPACE" default:"ingestion"`
	// TemporalTunnel forwards TemporalAddress to temporal frontend in the cluster
	TemporalTunnel bool `mapstructure:"TEMPORAL_TUNNEL" default:"true"`

	WorkflowPollIntervalSec   int `mapstructure:"WORKFLOW_POLL_INTERVAL_SEC" default:"30" validate:"gt=0"`
	WorkflowTimeoutSec        int `mapstructure:"WORKFLOW_TIMEOUT_SEC" default:"3600" validate:"gt=0"`
	WorkflowDiscoveryDelaySec int `mapstructure:"WORKFLOW_DISCOVERY_DELAY_SEC" default:"15" validate:"gte=0"`
}

func (c *EngineConfig) PostInit(settings *appbase.AppSettings) error {
	return nil
}

func (c *EngineConfig) NewEngine() (Engine, error) {
	switch c.TemporalEngine {
	case EngineCLI:
		return NewCLIEngine(c.TemporalAddress, c.TemporalNamespace, nil), nil
	case EngineSDK, "":
		return NewSDKEngine(c.TemporalAddress, c.TemporalNamespace)
	}
	return nil, fmt.Errorf("unknown temporal engine: %s", c.TemporalEngine)
}

func (c *EngineConfig) DiscoveryDelay() time.Duration {
	return time.Duration(c.WorkflowDiscoveryDelaySec) * time.Second
}

func (c *EngineConfig) NewWaiter(engine Engine, tunnel runbook.Tunnel) *Waiter {
	w := NewWaiter(engine, tunnel)
	w.PollInterval = time.Duration(c.WorkflowPollIntervalSec) * time.Second
	w.Timeout = time.Duration(c.WorkflowTimeoutSec) * time.Second
	return w
}
