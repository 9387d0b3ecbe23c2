package appbase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Config `mapstructure:",squash"`

	Cluster        string `mapstructure:"CLUSTER" validate:"required"`
	PollInterval   int    `mapstructure:"POLL_INTERVAL" default:"30"`
	SkipDelete     bool   `mapstructure:"SKIP_DELETE" default:"false"`
	ClickHouseHost string `mapstructure:"CH_HOST"`
}

func (c *testConfig) PostInit(settings *AppSettings) error {
	return c.Config.PostInit(settings)
}

func testSettings(t *testing.T, args ...string) *AppSettings {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Bool("skip-delete", false, "")
	fs.String("cluster", "", "")
	return &AppSettings{
		Name:       "test",
		ConfigPath: t.TempDir(),
		ConfigName: "test",
		ConfigType: "env",
		EnvPrefix:  "APPBASETEST",
		Flags:      fs,
		Args:       args,
	}
}

func TestInitAppConfigPrecedence(t *testing.T) {
	t.Setenv("APPBASETEST_POLL_INTERVAL", "5")
	t.Setenv("APPBASETEST_CLUSTER", "from-env")
	settings := testSettings(t, "--skip-delete", "--cluster", "us-east-1-prod", "positional")
	require.NoError(t, os.WriteFile(filepath.Join(settings.ConfigPath, ".env"), []byte("APPBASETEST_CH_HOST=ch.local\n"), 0644))

	cfg := &testConfig{}
	require.NoError(t, InitAppConfig(cfg, settings))
	require.Equal(t, "us-east-1-prod", cfg.Cluster)
	require.Equal(t, 5, cfg.PollInterval)
	require.True(t, cfg.SkipDelete)
	require.Equal(t, "ch.local", cfg.ClickHouseHost)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, []string{"positional"}, settings.PositionalArgs())
	require.NoError(t, cfg.Close())
}

func TestInitAppConfigValidation(t *testing.T) {
	cfg := &testConfig{}
	err := InitAppConfig(cfg, testSettings(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Cluster")
}

func TestFlagKey(t *testing.T) {
	require.Equal(t, "SKIP_DELETE", FlagKey("skip-delete"))
	require.Equal(t, "STATUS", FlagKey("status"))
}
