package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "Pacific/Auckland", cfg.Market.Location)
	assert.Equal(t, 15*time.Minute, cfg.Market.TimeLag)
	assert.Equal(t, 400000.0, cfg.Market.PriceLimit)
	assert.Equal(t, 20*time.Second, cfg.FTP.Timeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention.Main.Duration())
	assert.Equal(t, 24*time.Hour, cfg.Retention.Stats.Duration())
	assert.Equal(t, 1000.0, cfg.Alerting.NodeTrigger)
	assert.Equal(t, 500.0, cfg.Alerting.IslandTrigger)
	assert.Equal(t, 160, cfg.Alerting.MaxChars)
	assert.Equal(t, SourceInterval, cfg.Alerting.Source)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "Pacific/Auckland", cfg.Location().String())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
market:
  time_lag: 10m
retention:
  main:
    days: 2
    hours: 6
alerting:
  source: trading_period
  channels: telegram
  enabled: true
  telegram:
    bot_token: abc
    chat_id: "42"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Market.TimeLag)
	assert.Equal(t, 54*time.Hour, cfg.Retention.Main.Duration())
	assert.Equal(t, []string{"telegram"}, cfg.Alerting.Channels)
	assert.Equal(t, SourceTradingPeriod, cfg.Alerting.Source)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WITSWATCH_ALERTING_NODE_TRIGGER", "2500")
	cfg, err := Load(writeConfig(t, "app:\n  name: witswatch\n"))
	require.NoError(t, err)
	assert.Equal(t, 2500.0, cfg.Alerting.NodeTrigger)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad location":    "market:\n  location: Mars/Olympus\n",
		"bad driver":      "storage:\n  driver: s3\n",
		"postgres no dsn": "storage:\n  driver: postgres\n",
		"bad source":      "alerting:\n  source: hourly\n",
		"smtp incomplete": "alerting:\n  enabled: true\n  channels: smtp\n",
		"unknown channel": "alerting:\n  enabled: true\n  channels: pager\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 10}}
	assert.Equal(t, 10, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 3, cfg.ResolveMaxPoints(3))
}
