package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 1200, c.Chart.Width)
	assert.Equal(t, "1h", c.Chart.DefaultTimeframe)
	assert.Equal(t, 100, c.Chart.DefaultLimit)
	assert.Equal(t, 1e-8, c.Chart.MinRangeAbs)
	assert.Equal(t, 10*time.Second, c.Cache.LockTTL)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "candles.updated", c.Kafka.Topics.CandlesUpdated)
	assert.True(t, c.Stream.Enabled)
	assert.False(t, c.Warmup.Enabled)
	assert.Equal(t, []string{"png"}, c.Warmup.Formats)
	assert.Len(t, c.Pairs, 8)
}

func TestParseKeepsExplicitFalse(t *testing.T) {
	c, err := Parse([]byte(`
environment: test
stream:
  enabled: false
metrics:
  enabled: false
chart:
  width: 800
pairs:
  - code: EURUSD
    symbol: EURUSD=X
    pip: 0.0001
`))
	require.NoError(t, err)

	assert.False(t, c.Stream.Enabled)
	assert.False(t, c.Metrics.Enabled)
	assert.Equal(t, 800, c.Chart.Width)
	assert.Equal(t, 600, c.Chart.Height)
	require.Len(t, c.Pairs, 1)
	assert.Equal(t, "EURUSD", c.Pairs[0].Code)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad environment", "environment: moon"},
		{"bad timeframe", "chart:\n  default_timeframe: 2h"},
		{"bad theme color", "chart:\n  theme:\n    marker: gold-ish"},
		{"short hex", "chart:\n  theme:\n    marker: \"#ff\""},
		{"limit above max", "chart:\n  default_limit: 10\n  max_limit: 5"},
		{"bad cache backend", "cache:\n  backend: disk"},
		{"pair without pip", "pairs:\n  - code: EURUSD\n    symbol: EURUSD=X"},
		{"kafka without brokers", "kafka:\n  enabled: true\n  brokers: []"},
		{"warmup on memory cache", "cache:\n  backend: memory\nwarmup:\n  enabled: true"},
		{"warmup bad format", "cache:\n  backend: redis\nwarmup:\n  enabled: true\n  formats: [gif]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestWarmupOnRedis(t *testing.T) {
	c, err := Parse([]byte("cache:\n  backend: layered\nwarmup:\n  enabled: true\n  formats: [png, svg]\n"))
	require.NoError(t, err)
	assert.True(t, c.UsesRedis())
	assert.Equal(t, []string{"png", "svg"}, c.Warmup.Formats)
	assert.Equal(t, 2, c.Warmup.Workers)
}

func TestThemeColorsAccepted(t *testing.T) {
	c, err := Parse([]byte("chart:\n  theme:\n    marker: \"#FFD700\"\n    grid: rgba(255,255,255,0.1)\n    support: rgb(76,175,80)\n"))
	require.NoError(t, err)
	assert.Equal(t, "#FFD700", c.Chart.Theme.Marker)
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"FINCHART_PORT":   "9090",
		"KAFKA_BROKERS":   "k1:9092, k2:9092",
		"REDIS_HOST":      "redis",
		"CLICKHOUSE_HOST": "ch",
		"ANALYSIS_URL":    "http://analysis:5000",
		"LOG_LEVEL":       "DEBUG",
		"PAIRS":           "xauusd,EURUSD,BTCUSD",
	}
	require.NoError(t, c.applyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, "redis", c.Cache.Redis.Host)
	assert.Equal(t, "ch", c.ClickHouse.Host)
	assert.Equal(t, "http://analysis:5000", c.Source.BaseURL)
	assert.Equal(t, "debug", c.Log.Level)

	require.Len(t, c.Pairs, 3)
	assert.Equal(t, "XAUUSD", c.Pairs[0].Code)
	assert.Equal(t, "GC=F", c.Pairs[0].Symbol)
	assert.Equal(t, "BTCUSD", c.Pairs[2].Symbol)
	require.NoError(t, c.Validate())
}

func TestApplyEnvBadPort(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	err = c.applyEnv(func(k string) string {
		if k == "FINCHART_PORT" {
			return "http"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\nserver:\n  port: 9000\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 9000, c.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
