package config

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "solana-candle-scraper", config.AppName)
	assert.Equal(t, "https://api.dexscreener.com", config.Exchange.PairsBaseURL)
	assert.Equal(t, "https://api.geckoterminal.com/api/v2", config.Exchange.OHLCVBaseURL)
	assert.Equal(t, "solana", config.Exchange.ChainID)
	assert.Equal(t, 1000, config.Exchange.PageSize)
	assert.Equal(t, 50, config.Exchange.MaxPages)
	assert.Equal(t, 2100*time.Millisecond, config.Exchange.Throttle())
	assert.Equal(t, 10*time.Second, config.Exchange.Pause())
	assert.Equal(t, 30*time.Second, config.Exchange.HTTPTimeout())
	assert.Equal(t, ".", config.Storage.DataDir)
	assert.Empty(t, config.Storage.DuckDBPath)
	assert.Equal(t, "1d", config.Collector.DefaultTimeframe)
	assert.Equal(t, 10, config.Collector.MaxPairChoices)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestConfigValidation(t *testing.T) {
	cm := NewConfigManager("", testLogger())

	t.Run("valid config passes validation", func(t *testing.T) {
		assert.NoError(t, cm.validateConfig(DefaultConfig()))
	})

	tests := []struct {
		name     string
		mutate   func(*AppConfig)
		expected string
	}{
		{"missing pairs url", func(c *AppConfig) { c.Exchange.PairsBaseURL = "" }, "exchange.pairs_base_url is required"},
		{"relative ohlcv url", func(c *AppConfig) { c.Exchange.OHLCVBaseURL = "/api/v2" }, "exchange.ohlcv_base_url must be an absolute URL"},
		{"zero page size", func(c *AppConfig) { c.Exchange.PageSize = 0 }, "exchange.page_size must be greater than 0"},
		{"zero max pages", func(c *AppConfig) { c.Exchange.MaxPages = 0 }, "exchange.max_pages must be greater than 0"},
		{"bad throttle", func(c *AppConfig) { c.Exchange.ThrottleInterval = "fast" }, "exchange.throttle_interval is not a valid duration"},
		{"negative pause", func(c *AppConfig) { c.Exchange.RateLimitPause = "-1s" }, "exchange.rate_limit_pause must not be negative"},
		{"missing data dir", func(c *AppConfig) { c.Storage.DataDir = "" }, "storage.data_dir is required"},
		{"unknown timezone", func(c *AppConfig) { c.Collector.Timezone = "Mars/Olympus" }, "collector.timezone is not a known location"},
		{"zero pair choices", func(c *AppConfig) { c.Collector.MaxPairChoices = 0 }, "collector.max_pair_choices must be greater than 0"},
		{"invalid log level", func(c *AppConfig) { c.Logging.Level = "verbose" }, "logging.level must be one of"},
		{"invalid log format", func(c *AppConfig) { c.Logging.Format = "xml" }, "logging.format must be one of"},
		{"file output without path", func(c *AppConfig) { c.Logging.Output = "file" }, "logging.file_path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := cm.validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}

	t.Run("collects every error", func(t *testing.T) {
		config := DefaultConfig()
		config.Exchange.PageSize = 0
		config.Logging.Level = "loud"

		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "page_size")
		assert.Contains(t, err.Error(), "logging.level")
	})
}

func TestLoadConfig_JSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	raw := map[string]any{
		"exchange": map[string]any{"max_pages": 5, "throttle_interval": "10ms"},
		"storage":  map[string]any{"data_dir": "/tmp/candles"},
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cm := NewConfigManager(path, testLogger()).WithEnvFile("")
	config, err := cm.LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, config.Exchange.MaxPages)
	assert.Equal(t, 10*time.Millisecond, config.Exchange.Throttle())
	assert.Equal(t, "/tmp/candles", config.Storage.DataDir)
	assert.Equal(t, 1000, config.Exchange.PageSize, "unset fields keep defaults")
	assert.Same(t, config, cm.GetConfig())
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlData := `
collector:
  timezone: UTC
  max_pair_choices: 3
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0644))

	config, err := NewConfigManager(path, testLogger()).WithEnvFile("").LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, config.Collector.MaxPairChoices)
	assert.Equal(t, "debug", config.Logging.Level)
	loc, err := config.Collector.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")

	config, err := NewConfigManager(path, testLogger()).WithEnvFile("").LoadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, config.Exchange.MaxPages)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewConfigManager(path, testLogger()).WithEnvFile("").LoadConfig(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MAX_PAGES", "7")
	t.Setenv("DATA_DIR", "/var/lib/candles")
	t.Setenv("GECKOTERMINAL_URL", "http://localhost:9999/api")
	t.Setenv("REPORT_GAPS", "false")
	t.Setenv("LOG_LEVEL", "warn")

	config, err := NewConfigManager("", testLogger()).WithEnvFile("").LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, config.Exchange.MaxPages)
	assert.Equal(t, "/var/lib/candles", config.Storage.DataDir)
	assert.Equal(t, "http://localhost:9999/api", config.Exchange.OHLCVBaseURL)
	assert.False(t, config.Collector.ReportGaps)
	assert.Equal(t, "warn", config.Logging.Level)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("SCRAPER_TEST_PAGE_HINT=1\nMAX_PAIR_CHOICES=4\n"), 0644))

	// godotenv only fills unset variables. t.Setenv restores
	// MAX_PAIR_CHOICES afterwards; the other key is removed by hand.
	t.Setenv("MAX_PAIR_CHOICES", "")
	require.NoError(t, os.Unsetenv("MAX_PAIR_CHOICES"))
	t.Cleanup(func() { os.Unsetenv("SCRAPER_TEST_PAGE_HINT") })

	config, err := NewConfigManager("", testLogger()).WithEnvFile(envPath).LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, config.Collector.MaxPairChoices)
	assert.Equal(t, "1", os.Getenv("SCRAPER_TEST_PAGE_HINT"))
}

func TestSaveConfig(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManager("", testLogger()).WithEnvFile("")
	_, err := cm.LoadConfig(context.Background())
	require.NoError(t, err)

	t.Run("yaml round trip", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "out.yaml")
		require.NoError(t, cm.SaveConfig(context.Background(), path))

		loaded, err := NewConfigManager(path, testLogger()).WithEnvFile("").LoadConfig(context.Background())
		require.NoError(t, err)
		assert.Equal(t, cm.GetConfig().Exchange, loaded.Exchange)
	})

	t.Run("json output", func(t *testing.T) {
		path := filepath.Join(dir, "out.json")
		require.NoError(t, cm.SaveConfig(context.Background(), path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"ohlcv_base_url"`)
	})

	t.Run("no path", func(t *testing.T) {
		assert.Error(t, cm.SaveConfig(context.Background(), ""))
	})
}

func TestCollectorLocation(t *testing.T) {
	loc, err := CollectorConfig{Timezone: "Local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = CollectorConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = CollectorConfig{Timezone: "Nowhere/Invalid"}.Location()
	assert.Error(t, err)
}
