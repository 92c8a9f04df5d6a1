// Package config provides centralized configuration management for the candle scraper.
// This module handles configuration loading from multiple sources (files, .env,
// environment variables), validation, and provides typed configuration structures
// for the upstream clients, dataset storage, the collector and logging.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	// Application metadata
	AppName    string `json:"app_name" yaml:"app_name" env:"APP_NAME"`
	Version    string `json:"version" yaml:"version" env:"VERSION"`
	ConfigPath string `json:"-" yaml:"-" env:"CONFIG_PATH"`

	Exchange  ExchangeConfig  `json:"exchange" yaml:"exchange"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Collector CollectorConfig `json:"collector" yaml:"collector"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// ExchangeConfig configures the pair-discovery and OHLCV upstreams
type ExchangeConfig struct {
	PairsBaseURL     string `json:"pairs_base_url" yaml:"pairs_base_url" env:"DEXSCREENER_URL"`            // Pair discovery API root
	OHLCVBaseURL     string `json:"ohlcv_base_url" yaml:"ohlcv_base_url" env:"GECKOTERMINAL_URL"`           // Candle API root
	ChainID          string `json:"chain_id" yaml:"chain_id" env:"CHAIN_ID"`                                // Chain used to filter discovered pairs
	Network          string `json:"network" yaml:"network" env:"OHLCV_NETWORK"`                             // Network segment of the OHLCV path
	PageSize         int    `json:"page_size" yaml:"page_size" env:"PAGE_SIZE"`                             // Candles requested per page
	MaxPages         int    `json:"max_pages" yaml:"max_pages" env:"MAX_PAGES"`                             // Successful pages per window before stopping
	ThrottleInterval string `json:"throttle_interval" yaml:"throttle_interval" env:"THROTTLE_INTERVAL"`     // Fixed delay before every OHLCV request
	RateLimitPause   string `json:"rate_limit_pause" yaml:"rate_limit_pause" env:"RATE_LIMIT_PAUSE"`        // Pause after an HTTP 429
	Timeout          string `json:"timeout" yaml:"timeout" env:"HTTP_TIMEOUT"`                              // HTTP request timeout
	UserAgent        string `json:"user_agent" yaml:"user_agent" env:"USER_AGENT"`                          // User-Agent header sent upstream
}

// StorageConfig configures where datasets are written
type StorageConfig struct {
	DataDir    string `json:"data_dir" yaml:"data_dir" env:"DATA_DIR"`          // Directory holding dataset JSON files
	DuckDBPath string `json:"duckdb_path" yaml:"duckdb_path" env:"DUCKDB_PATH"` // Optional DuckDB mirror; empty disables it
}

// CollectorConfig configures a scrape run
type CollectorConfig struct {
	Timezone         string `json:"timezone" yaml:"timezone" env:"TIMEZONE"`                            // Location for readable dates; "Local" uses the host zone
	DefaultTimeframe string `json:"default_timeframe" yaml:"default_timeframe" env:"DEFAULT_TIMEFRAME"` // Timeframe offered by the interactive prompt
	MaxPairChoices   int    `json:"max_pair_choices" yaml:"max_pair_choices" env:"MAX_PAIR_CHOICES"`    // Pairs listed in the interactive prompt
	ReportGaps       bool   `json:"report_gaps" yaml:"report_gaps" env:"REPORT_GAPS"`                   // Log interior gaps after a merge
	InspectCandles   bool   `json:"inspect_candles" yaml:"inspect_candles" env:"INSPECT_CANDLES"`       // Log OHLC anomalies after a merge
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level         string            `json:"level" yaml:"level" env:"LOG_LEVEL"`                 // Log level: debug, info, warn, error
	Format        string            `json:"format" yaml:"format" env:"LOG_FORMAT"`              // Log format: json, text
	Output        string            `json:"output" yaml:"output" env:"LOG_OUTPUT"`              // Output: stdout, stderr, file
	FilePath      string            `json:"file_path" yaml:"file_path" env:"LOG_FILE_PATH"`     // Log file path
	MaxSize       int               `json:"max_size" yaml:"max_size" env:"LOG_MAX_SIZE"`        // Maximum log file size in MB
	MaxBackups    int               `json:"max_backups" yaml:"max_backups" env:"LOG_MAX_BACKUPS"` // Maximum log file backups
	MaxAge        int               `json:"max_age" yaml:"max_age" env:"LOG_MAX_AGE"`           // Maximum log file age in days
	Compress      bool              `json:"compress" yaml:"compress" env:"LOG_COMPRESS"`        // Compress old log files
	ContextFields map[string]string `json:"context_fields" yaml:"context_fields"`               // Additional context fields
}

// ConfigManager handles configuration loading and validation
type ConfigManager struct {
	config     *AppConfig
	configPath string
	envFile    string
	logger     *slog.Logger
}

// NewConfigManager creates a new configuration manager. An empty configPath
// skips the file layer.
func NewConfigManager(configPath string, logger *slog.Logger) *ConfigManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigManager{
		configPath: configPath,
		envFile:    ".env",
		logger:     logger,
	}
}

// WithEnvFile sets the dotenv file read before environment overrides are
// applied. An empty path disables dotenv loading.
func (cm *ConfigManager) WithEnvFile(path string) *ConfigManager {
	cm.envFile = path
	return cm
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Environment variables (highest priority, a .env file fills unset ones)
// 2. Configuration file (.json, .yaml or .yml)
// 3. Default values (lowest priority)
func (cm *ConfigManager) LoadConfig(ctx context.Context) (*AppConfig, error) {
	config := DefaultConfig()
	config.ConfigPath = cm.configPath

	if cm.configPath != "" {
		if err := cm.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cm.loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	if err := cm.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cm.validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.config = config
	cm.logger.Debug("configuration loaded",
		"config_path", cm.configPath,
		"data_dir", config.Storage.DataDir,
		"duckdb_mirror", config.Storage.DuckDBPath != "",
		"log_level", config.Logging.Level)

	return config, nil
}

// loadFromFile loads configuration from a JSON or YAML file
func (cm *ConfigManager) loadFromFile(config *AppConfig) error {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		cm.logger.Debug("config file does not exist, using defaults", "path", cm.configPath)
		return nil
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cm.configPath, err)
	}

	switch strings.ToLower(filepath.Ext(cm.configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cm.configPath, err)
	}

	cm.logger.Debug("loaded configuration from file", "path", cm.configPath)
	return nil
}

// loadEnvFile populates unset environment variables from the dotenv file.
func (cm *ConfigManager) loadEnvFile() error {
	if cm.envFile == "" {
		return nil
	}
	if _, err := os.Stat(cm.envFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(cm.envFile); err != nil {
		return fmt.Errorf("%s: %w", cm.envFile, err)
	}
	cm.logger.Debug("loaded env file", "path", cm.envFile)
	return nil
}

// loadFromEnv loads configuration from environment variables
func (cm *ConfigManager) loadFromEnv(config *AppConfig) error {
	if val := os.Getenv("APP_NAME"); val != "" {
		config.AppName = val
	}

	// Exchange config
	if val := os.Getenv("DEXSCREENER_URL"); val != "" {
		config.Exchange.PairsBaseURL = val
	}
	if val := os.Getenv("GECKOTERMINAL_URL"); val != "" {
		config.Exchange.OHLCVBaseURL = val
	}
	if val := os.Getenv("CHAIN_ID"); val != "" {
		config.Exchange.ChainID = val
	}
	if val := os.Getenv("OHLCV_NETWORK"); val != "" {
		config.Exchange.Network = val
	}
	if val := os.Getenv("PAGE_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Exchange.PageSize = n
		}
	}
	if val := os.Getenv("MAX_PAGES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Exchange.MaxPages = n
		}
	}
	if val := os.Getenv("THROTTLE_INTERVAL"); val != "" {
		config.Exchange.ThrottleInterval = val
	}
	if val := os.Getenv("RATE_LIMIT_PAUSE"); val != "" {
		config.Exchange.RateLimitPause = val
	}
	if val := os.Getenv("HTTP_TIMEOUT"); val != "" {
		config.Exchange.Timeout = val
	}
	if val := os.Getenv("USER_AGENT"); val != "" {
		config.Exchange.UserAgent = val
	}

	// Storage config
	if val := os.Getenv("DATA_DIR"); val != "" {
		config.Storage.DataDir = val
	}
	if val := os.Getenv("DUCKDB_PATH"); val != "" {
		config.Storage.DuckDBPath = val
	}

	// Collector config
	if val := os.Getenv("TIMEZONE"); val != "" {
		config.Collector.Timezone = val
	}
	if val := os.Getenv("DEFAULT_TIMEFRAME"); val != "" {
		config.Collector.DefaultTimeframe = val
	}
	if val := os.Getenv("MAX_PAIR_CHOICES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Collector.MaxPairChoices = n
		}
	}
	if val := os.Getenv("REPORT_GAPS"); val != "" {
		config.Collector.ReportGaps = val == "true"
	}
	if val := os.Getenv("INSPECT_CANDLES"); val != "" {
		config.Collector.InspectCandles = val == "true"
	}

	// Logging config
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("LOG_OUTPUT"); val != "" {
		config.Logging.Output = val
	}
	if val := os.Getenv("LOG_FILE_PATH"); val != "" {
		config.Logging.FilePath = val
	}

	return nil
}

// validateConfig validates the configuration for consistency and required fields
func (cm *ConfigManager) validateConfig(config *AppConfig) error {
	var errors []string

	// Exchange
	for name, raw := range map[string]string{
		"exchange.pairs_base_url": config.Exchange.PairsBaseURL,
		"exchange.ohlcv_base_url": config.Exchange.OHLCVBaseURL,
	} {
		if raw == "" {
			errors = append(errors, name+" is required")
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, name+" must be an absolute URL")
		}
	}
	if config.Exchange.ChainID == "" {
		errors = append(errors, "exchange.chain_id is required")
	}
	if config.Exchange.Network == "" {
		errors = append(errors, "exchange.network is required")
	}
	if config.Exchange.PageSize <= 0 {
		errors = append(errors, "exchange.page_size must be greater than 0")
	}
	if config.Exchange.MaxPages <= 0 {
		errors = append(errors, "exchange.max_pages must be greater than 0")
	}
	for name, raw := range map[string]string{
		"exchange.throttle_interval": config.Exchange.ThrottleInterval,
		"exchange.rate_limit_pause":  config.Exchange.RateLimitPause,
		"exchange.timeout":           config.Exchange.Timeout,
	} {
		if d, err := time.ParseDuration(raw); err != nil {
			errors = append(errors, fmt.Sprintf("%s is not a valid duration: %v", name, err))
		} else if d < 0 {
			errors = append(errors, name+" must not be negative")
		}
	}

	// Storage
	if config.Storage.DataDir == "" {
		errors = append(errors, "storage.data_dir is required")
	}

	// Collector
	if _, err := config.Collector.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("collector.timezone is not a known location: %v", err))
	}
	if config.Collector.MaxPairChoices <= 0 {
		errors = append(errors, "collector.max_pair_choices must be greater than 0")
	}
	if config.Collector.DefaultTimeframe == "" {
		errors = append(errors, "collector.default_timeframe is required")
	}

	// Logging
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.Logging.Level] {
		errors = append(errors, "logging.level must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[config.Logging.Format] {
		errors = append(errors, "logging.format must be one of: json, text")
	}

	if config.Logging.Output == "file" && config.Logging.FilePath == "" {
		errors = append(errors, "logging.file_path is required when logging.output is file")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *AppConfig {
	return cm.config
}

// SaveConfig writes the current configuration to path, as YAML when the
// extension says so and as indented JSON otherwise.
func (cm *ConfigManager) SaveConfig(ctx context.Context, path string) error {
	if path == "" {
		path = cm.configPath
	}
	if path == "" {
		return fmt.Errorf("no config path specified")
	}
	if cm.config == nil {
		cm.config = DefaultConfig()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cm.config)
	default:
		data, err = json.MarshalIndent(cm.config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cm.logger.Info("configuration saved", "path", path)
	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		AppName: "solana-candle-scraper",
		Version: "1.0.0",
		Exchange: ExchangeConfig{
			PairsBaseURL:     "https://api.dexscreener.com",
			OHLCVBaseURL:     "https://api.geckoterminal.com/api/v2",
			ChainID:          "solana",
			Network:          "solana",
			PageSize:         1000,
			MaxPages:         50,
			ThrottleInterval: "2100ms",
			RateLimitPause:   "10s",
			Timeout:          "30s",
			UserAgent:        "solana-candle-scraper/1.0",
		},
		Storage: StorageConfig{
			DataDir:    ".",
			DuckDBPath: "",
		},
		Collector: CollectorConfig{
			Timezone:         "Local",
			DefaultTimeframe: "1d",
			MaxPairChoices:   10,
			ReportGaps:       true,
			InspectCandles:   true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePath:   "",
			MaxSize:    100, // 100MB
			MaxBackups: 5,
			MaxAge:     30, // 30 days
			Compress:   true,
			ContextFields: map[string]string{
				"service": "solana-candle-scraper",
			},
		},
	}
}

// Throttle returns the fixed inter-request delay.
func (e ExchangeConfig) Throttle() time.Duration {
	return parseDuration(e.ThrottleInterval)
}

// Pause returns the delay applied after an HTTP 429.
func (e ExchangeConfig) Pause() time.Duration {
	return parseDuration(e.RateLimitPause)
}

// HTTPTimeout returns the per-request timeout.
func (e ExchangeConfig) HTTPTimeout() time.Duration {
	return parseDuration(e.Timeout)
}

// Location resolves the configured timezone. "Local" and the empty string
// map to time.Local.
func (c CollectorConfig) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	default:
		return time.LoadLocation(c.Timezone)
	}
}

// parseDuration parses a duration that validateConfig has already accepted;
// anything else yields zero.
func parseDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
