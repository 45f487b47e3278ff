package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Defaults   DefaultsConfig   `mapstructure:"defaults"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// MarketDataConfig holds marketplace stats API configuration
type MarketDataConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MonitorConfig holds the price monitor loop configuration
type MonitorConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	ErrorRetryInterval time.Duration `mapstructure:"error_retry_interval"`
	Enabled            bool          `mapstructure:"enabled"`
}

// TelegramConfig holds the Telegram bot configuration
type TelegramConfig struct {
	BotToken           string  `mapstructure:"bot_token"`
	WhitelistedUserIDs []int64 `mapstructure:"whitelisted_user_ids"`
}

// DefaultsConfig holds default alert multipliers applied to new watched items
type DefaultsConfig struct {
	BuyMultiplier  float64 `mapstructure:"buy_multiplier"`
	SellMultiplier float64 `mapstructure:"sell_multiplier"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	WatchFile string `mapstructure:"watch_file"`
	DedupFile string `mapstructure:"dedup_file"`
	CacheFile string `mapstructure:"cache_file"`
}

// ReportsConfig holds daily report scheduler configuration
type ReportsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DefaultTimezone string `mapstructure:"default_timezone"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("STICKERWATCH")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Market data defaults
	v.SetDefault("marketdata.api_base_url", "https://stickerscan.online/api")
	v.SetDefault("marketdata.timeout", "30s")

	// Monitor defaults: 3-minute cadence, 1-minute error retry
	v.SetDefault("monitor.poll_interval", "3m")
	v.SetDefault("monitor.error_retry_interval", "1m")
	v.SetDefault("monitor.enabled", true)

	// Default alert multipliers for new watched items
	v.SetDefault("defaults.buy_multiplier", 2.0)
	v.SetDefault("defaults.sell_multiplier", 3.0)

	// Storage defaults
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.watch_file", "user_settings.json")
	v.SetDefault("storage.dedup_file", "notification_history.db")
	v.SetDefault("storage.cache_file", "price_cache.json")

	// Reports defaults
	v.SetDefault("reports.enabled", true)
	v.SetDefault("reports.default_timezone", "UTC")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate market data config
	if c.MarketData.APIBaseURL == "" {
		return fmt.Errorf("marketdata.api_base_url is required")
	}
	if c.MarketData.Timeout <= 0 {
		return fmt.Errorf("marketdata.timeout must be positive")
	}

	// Validate monitor config
	if c.Monitor.PollInterval < 1*time.Second {
		return fmt.Errorf("monitor.poll_interval must be at least 1 second")
	}
	if c.Monitor.ErrorRetryInterval < 1*time.Second {
		return fmt.Errorf("monitor.error_retry_interval must be at least 1 second")
	}
	if c.Monitor.ErrorRetryInterval > c.Monitor.PollInterval {
		return fmt.Errorf("monitor.error_retry_interval must not exceed monitor.poll_interval")
	}

	// Validate Telegram config
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if len(c.Telegram.WhitelistedUserIDs) == 0 {
		return fmt.Errorf("telegram.whitelisted_user_ids must contain at least one user")
	}

	// Validate default multipliers
	if c.Defaults.BuyMultiplier <= 0 {
		return fmt.Errorf("defaults.buy_multiplier must be positive")
	}
	if c.Defaults.SellMultiplier <= 0 {
		return fmt.Errorf("defaults.sell_multiplier must be positive")
	}

	// Validate storage config
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Storage.WatchFile == "" {
		return fmt.Errorf("storage.watch_file is required")
	}
	if c.Storage.DedupFile == "" {
		return fmt.Errorf("storage.dedup_file is required")
	}
	if c.Storage.CacheFile == "" {
		return fmt.Errorf("storage.cache_file is required")
	}

	// Validate reports config
	if c.Reports.Enabled && c.Reports.DefaultTimezone == "" {
		return fmt.Errorf("reports.default_timezone is required when reports are enabled")
	}

	// Validate logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// IsWhitelisted reports whether the given Telegram user ID may use the bot.
func (c *Config) IsWhitelisted(userID int64) bool {
	for _, id := range c.Telegram.WhitelistedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
