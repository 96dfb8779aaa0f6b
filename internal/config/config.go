package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Elexon    ElexonConfig    `mapstructure:"elexon"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ElexonConfig holds BMRS API configuration
type ElexonConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	SettlementDate string        `mapstructure:"settlement_date"` // local calendar day, YYYY-MM-DD
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AttemptDelay   time.Duration `mapstructure:"attempt_delay"`
	RequestPause   time.Duration `mapstructure:"request_pause"` // between the two sub-requests of one attempt
}

// SchedulerConfig holds polling behavior configuration
type SchedulerConfig struct {
	UpdateInterval  time.Duration   `mapstructure:"update_interval"`
	Retry           bool            `mapstructure:"retry"`
	RetryIncrements []time.Duration `mapstructure:"retry_increments"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// StorageConfig holds snapshot/diff history persistence configuration
type StorageConfig struct {
	DBPath       string `mapstructure:"db_path"`
	MaxSnapshots int    `mapstructure:"max_snapshots"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("IMBALANCE_WATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Elexon defaults
	v.SetDefault("elexon.api_base_url", "https://data.elexon.co.uk/bmrs/api/v1")
	v.SetDefault("elexon.timeout", "30s")
	v.SetDefault("elexon.max_attempts", 5)
	v.SetDefault("elexon.attempt_delay", "2s")
	v.SetDefault("elexon.request_pause", "1s")

	// Scheduler defaults
	v.SetDefault("scheduler.update_interval", "30m")
	v.SetDefault("scheduler.retry", true)
	v.SetDefault("scheduler.retry_increments", []string{"30s", "60s", "120s"})

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/imbalance-watch.db")
	v.SetDefault("storage.max_snapshots", 100)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SettlementDay parses the configured settlement date. Call Validate first.
func (c *Config) SettlementDay() time.Time {
	day, _ := time.Parse("2006-01-02", c.Elexon.SettlementDate)
	return day
}

// Validate checks that all configuration values are valid. Any error here is
// fatal at startup; nothing else aborts the poll loop.
func (c *Config) Validate() error {
	if c.Elexon.APIBaseURL == "" {
		return fmt.Errorf("elexon.api_base_url is required")
	}
	if c.Elexon.SettlementDate == "" {
		return fmt.Errorf("elexon.settlement_date is required (YYYY-MM-DD)")
	}
	if _, err := time.Parse("2006-01-02", c.Elexon.SettlementDate); err != nil {
		return fmt.Errorf("elexon.settlement_date must be YYYY-MM-DD: %w", err)
	}
	if c.Elexon.Timeout <= 0 {
		return fmt.Errorf("elexon.timeout must be positive")
	}
	if c.Elexon.MaxAttempts < 1 {
		return fmt.Errorf("elexon.max_attempts must be >= 1")
	}
	if c.Elexon.AttemptDelay < 0 {
		return fmt.Errorf("elexon.attempt_delay must not be negative")
	}
	if c.Elexon.RequestPause < 0 {
		return fmt.Errorf("elexon.request_pause must not be negative")
	}

	if c.Scheduler.UpdateInterval < 1*time.Minute {
		return fmt.Errorf("scheduler.update_interval must be at least 1 minute")
	}
	if c.Scheduler.Retry && len(c.Scheduler.RetryIncrements) == 0 {
		return fmt.Errorf("scheduler.retry_increments must not be empty when retry is enabled")
	}
	for _, inc := range c.Scheduler.RetryIncrements {
		if inc <= 0 {
			return fmt.Errorf("scheduler.retry_increments entries must be positive, got %v", inc)
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxSnapshots < 1 {
		return fmt.Errorf("storage.max_snapshots must be at least 1")
	}

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
