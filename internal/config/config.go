// Package config provides configuration management for the trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading     TradingConfig  `mapstructure:"trading"`
	Schedule    ScheduleConfig `mapstructure:"schedule"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Server      ServerConfig   `mapstructure:"server"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately
}

// TradingConfig holds order placement configuration.
type TradingConfig struct {
	DryRun          bool    `mapstructure:"dry_run"`
	Paper           bool    `mapstructure:"paper"`
	StopLossOffset  float64 `mapstructure:"stop_loss_offset"` // limit = trigger - offset on the SL leg
	DefaultExchange string  `mapstructure:"default_exchange"` // NSE, BSE
	DefaultProduct  string  `mapstructure:"default_product"`  // MIS, CNC
	InstrumentsCSV  string  `mapstructure:"instruments_csv"`
}

// ScheduleConfig holds entry window and reconciliation timing.
type ScheduleConfig struct {
	EntryTime        string `mapstructure:"entry_time"`         // "09:15:05" IST
	WindowSeconds    int    `mapstructure:"window_seconds"`     // tolerance around entry time
	FillPollSeconds  int    `mapstructure:"fill_poll_seconds"`  // broker status poll interval
	FillTimeoutSecs  int    `mapstructure:"fill_timeout_secs"`  // per-intent fill wait cap
	ReconcileSeconds int    `mapstructure:"reconcile_seconds"`  // reconciliation period
	TickSeconds      int    `mapstructure:"tick_seconds"`       // orchestration tick
}

// StorageConfig holds persistence paths.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ServerConfig holds the intake API listener configuration.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// Credentials holds broker API credentials.
type Credentials struct {
	Zerodha ZerodhaCredentials `mapstructure:"zerodha"`
	Webhook WebhookCredentials `mapstructure:"webhook"`
}

// ZerodhaCredentials holds Zerodha Kite Connect credentials. The access token
// is generated out of band and pasted in; token refresh is not handled here.
type ZerodhaCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// WebhookCredentials holds the alert webhook endpoint.
type WebhookCredentials struct {
	URL string `mapstructure:"url"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/bracket-trader"
	}
	return filepath.Join(home, ".config", "bracket-trader")
}

// Default returns a Config populated with defaults.
func Default() *Config {
	dir := DefaultConfigDir()
	return &Config{
		Trading: TradingConfig{
			DryRun:          false,
			Paper:           false,
			StopLossOffset:  0.20,
			DefaultExchange: "NSE",
			DefaultProduct:  "MIS",
			InstrumentsCSV:  filepath.Join(dir, "instruments.csv"),
		},
		Schedule: ScheduleConfig{
			EntryTime:        "09:15:05",
			WindowSeconds:    30,
			FillPollSeconds:  2,
			FillTimeoutSecs:  180,
			ReconcileSeconds: 60,
			TickSeconds:      1,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(dir, "orders.db"),
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8942",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Console:    true,
			File:       true,
			FilePath:   filepath.Join(dir, "logs", "trader.log"),
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil // Defaults apply
		}
		return err
	}
	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Zerodha.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Zerodha.AccessToken = v
	}
	if v := os.Getenv("TRADER_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if os.Getenv("TRADER_DRY_RUN") == "1" {
		cfg.Trading.DryRun = true
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if _, err := ParseTimeOfDay(c.Schedule.EntryTime); err != nil {
		return fmt.Errorf("schedule.entry_time: %w", err)
	}
	if c.Schedule.WindowSeconds <= 0 {
		return fmt.Errorf("schedule.window_seconds must be positive")
	}
	if c.Schedule.FillPollSeconds <= 0 {
		return fmt.Errorf("schedule.fill_poll_seconds must be positive")
	}
	if c.Schedule.FillTimeoutSecs <= 0 {
		return fmt.Errorf("schedule.fill_timeout_secs must be positive")
	}
	if c.Schedule.ReconcileSeconds <= 0 {
		return fmt.Errorf("schedule.reconcile_seconds must be positive")
	}
	if c.Trading.StopLossOffset <= 0 {
		return fmt.Errorf("trading.stop_loss_offset must be positive")
	}
	return nil
}

// TimeOfDay is a wall-clock time within a trading day.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses an "HH:MM:SS" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second); err != nil {
		return t, fmt.Errorf("expected HH:MM:SS, got %q", s)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return t, fmt.Errorf("out of range time %q", s)
	}
	return t, nil
}

// At returns the TimeOfDay anchored on the date of ref, in ref's location.
func (t TimeOfDay) At(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, t.Second, 0, ref.Location())
}

// EntryWindow returns the configured entry window as durations.
func (c *Config) EntryWindow() (TimeOfDay, time.Duration) {
	target, _ := ParseTimeOfDay(c.Schedule.EntryTime)
	return target, time.Duration(c.Schedule.WindowSeconds) * time.Second
}
