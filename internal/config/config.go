package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Kite      KiteConfig      `mapstructure:"kite"`
	Sensibull SensibullConfig `mapstructure:"sensibull"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Positions PositionsConfig `mapstructure:"positions"`
	Watchlist WatchlistConfig `mapstructure:"watchlist"`
	Run       RunConfig       `mapstructure:"run"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// KiteConfig holds broker API configuration
type KiteConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	AuthToken    string        `mapstructure:"auth_token"` // enctoken from a logged-in session
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	OrderTag     string        `mapstructure:"order_tag"` // empty = generated per run
}

// SensibullConfig holds option chain API configuration
type SensibullConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ScannerConfig holds candidate selection thresholds
type ScannerConfig struct {
	MaxTimeToExpiryDays     int     `mapstructure:"max_time_to_expiry_days"`
	MinDip                  float64 `mapstructure:"min_dip"`
	MaxDip                  float64 `mapstructure:"max_dip"`
	MinimumProfitPercentage float64 `mapstructure:"minimum_profit_percentage"`
}

// PositionsConfig holds book maintenance configuration
type PositionsConfig struct {
	ExitProfitPercentage float64 `mapstructure:"exit_profit_percentage"`
	GTTTriggerOffset     float64 `mapstructure:"gtt_trigger_offset"`
}

// WatchlistConfig points at the stocks of interest
type WatchlistConfig struct {
	Path string `mapstructure:"path"`
}

// RunConfig holds per-invocation switches, usually set from flags
type RunConfig struct {
	OrderEnabled   bool   `mapstructure:"order_enabled"`
	ExitEnabled    bool   `mapstructure:"exit_enabled"`
	CustomFiltered bool   `mapstructure:"custom_filtered"`
	Stocks         string `mapstructure:"stocks"` // comma separated; overrides the watchlist
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	TopN           int           `mapstructure:"top_n"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds run journal configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// MetricsConfig holds Prometheus textfile configuration
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"` // empty = disabled
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Flags returns the command line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("putscout", pflag.ContinueOnError)
	fs.String("config", "", "path to the config file")
	fs.Bool("custom-filtered", false, "only scan stocks with custom filters")
	fs.Bool("no-order", false, "do not place or exit any order")
	fs.String("stocks", "", "comma separated stocks to scan, each with a minimum dip of 3")
	fs.Bool("exit-option-profit-positions", false, "exit option positions past the profit target")
	return fs
}

// Load reads configuration from a .env file, the config file, environment
// variables and flags, in increasing order of precedence. An empty path
// skips the config file. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load() // best-effort

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. PUTSCOUT_KITE_AUTH_TOKEN
	v.SetEnvPrefix("PUTSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindings := map[string]string{
			"run.custom_filtered": "custom-filtered",
			"run.stocks":          "stocks",
			"run.exit_enabled":    "exit-option-profit-positions",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// --no-order inverts run.order_enabled, so it cannot be bound directly
	if flags != nil {
		if noOrder, err := flags.GetBool("no-order"); err == nil && noOrder {
			cfg.Run.OrderEnabled = false
		}
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Kite defaults
	v.SetDefault("kite.base_url", "https://kite.zerodha.com")
	v.SetDefault("kite.auth_token", "")
	v.SetDefault("kite.timeout", "30s")
	v.SetDefault("kite.max_retries", 3)
	v.SetDefault("kite.retry_backoff", "1s")
	v.SetDefault("kite.order_tag", "")

	// Sensibull defaults
	v.SetDefault("sensibull.base_url", "https://api.sensibull.com")
	v.SetDefault("sensibull.timeout", "30s")

	// Scanner defaults
	v.SetDefault("scanner.max_time_to_expiry_days", 45)
	v.SetDefault("scanner.min_dip", 3.0)
	v.SetDefault("scanner.max_dip", 15.0)
	v.SetDefault("scanner.minimum_profit_percentage", 2.0)

	// Positions defaults
	v.SetDefault("positions.exit_profit_percentage", 90.0)
	v.SetDefault("positions.gtt_trigger_offset", 100.0)

	v.SetDefault("watchlist.path", "./watchlist.yaml")

	// Run defaults
	v.SetDefault("run.order_enabled", true)
	v.SetDefault("run.exit_enabled", false)
	v.SetDefault("run.custom_filtered", false)
	v.SetDefault("run.stocks", "")

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.top_n", 10)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/putscout.db")
	v.SetDefault("storage.max_runs", 500)

	v.SetDefault("metrics.textfile_path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Kite config
	if c.Kite.BaseURL == "" {
		return fmt.Errorf("kite.base_url is required")
	}
	if c.Kite.AuthToken == "" {
		return fmt.Errorf("kite.auth_token is required")
	}
	if c.Kite.Timeout <= 0 {
		return fmt.Errorf("kite.timeout must be positive")
	}
	if c.Kite.MaxRetries < 0 {
		return fmt.Errorf("kite.max_retries must not be negative")
	}
	if c.Kite.RetryBackoff < 0 {
		return fmt.Errorf("kite.retry_backoff must not be negative")
	}
	if len(c.Kite.OrderTag) > 20 {
		return fmt.Errorf("kite.order_tag must be at most 20 characters")
	}

	// Validate Sensibull config
	if c.Sensibull.BaseURL == "" {
		return fmt.Errorf("sensibull.base_url is required")
	}
	if c.Sensibull.Timeout <= 0 {
		return fmt.Errorf("sensibull.timeout must be positive")
	}

	// Validate Scanner config
	if c.Scanner.MaxTimeToExpiryDays < 0 {
		return fmt.Errorf("scanner.max_time_to_expiry_days must not be negative")
	}
	if c.Scanner.MinDip < 0 {
		return fmt.Errorf("scanner.min_dip must not be negative")
	}
	if c.Scanner.MaxDip <= c.Scanner.MinDip || c.Scanner.MaxDip > 100 {
		return fmt.Errorf("scanner.max_dip must be above scanner.min_dip and at most 100")
	}
	if c.Scanner.MinimumProfitPercentage < 0 {
		return fmt.Errorf("scanner.minimum_profit_percentage must not be negative")
	}

	// Validate Positions config
	if c.Positions.ExitProfitPercentage <= 0 || c.Positions.ExitProfitPercentage > 100 {
		return fmt.Errorf("positions.exit_profit_percentage must be between 0 and 100")
	}
	if c.Positions.GTTTriggerOffset <= 0 {
		return fmt.Errorf("positions.gtt_trigger_offset must be positive")
	}

	if c.Run.Stocks == "" && c.Watchlist.Path == "" {
		return fmt.Errorf("watchlist.path is required when run.stocks is empty")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.TopN < 1 {
			return fmt.Errorf("telegram.top_n must be at least 1")
		}
	}

	// Validate Storage config
	if c.Storage.MaxRuns < 1 {
		return fmt.Errorf("storage.max_runs must be at least 1")
	}

	// Validate Logging config
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
