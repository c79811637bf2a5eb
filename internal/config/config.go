package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Interval  IntervalConfig  `yaml:"interval" mapstructure:"interval"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Retention RetentionConfig `yaml:"retention" mapstructure:"retention"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Sources   string          `yaml:"sources" mapstructure:"sources"` // path to sources.yaml
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures the conditional fetcher.
type FetchConfig struct {
	Strategy    string  `yaml:"strategy" mapstructure:"strategy"` // "http" or "session"
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst   int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// IntervalConfig configures the adaptive polling policy.
type IntervalConfig struct {
	DefaultSecs       int `yaml:"default_secs" mapstructure:"default_secs"`
	MinSecs           int `yaml:"min_secs" mapstructure:"min_secs"`
	MaxSecs           int `yaml:"max_secs" mapstructure:"max_secs"`
	DecreaseStepSecs  int `yaml:"decrease_step_secs" mapstructure:"decrease_step_secs"`
	IncreaseStepSecs  int `yaml:"increase_step_secs" mapstructure:"increase_step_secs"`
	NoChangeThreshold int `yaml:"no_change_threshold" mapstructure:"no_change_threshold"`
}

// RetryConfig configures the scheduler's failed-cycle retry policy.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// NotifyConfig configures outbound notification sinks.
type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook" mapstructure:"webhook"`
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	ChatID  string `yaml:"chat_id" mapstructure:"chat_id"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// WebhookConfig holds a generic JSON webhook sink.
type WebhookConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// RetentionConfig configures the old-signal cleanup job.
type RetentionConfig struct {
	KeepDays int `yaml:"keep_days" mapstructure:"keep_days"`
}

// ServerConfig configures the trigger/status HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRADEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "tradebot.db")
	v.SetDefault("fetch.strategy", "http")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("fetch.rate_burst", 2)
	v.SetDefault("interval.default_secs", 60)
	v.SetDefault("interval.min_secs", 30)
	v.SetDefault("interval.max_secs", 300)
	v.SetDefault("interval.decrease_step_secs", 15)
	v.SetDefault("interval.increase_step_secs", 30)
	v.SetDefault("interval.no_change_threshold", 3)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 60000)
	v.SetDefault("retry.max_backoff_ms", 240000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("notify.telegram.base_url", "https://api.telegram.org")
	v.SetDefault("retention.keep_days", 7)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("sources", "sources.yaml")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
