package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Calendar CalendarConfig `yaml:"calendar" mapstructure:"calendar"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the primary document store backend.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	FirestoreProject string `yaml:"firestore_project" mapstructure:"firestore_project"`
	MaxConns         int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns         int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SearchConfig configures the full-text search index backend.
type SearchConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// FetchConfig configures upstream HTTP access.
type FetchConfig struct {
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RateLimit         time.Duration `yaml:"rate_limit" mapstructure:"rate_limit"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// DataConfig locates the on-disk cache.
type DataConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// CalendarConfig sets the wall clock used for legislative dates.
type CalendarConfig struct {
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// Location resolves the configured timezone, falling back to UTC.
func (c CalendarConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		zap.L().Warn("config: unknown calendar timezone, using UTC", zap.String("timezone", c.Timezone), zap.Error(err))
		return time.UTC
	}
	return loc
}

// SourcesConfig holds upstream endpoints for each source adapter.
type SourcesConfig struct {
	Votes SourceURLConfig `yaml:"votes" mapstructure:"votes"`
	Floor SourceURLConfig `yaml:"floor" mapstructure:"floor"`
	GAO   GAOConfig       `yaml:"gao" mapstructure:"gao"`
}

// SourceURLConfig is a single-endpoint source.
type SourceURLConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GAOConfig configures the GAO reports adapter.
type GAOConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Days    int    `yaml:"days" mapstructure:"days"`
}

// ReportConfig configures run report delivery.
type ReportConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// MetricsConfig configures run metrics export.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the loaded configuration for driver names and bounds.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite", "firestore", "memory":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Search.Driver {
	case "postgres", "sqlite", "memory", "none":
	default:
		return eris.Errorf("config: unknown search driver %q", c.Search.Driver)
	}
	if c.Search.BatchSize <= 0 {
		return eris.Errorf("config: search.batch_size must be positive, got %d", c.Search.BatchSize)
	}
	if c.Fetch.Timeout <= 0 {
		return eris.New("config: fetch.timeout must be positive")
	}
	if c.Store.Driver == "firestore" && c.Store.FirestoreProject == "" {
		return eris.New("config: store.firestore_project is required for the firestore driver")
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CAPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.firestore_project", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("search.driver", "postgres")
	v.SetDefault("search.database_url", "")
	v.SetDefault("search.batch_size", 100)
	v.SetDefault("fetch.user_agent", "capsync/1.0")
	v.SetDefault("fetch.timeout", "8s")
	v.SetDefault("fetch.max_attempts", 1)
	v.SetDefault("fetch.rate_limit", "0s")
	v.SetDefault("fetch.requests_per_second", 5)
	v.SetDefault("data.dir", "data")
	v.SetDefault("calendar.timezone", "America/New_York")
	v.SetDefault("sources.votes.base_url", "http://www.senate.gov")
	v.SetDefault("sources.floor.base_url", "http://www.periodicalpress.senate.gov/")
	v.SetDefault("sources.gao.base_url", "http://gao.gov")
	v.SetDefault("sources.gao.days", 7)
	v.SetDefault("report.webhook_url", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "capsync")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if cfg.Search.DatabaseURL == "" {
		cfg.Search.DatabaseURL = cfg.Store.DatabaseURL
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
