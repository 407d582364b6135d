// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"jobradar/internal/source"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	DB        DBConfig                `mapstructure:"db"`
	Redis     RedisConfig             `mapstructure:"redis"`
	PubSub    PubSubConfig            `mapstructure:"pubsub"`
	Archive   ArchiveConfig           `mapstructure:"archive"`
	Crawl     CrawlConfig             `mapstructure:"crawl"`
	Scheduler SchedulerConfig         `mapstructure:"scheduler"`
	Sources   map[string]SourceConfig `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig selects and configures the posting store backend.
type DBConfig struct {
	// Backend is "postgres" or "memory".
	Backend         string `mapstructure:"backend"`
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// RedisConfig enables the seen-URL cache in front of the store.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ArchiveConfig selects where raw page snapshots go.
type ArchiveConfig struct {
	// Backend is "none", "local" or "gcs".
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// CrawlConfig governs run-wide crawl behavior.
type CrawlConfig struct {
	UserAgent           string `mapstructure:"user_agent"`
	SourceBudgetMinutes int    `mapstructure:"source_budget_minutes"`
}

// SchedulerConfig controls the periodic crawl trigger.
type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// SourceConfig configures one job board. The key in Config.Sources is the
// source identifier used everywhere downstream.
type SourceConfig struct {
	// Adapter names the extraction strategy; "selector" is the default.
	Adapter string `mapstructure:"adapter"`
	// PageURL is a template with one %d verb for the page number.
	PageURL   string           `mapstructure:"page_url"`
	Selectors source.Selectors `mapstructure:"selectors"`
	// Render switches the fetch path to a headless browser for pages that
	// populate their listings with JavaScript.
	Render       bool   `mapstructure:"render"`
	WaitSelector string `mapstructure:"wait_selector"`

	RecencyDays        int     `mapstructure:"recency_days"`
	MaxPages           int     `mapstructure:"max_pages"`
	StaleThreshold     int     `mapstructure:"stale_threshold"`
	StaleToleranceDays int     `mapstructure:"stale_tolerance_days"`
	EstimateDaysPage   float64 `mapstructure:"estimate_days_per_page"`
	FailureLimit       int     `mapstructure:"failure_limit"`

	// RequestsPerMinute caps the politeness rate per source.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("db.backend", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("archive.backend", "none")
	v.SetDefault("crawl.user_agent", "jobradar-bot/1.0")
	v.SetDefault("crawl.source_budget_minutes", 20)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "@every 6h")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.DB.Backend {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.backend is postgres")
		}
	default:
		return fmt.Errorf("db.backend must be memory or postgres")
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis.url must be set when redis is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set when pubsub is enabled")
	}
	switch c.Archive.Backend {
	case "", "none":
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set when archive.backend is local")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.backend is gcs")
		}
	default:
		return fmt.Errorf("archive.backend must be none, local or gcs")
	}
	for id, src := range c.Sources {
		if src.PageURL == "" {
			return fmt.Errorf("sources.%s.page_url is required", id)
		}
		if !strings.Contains(src.PageURL, "%d") {
			return fmt.Errorf("sources.%s.page_url must contain a %%d page placeholder", id)
		}
		if src.RecencyDays <= 0 {
			return fmt.Errorf("sources.%s.recency_days must be > 0", id)
		}
	}
	return nil
}

// SourceBudget is the wall-clock budget each source gets within a run.
func (c Config) SourceBudget() time.Duration {
	return time.Duration(c.Crawl.SourceBudgetMinutes) * time.Minute
}

// ConnLifetime is the maximum lifetime of a pooled database connection.
func (c DBConfig) ConnLifetime() time.Duration {
	return time.Duration(c.ConnLifetimeMin) * time.Minute
}

// StaleTolerance converts the configured day count into a duration. Zero means
// the crawl default applies.
func (s SourceConfig) StaleTolerance() time.Duration {
	return time.Duration(s.StaleToleranceDays) * 24 * time.Hour
}

// RecencyCutoff derives the oldest interesting posting date from now.
func (s SourceConfig) RecencyCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -s.RecencyDays)
}
