package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// DefaultBaseURL is the upstream catalog API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// Config holds the configuration for catalogsync and its dependencies.
type Config struct {
	// Listen is the address the operational HTTP surface listens on.
	Listen string `yaml:"listen" mapstructure:"listen" validate:"required"`
	// TMDb holds the upstream catalog credentials.
	TMDb *TMDbConfig `yaml:"tmdb" mapstructure:"tmdb" validate:"required"`
	// API holds the HTTP client behaviour for upstream calls.
	API *APIConfig `yaml:"api" mapstructure:"api" validate:"required"`
	// DataLimits caps how much is pulled per run.
	DataLimits *DataLimitsConfig `yaml:"data_limits" mapstructure:"data_limits" validate:"required"`
	// DataQuality holds the quality gate thresholds.
	DataQuality *DataQualityConfig `yaml:"data_quality" mapstructure:"data_quality" validate:"required"`
	// Schedule holds the trigger configuration.
	Schedule *ScheduleConfig `yaml:"schedule" mapstructure:"schedule" validate:"required"`
	// Monitoring holds the run monitor and alerting configuration.
	Monitoring *MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring" validate:"required"`
	// KPI holds the KPI aggregator configuration.
	KPI *KPIConfig `yaml:"kpi" mapstructure:"kpi" validate:"required"`
	// Database holds the catalog store configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database" validate:"required"`
	// Cache holds the person cache engine configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache" validate:"required"`
}

// TMDbConfig holds the configuration for the upstream catalog API.
type TMDbConfig struct {
	// APIKey is sent as the api_key query parameter on every call.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// BaseURL is the API root, without trailing slash.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	// Language is passed as the language parameter when set (e.g. "en-US").
	Language string `yaml:"language" mapstructure:"language"`
}

// APIConfig holds the upstream HTTP client settings.
type APIConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	// MaxRetries is the total number of attempts per call.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=1"`
	// RequestDelay is the minimum delay between two upstream requests.
	RequestDelay time.Duration `yaml:"request_delay" mapstructure:"request_delay" validate:"gte=0"`
	// BackoffBase is the first retry delay; it doubles on every attempt.
	BackoffBase time.Duration `yaml:"backoff_base" mapstructure:"backoff_base" validate:"gte=0"`
	// BreakerFailures is the number of consecutive failures that opens the circuit.
	BreakerFailures uint32 `yaml:"breaker_failures" mapstructure:"breaker_failures" validate:"gte=1"`
	// BreakerTimeout is how long the circuit stays open before probing again.
	BreakerTimeout time.Duration `yaml:"breaker_timeout" mapstructure:"breaker_timeout" validate:"gt=0"`
}

// DataLimitsConfig holds the per-run volume limits.
type DataLimitsConfig struct {
	Movies            int `yaml:"movies" mapstructure:"movies" validate:"gte=0"`
	Shows             int `yaml:"shows" mapstructure:"shows" validate:"gte=0"`
	MaxCast           int `yaml:"max_cast" mapstructure:"max_cast" validate:"gte=0"`
	EpisodesPerSeason int `yaml:"episodes_per_season" mapstructure:"episodes_per_season" validate:"gte=0"`
	// PersonCacheSize bounds the run-scoped person detail cache.
	PersonCacheSize int `yaml:"person_cache_size" mapstructure:"person_cache_size" validate:"gte=1"`
}

// DataQualityConfig holds the quality gate thresholds.
type DataQualityConfig struct {
	MinVoteCount    int     `yaml:"min_vote_count" mapstructure:"min_vote_count" validate:"gte=0"`
	MinPopularity   float64 `yaml:"min_popularity" mapstructure:"min_popularity" validate:"gte=0"`
	RequirePoster   bool    `yaml:"require_poster" mapstructure:"require_poster"`
	RequireOverview bool    `yaml:"require_overview" mapstructure:"require_overview"`
	// CleanupStaleDays purges items not refreshed within this many days. 0 disables cleanup.
	CleanupStaleDays int `yaml:"cleanup_stale_days" mapstructure:"cleanup_stale_days" validate:"gte=0"`
}

// ScheduleConfig holds the sync trigger configuration.
// Cron takes precedence over IntervalHours when set.
type ScheduleConfig struct {
	IntervalHours int         `yaml:"interval_hours" mapstructure:"interval_hours" validate:"gte=0"`
	Cron          *CronConfig `yaml:"cron" mapstructure:"cron"`
	Timezone      string      `yaml:"timezone" mapstructure:"timezone" validate:"required"`
	RunOnStartup  bool        `yaml:"run_on_startup" mapstructure:"run_on_startup"`
}

// CronConfig holds the cron fields of the trigger.
type CronConfig struct {
	Minute    string `yaml:"minute" mapstructure:"minute"`
	Hour      string `yaml:"hour" mapstructure:"hour"`
	DayOfWeek string `yaml:"day_of_week" mapstructure:"day_of_week"`
}

// Expression returns the five-field crontab expression.
func (c *CronConfig) Expression() string {
	return fmt.Sprintf("%s %s * * %s", c.Minute, c.Hour, c.DayOfWeek)
}

// MonitoringConfig holds the run monitor and alerting configuration.
type MonitoringConfig struct {
	// EnableMetrics exposes Prometheus collectors on /metrics.
	EnableMetrics bool `yaml:"enable_metrics" mapstructure:"enable_metrics"`
	// MetricsDBPath is the path of the separate run metrics store.
	MetricsDBPath string `yaml:"metrics_db_path" mapstructure:"metrics_db_path" validate:"required"`
	// EmailAlerts sends an email when a run fails.
	EmailAlerts bool `yaml:"email_alerts" mapstructure:"email_alerts"`
	// Email holds the SMTP settings used for alerts.
	Email *EmailConfig `yaml:"email" mapstructure:"email"`
}

// EmailConfig holds the SMTP configuration for alert emails.
type EmailConfig struct {
	// Enabled mirrors monitoring.email_alerts after sanitizing.
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	SMTPHost           string `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort           int    `yaml:"smtp_port" mapstructure:"smtp_port"`
	Username           string `yaml:"username" mapstructure:"username"`
	Password           string `yaml:"password" mapstructure:"password"`
	FromEmail          string `yaml:"from_email" mapstructure:"from_email"`
	FromName           string `yaml:"from_name" mapstructure:"from_name"`
	AlertEmail         string `yaml:"alert_email" mapstructure:"alert_email"`
	UseTLS             bool   `yaml:"use_tls" mapstructure:"use_tls"`
	UseSSL             bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// KPIConfig holds the KPI aggregator configuration.
type KPIConfig struct {
	// Enabled recomputes KPIs after every successful run.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// DatabaseConfig holds the catalog store configuration.
type DatabaseConfig struct {
	// Path is the path to the SQLite database file.
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool `yaml:"enable_wal" mapstructure:"enable_wal"`
	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout" mapstructure:"busy_timeout" validate:"gte=0"`
	// VacuumOnCompletion runs VACUUM after every successful run.
	VacuumOnCompletion bool `yaml:"vacuum_on_completion" mapstructure:"vacuum_on_completion"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the URL for the Redis cache if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	bindNestedEnv(v)
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("CATALOGSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.catalogsync")
		v.AddConfigPath("/etc/catalogsync")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with the CATALOGSYNC_ prefix override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:3003")

	v.SetDefault("tmdb.base_url", DefaultBaseURL)
	v.SetDefault("tmdb.language", "")

	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.request_delay", 250*time.Millisecond)
	v.SetDefault("api.backoff_base", time.Second)
	v.SetDefault("api.breaker_failures", 10)
	v.SetDefault("api.breaker_timeout", time.Minute)

	v.SetDefault("data_limits.movies", 100)
	v.SetDefault("data_limits.shows", 50)
	v.SetDefault("data_limits.max_cast", 25)
	v.SetDefault("data_limits.episodes_per_season", 10)
	v.SetDefault("data_limits.person_cache_size", 5000)

	v.SetDefault("data_quality.min_vote_count", 0)
	v.SetDefault("data_quality.min_popularity", 0.0)
	v.SetDefault("data_quality.require_poster", false)
	v.SetDefault("data_quality.require_overview", false)
	v.SetDefault("data_quality.cleanup_stale_days", 0)

	v.SetDefault("schedule.interval_hours", 24)
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.run_on_startup", false)

	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_db_path", "./data/catalogsync_metrics.db")
	v.SetDefault("monitoring.email_alerts", false)
	v.SetDefault("monitoring.email.smtp_host", "")
	v.SetDefault("monitoring.email.smtp_port", 587)
	v.SetDefault("monitoring.email.username", "")
	v.SetDefault("monitoring.email.from_email", "")
	v.SetDefault("monitoring.email.from_name", "catalogsync")
	v.SetDefault("monitoring.email.alert_email", "")
	v.SetDefault("monitoring.email.use_tls", true)
	v.SetDefault("monitoring.email.use_ssl", false)
	v.SetDefault("monitoring.email.insecure_skip_verify", false)

	v.SetDefault("kpi.enabled", true)

	v.SetDefault("database.path", "./data/catalogsync.db")
	v.SetDefault("database.enable_wal", true)
	v.SetDefault("database.busy_timeout", 30*time.Second)
	v.SetDefault("database.vacuum_on_completion", false)

	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
}

// the auto env function from viper only works for keys that have a default or appear in the file.
// Secrets and the optional cron block are bound explicitly.
func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("tmdb.api_key", "CATALOGSYNC_TMDB_API_KEY", "TMDB_API_KEY")
	v.MustBindEnv("monitoring.email.password", "CATALOGSYNC_MONITORING_EMAIL_PASSWORD")

	v.MustBindEnv("schedule.cron.minute", "CATALOGSYNC_SCHEDULE_CRON_MINUTE")
	v.MustBindEnv("schedule.cron.hour", "CATALOGSYNC_SCHEDULE_CRON_HOUR")
	v.MustBindEnv("schedule.cron.day_of_week", "CATALOGSYNC_SCHEDULE_CRON_DAY_OF_WEEK")
}

var validate = validator.New()

// Validate checks a configuration that was built without Load.
func Validate(c *Config) error {
	return validateConfig(c)
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing catalogsync config")
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.TMDb.APIKey == "" {
		return fmt.Errorf("tmdb api key is required (set tmdb.api_key or TMDB_API_KEY)")
	}

	if c.Schedule.Cron == nil && c.Schedule.IntervalHours <= 0 {
		return fmt.Errorf("schedule needs either interval_hours > 0 or a cron block")
	}
	if c.Schedule.Cron != nil {
		if fields := strings.Fields(c.Schedule.Cron.Expression()); len(fields) != 5 {
			return fmt.Errorf("schedule cron fields must not contain spaces")
		}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
	}

	if c.Monitoring.EmailAlerts {
		e := c.Monitoring.Email
		if e == nil {
			return fmt.Errorf("email settings are required when email alerts are enabled")
		}
		if e.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required when email alerts are enabled")
		}
		if e.SMTPPort <= 0 || e.SMTPPort > 65535 {
			return fmt.Errorf("SMTP port must be between 1 and 65535")
		}
		if e.FromEmail == "" {
			return fmt.Errorf("from email is required when email alerts are enabled")
		}
		if e.AlertEmail == "" {
			return fmt.Errorf("alert email is required when email alerts are enabled")
		}
		if e.UseSSL && e.UseTLS {
			return fmt.Errorf("cannot use both SSL and TLS at the same time")
		}
	}

	switch c.Cache.Type {
	case CacheTypeMemory:
	case CacheTypeRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required when using redis cache")
		}
	default:
		return fmt.Errorf("unsupported cache type %q", c.Cache.Type)
	}

	return nil
}

func sanitizeConfig(c *Config) {
	if c.TMDb != nil {
		c.TMDb.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.TMDb.BaseURL), "/")
		c.TMDb.APIKey = strings.TrimSpace(c.TMDb.APIKey)
	}
	if c.Schedule != nil && c.Schedule.Cron != nil {
		cron := c.Schedule.Cron
		if cron.Minute == "" {
			cron.Minute = "0"
		}
		if cron.Hour == "" {
			cron.Hour = "0"
		}
		if cron.DayOfWeek == "" {
			cron.DayOfWeek = "*"
		}
	}
	if c.Monitoring != nil && c.Monitoring.Email != nil {
		c.Monitoring.Email.Enabled = c.Monitoring.EmailAlerts
	}
	if c.Cache != nil {
		c.Cache.Type = CacheType(strings.ToLower(string(c.Cache.Type)))
	}
}

// Location returns the configured schedule timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Schedule == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
