package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/reseller/backend/internal/domain/fx"
	"github.com/reseller/backend/internal/domain/pricing"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Engine    EngineConfig
	Ledger    LedgerConfig
	Scheduler SchedulerConfig
	Cache     CacheConfig
	Ingest    IngestConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	MetricsEnabled    bool
	CollectorEndpoint string  // e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool // development only
	ExportInterval    time.Duration
	DBTraceEnabled    bool
	DBLogFullSQL      bool // dev only
	DBSlowQueryThresh time.Duration
}

// EngineConfig holds the pricing calculator switches
type EngineConfig struct {
	ExchangeRateFallback string // exact_only, most_recent_prior_date
	ReferralFeeBasis     string // gross, net
	StrictMinimumPrice   bool
	RoundingMode         string // half_up
	DefaultPricingRule   string
}

// LedgerConfig holds inventory ledger settings
type LedgerConfig struct {
	LockWait             time.Duration
	DriftTolerance       int
	BatchParallelism     int
	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	// DedupRetention is how many applied event IDs are kept for
	// deduplication; negative keeps all of them
	DedupRetention int
}

// SchedulerConfig holds repricing scheduler settings
type SchedulerConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	DirtyInterval time.Duration
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// CacheConfig holds reference data cache settings
type CacheConfig struct {
	InvalidationChannel string
}

// IngestConfig holds the Redis list the worker consumes records from
type IngestConfig struct {
	Enabled         bool
	Queue           string
	DeadLetterQueue string
	PollTimeout     time.Duration
	MaxBatch        int
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with PRICING_ prefix (e.g., PRICING_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/pricing")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PRICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Version: v.GetString("app.version"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Engine: EngineConfig{
			ExchangeRateFallback: v.GetString("engine.exchange_rate_fallback"),
			ReferralFeeBasis:     v.GetString("engine.referral_fee_basis"),
			StrictMinimumPrice:   v.GetBool("engine.strict_minimum_price"),
			RoundingMode:         v.GetString("engine.rounding_mode"),
			DefaultPricingRule:   v.GetString("engine.default_pricing_rule"),
		},
		Ledger: LedgerConfig{
			LockWait:             v.GetDuration("ledger.lock_wait"),
			DriftTolerance:       v.GetInt("ledger.drift_tolerance"),
			BatchParallelism:     v.GetInt("ledger.batch_parallelism"),
			MaxRetries:           v.GetInt("ledger.max_retries"),
			RetryInitialInterval: v.GetDuration("ledger.retry_initial_interval"),
			RetryMaxInterval:     v.GetDuration("ledger.retry_max_interval"),
			DedupRetention:       v.GetInt("ledger.dedup_retention"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			SweepInterval: v.GetDuration("scheduler.sweep_interval"),
			DirtyInterval: v.GetDuration("scheduler.dirty_interval"),
			JobTimeout:    v.GetDuration("scheduler.job_timeout"),
			RetryAttempts: v.GetInt("scheduler.retry_attempts"),
			RetryDelay:    v.GetDuration("scheduler.retry_delay"),
		},
		Cache: CacheConfig{
			InvalidationChannel: v.GetString("cache.invalidation_channel"),
		},
		Ingest: IngestConfig{
			Enabled:         v.GetBool("ingest.enabled"),
			Queue:           v.GetString("ingest.queue"),
			DeadLetterQueue: v.GetString("ingest.dead_letter_queue"),
			PollTimeout:     v.GetDuration("ingest.poll_timeout"),
			MaxBatch:        v.GetInt("ingest.max_batch"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "reseller-pricing"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "pricing"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Engine.ExchangeRateFallback == "" {
		cfg.Engine.ExchangeRateFallback = string(fx.ExactOnly)
	}
	if cfg.Engine.ReferralFeeBasis == "" {
		cfg.Engine.ReferralFeeBasis = string(pricing.FeeBasisGross)
	}
	if cfg.Engine.RoundingMode == "" {
		cfg.Engine.RoundingMode = string(pricing.RoundingHalfUp)
	}
	if cfg.Engine.DefaultPricingRule == "" {
		cfg.Engine.DefaultPricingRule = "default"
	}
	if cfg.Ledger.LockWait == 0 {
		cfg.Ledger.LockWait = 5 * time.Second
	}
	if cfg.Ledger.BatchParallelism == 0 {
		cfg.Ledger.BatchParallelism = 8
	}
	if cfg.Ledger.MaxRetries == 0 {
		cfg.Ledger.MaxRetries = 3
	}
	if cfg.Ledger.RetryInitialInterval == 0 {
		cfg.Ledger.RetryInitialInterval = 50 * time.Millisecond
	}
	if cfg.Ledger.RetryMaxInterval == 0 {
		cfg.Ledger.RetryMaxInterval = time.Second
	}
	if cfg.Ledger.DedupRetention == 0 {
		cfg.Ledger.DedupRetention = 1_000_000
	}
	if cfg.Scheduler.SweepInterval == 0 {
		cfg.Scheduler.SweepInterval = time.Hour
	}
	if cfg.Scheduler.DirtyInterval == 0 {
		cfg.Scheduler.DirtyInterval = 30 * time.Second
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = time.Minute
	}
	if cfg.Cache.InvalidationChannel == "" {
		cfg.Cache.InvalidationChannel = "pricing:reference:invalidate"
	}
	if cfg.Ingest.Queue == "" {
		cfg.Ingest.Queue = "pricing:ingest"
	}
	if cfg.Ingest.DeadLetterQueue == "" {
		cfg.Ingest.DeadLetterQueue = "pricing:ingest:rejected"
	}
	if cfg.Ingest.PollTimeout == 0 {
		cfg.Ingest.PollTimeout = 5 * time.Second
	}
	if cfg.Ingest.MaxBatch == 0 {
		cfg.Ingest.MaxBatch = 100
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if _, err := c.Engine.PricingOptions(); err != nil {
		return err
	}
	if _, err := c.Engine.FallbackPolicy(); err != nil {
		return fmt.Errorf("engine.exchange_rate_fallback: %w", err)
	}
	if c.Ledger.LockWait < 0 {
		return fmt.Errorf("ledger.lock_wait cannot be negative")
	}
	if c.Ledger.DriftTolerance < 0 {
		return fmt.Errorf("ledger.drift_tolerance cannot be negative")
	}
	if c.Ledger.BatchParallelism < 0 {
		return fmt.Errorf("ledger.batch_parallelism cannot be negative")
	}
	if c.Scheduler.Enabled && c.Scheduler.SweepInterval < time.Minute {
		return fmt.Errorf("scheduler.sweep_interval must be at least 1m, got %s", c.Scheduler.SweepInterval)
	}
	if c.Ingest.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("ingest.enabled requires redis.enabled")
	}
	if c.Ingest.MaxBatch < 0 {
		return fmt.Errorf("ingest.max_batch cannot be negative")
	}
	return nil
}

// PricingOptions converts the engine switches to calculator options
func (e EngineConfig) PricingOptions() (pricing.Options, error) {
	basis, err := pricing.ParseFeeBasis(e.ReferralFeeBasis)
	if err != nil {
		return pricing.Options{}, fmt.Errorf("engine.referral_fee_basis: %w", err)
	}
	rounding, err := pricing.ParseRoundingMode(e.RoundingMode)
	if err != nil {
		return pricing.Options{}, fmt.Errorf("engine.rounding_mode: %w", err)
	}
	return pricing.Options{
		FeeBasis: basis,
		Strict:   e.StrictMinimumPrice,
		Rounding: rounding,
	}, nil
}

// FallbackPolicy returns the configured exchange rate fallback
func (e EngineConfig) FallbackPolicy() (fx.FallbackPolicy, error) {
	return fx.ParseFallbackPolicy(e.ExchangeRateFallback)
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
