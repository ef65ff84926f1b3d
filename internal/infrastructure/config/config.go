package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	Storefront StorefrontConfig
	Pricing    PricingConfig
	Mongo      MongoConfig
	Erp        ErpConfig
	Redis      RedisConfig
	Sync       SyncConfig
	Export     ExportConfig
	Storage    StorageConfig
	Scheduler  SchedulerConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	// Account identifies the storefront account; runs are serialized per account.
	Account string
	// DryRun swaps the order store and run lock for in-memory versions.
	DryRun bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// StorefrontConfig holds the storefront Admin API settings
type StorefrontConfig struct {
	ShopDomain      string        `validate:"required,hostname"`
	AccessToken     string        `validate:"required"`
	APIVersion      string        `validate:"required"`
	Timeout         time.Duration `validate:"gt=0"`
	Concurrency     int           `validate:"min=1,max=10"`
	MinInterval     time.Duration `validate:"gte=0"`
	PageSize        int           `validate:"min=1,max=250"`
	LocationID      int64
	TrackingCompany string
	NotifyCustomer  bool
}

// PricingConfig holds the discount-map service settings
type PricingConfig struct {
	URL     string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// MongoConfig holds order store connection settings
type MongoConfig struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
	MaxConnIdle    time.Duration
}

// ErpConfig holds the ERP database connection settings
type ErpConfig struct {
	Driver          string `validate:"oneof=sqlserver postgres sqlite"`
	DSN             string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Customer        string `validate:"required"`
	Lookback        time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	SlowQueryThresh time.Duration
}

// RedisConfig holds Redis connection settings for the run lock
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SyncConfig holds the business rules of the pipeline
type SyncConfig struct {
	POPrefix          string
	FeeMarker         string
	MattressKeywords  []string
	PromoPrefixes     []string
	CursorPolicy      string
	PendingTTL        time.Duration
	TieBreak          string
	CancelPattern     string
	OutOfStockPattern string
	NoiseHoldReasons  []string
	ErpTagPrefix      string
	Timezone          string
	LockTTL           time.Duration
}

// ExportConfig holds spreadsheet export settings
type ExportConfig struct {
	Dir               string
	ReferenceColumns  []string
	OrderEntryColumns []string
	Upload            bool
}

// StorageConfig holds S3 settings for export uploads
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
}

// SchedulerConfig holds the serve-mode trigger settings
type SchedulerConfig struct {
	Enabled          bool
	InboundInterval  time.Duration
	OutboundInterval time.Duration
	SweepInterval    time.Duration
	JobTimeout       time.Duration
	HistorySize      int
}

// HTTPConfig holds ops server configuration
type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable ERP query tracing (otelgorm)
	MetricsEnabled    bool    // Export pass metrics over OTLP
	MetricsInterval   time.Duration
	LogsEnabled       bool // Bridge zap records to the OTLP logs pipeline
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ORDERSYNC_ prefix (e.g., ORDERSYNC_ERP_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ordersync")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}
	return load(v)
}

// LoadFile loads configuration from an explicit file path plus environment variables
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("ORDERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Account: v.GetString("app.account"),
			DryRun:  v.GetBool("app.dry_run"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Storefront: StorefrontConfig{
			ShopDomain:      v.GetString("storefront.shop_domain"),
			AccessToken:     v.GetString("storefront.access_token"),
			APIVersion:      v.GetString("storefront.api_version"),
			Timeout:         v.GetDuration("storefront.timeout"),
			Concurrency:     v.GetInt("storefront.concurrency"),
			MinInterval:     v.GetDuration("storefront.min_interval"),
			PageSize:        v.GetInt("storefront.page_size"),
			LocationID:      v.GetInt64("storefront.location_id"),
			TrackingCompany: v.GetString("storefront.tracking_company"),
			NotifyCustomer:  v.GetBool("storefront.notify_customer"),
		},
		Pricing: PricingConfig{
			URL:     v.GetString("pricing.url"),
			Timeout: v.GetDuration("pricing.timeout"),
		},
		Mongo: MongoConfig{
			URI:            v.GetString("mongo.uri"),
			Database:       v.GetString("mongo.database"),
			MaxPoolSize:    v.GetUint64("mongo.max_pool_size"),
			MinPoolSize:    v.GetUint64("mongo.min_pool_size"),
			ConnectTimeout: v.GetDuration("mongo.connect_timeout"),
			MaxConnIdle:    v.GetDuration("mongo.max_conn_idle"),
		},
		Erp: ErpConfig{
			Driver:          v.GetString("erp.driver"),
			DSN:             v.GetString("erp.dsn"),
			Host:            v.GetString("erp.host"),
			Port:            v.GetInt("erp.port"),
			User:            v.GetString("erp.user"),
			Password:        v.GetString("erp.password"),
			DBName:          v.GetString("erp.dbname"),
			SSLMode:         v.GetString("erp.sslmode"),
			Customer:        v.GetString("erp.customer"),
			Lookback:        v.GetDuration("erp.lookback"),
			MaxOpenConns:    v.GetInt("erp.max_open_conns"),
			MaxIdleConns:    v.GetInt("erp.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("erp.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("erp.conn_max_idle_time"),
			LogLevel:        v.GetString("erp.log_level"),
			SlowQueryThresh: v.GetDuration("erp.slow_query_threshold"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Sync: SyncConfig{
			POPrefix:          v.GetString("sync.po_prefix"),
			FeeMarker:         v.GetString("sync.fee_marker"),
			MattressKeywords:  v.GetStringSlice("sync.mattress_keywords"),
			PromoPrefixes:     v.GetStringSlice("sync.promo_prefixes"),
			CursorPolicy:      v.GetString("sync.cursor_policy"),
			PendingTTL:        v.GetDuration("sync.pending_ttl"),
			TieBreak:          v.GetString("sync.tie_break"),
			CancelPattern:     v.GetString("sync.cancel_pattern"),
			OutOfStockPattern: v.GetString("sync.out_of_stock_pattern"),
			NoiseHoldReasons:  v.GetStringSlice("sync.noise_hold_reasons"),
			ErpTagPrefix:      v.GetString("sync.erp_tag_prefix"),
			Timezone:          v.GetString("sync.timezone"),
			LockTTL:           v.GetDuration("sync.lock_ttl"),
		},
		Export: ExportConfig{
			Dir:               v.GetString("export.dir"),
			ReferenceColumns:  v.GetStringSlice("export.reference_columns"),
			OrderEntryColumns: v.GetStringSlice("export.order_entry_columns"),
			Upload:            v.GetBool("export.upload"),
		},
		Storage: StorageConfig{
			Bucket:          v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			Prefix:          v.GetString("storage.prefix"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Scheduler: SchedulerConfig{
			Enabled:          v.GetBool("scheduler.enabled"),
			InboundInterval:  v.GetDuration("scheduler.inbound_interval"),
			OutboundInterval: v.GetDuration("scheduler.outbound_interval"),
			SweepInterval:    v.GetDuration("scheduler.sweep_interval"),
			JobTimeout:       v.GetDuration("scheduler.job_timeout"),
			HistorySize:      v.GetInt("scheduler.history_size"),
		},
		HTTP: HTTPConfig{
			Port:         v.GetString("http.port"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
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
		cfg.App.Name = "ordersync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Account == "" {
		cfg.App.Account = cfg.Storefront.ShopDomain
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

	if cfg.Storefront.APIVersion == "" {
		cfg.Storefront.APIVersion = "2024-01"
	}
	if cfg.Storefront.Timeout == 0 {
		cfg.Storefront.Timeout = 30 * time.Second
	}
	if cfg.Storefront.Concurrency == 0 {
		cfg.Storefront.Concurrency = 3
	}
	if cfg.Storefront.MinInterval == 0 {
		cfg.Storefront.MinInterval = 500 * time.Millisecond
	}
	if cfg.Storefront.PageSize == 0 {
		cfg.Storefront.PageSize = 250
	}
	if cfg.Pricing.Timeout == 0 {
		cfg.Pricing.Timeout = 15 * time.Second
	}

	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "ordersync"
	}
	if cfg.Mongo.MaxPoolSize == 0 {
		cfg.Mongo.MaxPoolSize = 20
	}
	if cfg.Mongo.ConnectTimeout == 0 {
		cfg.Mongo.ConnectTimeout = 10 * time.Second
	}
	if cfg.Mongo.MaxConnIdle == 0 {
		cfg.Mongo.MaxConnIdle = 5 * time.Minute
	}

	if cfg.Erp.Driver == "" {
		cfg.Erp.Driver = "sqlserver"
	}
	if cfg.Erp.Host == "" {
		cfg.Erp.Host = "localhost"
	}
	if cfg.Erp.Port == 0 {
		switch cfg.Erp.Driver {
		case "postgres":
			cfg.Erp.Port = 5432
		default:
			cfg.Erp.Port = 1433
		}
	}
	if cfg.Erp.SSLMode == "" {
		cfg.Erp.SSLMode = "disable"
	}
	if cfg.Erp.Customer == "" {
		cfg.Erp.Customer = "ZINUS.COM"
	}
	if cfg.Erp.Lookback == 0 {
		cfg.Erp.Lookback = 168 * time.Hour
	}
	if cfg.Erp.MaxOpenConns == 0 {
		cfg.Erp.MaxOpenConns = 5
	}
	if cfg.Erp.MaxIdleConns == 0 {
		cfg.Erp.MaxIdleConns = 2
	}
	if cfg.Erp.ConnMaxLifetime == 0 {
		cfg.Erp.ConnMaxLifetime = 60
	}
	if cfg.Erp.ConnMaxIdleTime == 0 {
		cfg.Erp.ConnMaxIdleTime = 30
	}
	if cfg.Erp.LogLevel == "" {
		cfg.Erp.LogLevel = "warn"
	}
	if cfg.Erp.SlowQueryThresh == 0 {
		cfg.Erp.SlowQueryThresh = 2 * time.Second
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Sync.POPrefix == "" {
		cfg.Sync.POPrefix = "ZSH"
	}
	if cfg.Sync.ErpTagPrefix == "" {
		cfg.Sync.ErpTagPrefix = "SAGE:"
	}
	if cfg.Sync.Timezone == "" {
		cfg.Sync.Timezone = "America/Los_Angeles"
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = 30 * time.Minute
	}

	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "exports"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-west-2"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "ordersync"
	}

	if cfg.Scheduler.InboundInterval == 0 {
		cfg.Scheduler.InboundInterval = 15 * time.Minute
	}
	if cfg.Scheduler.OutboundInterval == 0 {
		cfg.Scheduler.OutboundInterval = time.Hour
	}
	if cfg.Scheduler.SweepInterval == 0 {
		cfg.Scheduler.SweepInterval = 24 * time.Hour
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.HistorySize == 0 {
		cfg.Scheduler.HistorySize = 100
	}

	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.MetricsInterval <= 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ordersync"
	}
}

var validate = validator.New()

// validate performs validation on the configuration
func (c *Config) validate() error {
	for name, section := range map[string]any{
		"storefront": c.Storefront,
		"pricing":    c.Pricing,
		"erp":        c.Erp,
	} {
		if err := validate.Struct(section); err != nil {
			return fmt.Errorf("invalid %s config: %w", name, err)
		}
	}

	if c.Erp.MaxIdleConns > c.Erp.MaxOpenConns {
		return fmt.Errorf("erp.max_idle_conns (%d) cannot exceed erp.max_open_conns (%d)",
			c.Erp.MaxIdleConns, c.Erp.MaxOpenConns)
	}
	if c.Erp.Lookback < 0 {
		return fmt.Errorf("erp.lookback cannot be negative")
	}
	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("sync.timezone: %w", err)
	}
	if c.Export.Upload && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when export.upload is enabled")
	}

	if c.App.Env == "production" {
		if c.App.DryRun {
			return fmt.Errorf("app.dry_run cannot be enabled in production")
		}
		if c.Erp.DSN == "" && c.Erp.Password == "" {
			return fmt.Errorf("erp.password is required in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// Location returns the time zone stored dates are rendered in
func (s SyncConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ConnectionString returns the driver-specific DSN with properly escaped values
func (d *ErpConfig) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "sqlite":
		return d.DBName
	case "postgres":
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
	default:
		u := url.URL{
			Scheme: "sqlserver",
			User:   url.UserPassword(d.User, d.Password),
			Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		}
		q := u.Query()
		q.Set("database", d.DBName)
		u.RawQuery = q.Encode()
		return u.String()
	}
}

// Addr returns the host:port of the Redis server
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
