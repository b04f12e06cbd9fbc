package config

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Source    SourceConfig    `mapstructure:"source"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	Output string `mapstructure:"output" validate:"required"` // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	Env  string `mapstructure:"env" validate:"oneof=development testing staging production"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host               string        `mapstructure:"host" validate:"required"`
	Port               int           `mapstructure:"port" validate:"min=1,max=65535"`
	User               string        `mapstructure:"user" validate:"required"`
	Password           string        `mapstructure:"password"`
	DBName             string        `mapstructure:"dbname" validate:"required"`
	SSLMode            string        `mapstructure:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    int           `mapstructure:"conn_max_lifetime"`  // in minutes
	ConnMaxIdleTime    int           `mapstructure:"conn_max_idle_time"` // in minutes
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// Source kinds
const (
	SourceLocal = "local"
	SourceS3    = "s3"
)

// SourceConfig selects where the raw CSV datasets are read from
type SourceConfig struct {
	Kind    string `mapstructure:"kind" validate:"oneof=local s3"`
	DataDir string `mapstructure:"data_dir"`
	// Files overrides the file name per dataset, keyed by dataset name
	Files      map[string]string `mapstructure:"files"`
	Delimiter  string            `mapstructure:"delimiter" validate:"len=1"`
	LazyQuotes bool              `mapstructure:"lazy_quotes"`
	TrimSpace  bool              `mapstructure:"trim_space"`
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// PipelineConfig tunes a pipeline run
type PipelineConfig struct {
	LoadToDB           bool   `mapstructure:"load_to_db"`
	BatchSize          int    `mapstructure:"batch_size" validate:"min=1,max=10000"`
	StagingSourceLabel string `mapstructure:"staging_source_label" validate:"required"`
	MaxDeliveryDays    int    `mapstructure:"max_delivery_days" validate:"min=1"`
	MigrateOnRun       bool   `mapstructure:"migrate_on_run"`
	PolicyFile         string `mapstructure:"policy_file"`
	WarningLogLimit    int    `mapstructure:"warning_log_limit" validate:"min=0"`
}

// WarehouseConfig names the schemas of the warehouse layers.
// An empty schema name means unqualified table names.
type WarehouseConfig struct {
	StagingSchema   string `mapstructure:"staging_schema"`
	AnalyticsSchema string `mapstructure:"analytics_schema"`
	AuditSchema     string `mapstructure:"audit_schema"`
}

// SchedulerConfig holds recurring run configuration
type SchedulerConfig struct {
	Cron       string        `mapstructure:"cron" validate:"required"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// MetricsConfig holds run metrics export settings
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
	JobName      string `mapstructure:"job_name" validate:"required"`
}

// TelemetryConfig holds OpenTelemetry configuration. Spans are recorded
// only when CollectorEndpoint is set.
type TelemetryConfig struct {
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // OTLP gRPC endpoint, e.g. "localhost:4317"
	SamplingRatio     float64 `mapstructure:"sampling_ratio" validate:"min=0,max=1"`
	ServiceName       string  `mapstructure:"service_name" validate:"required"`
	Insecure          bool    `mapstructure:"insecure"`
	LogsEnabled       bool    `mapstructure:"logs_enabled"` // also export logs through the zap bridge
	// Database tracing options
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// Enabled reports whether traces are exported
func (t *TelemetryConfig) Enabled() bool {
	return t.CollectorEndpoint != ""
}

var schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ETL_ prefix (e.g., ETL_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration like Load, reading the given file instead of
// searching for config.toml when path is not empty
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot be defaulted by a zero check
	v.SetDefault("pipeline.load_to_db", true)
	v.SetDefault("source.lazy_quotes", true)
	v.SetDefault("telemetry.db_trace_enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("database.host"),
			Port:               v.GetInt("database.port"),
			User:               v.GetString("database.user"),
			Password:           v.GetString("database.password"),
			DBName:             v.GetString("database.dbname"),
			SSLMode:            v.GetString("database.sslmode"),
			MaxOpenConns:       v.GetInt("database.max_open_conns"),
			MaxIdleConns:       v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime:    v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime:    v.GetInt("database.conn_max_idle_time"),
			SlowQueryThreshold: v.GetDuration("database.slow_query_threshold"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Source: SourceConfig{
			Kind:       v.GetString("source.kind"),
			DataDir:    v.GetString("source.data_dir"),
			Files:      v.GetStringMapString("source.files"),
			Delimiter:  v.GetString("source.delimiter"),
			LazyQuotes: v.GetBool("source.lazy_quotes"),
			TrimSpace:  v.GetBool("source.trim_space"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			Prefix:          v.GetString("storage.prefix"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Pipeline: PipelineConfig{
			LoadToDB:           v.GetBool("pipeline.load_to_db"),
			BatchSize:          v.GetInt("pipeline.batch_size"),
			StagingSourceLabel: v.GetString("pipeline.staging_source_label"),
			MaxDeliveryDays:    v.GetInt("pipeline.max_delivery_days"),
			MigrateOnRun:       v.GetBool("pipeline.migrate_on_run"),
			PolicyFile:         v.GetString("pipeline.policy_file"),
			WarningLogLimit:    v.GetInt("pipeline.warning_log_limit"),
		},
		Warehouse: WarehouseConfig{
			StagingSchema:   v.GetString("warehouse.staging_schema"),
			AnalyticsSchema: v.GetString("warehouse.analytics_schema"),
			AuditSchema:     v.GetString("warehouse.audit_schema"),
		},
		Scheduler: SchedulerConfig{
			Cron:       v.GetString("scheduler.cron"),
			RunTimeout: v.GetDuration("scheduler.run_timeout"),
		},
		Metrics: MetricsConfig{
			TextfilePath: v.GetString("metrics.textfile_path"),
			JobName:      v.GetString("metrics.job_name"),
		},
		Telemetry: TelemetryConfig{
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
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
		cfg.App.Name = "ecomdw-etl"
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
		cfg.Database.DBName = "ecommerce_dw"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.SlowQueryThreshold == 0 {
		cfg.Database.SlowQueryThreshold = 2 * time.Second
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
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = SourceLocal
	}
	if cfg.Source.DataDir == "" {
		cfg.Source.DataDir = "data/raw"
	}
	if cfg.Source.Delimiter == "" {
		cfg.Source.Delimiter = ","
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Pipeline.BatchSize == 0 {
		cfg.Pipeline.BatchSize = 1000
	}
	if cfg.Pipeline.StagingSourceLabel == "" {
		cfg.Pipeline.StagingSourceLabel = "olist"
	}
	if cfg.Pipeline.MaxDeliveryDays == 0 {
		cfg.Pipeline.MaxDeliveryDays = 365
	}
	if cfg.Pipeline.WarningLogLimit == 0 {
		cfg.Pipeline.WarningLogLimit = 5
	}
	if cfg.Warehouse.StagingSchema == "" {
		cfg.Warehouse.StagingSchema = "staging"
	}
	if cfg.Warehouse.AnalyticsSchema == "" {
		cfg.Warehouse.AnalyticsSchema = "analytics"
	}
	if cfg.Warehouse.AuditSchema == "" {
		cfg.Warehouse.AuditSchema = "audit"
	}
	if cfg.Scheduler.Cron == "" {
		cfg.Scheduler.Cron = "0 2 * * *"
	}
	if cfg.Scheduler.RunTimeout == 0 {
		cfg.Scheduler.RunTimeout = 2 * time.Hour
	}
	if cfg.Metrics.JobName == "" {
		cfg.Metrics.JobName = "ecomdw_etl"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their configuration key
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok && len(fieldErrors) > 0 {
			e := fieldErrors[0]
			key := strings.TrimPrefix(e.Namespace(), "Config.")
			return fmt.Errorf("%s: invalid value %v (%s %s)", key, e.Value(), e.Tag(), e.Param())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate connection pool settings
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

	for key, schema := range map[string]string{
		"warehouse.staging_schema":   c.Warehouse.StagingSchema,
		"warehouse.analytics_schema": c.Warehouse.AnalyticsSchema,
		"warehouse.audit_schema":     c.Warehouse.AuditSchema,
	} {
		if !schemaNamePattern.MatchString(schema) {
			return fmt.Errorf("%s must be a lowercase SQL identifier, got %q", key, schema)
		}
	}

	for name := range c.Source.Files {
		if !dataset.Name(name).IsValid() {
			return fmt.Errorf("source.files: unknown dataset %q", name)
		}
	}

	if c.Source.Kind == SourceS3 && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when source.kind is s3")
	}

	// Production-specific validations
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

	return nil
}

// DatasetFiles returns the file name of every dataset with overrides applied
func (s *SourceConfig) DatasetFiles() map[dataset.Name]string {
	files := dataset.DefaultFiles()
	for name, file := range s.Files {
		if file != "" {
			files[dataset.Name(name)] = file
		}
	}
	return files
}

// DelimiterRune returns the field delimiter as a rune
func (s *SourceConfig) DelimiterRune() rune {
	for _, r := range s.Delimiter {
		return r
	}
	return ','
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
