package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/spf13/viper"
)

// Sequence backends
const (
	SequenceBackendDatabase = "database"
	SequenceBackendRedis    = "redis"
	SequenceBackendMemory   = "memory"
)

// Signer implementations
const (
	SignerRSA  = "rsa"
	SignerHMAC = "hmac"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Fiscal    FiscalConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
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
	AutoMigrate     bool // apply embedded migrations at server start
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings. Tokens are issued by the identity provider;
// this service only verifies them.
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	ExportRateLimit  int // SAF-T exports per tenant per minute
}

// FiscalConfig holds taxpayer identity, certification and numbering settings
type FiscalConfig struct {
	CompanyTaxID             string // NIF of the issuing company
	CompanyName              string
	CompanyAddress           string
	CompanyCity              string
	ProductCompanyTaxID      string // NIF of the software producer
	SoftwareValidationNumber string // AGT software certificate number
	ProductID                string
	ProductVersion           string
	ValidationCode           string            // issuer validation code, qualified with type and year for series without their own
	ValidationCodes          map[string]string // AGT validation code per series, keyed "FT_2026"
	Signer                   string // rsa, hmac
	KeyPath                  string // PKCS#12 bundle or PEM private key
	KeyPassword              string
	KeyVersion               string
	HMACSecret               string
	SequenceBackend          string // database, redis, memory
	DefaultCurrency          string
	StorageTimeout           time.Duration
	ExportTimeout            time.Duration
	IdempotencyEnabled       bool
	IdempotencyTTL           time.Duration
}

// StorageConfig holds S3-compatible object storage settings for SAF-T archives
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	KeyPrefix    string // object key prefix for archived SAF-T files
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool    // Export fiscal business metrics
	LogsEnabled       bool    // Bridge zap entries to the OTLP logs pipeline
	// Continuous profiling (Pyroscope)
	ProfilingEnabled bool
	ProfilingServer  string // e.g. "http://pyroscope:4040"
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FISCAL_ prefix (e.g., FISCAL_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("FISCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
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
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			ExportRateLimit:  v.GetInt("http.export_rate_limit"),
		},
		Fiscal: FiscalConfig{
			CompanyTaxID:             v.GetString("fiscal.company_tax_id"),
			CompanyName:              v.GetString("fiscal.company_name"),
			CompanyAddress:           v.GetString("fiscal.company_address"),
			CompanyCity:              v.GetString("fiscal.company_city"),
			ProductCompanyTaxID:      v.GetString("fiscal.product_company_tax_id"),
			SoftwareValidationNumber: v.GetString("fiscal.software_validation_number"),
			ProductID:                v.GetString("fiscal.product_id"),
			ProductVersion:           v.GetString("fiscal.product_version"),
			ValidationCode:           v.GetString("fiscal.validation_code"),
			ValidationCodes:          upperKeys(v.GetStringMapString("fiscal.validation_codes")),
			Signer:                   v.GetString("fiscal.signer"),
			KeyPath:                  v.GetString("fiscal.key_path"),
			KeyPassword:              v.GetString("fiscal.key_password"),
			KeyVersion:               v.GetString("fiscal.key_version"),
			HMACSecret:               v.GetString("fiscal.hmac_secret"),
			SequenceBackend:          v.GetString("fiscal.sequence_backend"),
			DefaultCurrency:          v.GetString("fiscal.default_currency"),
			StorageTimeout:           v.GetDuration("fiscal.storage_timeout"),
			ExportTimeout:            v.GetDuration("fiscal.export_timeout"),
			IdempotencyEnabled:       v.GetBool("fiscal.idempotency_enabled"),
			IdempotencyTTL:           v.GetDuration("fiscal.idempotency_ttl"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			KeyPrefix:    v.GetString("storage.key_prefix"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
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
		cfg.App.Name = "kwanza-fiscal"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
		cfg.Database.DBName = "fiscal"
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
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "kwanza-identity"
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
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second // SAF-T downloads can be large
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if cfg.HTTP.ExportRateLimit == 0 {
		cfg.HTTP.ExportRateLimit = 6
	}
	// CORS origins have no wildcard fallback: cross-origin requests stay
	// blocked until origins are configured explicitly.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"}
	}
	if cfg.Fiscal.ValidationCode == "" {
		cfg.Fiscal.ValidationCode = "0"
	}
	if cfg.Fiscal.Signer == "" {
		cfg.Fiscal.Signer = SignerHMAC
	}
	if cfg.Fiscal.KeyVersion == "" {
		cfg.Fiscal.KeyVersion = "1"
	}
	if cfg.Fiscal.SequenceBackend == "" {
		cfg.Fiscal.SequenceBackend = SequenceBackendDatabase
	}
	if cfg.Fiscal.DefaultCurrency == "" {
		cfg.Fiscal.DefaultCurrency = "AOA"
	}
	if cfg.Fiscal.ProductID == "" {
		cfg.Fiscal.ProductID = "Kwanza Fiscal/Kwanza"
	}
	if cfg.Fiscal.ProductVersion == "" {
		cfg.Fiscal.ProductVersion = "1.0.0"
	}
	if cfg.Fiscal.StorageTimeout == 0 {
		cfg.Fiscal.StorageTimeout = 5 * time.Second
	}
	if cfg.Fiscal.ExportTimeout == 0 {
		cfg.Fiscal.ExportTimeout = 30 * time.Second
	}
	if cfg.Fiscal.IdempotencyTTL == 0 {
		cfg.Fiscal.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "saft"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "kwanza-fiscal"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
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

	switch c.Fiscal.SequenceBackend {
	case SequenceBackendDatabase, SequenceBackendMemory:
	case SequenceBackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("fiscal.sequence_backend=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("fiscal.sequence_backend must be one of database, redis, memory, got %q", c.Fiscal.SequenceBackend)
	}
	for key := range c.Fiscal.ValidationCodes {
		if _, _, err := fiscal.ParseSeriesCodeKey(key); err != nil {
			return fmt.Errorf("fiscal.validation_codes: %w", err)
		}
	}
	switch c.Fiscal.Signer {
	case SignerRSA:
		if c.Fiscal.KeyPath == "" {
			return fmt.Errorf("fiscal.key_path is required when fiscal.signer=rsa")
		}
	case SignerHMAC:
	default:
		return fmt.Errorf("fiscal.signer must be rsa or hmac, got %q", c.Fiscal.Signer)
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage.enabled=true")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Fiscal.Signer != SignerRSA {
			return fmt.Errorf("fiscal.signer must be rsa in production (the hmac signer is not AGT certified)")
		}
		if c.Fiscal.SequenceBackend == SequenceBackendMemory {
			return fmt.Errorf("fiscal.sequence_backend=memory is not allowed in production")
		}
		if c.Fiscal.CompanyTaxID == "" || c.Fiscal.SoftwareValidationNumber == "" {
			return fmt.Errorf("fiscal.company_tax_id and fiscal.software_validation_number are required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// IsProduction reports whether the service runs with production rules
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
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

// upperKeys undoes viper's lower-casing of map keys read from config files
func upperKeys(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}
