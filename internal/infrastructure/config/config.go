package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Pending store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Handoff       HandoffConfig       `mapstructure:"handoff"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig      `mapstructure:"cors"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

// GatewayConfig controls calls to the payment gateway.
type GatewayConfig struct {
	// Authorization is the default client token, tokenization key or scoped
	// access token. Requests may override it with the X-Client-Authorization header.
	Authorization           string        `mapstructure:"authorization"`
	APIVersion              string        `mapstructure:"api_version"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	CircuitBreakerThreshold uint32        `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
	ConfigCacheTTL          time.Duration `mapstructure:"config_cache_ttl"`
	ConfigRetries           uint          `mapstructure:"config_retries"`
	ConfigRetryDelay        time.Duration `mapstructure:"config_retry_delay"`
}

// HandoffConfig describes how the bridge leaves and re-enters the host.
type HandoffConfig struct {
	AppID         string        `mapstructure:"app_id"`
	ReturnScheme  string        `mapstructure:"return_scheme"`
	ReturnURLBase string        `mapstructure:"return_url_base"`
	PendingStore  string        `mapstructure:"pending_store"`
	PendingTTL    time.Duration `mapstructure:"pending_ttl"`
	SigningKey    string        `mapstructure:"signing_key"`
	VenmoCertHash string        `mapstructure:"venmo_cert_hash"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// TelemetryConfig controls the Redis stream analytics events are relayed through.
type TelemetryConfig struct {
	StreamEnabled bool          `mapstructure:"stream_enabled"`
	Stream        string        `mapstructure:"stream"`
	MaxLen        int64         `mapstructure:"max_len"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	BatchSize     int64         `mapstructure:"batch_size"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables, e.g. PAYAUTH_HANDOFF_RETURN_SCHEME
	v.SetEnvPrefix("PAYAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/payauth")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Handoff.ReturnScheme == "" {
		errs = append(errs, fmt.Errorf("handoff.return_scheme is required"))
	}
	if c.Handoff.PendingTTL <= 0 {
		errs = append(errs, fmt.Errorf("handoff.pending_ttl must be positive"))
	}

	switch c.Handoff.PendingStore {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Port <= 0 {
			errs = append(errs, fmt.Errorf("redis.port must be positive"))
		}
	case StorePostgres:
		if c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("handoff.pending_store must be one of memory, redis, postgres, got %q", c.Handoff.PendingStore))
	}

	if c.Telemetry.StreamEnabled {
		if c.Redis.Port <= 0 {
			errs = append(errs, fmt.Errorf("redis.port must be positive"))
		}
		if c.Telemetry.BatchSize <= 0 {
			errs = append(errs, fmt.Errorf("telemetry.batch_size must be positive"))
		}
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Handoff.SigningKey == "" {
			errs = append(errs, fmt.Errorf("handoff.signing_key required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}
	if c.Handoff.SigningKey != "" && len(c.Handoff.SigningKey) < 32 {
		errs = append(errs, fmt.Errorf("handoff.signing_key must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.rate_limit.requests", 100)
	v.SetDefault("server.rate_limit.window", "1m")

	// Gateway defaults
	v.SetDefault("gateway.authorization", "")
	v.SetDefault("gateway.api_version", "2018-05-10")
	v.SetDefault("gateway.timeout", "30s")
	v.SetDefault("gateway.circuit_breaker_threshold", 10)
	v.SetDefault("gateway.circuit_breaker_timeout", "30s")
	v.SetDefault("gateway.config_cache_ttl", "5m")
	v.SetDefault("gateway.config_retries", 3)
	v.SetDefault("gateway.config_retry_delay", "200ms")

	// Hand-off defaults
	v.SetDefault("handoff.app_id", "com.example.payauth")
	v.SetDefault("handoff.return_scheme", "com.example.payauth.payments")
	v.SetDefault("handoff.return_url_base", "")
	v.SetDefault("handoff.pending_store", StoreRedis)
	v.SetDefault("handoff.pending_ttl", "1h")
	v.SetDefault("handoff.signing_key", "")
	v.SetDefault("handoff.venmo_cert_hash", "")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "payauth")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "payauth")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Telemetry defaults
	v.SetDefault("telemetry.stream_enabled", false)
	v.SetDefault("telemetry.stream", "payauth:telemetry")
	v.SetDefault("telemetry.max_len", 100000)
	v.SetDefault("telemetry.consumer_group", "payauth-relay")
	v.SetDefault("telemetry.batch_size", 50)
	v.SetDefault("telemetry.block_duration", "2s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_expiry", "24h")

	// Instance ID
	v.SetDefault("instance_id", "payauth-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL returns the postgres:// URL form used by golang-migrate.
func (c *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
