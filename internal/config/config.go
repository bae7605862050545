package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the admin console
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Audit     AuditConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
	Notify    NotifyConfig
	Viewer    ViewerConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// BackendConfig points at the remote REST API that owns every entity
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AuthConfig holds identity provider and session settings
type AuthConfig struct {
	ProviderSecret string
	Issuer         string
	Audience       string
	AllowedEmails  []string
	JWTSecret      string
	TokenTTL       time.Duration
	SessionSecret  string
	SecureCookie   bool
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	PublicBaseURL   string
}

// UploadConfig bounds what staff may upload
type UploadConfig struct {
	MaxPDFBytes   int64
	MaxImageBytes int64
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds cache lifetimes
type CacheConfig struct {
	PageVisibilityTTL time.Duration
	ProcessingLockTTL time.Duration
}

// AuditConfig holds the audit trail database configuration
type AuditConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// LoggingConfig selects log level, format and output
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds Jaeger configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// NotifyConfig holds toast defaults
type NotifyConfig struct {
	AutoClose time.Duration
	Position  string
}

// ViewerConfig holds PDF viewer session settings
type ViewerConfig struct {
	IdleTimeout time.Duration
	MaxBytes    int64
	// AllowedHosts are extra hosts PDFs may be opened from, besides the
	// backend and the storage public URL
	AllowedHosts []string
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	RPS   int
	Burst int
}

// Load reads configuration from an optional YAML file, a .env file and
// environment variables. An empty configPath loads from the environment only.
func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Backend.BaseURL = strings.TrimRight(config.Backend.BaseURL, "/")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks settings the console cannot run without
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.baseURL is required (BACKEND_BASEURL)")
	}
	if c.Auth.ProviderSecret == "" {
		return errors.New("auth.providerSecret is required (AUTH_PROVIDERSECRET)")
	}
	if err := checkSecret("auth.jwtSecret", c.Auth.JWTSecret); err != nil {
		return err
	}
	if err := checkSecret("auth.sessionSecret", c.Auth.SessionSecret); err != nil {
		return err
	}
	if c.Upload.MaxPDFBytes <= 0 || c.Upload.MaxImageBytes <= 0 {
		return errors.New("upload limits must be positive")
	}
	return nil
}

// MinSecretLength is the shortest accepted signing secret
const MinSecretLength = 32

// placeholderSecrets are sample values that must never sign real tokens
var placeholderSecrets = map[string]struct{}{
	"change-me":     {},
	"change-me-too": {},
	"changeme":      {},
	"secret":        {},
}

func checkSecret(key, value string) error {
	envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if _, ok := placeholderSecrets[strings.ToLower(strings.TrimSpace(value))]; ok {
		return fmt.Errorf("%s is a placeholder; set a random value (%s)", key, envKey)
	}
	if len(value) < MinSecretLength {
		return fmt.Errorf("%s must be at least %d characters (%s)", key, MinSecretLength, envKey)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "60s")
	v.SetDefault("server.shutdownTimeout", "10s")

	// Backend defaults
	v.SetDefault("backend.baseURL", "")
	v.SetDefault("backend.timeout", "30s")

	// Auth defaults
	v.SetDefault("auth.providerSecret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.allowedEmails", []string{})
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTL", "12h")
	v.SetDefault("auth.sessionSecret", "")
	v.SetDefault("auth.secureCookie", false)

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "mechanicbano")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.publicBaseURL", "")

	// Upload defaults
	v.SetDefault("upload.maxPDFBytes", 20*1024*1024)  // 20MB
	v.SetDefault("upload.maxImageBytes", 5*1024*1024) // 5MB

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.pageVisibilityTTL", "5m")
	v.SetDefault("cache.processingLockTTL", "2m")

	// Audit defaults
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.host", "localhost")
	v.SetDefault("audit.port", 5432)
	v.SetDefault("audit.user", "postgres")
	v.SetDefault("audit.password", "postgres")
	v.SetDefault("audit.dbname", "mechanicbano_admin")
	v.SetDefault("audit.sslmode", "disable")
	v.SetDefault("audit.maxConns", 5)
	v.SetDefault("audit.minConns", 1)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "mechanicbano-admin")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Notification defaults
	v.SetDefault("notify.autoClose", "3s")
	v.SetDefault("notify.position", "top-right")

	// Viewer defaults
	v.SetDefault("viewer.idleTimeout", "15m")
	v.SetDefault("viewer.maxBytes", 50*1024*1024) // 50MB
	v.SetDefault("viewer.allowedHosts", []string{})

	// Rate limit defaults
	v.SetDefault("ratelimit.rps", 20)
	v.SetDefault("ratelimit.burst", 40)
}
