package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Gateway     GatewayConfig
	Callback    CallbackConfig
	Secrets     SecretsConfig
	RateLimit   RateLimitConfig
	Logger      LoggerConfig
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	Host            string
	HTTPPort        int
	AdminGRPCPort   int
	MetricsPort     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// TrustedProxies may set X-Forwarded-For / X-Real-IP for the caller IP
	TrustedProxies []string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	// URL wins over the individual fields when set
	URL              string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	StatementTimeout time.Duration
}

// RedisConfig configures the cross-replica order lock. An empty URL keeps
// locking in-process.
type RedisConfig struct {
	URL       string
	KeyPrefix string
	LockTTL   time.Duration
}

// KafkaConfig configures order outcome events. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// GatewayConfig holds payment gateway merchant API configuration
type GatewayConfig struct {
	BaseURL            string
	CredentialsPath    string
	Timeout            time.Duration
	MaxRetries         int
	InsecureSkipVerify bool
	TerminalsFile      string
	// CallbackBaseURL is this service's public base URL, used to build callback URLs
	CallbackBaseURL string
	Language        string
	PaymentType     string
}

// CallbackConfig holds gateway callback processing configuration
type CallbackConfig struct {
	AllowedIPs        []string
	OrderTokenKey     string
	InstrumentPrefix  string
	ProcessingTimeout time.Duration
	SideEffectTimeout time.Duration
}

// SecretsConfig selects and configures the secret backend
type SecretsConfig struct {
	Backend  string // vault, aws, local
	CacheTTL time.Duration

	VaultAddress   string
	VaultAuth      string
	VaultToken     string
	VaultRoleID    string
	VaultSecretID  string
	VaultMountPath string
	VaultKVVersion string

	AWSRegion   string
	AWSProfile  string
	AWSEndpoint string

	LocalPath string
}

// RateLimitConfig holds per-IP rate limit settings for public endpoints
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	env := getEnv("ENVIRONMENT", "development")
	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			HTTPPort:        getEnvAsInt("HTTP_PORT", 8081),
			AdminGRPCPort:   getEnvAsInt("ADMIN_GRPC_PORT", 50051),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			TrustedProxies:  getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		Database: DatabaseConfig{
			URL:              getEnv("DATABASE_URL", ""),
			Host:             getEnv("DB_HOST", "localhost"),
			Port:             getEnvAsInt("DB_PORT", 5432),
			User:             getEnv("DB_USER", "postgres"),
			Password:         getEnv("DB_PASSWORD", ""),
			Database:         getEnv("DB_NAME", "checkout_callbacks"),
			SSLMode:          getEnv("DB_SSL_MODE", "disable"),
			MaxConns:         int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:         int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			KeyPrefix: getEnv("REDIS_LOCK_PREFIX", "checkout:order-lock:"),
			LockTTL:   getEnvAsDuration("REDIS_LOCK_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_OUTCOME_TOPIC", "checkout.order-outcomes"),
		},
		Gateway: GatewayConfig{
			BaseURL:            getEnv("GATEWAY_BASE_URL", ""),
			CredentialsPath:    getEnv("GATEWAY_CREDENTIALS_PATH", "checkout-callback-service/gateway/api"),
			Timeout:            getEnvAsDuration("GATEWAY_TIMEOUT", 30*time.Second),
			MaxRetries:         getEnvAsInt("GATEWAY_MAX_RETRIES", 2),
			InsecureSkipVerify: getEnvAsBool("GATEWAY_INSECURE_SKIP_VERIFY", false),
			TerminalsFile:      getEnv("GATEWAY_TERMINALS_FILE", "config/terminals.yaml"),
			CallbackBaseURL:    strings.TrimRight(getEnv("CALLBACK_BASE_URL", "http://localhost:8081"), "/"),
			Language:           getEnv("GATEWAY_LANGUAGE", "en"),
			PaymentType:        getEnv("GATEWAY_PAYMENT_TYPE", "payment"),
		},
		Callback: CallbackConfig{
			AllowedIPs:        getEnvAsSlice("CALLBACK_ALLOWED_IPS", nil),
			OrderTokenKey:     getEnv("CALLBACK_ORDER_TOKEN_KEY", "order_token"),
			InstrumentPrefix:  getEnv("CALLBACK_INSTRUMENT_PREFIX", "VALITOR_"),
			ProcessingTimeout: getEnvAsDuration("CALLBACK_PROCESSING_TIMEOUT", 20*time.Second),
			SideEffectTimeout: getEnvAsDuration("CALLBACK_SIDE_EFFECT_TIMEOUT", 5*time.Second),
		},
		Secrets: SecretsConfig{
			Backend:        getEnv("SECRET_MANAGER", "local"),
			CacheTTL:       getEnvAsDuration("SECRET_CACHE_TTL", 5*time.Minute),
			VaultAddress:   getEnv("VAULT_ADDR", ""),
			VaultAuth:      getEnv("VAULT_AUTH_METHOD", "token"),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultRoleID:    getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:  getEnv("VAULT_SECRET_ID", ""),
			VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
			VaultKVVersion: getEnv("VAULT_KV_VERSION", "v2"),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:     getEnv("AWS_PROFILE", ""),
			AWSEndpoint:    getEnv("AWS_SECRETS_ENDPOINT", ""),
			LocalPath:      getEnv("LOCAL_SECRETS_PATH", "./secrets"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", env != "production"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value formats
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" && c.Database.Password == "" {
		errs = append(errs, errors.New("DATABASE_URL or DB_PASSWORD is required"))
	}
	if c.Gateway.BaseURL == "" {
		errs = append(errs, errors.New("GATEWAY_BASE_URL is required"))
	}
	for _, entry := range c.Callback.AllowedIPs {
		if !validAllowListEntry(entry) {
			errs = append(errs, fmt.Errorf("CALLBACK_ALLOWED_IPS: invalid entry %q", entry))
		}
	}
	for _, entry := range c.Server.TrustedProxies {
		if !validAllowListEntry(entry) {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: invalid entry %q", entry))
		}
	}
	if c.Callback.OrderTokenKey == "" {
		errs = append(errs, errors.New("CALLBACK_ORDER_TOKEN_KEY must not be empty"))
	}

	switch c.Secrets.Backend {
	case "vault":
		if c.Secrets.VaultAddress == "" {
			errs = append(errs, errors.New("VAULT_ADDR is required when SECRET_MANAGER=vault"))
		}
	case "aws":
		if c.Secrets.AWSRegion == "" {
			errs = append(errs, errors.New("AWS_REGION is required when SECRET_MANAGER=aws"))
		}
	case "local":
		if c.Environment == "production" {
			errs = append(errs, errors.New("SECRET_MANAGER=local is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("SECRET_MANAGER: unsupported backend %q", c.Secrets.Backend))
	}

	for name, port := range map[string]int{
		"HTTP_PORT":       c.Server.HTTPPort,
		"ADMIN_GRPC_PORT": c.Server.AdminGRPCPort,
		"METRICS_PORT":    c.Server.MetricsPort,
	} {
		if port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s: invalid port %d", name, port))
		}
	}

	return errors.Join(errs...)
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func validAllowListEntry(entry string) bool {
	if strings.Contains(entry, "/") {
		_, err := netip.ParsePrefix(entry)
		return err == nil
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("5s") or whole seconds ("5")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated value, dropping empty items
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
