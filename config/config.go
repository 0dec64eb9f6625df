package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Vendor        VendorConfig
	Auth          AuthConfig
	Session       SessionConfig
	Audit         AuditConfig
	Throttle      ThrottleConfig
	Observability ObservabilityConfig
	CORS          CORSConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// TrustProxyHeaders takes the client IP from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	AutoMigrate      bool
}

// VendorConfig describes the vendor login endpoint and how requests to it are shaped
type VendorConfig struct {
	BaseURL       string
	LoginPath     string
	LoginMethod   string // GET or POST
	LoginEncoding string // query, form or json
	Fields        VendorFields
	TokenPaths    []string
	Timeout       time.Duration
	UserAgent     string
	DefaultLocale string
}

// VendorFields names the credential fields the vendor expects
type VendorFields struct {
	Username string
	Password string
	Locale   string
	TZOffset string
}

// AuthConfig holds local credential and role settings
type AuthConfig struct {
	SigningKey    string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	AdminUsers    []string
	TrustedHeader string
}

// SessionConfig selects and configures the vendor session store
type SessionConfig struct {
	Backend         string // memory or redis
	TTL             time.Duration
	CleanupInterval time.Duration
	Redis           RedisConfig
}

// RedisConfig holds connection settings for the redis session backend
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Timeout   time.Duration
}

// AuditConfig sizes the asynchronous login audit recorder
type AuditConfig struct {
	BufferSize int
	Workers    int
}

// ThrottleConfig bounds failed vendor logins per username and per client IP
// within a sliding window. A zero limit disables that check.
type ThrottleConfig struct {
	MaxFailuresPerUser int
	MaxFailuresPerIP   int
	Window             time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// CORSConfig lists browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	cfg := Read()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Read loads a .env file when present, then the environment. Nothing is
// validated.
func Read() *Config {
	_ = godotenv.Load(".env")
	return Load()
}

// Load reads the configuration from the environment without validating it
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),

			TrustProxyHeaders: getEnvAsBool("TRUST_PROXY_HEADERS", false),
		},
		Database: loadDatabaseConfig(),
		Vendor: VendorConfig{
			BaseURL:       getEnv("VENDOR_BASE_URL", getEnv("GPS_API_BASE", "https://whatsgps.com/")),
			LoginPath:     getEnv("VENDOR_LOGIN_PATH", "user/login.do"),
			LoginMethod:   strings.ToUpper(getEnv("VENDOR_LOGIN_METHOD", "GET")),
			LoginEncoding: strings.ToLower(getEnv("VENDOR_LOGIN_ENCODING", "query")),
			Fields: VendorFields{
				Username: getEnv("VENDOR_FIELD_USERNAME", "name"),
				Password: getEnv("VENDOR_FIELD_PASSWORD", "password"),
				Locale:   getEnv("VENDOR_FIELD_LOCALE", "lang"),
				TZOffset: getEnv("VENDOR_FIELD_TZ_OFFSET", "timeZoneSecond"),
			},
			TokenPaths:    getEnvAsList("VENDOR_TOKEN_PATHS", []string{"token", "data.token", "data.session"}),
			Timeout:       getEnvAsDuration("VENDOR_TIMEOUT", 15*time.Second),
			UserAgent:     getEnv("VENDOR_USER_AGENT", "tracking-bridge/1.0"),
			DefaultLocale: getEnv("VENDOR_DEFAULT_LOCALE", "en"),
		},
		Auth: AuthConfig{
			SigningKey:    getEnv("JWT_SIGNING_KEY", ""),
			Issuer:        getEnv("JWT_ISSUER", ""),
			Audience:      getEnv("JWT_AUDIENCE", ""),
			TokenTTL:      getEnvAsDuration("JWT_TTL", 2*time.Hour),
			AdminUsers:    getEnvAsList("AUTH_ADMIN_USERS", nil),
			TrustedHeader: getEnv("AUTH_TRUSTED_HEADER", "X-Tracker-User-Id"),
		},
		Session: SessionConfig{
			Backend:         strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
			TTL:             getEnvAsDuration("SESSION_TTL", 8*time.Hour),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
			Redis: RedisConfig{
				Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
				Password:  getEnv("REDIS_PASSWORD", ""),
				DB:        getEnvAsInt("REDIS_DB", 0),
				KeyPrefix: getEnv("SESSION_KEY_PREFIX", "vendor:session:"),
				Timeout:   getEnvAsDuration("REDIS_TIMEOUT", 2*time.Second),
			},
		},
		Audit: AuditConfig{
			BufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			Workers:    getEnvAsInt("AUDIT_WORKERS", 2),
		},
		Throttle: ThrottleConfig{
			MaxFailuresPerUser: getEnvAsInt("LOGIN_MAX_FAILURES_PER_USER", 5),
			MaxFailuresPerIP:   getEnvAsInt("LOGIN_MAX_FAILURES_PER_IP", 20),
			Window:             getEnvAsDuration("LOGIN_FAILURE_WINDOW", 15*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:4200"}),
		},
	}
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}

	// The process must not start without a signing key
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required")
	}

	if _, err := url.Parse(c.Vendor.BaseURL); err != nil || c.Vendor.BaseURL == "" {
		return fmt.Errorf("invalid vendor base URL %q", c.Vendor.BaseURL)
	}
	switch c.Vendor.LoginMethod {
	case "GET", "POST":
	default:
		return fmt.Errorf("unsupported vendor login method %q", c.Vendor.LoginMethod)
	}
	switch c.Vendor.LoginEncoding {
	case "query", "form", "json":
	default:
		return fmt.Errorf("unsupported vendor login encoding %q", c.Vendor.LoginEncoding)
	}
	if len(c.Vendor.TokenPaths) == 0 {
		return fmt.Errorf("at least one vendor token path is required")
	}
	if c.Vendor.Timeout <= 0 {
		return fmt.Errorf("vendor timeout must be positive")
	}

	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unsupported session backend %q", c.Session.Backend)
	}

	if (c.Throttle.MaxFailuresPerUser > 0 || c.Throttle.MaxFailuresPerIP > 0) && c.Throttle.Window <= 0 {
		return fmt.Errorf("login failure window must be positive when throttling is enabled")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Validate checks that a connection can be attempted
func (c *DatabaseConfig) Validate() error {
	if c.ConnectionString == "" && c.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.ConnectionString == "" {
		if c.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "bridge")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "tracking_bridge")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated variable, dropping blank entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
