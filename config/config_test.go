package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"JWT_SIGNING_KEY": "secret",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.False(t, cfg.Server.TrustProxyHeaders)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.True(t, cfg.Database.AutoMigrate)
				assert.Equal(t, "https://whatsgps.com/", cfg.Vendor.BaseURL)
				assert.Equal(t, "user/login.do", cfg.Vendor.LoginPath)
				assert.Equal(t, "GET", cfg.Vendor.LoginMethod)
				assert.Equal(t, "query", cfg.Vendor.LoginEncoding)
				assert.Equal(t, VendorFields{Username: "name", Password: "password", Locale: "lang", TZOffset: "timeZoneSecond"}, cfg.Vendor.Fields)
				assert.Equal(t, []string{"token", "data.token", "data.session"}, cfg.Vendor.TokenPaths)
				assert.Equal(t, 15*time.Second, cfg.Vendor.Timeout)
				assert.Equal(t, "en", cfg.Vendor.DefaultLocale)
				assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
				assert.Equal(t, "X-Tracker-User-Id", cfg.Auth.TrustedHeader)
				assert.Empty(t, cfg.Auth.AdminUsers)
				assert.Equal(t, "memory", cfg.Session.Backend)
				assert.Equal(t, 8*time.Hour, cfg.Session.TTL)
				assert.Equal(t, "vendor:session:", cfg.Session.Redis.KeyPrefix)
				assert.Equal(t, []string{"http://localhost:4200"}, cfg.CORS.AllowedOrigins)
				assert.Equal(t, ThrottleConfig{MaxFailuresPerUser: 5, MaxFailuresPerIP: 20, Window: 15 * time.Minute}, cfg.Throttle)
			},
		},
		{
			name: "vendor and auth overrides",
			envVars: map[string]string{
				"JWT_SIGNING_KEY":       "secret",
				"GPS_API_BASE":          "https://vendor.example.com/api/",
				"VENDOR_LOGIN_METHOD":   "post",
				"VENDOR_LOGIN_ENCODING": "JSON",
				"VENDOR_TOKEN_PATHS":    " result.sid , token ,",
				"VENDOR_TIMEOUT":        "3s",
				"AUTH_ADMIN_USERS":      "alice, Bob",
				"JWT_TTL":               "30m",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://vendor.example.com/api/", cfg.Vendor.BaseURL)
				assert.Equal(t, "POST", cfg.Vendor.LoginMethod)
				assert.Equal(t, "json", cfg.Vendor.LoginEncoding)
				assert.Equal(t, []string{"result.sid", "token"}, cfg.Vendor.TokenPaths)
				assert.Equal(t, 3*time.Second, cfg.Vendor.Timeout)
				assert.Equal(t, []string{"alice", "Bob"}, cfg.Auth.AdminUsers)
				assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
			},
		},
		{
			name: "VENDOR_BASE_URL wins over GPS_API_BASE",
			envVars: map[string]string{
				"JWT_SIGNING_KEY": "secret",
				"GPS_API_BASE":    "https://legacy.example.com/",
				"VENDOR_BASE_URL": "https://vendor.example.com/",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://vendor.example.com/", cfg.Vendor.BaseURL)
			},
		},
		{
			name: "redis session backend",
			envVars: map[string]string{
				"JWT_SIGNING_KEY":    "secret",
				"SESSION_BACKEND":    "Redis",
				"REDIS_ADDR":         "cache:6379",
				"REDIS_DB":           "3",
				"SESSION_KEY_PREFIX": "bridge:",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "redis", cfg.Session.Backend)
				assert.Equal(t, "cache:6379", cfg.Session.Redis.Addr)
				assert.Equal(t, 3, cfg.Session.Redis.DB)
				assert.Equal(t, "bridge:", cfg.Session.Redis.KeyPrefix)
			},
		},
		{
			name: "DATABASE_URL takes precedence",
			envVars: map[string]string{
				"JWT_SIGNING_KEY": "secret",
				"DATABASE_URL":    "postgres://u:p@db.internal:6543/bridge?sslmode=disable",
				"DB_AUTO_MIGRATE": "false",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://u:p@db.internal:6543/bridge?sslmode=disable", cfg.Database.DSN())
				assert.Equal(t, "host=db.internal port=6543 database=bridge", cfg.Database.LogString())
				assert.False(t, cfg.Database.AutoMigrate)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"JWT_SIGNING_KEY": "secret",
				"PORT":            "9443",
				"SERVER_PORT":     "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
				assert.Equal(t, "0.0.0.0:9443", cfg.Server.Address())
			},
		},
		{
			name:    "missing signing key fails fast",
			envVars: map[string]string{},
			wantErr: true,
		},
		{
			name: "unsupported login encoding",
			envVars: map[string]string{
				"JWT_SIGNING_KEY":       "secret",
				"VENDOR_LOGIN_ENCODING": "xml",
			},
			wantErr: true,
		},
		{
			name: "unsupported session backend",
			envVars: map[string]string{
				"JWT_SIGNING_KEY": "secret",
				"SESSION_BACKEND": "memcached",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Database:    DatabaseConfig{Host: "localhost", User: "user", Database: "db"},
		Vendor: VendorConfig{
			BaseURL:       "https://whatsgps.com/",
			LoginMethod:   "GET",
			LoginEncoding: "query",
			TokenPaths:    []string{"token"},
			Timeout:       time.Second,
		},
		Auth:          AuthConfig{SigningKey: "secret"},
		Session:       SessionConfig{Backend: "memory"},
		Observability: ObservabilityConfig{LogLevel: "info"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing database host", func(c *Config) { c.Database.Host = "" }, "database configuration required"},
		{"missing database user", func(c *Config) { c.Database.User = "" }, "database user is required"},
		{"missing signing key", func(c *Config) { c.Auth.SigningKey = "" }, "JWT_SIGNING_KEY is required"},
		{"bad login method", func(c *Config) { c.Vendor.LoginMethod = "PUT" }, "unsupported vendor login method"},
		{"no token paths", func(c *Config) { c.Vendor.TokenPaths = nil }, "vendor token path"},
		{"zero vendor timeout", func(c *Config) { c.Vendor.Timeout = 0 }, "vendor timeout"},
		{"redis without address", func(c *Config) {
			c.Session.Backend = "redis"
			c.Session.Redis.Addr = ""
		}, "REDIS_ADDR"},
		{"missing log level", func(c *Config) { c.Observability.LogLevel = "" }, "log level is required"},
		{"throttle without window", func(c *Config) {
			c.Throttle = ThrottleConfig{MaxFailuresPerUser: 3}
		}, "login failure window"},
		{"throttle disabled", func(c *Config) { c.Throttle = ThrottleConfig{} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		environment string
		want        bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "bridge", Password: "pw", Database: "tb", SSLMode: "disable"}

	assert.Equal(t, "host=localhost port=5432 user=bridge password=pw dbname=tb sslmode=disable", cfg.DSN())
	assert.Equal(t, "host=localhost port=5432 database=tb", cfg.LogString())
	assert.NotContains(t, cfg.LogString(), "pw")
}

func TestDatabaseConfig_Validate(t *testing.T) {
	assert.NoError(t, (&DatabaseConfig{ConnectionString: "postgres://u:p@db/bridge"}).Validate())
	assert.NoError(t, (&DatabaseConfig{Host: "db", User: "u", Database: "bridge"}).Validate())
	assert.ErrorContains(t, (&DatabaseConfig{Host: "db", User: "u"}).Validate(), "database name is required")
	assert.ErrorContains(t, (&DatabaseConfig{}).Validate(), "DATABASE_URL")
}
