package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMongo    = "mongo"
	StoreDriverSheet    = "sheet"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Store     StoreConfig     `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Mongo     MongoConfig     `mapstructure:",squash"`
	Sheet     SheetConfig     `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Auth      AuthConfig      `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port            string `mapstructure:"SERVER_PORT"`
	Host            string `mapstructure:"SERVER_HOST"`
	Env             string `mapstructure:"ENV"`
	ReadTimeout     string `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout    string `mapstructure:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout string `mapstructure:"SERVER_SHUTDOWN_TIMEOUT"`
}

type StoreConfig struct {
	Driver string `mapstructure:"STORE_DRIVER"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"DATABASE_URL"`
	SQLitePath      string `mapstructure:"SQLITE_PATH"`
	MaxOpenConns    int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime string `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type MongoConfig struct {
	URI      string `mapstructure:"MONGO_URI"`
	Database string `mapstructure:"MONGO_DATABASE"`
}

type SheetConfig struct {
	APIURL  string `mapstructure:"SHEET_API_URL"`
	Timeout string `mapstructure:"SHEET_TIMEOUT"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"REDIS_ENABLED"`
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	CacheTTL string `mapstructure:"CACHE_TTL"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	TokenTTL      string `mapstructure:"TOKEN_TTL"`
	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
}

type SchedulerConfig struct {
	CacheWarmupSpec string `mapstructure:"CACHE_WARMUP_SPEC"`
	DigestSpec      string `mapstructure:"DIGEST_SPEC"`
	Timezone        string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	AllowOverpayment   bool `mapstructure:"ALLOW_OVERPAYMENT"`
	RecentApplications int  `mapstructure:"RECENT_APPLICATIONS"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var defaults = map[string]any{
	"SERVER_PORT":                "8080",
	"SERVER_HOST":                "0.0.0.0",
	"ENV":                        "development",
	"SERVER_READ_TIMEOUT":        "15s",
	"SERVER_WRITE_TIMEOUT":       "15s",
	"SERVER_SHUTDOWN_TIMEOUT":    "30s",
	"STORE_DRIVER":               StoreDriverSQLite,
	"DATABASE_URL":               "",
	"SQLITE_PATH":                "loan-ledger.db",
	"DATABASE_MAX_OPEN_CONNS":    25,
	"DATABASE_MAX_IDLE_CONNS":    5,
	"DATABASE_CONN_MAX_LIFETIME": "5m",
	"MONGO_URI":                  "",
	"MONGO_DATABASE":             "loan_ledger",
	"SHEET_API_URL":              "",
	"SHEET_TIMEOUT":              "10s",
	"REDIS_ENABLED":              false,
	"REDIS_HOST":                 "localhost",
	"REDIS_PORT":                 "6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   0,
	"CACHE_TTL":                  "5m",
	"JWT_SECRET":                 "",
	"TOKEN_TTL":                  "24h",
	"ADMIN_USERNAME":             "admin",
	"ADMIN_PASSWORD":             "",
	"CACHE_WARMUP_SPEC":          "0 */15 * * * *",
	"DIGEST_SPEC":                "0 0 8 * * *",
	"SCHEDULER_TIMEZONE":         "Asia/Kolkata",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"ALLOW_OVERPAYMENT":          false,
	"RECENT_APPLICATIONS":        5,
	"HEALTH_CHECK_TIMEOUT":       "5s",
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	// Don't fail if .env file doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.Store.Driver = strings.ToLower(strings.TrimSpace(config.Store.Driver))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreDriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StoreDriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DATABASE are required for the mongo store")
		}
	case StoreDriverSheet:
		if c.Sheet.APIURL == "" {
			return fmt.Errorf("SHEET_API_URL is required for the sheet store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, sqlite, mongo, sheet; got %q", c.Store.Driver)
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	if c.Business.RecentApplications <= 0 {
		return fmt.Errorf("RECENT_APPLICATIONS must be greater than 0")
	}

	durations := map[string]string{
		"SERVER_READ_TIMEOUT":        c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":       c.Server.WriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT":    c.Server.ShutdownTimeout,
		"DATABASE_CONN_MAX_LIFETIME": c.Database.ConnMaxLifetime,
		"SHEET_TIMEOUT":              c.Sheet.Timeout,
		"CACHE_TTL":                  c.Redis.CacheTTL,
		"TOKEN_TTL":                  c.Auth.TokenTTL,
		"HEALTH_CHECK_TIMEOUT":       c.Health.Timeout,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", key, err)
		}
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// RedisAddr is the host:port of the cache server.
func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func (c *Config) GetReadTimeout() time.Duration     { return mustDuration(c.Server.ReadTimeout) }
func (c *Config) GetWriteTimeout() time.Duration    { return mustDuration(c.Server.WriteTimeout) }
func (c *Config) GetShutdownTimeout() time.Duration { return mustDuration(c.Server.ShutdownTimeout) }
func (c *Config) GetConnMaxLifetime() time.Duration { return mustDuration(c.Database.ConnMaxLifetime) }
func (c *Config) GetSheetTimeout() time.Duration    { return mustDuration(c.Sheet.Timeout) }
func (c *Config) GetCacheTTL() time.Duration        { return mustDuration(c.Redis.CacheTTL) }
func (c *Config) GetTokenTTL() time.Duration        { return mustDuration(c.Auth.TokenTTL) }

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	return mustDuration(c.Health.Timeout)
}

// GetSchedulerLocation returns the time zone cron specs are evaluated in.
func (c *Config) GetSchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
