// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/nep-campus/credit-ledger/internal/domain/record"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Auth          AuthConfig
	Storage       StorageConfig
	Redis         RedisConfig
	Ledger        LedgerConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name            string
	Environment     Environment
	ShutdownTimeout time.Duration
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Addr returns host:port for the listener.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// StorageConfig selects and configures the ledger store.
type StorageConfig struct {
	Driver      string
	DatabaseURL string
	MaxConns    int
	MinConns    int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	TranscriptTTL time.Duration
	CourseTTL     time.Duration
}

// LedgerConfig holds the credit ledger rules.
type LedgerConfig struct {
	PassGradePoint float64
	// ExitRegression is "reject" or "allow".
	ExitRegression  string
	ConflictRetries int
}

// Policy converts the settings into record.Policy.
func (c LedgerConfig) Policy() record.Policy {
	return record.Policy{
		PassGradePoint:      c.PassGradePoint,
		AllowExitRegression: c.ExitRegression == "allow",
	}
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	ReconcileCron   string
	ReconcileRepair bool
	JobTimeout      time.Duration
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, console
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables without validating it.
func FromEnv() *Config {
	return &Config{
		App: AppConfig{
			Name:            getEnv("APP_NAME", "credit-ledger"),
			Environment:     Environment(getEnv("APP_ENV", string(EnvDevelopment))),
			ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		HTTP: HTTPConfig{
			Host:           getEnv("HTTP_HOST", "0.0.0.0"),
			Port:           getEnvInt("HTTP_PORT", 8080),
			ReadTimeout:    getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTIssuer: getEnv("JWT_ISSUER", ""),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			MaxConns:    getEnvInt("DB_MAX_CONNS", 20),
			MinConns:    getEnvInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Enabled:       getEnvBool("REDIS_ENABLED", false),
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			TranscriptTTL: getEnvDuration("TRANSCRIPT_CACHE_TTL", 10*time.Minute),
			CourseTTL:     getEnvDuration("COURSE_CACHE_TTL", 30*time.Minute),
		},
		Ledger: LedgerConfig{
			PassGradePoint:  getEnvFloat("LEDGER_PASS_GRADE_POINT", record.DefaultPolicy().PassGradePoint),
			ExitRegression:  strings.ToLower(getEnv("LEDGER_EXIT_REGRESSION", "reject")),
			ConflictRetries: getEnvInt("LEDGER_CONFLICT_RETRIES", 1),
		},
		Scheduler: SchedulerConfig{
			ReconcileCron:   getEnv("RECONCILE_CRON", "@every 1h"),
			ReconcileRepair: getEnvBool("RECONCILE_REPAIR", false),
			JobTimeout:      getEnvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, "APP_ENV must be development, staging or production")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, "HTTP_PORT must be 1-65535")
	}

	if !c.IsDevelopment() && c.Auth.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required outside development")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	default:
		errs = append(errs, "STORAGE_DRIVER must be postgres or memory")
	}
	if c.Storage.MinConns > c.Storage.MaxConns {
		errs = append(errs, "DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}

	if c.Ledger.PassGradePoint < 0 || c.Ledger.PassGradePoint > 10 {
		errs = append(errs, "LEDGER_PASS_GRADE_POINT must be 0-10")
	}
	if c.Ledger.ExitRegression != "reject" && c.Ledger.ExitRegression != "allow" {
		errs = append(errs, "LEDGER_EXIT_REGRESSION must be reject or allow")
	}
	if c.Ledger.ConflictRetries < 0 {
		errs = append(errs, "LEDGER_CONFLICT_RETRIES cannot be negative")
	}

	if _, err := cronParser.Parse(c.Scheduler.ReconcileCron); err != nil {
		errs = append(errs, fmt.Sprintf("RECONCILE_CRON is invalid: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvSlice(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
