// Package config loads the station's configuration from environment
// variables, an optional .env file, and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the inbound HTTP server.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls persistence. When DSN is empty the station runs
// against the in-memory backend instead of Postgres.
type DatabaseConfig struct {
	DSN             string `json:"dsn" yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT"`
}

// AuthConfig controls inbound API authentication.
type AuthConfig struct {
	JWTSecret      string `json:"jwt_secret" yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	UpgraderSecret string `json:"upgrader_secret" yaml:"upgrader_secret" env:"AUTH_UPGRADER_SECRET"`
}

// CollaboratorsConfig names the external HTTP collaborators the station
// talks to outside of its own API surface. Any left blank is simply not
// wired: the upgrader, external-resource adapter, and disaster-recovery
// mirror are each optional depending on deployment.
type CollaboratorsConfig struct {
	UpgraderURL         string `json:"upgrader_url" yaml:"upgrader_url" env:"UPGRADER_URL"`
	ExternalResourceURL string `json:"external_resource_url" yaml:"external_resource_url" env:"EXTERNAL_RESOURCE_URL"`
	DisasterRecoveryURL string `json:"disaster_recovery_url" yaml:"disaster_recovery_url" env:"DISASTER_RECOVERY_URL"`
	LedgerURL           string `json:"ledger_url" yaml:"ledger_url" env:"LEDGER_URL"`
}

// SchedulerConfig controls the request-lifecycle job runner.
type SchedulerConfig struct {
	Tolerance time.Duration `json:"tolerance" yaml:"tolerance" env:"SCHEDULER_TOLERANCE"`
	BatchSize int           `json:"batch_size" yaml:"batch_size" env:"SCHEDULER_BATCH_SIZE"`
	// Cadence is a five-field cron expression driving the scheduler's
	// catch-up sweep (internal/station/scheduler.Scheduler.StartCatchUp);
	// empty disables it.
	Cadence string `json:"cadence" yaml:"cadence" env:"SCHEDULER_CADENCE"`
}

// RateLimitConfig controls the inbound API token-bucket limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int     `json:"burst" yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// Config is the top-level station configuration structure.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Auth          AuthConfig          `json:"auth" yaml:"auth"`
	Scheduler     SchedulerConfig     `json:"scheduler" yaml:"scheduler"`
	RateLimit     RateLimitConfig     `json:"rate_limit" yaml:"rate_limit"`
	Collaborators CollaboratorsConfig `json:"collaborators" yaml:"collaborators"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Scheduler: SchedulerConfig{
			Tolerance: 5 * time.Second,
			BatchSize: 50,
			Cadence:   "*/1 * * * *",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
		},
	}
}

// Load loads configuration from an optional .env file, an optional YAML file
// named by CONFIG_FILE (or configs/config.yaml when unset), and finally
// environment variable overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode errors out when no tagged field is present in the
		// environment; treat that as "no overrides" so local runs work
		// without exporting anything.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	return cfg, nil
}

// LoadFile reads configuration from a YAML file, ignoring environment
// overrides except DATABASE_URL, which still replaces the DSN. Used by
// tests and the -config flag.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyDatabaseURLOverride mirrors the teacher's convention: DATABASE_URL
// overrides any file-based DSN so container deployments need only one var.
func applyDatabaseURLOverride(cfg *Config) {
	if cfg == nil {
		return
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}
