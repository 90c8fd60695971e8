package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Database        DatabaseConfig        `yaml:"database"`
	Auth            AuthConfig            `yaml:"auth"`
	Planning        PlanningConfig        `yaml:"planning"`
	Scoring         ScoringConfig         `yaml:"scoring"`
	Worker          WorkerConfig          `yaml:"worker"`
	Log             LogConfig             `yaml:"log"`
	SnapshotStorage SnapshotStorageConfig `yaml:"snapshot_storage"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path         string `yaml:"path"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// PlanningConfig contains the rules of the planning day.
type PlanningConfig struct {
	Timezone              string `yaml:"timezone"`
	MaxGoals              int    `yaml:"max_goals"`
	RescheduleHorizonDays int    `yaml:"reschedule_horizon_days"`
	LockAfterDays         int    `yaml:"lock_after_days"`
}

// ScoringConfig contains award settings.
type ScoringConfig struct {
	AwarenessPoints int64 `yaml:"awareness_points"`
	ClosurePoints   int64 `yaml:"closure_points"`
	AutoClosure     bool  `yaml:"auto_closure"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	LockInterval     Duration `yaml:"lock_interval"`
	SnapshotInterval Duration `yaml:"snapshot_interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SnapshotStorageConfig contains S3-compatible backup storage settings.
// An empty Bucket keeps snapshots local.
type SnapshotStorageConfig struct {
	Bucket     string   `yaml:"bucket"`
	Endpoint   string   `yaml:"endpoint"`
	Region     string   `yaml:"region"`
	AccessKey  string   `yaml:"-"` // env-only, never in YAML
	SecretKey  string   `yaml:"-"` // env-only, never in YAML
	UseSSL     *bool    `yaml:"use_ssl"`
	URLExpiry  Duration `yaml:"url_expiry"`
	RetainDays int      `yaml:"retain_days"` // dated archives kept; 0 keeps all
}

// Location resolves the planning timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Planning.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid planning timezone %q: %w", c.Planning.Timezone, err)
	}
	return loc, nil
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("STANDUP_CONFIG_PATH", "config/standup.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadAdmin loads configuration for offline administration commands.
// It applies the same sources as Load but does not require an API key,
// since no server is started.
func LoadAdmin() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("STANDUP_CONFIG_PATH", "config/standup.yaml")
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validateRules(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit config paths.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	useSSL := true
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path:         "data/standup.db",
			SnapshotPath: "data/snapshots/current.db",
		},
		Planning: PlanningConfig{
			Timezone:              "UTC",
			MaxGoals:              10,
			RescheduleHorizonDays: 30,
			LockAfterDays:         7,
		},
		Scoring: ScoringConfig{
			AwarenessPoints: 5,
			ClosurePoints:   5,
			AutoClosure:     true,
		},
		Worker: WorkerConfig{
			LockInterval:     Duration(1 * time.Hour),
			SnapshotInterval: Duration(1 * time.Hour),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		SnapshotStorage: SnapshotStorageConfig{
			Region:     "us-east-1",
			UseSSL:     &useSSL,
			URLExpiry:  Duration(15 * time.Minute),
			RetainDays: 14,
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("STANDUP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("STANDUP_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("STANDUP_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("STANDUP_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	if v := os.Getenv("STANDUP_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STANDUP_SNAPSHOT_PATH"); v != "" {
		cfg.Database.SnapshotPath = v
	}

	// Auth
	if v := os.Getenv("STANDUP_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Planning
	if v := os.Getenv("STANDUP_TIMEZONE"); v != "" {
		cfg.Planning.Timezone = v
	}
	envInt("STANDUP_MAX_GOALS", &cfg.Planning.MaxGoals)
	envInt("STANDUP_RESCHEDULE_HORIZON_DAYS", &cfg.Planning.RescheduleHorizonDays)
	envInt("STANDUP_LOCK_AFTER_DAYS", &cfg.Planning.LockAfterDays)

	// Scoring
	if v := os.Getenv("STANDUP_AWARENESS_POINTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Scoring.AwarenessPoints = n
		}
	}
	if v := os.Getenv("STANDUP_CLOSURE_POINTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Scoring.ClosurePoints = n
		}
	}
	if v := os.Getenv("STANDUP_AUTO_CLOSURE"); v != "" {
		cfg.Scoring.AutoClosure = v == "true" || v == "1"
	}

	// Worker
	envDuration("STANDUP_LOCK_INTERVAL", &cfg.Worker.LockInterval)
	envDuration("STANDUP_SNAPSHOT_INTERVAL", &cfg.Worker.SnapshotInterval)

	// Log
	if v := os.Getenv("STANDUP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STANDUP_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Snapshot storage
	if v := os.Getenv("STANDUP_SNAPSHOT_BUCKET"); v != "" {
		cfg.SnapshotStorage.Bucket = v
	}
	if v := os.Getenv("STANDUP_S3_ENDPOINT"); v != "" {
		cfg.SnapshotStorage.Endpoint = v
	}
	if v := os.Getenv("STANDUP_S3_REGION"); v != "" {
		cfg.SnapshotStorage.Region = v
	}
	if v := os.Getenv("STANDUP_S3_ACCESS_KEY"); v != "" {
		cfg.SnapshotStorage.AccessKey = v
	}
	if v := os.Getenv("STANDUP_S3_SECRET_KEY"); v != "" {
		cfg.SnapshotStorage.SecretKey = v
	}
	if v := os.Getenv("STANDUP_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.SnapshotStorage.UseSSL = &useSSL
	}
	envDuration("STANDUP_S3_URL_EXPIRY", &cfg.SnapshotStorage.URLExpiry)
	envInt("STANDUP_S3_RETAIN_DAYS", &cfg.SnapshotStorage.RetainDays)
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// validate checks that configuration values are usable.
// In dev mode (STANDUP_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if err := c.validateRules(); err != nil {
		return err
	}

	if os.Getenv("STANDUP_DEV_MODE") == "true" {
		return nil
	}
	if c.Auth.APIKey == "" {
		return errors.New("STANDUP_API_KEY is required")
	}
	return nil
}

// validateRules checks the planning and scoring settings.
func (c *Config) validateRules() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Planning.MaxGoals < 3 {
		return fmt.Errorf("planning.max_goals must be at least 3, got %d", c.Planning.MaxGoals)
	}
	if c.Planning.RescheduleHorizonDays < 1 {
		return fmt.Errorf("planning.reschedule_horizon_days must be positive, got %d", c.Planning.RescheduleHorizonDays)
	}
	if c.Planning.LockAfterDays < 1 {
		return fmt.Errorf("planning.lock_after_days must be positive, got %d", c.Planning.LockAfterDays)
	}
	if c.Scoring.AwarenessPoints < 0 || c.Scoring.ClosurePoints < 0 {
		return errors.New("scoring points must not be negative")
	}
	if c.SnapshotStorage.RetainDays < 0 {
		return fmt.Errorf("snapshot_storage.retain_days must not be negative, got %d", c.SnapshotStorage.RetainDays)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
