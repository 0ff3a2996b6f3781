// Package config loads application configuration from a YAML file with
// environment variable overrides for credentials.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/crm-tag-sync/internal/alert"
	"github.com/ignite/crm-tag-sync/internal/crm"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	CRM        crm.Config       `yaml:"crm"`
	Sync       SyncConfig       `yaml:"sync"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Alerts     alert.Config     `yaml:"alerts"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the listen host, binding all interfaces on ECS.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the Redis connection used for distributed locking.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SyncConfig controls the periodic label synchronization worker.
type SyncConfig struct {
	Enabled          bool `yaml:"enabled"`
	IntervalMinutes  int  `yaml:"interval_minutes"`
	BatchSize        int  `yaml:"batch_size"`
	BatchDelayMillis int  `yaml:"batch_delay_millis"`
}

// MonitoringConfig controls the weekly snapshot run. RunWeekday uses
// time.Weekday numbering (Sunday = 0).
type MonitoringConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Scope            string `yaml:"scope"`
	BatchSize        int    `yaml:"batch_size"`
	BatchDelayMillis int    `yaml:"batch_delay_millis"`
	RetentionDays    int    `yaml:"retention_days"`
	RunWeekday       int    `yaml:"run_weekday"`
	RunHour          int    `yaml:"run_hour"`
}

// ArchiveConfig holds S3 run archival settings.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
}

// Load reads and parses the config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.CRM.TimeoutSeconds == 0 {
		cfg.CRM.TimeoutSeconds = 60
	}
	if cfg.Sync.IntervalMinutes == 0 {
		cfg.Sync.IntervalMinutes = 60
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 50
	}
	if cfg.Sync.BatchDelayMillis == 0 {
		cfg.Sync.BatchDelayMillis = 1000
	}
	if cfg.Monitoring.Scope == "" {
		cfg.Monitoring.Scope = "active_enrollments"
	}
	if cfg.Monitoring.BatchSize == 0 {
		cfg.Monitoring.BatchSize = 50
	}
	if cfg.Monitoring.BatchDelayMillis == 0 {
		cfg.Monitoring.BatchDelayMillis = 1000
	}
	if cfg.Monitoring.RetentionDays == 0 {
		cfg.Monitoring.RetentionDays = 180
	}
	if cfg.Monitoring.RunWeekday == 0 && cfg.Monitoring.RunHour == 0 {
		// Monday 08:00 unless explicitly scheduled.
		cfg.Monitoring.RunWeekday = int(time.Monday)
		cfg.Monitoring.RunHour = 8
	}
	if cfg.Archive.S3Region == "" {
		cfg.Archive.S3Region = "us-west-2"
	}
	if cfg.Alerts.SMTPPort == 0 {
		cfg.Alerts.SMTPPort = 587
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if baseURL := os.Getenv("CRM_BASE_URL"); baseURL != "" {
		cfg.CRM.BaseURL = baseURL
	}
	if username := os.Getenv("CRM_USERNAME"); username != "" {
		cfg.CRM.Username = username
	}
	if password := os.Getenv("CRM_PASSWORD"); password != "" {
		cfg.CRM.Password = password
	}
	if code := os.Getenv("CRM_ACCOUNT_CODE"); code != "" {
		cfg.CRM.AccountCode = code
	}
	if listID := os.Getenv("CRM_LIST_ID"); listID != "" {
		cfg.CRM.ListID = listID
	}
	if bucket := os.Getenv("ARCHIVE_S3_BUCKET"); bucket != "" {
		cfg.Archive.S3Bucket = bucket
	}

	return cfg, nil
}
