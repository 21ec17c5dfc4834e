package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the DayBetter bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cloud    CloudConfig    `yaml:"cloud"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CloudConfig contains DayBetter cloud API settings.
// The API token authenticates certificate-bundle downloads; without it
// the bridge can only connect using certificates already on disk or in
// the local store.
type CloudConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`

	// AccountID keys locally cached certificate bundles. Bundles from
	// one account are never served to another.
	AccountID string `yaml:"account_id"`
}

// DatabaseConfig contains SQLite database settings for the local
// certificate-bundle cache.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT connection settings.
//
// The broker address itself is not configured here: it arrives inside the
// certificate bundle. Host and Port act as an override for test brokers
// and are normally left empty.
type MQTTConfig struct {
	// CertsDir is where materialised certificate files live. Empty means
	// a fresh temporary directory per run.
	CertsDir string `yaml:"certs_dir"`

	// Host and Port override the broker address from the certificate
	// bundle when set. Leave empty in production.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// HealthCheckInterval is the period of the background connection
	// probe, in seconds.
	HealthCheckInterval int `yaml:"health_check_interval"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	// MaxAttempts bounds consecutive reconnect attempts. Once exhausted
	// the bridge stays disconnected until restarted.
	MaxAttempts int `yaml:"max_attempts"`

	// MaxDelay caps the exponential backoff between attempts, in seconds.
	MaxDelay int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for sensor telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DAYBETTER_SECTION_KEY
// For example: DAYBETTER_CLOUD_TOKEN, DAYBETTER_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			BaseURL:   "https://api.daybetter.com",
			AccountID: "default",
		},
		Database: DatabaseConfig{
			Path:        "./data/daybetter.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				MaxAttempts: 3,
				MaxDelay:    30,
			},
			HealthCheckInterval: 30,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "daybetter",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DAYBETTER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud - the token is a secret, prefer the environment over the file
	if v := os.Getenv("DAYBETTER_CLOUD_TOKEN"); v != "" {
		cfg.Cloud.Token = v
	}
	if v := os.Getenv("DAYBETTER_CLOUD_BASE_URL"); v != "" {
		cfg.Cloud.BaseURL = v
	}
	if v := os.Getenv("DAYBETTER_CLOUD_ACCOUNT_ID"); v != "" {
		cfg.Cloud.AccountID = v
	}

	// Database
	if v := os.Getenv("DAYBETTER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DAYBETTER_MQTT_CERTS_DIR"); v != "" {
		cfg.MQTT.CertsDir = v
	}

	// InfluxDB
	if v := os.Getenv("DAYBETTER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Cloud validation
	if c.Cloud.BaseURL == "" {
		errs = append(errs, "cloud.base_url is required")
	}
	if c.Cloud.AccountID == "" {
		errs = append(errs, "cloud.account_id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "mqtt.reconnect.max_attempts must not be negative")
	}
	if c.MQTT.Reconnect.MaxDelay < 1 {
		errs = append(errs, "mqtt.reconnect.max_delay must be at least 1 second")
	}
	if c.MQTT.HealthCheckInterval < 1 {
		errs = append(errs, "mqtt.health_check_interval must be at least 1 second")
	}

	// InfluxDB validation - only when telemetry is switched on
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb.enabled is true")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb.enabled is true")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb.enabled is true")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetBusyTimeout returns the SQLite busy timeout as a Duration.
func (c *Config) GetBusyTimeout() time.Duration {
	return time.Duration(c.Database.BusyTimeout) * time.Second
}

// GetHealthCheckInterval returns the MQTT health check period as a Duration.
func (c MQTTConfig) GetHealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckInterval) * time.Second
}

// GetReconnectMaxDelay returns the reconnect backoff ceiling as a Duration.
func (c MQTTConfig) GetReconnectMaxDelay() time.Duration {
	return time.Duration(c.Reconnect.MaxDelay) * time.Second
}

// GetFlushInterval returns the InfluxDB flush interval as a Duration.
func (c *Config) GetFlushInterval() time.Duration {
	return time.Duration(c.InfluxDB.FlushInterval) * time.Second
}
