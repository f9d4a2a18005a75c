package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SceneFixer.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Health    HealthConfig    `yaml:"health"`
	Backup    BackupConfig    `yaml:"backup"`
	Platform  PlatformConfig  `yaml:"platform"`
}

// SiteConfig identifies the home being monitored.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

	// Components overrides Level per component name (prober, auditor,
	// repair, device, scheduler, mqtt, api, ...).
	Components map[string]string `yaml:"components"`
}

// HealthConfig tunes the probe and audit sweeps.
//
// Delays are in milliseconds. Zero delays are allowed and used by tests.
type HealthConfig struct {
	// ProbeDelay is the pause between devices in a full health check.
	ProbeDelay int `yaml:"probe_delay"`

	// TogglePause is the pause between the on and off steps of a toggle probe.
	TogglePause int `yaml:"toggle_pause"`

	// ToggleDelay is the pause between devices in a toggle-all sweep.
	ToggleDelay int `yaml:"toggle_delay"`

	// AuditDelay is the pause between scenes in an audit-all sweep.
	AuditDelay int `yaml:"audit_delay"`

	// StatusWindow is how many recent results decide a device's status.
	StatusWindow int `yaml:"status_window"`

	// HistoryLimit caps stored results per device. 0 keeps everything.
	HistoryLimit int `yaml:"history_limit"`

	// SweepInterval runs a full health check periodically (seconds). 0 disables.
	SweepInterval int `yaml:"sweep_interval"`

	// HistoryMaxAge deletes stored test results older than this many hours
	// at startup and before each scheduled sweep. 0 keeps everything.
	HistoryMaxAge int `yaml:"history_max_age"`
}

// MaxAge returns HistoryMaxAge as a Duration.
func (h HealthConfig) MaxAge() time.Duration {
	return time.Duration(h.HistoryMaxAge) * time.Hour
}

// BackupConfig contains scene backup storage settings.
type BackupConfig struct {
	Path string `yaml:"path"`
}

// PlatformConfig selects the home-automation platform binding.
type PlatformConfig struct {
	// Kind is "mqtt" for a bridge over the broker or "memory" for development.
	Kind string `yaml:"kind"`

	// Name identifies the bridge in MQTT topic paths.
	Name string `yaml:"name"`

	// RequestTimeout bounds each bridge round trip (seconds).
	RequestTimeout int `yaml:"request_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SCENEFIXER_SECTION_KEY
// For example: SCENEFIXER_DATABASE_PATH, SCENEFIXER_API_PORT
//
// Parameters:
//   - path: YAML file to read
//
// Returns:
//   - *Config: validated configuration
//   - error: wrapping os.ErrNotExist for a missing file, or listing every
//     invalid setting
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// It is used when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "home",
			Name: "SceneFixer",
		},
		Database: DatabaseConfig{
			Path:        "./data/scenefixer.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "scenefixer-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 120,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "scenefixer",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Health: HealthConfig{
			ProbeDelay:   100,
			TogglePause:  300,
			ToggleDelay:  500,
			AuditDelay:   100,
			StatusWindow: 10,
		},
		Backup: BackupConfig{
			Path: "./data/scene_backups.json",
		},
		Platform: PlatformConfig{
			Kind:           "memory",
			Name:           "homekit",
			RequestTimeout: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SCENEFIXER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SCENEFIXER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SCENEFIXER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SCENEFIXER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SCENEFIXER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SCENEFIXER_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SCENEFIXER_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("SCENEFIXER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Backups
	if v := os.Getenv("SCENEFIXER_BACKUP_PATH"); v != "" {
		cfg.Backup.Path = v
	}

	// Platform
	if v := os.Getenv("SCENEFIXER_PLATFORM_KIND"); v != "" {
		cfg.Platform.Kind = v
	}
}

// Validate checks the configuration for errors. All problems are reported
// in one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Backup.Path == "" {
		errs = append(errs, "backup.path is required")
	}

	h := c.Health
	if h.ProbeDelay < 0 || h.TogglePause < 0 || h.ToggleDelay < 0 || h.AuditDelay < 0 {
		errs = append(errs, "health delays must not be negative")
	}
	if h.StatusWindow < 1 {
		errs = append(errs, "health.status_window must be at least 1")
	}
	if h.HistoryLimit < 0 {
		errs = append(errs, "health.history_limit must not be negative")
	}
	if h.SweepInterval < 0 {
		errs = append(errs, "health.sweep_interval must not be negative")
	}
	if h.HistoryMaxAge < 0 {
		errs = append(errs, "health.history_max_age must not be negative")
	}

	ws := c.WebSocket
	if ws.PingInterval < 1 {
		errs = append(errs, "websocket.ping_interval must be at least 1 second")
	}
	if ws.PongTimeout < 1 {
		errs = append(errs, "websocket.pong_timeout must be at least 1 second")
	}
	if ws.MaxMessageSize < 1 {
		errs = append(errs, "websocket.max_message_size must be positive")
	}

	switch c.Platform.Kind {
	case "memory":
	case "mqtt":
		if !c.MQTT.Enabled {
			errs = append(errs, "platform.kind mqtt requires mqtt.enabled")
		}
		if c.Platform.Name == "" {
			errs = append(errs, "platform.name is required for the mqtt platform")
		}
	default:
		errs = append(errs, fmt.Sprintf("platform.kind %q must be memory or mqtt", c.Platform.Kind))
	}
	if c.Platform.RequestTimeout < 1 {
		errs = append(errs, "platform.request_timeout must be at least 1 second")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Millis converts a millisecond setting to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Timeout returns the platform request timeout as a Duration.
func (p PlatformConfig) Timeout() time.Duration {
	return time.Duration(p.RequestTimeout) * time.Second
}
