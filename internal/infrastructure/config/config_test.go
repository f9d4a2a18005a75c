package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-home"
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  port: 9090
health:
  probe_delay: 0
  toggle_pause: 50
  history_limit: 200
platform:
  kind: "mqtt"
  name: "hubitat"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-home" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-home")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Health.ProbeDelay != 0 {
		t.Errorf("Health.ProbeDelay = %d, want 0", cfg.Health.ProbeDelay)
	}
	if cfg.Health.TogglePause != 50 {
		t.Errorf("Health.TogglePause = %d, want 50", cfg.Health.TogglePause)
	}
	// Unset keys keep their defaults.
	if cfg.Health.ToggleDelay != 500 {
		t.Errorf("Health.ToggleDelay = %d, want default 500", cfg.Health.ToggleDelay)
	}
	if cfg.Platform.Name != "hubitat" {
		t.Errorf("Platform.Name = %q, want hubitat", cfg.Platform.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"missing backup path", func(c *Config) { c.Backup.Path = "" }, true},
		{"negative delay", func(c *Config) { c.Health.ToggleDelay = -1 }, true},
		{"zero delays allowed", func(c *Config) {
			c.Health.ProbeDelay, c.Health.TogglePause, c.Health.ToggleDelay, c.Health.AuditDelay = 0, 0, 0, 0
		}, false},
		{"zero status window", func(c *Config) { c.Health.StatusWindow = 0 }, true},
		{"negative history limit", func(c *Config) { c.Health.HistoryLimit = -5 }, true},
		{"unknown platform", func(c *Config) { c.Platform.Kind = "zwave" }, true},
		{"mqtt platform without broker", func(c *Config) { c.Platform.Kind = "mqtt" }, true},
		{"mqtt platform with broker", func(c *Config) {
			c.Platform.Kind = "mqtt"
			c.MQTT.Enabled = true
		}, false},
		{"influxdb enabled without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"negative history max age", func(c *Config) { c.Health.HistoryMaxAge = -1 }, true},
		{"zero websocket ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }, true},
		{"zero websocket pong timeout", func(c *Config) { c.WebSocket.PongTimeout = 0 }, true},
		{"zero websocket message size", func(c *Config) { c.WebSocket.MaxMessageSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Platform: PlatformConfig{RequestTimeout: 7},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.Platform.Timeout(); got != 7*time.Second {
		t.Errorf("Platform.Timeout() = %v, want 7s", got)
	}
	if got := Millis(300); got != 300*time.Millisecond {
		t.Errorf("Millis(300) = %v", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("SCENEFIXER_DATABASE_PATH", "/custom/path.db")
	t.Setenv("SCENEFIXER_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SCENEFIXER_MQTT_USERNAME", "testuser")
	t.Setenv("SCENEFIXER_MQTT_PASSWORD", "testpass")
	t.Setenv("SCENEFIXER_API_HOST", "192.168.1.1")
	t.Setenv("SCENEFIXER_API_PORT", "8181")
	t.Setenv("SCENEFIXER_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SCENEFIXER_BACKUP_PATH", "/custom/backups.json")
	t.Setenv("SCENEFIXER_PLATFORM_KIND", "mqtt")

	applyEnvOverrides(cfg)

	checks := []struct {
		name, got, want string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Backup.Path", cfg.Backup.Path, "/custom/backups.json"},
		{"Platform.Kind", cfg.Platform.Kind, "mqtt"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.API.Port != 8181 {
		t.Errorf("API.Port = %d, want 8181", cfg.API.Port)
	}
}

func TestApplyEnvOverrides_IgnoresBadPort(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("SCENEFIXER_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Health.ProbeDelay != 100 || cfg.Health.AuditDelay != 100 {
		t.Errorf("probe/audit delay = %d/%d, want 100/100", cfg.Health.ProbeDelay, cfg.Health.AuditDelay)
	}
	if cfg.Health.TogglePause != 300 {
		t.Errorf("TogglePause = %d, want 300", cfg.Health.TogglePause)
	}
	if cfg.Health.ToggleDelay != 500 {
		t.Errorf("ToggleDelay = %d, want 500", cfg.Health.ToggleDelay)
	}
	if cfg.Health.StatusWindow != 10 {
		t.Errorf("StatusWindow = %d, want 10", cfg.Health.StatusWindow)
	}
	if cfg.Platform.Kind != "memory" {
		t.Errorf("Platform.Kind = %q, want memory", cfg.Platform.Kind)
	}
	if _, err := Default(); err != nil {
		t.Errorf("Default() error = %v", err)
	}
}
