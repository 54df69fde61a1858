package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
gateways:
  - mac: "00:03:50:01:aa:bb"
    host: "192.168.1.35"
    port: 20000
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

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if len(cfg.Gateways) != 1 || cfg.Gateways[0].MAC != "00:03:50:01:aa:bb" {
		t.Errorf("Gateways = %+v, want one entry with mac 00:03:50:01:aa:bb", cfg.Gateways)
	}

	// Discovery defaults survive a file that never mentions them.
	if cfg.Discovery.ProbeTimeout != 5 {
		t.Errorf("Discovery.ProbeTimeout = %d, want default 5", cfg.Discovery.ProbeTimeout)
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
database:
  path: ""
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty database.path, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Path: "/data/myhome.db"},
			MQTT:     MQTTConfig{QoS: 1},
			API:      APIConfig{Port: 8080},
			Discovery: DiscoveryConfig{
				ProbeTimeout:   5,
				SessionTimeout: 60,
				MaxInFlight:    3,
			},
			ConfigStore: ConfigStoreConfig{Path: "/data/myhome.yaml"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "gateway missing mac",
			mutate: func(c *Config) {
				c.Gateways = []GatewayConfig{{Host: "192.168.1.35", Port: 20000}}
			},
			wantErr: true,
		},
		{
			name: "duplicate gateway mac",
			mutate: func(c *Config) {
				c.Gateways = []GatewayConfig{
					{MAC: "aa:bb", Host: "192.168.1.35", Port: 20000},
					{MAC: "aa:bb", Host: "192.168.1.36", Port: 20000},
				}
			},
			wantErr: true,
		},
		{
			name:    "probe timeout too low",
			mutate:  func(c *Config) { c.Discovery.ProbeTimeout = 2 },
			wantErr: true,
		},
		{
			name:    "probe timeout too high",
			mutate:  func(c *Config) { c.Discovery.ProbeTimeout = 15 },
			wantErr: true,
		},
		{
			name:    "max in flight above cap",
			mutate:  func(c *Config) { c.Discovery.MaxInFlight = 5 },
			wantErr: true,
		},
		{
			name: "session timeout below probe timeout",
			mutate: func(c *Config) {
				c.Discovery.SessionTimeout = 3
			},
			wantErr: true,
		},
		{
			name:    "missing config store path",
			mutate:  func(c *Config) { c.ConfigStore.Path = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
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
		Discovery: DiscoveryConfig{
			ProbeTimeout:   7,
			SessionTimeout: 90,
			SendSpacing:    500,
		},
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

	if got := cfg.GetProbeTimeout().Seconds(); got != 7 {
		t.Errorf("GetProbeTimeout() = %v, want 7", got)
	}

	if got := cfg.GetSessionTimeout().Seconds(); got != 90 {
		t.Errorf("GetSessionTimeout() = %v, want 90", got)
	}

	if got := cfg.GetSendSpacing().Milliseconds(); got != 500 {
		t.Errorf("GetSendSpacing() = %v, want 500ms", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("MYHOME_DATABASE_PATH", "/custom/path.db")
	t.Setenv("MYHOME_MQTT_HOST", "mqtt.example.com")
	t.Setenv("MYHOME_MQTT_USERNAME", "testuser")
	t.Setenv("MYHOME_MQTT_PASSWORD", "testpass")
	t.Setenv("MYHOME_API_HOST", "192.168.1.1")
	t.Setenv("MYHOME_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("MYHOME_CONFIG_STORE_PATH", "/custom/myhome.yaml")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.ConfigStore.Path != "/custom/myhome.yaml" {
		t.Errorf("ConfigStore.Path = %q, want %q", cfg.ConfigStore.Path, "/custom/myhome.yaml")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}

	if cfg.Discovery.MaxInFlight != 3 {
		t.Errorf("defaultConfig Discovery.MaxInFlight = %d, want 3", cfg.Discovery.MaxInFlight)
	}
}
