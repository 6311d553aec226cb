package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTempConfig writes YAML content to a temp file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Minimal file; everything else should come from defaults.
	path := writeTempConfig(t, `
service:
  id: test-site
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "./data/nexa.db" {
		t.Errorf("database.path = %q, want default", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("mqtt.broker.port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("api.port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Automation.ActionTimeout != 10 {
		t.Errorf("automation.action_timeout = %d, want 10", cfg.Automation.ActionTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
service:
  id: test-site
database:
  path: /tmp/other.db
api:
  port: 9090
automation:
  action_timeout: 5
  max_execution_time: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("api.port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Automation.ActionTimeout != 5 {
		t.Errorf("automation.action_timeout = %d, want 5", cfg.Automation.ActionTimeout)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, `
service:
  id: test-site
database:
  path: /tmp/from-file.db
`)

	t.Setenv("NEXA_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("NEXA_MQTT_HOST", "broker.internal")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("database.path = %q, want env override", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.internal" {
		t.Errorf("mqtt.broker.host = %q, want env override", cfg.MQTT.Broker.Host)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "service: [not: valid: yaml")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(_ *Config) {},
		},
		{
			name:    "empty service id",
			mutate:  func(c *Config) { c.Service.ID = "" },
			wantErr: "service.id",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid mqtt port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: "mqtt.broker.port",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "zero action timeout",
			mutate:  func(c *Config) { c.Automation.ActionTimeout = 0 },
			wantErr: "automation.action_timeout",
		},
		{
			name: "execution limit below action timeout",
			mutate: func(c *Config) {
				c.Automation.ActionTimeout = 30
				c.Automation.MaxExecutionTime = 10
			},
			wantErr: "max_execution_time",
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Org = "nexa"
				c.InfluxDB.Bucket = "telemetry"
			},
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
