package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testSecret is a JWT secret long enough to pass validation.
const testSecret = "0123456789abcdef0123456789abcdef"

// writeConfigFile writes YAML content to a temp file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "auth:\n  jwt_secret: "+testSecret+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Reconnect.Interval != 5 {
		t.Errorf("MQTT.Reconnect.Interval = %d, want 5", cfg.MQTT.Reconnect.Interval)
	}
	if cfg.MQTT.Reconnect.MaxAttempts != 10 {
		t.Errorf("MQTT.Reconnect.MaxAttempts = %d, want 10", cfg.MQTT.Reconnect.MaxAttempts)
	}
	if cfg.Relay.PingInterval != 30 {
		t.Errorf("Relay.PingInterval = %d, want 30", cfg.Relay.PingInterval)
	}
	if cfg.Tracker.AudioSampleRate != 16000 {
		t.Errorf("Tracker.AudioSampleRate = %d, want 16000", cfg.Tracker.AudioSampleRate)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
mqtt:
  broker:
    host: broker.example.com
    port: 8883
    tls: true
auth:
  jwt_secret: `+testSecret+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want broker.example.com", cfg.MQTT.Broker.Host)
	}
	if !cfg.MQTT.Broker.TLS {
		t.Error("MQTT.Broker.TLS = false, want true")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  path: /from/file.db
auth:
  jwt_secret: `+testSecret+`
`)

	t.Setenv("TRACKHUB_DATABASE_PATH", "/from/env.db")
	t.Setenv("TRACKHUB_MQTT_PORT", "2883")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("Database.Path = %q, want /from/env.db", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Port != 2883 {
		t.Errorf("MQTT.Broker.Port = %d, want 2883", cfg.MQTT.Broker.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestValidateMissingJWTSecret(t *testing.T) {
	cfg := defaultConfig()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for missing JWT secret")
	}
	if !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("Validate() error = %v, want mention of jwt_secret", err)
	}
}

func TestValidateShortJWTSecret(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.JWTSecret = "too-short"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for short JWT secret")
	}
}

func TestValidateQoSBounds(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.JWTSecret = testSecret
	cfg.MQTT.QoS = 3

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for QoS 3")
	}
}

func TestValidateReconnectBudget(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.JWTSecret = testSecret
	cfg.MQTT.Reconnect.MaxAttempts = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for zero reconnect attempts")
	}
}
