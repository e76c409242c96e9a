package influxdb_test

import (
	"errors"
	"testing"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/config"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "trackhub-dev-token",
		Org:           "trackhub",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error when disabled")
	}
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Non-existent port

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error for invalid URL")
	}
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// =============================================================================
// Zero-Value Safety Tests
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &influxdb.Client{}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for zero client")
	}
}

func TestFlushNotConnected(t *testing.T) {
	client := &influxdb.Client{}
	// Must not panic with no write API configured.
	client.Flush()
}

func TestWriteNotConnected(t *testing.T) {
	client := &influxdb.Client{}
	// Writes on a disconnected client are silently dropped.
	client.WriteTelemetryMetric("ESP32_001", "battery_level", 87)
	client.WriteLocationPoint("ESP32_001", 21.0, 105.8, 6, "high")
	client.WritePoint("hub_stats", nil, map[string]interface{}{"relay_viewers": 1})
}
