package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetryMetric writes a single device telemetry measurement.
//
// This is the primary method for recording tracker telemetry data.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the tracker (e.g., "ESP32_001")
//   - measurement: The metric name (e.g., "battery_level", "signal_strength")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteTelemetryMetric("ESP32_001", "battery_level", 87)
//	client.WriteTelemetryMetric("ESP32_001", "signal_strength", -63)
func (c *Client) WriteTelemetryMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_telemetry",
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLocationPoint writes a GPS fix for long-range trend analysis.
//
// The relational store keeps the authoritative location history; this
// series exists for dashboards (movement heatmaps, fix quality over time).
//
// Parameters:
//   - deviceID: Tracker identifier
//   - latitude, longitude: Validated coordinates in decimal degrees
//   - satellites: Number of satellites used for the fix
//   - accuracy: Derived fix quality ("high" or "low")
func (c *Client) WriteLocationPoint(deviceID string, latitude, longitude float64, satellites int, accuracy string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_location",
		map[string]string{
			"device_id": deviceID,
			"accuracy":  accuracy,
		},
		map[string]interface{}{
			"latitude":   latitude,
			"longitude":  longitude,
			"satellites": satellites,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("hub_stats",
//	    map[string]string{"host": "hub-01"},
//	    map[string]interface{}{"relay_devices": 3, "relay_viewers": 5})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., device-reported fix times).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
