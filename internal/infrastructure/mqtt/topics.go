package mqtt

import "fmt"

// Topic layout for device traffic.
//
// Trackers publish on device/{deviceId}/{type} where type is one of
// status, telemetry, audio or location. The hub publishes control
// envelopes to device/{deviceId}/control and firmware notices to
// device/{deviceId}/firmware. Hub presence is published retained on
// server/status.
const (
	// TopicPrefixDevice is the first segment of every device topic.
	TopicPrefixDevice = "device"

	// TopicServerStatus carries the hub's retained online/offline presence.
	// It is also the last-will topic, so consumers observe abrupt exits.
	TopicServerStatus = "server/status"

	// PayloadOnline and PayloadOffline are the server/status payloads.
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Message types carried in the third topic segment.
const (
	TypeStatus    = "status"
	TypeTelemetry = "telemetry"
	TypeAudio     = "audio"
	TypeLocation  = "location"
)

// Topics provides builders for hub MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	ctrl := topics.DeviceControl("ESP32_001")
//	// Returns: "device/ESP32_001/control"
type Topics struct{}

// DeviceStatus returns the status topic for a device.
//
// Example: device/ESP32_001/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevice, deviceID)
}

// DeviceTelemetry returns the telemetry topic for a device.
//
// Example: device/ESP32_001/telemetry
func (Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/%s/telemetry", TopicPrefixDevice, deviceID)
}

// DeviceAudio returns the bus audio topic for a device (legacy path; live
// audio normally travels over the relay websocket instead).
//
// Example: device/ESP32_001/audio
func (Topics) DeviceAudio(deviceID string) string {
	return fmt.Sprintf("%s/%s/audio", TopicPrefixDevice, deviceID)
}

// DeviceAudioStream returns the viewer-facing topic legacy bus audio is
// forwarded to. Distinct from DeviceAudio so the hub's own subscription
// does not receive its forwards back.
//
// Example: device/ESP32_001/audio/stream
func (Topics) DeviceAudioStream(deviceID string) string {
	return fmt.Sprintf("%s/%s/audio/stream", TopicPrefixDevice, deviceID)
}

// DeviceLocation returns the location topic for a device.
//
// Example: device/ESP32_001/location
func (Topics) DeviceLocation(deviceID string) string {
	return fmt.Sprintf("%s/%s/location", TopicPrefixDevice, deviceID)
}

// DeviceControl returns the control topic commands are published to.
//
// Example: device/ESP32_001/control
func (Topics) DeviceControl(deviceID string) string {
	return fmt.Sprintf("%s/%s/control", TopicPrefixDevice, deviceID)
}

// DeviceFirmware returns the firmware update topic for a device.
//
// Example: device/ESP32_001/firmware
func (Topics) DeviceFirmware(deviceID string) string {
	return fmt.Sprintf("%s/%s/firmware", TopicPrefixDevice, deviceID)
}

// ServerStatus returns the hub presence topic.
func (Topics) ServerStatus() string {
	return TopicServerStatus
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceStatus returns a pattern matching status updates from all devices.
//
// Pattern: device/+/status
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixDevice)
}

// AllDeviceTelemetry returns a pattern matching telemetry from all devices.
//
// Pattern: device/+/telemetry
func (Topics) AllDeviceTelemetry() string {
	return fmt.Sprintf("%s/+/telemetry", TopicPrefixDevice)
}

// AllDeviceAudio returns a pattern matching bus audio from all devices.
//
// Pattern: device/+/audio
func (Topics) AllDeviceAudio() string {
	return fmt.Sprintf("%s/+/audio", TopicPrefixDevice)
}

// AllDeviceLocation returns a pattern matching locations from all devices.
//
// Pattern: device/+/location
func (Topics) AllDeviceLocation() string {
	return fmt.Sprintf("%s/+/location", TopicPrefixDevice)
}

// SubscriptionSet returns the fixed set of inbound topic filters the hub
// subscribes on every (re)connect.
func (t Topics) SubscriptionSet() []string {
	return []string{
		t.AllDeviceStatus(),
		t.AllDeviceTelemetry(),
		t.AllDeviceAudio(),
		t.AllDeviceLocation(),
	}
}
