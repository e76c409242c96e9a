package bus

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/device"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/mqtt"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/location"
)

// Registry is the slice of the device registry the router needs.
type Registry interface {
	UpsertDevice(ctx context.Context, id string, patch device.Patch) error
}

// LocationIngestor accepts validated position readings.
type LocationIngestor interface {
	Ingest(ctx context.Context, reading location.Reading) (*location.Record, error)
}

// Publisher sends messages back onto the bus (audio stream forwarding).
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Subscriber registers bus message handlers.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// TelemetrySink receives telemetry values for time-series dashboards.
// Implemented by the influxdb client; nil disables metric export.
type TelemetrySink interface {
	WriteTelemetryMetric(deviceID string, measurement string, value float64)
}

// Logger defines the logging interface used by the Router.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Router dispatches inbound bus messages by topic shape.
//
// Valid topics have exactly three non-empty segments with the device
// prefix: device/{deviceId}/{type}. Everything else is dropped with a
// warning and never reaches a handler.
type Router struct {
	registry  Registry
	locations LocationIngestor
	publisher Publisher
	metrics   TelemetrySink
	logger    Logger
	topics    mqtt.Topics
}

// NewRouter creates a topic router over the given collaborators.
func NewRouter(registry Registry, locations LocationIngestor, publisher Publisher) *Router {
	return &Router{
		registry:  registry,
		locations: locations,
		publisher: publisher,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetTelemetrySink enables time-series export of telemetry values.
func (r *Router) SetTelemetrySink(sink TelemetrySink) {
	r.metrics = sink
}

// Bind subscribes the router to the fixed inbound topic set.
// Call after the bus client is connected; subscriptions are restored on
// reconnect by the client itself.
func (r *Router) Bind(subscriber Subscriber, qos byte) error {
	for _, topic := range r.topics.SubscriptionSet() {
		if err := subscriber.Subscribe(topic, qos, r.Route); err != nil {
			return err
		}
	}
	return nil
}

// Route dispatches a single bus message.
//
// Malformed topics and unknown message types are dropped with a warning
// and a nil return: a misbehaving tracker must not surface errors into the
// bus client. Errors are returned only for downstream failures (storage,
// republish) worth the client's warning log.
func (r *Router) Route(topic string, payload []byte) error {
	deviceID, msgType, ok := splitDeviceTopic(topic)
	if !ok {
		r.logger.Warn("malformed topic dropped", "topic", topic)
		return nil
	}

	ctx := context.Background()
	body := DecodePayload(payload)

	switch msgType {
	case mqtt.TypeStatus:
		return r.handleStatus(ctx, deviceID, body)
	case mqtt.TypeTelemetry:
		return r.handleTelemetry(ctx, deviceID, body)
	case mqtt.TypeLocation:
		return r.handleLocation(ctx, deviceID, body)
	case mqtt.TypeAudio:
		return r.handleAudio(deviceID, body)
	default:
		r.logger.Warn("unknown message type dropped", "topic", topic, "type", msgType)
		return nil
	}
}

// splitDeviceTopic parses device/{deviceId}/{type}.
// Returns ok=false for anything but exactly three non-empty segments with
// the device prefix.
func splitDeviceTopic(topic string) (deviceID, msgType string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return "", "", false
	}
	for _, p := range parts {
		if p == "" {
			return "", "", false
		}
	}
	if parts[0] != mqtt.TopicPrefixDevice {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// handleStatus patches device presence from a status report.
//
// Structured bodies carry a "status" field and optionally firmware info;
// bare-string bodies are the status itself ("connected" from older
// firmware means online).
func (r *Router) handleStatus(ctx context.Context, deviceID string, body Payload) error {
	now := time.Now().UTC()
	patch := device.Patch{LastSeen: &now}

	var reported string
	if body.IsStructured() {
		reported, _ = body.String("status")
		if fw, ok := body.String("firmware_version"); ok {
			patch.FirmwareVersion = &fw
		}
	} else {
		reported = body.Text()
	}

	status := normalizeStatus(reported)
	patch.Status = &status

	if err := r.registry.UpsertDevice(ctx, deviceID, patch); err != nil {
		return err
	}

	r.logger.Debug("device status updated", "device_id", deviceID, "status", status)
	return nil
}

// normalizeStatus maps a reported status string onto the known set.
// Older firmware reports "connected"; anything unrecognised is treated
// as offline rather than stored verbatim.
func normalizeStatus(reported string) device.Status {
	switch device.Status(reported) {
	case device.StatusOnline, device.StatusOffline, device.StatusError:
		return device.Status(reported)
	}
	if reported == "connected" {
		return device.StatusOnline
	}
	return device.StatusOffline
}

// handleTelemetry patches battery and signal readings.
// Trackers report battery percent as "battery" and WiFi RSSI as "rssi".
func (r *Router) handleTelemetry(ctx context.Context, deviceID string, body Payload) error {
	if !body.IsStructured() {
		r.logger.Warn("non-JSON telemetry dropped", "device_id", deviceID)
		return nil
	}

	now := time.Now().UTC()
	patch := device.Patch{LastSeen: &now}

	if battery, ok := body.Float("battery"); ok {
		patch.BatteryLevel = &battery
		if r.metrics != nil {
			r.metrics.WriteTelemetryMetric(deviceID, "battery_level", battery)
		}
	}
	if rssi, ok := body.Float("rssi"); ok {
		patch.SignalStrength = &rssi
		if r.metrics != nil {
			r.metrics.WriteTelemetryMetric(deviceID, "signal_strength", rssi)
		}
	}

	if err := r.registry.UpsertDevice(ctx, deviceID, patch); err != nil {
		return err
	}

	r.logger.Debug("device telemetry updated", "device_id", deviceID)
	return nil
}

// handleLocation converts a position payload into a reading and ingests it.
// Ingest rejections (unknown device, bad coordinates) are already logged
// by the ingestor and must not propagate.
func (r *Router) handleLocation(ctx context.Context, deviceID string, body Payload) error {
	if !body.IsStructured() {
		r.logger.Warn("non-JSON location dropped", "device_id", deviceID)
		return nil
	}

	latitude, latOK := body.Float("latitude")
	longitude, lonOK := body.Float("longitude")
	if !latOK || !lonOK {
		r.logger.Warn("location without coordinates dropped", "device_id", deviceID)
		return nil
	}

	reading := location.Reading{
		DeviceID:  deviceID,
		Latitude:  latitude,
		Longitude: longitude,
		Timestamp: parseTimestamp(body),
	}

	if sats, ok := body.Float("satellites"); ok {
		v := int(sats)
		reading.Satellites = &v
	}
	if speed, ok := body.Float("speed"); ok {
		reading.Speed = &speed
	}
	if altitude, ok := body.Float("altitude"); ok {
		reading.Altitude = &altitude
	}
	if rssi, ok := body.Float("rssi"); ok {
		reading.SignalStrength = &rssi
	}

	_, err := r.locations.Ingest(ctx, reading)
	if err != nil {
		if errors.Is(err, location.ErrUnknownDevice) || errors.Is(err, location.ErrInvalidCoordinates) {
			return nil
		}
		return err
	}

	return nil
}

// parseTimestamp reads a device-reported fix time from the payload.
// Accepts millisecond epoch numbers and RFC3339 strings; returns the zero
// time when absent or unparseable, which ingest replaces with arrival time.
func parseTimestamp(body Payload) time.Time {
	if ms, ok := body.Float("timestamp"); ok {
		return time.UnixMilli(int64(ms)).UTC()
	}
	if s, ok := body.String("timestamp"); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// handleAudio republishes legacy bus audio verbatim for bus-side listeners.
// Audio is never persisted; the forward goes to the device's stream topic
// so the router's own subscription does not receive it back.
func (r *Router) handleAudio(deviceID string, body Payload) error {
	target := r.topics.DeviceAudioStream(deviceID)
	if err := r.publisher.Publish(target, body.Raw, 0, false); err != nil {
		r.logger.Warn("audio forward failed", "device_id", deviceID, "error", err)
		return err
	}

	r.logger.Debug("audio forwarded", "device_id", deviceID, "bytes", len(body.Raw))
	return nil
}
