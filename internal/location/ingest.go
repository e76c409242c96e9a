package location

import (
	"context"
	"fmt"
	"time"
)

// DeviceDirectory is the slice of the device registry the ingestor needs.
// Defined here so this package does not depend on the device package.
type DeviceDirectory interface {
	// Exists reports whether a device is known to the hub.
	Exists(ctx context.Context, deviceID string) bool

	// MarkOnline records device activity (status online, fresh last seen).
	MarkOnline(ctx context.Context, deviceID string) error
}

// MetricsSink receives accepted fixes for time-series dashboards.
// Implemented by the influxdb client; nil disables metric export.
type MetricsSink interface {
	WriteLocationPoint(deviceID string, latitude, longitude float64, satellites int, accuracy string)
}

// Logger defines the logging interface used by the Ingestor.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Ingestor validates and persists position reports from trackers.
//
// Readings from unknown devices and readings with invalid coordinates are
// rejected with a warning and leave no trace in the store. Rejections are
// never reported back to the tracker; the bus path is one-way.
type Ingestor struct {
	repo    Repository
	devices DeviceDirectory
	metrics MetricsSink
	logger  Logger
}

// NewIngestor creates a location ingestor.
// metrics may be nil to disable time-series export.
func NewIngestor(repo Repository, devices DeviceDirectory) *Ingestor {
	return &Ingestor{
		repo:    repo,
		devices: devices,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the ingestor.
func (i *Ingestor) SetLogger(logger Logger) {
	i.logger = logger
}

// SetMetricsSink enables time-series export of accepted fixes.
func (i *Ingestor) SetMetricsSink(sink MetricsSink) {
	i.metrics = sink
}

// Ingest validates a reading and appends it to the store.
//
// On success the originating device is patched online with a fresh last
// seen timestamp, and the fix is exported to the metrics sink if one is
// configured. The returned record carries the derived accuracy grade.
func (i *Ingestor) Ingest(ctx context.Context, reading Reading) (*Record, error) {
	if !i.devices.Exists(ctx, reading.DeviceID) {
		i.logger.Warn("location from unknown device dropped", "device_id", reading.DeviceID)
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, reading.DeviceID)
	}

	if err := ValidateCoordinates(reading.Latitude, reading.Longitude); err != nil {
		i.logger.Warn("location with invalid coordinates dropped",
			"device_id", reading.DeviceID,
			"latitude", reading.Latitude,
			"longitude", reading.Longitude,
			"error", err,
		)
		return nil, err
	}

	timestamp := reading.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	satellites := 0
	if reading.Satellites != nil {
		satellites = *reading.Satellites
	}

	record := &Record{
		DeviceID:       reading.DeviceID,
		Latitude:       reading.Latitude,
		Longitude:      reading.Longitude,
		Timestamp:      timestamp,
		Satellites:     reading.Satellites,
		SignalStrength: reading.SignalStrength,
		Speed:          reading.Speed,
		Altitude:       reading.Altitude,
		Accuracy:       DeriveAccuracy(satellites),
	}

	if err := i.repo.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting location: %w", err)
	}

	// Any accepted fix proves the tracker is alive.
	if err := i.devices.MarkOnline(ctx, reading.DeviceID); err != nil {
		i.logger.Warn("marking device online failed", "device_id", reading.DeviceID, "error", err)
	}

	if i.metrics != nil {
		i.metrics.WriteLocationPoint(record.DeviceID, record.Latitude, record.Longitude,
			satellites, string(record.Accuracy))
	}

	i.logger.Debug("location recorded",
		"device_id", record.DeviceID,
		"latitude", record.Latitude,
		"longitude", record.Longitude,
		"accuracy", record.Accuracy,
	)

	return record, nil
}

// Latest returns the most recent fix for a device.
func (i *Ingestor) Latest(ctx context.Context, deviceID string) (*Record, error) {
	return i.repo.FindLatest(ctx, deviceID)
}

// History returns up to limit fixes for a device, newest first.
func (i *Ingestor) History(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	return i.repo.ListByDevice(ctx, deviceID, limit)
}
