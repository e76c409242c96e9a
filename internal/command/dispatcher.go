package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/device"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/mqtt"
)

// Wire command names understood by tracker firmware.
const (
	CmdStartTracking  = "start_tracking"
	CmdStopTracking   = "stop_tracking"
	CmdStartListening = "start_listening"
	CmdStopListening  = "stop_listening"
	CmdRestart        = "restart"
	CmdGetLocation    = "get_location"
)

// controlQoS is the QoS for control and firmware publishes. At-least-once:
// a duplicated command is harmless, a lost one leaves the tracker stale.
const controlQoS = 1

// Publisher is the slice of the bus client the dispatcher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// envelope is the JSON body published on a device's control topic.
// Parameter fields are omitted for commands that do not carry them.
type envelope struct {
	Command   string `json:"command"`
	Interval  *int   `json:"interval,omitempty"`
	Duration  *int   `json:"duration,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// firmwareNotice is the JSON body published on a device's firmware topic.
type firmwareNotice struct {
	Version   string `json:"version"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// Dispatcher builds and publishes control envelopes for trackers.
//
// Every command is fire-and-forget: the method returns once the local
// publish attempt completes. There is no acknowledgment topic and no
// correlation id; whether the tracker received or acted on the command is
// observable only through its subsequent reports.
type Dispatcher struct {
	publisher Publisher
	logger    Logger
	topics    mqtt.Topics
}

// NewDispatcher creates a command dispatcher over the given publisher.
func NewDispatcher(publisher Publisher) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// StartTracking tells a tracker to begin periodic GPS reporting.
// The interval is validated against the accepted range before anything is
// published; an invalid interval never reaches the bus.
func (d *Dispatcher) StartTracking(deviceID string, intervalSeconds int) error {
	if err := device.ValidateTrackingInterval(intervalSeconds); err != nil {
		return fmt.Errorf("%w: interval %d", ErrInvalidParams, intervalSeconds)
	}
	return d.send(deviceID, envelope{
		Command:  CmdStartTracking,
		Interval: &intervalSeconds,
	})
}

// StopTracking tells a tracker to stop periodic GPS reporting.
func (d *Dispatcher) StopTracking(deviceID string) error {
	return d.send(deviceID, envelope{Command: CmdStopTracking})
}

// StartListening tells a tracker to begin streaming microphone audio.
// durationSeconds of zero means stream until told to stop.
func (d *Dispatcher) StartListening(deviceID string, durationSeconds int) error {
	if durationSeconds < 0 {
		return fmt.Errorf("%w: duration %d", ErrInvalidParams, durationSeconds)
	}
	env := envelope{Command: CmdStartListening}
	if durationSeconds > 0 {
		env.Duration = &durationSeconds
	}
	return d.send(deviceID, env)
}

// StopListening tells a tracker to stop streaming microphone audio.
func (d *Dispatcher) StopListening(deviceID string) error {
	return d.send(deviceID, envelope{Command: CmdStopListening})
}

// Restart tells a tracker to reboot.
func (d *Dispatcher) Restart(deviceID string) error {
	return d.send(deviceID, envelope{Command: CmdRestart})
}

// GetCurrentLocation requests an immediate one-shot GPS fix.
// The fix, if any, arrives later on the device's location topic.
func (d *Dispatcher) GetCurrentLocation(deviceID string) error {
	return d.send(deviceID, envelope{Command: CmdGetLocation})
}

// UpdateFirmware announces a new firmware image on the device's firmware
// topic. The tracker downloads the image from the given URL itself.
func (d *Dispatcher) UpdateFirmware(deviceID, version, url string) error {
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	if version == "" || url == "" {
		return fmt.Errorf("%w: version and url required", ErrInvalidParams)
	}

	body, err := json.Marshal(firmwareNotice{
		Version:   version,
		URL:       url,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encoding firmware notice: %w", err)
	}

	topic := d.topics.DeviceFirmware(deviceID)
	if err := d.publisher.Publish(topic, body, controlQoS, false); err != nil {
		return fmt.Errorf("publishing firmware notice: %w", err)
	}

	d.logger.Debug("firmware update dispatched", "device_id", deviceID, "version", version)
	return nil
}

// send marshals an envelope and publishes it on the device's control topic.
func (d *Dispatcher) send(deviceID string, env envelope) error {
	if deviceID == "" {
		return ErrInvalidDeviceID
	}

	env.Timestamp = time.Now().UnixMilli()

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	topic := d.topics.DeviceControl(deviceID)
	if err := d.publisher.Publish(topic, body, controlQoS, false); err != nil {
		return fmt.Errorf("publishing %s: %w", env.Command, err)
	}

	d.logger.Debug("command dispatched", "device_id", deviceID, "command", env.Command)
	return nil
}
