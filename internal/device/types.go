package device

import "time"

// Tracking interval bounds in seconds. Commands and API requests outside
// this range are rejected before anything reaches the tracker.
const (
	TrackingIntervalMin = 5
	TrackingIntervalMax = 3600
)

// Defaults applied when a tracker has never reported a value.
const (
	DefaultStatus           = StatusOffline
	DefaultTrackingInterval = 10
	DefaultAudioSampleRate  = 16000
	DefaultAudioFormat      = "wav"
)

// Status is the reported presence of a tracker.
type Status string

// Valid tracker statuses. Trackers report "online" and "error" themselves;
// "offline" typically arrives via the broker LWT when a tracker drops.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// IsValid reports whether s is a recognised status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusError:
		return true
	}
	return false
}

// Device represents a tracker known to the hub.
// This matches the database schema in migrations/20260115_120000_initial_schema.up.sql.
type Device struct {
	// Identity
	ID   string `json:"device_id"`
	Name string `json:"name"`

	// Presence
	Status   Status     `json:"status"`
	LastSeen *time.Time `json:"last_seen,omitempty"`

	// Telemetry (last reported values; nil until first report)
	BatteryLevel    *float64 `json:"battery_level,omitempty"`
	SignalStrength  *float64 `json:"signal_strength,omitempty"`
	FirmwareVersion *string  `json:"firmware_version,omitempty"`

	// Tracking and audio settings
	IsTracking       bool   `json:"is_tracking"`
	TrackingInterval int    `json:"tracking_interval"`
	AudioSampleRate  int    `json:"audio_sample_rate"`
	AudioFormat      string `json:"audio_format"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the Device.
// Pointer fields are re-pointed at copied values so modifications to the
// copy do not affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	if d.LastSeen != nil {
		t := *d.LastSeen
		cpy.LastSeen = &t
	}
	if d.BatteryLevel != nil {
		v := *d.BatteryLevel
		cpy.BatteryLevel = &v
	}
	if d.SignalStrength != nil {
		v := *d.SignalStrength
		cpy.SignalStrength = &v
	}
	if d.FirmwareVersion != nil {
		s := *d.FirmwareVersion
		cpy.FirmwareVersion = &s
	}

	return &cpy
}

// Patch is a partial device update. Nil fields are left untouched; set
// fields overwrite the stored value. Upserting a patch for an unknown
// device creates the row.
//
// Patches are how bus reports reach the registry: a status message sets
// Status and LastSeen, a telemetry message sets BatteryLevel and
// SignalStrength, and neither clobbers what the other wrote.
type Patch struct {
	Name            *string
	Status          *Status
	LastSeen        *time.Time
	BatteryLevel    *float64
	SignalStrength  *float64
	FirmwareVersion *string
}

// IsEmpty reports whether the patch carries no fields at all.
func (p Patch) IsEmpty() bool {
	return p.Name == nil &&
		p.Status == nil &&
		p.LastSeen == nil &&
		p.BatteryLevel == nil &&
		p.SignalStrength == nil &&
		p.FirmwareVersion == nil
}

// ValidateTrackingInterval checks that an interval in seconds is within
// the accepted range.
func ValidateTrackingInterval(seconds int) error {
	if seconds < TrackingIntervalMin || seconds > TrackingIntervalMax {
		return ErrInvalidInterval
	}
	return nil
}
