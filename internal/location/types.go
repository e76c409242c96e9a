package location

import "time"

// Accuracy grades a GPS fix by satellite count.
type Accuracy string

// Fix quality grades. A fix with more than AccuracySatelliteThreshold
// satellites is graded high.
const (
	AccuracyHigh Accuracy = "high"
	AccuracyLow  Accuracy = "low"

	AccuracySatelliteThreshold = 4
)

// DeriveAccuracy grades a fix from its satellite count.
func DeriveAccuracy(satellites int) Accuracy {
	if satellites > AccuracySatelliteThreshold {
		return AccuracyHigh
	}
	return AccuracyLow
}

// Reading is a raw position report as it arrives from a tracker.
// Optional fields are pointers; nil means the tracker did not report them.
type Reading struct {
	DeviceID  string
	Latitude  float64
	Longitude float64

	// Timestamp is the device-reported fix time. Zero means unreported;
	// ingest substitutes the arrival time.
	Timestamp time.Time

	Satellites     *int
	SignalStrength *float64
	Speed          *float64
	Altitude       *float64
}

// Record is a persisted location fix. Records are append-only; the hub
// never updates or deletes them.
type Record struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`

	Satellites     *int     `json:"satellites,omitempty"`
	SignalStrength *float64 `json:"signal_strength,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
	Altitude       *float64 `json:"altitude,omitempty"`

	Accuracy  Accuracy  `json:"accuracy"`
	CreatedAt time.Time `json:"created_at"`
}
