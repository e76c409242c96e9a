package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDeviceID is returned when a device ID is empty or malformed.
	ErrInvalidDeviceID = errors.New("device: invalid device id")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrInvalidInterval is returned when a tracking interval is out of range.
	ErrInvalidInterval = errors.New("device: tracking interval out of range")
)
