package location

import "errors"

// Domain errors for the location package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, location.ErrInvalidCoordinates) {
//	    // reject the reading
//	}
var (
	// ErrUnknownDevice is returned when a reading arrives for a device the
	// hub has never seen.
	ErrUnknownDevice = errors.New("location: unknown device")

	// ErrInvalidCoordinates is returned when latitude or longitude is
	// non-finite or out of range.
	ErrInvalidCoordinates = errors.New("location: invalid coordinates")

	// ErrNoLocations is returned when a device has no recorded fixes yet.
	ErrNoLocations = errors.New("location: no locations recorded")
)
