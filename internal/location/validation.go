package location

import (
	"fmt"
	"math"
)

// Coordinate bounds in decimal degrees.
const (
	latitudeMin  = -90.0
	latitudeMax  = 90.0
	longitudeMin = -180.0
	longitudeMax = 180.0
)

// ValidateCoordinates checks that latitude and longitude are finite numbers
// within the WGS84 ranges. NaN and infinities are rejected explicitly;
// they otherwise survive JSON-free decode paths and poison comparisons.
func ValidateCoordinates(latitude, longitude float64) error {
	if math.IsNaN(latitude) || math.IsInf(latitude, 0) {
		return fmt.Errorf("%w: latitude is not finite", ErrInvalidCoordinates)
	}
	if math.IsNaN(longitude) || math.IsInf(longitude, 0) {
		return fmt.Errorf("%w: longitude is not finite", ErrInvalidCoordinates)
	}
	if latitude < latitudeMin || latitude > latitudeMax {
		return fmt.Errorf("%w: latitude %v out of range [%v, %v]",
			ErrInvalidCoordinates, latitude, latitudeMin, latitudeMax)
	}
	if longitude < longitudeMin || longitude > longitudeMax {
		return fmt.Errorf("%w: longitude %v out of range [%v, %v]",
			ErrInvalidCoordinates, longitude, longitudeMin, longitudeMax)
	}
	return nil
}
