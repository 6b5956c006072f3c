package domain

import dErrors "bloodlink/pkg/domain-errors"

// Coordinates is a geographic point. The zero value means "no location
// recorded"; entities created without a location rank from the origin,
// matching the legacy data this system migrated from.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinates enforces the both-or-neither invariant at input
// boundaries: a caller may omit location entirely (0, 0) but may not supply
// only one axis.
func NewCoordinates(lat, lon float64) (Coordinates, error) {
	if (lat == 0) != (lon == 0) {
		return Coordinates{}, dErrors.New(dErrors.CodeInvalidInput, "coordinates require both latitude and longitude")
	}
	if lat < -90 || lat > 90 {
		return Coordinates{}, dErrors.New(dErrors.CodeInvalidInput, "latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return Coordinates{}, dErrors.New(dErrors.CodeInvalidInput, "longitude must be between -180 and 180")
	}
	return Coordinates{Lat: lat, Lon: lon}, nil
}

// DistanceSquared returns the squared straight-line distance to other.
// Only relative order matters to callers, so the square root is skipped.
func (c Coordinates) DistanceSquared(other Coordinates) float64 {
	dLat := c.Lat - other.Lat
	dLon := c.Lon - other.Lon
	return dLat*dLat + dLon*dLon
}
