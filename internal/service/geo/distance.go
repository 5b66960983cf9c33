// internal/service/geo/distance.go

package geo

import (
	"fmt"
	"math"

	"geofinder/internal/domain/place"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances
const EarthRadiusMeters = 6371000.0

// Haversine calculates the great-circle distance between two coordinates in meters.
// Inputs are not validated.
func Haversine(a, b place.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0

	dLat := (b.Latitude - a.Latitude) * math.Pi / 180.0
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180.0

	hSin := math.Sin(dLat / 2)
	hSin *= hSin

	vSin := math.Sin(dLon / 2)
	vSin *= vSin

	h := hSin + math.Cos(lat1)*math.Cos(lat2)*vSin
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Distance validates both coordinates before computing the haversine distance
func Distance(a, b place.Coordinate) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	return Haversine(a, b), nil
}

// FormatDistance renders kilometers with one decimal from 1000 m up, whole meters below
func FormatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.1f km", meters/1000)
	}
	return fmt.Sprintf("%d m", int64(math.Round(meters)))
}
