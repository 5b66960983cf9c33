// internal/service/geo/region.go

package geo

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geofinder/internal/domain/place"
	"geofinder/internal/domain/session"
)

// DefaultFocusSpan is the viewport span, in degrees, used when focusing a place
const DefaultFocusSpan = 0.015

// DirectionsURL returns the maps link that opens turn-by-turn directions to dest
func DirectionsURL(dest place.Coordinate) string {
	return fmt.Sprintf(
		"https://www.google.com/maps/dir/?api=1&destination=%s,%s",
		strconv.FormatFloat(dest.Latitude, 'f', -1, 64),
		strconv.FormatFloat(dest.Longitude, 'f', -1, 64),
	)
}

// ToPoint converts a coordinate to an orb point (lng, lat)
func ToPoint(c place.Coordinate) orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// FocusRegion returns a bound of span degrees on each axis centered on c
func FocusRegion(c place.Coordinate, span float64) orb.Bound {
	return ToPoint(c).Bound().Pad(span / 2)
}

// RegionFor converts a focus bound into the viewport description sent to clients
func RegionFor(c place.Coordinate, span float64) session.Region {
	b := FocusRegion(c, span)
	return session.Region{
		Latitude:       c.Latitude,
		Longitude:      c.Longitude,
		LatitudeDelta:  b.Top() - b.Bottom(),
		LongitudeDelta: b.Right() - b.Left(),
		BBox:           [4]float64{b.Left(), b.Bottom(), b.Right(), b.Top()},
	}
}

// FeatureCollection renders the search circle center and the places as GeoJSON
func FeatureCollection(center place.Coordinate, radiusMeters float64, places []place.Place) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	origin := geojson.NewFeature(ToPoint(center))
	origin.Properties["kind"] = "search_area"
	origin.Properties["radius_meters"] = radiusMeters
	fc.Append(origin)

	for _, p := range places {
		f := geojson.NewFeature(ToPoint(p.Coordinate))
		f.ID = p.ID
		f.Properties["kind"] = "place"
		f.Properties["title"] = p.Title
		f.Properties["description"] = p.Description
		f.Properties["category"] = string(p.Category)
		f.Properties["rating"] = p.Rating
		f.Properties["distance"] = p.DistanceLabel
		fc.Append(f)
	}

	return fc
}
