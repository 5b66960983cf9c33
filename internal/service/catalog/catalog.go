// internal/service/catalog/catalog.go

package catalog

import (
	"fmt"
	"math"
	"strings"

	"geofinder/internal/domain/place"
	"geofinder/internal/service/geo"
)

// Rating ranges for each category
const (
	marketMinRating      = 4.0
	marketRatingSpan     = 1.0
	restaurantMinRating  = 3.5
	restaurantRatingSpan = 1.5
)

const starGlyph = "⭐"

// PlaceCatalog synthesizes batches of places around a center
type PlaceCatalog struct {
	sampler place.Sampler
	rnd     geo.Source
}

// NewPlaceCatalog creates a new catalog. The sampler and the rating draws share rnd
// only if the caller passes the same source to both.
func NewPlaceCatalog(sampler place.Sampler, rnd geo.Source) *PlaceCatalog {
	return &PlaceCatalog{
		sampler: sampler,
		rnd:     rnd,
	}
}

// Generate creates one place per market name followed by one place per restaurant name
func (c *PlaceCatalog) Generate(
	center place.Coordinate,
	radiusMeters float64,
	marketNames, restaurantNames []string,
) ([]place.Place, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(radiusMeters) || radiusMeters < 0 {
		return nil, fmt.Errorf("%w: radius %f", place.ErrInvalidArgument, radiusMeters)
	}

	places := make([]place.Place, 0, len(marketNames)+len(restaurantNames))

	for i, name := range marketNames {
		p, err := c.newPlace(center, radiusMeters, fmt.Sprintf("market_%d", i), name,
			place.CategoryMarket, marketMinRating, marketRatingSpan)
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}

	for i, name := range restaurantNames {
		p, err := c.newPlace(center, radiusMeters, fmt.Sprintf("rest_%d", i), name,
			place.CategoryRestaurant, restaurantMinRating, restaurantRatingSpan)
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}

	return places, nil
}

// newPlace samples a coordinate and a rating for a single place
func (c *PlaceCatalog) newPlace(
	center place.Coordinate,
	radiusMeters float64,
	id, title string,
	category place.Category,
	minRating, span float64,
) (place.Place, error) {
	coord, err := c.sampler.Sample(center, radiusMeters)
	if err != nil {
		return place.Place{}, fmt.Errorf("error sampling %s: %w", id, err)
	}

	return place.Place{
		ID:            id,
		Title:         title,
		Description:   category.Label(),
		Category:      category,
		Coordinate:    coord,
		Rating:        roundTenth(minRating + c.rnd.Float64()*span),
		DistanceLabel: geo.FormatDistance(geo.Haversine(center, coord)),
	}, nil
}

// Filter returns the places matching the category and a case-insensitive title query
func (c *PlaceCatalog) Filter(places []place.Place, category place.CategoryFilter, query string) []place.Place {
	return Filter(places, category, query)
}

// Filter returns a new slice with the places that pass both filters, in input order
func Filter(places []place.Place, category place.CategoryFilter, query string) []place.Place {
	q := strings.ToLower(query)

	filtered := make([]place.Place, 0, len(places))
	for _, p := range places {
		if !category.Matches(p.Category) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Title), q) {
			continue
		}
		filtered = append(filtered, p)
	}

	return filtered
}

// StarString renders a rating as star glyphs. Any rating whose fractional part is
// at least one half shows all five stars; otherwise floor(rating) stars are shown.
func StarString(rating float64) string {
	if math.IsNaN(rating) {
		return ""
	}

	whole := math.Floor(rating)
	if rating-whole >= 0.5 {
		return strings.Repeat(starGlyph, 5)
	}

	n := int(whole)
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat(starGlyph, n)
}

// roundTenth rounds to one decimal place
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
