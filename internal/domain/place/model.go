// internal/domain/place/model.go

package place

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidArgument is returned for malformed coordinates, radii or filters
var ErrInvalidArgument = errors.New("invalid argument")

// Coordinate represents a WGS-84 point in decimal degrees
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that the coordinate is finite and within range
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) ||
		math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return fmt.Errorf("%w: coordinate is not finite", ErrInvalidArgument)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidArgument, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidArgument, c.Longitude)
	}
	return nil
}

// Category identifies the kind of point of interest
type Category string

const (
	CategoryMarket     Category = "market"
	CategoryRestaurant Category = "restaurant"
)

// Label returns the human readable description shown on the details card
func (c Category) Label() string {
	switch c {
	case CategoryMarket:
		return "Mercado"
	case CategoryRestaurant:
		return "Restaurante"
	default:
		return string(c)
	}
}

// CategoryFilter selects which categories are visible
type CategoryFilter string

const (
	FilterAll        CategoryFilter = "all"
	FilterMarket     CategoryFilter = "market"
	FilterRestaurant CategoryFilter = "restaurant"
)

// ParseCategoryFilter parses a filter name; the empty string means all
func ParseCategoryFilter(s string) (CategoryFilter, error) {
	switch CategoryFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterMarket:
		return FilterMarket, nil
	case FilterRestaurant:
		return FilterRestaurant, nil
	}
	return "", fmt.Errorf("%w: unknown filter %q", ErrInvalidArgument, s)
}

// Matches reports whether a category passes the filter
func (f CategoryFilter) Matches(c Category) bool {
	if f == FilterAll {
		return true
	}
	return Category(f) == c
}

// Place represents a synthetic point of interest
type Place struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      Category   `json:"category"`
	Coordinate    Coordinate `json:"coordinate"`
	Rating        float64    `json:"rating"`
	DistanceLabel string     `json:"distance_label"`
}
