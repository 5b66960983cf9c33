// internal/domain/place/catalog.go

package place

// Sampler produces random coordinates around a center
type Sampler interface {
	// Sample returns a uniformly distributed coordinate within radiusMeters of center
	Sample(center Coordinate, radiusMeters float64) (Coordinate, error)
}

// Catalog synthesizes and filters generation batches
type Catalog interface {
	// Generate creates one place per name, markets first
	Generate(center Coordinate, radiusMeters float64, marketNames, restaurantNames []string) ([]Place, error)

	// Filter returns the places matching the category and query, in batch order
	Filter(places []Place, category CategoryFilter, query string) []Place
}
