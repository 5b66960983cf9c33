// internal/server/handlers/geo.go

package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"geofinder/internal/domain/place"
	"geofinder/internal/service/catalog"
	"geofinder/internal/service/geo"
)

// maxBatchSize caps the names accepted by a stateless batch request
const maxBatchSize = 100

// GeoHandler handles the stateless geo and catalog requests
type GeoHandler struct {
	sampler      place.Sampler
	catalog      place.Catalog
	radiusMeters float64
	names        catalog.Names
}

// NewGeoHandler creates a new geo handler
func NewGeoHandler(sampler place.Sampler, placeCatalog place.Catalog, radiusMeters float64, names catalog.Names) *GeoHandler {
	return &GeoHandler{
		sampler:      sampler,
		catalog:      placeCatalog,
		radiusMeters: radiusMeters,
		names:        names,
	}
}

// Sample returns one coordinate sampled around a center
func (h *GeoHandler) Sample(w http.ResponseWriter, r *http.Request) {
	center, err := parseCoordinate(r, "lat", "lng")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := center.Validate(); err != nil {
		respondWithDomainError(w, "Failed to sample", err)
		return
	}

	radius := h.radiusMeters
	if radiusStr := r.URL.Query().Get("radius"); radiusStr != "" {
		radius, err = strconv.ParseFloat(radiusStr, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid radius", err)
			return
		}
	}

	sample, err := h.sampler.Sample(center, radius)
	if err != nil {
		respondWithDomainError(w, "Failed to sample", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"center":        center,
		"radius_meters": radius,
		"coordinate":    sample,
	})
}

// Distance returns the great-circle distance between two coordinates
func (h *GeoHandler) Distance(w http.ResponseWriter, r *http.Request) {
	from, err := parseCoordinate(r, "from_lat", "from_lng")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	to, err := parseCoordinate(r, "to_lat", "to_lng")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	meters, err := geo.Distance(from, to)
	if err != nil {
		respondWithDomainError(w, "Failed to compute distance", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"meters": meters,
		"text":   geo.FormatDistance(meters),
	})
}

// generateRequest is the body of a stateless batch request.
// Nil name lists fall back to the configured names; an empty list yields no places of that category.
type generateRequest struct {
	Location     *coordinateRequest `json:"location"`
	RadiusMeters *float64           `json:"radius_meters"`
	Markets      []string           `json:"markets"`
	Restaurants  []string           `json:"restaurants"`
}

// GeneratePlaces returns a batch of places without creating a session
func (h *GeoHandler) GeneratePlaces(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	center, err := req.Location.coordinate()
	if err != nil {
		respondWithDomainError(w, "Invalid location", err)
		return
	}

	radius := h.radiusMeters
	if req.RadiusMeters != nil {
		radius = *req.RadiusMeters
	}

	markets := req.Markets
	if markets == nil {
		markets = h.names.Markets
	}
	restaurants := req.Restaurants
	if restaurants == nil {
		restaurants = h.names.Restaurants
	}

	if len(markets)+len(restaurants) > maxBatchSize {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("At most %d places per batch", maxBatchSize), nil)
		return
	}

	places, err := h.catalog.Generate(center, radius, markets, restaurants)
	if err != nil {
		respondWithDomainError(w, "Failed to generate places", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"places": places,
		"count":  len(places),
	})
}
