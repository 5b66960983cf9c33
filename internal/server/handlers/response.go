// internal/server/handlers/response.go

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"geofinder/internal/domain/place"
	"geofinder/internal/domain/session"
	"geofinder/internal/logger"
)

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	response := map[string]string{"error": message}

	if err != nil && code >= 500 {
		logger.L().Error("HTTP error", "code", code, "message", message, "error", err)
	}

	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}

// respondWithDomainError maps domain errors to status codes
func respondWithDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, place.ErrInvalidArgument):
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, session.ErrInvalidToken):
		respondWithError(w, http.StatusUnauthorized, "Invalid session token", nil)
	case errors.Is(err, session.ErrSessionNotFound):
		respondWithError(w, http.StatusNotFound, "Session not found", nil)
	case errors.Is(err, session.ErrPlaceNotFound):
		respondWithError(w, http.StatusNotFound, "Place not found", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, message, err)
	}
}

// decodeJSON reads a request body into v, rejecting unknown fields
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return err
	}
	return nil
}

// coordinateRequest is a coordinate in a request body; both fields are required
type coordinateRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// coordinate returns the posted coordinate, failing when a field is absent
func (c *coordinateRequest) coordinate() (place.Coordinate, error) {
	if c == nil || c.Latitude == nil || c.Longitude == nil {
		return place.Coordinate{}, fmt.Errorf("%w: latitude and longitude are required", place.ErrInvalidArgument)
	}
	return place.Coordinate{Latitude: *c.Latitude, Longitude: *c.Longitude}, nil
}

// parseCoordinate reads a coordinate from two query parameters
func parseCoordinate(r *http.Request, latKey, lngKey string) (place.Coordinate, error) {
	latStr := r.URL.Query().Get(latKey)
	lngStr := r.URL.Query().Get(lngKey)

	if latStr == "" || lngStr == "" {
		return place.Coordinate{}, fmt.Errorf("missing %s or %s", latKey, lngKey)
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return place.Coordinate{}, fmt.Errorf("invalid %s", latKey)
	}

	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return place.Coordinate{}, fmt.Errorf("invalid %s", lngKey)
	}

	return place.Coordinate{Latitude: lat, Longitude: lng}, nil
}
