// internal/server/handlers/session.go

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"geofinder/internal/domain/place"
	"geofinder/internal/domain/session"
	"geofinder/internal/service/geo"
)

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	manager session.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager session.Manager) *SessionHandler {
	return &SessionHandler{
		manager: manager,
	}
}

// CreateSession creates a session at the posted location
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req coordinateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	location, err := req.coordinate()
	if err != nil {
		respondWithDomainError(w, "Invalid location", err)
		return
	}

	s, token, err := h.manager.CreateSession(r.Context(), location)
	if err != nil {
		respondWithDomainError(w, "Failed to create session", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"session": s,
		"token":   token,
	})
}

// GetSession returns a session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithDomainError(w, "Failed to get session", err)
		return
	}

	respondWithJSON(w, http.StatusOK, s)
}

// DeleteSession removes a session
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondWithDomainError(w, "Failed to delete session", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateLocation moves the session's current location
func (h *SessionHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req coordinateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	location, err := req.coordinate()
	if err != nil {
		respondWithDomainError(w, "Invalid location", err)
		return
	}

	s, err := h.manager.UpdateLocation(r.Context(), chi.URLParam(r, "id"), location)
	if err != nil {
		respondWithDomainError(w, "Failed to update location", err)
		return
	}

	respondWithJSON(w, http.StatusOK, s)
}

// Regenerate replaces the session's batch around its current location
func (h *SessionHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Regenerate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithDomainError(w, "Failed to generate places", err)
		return
	}

	respondWithJSON(w, http.StatusOK, s)
}

// GetPlaces returns the places visible under the session's view
func (h *SessionHandler) GetPlaces(w http.ResponseWriter, r *http.Request) {
	places, err := h.manager.VisiblePlaces(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithDomainError(w, "Failed to get places", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"places": places,
		"count":  len(places),
	})
}

type viewRequest struct {
	Filter string `json:"filter"`
	Query  string `json:"query"`
}

// SetView stores the category filter and search query
func (h *SessionHandler) SetView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	places, err := h.manager.SetView(r.Context(), chi.URLParam(r, "id"), place.CategoryFilter(strings.TrimSpace(req.Filter)), req.Query)
	if err != nil {
		respondWithDomainError(w, "Failed to set view", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"places": places,
		"count":  len(places),
	})
}

// GetGeoJSON returns the search area and every place of the batch as GeoJSON
func (h *SessionHandler) GetGeoJSON(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithDomainError(w, "Failed to get session", err)
		return
	}

	data, err := geo.FeatureCollection(s.Location, s.RadiusMeters, s.Places).MarshalJSON()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to encode GeoJSON", err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type selectionRequest struct {
	PlaceID string `json:"place_id"`
}

// SelectPlace selects a place and returns its details card
func (h *SessionHandler) SelectPlace(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.PlaceID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing place_id", nil)
		return
	}

	selection, err := h.manager.SelectPlace(r.Context(), chi.URLParam(r, "id"), req.PlaceID)
	if err != nil {
		respondWithDomainError(w, "Failed to select place", err)
		return
	}

	respondWithJSON(w, http.StatusOK, selection)
}

// GetSelection returns the details card of the selected place, or null
func (h *SessionHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	selection, err := h.manager.CurrentSelection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithDomainError(w, "Failed to get selection", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"selection": selection,
	})
}

// ClearSelection removes the current selection
func (h *SessionHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ClearSelection(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondWithDomainError(w, "Failed to clear selection", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequireSessionToken rejects requests whose bearer token was not issued for the {id} session
func RequireSessionToken(manager session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondWithError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}

			if err := manager.VerifyToken(token, chi.URLParam(r, "id")); err != nil {
				respondWithDomainError(w, "Failed to verify token", err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
