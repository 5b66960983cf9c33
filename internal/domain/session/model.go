// internal/domain/session/model.go

package session

import (
	"errors"
	"time"

	"geofinder/internal/domain/place"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrPlaceNotFound   = errors.New("place not found")
	ErrInvalidToken    = errors.New("invalid session token")
)

// EventType names a session state change
type EventType string

const (
	EventCreated         EventType = "session.created"
	EventBatchGenerated  EventType = "batch.generated"
	EventLocationUpdated EventType = "location.updated"
	EventViewChanged     EventType = "view.changed"
	EventPlaceSelected   EventType = "place.selected"
	EventSelectionClear  EventType = "selection.cleared"
	EventExpired         EventType = "session.expired"
	EventDeleted         EventType = "session.deleted"
)

// Session is the state a map client works against: the current location,
// the current generation batch, the view filter and the selected place
type Session struct {
	ID           string               `json:"id"`
	Location     place.Coordinate     `json:"location"`
	RadiusMeters float64              `json:"radius_meters"`
	Places       []place.Place        `json:"places"`
	Filter       place.CategoryFilter `json:"filter"`
	Query        string               `json:"query"`
	SelectedID   string               `json:"selected_id,omitempty"`
	GeneratedAt  time.Time            `json:"generated_at"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Clone returns a deep copy so callers never share the places slice
func (s Session) Clone() Session {
	c := s
	if s.Places != nil {
		c.Places = make([]place.Place, len(s.Places))
		copy(c.Places, s.Places)
	}
	return c
}

// FindPlace returns the place with the given ID from the current batch
func (s Session) FindPlace(id string) (place.Place, bool) {
	for _, p := range s.Places {
		if p.ID == id {
			return p, true
		}
	}
	return place.Place{}, false
}

// Region is the map viewport focused on a selected place
type Region struct {
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	LatitudeDelta  float64    `json:"latitude_delta"`
	LongitudeDelta float64    `json:"longitude_delta"`
	BBox           [4]float64 `json:"bbox"`
}

// Selection is the details card for the selected place
type Selection struct {
	Place          place.Place `json:"place"`
	DistanceMeters float64     `json:"distance_meters"`
	DistanceText   string      `json:"distance_text"`
	Stars          string      `json:"stars"`
	DirectionsURL  string      `json:"directions_url"`
	Region         Region      `json:"region"`
}

// Event is published on every session state change
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Time      time.Time   `json:"time"`
	Payload   interface{} `json:"payload,omitempty"`
}
