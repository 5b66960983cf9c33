// internal/domain/session/manager.go

package session

import (
	"context"
	"time"

	"geofinder/internal/domain/place"
)

// Store defines the storage interface for sessions
type Store interface {
	// Save inserts or replaces a session
	Save(ctx context.Context, s Session) error

	// Get retrieves a session by ID, returning ErrSessionNotFound when absent
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session; deleting a missing session is not an error
	Delete(ctx context.Context, id string) error

	// ListIdleSince returns the IDs of sessions not updated since t
	ListIdleSince(ctx context.Context, t time.Time) ([]string, error)
}

// Manager defines the interface for session management
type Manager interface {
	// CreateSession creates a session at a location and generates its first batch
	CreateSession(ctx context.Context, location place.Coordinate) (*Session, string, error)

	// GetSession returns a session by ID
	GetSession(ctx context.Context, id string) (*Session, error)

	// DeleteSession removes a session
	DeleteSession(ctx context.Context, id string) error

	// UpdateLocation moves the session's current location
	UpdateLocation(ctx context.Context, id string, location place.Coordinate) (*Session, error)

	// Regenerate replaces the batch with a new one around the current location
	Regenerate(ctx context.Context, id string) (*Session, error)

	// SetView stores the filter and query and returns the visible places
	SetView(ctx context.Context, id string, filter place.CategoryFilter, query string) ([]place.Place, error)

	// VisiblePlaces returns the places matching the stored filter and query
	VisiblePlaces(ctx context.Context, id string) ([]place.Place, error)

	// SelectPlace replaces the current selection and returns its details card
	SelectPlace(ctx context.Context, id, placeID string) (*Selection, error)

	// CurrentSelection returns the details card of the selected place, nil when none
	CurrentSelection(ctx context.Context, id string) (*Selection, error)

	// ClearSelection removes the current selection
	ClearSelection(ctx context.Context, id string) error

	// VerifyToken checks that a bearer token was issued for the session
	VerifyToken(token, id string) error
}
