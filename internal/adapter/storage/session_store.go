// internal/adapter/storage/session_store.go

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"geofinder/internal/domain/place"
	"geofinder/internal/domain/session"
)

const sessionSchema = `
	CREATE EXTENSION IF NOT EXISTS postgis;

	CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		location      GEOGRAPHY(POINT, 4326) NOT NULL,
		radius_meters DOUBLE PRECISION NOT NULL,
		places        JSONB NOT NULL DEFAULT '[]',
		filter        TEXT NOT NULL DEFAULT 'all',
		query         TEXT NOT NULL DEFAULT '',
		selected_id   TEXT NOT NULL DEFAULT '',
		generated_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS sessions_updated_at_idx ON sessions (updated_at);
`

// SessionStore implements session storage on PostgreSQL with PostGIS
type SessionStore struct {
	db *pgxpool.Pool
}

// NewSessionStore creates a new session store
func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{
		db: db,
	}
}

// EnsureSchema creates the sessions table if it does not exist
func (s *SessionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, sessionSchema); err != nil {
		return fmt.Errorf("error creating sessions schema: %w", err)
	}
	return nil
}

// Save inserts or replaces a session
func (s *SessionStore) Save(ctx context.Context, sess session.Session) error {
	query := `
		INSERT INTO sessions (
			id, location, radius_meters, places,
			filter, query, selected_id,
			generated_at, created_at, updated_at
		) VALUES (
			$1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4, $5,
			$6, $7, $8,
			$9, $10, $11
		)
		ON CONFLICT (id) DO UPDATE
		SET
			location = ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography,
			radius_meters = $4,
			places = $5,
			filter = $6,
			query = $7,
			selected_id = $8,
			generated_at = $9,
			updated_at = $11
	`

	placesJSON, err := json.Marshal(sess.Places)
	if err != nil {
		return fmt.Errorf("error marshaling places: %w", err)
	}

	var generatedAt *time.Time
	if !sess.GeneratedAt.IsZero() {
		generatedAt = &sess.GeneratedAt
	}

	_, err = s.db.Exec(
		ctx,
		query,
		sess.ID,
		sess.Location.Longitude,
		sess.Location.Latitude,
		sess.RadiusMeters,
		placesJSON,
		string(sess.Filter),
		sess.Query,
		sess.SelectedID,
		generatedAt,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

// Get retrieves a session by ID
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	query := `
		SELECT
			id,
			ST_Y(location::geometry) as lat, ST_X(location::geometry) as lng,
			radius_meters, places,
			filter, query, selected_id,
			generated_at, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`

	var sess session.Session
	var filter string
	var placesJSON []byte
	var generatedAt *time.Time

	err := s.db.QueryRow(ctx, query, id).Scan(
		&sess.ID,
		&sess.Location.Latitude,
		&sess.Location.Longitude,
		&sess.RadiusMeters,
		&placesJSON,
		&filter,
		&sess.Query,
		&sess.SelectedID,
		&generatedAt,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("error querying session: %w", err)
	}

	sess.Filter = place.CategoryFilter(filter)
	if generatedAt != nil {
		sess.GeneratedAt = *generatedAt
	}

	if err := json.Unmarshal(placesJSON, &sess.Places); err != nil {
		return nil, fmt.Errorf("error unmarshaling places: %w", err)
	}

	return &sess, nil
}

// Delete removes a session
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

// ListIdleSince returns the IDs of sessions not updated since t
func (s *SessionStore) ListIdleSince(ctx context.Context, t time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM sessions WHERE updated_at < $1 ORDER BY updated_at`, t)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning session id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return ids, nil
}
