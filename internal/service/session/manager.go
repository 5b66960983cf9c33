// internal/service/session/manager.go

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"geofinder/internal/domain/place"
	"geofinder/internal/domain/session"
	"geofinder/internal/metrics"
	"geofinder/internal/service/catalog"
	"geofinder/internal/service/geo"
)

// Publisher publishes raw event payloads; *nats.Conn satisfies it
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NopPublisher drops every event, used when no event bus is configured
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(string, []byte) error { return nil }

// Tokens issues and verifies session-bound bearer tokens; *TokenIssuer satisfies it
type Tokens interface {
	Issue(sessionID string) (string, error)
	Verify(token, sessionID string) error
}

// SessionManagerConfig contains configuration for the session manager
type SessionManagerConfig struct {
	RadiusMeters  float64
	Names         catalog.Names
	FocusSpan     float64
	EventsTopic   string
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// SessionManager implements the session.Manager interface
type SessionManager struct {
	store    session.Store
	catalog  place.Catalog
	eventBus Publisher
	tokens   Tokens
	config   SessionManagerConfig
	logger   *slog.Logger
	locks    sync.Map
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSessionManager creates a new session manager and starts the idle sweep
func NewSessionManager(
	store session.Store,
	placeCatalog place.Catalog,
	eventBus Publisher,
	tokens Tokens,
	config SessionManagerConfig,
	logger *slog.Logger,
) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())

	if eventBus == nil {
		eventBus = NopPublisher{}
	}
	if config.FocusSpan <= 0 {
		config.FocusSpan = geo.DefaultFocusSpan
	}

	sm := &SessionManager{
		store:    store,
		catalog:  placeCatalog,
		eventBus: eventBus,
		tokens:   tokens,
		config:   config,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}

	if config.SweepInterval > 0 && config.IdleTTL > 0 {
		sm.wg.Add(1)
		go sm.sweepIdleSessions()
	}

	return sm
}

// CreateSession creates a session at a location, generates its first batch and issues a token
func (sm *SessionManager) CreateSession(ctx context.Context, location place.Coordinate) (*session.Session, string, error) {
	if err := location.Validate(); err != nil {
		return nil, "", err
	}

	places, err := sm.generate(location)
	if err != nil {
		return nil, "", err
	}

	now := sm.now()
	s := session.Session{
		ID:           uuid.New().String(),
		Location:     location,
		RadiusMeters: sm.config.RadiusMeters,
		Places:       places,
		Filter:       place.FilterAll,
		GeneratedAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	token, err := sm.tokens.Issue(s.ID)
	if err != nil {
		return nil, "", err
	}

	if err := sm.store.Save(ctx, s); err != nil {
		return nil, "", fmt.Errorf("error saving session: %w", err)
	}

	metrics.SessionsCreatedTotal.Inc()
	sm.logger.Info("session created", "session_id", s.ID, "places", len(places))

	sm.publish(s.ID, session.EventCreated, map[string]interface{}{"location": s.Location})
	sm.publish(s.ID, session.EventBatchGenerated, map[string]interface{}{"count": len(places)})

	return &s, token, nil
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return sm.store.Get(ctx, id)
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(ctx context.Context, id string) error {
	unlock := sm.lock(id)
	defer unlock()

	if _, err := sm.store.Get(ctx, id); err != nil {
		return err
	}

	if err := sm.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}

	sm.locks.Delete(id)
	sm.logger.Info("session deleted", "session_id", id)
	sm.publish(id, session.EventDeleted, nil)
	return nil
}

// UpdateLocation moves the session's current location. An invalid location leaves the session unchanged.
func (sm *SessionManager) UpdateLocation(ctx context.Context, id string, location place.Coordinate) (*session.Session, error) {
	if err := location.Validate(); err != nil {
		return nil, err
	}

	s, err := sm.mutate(ctx, id, func(s *session.Session) error {
		s.Location = location
		return nil
	})
	if err != nil {
		return nil, err
	}

	sm.publish(s.ID, session.EventLocationUpdated, map[string]interface{}{"location": location})
	return s, nil
}

// Regenerate replaces the batch around the current location and clears the selection
func (sm *SessionManager) Regenerate(ctx context.Context, id string) (*session.Session, error) {
	s, err := sm.mutate(ctx, id, func(s *session.Session) error {
		places, err := sm.generate(s.Location)
		if err != nil {
			return err
		}

		s.Places = places
		s.RadiusMeters = sm.config.RadiusMeters
		s.SelectedID = ""
		s.GeneratedAt = sm.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sm.publish(s.ID, session.EventBatchGenerated, map[string]interface{}{"count": len(s.Places)})
	return s, nil
}

// SetView stores the filter and query and returns the visible places
func (sm *SessionManager) SetView(ctx context.Context, id string, filter place.CategoryFilter, query string) ([]place.Place, error) {
	filter, err := place.ParseCategoryFilter(string(filter))
	if err != nil {
		return nil, err
	}

	s, err := sm.mutate(ctx, id, func(s *session.Session) error {
		s.Filter = filter
		s.Query = query
		return nil
	})
	if err != nil {
		return nil, err
	}

	visible := sm.catalog.Filter(s.Places, s.Filter, s.Query)
	sm.publish(s.ID, session.EventViewChanged, map[string]interface{}{
		"filter": s.Filter,
		"query":  s.Query,
		"count":  len(visible),
	})

	return visible, nil
}

// VisiblePlaces returns the places matching the stored filter and query
func (sm *SessionManager) VisiblePlaces(ctx context.Context, id string) ([]place.Place, error) {
	s, err := sm.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sm.catalog.Filter(s.Places, s.Filter, s.Query), nil
}

// SelectPlace replaces the current selection. An unknown place leaves the prior selection in place.
func (sm *SessionManager) SelectPlace(ctx context.Context, id, placeID string) (*session.Selection, error) {
	var selection session.Selection

	_, err := sm.mutate(ctx, id, func(s *session.Session) error {
		p, ok := s.FindPlace(placeID)
		if !ok {
			return fmt.Errorf("%w: %s", session.ErrPlaceNotFound, placeID)
		}

		selection = sm.describe(s.Location, p)
		s.SelectedID = p.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SelectionsTotal.WithLabelValues(string(selection.Place.Category)).Inc()
	sm.publish(id, session.EventPlaceSelected, selection)

	return &selection, nil
}

// CurrentSelection returns the details card for the selected place, or nil when nothing is selected
func (sm *SessionManager) CurrentSelection(ctx context.Context, id string) (*session.Selection, error) {
	s, err := sm.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p, ok := s.FindPlace(s.SelectedID)
	if s.SelectedID == "" || !ok {
		return nil, nil
	}

	selection := sm.describe(s.Location, p)
	return &selection, nil
}

// ClearSelection removes the current selection
func (sm *SessionManager) ClearSelection(ctx context.Context, id string) error {
	_, err := sm.mutate(ctx, id, func(s *session.Session) error {
		s.SelectedID = ""
		return nil
	})
	if err != nil {
		return err
	}

	sm.publish(id, session.EventSelectionClear, nil)
	return nil
}

// VerifyToken checks that a bearer token was issued for the session
func (sm *SessionManager) VerifyToken(token, id string) error {
	return sm.tokens.Verify(token, id)
}

// Stop gracefully stops the session manager
func (sm *SessionManager) Stop(ctx context.Context) error {
	sm.cancel()

	c := make(chan struct{})
	go func() {
		sm.wg.Wait()
		close(c)
	}()

	select {
	case <-c:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// generate builds a batch around center with the configured radius and names
func (sm *SessionManager) generate(center place.Coordinate) ([]place.Place, error) {
	places, err := sm.catalog.Generate(center, sm.config.RadiusMeters, sm.config.Names.Markets, sm.config.Names.Restaurants)
	if err != nil {
		return nil, fmt.Errorf("error generating places: %w", err)
	}

	metrics.GenerationsTotal.Inc()
	for _, p := range places {
		metrics.PlacesGeneratedTotal.WithLabelValues(string(p.Category)).Inc()
	}

	return places, nil
}

// describe builds the details card for p as seen from the session's current location
func (sm *SessionManager) describe(from place.Coordinate, p place.Place) session.Selection {
	distance := geo.Haversine(from, p.Coordinate)

	return session.Selection{
		Place:          p,
		DistanceMeters: distance,
		DistanceText:   geo.FormatDistance(distance),
		Stars:          catalog.StarString(p.Rating),
		DirectionsURL:  geo.DirectionsURL(p.Coordinate),
		Region:         geo.RegionFor(p.Coordinate, sm.config.FocusSpan),
	}
}

// mutate loads a session under its lock, applies fn and saves the result.
// Nothing is written when fn fails.
func (sm *SessionManager) mutate(ctx context.Context, id string, fn func(s *session.Session) error) (*session.Session, error) {
	unlock := sm.lock(id)
	defer unlock()

	s, err := sm.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(s); err != nil {
		return nil, err
	}

	s.UpdatedAt = sm.now()

	if err := sm.store.Save(ctx, *s); err != nil {
		return nil, fmt.Errorf("error saving session: %w", err)
	}

	return s, nil
}

// lock serializes mutations of a single session
func (sm *SessionManager) lock(id string) func() {
	v, _ := sm.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// sweepIdleSessions regularly removes sessions idle longer than the TTL
func (sm *SessionManager) sweepIdleSessions() {
	defer sm.wg.Done()

	ticker := time.NewTicker(sm.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.ctx.Done():
			return
		case <-ticker.C:
			sm.expireIdle()
		}
	}
}

// expireIdle deletes every session idle longer than the TTL
func (sm *SessionManager) expireIdle() {
	ctx, cancel := context.WithTimeout(sm.ctx, 30*time.Second)
	defer cancel()

	cutoff := sm.now().Add(-sm.config.IdleTTL)

	ids, err := sm.store.ListIdleSince(ctx, cutoff)
	if err != nil {
		sm.logger.Error("error listing idle sessions", "error", err)
		return
	}

	for _, id := range ids {
		sm.expireSession(ctx, id, cutoff)
	}
}

// expireSession deletes a listed session unless it was touched after the listing
func (sm *SessionManager) expireSession(ctx context.Context, id string, cutoff time.Time) {
	unlock := sm.lock(id)
	defer unlock()

	s, err := sm.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			sm.logger.Error("error loading idle session", "session_id", id, "error", err)
		}
		return
	}

	if !s.UpdatedAt.Before(cutoff) {
		return
	}

	if err := sm.store.Delete(ctx, id); err != nil {
		sm.logger.Error("error expiring session", "session_id", id, "error", err)
		return
	}

	sm.locks.Delete(id)
	metrics.SessionsExpiredTotal.Inc()
	sm.logger.Debug("session expired", "session_id", id)
	sm.publish(id, session.EventExpired, nil)
}

// publish sends a session event to the event bus. Failures are logged only.
func (sm *SessionManager) publish(sessionID string, eventType session.EventType, payload interface{}) {
	event := session.Event{
		Type:      eventType,
		SessionID: sessionID,
		Time:      sm.now(),
		Payload:   payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("error marshaling event", "type", eventType, "error", err)
		return
	}

	if err := sm.eventBus.Publish(Subject(sm.config.EventsTopic, sessionID, eventType), data); err != nil {
		metrics.EventPublishFailuresTotal.WithLabelValues(string(eventType)).Inc()
		sm.logger.Warn("error publishing event", "type", eventType, "session_id", sessionID, "error", err)
	}
}

// Subject returns the event bus subject for a session event
func Subject(topic, sessionID string, eventType session.EventType) string {
	return fmt.Sprintf("%s.%s.%s", topic, sessionID, eventType)
}

// Wildcard returns the subject pattern matching every event of a session
func Wildcard(topic, sessionID string) string {
	return fmt.Sprintf("%s.%s.>", topic, sessionID)
}
