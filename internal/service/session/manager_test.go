package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"geofinder/internal/adapter/storage"
	"geofinder/internal/domain/place"
	"geofinder/internal/domain/session"
	"geofinder/internal/logger"
	"geofinder/internal/service/catalog"
	"geofinder/internal/service/geo"
)

// recordingPublisher keeps every published message
type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []session.Event
	fail     bool
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail {
		return errors.New("bus down")
	}

	var e session.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []session.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]session.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

var home = place.Coordinate{Latitude: -23.5505, Longitude: -46.6333}

// touchingStore runs afterList between listing idle sessions and returning them
type touchingStore struct {
	*storage.MemoryStore
	afterList func(ids []string)
}

func (s *touchingStore) ListIdleSince(ctx context.Context, t time.Time) ([]string, error) {
	ids, err := s.MemoryStore.ListIdleSince(ctx, t)
	if err == nil && s.afterList != nil {
		s.afterList(ids)
	}
	return ids, err
}

// failingTokens refuses to sign
type failingTokens struct{}

func (failingTokens) Issue(string) (string, error) { return "", errors.New("signer unavailable") }

func (failingTokens) Verify(string, string) error { return session.ErrInvalidToken }

func newTestManager(t *testing.T, bus Publisher) (*SessionManager, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	return newTestManagerWith(t, store, bus, NewTokenIssuer("test-secret", time.Hour)), store
}

func newTestManagerWith(t *testing.T, store session.Store, bus Publisher, tokens Tokens) *SessionManager {
	t.Helper()

	rnd := geo.NewSource(17)
	sm := NewSessionManager(
		store,
		catalog.NewPlaceCatalog(geo.NewSampler(rnd), rnd),
		bus,
		tokens,
		SessionManagerConfig{
			RadiusMeters: 10000,
			Names:        catalog.DefaultNames(),
			EventsTopic:  "geofinder.session",
		},
		logger.Discard(),
	)

	t.Cleanup(func() {
		sm.Stop(context.Background())
	})

	return sm
}

func TestCreateSession(t *testing.T) {
	bus := &recordingPublisher{}
	sm, _ := newTestManager(t, bus)
	ctx := context.Background()

	s, token, err := sm.CreateSession(ctx, home)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	if token == "" {
		t.Errorf("empty token")
	}
	if len(s.Places) != 10 {
		t.Errorf("places = %d, want 10", len(s.Places))
	}
	if s.Filter != place.FilterAll || s.SelectedID != "" {
		t.Errorf("unexpected initial view %+v", s)
	}

	stored, err := sm.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Location != home {
		t.Errorf("stored location = %v", stored.Location)
	}

	types := bus.types()
	if len(types) != 2 || types[0] != session.EventCreated || types[1] != session.EventBatchGenerated {
		t.Errorf("events = %v", types)
	}
	if bus.subjects[0] != "geofinder.session."+s.ID+".session.created" {
		t.Errorf("subject = %q", bus.subjects[0])
	}
}

func TestCreateSessionInvalidLocation(t *testing.T) {
	sm, _ := newTestManager(t, nil)

	_, _, err := sm.CreateSession(context.Background(), place.Coordinate{Latitude: 95})
	if !errors.Is(err, place.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSelectPlace(t *testing.T) {
	sm, _ := newTestManager(t, nil)
	ctx := context.Background()

	s, _, err := sm.CreateSession(ctx, home)
	if err != nil {
		t.Fatal(err)
	}

	first, err := sm.SelectPlace(ctx, s.ID, "market_2")
	if err != nil {
		t.Fatalf("SelectPlace error: %v", err)
	}
	if first.Place.ID != "market_2" {
		t.Errorf("selected %q", first.Place.ID)
	}
	if first.DistanceText != geo.FormatDistance(geo.Haversine(home, first.Place.Coordinate)) {
		t.Errorf("distance text %q", first.DistanceText)
	}
	if first.Stars != catalog.StarString(first.Place.Rating) || first.Stars == "" {
		t.Errorf("stars %q for rating %f", first.Stars, first.Place.Rating)
	}
	if !strings.HasPrefix(first.DirectionsURL, "https://www.google.com/maps/dir/?api=1&destination=") {
		t.Errorf("directions url %q", first.DirectionsURL)
	}

	second, err := sm.SelectPlace(ctx, s.ID, "rest_4")
	if err != nil {
		t.Fatal(err)
	}

	current, err := sm.CurrentSelection(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current == nil || current.Place.ID != second.Place.ID {
		t.Errorf("selection not replaced: %+v", current)
	}
}

func TestSelectUnknownPlaceKeepsSelection(t *testing.T) {
	sm, _ := newTestManager(t, nil)
	ctx := context.Background()

	s, _, _ := sm.CreateSession(ctx, home)
	if _, err := sm.SelectPlace(ctx, s.ID, "market_0"); err != nil {
		t.Fatal(err)
	}

	_, err := sm.SelectPlace(ctx, s.ID, "market_99")
	if !errors.Is(err, session.ErrPlaceNotFound) {
		t.Fatalf("expected ErrPlaceNotFound, got %v", err)
	}

	got, _ := sm.GetSession(ctx, s.ID)
	if got.SelectedID != "market_0" {
		t.Errorf("selection = %q, want market_0", got.SelectedID)
	}
}

func TestSelectionDistanceUsesCurrentLocation(t *testing.T) {
	sm, _ := newTestManager(t, nil)
	ctx := context.Background()

	s, _, _ := sm.CreateSession(ctx, home)
	moved := place.Coordinate{Latitude: -23.6, Longitude: -46.7}
	if _, err := sm.UpdateLocation(ctx, s.ID, moved); err != nil {
		t.Fatal(err)
	}

	sel, err := sm.SelectPlace(ctx, s.ID, "rest_0")
	if err != nil {
		t.Fatal(err)
	}
	if want := geo.Haversine(moved, sel.Place.Coordinate); sel.DistanceMeters != want {
		t.Errorf("distance = %f, want %f", sel.DistanceMeters, want)
	}
}

func TestUpdateLocationInvalidKeepsState(t *testing.T) {
	sm, _ := newTestManager(t, nil)
	ctx := context.Background()

	s, _, _ := sm.CreateSession(ctx, home)

	_, err := sm.UpdateLocation(ctx, s.ID, place.Coordinate{Latitude: 10, Longitude: 200})
	if !errors.Is(err, place.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	got, _ := sm.GetSession(ctx, s.ID)
	if got.Location != home {
		t.Errorf("location changed to %v", got.Location)
	}
}

func TestRegenerateReplacesBatch(t *testing.T) {
	bus := &recordingPublisher{}
	sm, _ := newTestManager(t, bus)
	ctx := context.Background()

	s, _, _ := sm.CreateSession(ctx, home)
	if _, err := sm.SelectPlace(ctx, s.ID, "market_1"); err != nil {
		t.Fatal(err)
	}

	again, err := sm.Regenerate(ctx, s.ID)
	if err != nil {
		t.Fatalf("Regenerate error: %v", err)
	}
	if again.SelectedID != "" {
		t.Errorf("selection survived regeneration")
	}
	if len(again.Places) != len(s.Places) {
		t.Fatalf("places = %d, want %d", len(again.Places), len(s.Places))
	}

	same := 0
	for i := range again.Places {
		if again.Places[i].Coordinate == s.Places[i].Coordinate {
			same++
		}
	}
	if same == len(s.Places) {
		t.Errorf("regenerated batch kept every coordinate")
	}

	if current, _ := sm.CurrentSelection(ctx, s.ID); current != nil {
		t.Errorf("current selection = %+v, want nil", current)
	}
}

func TestSetView(t *testing.T) {
	sm, _ := newTestManager(t, nil)
	ctx := context.Background()

	s, _, _ := sm.CreateSession(ctx, home)

	visible, err := sm.SetView(ctx, s.ID, place.FilterMarket, "MERC")
	if err != nil {
		t.Fatalf("SetView error: %v", err)
	}

	var ids []string
	for _, p := range visible {
		ids = append(ids, p.ID)
	}
	if strings.Join(ids, ",") != "market_0,market_4" {
		t.Errorf("visible = %v", ids)
	}

	again, err := sm.VisiblePlaces(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != len(visible) {
		t.Errorf("stored view not applied: %d vs %d", len(again), len(visible))
	}

	if _, err := sm.SetView(ctx, s.ID, place.CategoryFilter("bakery"), ""); !errors.Is(err, place.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestClearAndDelete(t *testing.T) {
	sm, _ := newTestManager(t, nil)
	ctx := context.Background()

	s, _, _ := sm.CreateSession(ctx, home)
	sm.SelectPlace(ctx, s.ID, "rest_2")

	if err := sm.ClearSelection(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := sm.GetSession(ctx, s.ID)
	if got.SelectedID != "" {
		t.Errorf("selection not cleared")
	}

	if err := sm.DeleteSession(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := sm.GetSession(ctx, s.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := sm.DeleteSession(ctx, s.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	sm, _ := newTestManager(t, &recordingPublisher{fail: true})

	if _, _, err := sm.CreateSession(context.Background(), home); err != nil {
		t.Errorf("CreateSession failed because of the event bus: %v", err)
	}
}

func TestExpireIdle(t *testing.T) {
	bus := &recordingPublisher{}
	sm, _ := newTestManager(t, bus)
	sm.config.IdleTTL = time.Minute
	ctx := context.Background()

	clock := time.Now()
	sm.now = func() time.Time { return clock }

	old, _, _ := sm.CreateSession(ctx, home)

	clock = clock.Add(2 * time.Minute)
	fresh, _, _ := sm.CreateSession(ctx, home)

	sm.expireIdle()

	if _, err := sm.GetSession(ctx, old.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("idle session survived: %v", err)
	}
	if _, err := sm.GetSession(ctx, fresh.ID); err != nil {
		t.Errorf("fresh session expired: %v", err)
	}

	types := bus.types()
	if types[len(types)-1] != session.EventExpired {
		t.Errorf("last event = %v, want expired", types[len(types)-1])
	}
}

func TestExpireIdleSkipsSessionTouchedAfterListing(t *testing.T) {
	bus := &recordingPublisher{}
	store := &touchingStore{MemoryStore: storage.NewMemoryStore()}
	sm := newTestManagerWith(t, store, bus, NewTokenIssuer("test-secret", time.Hour))
	sm.config.IdleTTL = time.Minute
	ctx := context.Background()

	clock := time.Now()
	sm.now = func() time.Time { return clock }

	s, _, err := sm.CreateSession(ctx, home)
	if err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(2 * time.Minute)
	store.afterList = func(ids []string) {
		for _, id := range ids {
			if _, err := sm.SelectPlace(ctx, id, "market_0"); err != nil {
				t.Errorf("SelectPlace error: %v", err)
			}
		}
	}

	sm.expireIdle()

	got, err := sm.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("session touched after listing was expired: %v", err)
	}
	if got.SelectedID != "market_0" {
		t.Errorf("selection = %q, want market_0", got.SelectedID)
	}

	for _, typ := range bus.types() {
		if typ == session.EventExpired {
			t.Errorf("expired event published for an active session")
		}
	}
}

func TestDeleteSessionPublishes(t *testing.T) {
	bus := &recordingPublisher{}
	sm, _ := newTestManager(t, bus)
	ctx := context.Background()

	s, _, _ := sm.CreateSession(ctx, home)
	if err := sm.DeleteSession(ctx, s.ID); err != nil {
		t.Fatal(err)
	}

	types := bus.types()
	if types[len(types)-1] != session.EventDeleted {
		t.Errorf("last event = %v, want %v", types[len(types)-1], session.EventDeleted)
	}
}

func TestCreateSessionTokenFailureLeavesNoSession(t *testing.T) {
	bus := &recordingPublisher{}
	store := storage.NewMemoryStore()
	sm := newTestManagerWith(t, store, bus, failingTokens{})
	ctx := context.Background()

	if _, _, err := sm.CreateSession(ctx, home); err == nil {
		t.Fatal("expected signing error")
	}

	ids, err := store.ListIdleSince(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("store holds %d sessions after a failed create", len(ids))
	}
	if len(bus.types()) != 0 {
		t.Errorf("events published for a failed create: %v", bus.types())
	}
}

func TestTokens(t *testing.T) {
	sm, _ := newTestManager(t, nil)
	ctx := context.Background()

	a, tokenA, _ := sm.CreateSession(ctx, home)
	b, _, _ := sm.CreateSession(ctx, home)

	if err := sm.VerifyToken(tokenA, a.ID); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := sm.VerifyToken(tokenA, b.ID); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("token accepted for another session: %v", err)
	}
	if err := sm.VerifyToken("garbage", a.ID); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("garbage token accepted: %v", err)
	}

	other := NewTokenIssuer("other-secret", time.Hour)
	forged, _ := other.Issue(a.ID)
	if err := sm.VerifyToken(forged, a.ID); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("token with wrong secret accepted: %v", err)
	}

	expired, _ := NewTokenIssuer("test-secret", -time.Minute).Issue(a.ID)
	if err := sm.VerifyToken(expired, a.ID); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("expired token accepted: %v", err)
	}
}
