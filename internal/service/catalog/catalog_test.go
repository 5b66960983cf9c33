package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"geofinder/internal/domain/place"
	"geofinder/internal/service/geo"
)

func newTestCatalog(seed int64) *PlaceCatalog {
	rnd := geo.NewSource(seed)
	return NewPlaceCatalog(geo.NewSampler(rnd), rnd)
}

var center = place.Coordinate{Latitude: -23.5505, Longitude: -46.6333}

func TestGenerate(t *testing.T) {
	c := newTestCatalog(1)

	places, err := c.Generate(center, 10000, []string{"A", "B"}, []string{"X"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(places) != 3 {
		t.Fatalf("len = %d, want 3", len(places))
	}

	wantIDs := []string{"market_0", "market_1", "rest_0"}
	wantTitles := []string{"A", "B", "X"}
	wantCategories := []place.Category{place.CategoryMarket, place.CategoryMarket, place.CategoryRestaurant}

	for i, p := range places {
		if p.ID != wantIDs[i] || p.Title != wantTitles[i] || p.Category != wantCategories[i] {
			t.Errorf("place %d = %+v", i, p)
		}

		lo, hi := 4.0, 5.0
		if p.Category == place.CategoryRestaurant {
			lo = 3.5
		}
		if p.Rating < lo || p.Rating > hi {
			t.Errorf("%s rating %f outside [%f, %f]", p.ID, p.Rating, lo, hi)
		}

		if d := geo.Haversine(center, p.Coordinate); d > 10000*1.01 {
			t.Errorf("%s is %f m from center", p.ID, d)
		}
		if p.DistanceLabel == "" || p.Description != p.Category.Label() {
			t.Errorf("%s missing display fields: %+v", p.ID, p)
		}
	}
}

func TestGenerateRatingRanges(t *testing.T) {
	c := newTestCatalog(5)
	names := DefaultNames()

	for i := 0; i < 200; i++ {
		places, err := c.Generate(center, 10000, names.Markets, names.Restaurants)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range places {
			switch p.Category {
			case place.CategoryMarket:
				if p.Rating < 4.0 || p.Rating > 5.0 {
					t.Fatalf("market rating %f", p.Rating)
				}
			case place.CategoryRestaurant:
				if p.Rating < 3.5 || p.Rating > 5.0 {
					t.Fatalf("restaurant rating %f", p.Rating)
				}
			}
		}
	}
}

func TestGenerateEmpty(t *testing.T) {
	places, err := newTestCatalog(1).Generate(center, 10000, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(places) != 0 {
		t.Errorf("len = %d, want 0", len(places))
	}
}

func TestGenerateInvalid(t *testing.T) {
	c := newTestCatalog(1)

	if _, err := c.Generate(center, -1, []string{"A"}, nil); !errors.Is(err, place.ErrInvalidArgument) {
		t.Errorf("negative radius: got %v", err)
	}
	if _, err := c.Generate(place.Coordinate{Latitude: 100}, 10, []string{"A"}, nil); !errors.Is(err, place.ErrInvalidArgument) {
		t.Errorf("bad center: got %v", err)
	}
}

func TestGenerateSeededAndIndependent(t *testing.T) {
	a, _ := newTestCatalog(11).Generate(center, 10000, []string{"A"}, []string{"X"})
	b, _ := newTestCatalog(11).Generate(center, 10000, []string{"A"}, []string{"X"})
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed produced different batches:\n%v\n%v", a, b)
	}

	c := newTestCatalog(11)
	first, _ := c.Generate(center, 10000, []string{"A"}, []string{"X"})
	second, _ := c.Generate(center, 10000, []string{"A"}, []string{"X"})
	if reflect.DeepEqual(first, second) {
		t.Errorf("consecutive batches are identical")
	}

	first[0].Title = "changed"
	if second[0].Title != "A" {
		t.Errorf("batches alias each other")
	}
}

func TestGenerateZeroRadius(t *testing.T) {
	places, err := newTestCatalog(1).Generate(center, 0, []string{"A"}, []string{"X"})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range places {
		if p.Coordinate != center || p.DistanceLabel != "0 m" {
			t.Errorf("place %s = %+v, want center", p.ID, p)
		}
	}
}

func TestFilter(t *testing.T) {
	places := []place.Place{
		{ID: "market_0", Title: "Mercado Fresco", Category: place.CategoryMarket},
		{ID: "market_1", Title: "Hortifruti Verde", Category: place.CategoryMarket},
		{ID: "rest_0", Title: "Bella Italia", Category: place.CategoryRestaurant},
		{ID: "rest_1", Title: "MERCATO Italiano", Category: place.CategoryRestaurant},
		{ID: "market_2", Title: "Mercado Local", Category: place.CategoryMarket},
	}

	tests := []struct {
		name     string
		category place.CategoryFilter
		query    string
		want     []string
	}{
		{"all", place.FilterAll, "", []string{"market_0", "market_1", "rest_0", "rest_1", "market_2"}},
		{"markets", place.FilterMarket, "", []string{"market_0", "market_1", "market_2"}},
		{"restaurants", place.FilterRestaurant, "", []string{"rest_0", "rest_1"}},
		{"query any category", place.FilterAll, "merc", []string{"market_0", "rest_1", "market_2"}},
		{"query is case insensitive", place.FilterAll, "ITALIA", []string{"rest_0", "rest_1"}},
		{"conjunctive", place.FilterMarket, "merc", []string{"market_0", "market_2"}},
		{"no match", place.FilterRestaurant, "verde", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(places, tt.category, tt.query)
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("Filter = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestFilterDoesNotAlias(t *testing.T) {
	places := []place.Place{{ID: "market_0", Title: "A", Category: place.CategoryMarket}}
	got := Filter(places, place.FilterAll, "")
	got[0].Title = "B"
	if places[0].Title != "A" {
		t.Errorf("Filter result aliases input")
	}
}

func TestStarString(t *testing.T) {
	five := strings.Repeat(starGlyph, 5)

	tests := []struct {
		rating float64
		want   string
	}{
		{4.5, five},
		{3.5, five},
		{4.9, five},
		{5.0, five},
		{4.2, strings.Repeat(starGlyph, 4)},
		{4.0, strings.Repeat(starGlyph, 4)},
		{3.0, strings.Repeat(starGlyph, 3)},
		{3.4, strings.Repeat(starGlyph, 3)},
		{1.0, starGlyph},
	}
	for _, tt := range tests {
		if got := StarString(tt.rating); got != tt.want {
			t.Errorf("StarString(%v) = %q, want %q", tt.rating, got, tt.want)
		}
	}
}

func TestLoadNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.csv")
	body := "category,name\nmarket,Mercado Fresco\nrestaurant,Sushi House\nMarket,Feira Orgânica\nrestaurant,\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := LoadNames(path)
	if err != nil {
		t.Fatalf("LoadNames error: %v", err)
	}
	if !reflect.DeepEqual(names.Markets, []string{"Mercado Fresco", "Feira Orgânica"}) {
		t.Errorf("markets = %v", names.Markets)
	}
	if !reflect.DeepEqual(names.Restaurants, []string{"Sushi House"}) {
		t.Errorf("restaurants = %v", names.Restaurants)
	}
}

func TestLoadNamesUnknownCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.csv")
	if err := os.WriteFile(path, []byte("category,name\nbakery,Pão Quente\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadNames(path); !errors.Is(err, place.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
