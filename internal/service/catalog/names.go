// internal/service/catalog/names.go

package catalog

import (
	"fmt"
	"strings"

	"github.com/sfomuseum/go-csvdict/v2"

	"geofinder/internal/domain/place"
)

// Names holds the titles used when synthesizing a batch
type Names struct {
	Markets     []string
	Restaurants []string
}

// DefaultNames returns the built-in sample names
func DefaultNames() Names {
	return Names{
		Markets: []string{
			"Mercado Fresco",
			"Hortifruti Verde",
			"Empório da Cidade",
			"Feira Orgânica",
			"Mercado Local",
		},
		Restaurants: []string{
			"Bella Italia",
			"Sushi House",
			"Burger King",
			"Tacos Mexicanos",
			"Pizzaria Napoli",
		},
	}
}

// LoadNames reads a CSV file with "category" and "name" columns.
// Rows keep their file order within each category.
func LoadNames(path string) (Names, error) {
	r, err := csvdict.NewReaderFromPath(path)
	if err != nil {
		return Names{}, fmt.Errorf("error opening names file: %w", err)
	}

	var names Names
	line := 1

	for row, err := range r.Iterate() {
		line++

		if err != nil {
			return Names{}, fmt.Errorf("error reading names file at row %d: %w", line, err)
		}

		name := strings.TrimSpace(row["name"])
		if name == "" {
			continue
		}

		switch place.Category(strings.ToLower(strings.TrimSpace(row["category"]))) {
		case place.CategoryMarket:
			names.Markets = append(names.Markets, name)
		case place.CategoryRestaurant:
			names.Restaurants = append(names.Restaurants, name)
		default:
			return Names{}, fmt.Errorf("%w: unknown category %q at row %d", place.ErrInvalidArgument, row["category"], line)
		}
	}

	return names, nil
}
