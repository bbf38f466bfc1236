/*
Package factory provides JSON to Go rate table conversion.

PURPOSE:
  Converts JSON rate table definitions into pricing.RateTable values. This
  enables rate changes without code changes - operations can edit a JSON
  file per market, and the factory creates the proper Go structs.

JSON SCHEMA:
  {
    "id": "nl-standard",
    "currency": "EUR",
    "price_per_hour": "24.50",
    "minutes_per_square_meter": 1.5,
    "min_hours": 3,
    "fixture_minutes": {
      "bathroom": 30,
      "toilet": 10,
      "kitchen": 25
    }
  }

  Numbers may be given as JSON numbers or strings; both are read exactly.

USAGE:
  f := factory.NewRateFactory()
  rates, err := f.ParseRates(factory.DefaultRatesJSON())
  hours, err := pricing.ComputeHours(area, fixtures, *rates)

SEE ALSO:
  - pricing/types.go: RateTable definition
  - config: pricing.rates_file
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/match-engine/pricing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RateTableJSON is the JSON representation of a rate table.
type RateTableJSON struct {
	ID                    string                     `json:"id"`
	Currency              string                     `json:"currency"`
	PricePerHour          decimal.Decimal            `json:"price_per_hour"`
	MinutesPerSquareMeter decimal.Decimal            `json:"minutes_per_square_meter"`
	MinHours              decimal.Decimal            `json:"min_hours"`
	FixtureMinutes        map[string]decimal.Decimal `json:"fixture_minutes,omitempty"`
}

var knownFixtures = map[pricing.Fixture]bool{
	pricing.FixtureBathroom: true,
	pricing.FixtureToilet:   true,
	pricing.FixtureKitchen:  true,
	pricing.FixtureBedroom:  true,
	pricing.FixtureStairs:   true,
}

// =============================================================================
// RATE FACTORY
// =============================================================================

// RateFactory converts JSON rate tables to pricing.RateTable.
type RateFactory struct{}

func NewRateFactory() *RateFactory {
	return &RateFactory{}
}

// ParseRates parses a JSON string into a RateTable.
func (f *RateFactory) ParseRates(jsonStr string) (*pricing.RateTable, error) {
	var rj RateTableJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rate table JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// LoadRates reads and parses a rate table file.
func (f *RateFactory) LoadRates(path string) (*pricing.RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate table: %w", err)
	}
	return f.ParseRates(string(data))
}

// FromJSON converts RateTableJSON to a validated RateTable.
func (f *RateFactory) FromJSON(rj RateTableJSON) (*pricing.RateTable, error) {
	if rj.Currency == "" {
		return nil, fmt.Errorf("rate table %q: currency is required", rj.ID)
	}
	if !rj.PricePerHour.IsPositive() {
		return nil, fmt.Errorf("rate table %q: price_per_hour must be positive", rj.ID)
	}

	rates := &pricing.RateTable{
		MinutesPerSquareMeter: rj.MinutesPerSquareMeter,
		FixtureMinutes:        make(map[pricing.Fixture]decimal.Decimal, len(rj.FixtureMinutes)),
		PricePerHour:          rj.PricePerHour,
		MinHours:              rj.MinHours,
		Currency:              rj.Currency,
	}
	for name, minutes := range rj.FixtureMinutes {
		fixture := pricing.Fixture(name)
		if !knownFixtures[fixture] {
			return nil, fmt.Errorf("rate table %q: unknown fixture %q", rj.ID, name)
		}
		rates.FixtureMinutes[fixture] = minutes
	}

	if err := rates.Validate(); err != nil {
		return nil, fmt.Errorf("rate table %q: %w", rj.ID, err)
	}
	return rates, nil
}

// ToJSON converts a RateTable back to its JSON form.
func (f *RateFactory) ToJSON(id string, rates pricing.RateTable) RateTableJSON {
	rj := RateTableJSON{
		ID:                    id,
		Currency:              rates.Currency,
		PricePerHour:          rates.PricePerHour,
		MinutesPerSquareMeter: rates.MinutesPerSquareMeter,
		MinHours:              rates.MinHours,
		FixtureMinutes:        make(map[string]decimal.Decimal, len(rates.FixtureMinutes)),
	}
	for fixture, minutes := range rates.FixtureMinutes {
		rj.FixtureMinutes[string(fixture)] = minutes
	}
	return rj
}

// Fixtures lists the fixture names a rate table may price, sorted.
func Fixtures() []string {
	out := make([]string, 0, len(knownFixtures))
	for f := range knownFixtures {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// PRESETS
// =============================================================================

// DefaultRatesJSON is the rate table used when no rates file is configured.
func DefaultRatesJSON() string {
	return `{
  "id": "default",
  "currency": "EUR",
  "price_per_hour": "24.50",
  "minutes_per_square_meter": 1.5,
  "min_hours": 3,
  "fixture_minutes": {
    "bathroom": 30,
    "toilet": 10,
    "kitchen": 25,
    "bedroom": 10,
    "stairs": 15
  }
}`
}

// DefaultRates parses DefaultRatesJSON. It panics on error since the preset
// is compiled in.
func DefaultRates() pricing.RateTable {
	rates, err := NewRateFactory().ParseRates(DefaultRatesJSON())
	if err != nil {
		panic(err)
	}
	return *rates
}
