/*
Package pricing computes cleaning hours and subscription prices.

PURPOSE:
  Pure functions, no I/O. The engine and the API consume them to turn a
  customer's home (area, bathrooms, kitchens, ...) into a number of work
  hours, and a number of hours into a per-session and per-cycle price.

KEY CONCEPTS IN THIS FILE (types.go):
  - RateTable: Minutes per unit of work, hourly price and minimum hours
  - Fixture: A countable thing in a home that adds cleaning time
  - Frequency: How often a subscription session takes place

PRECISION:
  All arithmetic uses decimal.Decimal. Money is converted to integer cents
  exactly once, at the boundary (see subscription.go).

SEE ALSO:
  - hours.go: ComputeHours
  - subscription.go: ComputeSubscriptionPrice
  - factory/rates.go: JSON rate table definitions
*/
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FIXTURES
// =============================================================================

type Fixture string

const (
	FixtureBathroom Fixture = "bathroom"
	FixtureToilet   Fixture = "toilet"
	FixtureKitchen  Fixture = "kitchen"
	FixtureBedroom  Fixture = "bedroom"
	FixtureStairs   Fixture = "stairs"
)

// FixtureCounts maps a fixture to how many the home has.
type FixtureCounts map[Fixture]int

// =============================================================================
// FREQUENCY
// =============================================================================

type Frequency string

const (
	FrequencyWeekly     Frequency = "weekly"
	FrequencyBiweekly   Frequency = "biweekly"
	FrequencyFourWeekly Frequency = "fourweekly"
)

// sessionsPerCycle is fixed per billing cycle of four weeks.
// It is deliberately not derived from calendar dates.
var sessionsPerCycle = map[Frequency]int{
	FrequencyWeekly:     4,
	FrequencyBiweekly:   2,
	FrequencyFourWeekly: 1,
}

// SessionsPerCycle returns the number of sessions in one four-week cycle.
func SessionsPerCycle(f Frequency) (int, error) {
	n, ok := sessionsPerCycle[f]
	if !ok {
		return 0, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, f)
	}
	return n, nil
}

// ParseFrequency validates a frequency string.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if _, err := SessionsPerCycle(f); err != nil {
		return "", err
	}
	return f, nil
}

// =============================================================================
// RATE TABLE
// =============================================================================

// RateTable holds the per-unit rates used by every calculation.
type RateTable struct {
	// MinutesPerSquareMeter is the cleaning time per m² of floor area.
	MinutesPerSquareMeter decimal.Decimal

	// FixtureMinutes is the extra time per fixture. Unknown fixtures add nothing.
	FixtureMinutes map[Fixture]decimal.Decimal

	// PricePerHour in major currency units (e.g. euros).
	PricePerHour decimal.Decimal

	// MinHours is the floor for any session. Must be a multiple of 0.5.
	MinHours decimal.Decimal

	Currency string
}

var half = decimal.NewFromFloat(0.5)

// Validate checks the table is usable.
func (r RateTable) Validate() error {
	if r.MinutesPerSquareMeter.IsNegative() {
		return fmt.Errorf("%w: negative minutes per m²", ErrInvalidInput)
	}
	for f, m := range r.FixtureMinutes {
		if m.IsNegative() {
			return fmt.Errorf("%w: negative minutes for fixture %q", ErrInvalidInput, f)
		}
	}
	if r.PricePerHour.IsNegative() {
		return fmt.Errorf("%w: negative price per hour", ErrInvalidInput)
	}
	if r.MinHours.IsNegative() {
		return fmt.Errorf("%w: negative minimum hours", ErrInvalidInput)
	}
	if !r.MinHours.Mod(half).IsZero() {
		return fmt.Errorf("%w: minimum hours %s is not a multiple of 0.5", ErrInvalidInput, r.MinHours)
	}
	return nil
}
