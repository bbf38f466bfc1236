package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var minutesPerHalfHour = decimal.NewFromInt(30)

// ComputeHours converts floor area and fixture counts into work hours.
//
// The raw minutes are rounded UP to the next half hour and floored at
// rates.MinHours. The result is therefore always a multiple of 0.5 and
// never decreases when area or a fixture count grows.
func ComputeHours(area decimal.Decimal, fixtures FixtureCounts, rates RateTable) (decimal.Decimal, error) {
	if err := rates.Validate(); err != nil {
		return decimal.Zero, err
	}
	if area.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative area %s", ErrInvalidInput, area)
	}

	minutes := area.Mul(rates.MinutesPerSquareMeter)
	for fixture, count := range fixtures {
		if count < 0 {
			return decimal.Zero, fmt.Errorf("%w: negative count for %q", ErrInvalidInput, fixture)
		}
		perUnit, ok := rates.FixtureMinutes[fixture]
		if !ok {
			continue
		}
		minutes = minutes.Add(perUnit.Mul(decimal.NewFromInt(int64(count))))
	}

	halfHours := minutes.Div(minutesPerHalfHour).Ceil()
	hours := halfHours.Mul(half)

	if hours.LessThan(rates.MinHours) {
		return rates.MinHours, nil
	}
	return hours, nil
}
