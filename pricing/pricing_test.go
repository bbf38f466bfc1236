package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/match-engine/pricing"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testRates() pricing.RateTable {
	return pricing.RateTable{
		MinutesPerSquareMeter: d("1.5"),
		FixtureMinutes: map[pricing.Fixture]decimal.Decimal{
			pricing.FixtureBathroom: d("30"),
			pricing.FixtureToilet:   d("10"),
			pricing.FixtureKitchen:  d("25"),
		},
		PricePerHour: d("10"),
		MinHours:     d("3"),
		Currency:     "EUR",
	}
}

// =============================================================================
// COMPUTE HOURS
// =============================================================================

func TestComputeHours_RoundsUpToHalfHour(t *testing.T) {
	// GIVEN: 100 m² at 1.5 min/m² = 150 min, plus 1 bathroom (30) + 1 toilet (10) = 190 min
	// WHEN: computing hours
	// THEN: 190 min = 3h10 rounds up to 3.5h
	hours, err := pricing.ComputeHours(d("100"), pricing.FixtureCounts{
		pricing.FixtureBathroom: 1,
		pricing.FixtureToilet:   1,
	}, testRates())
	require.NoError(t, err)
	assert.True(t, hours.Equal(d("3.5")), "got %s", hours)
}

func TestComputeHours_ExactHalfHourNotRaised(t *testing.T) {
	// 140 m² = 210 min = exactly 3.5h
	hours, err := pricing.ComputeHours(d("140"), nil, testRates())
	require.NoError(t, err)
	assert.True(t, hours.Equal(d("3.5")), "got %s", hours)
}

func TestComputeHours_FloorsAtMinimum(t *testing.T) {
	hours, err := pricing.ComputeHours(d("20"), nil, testRates())
	require.NoError(t, err)
	assert.True(t, hours.Equal(d("3")), "got %s", hours)
}

func TestComputeHours_UnknownFixtureIgnored(t *testing.T) {
	hours, err := pricing.ComputeHours(d("200"), pricing.FixtureCounts{pricing.FixtureStairs: 3}, testRates())
	require.NoError(t, err)
	assert.True(t, hours.Equal(d("5")), "got %s", hours)
}

func TestComputeHours_RejectsNegativeInput(t *testing.T) {
	_, err := pricing.ComputeHours(d("-1"), nil, testRates())
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)

	_, err = pricing.ComputeHours(d("10"), pricing.FixtureCounts{pricing.FixtureToilet: -2}, testRates())
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestComputeHours_RejectsBadMinimum(t *testing.T) {
	rates := testRates()
	rates.MinHours = d("2.25")
	_, err := pricing.ComputeHours(d("10"), nil, rates)
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestComputeHours_MonotonicAndHalfHourAligned(t *testing.T) {
	rates := testRates()
	prev := decimal.Zero
	for area := 0; area <= 400; area += 7 {
		for baths := 0; baths <= 3; baths++ {
			hours, err := pricing.ComputeHours(decimal.NewFromInt(int64(area)), pricing.FixtureCounts{
				pricing.FixtureBathroom: baths,
			}, rates)
			require.NoError(t, err)

			assert.True(t, hours.Mod(d("0.5")).IsZero(), "%s is not a multiple of 0.5", hours)
			assert.False(t, hours.LessThan(rates.MinHours), "%s below minimum", hours)

			if baths > 0 {
				fewer, err := pricing.ComputeHours(decimal.NewFromInt(int64(area)), pricing.FixtureCounts{
					pricing.FixtureBathroom: baths - 1,
				}, rates)
				require.NoError(t, err)
				assert.False(t, hours.LessThan(fewer), "more bathrooms gave fewer hours")
			}
		}

		hours, err := pricing.ComputeHours(decimal.NewFromInt(int64(area)), nil, rates)
		require.NoError(t, err)
		assert.False(t, hours.LessThan(prev), "area %d: %s < %s", area, hours, prev)
		prev = hours
	}
}

// =============================================================================
// SUBSCRIPTION PRICE
// =============================================================================

func TestComputeSubscriptionPrice_Weekly(t *testing.T) {
	price, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{
		Hours:     d("4"),
		Frequency: pricing.FrequencyWeekly,
	}, testRates())
	require.NoError(t, err)

	assert.True(t, price.Hours.Equal(d("4")))
	assert.Equal(t, int64(4000), price.PricePerSessionCents)
	assert.Equal(t, 4, price.SessionsPerCycle)
	assert.Equal(t, int64(16000), price.BundleAmountCents)
}

func TestComputeSubscriptionPrice_BelowMinimumStrict(t *testing.T) {
	// GIVEN: 3 hours weekly, price 10/h, minimum 4h
	// WHEN: pricing in strict (update) mode
	// THEN: BELOW_MINIMUM, no silent correction
	rates := testRates()
	rates.MinHours = d("4")

	_, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{
		Hours:     d("3"),
		Frequency: pricing.FrequencyWeekly,
	}, rates)

	require.Error(t, err)
	assert.ErrorIs(t, err, pricing.ErrBelowMinimum)
	var below *pricing.BelowMinimumError
	require.ErrorAs(t, err, &below)
	assert.True(t, below.Minimum.Equal(d("4")))
}

func TestComputeSubscriptionPrice_RaiseToMinimumOnCreate(t *testing.T) {
	rates := testRates()
	rates.MinHours = d("4")

	price, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{
		Hours:     d("3"),
		Frequency: pricing.FrequencyWeekly,
		Mode:      pricing.RaiseToMinimum,
	}, rates)
	require.NoError(t, err)
	assert.True(t, price.Hours.Equal(d("4")))
	assert.Equal(t, int64(16000), price.BundleAmountCents)
}

func TestComputeSubscriptionPrice_SubscriptionMinimumWins(t *testing.T) {
	_, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{
		Hours:        d("3.5"),
		MinimumHours: d("4.5"),
		Frequency:    pricing.FrequencyBiweekly,
	}, testRates())
	assert.ErrorIs(t, err, pricing.ErrBelowMinimum)
}

func TestComputeSubscriptionPrice_RoundsOnceToCents(t *testing.T) {
	rates := testRates()
	rates.PricePerHour = d("24.333")

	price, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{
		Hours:     d("3.5"),
		Frequency: pricing.FrequencyWeekly,
	}, rates)
	require.NoError(t, err)

	// 3.5 * 24.333 = 85.1655 -> 8517 cents per session
	// bundle 85.1655 * 4 = 340.662 -> 34066 cents (not 8517 * 4 = 34068)
	assert.Equal(t, int64(8517), price.PricePerSessionCents)
	assert.Equal(t, int64(34066), price.BundleAmountCents)
}

func TestComputeSubscriptionPrice_SessionsPerFrequency(t *testing.T) {
	cases := map[pricing.Frequency]int{
		pricing.FrequencyWeekly:     4,
		pricing.FrequencyBiweekly:   2,
		pricing.FrequencyFourWeekly: 1,
	}
	for freq, want := range cases {
		price, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{Hours: d("3"), Frequency: freq}, testRates())
		require.NoError(t, err)
		assert.Equal(t, want, price.SessionsPerCycle, string(freq))
	}

	_, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{Hours: d("3"), Frequency: "daily"}, testRates())
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
}
