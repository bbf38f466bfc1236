package factory_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/match-engine/factory"
	"github.com/warp/match-engine/pricing"
)

func TestParseRates_Default(t *testing.T) {
	rates, err := factory.NewRateFactory().ParseRates(factory.DefaultRatesJSON())
	require.NoError(t, err)

	assert.Equal(t, "EUR", rates.Currency)
	assert.True(t, rates.PricePerHour.Equal(decimal.RequireFromString("24.50")))
	assert.True(t, rates.MinHours.Equal(decimal.NewFromInt(3)))
	assert.True(t, rates.FixtureMinutes[pricing.FixtureBathroom].Equal(decimal.NewFromInt(30)))
	assert.Len(t, rates.FixtureMinutes, len(factory.Fixtures()))
}

func TestParseRates_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"no currency":      `{"id":"x","price_per_hour":10,"min_hours":3}`,
		"zero price":       `{"id":"x","currency":"EUR","price_per_hour":0,"min_hours":3}`,
		"unknown fixture":  `{"id":"x","currency":"EUR","price_per_hour":10,"min_hours":3,"fixture_minutes":{"garage":20}}`,
		"odd minimum":      `{"id":"x","currency":"EUR","price_per_hour":10,"min_hours":3.25}`,
		"negative minutes": `{"id":"x","currency":"EUR","price_per_hour":10,"min_hours":3,"minutes_per_square_meter":-1}`,
	}
	f := factory.NewRateFactory()
	for name, js := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ParseRates(js)
			assert.Error(t, err)
		})
	}
}

func TestRates_RoundTripThroughFile(t *testing.T) {
	// GIVEN: the default table written back to a file
	f := factory.NewRateFactory()
	data, err := json.Marshal(f.ToJSON("copy", factory.DefaultRates()))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	// WHEN: loading it
	rates, err := f.LoadRates(path)
	require.NoError(t, err)

	// THEN: it prices exactly like the original
	hours, err := pricing.ComputeHours(decimal.NewFromInt(80), pricing.FixtureCounts{pricing.FixtureKitchen: 1}, *rates)
	require.NoError(t, err)
	want, err := pricing.ComputeHours(decimal.NewFromInt(80), pricing.FixtureCounts{pricing.FixtureKitchen: 1}, factory.DefaultRates())
	require.NoError(t, err)
	assert.True(t, hours.Equal(want))

	_, err = f.LoadRates(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
