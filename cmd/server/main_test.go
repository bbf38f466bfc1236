package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/match-engine/engine"
	"github.com/warp/match-engine/pricing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQuoteCommand(t *testing.T) {
	// GIVEN: an 85 m² home with a bathroom and a kitchen, asking for 3 hours
	out, err := run(t, "--store", "memory", "quote",
		"--area", "85", "--fixture", "bathroom=1", "--fixture", "kitchen=1",
		"--hours", "3", "--frequency", "weekly")
	require.NoError(t, err)

	// THEN: the hours are raised to the 3.5 hour minimum and priced
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "3.5", got["minimum_hours"])
	assert.Equal(t, "3.5", got["hours"])
	assert.EqualValues(t, 8575, got["price_per_session_cents"])
	assert.EqualValues(t, 34300, got["bundle_amount_cents"])
	assert.Equal(t, "EUR", got["currency"])
}

func TestQuoteCommand_BadInput(t *testing.T) {
	cases := map[string][]string{
		"bad area":      {"--area", "big"},
		"bad fixture":   {"--fixture", "bathroom"},
		"bad count":     {"--fixture", "bathroom=two"},
		"bad frequency": {"--frequency", "daily"},
		"negative area": {"--area=-10"},
	}
	for name, extra := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := run(t, append([]string{"--store", "memory", "quote"}, extra...)...)
			assert.Error(t, err)
		})
	}
}

func TestApproveCommand_NotFound(t *testing.T) {
	// An empty in-memory store has no such request
	_, err := run(t, "--store", "memory", "approve", "request", "req-1", "--provider", "p1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrNotFound))
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestCommands_RejectInvalidArgs(t *testing.T) {
	_, err := run(t, "--store", "memory", "reject", "invoice", "x", "--provider", "p1")
	assert.ErrorContains(t, err, "unknown work kind")

	_, err = run(t, "--store", "memory", "approve", "job", "j1")
	assert.Error(t, err, "--provider is required")

	_, err = run(t, "--store", "mongo", "history", "job", "j1")
	assert.ErrorContains(t, err, "unknown store.driver")
}

func TestParseWorkRef(t *testing.T) {
	ref, err := parseWorkRef("requests", "r1")
	require.NoError(t, err)
	assert.Equal(t, engine.RequestRef("r1"), ref)

	ref, err = parseWorkRef("job", "j1")
	require.NoError(t, err)
	assert.Equal(t, engine.JobRef("j1"), ref)

	_, err = parseWorkRef("job", "")
	assert.Error(t, err)
}

func TestParseFixtures_Sums(t *testing.T) {
	got, err := parseFixtures([]string{"toilet=1", " toilet=2"})
	require.NoError(t, err)
	assert.Equal(t, pricing.FixtureCounts{pricing.FixtureToilet: 3}, got)
}
