package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/match-engine/engine"
)

func TestExclusionFor_DedupsByProvider(t *testing.T) {
	// GIVEN: p1 rejected twice (re-offered by mistake), p2 rejected, p3 still open
	history := []engine.Assignment{
		{ID: "a1", ProviderID: "p1", Status: engine.AssignmentRejected},
		{ID: "a2", ProviderID: "p2", Status: engine.AssignmentRejected},
		{ID: "a3", ProviderID: "p1", Status: engine.AssignmentRejected},
		{ID: "a4", ProviderID: "p3", Status: engine.AssignmentOpen},
	}

	// WHEN: p3 rejects as well
	set := engine.ExclusionFor(history, "p3")

	// THEN: each provider counts once
	assert.Len(t, set, 3)
	assert.Equal(t, []string{"p1", "p2", "p3"}, set.Strings())
	assert.True(t, set.Contains("p3"))
	assert.False(t, set.Contains("p4"))
}

func TestExclusionFor_IgnoresAccepted(t *testing.T) {
	set := engine.ExclusionFor([]engine.Assignment{
		{ProviderID: "p1", Status: engine.AssignmentAccepted},
	})
	assert.Empty(t, set)
}

type listEligibility []engine.ProviderMatch

func (l listEligibility) Candidates(context.Context, engine.Work, engine.ExclusionSet) ([]engine.ProviderMatch, error) {
	return l, nil
}

func TestRematcher_NeverReturnsExcluded(t *testing.T) {
	// GIVEN: a collaborator that ignores the exclusion set entirely
	r := &engine.Rematcher{Eligibility: listEligibility{
		{ProviderID: "p1"},
		{ProviderID: ""},
		{ProviderID: "p2"},
		{ProviderID: "p3"},
	}}

	match, err := r.FindReplacement(context.Background(), engine.Work{}, engine.ExclusionFor(nil, "p1", "p2"))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, engine.ProviderID("p3"), match.ProviderID)

	match, err = r.FindReplacement(context.Background(), engine.Work{}, engine.ExclusionFor(nil, "p1", "p2", "p3"))
	require.NoError(t, err)
	assert.Nil(t, match, "everyone excluded is exhaustion, not an error")
}

func TestRematcher_NoCollaboratorIsExhausted(t *testing.T) {
	r := &engine.Rematcher{}
	match, err := r.FindReplacement(context.Background(), engine.Work{}, nil)
	require.NoError(t, err)
	assert.Nil(t, match)
}
