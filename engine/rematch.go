package engine

import (
	"context"
	"fmt"
	"time"
)

// ProviderMatch is a provider the eligibility collaborator considers fit
// for a unit of work.
type ProviderMatch struct {
	ProviderID ProviderID
	Name       string
	Email      string
	Score      float64
}

// Eligibility decides which providers could take a unit of work (capacity,
// geography, skills). Candidates are returned best first. Implementations
// should skip excluded providers, but the Rematcher does not rely on it.
type Eligibility interface {
	Candidates(ctx context.Context, work Work, excluded ExclusionSet) ([]ProviderMatch, error)
}

// Rematcher finds the next provider for a unit of work.
type Rematcher struct {
	Eligibility Eligibility
	Timeout     time.Duration
}

// FindReplacement returns the best candidate that is not excluded. A nil
// match with a nil error means every eligible provider is used up, which
// is an expected outcome.
func (r *Rematcher) FindReplacement(ctx context.Context, work Work, excluded ExclusionSet) (*ProviderMatch, error) {
	if r.Eligibility == nil {
		return nil, nil
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	candidates, err := r.candidates(ctx, work, excluded)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.ProviderID == "" || excluded.Contains(c.ProviderID) {
			continue
		}
		match := c
		return &match, nil
	}
	return nil, nil
}

// candidates calls the collaborator, turning a panic into an error so the
// rejection that precedes the search still completes.
func (r *Rematcher) candidates(ctx context.Context, work Work, excluded ExclusionSet) (out []ProviderMatch, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("eligibility panicked: %v", p)
		}
	}()
	return r.Eligibility.Candidates(ctx, work, excluded)
}

// openAssignment creates a new Open assignment for ref unless one exists.
func (s *Service) openAssignment(ctx context.Context, op string, ref WorkRef, provider ProviderID) (Assignment, error) {
	history, err := s.loadAssignments(ctx, op, ref)
	if err != nil {
		return Assignment{}, err
	}
	if open := openAssignments(history); len(open) > 0 {
		return Assignment{}, newError(KindInvalidTransition, op,
			"%s already has open assignment %s", ref, open[0].ID)
	}

	now := s.clock()
	a := Assignment{
		ID:         AssignmentID(s.newID()),
		Work:       ref,
		ProviderID: provider,
		Status:     AssignmentOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.store.Insert(ctx, CollAssignments, AssignmentToRecord(a)); err != nil {
		return Assignment{}, wrapStore(op, err)
	}
	return a, nil
}
