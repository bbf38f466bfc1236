package engine

import "context"

// RejectResult describes a committed rejection and what happened next.
type RejectResult struct {
	Work               Work
	RejectedAssignment Assignment
	NewAssignment      *Assignment // nil when no replacement was found
	Excluded           []ProviderID
	Notifications      []Intent
}

// Exhausted reports whether the work now needs manual assignment.
func (r *RejectResult) Exhausted() bool { return r.NewAssignment == nil }

// RejectAssignment records that provider declines the current assignment
// of ref and immediately looks for somebody else.
//
// Branch A: a replacement is found and a new open assignment is created;
// the work keeps waiting for acceptance.
// Branch B: nobody is left (or the search itself failed); the work is
// marked rejected with manual action required and admins are alerted. The
// alert goes out even when the flag write fails.
func (s *Service) RejectAssignment(ctx context.Context, ref WorkRef, provider ProviderID, reason string) (*RejectResult, error) {
	const op = "reject"
	ctx, cancel := s.bound(ctx)
	defer cancel()

	work, err := s.loadWork(ctx, op, ref)
	if err != nil {
		return nil, err
	}

	tr, err := s.transition(ctx, op, ref, EventReject, provider, reason)
	if err != nil {
		return nil, err
	}

	excluded := ExclusionFor(tr.history, provider)
	next := s.rematch(ctx, op, work, excluded)

	result := &RejectResult{
		Work:               work,
		RejectedAssignment: tr.after,
		NewAssignment:      next,
		Excluded:           excluded.Sorted(),
	}

	flagFailed := false
	if next != nil {
		result.Notifications = rematchIntents(work, tr.after, *next, excluded)
	} else {
		// The rejection has committed. Admins are alerted even if the flag
		// write fails; the work record then keeps its old status.
		if err := s.markNeedsManual(ctx, ref, s.clock()); err != nil {
			flagFailed = true
			s.logger.Error("could not flag work for manual assignment",
				"work", ref.String(),
				"assignment_id", tr.after.ID,
				"error", err,
			)
		} else {
			result.Work.Status = WorkRejected
			result.Work.ManualActionRequired = true
		}
		result.Notifications = exhaustedIntents(work, tr.after, excluded)
	}

	details := map[string]any{
		"assignment_id":      string(tr.after.ID),
		"rejection_reason":   reason,
		"new_match_found":    next != nil,
		"excluded_providers": excluded.Strings(),
	}
	if next != nil {
		details["new_assignment_id"] = string(next.ID)
		details["new_provider_id"] = string(next.ProviderID)
	}
	if flagFailed {
		details["manual_flag_failed"] = true
	}
	s.recordAudit(ctx, AuditEntry{
		Module:      moduleFor(ref.Kind),
		EntityID:    ref.ID,
		Action:      AuditAssignmentRejected,
		PerformedBy: string(provider),
		Details:     details,
	})

	s.logger.Info("assignment rejected",
		"work", ref.String(),
		"assignment_id", tr.after.ID,
		"provider_id", provider,
		"new_match_found", next != nil,
		"excluded", len(excluded),
	)

	return result, nil
}

// rematch runs the replacement search and opens the new assignment. Any
// failure on this path degrades to "exhausted"; it never fails the
// rejection.
func (s *Service) rematch(ctx context.Context, op string, work Work, excluded ExclusionSet) *Assignment {
	match, err := s.rematcher.FindReplacement(ctx, work, excluded)
	if err != nil {
		s.logger.Warn("rematch search failed, treating as exhausted",
			"work", work.Ref.String(),
			"error", err,
		)
		return nil
	}
	if match == nil {
		return nil
	}

	a, err := s.openAssignment(ctx, op, work.Ref, match.ProviderID)
	if err != nil {
		s.logger.Warn("could not open replacement assignment, treating as exhausted",
			"work", work.Ref.String(),
			"provider_id", match.ProviderID,
			"error", err,
		)
		return nil
	}
	return &a
}
