package engine

import "context"

// ManualAssignResult is returned by AssignManually.
type ManualAssignResult struct {
	Work          Work
	Assignment    Assignment
	Notifications []Intent
}

// AssignManually lets an admin offer work to a chosen provider, typically
// after the automatic search ran out of candidates. Providers who already
// rejected the work are refused unless allowExcluded is set.
func (s *Service) AssignManually(ctx context.Context, ref WorkRef, provider ProviderID, performedBy string, allowExcluded bool) (*ManualAssignResult, error) {
	const op = "assign"
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if provider == "" {
		return nil, newError(KindNotFound, op, "empty provider id")
	}

	work, err := s.loadWork(ctx, op, ref)
	if err != nil {
		return nil, err
	}
	if work.Status == WorkAccepted || work.Status == WorkCancelled {
		return nil, newError(KindInvalidTransition, op, "%s is %s", ref, work.Status)
	}

	history, err := s.loadAssignments(ctx, op, ref)
	if err != nil {
		return nil, err
	}
	if !allowExcluded && ExclusionFor(history).Contains(provider) {
		return nil, newError(KindForbidden, op, "provider %s already rejected %s", provider, ref)
	}

	a, err := s.openAssignment(ctx, op, ref, provider)
	if err != nil {
		return nil, err
	}

	if work.Status != WorkRequested || work.ManualActionRequired {
		if err := s.patchWork(ctx, ref, Record{
			fieldStatus:              string(WorkRequested),
			"manual_action_required": false,
			fieldUpdatedAt:           FormatTime(a.CreatedAt),
		}); err != nil {
			return nil, wrapStore(op, err)
		}
		work.Status = WorkRequested
		work.ManualActionRequired = false
	}

	s.recordAudit(ctx, AuditEntry{
		Module:      moduleFor(ref.Kind),
		EntityID:    ref.ID,
		Action:      AuditAssignmentCreated,
		PerformedBy: performedBy,
		Details: map[string]any{
			"assignment_id":  string(a.ID),
			"provider_id":    string(provider),
			"allow_excluded": allowExcluded,
		},
	})

	return &ManualAssignResult{
		Work:          work,
		Assignment:    a,
		Notifications: []Intent{offerIntent(work, a)},
	}, nil
}

// ListAssignments returns the assignment history of ref, oldest first.
func (s *Service) ListAssignments(ctx context.Context, ref WorkRef) ([]Assignment, error) {
	const op = "list"
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.loadWork(ctx, op, ref); err != nil {
		return nil, err
	}
	return s.loadAssignments(ctx, op, ref)
}
