package engine

import "context"

// ApproveResult is what a successful approval hands back to the caller.
type ApproveResult struct {
	Work          Work
	Assignment    Assignment
	ProviderID    ProviderID
	Notifications []Intent
}

// ApproveAssignment records that provider accepts the current assignment
// of ref and makes them the provider of the work.
//
// Every write up to the cascade onto the request/job (and its subscription)
// must succeed or the approval is reported as failed. A failed cascade
// reopens the assignment so a retry runs the whole approval again; the
// cascade writes are idempotent. The audit entry and the returned
// notifications are best-effort.
func (s *Service) ApproveAssignment(ctx context.Context, ref WorkRef, provider ProviderID) (*ApproveResult, error) {
	const op = "approve"
	ctx, cancel := s.bound(ctx)
	defer cancel()

	work, err := s.loadWork(ctx, op, ref)
	if err != nil {
		return nil, err
	}

	tr, err := s.transition(ctx, op, ref, EventApprove, provider, "")
	if err != nil {
		return nil, err
	}

	if err := adapterFor(ref.Kind).markAccepted(ctx, s, work, provider, tr.after.UpdatedAt); err != nil {
		s.logger.Error("approval cascade failed, reopening assignment",
			"work", ref.String(),
			"assignment_id", tr.after.ID,
			"provider_id", provider,
			"error", err,
		)
		s.reopen(ctx, tr)
		return nil, wrapStore(op, err)
	}

	updated, err := s.loadWork(ctx, op, ref)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, AuditEntry{
		Module:      moduleFor(ref.Kind),
		EntityID:    ref.ID,
		Action:      AuditAssignmentApproved,
		PerformedBy: string(provider),
		Details: map[string]any{
			"assignment_id": string(tr.after.ID),
			"before": map[string]any{
				"assignment_status": string(tr.before.Status),
				"work_status":       string(work.Status),
			},
			"after": map[string]any{
				"assignment_status": string(tr.after.Status),
				"work_status":       string(updated.Status),
				"provider_id":       string(provider),
			},
		},
	})

	s.logger.Info("assignment approved",
		"work", ref.String(),
		"assignment_id", tr.after.ID,
		"provider_id", provider,
	)

	return &ApproveResult{
		Work:          updated,
		Assignment:    tr.after,
		ProviderID:    provider,
		Notifications: approvalIntents(updated, tr.after),
	}, nil
}
