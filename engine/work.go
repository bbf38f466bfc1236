package engine

import (
	"context"
	"time"
)

// workAdapter hides the differences between requests and jobs. Orchestrator
// logic is written once against WorkRef; only loading and the approval
// cascade differ per kind.
type workAdapter interface {
	collection() Collection
	markAccepted(ctx context.Context, s *Service, w Work, provider ProviderID, now time.Time) error
}

func adapterFor(kind WorkKind) workAdapter {
	if kind == WorkJob {
		return jobAdapter{}
	}
	return requestAdapter{}
}

// =============================================================================
// REQUEST - provider and status live on the subscription
// =============================================================================

type requestAdapter struct{}

func (requestAdapter) collection() Collection { return CollRequests }

func (requestAdapter) markAccepted(ctx context.Context, s *Service, w Work, provider ProviderID, now time.Time) error {
	filter := Where(Eq(fieldRequestID, w.Ref.ID))
	if w.SubscriptionID != "" {
		filter = Where(Eq(fieldID, w.SubscriptionID))
	}
	n, err := s.store.Update(ctx, CollSubscriptions, filter, Record{
		fieldProvider:  string(provider),
		fieldStatus:    string(SubscriptionActive),
		fieldUpdatedAt: FormatTime(now),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return newError(KindNotFound, "approve", "no subscription for %s", w.Ref)
	}
	return s.patchWork(ctx, w.Ref, Record{
		fieldStatus:              string(WorkAccepted),
		"manual_action_required": false,
		fieldUpdatedAt:           FormatTime(now),
	})
}

// =============================================================================
// JOB - provider and planning status live on the job itself
// =============================================================================

type jobAdapter struct{}

func (jobAdapter) collection() Collection { return CollJobs }

func (jobAdapter) markAccepted(ctx context.Context, s *Service, w Work, provider ProviderID, now time.Time) error {
	return s.patchWork(ctx, w.Ref, Record{
		fieldStatus:              string(WorkAccepted),
		fieldProvider:            string(provider),
		"planning_status":        string(PlanningPlanned),
		"manual_action_required": false,
		fieldUpdatedAt:           FormatTime(now),
	})
}

// =============================================================================
// SHARED PATCHES
// =============================================================================

func (s *Service) patchWork(ctx context.Context, ref WorkRef, patch Record) error {
	n, err := s.store.Update(ctx, adapterFor(ref.Kind).collection(), Where(Eq(fieldID, ref.ID)), patch)
	if err != nil {
		return err
	}
	if n == 0 {
		return newError(KindNotFound, "", "%s disappeared", ref)
	}
	return nil
}

// markNeedsManual parks the work until an admin assigns a provider.
func (s *Service) markNeedsManual(ctx context.Context, ref WorkRef, now time.Time) error {
	return s.patchWork(ctx, ref, Record{
		fieldStatus:              string(WorkRejected),
		"manual_action_required": true,
		fieldUpdatedAt:           FormatTime(now),
	})
}
