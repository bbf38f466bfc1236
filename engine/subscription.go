package engine

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/warp/match-engine/pricing"
)

// UpdateSubscriptionHours changes the hours per session of a subscription
// and reprices it. Fewer hours than the stored minimum fail with
// BELOW_MINIMUM; the request is never silently corrected.
func (s *Service) UpdateSubscriptionHours(ctx context.Context, subscriptionID string, hours decimal.Decimal, performedBy string) (*Subscription, error) {
	const op = "update_hours"
	if s.rates == nil {
		return nil, newError(KindDependencyFailure, op, "no rate table configured")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		records, err := s.store.Find(ctx, CollSubscriptions, Query{
			Filter: Where(Eq(fieldID, subscriptionID)),
			Limit:  1,
		})
		if err != nil {
			return nil, wrapStore(op, err)
		}
		if len(records) == 0 {
			return nil, newError(KindNotFound, op, "subscription %s not found", subscriptionID)
		}
		sub := subscriptionFromRecord(records[0])
		if sub.Status == SubscriptionStopped {
			return nil, newError(KindInvalidTransition, op, "subscription %s is stopped", sub.ID)
		}

		minimum := decimal.Zero
		if sub.MinimumHours != "" {
			if minimum, err = decimal.NewFromString(sub.MinimumHours); err != nil {
				return nil, &Error{Kind: KindDependencyFailure, Op: op, Message: "stored minimum hours unreadable", Err: err}
			}
		}

		price, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{
			Hours:        hours,
			Frequency:    pricing.Frequency(sub.Frequency),
			MinimumHours: minimum,
			Mode:         pricing.Strict,
		}, *s.rates)
		if err != nil {
			kind := KindDependencyFailure
			if errors.Is(err, pricing.ErrBelowMinimum) || hours.IsNegative() {
				kind = KindBelowMinimum
			}
			return nil, &Error{Kind: kind, Op: op, Message: "cannot price subscription", Err: err}
		}

		now := s.clock()
		patch := Record{
			fieldHours:                price.Hours.String(),
			"price_per_session_cents": price.PricePerSessionCents,
			"sessions_per_cycle":      price.SessionsPerCycle,
			"bundle_amount_cents":     price.BundleAmountCents,
			fieldUpdatedAt:            FormatTime(now),
		}
		n, err := s.store.Update(ctx, CollSubscriptions,
			Where(Eq(fieldID, sub.ID), Eq(fieldHours, sub.Hours)),
			patch,
		)
		if err != nil {
			return nil, wrapStore(op, err)
		}
		if n == 0 {
			s.logger.Warn("conditional subscription update lost, re-evaluating",
				"subscription_id", sub.ID,
				"attempt", attempt,
			)
			continue
		}

		s.recordAudit(ctx, AuditEntry{
			Module:      string(CollSubscriptions),
			EntityID:    sub.ID,
			Action:      AuditSubscriptionHoursUpdated,
			PerformedBy: performedBy,
			Details: map[string]any{
				"before_hours":        sub.Hours,
				"after_hours":         price.Hours.String(),
				"bundle_amount_cents": price.BundleAmountCents,
			},
		})

		sub.Hours = price.Hours.String()
		sub.PricePerSessionCents = price.PricePerSessionCents
		sub.SessionsPerCycle = price.SessionsPerCycle
		sub.BundleAmountCents = price.BundleAmountCents
		sub.UpdatedAt = now
		return &sub, nil
	}
	return nil, newError(KindDependencyFailure, op, "subscription %s kept changing concurrently", subscriptionID)
}
