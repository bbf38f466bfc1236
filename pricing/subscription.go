package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinimumMode decides what happens when fewer hours than the minimum are
// requested.
type MinimumMode int

const (
	// Strict fails with ErrBelowMinimum. Used by update flows.
	Strict MinimumMode = iota

	// RaiseToMinimum silently substitutes the minimum. Used when a
	// subscription is first priced.
	RaiseToMinimum
)

// PriceRequest is the input of ComputeSubscriptionPrice.
type PriceRequest struct {
	Hours     decimal.Decimal
	Frequency Frequency

	// MinimumHours is the subscription's own minimum, usually the output of
	// ComputeHours for the customer's home. Zero means only rates.MinHours
	// applies.
	MinimumHours decimal.Decimal

	Mode MinimumMode
}

// SubscriptionPrice is the priced subscription.
type SubscriptionPrice struct {
	Hours                decimal.Decimal
	PricePerSessionCents int64
	SessionsPerCycle     int
	BundleAmountCents    int64
}

var hundred = decimal.NewFromInt(100)

// ComputeSubscriptionPrice prices one billing cycle of a subscription.
//
// Hours times price per hour gives the session price; times the fixed
// sessions per cycle gives the bundle. Both are converted to cents once,
// rounding half away from zero.
func ComputeSubscriptionPrice(req PriceRequest, rates RateTable) (SubscriptionPrice, error) {
	if err := rates.Validate(); err != nil {
		return SubscriptionPrice{}, err
	}
	sessions, err := SessionsPerCycle(req.Frequency)
	if err != nil {
		return SubscriptionPrice{}, err
	}
	if req.Hours.IsNegative() {
		return SubscriptionPrice{}, fmt.Errorf("%w: negative hours %s", ErrInvalidInput, req.Hours)
	}

	minimum := decimal.Max(req.MinimumHours, rates.MinHours)
	hours := req.Hours
	if hours.LessThan(minimum) {
		if req.Mode == Strict {
			return SubscriptionPrice{}, &BelowMinimumError{Requested: hours, Minimum: minimum}
		}
		hours = minimum
	}

	perSession := hours.Mul(rates.PricePerHour)
	bundle := perSession.Mul(decimal.NewFromInt(int64(sessions)))

	return SubscriptionPrice{
		Hours:                hours,
		PricePerSessionCents: toCents(perSession),
		SessionsPerCycle:     sessions,
		BundleAmountCents:    toCents(bundle),
	}, nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
