package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrBelowMinimum is returned when an update asks for fewer hours than
	// the subscription's minimum.
	ErrBelowMinimum = errors.New("requested hours below minimum")

	// ErrInvalidInput is returned for negative counts, unknown frequencies
	// and malformed rate tables.
	ErrInvalidInput = errors.New("invalid pricing input")
)

// BelowMinimumError carries the numbers behind ErrBelowMinimum.
type BelowMinimumError struct {
	Requested decimal.Decimal
	Minimum   decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("requested %s hours, minimum is %s", e.Requested, e.Minimum)
}

func (e *BelowMinimumError) Unwrap() error {
	return ErrBelowMinimum
}
