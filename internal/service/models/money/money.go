// Package money converts between API decimal amounts and stored minor units.
package money

import (
	"errors"
	"math"
)

// Cents is an amount in minor currency units.
type Cents int64

var (
	ErrNegative  = errors.New("amount is negative")
	ErrNonFinite = errors.New("amount is not a finite number")
	ErrPrecision = errors.New("amount has more precision than the currency minor unit")
	ErrOverflow  = errors.New("amount is too large")
)

const (
	minorPerMajor = 100
	// epsilon absorbs binary float noise such as 8.9*100 == 890.0000000000001.
	epsilon = 1e-6
	// maxMajor bounds a single unit price. Line and order totals are still
	// checked by Times and Add.
	maxMajor = 1e12
)

// FromMajor converts a decimal amount in major units (8.90) to minor units (890).
func FromMajor(v float64) (Cents, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNonFinite
	}
	if v < 0 {
		return 0, ErrNegative
	}
	if v > maxMajor {
		return 0, ErrOverflow
	}

	scaled := v * minorPerMajor
	rounded := math.Round(scaled)
	if math.Abs(scaled-rounded) > epsilon {
		return 0, ErrPrecision
	}

	return Cents(rounded), nil
}

// Major returns the amount in major units for JSON responses.
func (c Cents) Major() float64 {
	return float64(c) / minorPerMajor
}

// Times multiplies a unit amount by a quantity, failing with ErrOverflow when
// the product does not fit in Cents.
func (c Cents) Times(qty int) (Cents, error) {
	if c < 0 || qty < 0 {
		return 0, ErrNegative
	}
	if c != 0 && Cents(qty) > math.MaxInt64/c {
		return 0, ErrOverflow
	}

	return c * Cents(qty), nil
}

// Add sums two amounts, failing with ErrOverflow when the sum does not fit.
func (c Cents) Add(other Cents) (Cents, error) {
	if c < 0 || other < 0 {
		return 0, ErrNegative
	}
	if c > math.MaxInt64-other {
		return 0, ErrOverflow
	}

	return c + other, nil
}

// Validate checks an amount already held in minor units.
func (c Cents) Validate() error {
	if c < 0 {
		return ErrNegative
	}

	return nil
}
