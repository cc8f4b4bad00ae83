// Package numbers holds the decimal conventions shared by every money calculation
// in the engine.
package numbers

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits every persisted amount carries.
// It matches the numeric(78, 18) columns.
const AmountScale int32 = 18

// CalculationPrecision is the working precision for intermediate values such as
// logarithms and growth factors, comfortably above AmountScale.
const CalculationPrecision int32 = 36

var ErrNonFinite = errors.New("value is not a finite number")

// TruncateAmount applies the engine's single rounding rule: truncate toward zero at
// AmountScale digits. Truncation never rounds an allocation up, which keeps pooled
// distributions within their budget.
func TruncateAmount(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(AmountScale)
}

// FromFloat converts a float at an API boundary, rejecting NaN and infinities.
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNonFinite, f)
	}
	return decimal.NewFromFloat(f), nil
}

// ParseAmount parses a decimal string such as "1000.5".
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.New("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount '%s': %w", s, err)
	}
	return d, nil
}

// SumAmounts adds a list of amounts.
func SumAmounts(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
