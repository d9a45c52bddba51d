package shared

import (
	"math"

	"github.com/shopspring/decimal"
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits converts a decimal amount into cents. Amounts with more than two
// fraction digits or outside the int64 range are rejected.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.Equal(amount.Round(2)) {
		return 0, ErrInvalidInput{Field: "amount", Reason: "at most two decimal places are allowed"}
	}
	shifted := amount.Shift(2)
	if shifted.Abs().GreaterThan(maxMinorUnits) {
		return 0, ErrInvalidInput{Field: "amount", Reason: "amount is out of range"}
	}
	return shifted.IntPart(), nil
}

// FromMinorUnits converts cents into a decimal amount with two fraction digits
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
