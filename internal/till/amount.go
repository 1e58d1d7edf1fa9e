package till

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are fixed-point with two fractional digits.
const moneyScale = 2

// ValidatePositive rejects amounts that are not strictly positive or carry
// more than two decimals.
func ValidatePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, amount.String())
	}
	return validateScale(amount)
}

// ValidateNonNegative is the rule for opening balances and closing counts.
func ValidateNonNegative(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidAmount, amount.String())
	}
	return validateScale(amount)
}

func validateScale(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(moneyScale)) {
		return fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, amount.String(), moneyScale)
	}
	return nil
}
