package till

import (
	"shiftpos/internal/model"

	"github.com/shopspring/decimal"
)

// ExpectedCash = opening balance + cash sales + pay-ins - pay-outs.
func ExpectedCash(shift *model.Shift) decimal.Decimal {
	movements := shift.CashMovements
	ledger := NewCashLedger(&movements)
	return shift.OpeningBalance.
		Add(shift.PaymentSummary.Get(model.TenderCash)).
		Add(ledger.TotalIn()).
		Sub(ledger.TotalOut())
}

// Variance is counted minus expected: positive is a surplus, negative a shortage.
func Variance(expected, actual decimal.Decimal) decimal.Decimal {
	return actual.Sub(expected)
}

// Reconciliation is the outcome of comparing declared counts with the
// shift's expectation. Card and digital are compared against the payment
// summary directly since no manual movements touch them.
type Reconciliation struct {
	ExpectedCash    decimal.Decimal
	ActualCash      decimal.Decimal
	Variance        decimal.Decimal
	ExpectedCard    decimal.Decimal
	ActualCard      decimal.Decimal
	CardVariance    decimal.Decimal
	ExpectedDigital decimal.Decimal
	ActualDigital   decimal.Decimal
	DigitalVariance decimal.Decimal
}

func Reconcile(shift *model.Shift, closing model.ShiftClosing) Reconciliation {
	expected := ExpectedCash(shift)
	card := shift.PaymentSummary.Get(model.TenderCard)
	digital := shift.PaymentSummary.Get(model.TenderDigital)
	return Reconciliation{
		ExpectedCash:    expected,
		ActualCash:      closing.ActualCash,
		Variance:        Variance(expected, closing.ActualCash),
		ExpectedCard:    card,
		ActualCard:      closing.ActualCard,
		CardVariance:    Variance(card, closing.ActualCard),
		ExpectedDigital: digital,
		ActualDigital:   closing.ActualDigital,
		DigitalVariance: Variance(digital, closing.ActualDigital),
	}
}

// ValidateClosing checks the declared counts before any store call.
func ValidateClosing(c model.ShiftClosing) error {
	for _, amount := range []decimal.Decimal{c.ActualCash, c.ActualCard, c.ActualDigital} {
		if err := ValidateNonNegative(amount); err != nil {
			return err
		}
	}
	return nil
}
