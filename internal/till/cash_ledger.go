package till

import (
	"fmt"
	"time"

	"shiftpos/internal/model"

	"github.com/shopspring/decimal"
)

// CashLedger appends pay-ins and pay-outs to a shift's movement slice.
// It keeps no state of its own; totals are recomputed on every call.
type CashLedger struct {
	movements *[]model.CashMovement
}

func NewCashLedger(movements *[]model.CashMovement) CashLedger {
	return CashLedger{movements: movements}
}

// Record validates and appends a movement. On error the slice is untouched.
func (l CashLedger) Record(t model.MovementType, amount decimal.Decimal, reason string, at time.Time) (model.CashMovement, error) {
	if !t.Valid() {
		return model.CashMovement{}, fmt.Errorf("%w: unknown movement type %q", ErrInvalidAmount, t)
	}
	if err := ValidatePositive(amount); err != nil {
		return model.CashMovement{}, err
	}
	m := model.CashMovement{
		Type:      t,
		Amount:    amount,
		Reason:    reason,
		Timestamp: at,
	}
	*l.movements = append(*l.movements, m)
	return m, nil
}

func (l CashLedger) TotalIn() decimal.Decimal { return l.total(model.MovementIn) }

func (l CashLedger) TotalOut() decimal.Decimal { return l.total(model.MovementOut) }

func (l CashLedger) total(t model.MovementType) decimal.Decimal {
	sum := decimal.Zero
	if l.movements == nil {
		return sum
	}
	for _, m := range *l.movements {
		if m.Type == t {
			sum = sum.Add(m.Amount)
		}
	}
	return sum
}
