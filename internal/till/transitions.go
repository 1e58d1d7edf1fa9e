package till

import (
	"time"

	"shiftpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The Apply* functions run a transition against a shift in place. The
// state machine runs them on a throwaway copy to reject bad requests before
// any store call; stores run them on the authoritative row.

// NewShift builds an OPEN shift. The store assigns the id.
func NewShift(cashierID, storeID uuid.UUID, openingBalance decimal.Decimal, at time.Time) (*model.Shift, error) {
	if err := ValidateNonNegative(openingBalance); err != nil {
		return nil, err
	}
	return &model.Shift{
		CashierID:      cashierID,
		StoreID:        storeID,
		Status:         model.ShiftOpen,
		OpeningBalance: openingBalance,
		StartTime:      at,
		PaymentSummary: model.PaymentSummary{},
	}, nil
}

func ApplyCashMovement(s *model.Shift, t model.MovementType, amount decimal.Decimal, reason string, at time.Time) (model.CashMovement, error) {
	switch {
	case s.IsClosed():
		return model.CashMovement{}, ErrNoActiveShift
	case s.Status == model.ShiftOnBreak:
		return model.CashMovement{}, ErrShiftOnBreak
	}
	m, err := NewCashLedger(&s.CashMovements).Record(t, amount, reason, at)
	if err != nil {
		return model.CashMovement{}, err
	}
	return m, nil
}

func ApplyStartBreak(s *model.Shift, kind model.BreakType, note string, at time.Time) (model.BreakPeriod, error) {
	if s.IsClosed() {
		return model.BreakPeriod{}, ErrNoActiveShift
	}
	b, err := NewBreakTracker(&s.Breaks).Start(kind, note, at)
	if err != nil {
		return model.BreakPeriod{}, err
	}
	s.Status = model.ShiftOnBreak
	return b, nil
}

func ApplyEndBreak(s *model.Shift, at time.Time) (model.BreakPeriod, error) {
	if s.IsClosed() {
		return model.BreakPeriod{}, ErrNoActiveShift
	}
	b, err := NewBreakTracker(&s.Breaks).End(at)
	if err != nil {
		return model.BreakPeriod{}, err
	}
	s.Status = model.ShiftOpen
	return b, nil
}

// ApplyEndShift closes the shift. An open break is closed with the shift's
// end time. Expected cash and variance are computed from the shift as it
// stands, so stores must call this with their authoritative payment summary.
func ApplyEndShift(s *model.Shift, closing model.ShiftClosing, at time.Time) (Reconciliation, error) {
	if s.IsClosed() {
		return Reconciliation{}, ErrNoActiveShift
	}
	if err := ValidateClosing(closing); err != nil {
		return Reconciliation{}, err
	}
	end := at
	if !end.After(s.StartTime) {
		end = s.StartTime.Add(time.Microsecond)
	}
	tracker := NewBreakTracker(&s.Breaks)
	if tracker.ActiveBreak() != nil {
		if _, err := tracker.End(end); err != nil {
			return Reconciliation{}, err
		}
	}

	rec := Reconcile(s, closing)
	s.Status = model.ShiftClosed
	s.EndTime = &end
	s.ClosingCash = &rec.ActualCash
	s.ClosingCard = &rec.ActualCard
	s.ClosingDigital = &rec.ActualDigital
	s.ExpectedCash = &rec.ExpectedCash
	s.Variance = &rec.Variance
	if closing.Notes != "" {
		notes := closing.Notes
		s.ClosingNotes = &notes
	}
	return rec, nil
}
