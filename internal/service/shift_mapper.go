package service

import (
	"time"

	"shiftpos/internal/dto"
	"shiftpos/internal/model"
	"shiftpos/internal/till"

	"github.com/shopspring/decimal"
)

// ToShiftResponse renders a snapshot. expected_cash is live for an open
// shift and the recorded value once closed.
func ToShiftResponse(s *model.Shift) dto.ShiftResponse {
	out := dto.ShiftResponse{
		ID:             s.ID.String(),
		CashierID:      s.CashierID.String(),
		StoreID:        s.StoreID.String(),
		Status:         string(s.Status),
		OpeningBalance: s.OpeningBalance,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		PaymentSummary: make(map[string]decimal.Decimal, len(s.PaymentSummary)),
		CashMovements:  make([]dto.CashMovementResponse, 0, len(s.CashMovements)),
		Breaks:         make([]dto.BreakResponse, 0, len(s.Breaks)),
		ClosingCash:    s.ClosingCash,
		ClosingCard:    s.ClosingCard,
		ClosingDigital: s.ClosingDigital,
		ClosingNotes:   s.ClosingNotes,
		ExpectedCash:   till.ExpectedCash(s),
	}
	for method, amount := range s.PaymentSummary {
		out.PaymentSummary[string(method)] = amount
	}
	for _, m := range s.CashMovements {
		out.CashMovements = append(out.CashMovements, dto.CashMovementResponse{
			ID:        m.ID.String(),
			Type:      string(m.Type),
			Amount:    m.Amount,
			Reason:    m.Reason,
			Timestamp: m.Timestamp,
		})
	}
	for _, b := range s.Breaks {
		out.Breaks = append(out.Breaks, toBreakResponse(b))
	}
	if s.IsClosed() {
		if s.ExpectedCash != nil {
			out.ExpectedCash = *s.ExpectedCash
		}
		out.Variance = s.Variance
	}
	return out
}

func toBreakResponse(b model.BreakPeriod) dto.BreakResponse {
	return dto.BreakResponse{
		ID:        b.ID.String(),
		Type:      string(b.Type),
		Note:      b.Note,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
	}
}

// BuildReport assembles the supervisor view of a shift. The reconciliation
// block is only present once the shift is closed.
func BuildReport(s *model.Shift) *dto.ShiftReportResponse {
	movements := s.CashMovements
	ledger := till.NewCashLedger(&movements)
	report := &dto.ShiftReportResponse{
		Shift:    ToShiftResponse(s),
		TotalIn:  ledger.TotalIn(),
		TotalOut: ledger.TotalOut(),
	}
	if !s.IsClosed() {
		return report
	}

	closing := model.ShiftClosing{}
	if s.ClosingCash != nil {
		closing.ActualCash = *s.ClosingCash
	}
	if s.ClosingCard != nil {
		closing.ActualCard = *s.ClosingCard
	}
	if s.ClosingDigital != nil {
		closing.ActualDigital = *s.ClosingDigital
	}
	rec := till.Reconcile(s, closing)
	if s.ExpectedCash != nil {
		rec.ExpectedCash = *s.ExpectedCash
		rec.Variance = till.Variance(rec.ExpectedCash, rec.ActualCash)
	}
	report.Reconciliation = &dto.ReconciliationResponse{
		ExpectedCash:    rec.ExpectedCash,
		ActualCash:      rec.ActualCash,
		Variance:        rec.Variance,
		ExpectedCard:    rec.ExpectedCard,
		ActualCard:      rec.ActualCard,
		CardVariance:    rec.CardVariance,
		ExpectedDigital: rec.ExpectedDigital,
		ActualDigital:   rec.ActualDigital,
		DigitalVariance: rec.DigitalVariance,
	}
	return report
}

var transitionEvents = map[string]string{
	"startShift":      dto.EventShiftOpened,
	"addCashMovement": dto.EventShiftCashMovement,
	"startBreak":      dto.EventShiftBreakStarted,
	"endBreak":        dto.EventShiftBreakEnded,
	"endShift":        dto.EventShiftClosed,
}

// ShiftEventFor describes the transition op just committed on s.
func ShiftEventFor(op string, s *model.Shift) dto.ShiftEvent {
	ev := dto.ShiftEvent{
		Event:      transitionEvents[op],
		ShiftID:    s.ID.String(),
		CashierID:  s.CashierID.String(),
		StoreID:    s.StoreID.String(),
		Status:     string(s.Status),
		OccurredAt: time.Now().UTC(),
	}
	switch ev.Event {
	case dto.EventShiftOpened:
		ev.OccurredAt = s.StartTime
		amount := s.OpeningBalance
		ev.Amount = &amount
	case dto.EventShiftCashMovement:
		if n := len(s.CashMovements); n > 0 {
			last := s.CashMovements[n-1]
			ev.MovementType = string(last.Type)
			ev.Amount = &last.Amount
			ev.OccurredAt = last.Timestamp
		}
	case dto.EventShiftBreakStarted, dto.EventShiftBreakEnded:
		if n := len(s.Breaks); n > 0 {
			last := s.Breaks[n-1]
			ev.BreakType = string(last.Type)
			ev.OccurredAt = last.StartTime
			if last.EndTime != nil {
				ev.OccurredAt = *last.EndTime
			}
		}
	case dto.EventShiftClosed:
		if s.EndTime != nil {
			ev.OccurredAt = *s.EndTime
		}
		ev.ExpectedCash = s.ExpectedCash
		ev.Variance = s.Variance
	}
	return ev
}
