package repository

import (
	"context"
	"time"

	"shiftpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// timeoutStore bounds every store call so a hung database surfaces as an
// error instead of a stuck request.
type timeoutStore struct {
	next ShiftStore
	d    time.Duration
}

// WithTimeout wraps store; d <= 0 returns it unchanged.
func WithTimeout(store ShiftStore, d time.Duration) ShiftStore {
	if d <= 0 {
		return store
	}
	return &timeoutStore{next: store, d: d}
}

func (s *timeoutStore) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.d)
}

func (s *timeoutStore) GetCurrentShift(ctx context.Context, cashierID uuid.UUID) (*model.Shift, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.next.GetCurrentShift(ctx, cashierID)
}

func (s *timeoutStore) StartShift(ctx context.Context, cashierID, storeID uuid.UUID, openingBalance decimal.Decimal) (*model.Shift, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.next.StartShift(ctx, cashierID, storeID, openingBalance)
}

func (s *timeoutStore) EndShift(ctx context.Context, shiftID uuid.UUID, closing model.ShiftClosing) (*model.Shift, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.next.EndShift(ctx, shiftID, closing)
}

func (s *timeoutStore) AddCashMovement(ctx context.Context, shiftID uuid.UUID, t model.MovementType, amount decimal.Decimal, reason string) (*model.Shift, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.next.AddCashMovement(ctx, shiftID, t, amount, reason)
}

func (s *timeoutStore) StartBreak(ctx context.Context, shiftID uuid.UUID, kind model.BreakType, note string) (*model.Shift, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.next.StartBreak(ctx, shiftID, kind, note)
}

func (s *timeoutStore) EndBreak(ctx context.Context, shiftID uuid.UUID) (*model.Shift, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.next.EndBreak(ctx, shiftID)
}

func (s *timeoutStore) GetShiftHistory(ctx context.Context, cashierID uuid.UUID, page, limit int) (*model.ShiftPage, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.next.GetShiftHistory(ctx, cashierID, page, limit)
}

func (s *timeoutStore) FindShiftByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.next.FindShiftByID(ctx, id)
}

func (s *timeoutStore) RecordPayment(ctx context.Context, shiftID uuid.UUID, paymentID string, method model.TenderMethod, amount decimal.Decimal) (*model.Shift, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.next.RecordPayment(ctx, shiftID, paymentID, method, amount)
}
