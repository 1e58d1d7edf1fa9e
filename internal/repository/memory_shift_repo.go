package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"shiftpos/internal/model"
	"shiftpos/internal/till"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryShiftRepository keeps shifts in process memory. It applies the same
// rules as the Postgres store and hands out deep copies only.
type MemoryShiftRepository struct {
	mu     sync.Mutex
	shifts map[uuid.UUID]*model.Shift
	// payments holds the ids of applied payments.
	payments map[string]uuid.UUID
	now      func() time.Time
}

// NewMemoryShiftRepository returns an empty store. now may be nil.
func NewMemoryShiftRepository(now func() time.Time) *MemoryShiftRepository {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryShiftRepository{
		shifts:   make(map[uuid.UUID]*model.Shift),
		payments: make(map[string]uuid.UUID),
		now:      now,
	}
}

var _ ShiftStore = (*MemoryShiftRepository)(nil)

func (r *MemoryShiftRepository) GetCurrentShift(_ context.Context, cashierID uuid.UUID) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.currentLocked(cashierID); s != nil {
		return s.Clone(), nil
	}
	return nil, nil
}

func (r *MemoryShiftRepository) FindShiftByID(_ context.Context, id uuid.UUID) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shifts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryShiftRepository) StartShift(_ context.Context, cashierID, storeID uuid.UUID, openingBalance decimal.Decimal) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentLocked(cashierID) != nil {
		return nil, till.ErrAlreadyOpen
	}
	s, err := till.NewShift(cashierID, storeID, openingBalance, r.now())
	if err != nil {
		return nil, err
	}
	s.ID = uuid.New()
	r.shifts[s.ID] = s
	return s.Clone(), nil
}

// mutate runs fn on a copy and commits it only when fn succeeds.
func (r *MemoryShiftRepository) mutate(shiftID uuid.UUID, fn func(s *model.Shift, now time.Time) error) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.shifts[shiftID]
	if !ok {
		return nil, ErrNotFound
	}
	draft := stored.Clone()
	if err := fn(draft, r.now()); err != nil {
		return nil, err
	}
	r.shifts[shiftID] = draft
	return draft.Clone(), nil
}

func (r *MemoryShiftRepository) AddCashMovement(_ context.Context, shiftID uuid.UUID, t model.MovementType, amount decimal.Decimal, reason string) (*model.Shift, error) {
	return r.mutate(shiftID, func(s *model.Shift, now time.Time) error {
		if _, err := till.ApplyCashMovement(s, t, amount, reason, now); err != nil {
			return err
		}
		last := &s.CashMovements[len(s.CashMovements)-1]
		last.ID = uuid.New()
		last.ShiftID = s.ID
		return nil
	})
}

func (r *MemoryShiftRepository) StartBreak(_ context.Context, shiftID uuid.UUID, kind model.BreakType, note string) (*model.Shift, error) {
	return r.mutate(shiftID, func(s *model.Shift, now time.Time) error {
		if _, err := till.ApplyStartBreak(s, kind, note, now); err != nil {
			return err
		}
		last := &s.Breaks[len(s.Breaks)-1]
		last.ID = uuid.New()
		last.ShiftID = s.ID
		return nil
	})
}

func (r *MemoryShiftRepository) EndBreak(_ context.Context, shiftID uuid.UUID) (*model.Shift, error) {
	return r.mutate(shiftID, func(s *model.Shift, now time.Time) error {
		_, err := till.ApplyEndBreak(s, now)
		return err
	})
}

func (r *MemoryShiftRepository) EndShift(_ context.Context, shiftID uuid.UUID, closing model.ShiftClosing) (*model.Shift, error) {
	return r.mutate(shiftID, func(s *model.Shift, now time.Time) error {
		_, err := till.ApplyEndShift(s, closing, now)
		return err
	})
}

func (r *MemoryShiftRepository) RecordPayment(_ context.Context, shiftID uuid.UUID, paymentID string, method model.TenderMethod, amount decimal.Decimal) (*model.Shift, error) {
	if err := validatePayment(method, amount); err != nil {
		return nil, err
	}
	// fn runs under r.mu, so the id check and the update are atomic.
	return r.mutate(shiftID, func(s *model.Shift, _ time.Time) error {
		if paymentID != "" {
			if _, seen := r.payments[paymentID]; seen {
				return nil
			}
		}
		if s.IsClosed() {
			return till.ErrNoActiveShift
		}
		s.PaymentSummary = addPayment(s.PaymentSummary, method, amount)
		if paymentID != "" {
			r.payments[paymentID] = s.ID
		}
		return nil
	})
}

func (r *MemoryShiftRepository) GetShiftHistory(_ context.Context, cashierID uuid.UUID, page, limit int) (*model.ShiftPage, error) {
	page, limit = NormalizePage(page, limit)
	r.mu.Lock()
	defer r.mu.Unlock()

	closed := make([]*model.Shift, 0)
	for _, s := range r.shifts {
		if s.CashierID == cashierID && s.Status == model.ShiftClosed {
			closed = append(closed, s)
		}
	}
	sort.Slice(closed, func(i, j int) bool {
		return closed[i].EndTime.After(*closed[j].EndTime)
	})

	out := &model.ShiftPage{Total: int64(len(closed)), Shifts: []model.Shift{}}
	start := (page - 1) * limit
	if start >= len(closed) {
		return out, nil
	}
	end := start + limit
	if end > len(closed) {
		end = len(closed)
	}
	for _, s := range closed[start:end] {
		out.Shifts = append(out.Shifts, *s.Clone())
	}
	return out, nil
}

func (r *MemoryShiftRepository) currentLocked(cashierID uuid.UUID) *model.Shift {
	for _, s := range r.shifts {
		if s.CashierID == cashierID && s.Status != model.ShiftClosed {
			return s
		}
	}
	return nil
}
