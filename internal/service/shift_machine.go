package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shiftpos/internal/model"
	"shiftpos/internal/repository"
	"shiftpos/internal/till"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ShiftMachine drives one cashier's shift through CLOSED → OPEN ⇄ ON_BREAK →
// CLOSED. Guards run locally on a copy of the current snapshot; a request
// that passes them issues exactly one store call, and the snapshot is only
// replaced with what the store returns. A failed call leaves it untouched.
//
// A ShiftMachine is not safe for concurrent use: operations for one cashier
// are expected to be serialized by the caller.
type ShiftMachine struct {
	store     repository.ShiftRepository
	cashierID uuid.UUID
	current   *model.Shift
	now       func() time.Time
}

func NewShiftMachine(store repository.ShiftRepository, cashierID uuid.UUID) *ShiftMachine {
	return &ShiftMachine{
		store:     store,
		cashierID: cashierID,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Restore seeds the machine with a previously cached snapshot. It is only a
// display fallback; Refresh must still be called before trusting it.
func (m *ShiftMachine) Restore(s *model.Shift) {
	if s != nil && s.CashierID == m.cashierID {
		m.current = s.Clone()
	}
}

// Refresh replaces the local snapshot with the store's current shift. It
// must run whenever the caller's session is (re)established.
func (m *ShiftMachine) Refresh(ctx context.Context) error {
	s, err := m.store.GetCurrentShift(ctx, m.cashierID)
	if err != nil {
		return m.fail("getCurrentShift", err)
	}
	m.current = s
	return nil
}

// Current returns a copy of the last known-good snapshot, which may be a
// just-closed shift. Nil means no shift has been seen.
func (m *ShiftMachine) Current() *model.Shift { return m.current.Clone() }

func (m *ShiftMachine) CashierID() uuid.UUID { return m.cashierID }

func (m *ShiftMachine) Status() model.ShiftStatus {
	if m.current.IsClosed() {
		return model.ShiftClosed
	}
	return m.current.Status
}

// ActiveBreak drives the "resume from break" prompt. The machine never ends
// a break by itself.
func (m *ShiftMachine) ActiveBreak() *model.BreakPeriod {
	if m.current.IsClosed() {
		return nil
	}
	return till.NewBreakTracker(&m.current.Breaks).ActiveBreak()
}

// ExpectedCash is the live expectation for an open shift, or the recorded
// one for a closed shift. ok is false when there is no shift at all.
func (m *ShiftMachine) ExpectedCash() (decimal.Decimal, bool) {
	if m.current == nil {
		return decimal.Zero, false
	}
	if m.current.IsClosed() && m.current.ExpectedCash != nil {
		return *m.current.ExpectedCash, true
	}
	return till.ExpectedCash(m.current), true
}

func (m *ShiftMachine) StartShift(ctx context.Context, storeID uuid.UUID, openingBalance decimal.Decimal) (*model.Shift, error) {
	if _, err := till.NewShift(m.cashierID, storeID, openingBalance, m.now()); err != nil {
		return nil, m.reject("startShift", err)
	}
	if !m.current.IsClosed() {
		return nil, m.reject("startShift", till.ErrAlreadyOpen)
	}
	existing, err := m.store.GetCurrentShift(ctx, m.cashierID)
	if err != nil {
		return nil, m.fail("getCurrentShift", err)
	}
	if existing != nil {
		return nil, m.reject("startShift", till.ErrAlreadyOpen)
	}

	s, err := m.store.StartShift(ctx, m.cashierID, storeID, openingBalance)
	return m.adopt("startShift", s, err)
}

func (m *ShiftMachine) AddCashMovement(ctx context.Context, t model.MovementType, amount decimal.Decimal, reason string) (*model.Shift, error) {
	id, err := m.check("addCashMovement", func(draft *model.Shift) error {
		_, err := till.ApplyCashMovement(draft, t, amount, reason, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s, err := m.store.AddCashMovement(ctx, id, t, amount, reason)
	return m.adopt("addCashMovement", s, err)
}

func (m *ShiftMachine) StartBreak(ctx context.Context, kind model.BreakType, note string) (*model.Shift, error) {
	id, err := m.check("startBreak", func(draft *model.Shift) error {
		_, err := till.ApplyStartBreak(draft, kind, note, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s, err := m.store.StartBreak(ctx, id, kind, note)
	return m.adopt("startBreak", s, err)
}

func (m *ShiftMachine) EndBreak(ctx context.Context) (*model.Shift, error) {
	id, err := m.check("endBreak", func(draft *model.Shift) error {
		_, err := till.ApplyEndBreak(draft, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s, err := m.store.EndBreak(ctx, id)
	return m.adopt("endBreak", s, err)
}

// EndShift closes the shift, from OPEN or ON_BREAK. An open break is closed
// with the shift's end time. The returned snapshot carries the store's
// expected cash and variance.
func (m *ShiftMachine) EndShift(ctx context.Context, closing model.ShiftClosing) (*model.Shift, error) {
	id, err := m.check("endShift", func(draft *model.Shift) error {
		_, err := till.ApplyEndShift(draft, closing, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s, err := m.store.EndShift(ctx, id, closing)
	return m.adopt("endShift", s, err)
}

// History is a read; it does not touch the local snapshot.
func (m *ShiftMachine) History(ctx context.Context, page, limit int) (*model.ShiftPage, error) {
	p, err := m.store.GetShiftHistory(ctx, m.cashierID, page, limit)
	if err != nil {
		return nil, m.fail("getShiftHistory", err)
	}
	return p, nil
}

// check runs a transition on a throwaway copy of the current shift and
// returns the id the store call must address.
func (m *ShiftMachine) check(op string, apply func(draft *model.Shift) error) (uuid.UUID, error) {
	if m.current.IsClosed() {
		return uuid.Nil, m.reject(op, till.ErrNoActiveShift)
	}
	if err := apply(m.current.Clone()); err != nil {
		return uuid.Nil, m.reject(op, err)
	}
	return m.current.ID, nil
}

func (m *ShiftMachine) adopt(op string, s *model.Shift, err error) (*model.Shift, error) {
	if err != nil {
		return nil, m.fail(op, err)
	}
	if s == nil {
		return nil, m.fail(op, errors.New("empty shift snapshot"))
	}
	m.current = s
	log.Info().
		Str("op", op).
		Str("cashier_id", m.cashierID.String()).
		Str("shift_id", s.ID.String()).
		Str("status", string(s.Status)).
		Msg("shift transition")
	return s.Clone(), nil
}

func (m *ShiftMachine) reject(op string, err error) error {
	log.Debug().Err(err).Str("op", op).Str("cashier_id", m.cashierID.String()).Msg("shift transition rejected")
	return err
}

func (m *ShiftMachine) fail(op string, err error) error {
	err = classifyStoreError(op, err)
	if till.IsRejection(err) {
		return m.reject(op, err)
	}
	log.Error().Err(err).Str("op", op).Str("cashier_id", m.cashierID.String()).Msg("shift store call failed")
	return err
}

// classifyStoreError sorts a store error. Rule violations reported by the
// store (another device got there first) pass through as rejections; a shift
// the store no longer knows is NoActiveShift; anything else is a
// collaborator failure.
func classifyStoreError(op string, err error) error {
	switch {
	case till.IsRejection(err), errors.Is(err, till.ErrCollaboratorUnavailable):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", till.ErrNoActiveShift, err)
	}
	return &till.CollaboratorError{Op: op, Err: err}
}
