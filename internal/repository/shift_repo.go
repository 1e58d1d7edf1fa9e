package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shiftpos/internal/model"
	"shiftpos/internal/till"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("shift not found")

// ShiftRepository is the persistence contract of the shift lifecycle. Every
// mutation returns the full updated snapshot.
type ShiftRepository interface {
	// GetCurrentShift returns the cashier's non-closed shift, or nil.
	GetCurrentShift(ctx context.Context, cashierID uuid.UUID) (*model.Shift, error)
	StartShift(ctx context.Context, cashierID, storeID uuid.UUID, openingBalance decimal.Decimal) (*model.Shift, error)
	EndShift(ctx context.Context, shiftID uuid.UUID, closing model.ShiftClosing) (*model.Shift, error)
	AddCashMovement(ctx context.Context, shiftID uuid.UUID, t model.MovementType, amount decimal.Decimal, reason string) (*model.Shift, error)
	StartBreak(ctx context.Context, shiftID uuid.UUID, kind model.BreakType, note string) (*model.Shift, error)
	EndBreak(ctx context.Context, shiftID uuid.UUID) (*model.Shift, error)
	// GetShiftHistory lists closed shifts, newest first. page is 1-based.
	GetShiftHistory(ctx context.Context, cashierID uuid.UUID, page, limit int) (*model.ShiftPage, error)
}

type ShiftReader interface {
	FindShiftByID(ctx context.Context, id uuid.UUID) (*model.Shift, error)
}

// PaymentRecorder feeds the per-tender payment summary of an open shift.
// A non-empty paymentID makes the call idempotent: a payment already applied
// under that id returns the current snapshot unchanged.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, shiftID uuid.UUID, paymentID string, method model.TenderMethod, amount decimal.Decimal) (*model.Shift, error)
}

// ShiftStore is everything the backend persists for shifts.
type ShiftStore interface {
	ShiftRepository
	ShiftReader
	PaymentRecorder
}

type shiftRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewShiftRepository returns the Postgres store. The gorm.DB must be opened
// with TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey.
func NewShiftRepository(db *gorm.DB) ShiftStore {
	return &shiftRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func preloadShift(db *gorm.DB) *gorm.DB {
	return db.
		Preload("CashMovements", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("Breaks", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") })
}

func (r *shiftRepo) GetCurrentShift(ctx context.Context, cashierID uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := preloadShift(r.db.WithContext(ctx)).
		Where("cashier_id = ? AND status <> ?", cashierID, model.ShiftClosed).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) FindShiftByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	return loadShift(r.db.WithContext(ctx), id)
}

// loadShift reads a full snapshot. Mutations call it with their transaction
// so the returned snapshot is read before commit: once a change is committed
// the caller always gets it back.
func loadShift(db *gorm.DB, id uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := preloadShift(db).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) StartShift(ctx context.Context, cashierID, storeID uuid.UUID, openingBalance decimal.Decimal) (*model.Shift, error) {
	s, err := till.NewShift(cashierID, storeID, openingBalance, r.now())
	if err != nil {
		return nil, err
	}
	s.ID = uuid.New()

	var out *model.Shift
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&model.Shift{}).
			Where("cashier_id = ? AND status <> ?", cashierID, model.ShiftClosed).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return till.ErrAlreadyOpen
		}
		// The partial unique index on cashier_id catches the concurrent case.
		if err := tx.Omit(clause.Associations).Create(s).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return till.ErrAlreadyOpen
			}
			return err
		}
		out, err = loadShift(tx, s.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mutate loads the shift under a row lock, lets fn apply and persist the
// transition, and returns the snapshot reloaded inside the same transaction.
func (r *shiftRepo) mutate(ctx context.Context, shiftID uuid.UUID, fn func(tx *gorm.DB, s *model.Shift, now time.Time) error) (*model.Shift, error) {
	var out *model.Shift
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s model.Shift
		err := preloadShift(tx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&s, "id = ?", shiftID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := fn(tx, &s, r.now()); err != nil {
			return err
		}
		out, err = loadShift(tx, shiftID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *shiftRepo) AddCashMovement(ctx context.Context, shiftID uuid.UUID, t model.MovementType, amount decimal.Decimal, reason string) (*model.Shift, error) {
	return r.mutate(ctx, shiftID, func(tx *gorm.DB, s *model.Shift, now time.Time) error {
		m, err := till.ApplyCashMovement(s, t, amount, reason, now)
		if err != nil {
			return err
		}
		m.ID = uuid.New()
		m.ShiftID = s.ID
		return tx.Create(&m).Error
	})
}

func (r *shiftRepo) StartBreak(ctx context.Context, shiftID uuid.UUID, kind model.BreakType, note string) (*model.Shift, error) {
	return r.mutate(ctx, shiftID, func(tx *gorm.DB, s *model.Shift, now time.Time) error {
		b, err := till.ApplyStartBreak(s, kind, note, now)
		if err != nil {
			return err
		}
		b.ID = uuid.New()
		b.ShiftID = s.ID
		if err := tx.Create(&b).Error; err != nil {
			return err
		}
		return updateStatus(tx, s)
	})
}

func (r *shiftRepo) EndBreak(ctx context.Context, shiftID uuid.UUID) (*model.Shift, error) {
	return r.mutate(ctx, shiftID, func(tx *gorm.DB, s *model.Shift, now time.Time) error {
		b, err := till.ApplyEndBreak(s, now)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.BreakPeriod{}).Where("id = ?", b.ID).Update("end_time", b.EndTime).Error; err != nil {
			return err
		}
		return updateStatus(tx, s)
	})
}

func (r *shiftRepo) EndShift(ctx context.Context, shiftID uuid.UUID, closing model.ShiftClosing) (*model.Shift, error) {
	return r.mutate(ctx, shiftID, func(tx *gorm.DB, s *model.Shift, now time.Time) error {
		open := till.NewBreakTracker(&s.Breaks).ActiveBreak()
		if _, err := till.ApplyEndShift(s, closing, now); err != nil {
			return err
		}
		if open != nil {
			if err := tx.Model(&model.BreakPeriod{}).Where("id = ?", open.ID).Update("end_time", s.EndTime).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.Shift{}).Where("id = ?", s.ID).Updates(map[string]any{
			"status":          s.Status,
			"end_time":        *s.EndTime,
			"closing_cash":    *s.ClosingCash,
			"closing_card":    *s.ClosingCard,
			"closing_digital": *s.ClosingDigital,
			"expected_cash":   *s.ExpectedCash,
			"variance":        *s.Variance,
			"closing_notes":   s.ClosingNotes,
		}).Error
	})
}

func (r *shiftRepo) RecordPayment(ctx context.Context, shiftID uuid.UUID, paymentID string, method model.TenderMethod, amount decimal.Decimal) (*model.Shift, error) {
	if err := validatePayment(method, amount); err != nil {
		return nil, err
	}
	return r.mutate(ctx, shiftID, func(tx *gorm.DB, s *model.Shift, now time.Time) error {
		if paymentID != "" {
			// A replayed id inserts nothing; the shift may have closed since.
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.ShiftPayment{
				ID:         paymentID,
				ShiftID:    s.ID,
				Method:     method,
				Amount:     amount,
				RecordedAt: now,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
		}
		if s.IsClosed() {
			return till.ErrNoActiveShift
		}
		summary := addPayment(s.PaymentSummary, method, amount)
		return tx.Model(&model.Shift{}).Where("id = ?", s.ID).Update("payment_summary", summary).Error
	})
}

func (r *shiftRepo) GetShiftHistory(ctx context.Context, cashierID uuid.UUID, page, limit int) (*model.ShiftPage, error) {
	page, limit = NormalizePage(page, limit)
	closed := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.Shift{}).
			Where("cashier_id = ? AND status = ?", cashierID, model.ShiftClosed)
	}

	var total int64
	if err := closed().Count(&total).Error; err != nil {
		return nil, err
	}
	var shifts []model.Shift
	err := preloadShift(closed()).
		Order("end_time DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&shifts).Error
	if err != nil {
		return nil, err
	}
	return &model.ShiftPage{Shifts: shifts, Total: total}, nil
}

func updateStatus(tx *gorm.DB, s *model.Shift) error {
	return tx.Model(&model.Shift{}).Where("id = ?", s.ID).Update("status", s.Status).Error
}

// NormalizePage clamps history paging: page >= 1, limit in 1..100 (default 20).
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func validatePayment(method model.TenderMethod, amount decimal.Decimal) error {
	if !method.Valid() {
		return fmt.Errorf("%w: unknown tender method %q", till.ErrInvalidAmount, method)
	}
	if amount.IsZero() || !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: payment amount %s", till.ErrInvalidAmount, amount.String())
	}
	return nil
}

func addPayment(summary model.PaymentSummary, method model.TenderMethod, amount decimal.Decimal) model.PaymentSummary {
	out := model.PaymentSummary{}
	for k, v := range summary {
		out[k] = v
	}
	out[method] = out.Get(method).Add(amount)
	return out
}
