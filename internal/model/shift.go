package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShiftStatus is the lifecycle state of a cashier shift.
type ShiftStatus string

const (
	ShiftClosed  ShiftStatus = "CLOSED"
	ShiftOpen    ShiftStatus = "OPEN"
	ShiftOnBreak ShiftStatus = "ON_BREAK"
)

// Valid reports whether s is one of the three known states.
func (s ShiftStatus) Valid() bool {
	switch s {
	case ShiftClosed, ShiftOpen, ShiftOnBreak:
		return true
	}
	return false
}

// TenderMethod keys the per-tender payment summary.
type TenderMethod string

const (
	TenderCash    TenderMethod = "CASH"
	TenderCard    TenderMethod = "CARD"
	TenderDigital TenderMethod = "DIGITAL"
)

func (t TenderMethod) Valid() bool {
	switch t {
	case TenderCash, TenderCard, TenderDigital:
		return true
	}
	return false
}

// MovementType: IN = pay-in, OUT = pay-out.
type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

func (t MovementType) Valid() bool {
	return t == MovementIn || t == MovementOut
}

type BreakType string

const (
	BreakLunch BreakType = "LUNCH"
	BreakShort BreakType = "SHORT"
	BreakOther BreakType = "OTHER"
)

func (t BreakType) Valid() bool {
	switch t {
	case BreakLunch, BreakShort, BreakOther:
		return true
	}
	return false
}

// PaymentSummary holds accumulated sales per tender method. It is owned by
// the persistence layer; the shift lifecycle only reads it.
type PaymentSummary map[TenderMethod]decimal.Decimal

// Get returns the amount for method, zero when absent.
func (p PaymentSummary) Get(method TenderMethod) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p[method]
}

func (p PaymentSummary) clone() PaymentSummary {
	if p == nil {
		return nil
	}
	out := make(PaymentSummary, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Shift is one cashier's till-custody period from open to close.
// Status CLOSED is terminal: movements, breaks and payment summary are frozen.
type Shift struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CashierID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	StoreID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status         ShiftStatus     `gorm:"type:varchar(20);not null;default:'OPEN'"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	StartTime      time.Time       `gorm:"not null"`
	EndTime        *time.Time
	PaymentSummary PaymentSummary `gorm:"type:jsonb;not null;default:'{}'"`

	// Closing data, set exactly once by EndShift.
	ClosingCash    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ClosingCard    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ClosingDigital *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ExpectedCash   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Variance       *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ClosingNotes   *string

	CashMovements []CashMovement `gorm:"foreignKey:ShiftID"`
	Breaks        []BreakPeriod  `gorm:"foreignKey:ShiftID"`
}

func (s *Shift) IsClosed() bool { return s == nil || s.Status == ShiftClosed }

// Clone returns a deep copy so callers can hand out snapshots without
// sharing slices or maps with the owner.
func (s *Shift) Clone() *Shift {
	if s == nil {
		return nil
	}
	c := *s
	c.EndTime = cloneTime(s.EndTime)
	c.PaymentSummary = s.PaymentSummary.clone()
	c.ClosingCash = cloneDecimal(s.ClosingCash)
	c.ClosingCard = cloneDecimal(s.ClosingCard)
	c.ClosingDigital = cloneDecimal(s.ClosingDigital)
	c.ExpectedCash = cloneDecimal(s.ExpectedCash)
	c.Variance = cloneDecimal(s.Variance)
	if s.ClosingNotes != nil {
		n := *s.ClosingNotes
		c.ClosingNotes = &n
	}
	if s.CashMovements != nil {
		c.CashMovements = make([]CashMovement, len(s.CashMovements))
		copy(c.CashMovements, s.CashMovements)
	}
	if s.Breaks != nil {
		c.Breaks = make([]BreakPeriod, len(s.Breaks))
		for i, b := range s.Breaks {
			b.EndTime = cloneTime(b.EndTime)
			c.Breaks[i] = b
		}
	}
	return &c
}

// CashMovement is a manual pay-in or pay-out. Append-only; Amount > 0.
type CashMovement struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ShiftID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	Type      MovementType    `gorm:"type:varchar(10);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason    string
	Timestamp time.Time `gorm:"not null"`
	// Seq is assigned by the database and fixes insertion order.
	Seq int64 `gorm:"->"`
}

// BreakPeriod is a pause inside an open shift. EndTime is nil while active.
type BreakPeriod struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ShiftID   uuid.UUID `gorm:"type:uuid;index;not null"`
	Type      BreakType `gorm:"type:varchar(10);not null"`
	Note      string
	StartTime time.Time `gorm:"not null"`
	EndTime   *time.Time
	Seq       int64 `gorm:"->"`
}

func (b BreakPeriod) Active() bool { return b.EndTime == nil }

// ShiftPayment is one applied payment. ID is the caller's idempotency key:
// a payment whose ID is already recorded is not added again.
type ShiftPayment struct {
	ID         string          `gorm:"type:varchar(128);primaryKey"`
	ShiftID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	Method     TenderMethod    `gorm:"type:varchar(20);not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	RecordedAt time.Time       `gorm:"not null"`
}

// ShiftClosing carries the declared counts for EndShift.
type ShiftClosing struct {
	ActualCash    decimal.Decimal
	ActualCard    decimal.Decimal
	ActualDigital decimal.Decimal
	Notes         string
}

// ShiftPage is one page of closed-shift history.
type ShiftPage struct {
	Shifts []Shift
	Total  int64
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// Value stores the summary as a JSON object in a jsonb column.
func (p PaymentSummary) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[TenderMethod]decimal.Decimal(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PaymentSummary) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = PaymentSummary{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("payment summary: unsupported type %T", src)
	}
	out := PaymentSummary{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("payment summary: %w", err)
	}
	*p = out
	return nil
}
