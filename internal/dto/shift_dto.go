package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// Amounts carry no validator tags: sign and scale are checked by the till
// rules so every caller gets the same INVALID_AMOUNT answer.

type StartShiftRequest struct {
	StoreID        string          `json:"store_id"        validate:"required,uuid"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type CashMovementRequest struct {
	Type   string          `json:"type"   validate:"required,oneof=IN OUT"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"max=255"`
}

type StartBreakRequest struct {
	Type string `json:"type" validate:"required,oneof=LUNCH SHORT OTHER"`
	Note string `json:"note" validate:"max=255"`
}

type EndShiftRequest struct {
	ActualCash    decimal.Decimal `json:"actual_cash"`
	ActualCard    decimal.Decimal `json:"actual_card"`
	ActualDigital decimal.Decimal `json:"actual_digital"`
	Notes         string          `json:"notes" validate:"max=1000"`
}

// PaymentRequest is a signed tender amount; refunds are negative. A repeated
// payment_id is applied once.
type PaymentRequest struct {
	PaymentID string          `json:"payment_id,omitempty" validate:"omitempty,max=128"`
	Method    string          `json:"method" validate:"required,oneof=CASH CARD DIGITAL"`
	Amount    decimal.Decimal `json:"amount"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CashMovementResponse struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	Timestamp time.Time       `json:"timestamp"`
}

type BreakResponse struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Note      string     `json:"note"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

type ShiftResponse struct {
	ID             string                     `json:"id"`
	CashierID      string                     `json:"cashier_id"`
	StoreID        string                     `json:"store_id"`
	Status         string                     `json:"status"`
	OpeningBalance decimal.Decimal            `json:"opening_balance"`
	StartTime      time.Time                  `json:"start_time"`
	EndTime        *time.Time                 `json:"end_time"`
	PaymentSummary map[string]decimal.Decimal `json:"payment_summary"`
	CashMovements  []CashMovementResponse     `json:"cash_movements"`
	Breaks         []BreakResponse            `json:"breaks"`
	ClosingCash    *decimal.Decimal           `json:"closing_cash"`
	ClosingCard    *decimal.Decimal           `json:"closing_card"`
	ClosingDigital *decimal.Decimal           `json:"closing_digital"`
	ClosingNotes   *string                    `json:"closing_notes"`
	ExpectedCash   decimal.Decimal            `json:"expected_cash"` // live while open, final once closed
	Variance       *decimal.Decimal           `json:"variance,omitempty"`
}

// SessionResponse answers a session (re)establishment. ResumeRequired is set
// when the shift is on break: the cashier must end the break explicitly.
type SessionResponse struct {
	Shift          *ShiftResponse `json:"shift"`
	ActiveBreak    *BreakResponse `json:"active_break"`
	ResumeRequired bool           `json:"resume_required"`
}

type ShiftHistoryResponse struct {
	Data  []ShiftResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

type ReconciliationResponse struct {
	ExpectedCash    decimal.Decimal `json:"expected_cash"`
	ActualCash      decimal.Decimal `json:"actual_cash"`
	Variance        decimal.Decimal `json:"variance"`
	ExpectedCard    decimal.Decimal `json:"expected_card"`
	ActualCard      decimal.Decimal `json:"actual_card"`
	CardVariance    decimal.Decimal `json:"card_variance"`
	ExpectedDigital decimal.Decimal `json:"expected_digital"`
	ActualDigital   decimal.Decimal `json:"actual_digital"`
	DigitalVariance decimal.Decimal `json:"digital_variance"`
}

type ShiftReportResponse struct {
	Shift          ShiftResponse           `json:"shift"`
	TotalIn        decimal.Decimal         `json:"total_in"`
	TotalOut       decimal.Decimal         `json:"total_out"`
	Reconciliation *ReconciliationResponse `json:"reconciliation"` // nil while open
}

// ─── Async payloads ──────────────────────────────────────────────────────────

const (
	EventShiftOpened       = "shift.opened"
	EventShiftCashMovement = "shift.cash_movement"
	EventShiftBreakStarted = "shift.break_started"
	EventShiftBreakEnded   = "shift.break_ended"
	EventShiftClosed       = "shift.closed"
)

// ShiftEvent is published to Kafka after a committed transition.
type ShiftEvent struct {
	Event        string           `json:"event"`
	ShiftID      string           `json:"shift_id"`
	CashierID    string           `json:"cashier_id"`
	StoreID      string           `json:"store_id"`
	Status       string           `json:"status"`
	OccurredAt   time.Time        `json:"occurred_at"`
	MovementType string           `json:"movement_type,omitempty"`
	BreakType    string           `json:"break_type,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	ExpectedCash *decimal.Decimal `json:"expected_cash,omitempty"`
	Variance     *decimal.Decimal `json:"variance,omitempty"`
}

type ShiftReportJob struct {
	ShiftID string `json:"shift_id"`
}

type EmailJob struct {
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	AttachmentPath string `json:"attachment_path,omitempty"`
}

// PaymentMessage is the payment ingestion record read from Kafka.
// Without payment_id the message's topic, partition and offset identify it.
type PaymentMessage struct {
	PaymentID string          `json:"payment_id,omitempty"`
	ShiftID   string          `json:"shift_id"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
}
