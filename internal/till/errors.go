// Package till holds the cash-drawer rules of a cashier shift: the cash
// ledger, the break tracker, the closing reconciliation and the error
// taxonomy shared by every layer that enforces them.
package till

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyOpen        = errors.New("cashier already has an open shift")
	ErrNoActiveShift      = errors.New("no active shift")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrBreakAlreadyActive = errors.New("a break is already active")
	ErrNoActiveBreak      = errors.New("no active break")
	ErrShiftOnBreak       = errors.New("shift is on break")
	ErrInvalidBreakType   = errors.New("invalid break type")

	// ErrCollaboratorUnavailable marks a failed persistence call. State is
	// unchanged and the same operation may be retried.
	ErrCollaboratorUnavailable = errors.New("shift store unavailable")
)

// CollaboratorError wraps a failed persistence call. errors.Is matches both
// ErrCollaboratorUnavailable and the underlying cause.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCollaboratorUnavailable, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaboratorUnavailable, e.Err}
}

// IsRejection reports whether err is one of the guard violations above,
// as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrAlreadyOpen, ErrNoActiveShift, ErrInvalidAmount,
		ErrBreakAlreadyActive, ErrNoActiveBreak, ErrShiftOnBreak, ErrInvalidBreakType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
