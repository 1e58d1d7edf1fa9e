package till_test

import (
	"testing"
	"time"

	"shiftpos/internal/model"
	"shiftpos/internal/till"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShift_RejectsNegativeOpening(t *testing.T) {
	_, err := till.NewShift(uuid.New(), uuid.New(), d("-0.01"), time.Now())
	assert.ErrorIs(t, err, till.ErrInvalidAmount)

	s, err := till.NewShift(uuid.New(), uuid.New(), d("0"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.ShiftOpen, s.Status)
}

func TestApply_BreakStatusTransitions(t *testing.T) {
	s, err := till.NewShift(uuid.New(), uuid.New(), d("10"), time.Now())
	require.NoError(t, err)

	_, err = till.ApplyEndBreak(s, time.Now())
	assert.ErrorIs(t, err, till.ErrNoActiveBreak)

	_, err = till.ApplyStartBreak(s, model.BreakLunch, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.ShiftOnBreak, s.Status)

	_, err = till.ApplyCashMovement(s, model.MovementIn, d("1"), "", time.Now())
	assert.ErrorIs(t, err, till.ErrShiftOnBreak)

	_, err = till.ApplyEndBreak(s, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.ShiftOpen, s.Status)
}

func TestApplyEndShift_ScenarioAndFreeze(t *testing.T) {
	s := scenarioShift(t)

	rec, err := till.ApplyEndShift(s, model.ShiftClosing{ActualCash: d("340.00"), Notes: "till short"}, s.StartTime.Add(8*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "-15", rec.Variance.String())
	assert.Equal(t, model.ShiftClosed, s.Status)
	require.NotNil(t, s.EndTime)
	assert.True(t, s.EndTime.After(s.StartTime))
	assert.Equal(t, "till short", *s.ClosingNotes)
	assert.Equal(t, "-15", s.Variance.String())

	_, err = till.ApplyCashMovement(s, model.MovementIn, d("1"), "", time.Now())
	assert.ErrorIs(t, err, till.ErrNoActiveShift)
	_, err = till.ApplyStartBreak(s, model.BreakShort, "", time.Now())
	assert.ErrorIs(t, err, till.ErrNoActiveShift)
	_, err = till.ApplyEndBreak(s, time.Now())
	assert.ErrorIs(t, err, till.ErrNoActiveShift)
	_, err = till.ApplyEndShift(s, model.ShiftClosing{}, time.Now())
	assert.ErrorIs(t, err, till.ErrNoActiveShift)
	assert.Len(t, s.CashMovements, 2)
}

func TestApplyEndShift_ClosesOpenBreak(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, err := till.NewShift(uuid.New(), uuid.New(), d("50"), start)
	require.NoError(t, err)
	_, err = till.ApplyStartBreak(s, model.BreakLunch, "", start.Add(time.Hour))
	require.NoError(t, err)

	end := start.Add(2 * time.Hour)
	_, err = till.ApplyEndShift(s, model.ShiftClosing{ActualCash: d("50")}, end)
	require.NoError(t, err)
	require.Len(t, s.Breaks, 1)
	require.NotNil(t, s.Breaks[0].EndTime)
	assert.True(t, s.Breaks[0].EndTime.Equal(*s.EndTime))
}

func TestApplyEndShift_EndAfterStart(t *testing.T) {
	start := time.Now()
	s, err := till.NewShift(uuid.New(), uuid.New(), d("1"), start)
	require.NoError(t, err)
	_, err = till.ApplyEndShift(s, model.ShiftClosing{}, start)
	require.NoError(t, err)
	assert.True(t, s.EndTime.After(s.StartTime))
}

func TestCollaboratorError_Matches(t *testing.T) {
	cause := assert.AnError
	err := error(&till.CollaboratorError{Op: "start_shift", Err: cause})
	assert.ErrorIs(t, err, till.ErrCollaboratorUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.False(t, till.IsRejection(err))
	assert.True(t, till.IsRejection(till.ErrNoActiveBreak))
}
