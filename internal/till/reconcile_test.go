package till_test

import (
	"testing"
	"time"

	"shiftpos/internal/model"
	"shiftpos/internal/till"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func scenarioShift(t *testing.T) *model.Shift {
	t.Helper()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, err := till.NewShift(uuid.New(), uuid.New(), d("100.00"), start)
	require.NoError(t, err)
	_, err = till.ApplyCashMovement(s, model.MovementIn, d("20.00"), "change", start.Add(time.Minute))
	require.NoError(t, err)
	_, err = till.ApplyCashMovement(s, model.MovementOut, d("15.00"), "vendor", start.Add(2*time.Minute))
	require.NoError(t, err)
	s.PaymentSummary[model.TenderCash] = d("250.00")
	return s
}

func TestExpectedCash_Scenario(t *testing.T) {
	s := scenarioShift(t)
	assert.Equal(t, "355", till.ExpectedCash(s).String())
}

func TestExpectedCash_Deterministic(t *testing.T) {
	s := scenarioShift(t)
	first := till.ExpectedCash(s)
	for i := 0; i < 5; i++ {
		assert.True(t, first.Equal(till.ExpectedCash(s)))
	}
	assert.Len(t, s.CashMovements, 2)
}

func TestExpectedCash_NoFloatDrift(t *testing.T) {
	s, err := till.NewShift(uuid.New(), uuid.New(), decimal.Zero, time.Now())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := till.ApplyCashMovement(s, model.MovementIn, d("0.10"), "", time.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, "1", till.ExpectedCash(s).String())
}

func TestVariance_Sign(t *testing.T) {
	assert.Equal(t, "-15", till.Variance(d("355.00"), d("340.00")).String())
	assert.Equal(t, "5", till.Variance(d("355.00"), d("360.00")).String())
	assert.True(t, till.Variance(d("10"), d("10")).IsZero())
}

func TestReconcile_PerTender(t *testing.T) {
	s := scenarioShift(t)
	s.PaymentSummary[model.TenderCard] = d("80.00")

	rec := till.Reconcile(s, model.ShiftClosing{
		ActualCash: d("340.00"),
		ActualCard: d("80.00"),
	})
	assert.Equal(t, "-15", rec.Variance.String())
	assert.True(t, rec.CardVariance.IsZero())
	assert.True(t, rec.ExpectedDigital.IsZero())
	assert.True(t, rec.DigitalVariance.IsZero())
}

func TestValidateClosing(t *testing.T) {
	assert.NoError(t, till.ValidateClosing(model.ShiftClosing{}))
	assert.ErrorIs(t, till.ValidateClosing(model.ShiftClosing{ActualCash: d("-1")}), till.ErrInvalidAmount)
	assert.ErrorIs(t, till.ValidateClosing(model.ShiftClosing{ActualCard: d("1.234")}), till.ErrInvalidAmount)
}
