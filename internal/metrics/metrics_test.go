package metrics

import (
	"errors"
	"testing"
	"time"

	"shiftpos/internal/till"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, OutcomeRejected, Outcome(till.ErrBreakAlreadyActive))
	assert.Equal(t, OutcomeUnavailable, Outcome(&till.CollaboratorError{Op: "endShift", Err: errors.New("timeout")}))
	assert.Equal(t, OutcomeError, Outcome(errors.New("boom")))
}

func TestShiftMetrics_Observe(t *testing.T) {
	m := NewShiftMetrics(prometheus.NewRegistry())

	m.ObserveTransition("startShift", nil, 10*time.Millisecond)
	m.ObserveTransition("startShift", till.ErrAlreadyOpen, time.Millisecond)
	m.ObserveClose(decimal.RequireFromString("-15"))
	m.ObserveClose(decimal.Zero)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("startShift", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("startShift", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShiftsClosed.WithLabelValues("shortage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShiftsClosed.WithLabelValues("balanced")))
}

func TestNewShiftMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewShiftMetrics(prometheus.NewRegistry())
		NewShiftMetrics(prometheus.NewRegistry())
	})
}
