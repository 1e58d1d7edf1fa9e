package metrics

import (
	"errors"
	"time"

	"shiftpos/internal/till"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// ShiftMetrics holds the shift lifecycle collectors.
type ShiftMetrics struct {
	TransitionsTotal   *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec

	// Closing variance, counted minus expected.
	ClosingVariance  prometheus.Histogram
	ShiftsClosed     *prometheus.CounterVec
	PaymentsConsumed *prometheus.CounterVec
	JobsProcessed    *prometheus.CounterVec
}

// NewShiftMetrics registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry so repeated construction does not panic.
func NewShiftMetrics(reg prometheus.Registerer) *ShiftMetrics {
	factory := promauto.With(reg)
	return &ShiftMetrics{
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shift_transitions_total",
				Help: "Shift operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		TransitionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shift_transition_duration_seconds",
				Help:    "Shift operation latency including the store call",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms .. ~2.5s
			},
			[]string{"op"},
		),
		ClosingVariance: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shift_closing_variance",
				Help:    "Counted minus expected cash at shift close",
				Buckets: []float64{-100, -50, -20, -10, -5, -1, -0.01, 0, 0.01, 1, 5, 10, 20, 50, 100},
			},
		),
		ShiftsClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shifts_closed_total",
				Help: "Closed shifts by variance direction",
			},
			[]string{"result"}, // balanced | surplus | shortage
		),
		PaymentsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shift_payments_consumed_total",
				Help: "Payment messages read from Kafka by outcome",
			},
			[]string{"outcome"},
		),
		JobsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shift_jobs_processed_total",
				Help: "Async jobs handled by the worker pool",
			},
			[]string{"queue", "outcome"},
		),
	}
}

// Outcome buckets an operation error into a label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case till.IsRejection(err):
		return OutcomeRejected
	case errors.Is(err, till.ErrCollaboratorUnavailable):
		return OutcomeUnavailable
	}
	return OutcomeError
}

func (m *ShiftMetrics) ObserveTransition(op string, err error, elapsed time.Duration) {
	m.TransitionsTotal.WithLabelValues(op, Outcome(err)).Inc()
	m.TransitionDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *ShiftMetrics) ObserveClose(variance decimal.Decimal) {
	v, _ := variance.Float64()
	m.ClosingVariance.Observe(v)

	result := "balanced"
	switch variance.Sign() {
	case 1:
		result = "surplus"
	case -1:
		result = "shortage"
	}
	m.ShiftsClosed.WithLabelValues(result).Inc()
}

func (m *ShiftMetrics) ObservePayment(err error) {
	m.PaymentsConsumed.WithLabelValues(Outcome(err)).Inc()
}

func (m *ShiftMetrics) ObserveJob(queue string, err error) {
	m.JobsProcessed.WithLabelValues(queue, Outcome(err)).Inc()
}
