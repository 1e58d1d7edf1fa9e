package worker

// event_worker.go publishes committed shift transitions to Kafka. Each
// publish goes through the broker circuit breaker and is retried three
// times; whatever still fails lands in the DLQ for the redrive cron.

import (
	"context"
	"encoding/json"
	"fmt"

	"shiftpos/internal/dto"
	"shiftpos/internal/infra"

	"github.com/rs/zerolog/log"
)

// EventPublisher is satisfied by infra.KafkaPublisher.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type ShiftEventWorker struct {
	publisher EventPublisher
	cb        *infra.CircuitBreaker
}

// NewShiftEventWorker builds the worker. A nil publisher means Kafka is not
// configured; events are then acknowledged and dropped.
func NewShiftEventWorker(publisher EventPublisher, cb *infra.CircuitBreaker) *ShiftEventWorker {
	if cb == nil {
		cb = infra.NewCircuitBreaker(infra.DefaultCBConfig("kafka"))
	}
	return &ShiftEventWorker{publisher: publisher, cb: cb}
}

func (w *ShiftEventWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var ev dto.ShiftEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return permanent(fmt.Errorf("event_worker: invalid payload: %w", err))
	}
	if ev.Event == "" || ev.ShiftID == "" {
		return permanent(fmt.Errorf("event_worker: event without type or shift id"))
	}
	if w.publisher == nil {
		log.Debug().Str("event", ev.Event).Str("shift_id", ev.ShiftID).Msg("event_worker: kafka disabled, event dropped")
		return nil
	}

	err := withRetry(ctx, 3, func(attempt int) error {
		return w.cb.Execute(func() error {
			return w.publisher.Publish(ctx, ev.CashierID, raw)
		})
	})
	if err != nil {
		return fmt.Errorf("event_worker: publish %s: %w", ev.Event, err)
	}
	log.Debug().Str("event", ev.Event).Str("shift_id", ev.ShiftID).Msg("event_worker: published")
	return nil
}
