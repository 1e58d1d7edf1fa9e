// Package consumer ingests point-of-sale payments from Kafka into the
// per-tender payment summary of the open shift they belong to.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shiftpos/internal/dto"
	"shiftpos/internal/model"
	"shiftpos/internal/repository"
	"shiftpos/internal/service"
	"shiftpos/internal/till"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentObserver is satisfied by metrics.ShiftMetrics.
type PaymentObserver interface {
	ObservePayment(err error)
}

type PaymentConsumer struct {
	reader   MessageReader
	shifts   service.ShiftService
	observer PaymentObserver
}

func NewPaymentConsumer(reader MessageReader, shifts service.ShiftService, observer PaymentObserver) *PaymentConsumer {
	return &PaymentConsumer{reader: reader, shifts: shifts, observer: observer}
}

// Run fetches until ctx is cancelled. A message is committed once it was
// applied or can never be applied. While the store is unavailable the same
// message is retried with backoff, so later offsets are never committed
// past it.
func (c *PaymentConsumer) Run(ctx context.Context) {
	log.Info().Msg("payment_consumer: started")
	for {
		if ctx.Err() != nil {
			log.Info().Msg("payment_consumer: shutting down")
			return
		}
		if err := c.processMessage(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("payment_consumer: message not committed")
		}
	}
}

func (c *PaymentConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Error().Err(err).Msg("payment_consumer: error closing kafka reader")
	}
}

func (c *PaymentConsumer) processMessage(ctx context.Context) error {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("fetch: %w", err)
	}

	if err := c.applyWithRetry(ctx, m); err != nil {
		return err
	}
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit offset %d: %w", m.Offset, err)
	}
	return nil
}

// applyWithRetry returns nil once m may be committed, or ctx's error if the
// store stayed unavailable until shutdown.
func (c *PaymentConsumer) applyWithRetry(ctx context.Context, m kafka.Message) error {
	wait := retryBaseDelay
	for {
		err := c.apply(ctx, m)
		c.observe(err)
		if err == nil {
			return nil
		}
		if !errors.Is(err, till.ErrCollaboratorUnavailable) {
			log.Error().Err(err).Int64("offset", m.Offset).Int("partition", m.Partition).Msg("payment_consumer: payment dropped")
			return nil
		}

		log.Warn().Err(err).Int64("offset", m.Offset).Dur("retry_in", wait).Msg("payment_consumer: store unavailable")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if wait *= 2; wait > retryMaxDelay {
			wait = retryMaxDelay
		}
	}
}

func (c *PaymentConsumer) apply(ctx context.Context, m kafka.Message) error {
	var msg dto.PaymentMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	shiftID, err := uuid.Parse(msg.ShiftID)
	if err != nil {
		return fmt.Errorf("invalid shift_id %q: %w", msg.ShiftID, err)
	}
	if !model.TenderMethod(msg.Method).Valid() {
		return fmt.Errorf("invalid method %q", msg.Method)
	}

	resp, err := c.shifts.RecordPayment(ctx, shiftID, dto.PaymentRequest{
		PaymentID: paymentKey(msg, m),
		Method:    msg.Method,
		Amount:    msg.Amount,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("shift %s: %w", shiftID, err)
		}
		return err
	}
	log.Debug().
		Str("shift_id", resp.ID).
		Str("method", msg.Method).
		Str("amount", msg.Amount.String()).
		Msg("payment_consumer: payment recorded")
	return nil
}

// paymentKey makes redelivery of the same payment a no-op in the store.
func paymentKey(msg dto.PaymentMessage, m kafka.Message) string {
	if msg.PaymentID != "" {
		return msg.PaymentID
	}
	return fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
}

func (c *PaymentConsumer) observe(err error) {
	if c.observer != nil {
		c.observer.ObservePayment(err)
	}
}

var (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
)
