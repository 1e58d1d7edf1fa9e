package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"shiftpos/internal/model"
	"shiftpos/internal/repository"
	"shiftpos/internal/service"
	"shiftpos/internal/till"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { retryBaseDelay = time.Millisecond }

// sliceReader replays a fixed list of messages, then blocks until ctx ends.
type sliceReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	next      int
	committed []int64
	fetched   chan struct{}
}

func newSliceReader(values ...[]byte) *sliceReader {
	r := &sliceReader{fetched: make(chan struct{}, len(values)+1)}
	for i, v := range values {
		r.msgs = append(r.msgs, kafka.Message{Topic: "pos.payments", Offset: int64(i), Value: v})
	}
	return r
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.next < len(r.msgs) {
		m := r.msgs[r.next]
		r.next++
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	r.fetched <- struct{}{}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *sliceReader) Close() error { return nil }

type paymentCounter struct{ outcomes []error }

func (c *paymentCounter) ObservePayment(err error) { c.outcomes = append(c.outcomes, err) }

func payment(t *testing.T, shiftID, method, amount string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]string{"shift_id": shiftID, "method": method, "amount": amount})
	require.NoError(t, err)
	return b
}

func paymentWithID(t *testing.T, paymentID, shiftID, method, amount string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]string{"payment_id": paymentID, "shift_id": shiftID, "method": method, "amount": amount})
	require.NoError(t, err)
	return b
}

// runUntilDrained runs c until the reader has handed out every message.
func runUntilDrained(c *PaymentConsumer, reader *sliceReader) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { c.Run(ctx); close(done) }()
	<-reader.fetched
	cancel()
	<-done
}

func TestPaymentConsumer_RecordsAndCommits(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryShiftRepository(nil)
	opened, err := store.StartShift(ctx, uuid.New(), uuid.New(), decimal.Zero)
	require.NoError(t, err)
	id := opened.ID.String()

	reader := newSliceReader(
		payment(t, id, "CASH", "10.00"),
		payment(t, id, "CARD", "25.50"),
		[]byte("{not json"),
		payment(t, "nope", "CASH", "1"),
		payment(t, id, "CHEQUE", "1"),
		payment(t, uuid.NewString(), "CASH", "1"),
		payment(t, id, "CASH", "-2.50"),
	)
	counter := &paymentCounter{}
	c := NewPaymentConsumer(reader, service.NewShiftService(store, nil, nil, nil), counter)

	runUntilDrained(c, reader)

	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6}, reader.committed, "bad messages are committed too")
	require.Len(t, counter.outcomes, 7)
	assert.NoError(t, counter.outcomes[0])
	assert.Error(t, counter.outcomes[2])
	assert.ErrorIs(t, counter.outcomes[5], repository.ErrNotFound)

	s, err := store.FindShiftByID(ctx, opened.ID)
	require.NoError(t, err)
	assert.True(t, s.PaymentSummary.Get(model.TenderCash).Equal(decimal.RequireFromString("7.50")))
	assert.True(t, s.PaymentSummary.Get(model.TenderCard).Equal(decimal.RequireFromString("25.50")))
}

type downStore struct{ *repository.MemoryShiftRepository }

func (downStore) RecordPayment(context.Context, uuid.UUID, string, model.TenderMethod, decimal.Decimal) (*model.Shift, error) {
	return nil, errors.New("connection refused")
}

// flakyStore fails the first failures payment writes, then delegates.
type flakyStore struct {
	*repository.MemoryShiftRepository
	failures int
	calls    int
}

func (f *flakyStore) RecordPayment(ctx context.Context, shiftID uuid.UUID, paymentID string, method model.TenderMethod, amount decimal.Decimal) (*model.Shift, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return f.MemoryShiftRepository.RecordPayment(ctx, shiftID, paymentID, method, amount)
}

func TestPaymentConsumer_RetriesSameMessageWhileStoreIsDown(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryShiftRepository: repository.NewMemoryShiftRepository(nil), failures: 1}
	opened, err := store.StartShift(ctx, uuid.New(), uuid.New(), decimal.Zero)
	require.NoError(t, err)
	id := opened.ID.String()

	reader := newSliceReader(
		payment(t, id, "CASH", "100.00"),
		payment(t, id, "CASH", "5.00"),
	)
	counter := &paymentCounter{}
	c := NewPaymentConsumer(reader, service.NewShiftService(store, nil, nil, nil), counter)
	runUntilDrained(c, reader)

	assert.Equal(t, []int64{0, 1}, reader.committed)
	assert.Equal(t, 3, store.calls)
	require.Len(t, counter.outcomes, 3)
	assert.ErrorIs(t, counter.outcomes[0], till.ErrCollaboratorUnavailable)

	s, err := store.FindShiftByID(ctx, opened.ID)
	require.NoError(t, err)
	assert.True(t, s.PaymentSummary.Get(model.TenderCash).Equal(decimal.RequireFromString("105.00")))
}

func TestPaymentConsumer_ShutdownDuringOutageLeavesMessageUncommitted(t *testing.T) {
	reader := newSliceReader(payment(t, uuid.NewString(), "CASH", "1"))
	svc := service.NewShiftService(downStore{repository.NewMemoryShiftRepository(nil)}, nil, nil, nil)
	c := NewPaymentConsumer(reader, svc, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.processMessage(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, reader.committed)
}

func TestPaymentConsumer_RedeliveryIsAppliedOnce(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryShiftRepository(nil)
	opened, err := store.StartShift(ctx, uuid.New(), uuid.New(), decimal.Zero)
	require.NoError(t, err)
	id := opened.ID.String()

	reader := newSliceReader(
		paymentWithID(t, "sale-1", id, "CASH", "100.00"),
		paymentWithID(t, "sale-1", id, "CASH", "100.00"),
		payment(t, id, "CARD", "20.00"),
		payment(t, id, "CARD", "20.00"),
	)
	// The last message is offset 2 read again after a rebalance.
	reader.msgs[3].Offset = 2
	c := NewPaymentConsumer(reader, service.NewShiftService(store, nil, nil, nil), nil)
	runUntilDrained(c, reader)

	assert.Equal(t, []int64{0, 1, 2, 2}, reader.committed)
	s, err := store.FindShiftByID(ctx, opened.ID)
	require.NoError(t, err)
	assert.True(t, s.PaymentSummary.Get(model.TenderCash).Equal(decimal.RequireFromString("100.00")))
	assert.True(t, s.PaymentSummary.Get(model.TenderCard).Equal(decimal.RequireFromString("20.00")))
}
