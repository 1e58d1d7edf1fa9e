package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shiftpos/internal/dto"
	"shiftpos/internal/model"
	"shiftpos/internal/repository"
	"shiftpos/internal/till"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*model.Shift
	failGet bool
}

func newMapCache() *mapCache { return &mapCache{entries: map[uuid.UUID]*model.Shift{}} }

func (c *mapCache) Get(_ context.Context, cashierID uuid.UUID) (*model.Shift, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, errors.New("redis down")
	}
	return c.entries[cashierID].Clone(), nil
}

func (c *mapCache) Set(_ context.Context, s *model.Shift) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.CashierID] = s.Clone()
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, cashierID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cashierID)
	return nil
}

type recordingJobs struct {
	events  []dto.ShiftEvent
	reports []dto.ShiftReportJob
	fail    error
}

func (j *recordingJobs) EnqueueShiftEvent(_ context.Context, ev dto.ShiftEvent) error {
	if j.fail != nil {
		return j.fail
	}
	j.events = append(j.events, ev)
	return nil
}

func (j *recordingJobs) EnqueueShiftReport(_ context.Context, job dto.ShiftReportJob) error {
	if j.fail != nil {
		return j.fail
	}
	j.reports = append(j.reports, job)
	return nil
}

type countingMetrics struct {
	outcomes map[string][]error
	closes   []decimal.Decimal
}

func (m *countingMetrics) ObserveTransition(op string, err error, _ time.Duration) {
	if m.outcomes == nil {
		m.outcomes = map[string][]error{}
	}
	m.outcomes[op] = append(m.outcomes[op], err)
}

func (m *countingMetrics) ObserveClose(v decimal.Decimal) { m.closes = append(m.closes, v) }

type serviceFixture struct {
	store   *repository.MemoryShiftRepository
	cache   *mapCache
	jobs    *recordingJobs
	metrics *countingMetrics
	svc     ShiftService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		store:   repository.NewMemoryShiftRepository(nil),
		cache:   newMapCache(),
		jobs:    &recordingJobs{},
		metrics: &countingMetrics{},
	}
	f.svc = NewShiftService(f.store, f.cache, f.metrics, f.jobs)
	return f
}

func (f *serviceFixture) open(t *testing.T, cashier uuid.UUID, opening string) *dto.ShiftResponse {
	t.Helper()
	resp, err := f.svc.Start(context.Background(), cashier, dto.StartShiftRequest{
		StoreID:        uuid.NewString(),
		OpeningBalance: d(opening),
	})
	require.NoError(t, err)
	return resp
}

func TestShiftService_FullLifecycle(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cashier := uuid.New()

	opened := f.open(t, cashier, "100.00")
	shiftID := uuid.MustParse(opened.ID)
	assert.Equal(t, "OPEN", opened.Status)
	assert.True(t, opened.ExpectedCash.Equal(d("100")))
	assert.Nil(t, opened.Variance)

	_, err := f.svc.AddMovement(ctx, cashier, shiftID, dto.CashMovementRequest{Type: "IN", Amount: d("20.00"), Reason: "change"})
	require.NoError(t, err)
	_, err = f.svc.AddMovement(ctx, cashier, shiftID, dto.CashMovementRequest{Type: "OUT", Amount: d("15.00"), Reason: "vendor"})
	require.NoError(t, err)
	paid, err := f.svc.RecordPayment(ctx, shiftID, dto.PaymentRequest{Method: "CASH", Amount: d("250.00")})
	require.NoError(t, err)
	assert.True(t, paid.ExpectedCash.Equal(d("355")))

	_, err = f.svc.StartBreak(ctx, cashier, shiftID, dto.StartBreakRequest{Type: "LUNCH"})
	require.NoError(t, err)
	_, err = f.svc.EndBreak(ctx, cashier, shiftID)
	require.NoError(t, err)

	closed, err := f.svc.End(ctx, cashier, shiftID, dto.EndShiftRequest{ActualCash: d("340.00"), Notes: "till short"})
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", closed.Status)
	assert.True(t, closed.ExpectedCash.Equal(d("355")))
	require.NotNil(t, closed.Variance)
	assert.True(t, closed.Variance.Equal(d("-15")))

	events := make([]string, 0, len(f.jobs.events))
	for _, ev := range f.jobs.events {
		events = append(events, ev.Event)
	}
	assert.Equal(t, []string{
		dto.EventShiftOpened, dto.EventShiftCashMovement, dto.EventShiftCashMovement,
		dto.EventShiftBreakStarted, dto.EventShiftBreakEnded, dto.EventShiftClosed,
	}, events)
	require.Len(t, f.jobs.reports, 1)
	assert.Equal(t, opened.ID, f.jobs.reports[0].ShiftID)
	require.Len(t, f.metrics.closes, 1)
	assert.True(t, f.metrics.closes[0].Equal(d("-15")))

	// Closing drops the cache entry.
	cached, _ := f.cache.Get(ctx, cashier)
	assert.Nil(t, cached)

	_, err = f.svc.Current(ctx, cashier)
	assert.ErrorIs(t, err, till.ErrNoActiveShift)
}

func TestShiftService_MutationOnForeignShiftIsNoActiveShift(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	aliceShift := f.open(t, alice, "10")
	f.open(t, bob, "10")

	_, err := f.svc.AddMovement(ctx, bob, uuid.MustParse(aliceShift.ID), dto.CashMovementRequest{Type: "IN", Amount: d("1")})
	assert.ErrorIs(t, err, till.ErrNoActiveShift)

	_, err = f.svc.EndBreak(ctx, uuid.New(), uuid.MustParse(aliceShift.ID))
	assert.ErrorIs(t, err, till.ErrNoActiveShift)
}

func TestShiftService_Session_ReportsActiveBreak(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cashier := uuid.New()

	resp, err := f.svc.Session(ctx, cashier)
	require.NoError(t, err)
	assert.Nil(t, resp.Shift)
	assert.False(t, resp.ResumeRequired)

	opened := f.open(t, cashier, "10")
	_, err = f.svc.StartBreak(ctx, cashier, uuid.MustParse(opened.ID), dto.StartBreakRequest{Type: "OTHER", Note: "logout"})
	require.NoError(t, err)

	// A stale cache entry is replaced by the store's view.
	f.cache.entries[cashier] = &model.Shift{ID: uuid.New(), CashierID: cashier, Status: model.ShiftOpen}

	resp, err = f.svc.Session(ctx, cashier)
	require.NoError(t, err)
	require.NotNil(t, resp.Shift)
	assert.Equal(t, opened.ID, resp.Shift.ID)
	assert.Equal(t, "ON_BREAK", resp.Shift.Status)
	require.NotNil(t, resp.ActiveBreak)
	assert.Equal(t, "OTHER", resp.ActiveBreak.Type)
	assert.True(t, resp.ResumeRequired)

	cached, _ := f.cache.Get(ctx, cashier)
	require.NotNil(t, cached)
	assert.Equal(t, opened.ID, cached.ID.String())
}

func TestShiftService_Current_CacheFirst(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cashier := uuid.New()
	opened := f.open(t, cashier, "10")

	got, err := f.svc.Current(ctx, cashier)
	require.NoError(t, err)
	assert.Equal(t, opened.ID, got.ID)

	// Cache failures fall back to the store.
	f.cache.failGet = true
	got, err = f.svc.Current(ctx, cashier)
	require.NoError(t, err)
	assert.Equal(t, opened.ID, got.ID)
}

func TestShiftService_SideWorkFailureDoesNotFailTransition(t *testing.T) {
	f := newServiceFixture()
	f.jobs.fail = errors.New("redis down")
	opened := f.open(t, uuid.New(), "10")
	assert.Equal(t, "OPEN", opened.Status)
}

func TestShiftService_RecordPayment(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cashier := uuid.New()
	opened := f.open(t, cashier, "0")
	shiftID := uuid.MustParse(opened.ID)

	_, err := f.svc.RecordPayment(ctx, shiftID, dto.PaymentRequest{Method: "CARD", Amount: d("12.345")})
	assert.ErrorIs(t, err, till.ErrInvalidAmount)

	_, err = f.svc.RecordPayment(ctx, uuid.New(), dto.PaymentRequest{Method: "CARD", Amount: d("1")})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	resp, err := f.svc.RecordPayment(ctx, shiftID, dto.PaymentRequest{Method: "CARD", Amount: d("12.34")})
	require.NoError(t, err)
	assert.True(t, resp.PaymentSummary["CARD"].Equal(d("12.34")))

	cached, _ := f.cache.Get(ctx, cashier)
	assert.Nil(t, cached, "payment must drop the cached snapshot")
	assert.Len(t, f.metrics.outcomes["recordPayment"], 3)
}

func TestShiftService_History(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cashier := uuid.New()
	for i := 0; i < 3; i++ {
		opened := f.open(t, cashier, "1")
		_, err := f.svc.End(ctx, cashier, uuid.MustParse(opened.ID), dto.EndShiftRequest{ActualCash: d("1")})
		require.NoError(t, err)
	}

	resp, err := f.svc.History(ctx, cashier, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.Limit)
	assert.EqualValues(t, 3, resp.Total)
	assert.Len(t, resp.Data, 3)
	for _, s := range resp.Data {
		assert.Equal(t, "CLOSED", s.Status)
		require.NotNil(t, s.Variance)
		assert.True(t, s.Variance.IsZero())
	}
}

func TestShiftService_Report(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	cashier := uuid.New()
	opened := f.open(t, cashier, "100")
	id := uuid.MustParse(opened.ID)

	_, err := f.svc.RecordPayment(ctx, id, dto.PaymentRequest{Method: "CARD", Amount: d("40")})
	require.NoError(t, err)
	_, err = f.svc.AddMovement(ctx, cashier, id, dto.CashMovementRequest{Type: "OUT", Amount: d("5")})
	require.NoError(t, err)

	open, err := f.svc.Report(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, open.Reconciliation)
	assert.True(t, open.TotalOut.Equal(d("5")))

	_, err = f.svc.End(ctx, cashier, id, dto.EndShiftRequest{ActualCash: d("95"), ActualCard: d("38")})
	require.NoError(t, err)

	closed, err := f.svc.Report(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, closed.Reconciliation)
	assert.True(t, closed.Reconciliation.Variance.IsZero())
	assert.True(t, closed.Reconciliation.CardVariance.Equal(d("-2")))

	_, err = f.svc.Report(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
