package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shiftpos/internal/dto"
	"shiftpos/internal/model"
	"shiftpos/internal/repository"
	"shiftpos/internal/till"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CurrentShiftCache caches GetCurrentShift per cashier. It is never the
// source of truth.
type CurrentShiftCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, cashierID uuid.UUID) (*model.Shift, error)
	Set(ctx context.Context, s *model.Shift) error
	Invalidate(ctx context.Context, cashierID uuid.UUID) error
}

type TransitionMetrics interface {
	ObserveTransition(op string, err error, elapsed time.Duration)
	ObserveClose(variance decimal.Decimal)
}

// JobDispatcher hands committed transitions to the async workers.
type JobDispatcher interface {
	EnqueueShiftEvent(ctx context.Context, ev dto.ShiftEvent) error
	EnqueueShiftReport(ctx context.Context, job dto.ShiftReportJob) error
}

type ShiftService interface {
	Session(ctx context.Context, cashierID uuid.UUID) (*dto.SessionResponse, error)
	Current(ctx context.Context, cashierID uuid.UUID) (*dto.ShiftResponse, error)
	Start(ctx context.Context, cashierID uuid.UUID, req dto.StartShiftRequest) (*dto.ShiftResponse, error)
	AddMovement(ctx context.Context, cashierID, shiftID uuid.UUID, req dto.CashMovementRequest) (*dto.ShiftResponse, error)
	StartBreak(ctx context.Context, cashierID, shiftID uuid.UUID, req dto.StartBreakRequest) (*dto.ShiftResponse, error)
	EndBreak(ctx context.Context, cashierID, shiftID uuid.UUID) (*dto.ShiftResponse, error)
	End(ctx context.Context, cashierID, shiftID uuid.UUID, req dto.EndShiftRequest) (*dto.ShiftResponse, error)
	History(ctx context.Context, cashierID uuid.UUID, page, limit int) (*dto.ShiftHistoryResponse, error)
	Report(ctx context.Context, shiftID uuid.UUID) (*dto.ShiftReportResponse, error)
	RecordPayment(ctx context.Context, shiftID uuid.UUID, req dto.PaymentRequest) (*dto.ShiftResponse, error)
}

type shiftService struct {
	store   repository.ShiftStore
	cache   CurrentShiftCache
	metrics TransitionMetrics
	jobs    JobDispatcher
}

// NewShiftService wires the request facade. cache, metrics and jobs may be
// nil; the shift lifecycle works without them.
func NewShiftService(store repository.ShiftStore, cache CurrentShiftCache, metrics TransitionMetrics, jobs JobDispatcher) ShiftService {
	return &shiftService{store: store, cache: cache, metrics: metrics, jobs: jobs}
}

// ── Session ───────────────────────────────────────────────────────────────────
// Process (re)start: the cached flag is dropped and rebuilt from the store.

func (s *shiftService) Session(ctx context.Context, cashierID uuid.UUID) (*dto.SessionResponse, error) {
	s.invalidate(ctx, cashierID)

	m := NewShiftMachine(s.store, cashierID)
	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	resp := &dto.SessionResponse{}
	current := m.Current()
	if current == nil {
		return resp, nil
	}
	s.cacheSet(ctx, current)

	out := ToShiftResponse(current)
	resp.Shift = &out
	if b := m.ActiveBreak(); b != nil {
		br := toBreakResponse(*b)
		resp.ActiveBreak = &br
		resp.ResumeRequired = true
	}
	return resp, nil
}

func (s *shiftService) Current(ctx context.Context, cashierID uuid.UUID) (*dto.ShiftResponse, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cashierID)
		if err != nil {
			log.Warn().Err(err).Str("cashier_id", cashierID.String()).Msg("current shift cache read failed")
		}
		if cached != nil && !cached.IsClosed() {
			out := ToShiftResponse(cached)
			return &out, nil
		}
	}

	m := NewShiftMachine(s.store, cashierID)
	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	current := m.Current()
	if current.IsClosed() {
		return nil, till.ErrNoActiveShift
	}
	s.cacheSet(ctx, current)
	out := ToShiftResponse(current)
	return &out, nil
}

// ── Transitions ───────────────────────────────────────────────────────────────

func (s *shiftService) Start(ctx context.Context, cashierID uuid.UUID, req dto.StartShiftRequest) (*dto.ShiftResponse, error) {
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("invalid store_id: %w", err)
	}
	m := NewShiftMachine(s.store, cashierID)
	return s.run(ctx, "startShift", func() (*model.Shift, error) {
		return m.StartShift(ctx, storeID, req.OpeningBalance)
	})
}

func (s *shiftService) AddMovement(ctx context.Context, cashierID, shiftID uuid.UUID, req dto.CashMovementRequest) (*dto.ShiftResponse, error) {
	m, err := s.machineFor(ctx, cashierID, shiftID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "addCashMovement", func() (*model.Shift, error) {
		return m.AddCashMovement(ctx, model.MovementType(req.Type), req.Amount, req.Reason)
	})
}

func (s *shiftService) StartBreak(ctx context.Context, cashierID, shiftID uuid.UUID, req dto.StartBreakRequest) (*dto.ShiftResponse, error) {
	m, err := s.machineFor(ctx, cashierID, shiftID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "startBreak", func() (*model.Shift, error) {
		return m.StartBreak(ctx, model.BreakType(req.Type), req.Note)
	})
}

func (s *shiftService) EndBreak(ctx context.Context, cashierID, shiftID uuid.UUID) (*dto.ShiftResponse, error) {
	m, err := s.machineFor(ctx, cashierID, shiftID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, "endBreak", func() (*model.Shift, error) {
		return m.EndBreak(ctx)
	})
}

func (s *shiftService) End(ctx context.Context, cashierID, shiftID uuid.UUID, req dto.EndShiftRequest) (*dto.ShiftResponse, error) {
	m, err := s.machineFor(ctx, cashierID, shiftID)
	if err != nil {
		return nil, err
	}
	closing := model.ShiftClosing{
		ActualCash:    req.ActualCash,
		ActualCard:    req.ActualCard,
		ActualDigital: req.ActualDigital,
		Notes:         req.Notes,
	}
	return s.run(ctx, "endShift", func() (*model.Shift, error) {
		return m.EndShift(ctx, closing)
	})
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *shiftService) History(ctx context.Context, cashierID uuid.UUID, page, limit int) (*dto.ShiftHistoryResponse, error) {
	page, limit = repository.NormalizePage(page, limit)
	p, err := NewShiftMachine(s.store, cashierID).History(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	resp := &dto.ShiftHistoryResponse{
		Data:  make([]dto.ShiftResponse, 0, len(p.Shifts)),
		Total: p.Total,
		Page:  page,
		Limit: limit,
	}
	for i := range p.Shifts {
		resp.Data = append(resp.Data, ToShiftResponse(&p.Shifts[i]))
	}
	return resp, nil
}

func (s *shiftService) Report(ctx context.Context, shiftID uuid.UUID) (*dto.ShiftReportResponse, error) {
	shift, err := s.store.FindShiftByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, classifyStoreError("findShiftByID", err)
	}
	return BuildReport(shift), nil
}

// RecordPayment feeds the collaborator-owned payment summary. The cashier's
// cached snapshot is dropped so the next read sees the new totals.
func (s *shiftService) RecordPayment(ctx context.Context, shiftID uuid.UUID, req dto.PaymentRequest) (*dto.ShiftResponse, error) {
	start := time.Now()
	shift, err := s.store.RecordPayment(ctx, shiftID, req.PaymentID, model.TenderMethod(req.Method), req.Amount)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		err = classifyStoreError("recordPayment", err)
	}
	s.observe("recordPayment", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, shift.CashierID)
	out := ToShiftResponse(shift)
	return &out, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// machineFor re-reads the cashier's current shift and checks the request
// addresses it. A stale or foreign id is NoActiveShift.
func (s *shiftService) machineFor(ctx context.Context, cashierID, shiftID uuid.UUID) (*ShiftMachine, error) {
	m := NewShiftMachine(s.store, cashierID)
	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	current := m.Current()
	if current.IsClosed() || current.ID != shiftID {
		return nil, till.ErrNoActiveShift
	}
	return m, nil
}

func (s *shiftService) run(ctx context.Context, op string, fn func() (*model.Shift, error)) (*dto.ShiftResponse, error) {
	start := time.Now()
	shift, err := fn()
	s.observe(op, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, op, shift)
	out := ToShiftResponse(shift)
	return &out, nil
}

// afterCommit runs the side work of a committed transition. Failures are
// logged only; the transition already happened.
func (s *shiftService) afterCommit(ctx context.Context, op string, shift *model.Shift) {
	ev := ShiftEventFor(op, shift)

	if shift.IsClosed() {
		s.invalidate(ctx, shift.CashierID)
		if s.metrics != nil && shift.Variance != nil {
			s.metrics.ObserveClose(*shift.Variance)
		}
	} else {
		s.cacheSet(ctx, shift)
	}

	if s.jobs == nil {
		return
	}
	if err := s.jobs.EnqueueShiftEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("event", ev.Event).Str("shift_id", ev.ShiftID).Msg("failed to enqueue shift event")
	}
	if shift.IsClosed() {
		if err := s.jobs.EnqueueShiftReport(ctx, dto.ShiftReportJob{ShiftID: shift.ID.String()}); err != nil {
			log.Error().Err(err).Str("shift_id", ev.ShiftID).Msg("failed to enqueue closing report")
		}
	}
}

func (s *shiftService) observe(op string, err error, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(op, err, elapsed)
	}
}

func (s *shiftService) cacheSet(ctx context.Context, shift *model.Shift) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, shift); err != nil {
		log.Warn().Err(err).Str("cashier_id", shift.CashierID.String()).Msg("current shift cache write failed")
	}
}

func (s *shiftService) invalidate(ctx context.Context, cashierID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cashierID); err != nil {
		log.Warn().Err(err).Str("cashier_id", cashierID.String()).Msg("current shift cache invalidation failed")
	}
}
