package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shiftpos/internal/apierror"
	"shiftpos/internal/dto"
	"shiftpos/internal/model"
	"shiftpos/internal/repository"
	"shiftpos/internal/till"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShiftBackendClient is the shift store seen from a till terminal: every
// call goes to the shiftpos HTTP API with the cashier's bearer token. The
// backend derives the cashier from the token, so the cashierID arguments are
// only used to check the answers.
type ShiftBackendClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *CircuitBreaker
}

var _ repository.ShiftRepository = (*ShiftBackendClient)(nil)

// NewShiftBackendClient builds a client; cb may be nil.
func NewShiftBackendClient(baseURL, token string, timeout time.Duration, cb *CircuitBreaker) *ShiftBackendClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ShiftBackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
	}
}

// BackendBreakerConfig counts only transport and server failures against the
// breaker; rule rejections are answers, not outages.
func BackendBreakerConfig() CircuitBreakerConfig {
	cfg := DefaultCBConfig("shift-backend")
	cfg.IsFailure = func(err error) bool {
		return !till.IsRejection(err) && !errors.Is(err, repository.ErrNotFound)
	}
	return cfg
}

func (c *ShiftBackendClient) GetCurrentShift(ctx context.Context, cashierID uuid.UUID) (*model.Shift, error) {
	var resp dto.ShiftResponse
	err := c.do(ctx, http.MethodGet, "/v1/shifts/current", nil, &resp)
	if errors.Is(err, till.ErrNoActiveShift) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.ownShift(&resp, cashierID)
}

func (c *ShiftBackendClient) StartShift(ctx context.Context, cashierID, storeID uuid.UUID, openingBalance decimal.Decimal) (*model.Shift, error) {
	req := dto.StartShiftRequest{StoreID: storeID.String(), OpeningBalance: openingBalance}
	var resp dto.ShiftResponse
	if err := c.do(ctx, http.MethodPost, "/v1/shifts", req, &resp); err != nil {
		return nil, err
	}
	return c.ownShift(&resp, cashierID)
}

func (c *ShiftBackendClient) EndShift(ctx context.Context, shiftID uuid.UUID, closing model.ShiftClosing) (*model.Shift, error) {
	req := dto.EndShiftRequest{
		ActualCash:    closing.ActualCash,
		ActualCard:    closing.ActualCard,
		ActualDigital: closing.ActualDigital,
		Notes:         closing.Notes,
	}
	return c.mutate(ctx, "/v1/shifts/"+shiftID.String()+"/end", req)
}

func (c *ShiftBackendClient) AddCashMovement(ctx context.Context, shiftID uuid.UUID, t model.MovementType, amount decimal.Decimal, reason string) (*model.Shift, error) {
	req := dto.CashMovementRequest{Type: string(t), Amount: amount, Reason: reason}
	return c.mutate(ctx, "/v1/shifts/"+shiftID.String()+"/movements", req)
}

func (c *ShiftBackendClient) StartBreak(ctx context.Context, shiftID uuid.UUID, kind model.BreakType, note string) (*model.Shift, error) {
	req := dto.StartBreakRequest{Type: string(kind), Note: note}
	return c.mutate(ctx, "/v1/shifts/"+shiftID.String()+"/breaks", req)
}

func (c *ShiftBackendClient) EndBreak(ctx context.Context, shiftID uuid.UUID) (*model.Shift, error) {
	return c.mutate(ctx, "/v1/shifts/"+shiftID.String()+"/breaks/end", struct{}{})
}

func (c *ShiftBackendClient) GetShiftHistory(ctx context.Context, cashierID uuid.UUID, page, limit int) (*model.ShiftPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var resp dto.ShiftHistoryResponse
	if err := c.do(ctx, http.MethodGet, "/v1/shifts/history?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	out := &model.ShiftPage{Total: resp.Total, Shifts: make([]model.Shift, 0, len(resp.Data))}
	for i := range resp.Data {
		s, err := c.ownShift(&resp.Data[i], cashierID)
		if err != nil {
			return nil, err
		}
		out.Shifts = append(out.Shifts, *s)
	}
	return out, nil
}

func (c *ShiftBackendClient) mutate(ctx context.Context, path string, body any) (*model.Shift, error) {
	var resp dto.ShiftResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return ShiftFromResponse(&resp)
}

func (c *ShiftBackendClient) ownShift(resp *dto.ShiftResponse, cashierID uuid.UUID) (*model.Shift, error) {
	s, err := ShiftFromResponse(resp)
	if err != nil {
		return nil, err
	}
	if s.CashierID != cashierID {
		return nil, fmt.Errorf("shift backend: shift %s belongs to cashier %s, token is for %s", s.ID, s.CashierID, cashierID)
	}
	return s, nil
}

func (c *ShiftBackendClient) do(ctx context.Context, method, path string, body, out any) error {
	call := func() error { return c.roundTrip(ctx, method, path, body, out) }
	if c.cb == nil {
		return call()
	}
	return c.cb.Execute(call)
}

func (c *ShiftBackendClient) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("shift backend: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("shift backend: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("shift backend: unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeBackendError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("shift backend: decode response: %w", err)
	}
	return nil
}

var codeSentinels = map[string]error{
	apierror.CodeAlreadyOpen:        till.ErrAlreadyOpen,
	apierror.CodeNoActiveShift:      till.ErrNoActiveShift,
	apierror.CodeBreakAlreadyActive: till.ErrBreakAlreadyActive,
	apierror.CodeNoActiveBreak:      till.ErrNoActiveBreak,
	apierror.CodeShiftOnBreak:       till.ErrShiftOnBreak,
	apierror.CodeInvalidAmount:      till.ErrInvalidAmount,
	apierror.CodeInvalidBreakType:   till.ErrInvalidBreakType,
	apierror.CodeNotFound:           repository.ErrNotFound,
}

// decodeBackendError turns an error envelope back into the sentinel the
// backend rejected with. Anything else is reported with its status so the
// caller classifies it as an outage.
func decodeBackendError(resp *http.Response) error {
	var apiErr apierror.APIError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &apiErr)

	if sentinel, ok := codeSentinels[apiErr.Code]; ok {
		return fmt.Errorf("%w (backend: %s)", sentinel, apiErr.Detail)
	}
	if resp.StatusCode == http.StatusNotFound {
		return repository.ErrNotFound
	}
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("shift backend: status %d: %s", resp.StatusCode, apiErr.Detail)
}

// ShiftFromResponse parses the wire snapshot back into the model.
func ShiftFromResponse(r *dto.ShiftResponse) (*model.Shift, error) {
	var err error
	parse := func(field, v string) uuid.UUID {
		id, perr := uuid.Parse(v)
		if perr != nil && err == nil {
			err = fmt.Errorf("shift backend: bad %s %q: %w", field, v, perr)
		}
		return id
	}

	s := &model.Shift{
		ID:             parse("id", r.ID),
		CashierID:      parse("cashier_id", r.CashierID),
		StoreID:        parse("store_id", r.StoreID),
		Status:         model.ShiftStatus(r.Status),
		OpeningBalance: r.OpeningBalance,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		PaymentSummary: make(model.PaymentSummary, len(r.PaymentSummary)),
		ClosingCash:    r.ClosingCash,
		ClosingCard:    r.ClosingCard,
		ClosingDigital: r.ClosingDigital,
		ClosingNotes:   r.ClosingNotes,
		CashMovements:  make([]model.CashMovement, 0, len(r.CashMovements)),
		Breaks:         make([]model.BreakPeriod, 0, len(r.Breaks)),
	}
	for method, amount := range r.PaymentSummary {
		s.PaymentSummary[model.TenderMethod(method)] = amount
	}
	for _, m := range r.CashMovements {
		s.CashMovements = append(s.CashMovements, model.CashMovement{
			ID:        parse("movement id", m.ID),
			ShiftID:   s.ID,
			Type:      model.MovementType(m.Type),
			Amount:    m.Amount,
			Reason:    m.Reason,
			Timestamp: m.Timestamp,
		})
	}
	for _, b := range r.Breaks {
		s.Breaks = append(s.Breaks, model.BreakPeriod{
			ID:        parse("break id", b.ID),
			ShiftID:   s.ID,
			Type:      model.BreakType(b.Type),
			Note:      b.Note,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
		})
	}
	if s.IsClosed() {
		expected := r.ExpectedCash
		s.ExpectedCash = &expected
		s.Variance = r.Variance
	}
	if err != nil {
		return nil, err
	}
	if !s.Status.Valid() {
		return nil, fmt.Errorf("shift backend: unknown status %q", r.Status)
	}
	return s, nil
}
