package infra_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"shiftpos/internal/config"
	"shiftpos/internal/infra"
	"shiftpos/internal/middleware"
	"shiftpos/internal/model"
	"shiftpos/internal/repository"
	"shiftpos/internal/router"
	"shiftpos/internal/service"
	"shiftpos/internal/till"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backendSecret = "client-test-secret"

func init() { gin.SetMode(gin.TestMode) }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func backendToken(t *testing.T, cashier uuid.UUID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.JWTClaims{
		UserID: cashier.String(),
		Role:   middleware.RoleCashier,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(backendSecret))
	require.NoError(t, err)
	return s
}

// newBackend serves the real HTTP API over the in-memory store.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	svc := service.NewShiftService(repository.NewMemoryShiftRepository(nil), nil, nil, nil)
	srv := httptest.NewServer(router.New(&config.Config{Env: "test", JWTSecret: backendSecret}, router.Deps{Shifts: svc}))
	t.Cleanup(srv.Close)
	return srv
}

func TestShiftBackendClient_DrivesMachineEndToEnd(t *testing.T) {
	srv := newBackend(t)
	cashier := uuid.New()
	client := infra.NewShiftBackendClient(srv.URL, backendToken(t, cashier), time.Second, infra.NewCircuitBreaker(infra.BackendBreakerConfig()))
	ctx := context.Background()

	current, err := client.GetCurrentShift(ctx, cashier)
	require.NoError(t, err)
	assert.Nil(t, current)

	m := service.NewShiftMachine(client, cashier)
	opened, err := m.StartShift(ctx, uuid.New(), d("100.00"))
	require.NoError(t, err)
	assert.Equal(t, model.ShiftOpen, opened.Status)

	_, err = m.AddCashMovement(ctx, model.MovementIn, d("20.00"), "change")
	require.NoError(t, err)
	_, err = m.StartBreak(ctx, model.BreakLunch, "")
	require.NoError(t, err)

	// Rejections come back as the same sentinels the local store uses.
	_, err = client.StartBreak(ctx, opened.ID, model.BreakShort, "")
	assert.ErrorIs(t, err, till.ErrBreakAlreadyActive)
	_, err = client.StartShift(ctx, cashier, uuid.New(), d("1"))
	assert.ErrorIs(t, err, till.ErrAlreadyOpen)

	_, err = m.EndBreak(ctx)
	require.NoError(t, err)

	closed, err := m.EndShift(ctx, model.ShiftClosing{ActualCash: d("115.00")})
	require.NoError(t, err)
	assert.Equal(t, model.ShiftClosed, closed.Status)
	require.NotNil(t, closed.Variance)
	assert.True(t, closed.Variance.Equal(d("-5")))
	require.Len(t, closed.Breaks, 1)
	assert.NotNil(t, closed.Breaks[0].EndTime)

	page, err := client.GetShiftHistory(ctx, cashier, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Shifts, 1)
	assert.Equal(t, opened.ID, page.Shifts[0].ID)
}

func TestShiftBackendClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rule rejection", http.StatusConflict, `{"detail":"shift is on break","code":"SHIFT_ON_BREAK"}`, till.ErrShiftOnBreak},
		{"invalid amount", http.StatusUnprocessableEntity, `{"detail":"invalid amount","code":"INVALID_AMOUNT"}`, till.ErrInvalidAmount},
		{"bare 404", http.StatusNotFound, `not here`, repository.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := infra.NewShiftBackendClient(srv.URL, "t", time.Second, nil)
			_, err := client.AddCashMovement(context.Background(), uuid.New(), model.MovementIn, d("1"), "")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestShiftBackendClient_OutageTripsBreakerAndMachineReportsUnavailable(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := infra.BackendBreakerConfig()
	cfg.FailureThreshold = 2
	cfg.OpenTimeout = time.Hour
	cb := infra.NewCircuitBreaker(cfg)
	cashier := uuid.New()
	client := infra.NewShiftBackendClient(srv.URL, "t", time.Second, cb)
	m := service.NewShiftMachine(client, cashier)

	for i := 0; i < 3; i++ {
		err := m.Refresh(context.Background())
		assert.ErrorIs(t, err, till.ErrCollaboratorUnavailable)
	}
	assert.Equal(t, infra.CBOpen, cb.State())
	assert.EqualValues(t, 2, hits.Load(), "open breaker must not reach the backend")
}

func TestShiftBackendClient_RejectsForeignShift(t *testing.T) {
	srv := newBackend(t)
	owner := uuid.New()
	client := infra.NewShiftBackendClient(srv.URL, backendToken(t, owner), time.Second, nil)
	_, err := client.StartShift(context.Background(), owner, uuid.New(), d("0"))
	require.NoError(t, err)

	_, err = client.GetCurrentShift(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "belongs to cashier")
}
