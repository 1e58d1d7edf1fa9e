package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, StorePostgres, cfg.ShiftStore)
	assert.Equal(t, 10*time.Minute, cfg.CurrentShiftTTL)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout)
	assert.Empty(t, cfg.Brokers())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SHIFT_STORE", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CURRENT_SHIFT_TTL", "30s")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.ShiftStore)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, 30*time.Second, cfg.CurrentShiftTTL)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	t.Setenv("SHIFT_STORE", "sqlite")
	_, err := Load()
	assert.ErrorContains(t, err, "SHIFT_STORE")
}

func TestLoad_ProductionNeedsSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	_, err = Load()
	assert.NoError(t, err)
}
