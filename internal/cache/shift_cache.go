// Package cache keeps the read-side copy of each cashier's current shift in
// Redis. The shift store stays authoritative; an entry is only a shortcut for
// GET /v1/shifts/current and is dropped whenever a session is re-established
// or the shift closes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shiftpos/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 10 * time.Minute

type ShiftCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewShiftCache(rdb *redis.Client, ttl time.Duration) *ShiftCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ShiftCache{rdb: rdb, ttl: ttl}
}

func key(cashierID uuid.UUID) string { return "shift:current:" + cashierID.String() }

// Get returns the cached snapshot, or nil on a miss. An entry that no longer
// decodes is deleted and reported as a miss.
func (c *ShiftCache) Get(ctx context.Context, cashierID uuid.UUID) (*model.Shift, error) {
	raw, err := c.rdb.Get(ctx, key(cashierID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("shift cache: get: %w", err)
	}
	var s model.Shift
	if err := json.Unmarshal(raw, &s); err != nil {
		_ = c.rdb.Del(ctx, key(cashierID)).Err()
		return nil, nil
	}
	return &s, nil
}

// Set stores a non-closed snapshot; a closed one clears the entry instead.
func (c *ShiftCache) Set(ctx context.Context, s *model.Shift) error {
	if s.IsClosed() {
		if s == nil {
			return nil
		}
		return c.Invalidate(ctx, s.CashierID)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("shift cache: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, key(s.CashierID), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("shift cache: set: %w", err)
	}
	return nil
}

func (c *ShiftCache) Invalidate(ctx context.Context, cashierID uuid.UUID) error {
	if err := c.rdb.Del(ctx, key(cashierID)).Err(); err != nil {
		return fmt.Errorf("shift cache: invalidate: %w", err)
	}
	return nil
}
