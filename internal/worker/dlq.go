package worker

// dlq.go: Dead Letter Queue
// Failed jobs land in a Redis list per source queue, dlq:{original_queue}.
// The redrive cron moves them back; entries that are permanent or ran out of
// attempts are parked in dlq:parked:{original_queue} for manual inspection.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DLQPrefix    = "dlq:"
	ParkedPrefix = "dlq:parked:"
)

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // ISO 8601
	Attempts      int             `json:"attempts"`
	Permanent     bool            `json:"permanent,omitempty"`
}

// SendToDLQ pushes a failed job to the dead letter queue. Permanent
// failures go straight to the parked list.
func SendToDLQ(ctx context.Context, rdb *redis.Client, entry DLQEntry) {
	if entry.FailedAt == "" {
		entry.FailedAt = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", entry.OriginalQueue).Msg("dlq: failed to marshal entry")
		return
	}

	key := DLQPrefix + entry.OriginalQueue
	if entry.Permanent {
		key = ParkedPrefix + entry.OriginalQueue
	}
	if err := rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", key).Msg("dlq: failed to push entry")
		return
	}

	log.Warn().
		Str("queue", entry.OriginalQueue).
		Str("job_type", entry.JobType).
		Str("reason", entry.Reason).
		Int("attempts", entry.Attempts).
		Bool("permanent", entry.Permanent).
		Msg("dlq: job moved to dead letter queue")
}

// DLQLength returns the number of entries waiting for redrive.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

func ParkedLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, ParkedPrefix+queue).Result()
}
