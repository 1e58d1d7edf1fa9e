package worker

// retry_cron.go
// Background goroutine that moves DLQ entries back to their queues. Skips
// the event queue while the Kafka breaker is open so a downed broker is not
// hammered; entries that ran out of attempts are parked.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"shiftpos/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redriveTickInterval = 30 * time.Second
	redriveBatchSize    = 10
	MaxJobAttempts      = 5
)

type RedriveConfig struct {
	RDB *redis.Client
	// KafkaCB gates QueueShiftEvents; nil never gates.
	KafkaCB  *infra.CircuitBreaker
	Interval time.Duration
}

// StartRedriveCron ticks every 30s (or cfg.Interval) until ctx is done.
func StartRedriveCron(ctx context.Context, cfg RedriveConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = redriveTickInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Msg("redrive_cron: started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("redrive_cron: shutting down")
				return
			case <-ticker.C:
				redrive(ctx, cfg)
			}
		}
	}()
}

// redrive moves at most redriveBatchSize entries per tick across all
// queues and returns how many went back to their queue.
func redrive(ctx context.Context, cfg RedriveConfig) int {
	budget := redriveBatchSize
	moved := 0
	for _, queue := range Queues {
		if queue == QueueShiftEvents && cfg.KafkaCB != nil && cfg.KafkaCB.State() == infra.CBOpen {
			log.Debug().Msg("redrive_cron: kafka circuit breaker is open, skipping events")
			continue
		}
		for budget > 0 {
			raw, err := cfg.RDB.RPop(ctx, DLQPrefix+queue).Result()
			if errors.Is(err, redis.Nil) {
				break
			}
			if err != nil {
				log.Error().Err(err).Str("queue", queue).Msg("redrive_cron: failed to read DLQ")
				return moved
			}
			budget--

			var entry DLQEntry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				log.Error().Err(err).Str("queue", queue).Msg("redrive_cron: dropping unreadable DLQ entry")
				continue
			}
			if entry.Attempts >= MaxJobAttempts {
				entry.Permanent = true
				SendToDLQ(ctx, cfg.RDB, entry)
				log.Error().
					Str("queue", queue).
					Str("job_type", entry.JobType).
					Int("attempts", entry.Attempts).
					Msg("redrive_cron: max attempts exceeded, entry parked")
				continue
			}
			job := Job{Type: entry.JobType, Payload: entry.Payload, Attempts: entry.Attempts}
			if err := pushJob(ctx, cfg.RDB, queue, job); err != nil {
				log.Error().Err(err).Str("queue", queue).Msg("redrive_cron: requeue failed, entry returned to DLQ")
				SendToDLQ(ctx, cfg.RDB, entry)
				return moved
			}
			moved++
		}
	}
	if moved > 0 {
		log.Info().Int("count", moved).Msg("redrive_cron: jobs requeued")
	}
	return moved
}
