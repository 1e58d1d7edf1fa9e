package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"shiftpos/internal/dto"
	"shiftpos/internal/infra"
	"shiftpos/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueShiftEvents  = "jobs:shift_events"
	QueueShiftReports = "jobs:shift_reports"
	QueueEmail        = "jobs:email"
)

// Queues is the order the pool polls in; BRPOP serves the first non-empty one.
var Queues = []string{QueueShiftEvents, QueueShiftReports, QueueEmail}

// Job is the generic envelope for all async tasks. Attempts counts previous
// failed runs and survives a trip through the dead letter queue.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts,omitempty"`
}

// ErrPermanent marks a job that can never succeed (bad payload, unknown
// shift). The pool parks it instead of leaving it for redrive.
var ErrPermanent = errors.New("permanent job failure")

func permanent(err error) error { return errors.Join(ErrPermanent, err) }

// Dispatcher enqueues async jobs into Redis lists; the pool dequeues them
// via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

var _ service.JobDispatcher = (*Dispatcher)(nil)

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

func (d *Dispatcher) EnqueueShiftEvent(ctx context.Context, ev dto.ShiftEvent) error {
	return d.enqueue(ctx, QueueShiftEvents, "shift_event", ev)
}

func (d *Dispatcher) EnqueueShiftReport(ctx context.Context, job dto.ShiftReportJob) error {
	return d.enqueue(ctx, QueueShiftReports, "shift_report", job)
}

func (d *Dispatcher) EnqueueEmail(ctx context.Context, job dto.EmailJob) error {
	return d.enqueue(ctx, QueueEmail, "email", job)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return pushJob(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func pushJob(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// JobHandler runs one job payload. A returned error sends the job to the
// dead letter queue.
type JobHandler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// JobObserver is satisfied by metrics.ShiftMetrics.
type JobObserver interface {
	ObserveJob(queue string, err error)
}

// WorkerHandlers maps each queue to its handler. A nil handler leaves jobs
// of that queue in the DLQ.
type WorkerHandlers struct {
	ShiftEvents  JobHandler
	ShiftReports JobHandler
	Email        JobHandler
}

func (h *WorkerHandlers) forQueue(queue string) JobHandler {
	switch queue {
	case QueueShiftEvents:
		return h.ShiftEvents
	case QueueShiftReports:
		return h.ShiftReports
	case QueueEmail:
		return h.Email
	}
	return nil
}

type Pool struct {
	rdb      *redis.Client
	handlers *WorkerHandlers
	observer JobObserver
	wg       sync.WaitGroup
}

func NewPool(rdb *redis.Client, handlers *WorkerHandlers, observer JobObserver) *Pool {
	return &Pool{rdb: rdb, handlers: handlers, observer: observer}
}

// Start launches numWorkers goroutines consuming every queue. Each blocks on
// BRPOP, so idle workers cost nothing.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

// Wait blocks until every worker has returned after ctx was cancelled.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		if ctx.Err() != nil {
			log.Info().Msgf("worker %d shutting down", id)
			return
		}
		// Blocking pop, waits up to 5s then loops to check ctx
		result, err := p.rdb.BRPop(ctx, 5*time.Second, Queues...).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Warn().Err(err).Int("worker", id).Msg("worker: dequeue failed")
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}
		p.processJob(ctx, result[0], result[1])
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		quoted, _ := json.Marshal(raw)
		SendToDLQ(ctx, p.rdb, DLQEntry{OriginalQueue: queue, Payload: quoted, Reason: err.Error(), Permanent: true})
		p.observe(queue, err)
		return
	}

	handler := p.handlers.forQueue(queue)
	if handler == nil {
		err := errors.New("no handler for queue")
		SendToDLQ(ctx, p.rdb, DLQEntry{OriginalQueue: queue, JobType: job.Type, Payload: job.Payload, Reason: err.Error(), Attempts: job.Attempts})
		p.observe(queue, err)
		return
	}

	log.Debug().Str("type", job.Type).Str("queue", queue).Int("attempts", job.Attempts).Msg("processing job")
	err := handler.Process(ctx, job.Payload)
	p.observe(queue, err)
	if err == nil {
		return
	}
	SendToDLQ(ctx, p.rdb, DLQEntry{
		OriginalQueue: queue,
		JobType:       job.Type,
		Payload:       job.Payload,
		Reason:        err.Error(),
		Attempts:      job.Attempts + 1,
		Permanent:     errors.Is(err, ErrPermanent),
	})
}

func (p *Pool) observe(queue string, err error) {
	if p.observer != nil {
		p.observer.ObserveJob(queue, err)
	}
}

// withRetry calls fn up to maxAttempts times with exponential backoff
// starting at retryBaseDelay. An open breaker or a permanent failure ends
// the loop early.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := retryBaseDelay << uint(i-1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			if errors.Is(err, infra.ErrCircuitOpen) || errors.Is(err, ErrPermanent) {
				return lastErr
			}
			continue
		}
		return nil
	}
	return lastErr
}

var retryBaseDelay = time.Second
