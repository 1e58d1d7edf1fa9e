package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shiftpos/internal/cache"
	"shiftpos/internal/config"
	"shiftpos/internal/consumer"
	"shiftpos/internal/infra"
	"shiftpos/internal/metrics"
	"shiftpos/internal/middleware"
	"shiftpos/internal/repository"
	"shiftpos/internal/router"
	"shiftpos/internal/service"
	"shiftpos/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Shift store ──────────────────────────────────────────────────────────
	var (
		db    *gorm.DB
		store repository.ShiftStore
	)
	switch cfg.ShiftStore {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory shift store; shifts are lost on restart")
		store = repository.NewMemoryShiftRepository(nil)
	default:
		db, err = infra.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		if err := infra.RunMigrations(db, cfg.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		store = repository.NewShiftRepository(db)
	}
	store = repository.WithTimeout(store, cfg.BackendTimeout)

	// ── Metrics ──────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	shiftMetrics := metrics.NewShiftMetrics(reg)

	// ── Redis: current-shift cache and job queues ────────────────────────────
	var (
		rdb        *redis.Client
		shiftCache service.CurrentShiftCache
		jobs       service.JobDispatcher
	)
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		shiftCache = cache.NewShiftCache(rdb, cfg.CurrentShiftTTL)
	} else {
		log.Warn().Msg("REDIS_URL empty: current-shift cache and async jobs disabled")
	}

	// ── Async side work ──────────────────────────────────────────────────────
	// Handlers are wired here (composition root) so the pool sees every
	// infrastructure dependency.
	var (
		dispatcher *worker.Dispatcher
		publisher  *infra.KafkaPublisher
		pool       *worker.Pool
	)
	kafkaCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("kafka"))
	brokers := cfg.Brokers()
	if len(brokers) > 0 {
		publisher = infra.NewKafkaPublisher(brokers, cfg.KafkaShiftTopic)
	}

	if rdb != nil {
		dispatcher = worker.NewDispatcher(rdb)
		jobs = dispatcher

		var eventPublisher worker.EventPublisher
		if publisher != nil {
			eventPublisher = publisher
		}
		pool = worker.NewPool(rdb, &worker.WorkerHandlers{
			ShiftEvents:  worker.NewShiftEventWorker(eventPublisher, kafkaCB),
			ShiftReports: worker.NewShiftReportWorker(store, dispatcher, cfg.PDFStoragePath, cfg.ReportEmailTo),
			Email:        worker.NewEmailWorker(infra.NewMailer(cfg)),
		}, shiftMetrics)
		pool.Start(ctx, cfg.WorkerPoolSize)
		worker.StartRedriveCron(ctx, worker.RedriveConfig{RDB: rdb, KafkaCB: kafkaCB})
	}

	shiftSvc := service.NewShiftService(store, shiftCache, shiftMetrics, jobs)

	var payments *consumer.PaymentConsumer
	if len(brokers) > 0 {
		reader := infra.NewPaymentReader(brokers, cfg.KafkaPaymentTopic, cfg.KafkaGroupID)
		payments = consumer.NewPaymentConsumer(reader, shiftSvc, shiftMetrics)
		go payments.Run(ctx)
	}

	// ── HTTP ─────────────────────────────────────────────────────────────────
	limiter := middleware.NewRateLimiter(1000, time.Minute)
	limiter.StartPurge(ctx, 5*time.Minute)

	r := router.New(cfg, router.Deps{
		Shifts:      shiftSvc,
		DB:          db,
		Redis:       rdb,
		Gatherer:    reg,
		RateLimiter: limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("store", cfg.ShiftStore).Msgf("shiftpos backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	if pool != nil {
		pool.Wait()
	}
	if payments != nil {
		payments.Close()
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("kafka publisher close failed")
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}

// setupLogger: pretty console output in development, JSON elsewhere.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "shiftpos").Logger()
}
