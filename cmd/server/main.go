package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/api"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/cache"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/config"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/db"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/fanout"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/gateway"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/metrics"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/pipeline"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/queue"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/ratelimiter"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/repository"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/service"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/stage"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- metrics ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	onHit, onMiss, onCacheErr := m.CacheHooks()
	onStage, onFinished := m.PipelineHooks()
	onFailed := m.WorkerHooks()
	onSent, onBlocked := m.FanoutHooks()

	// ---- cache ----
	// Redis is optional: if it is unreachable at startup the read-through
	// layer degrades to loader-only and recovers when Redis comes back.
	store := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := store.Ping(ctx); err != nil {
		logger.Warn("cache backend unreachable, continuing without it", zap.Error(err))
	}
	c := cache.New(store, logger, cache.Hooks{OnHit: onHit, OnMiss: onMiss, OnError: onCacheErr})

	// ---- core dependencies ----
	q := queue.New(cfg.QueueCapacity)
	leases := queue.NewLeaseSet()
	repo := repository.NewPgVideoRepository(pool)

	acquirer := stage.NewHTTPAcquirer(cfg.MediaBaseURL, cfg.AcquireTimeout)
	transcriber := stage.NewWhisperTranscriber(cfg.TranscriberURL, cfg.TranscribeTimeout)
	summarizer := stage.NewOpenAISummarizer(cfg.SummarizerURL, cfg.SummarizerModel, cfg.SummarizerAPIKey, cfg.SummarizeTimeout)

	gw, err := gateway.NewTelegram(cfg.TelegramToken, cfg.TelegramTimeout)
	if err != nil {
		logger.Fatal("failed to init telegram gateway", zap.Error(err))
	}
	pacer := ratelimiter.New(cfg.SendInterval)

	orch := pipeline.New(repo, q, c, acquirer, transcriber, summarizer,
		cfg.MaxVideoDuration, logger, pipeline.Hooks{OnStage: onStage, OnFinished: onFinished})
	dist := fanout.New(repo, gw, pacer, logger, fanout.Hooks{OnSent: onSent, OnBlocked: onBlocked})

	svc := service.NewSummaryService(repo, q, c, service.TTLConfig{
		Summary: cfg.SummaryTTL,
		Recent:  cfg.RecentTTL,
		Stats:   cfg.StatsTTL,
	}, logger)

	// ---- worker pool ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	policy := worker.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.RetryBackoff,
		Retryable:   func(err error) bool { return !stage.IsPermanent(err) && !gateway.IsPermanent(err) },
	}
	wp := worker.NewPool(cfg.Workers, q, leases, repo, orch, dist, policy, worker.Hooks{OnFailed: onFailed}, logger)
	wp.Start(workerCtx)

	retryW := worker.NewRetryWorker(repo, q, cfg.RetryInterval, cfg.StaleVideoAge, logger)
	go retryW.Run(workerCtx)

	sweepW := worker.NewSweepWorker(repo, q, cfg.SweepInterval, cfg.SweepMinAge, logger)
	go sweepW.Run(workerCtx)

	// Queue depth gauge, sampled rather than pushed.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				m.QueueDepth.Set(float64(q.Depth()))
			}
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(svc, q, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all workers to stop pulling new jobs.
	cancelWorkers()

	// 3. Wait for in-flight workers to finish their current job.
	wp.Wait()

	logger.Info("server stopped cleanly")
}
