package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/urwriter/marketplace/internal/config"
	"github.com/urwriter/marketplace/internal/db"
	"github.com/urwriter/marketplace/internal/notifications"
	"github.com/urwriter/marketplace/internal/observability"
	"github.com/urwriter/marketplace/internal/queue/redisclient"
	"github.com/urwriter/marketplace/internal/queue/worker"
	"github.com/urwriter/marketplace/internal/repo/postgres"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env).With("service", "worker")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the worker has nothing to do without the queue, so unlike the API it
	// refuses to start degraded
	pool, err := db.NewPool(ctx, cfg.DBURL, int32(cfg.WorkerConcurrency+2))
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	tasksRepo := postgres.NewTasksRepo(pool, prom)
	deliveriesRepo := postgres.NewNotificationDeliveriesRepo(pool, prom)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log, notifications.LogNotifierConfig{
			Delay: cfg.NotifierDelay,
			Fail:  cfg.NotifierFail,
		}),
		notifications.ProtectedNotifierConfig{
			Timeout:          3 * time.Second,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
	)

	deps := worker.Deps{
		Tasks:      tasksRepo,
		Deliveries: deliveriesRepo,
		Notifier:   notifier,
		Prom:       prom,
		Logger:     log,
	}

	rdb := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if rdb != nil {
		defer rdb.Close()
		deps.Wake = rdb
	}

	w := worker.New(worker.Config{
		WorkerID:      cfg.WorkerID,
		PollInterval:  cfg.WorkerPollInterval,
		Concurrency:   cfg.WorkerConcurrency,
		LockTTL:       cfg.WorkerLockTTL,
		SweepSpec:     cfg.WorkerSweepSpec,
		ShutdownGrace: 10 * time.Second,
	}, deps)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", w.HealthHandler(tasksRepo))

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerHealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "worker_id", cfg.WorkerID)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	log.Info("worker shutdown complete")
}
