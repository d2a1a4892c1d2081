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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/urwriter/marketplace/internal/config"
	"github.com/urwriter/marketplace/internal/db"
	httpx "github.com/urwriter/marketplace/internal/http"
	"github.com/urwriter/marketplace/internal/observability"
	"github.com/urwriter/marketplace/internal/queue/redisclient"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	shutdownTracer, err := observability.InitTracer(startCtx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	pool := connectDB(startCtx, log, cfg)
	rdb := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if rdb != nil {
		if err := rdb.Ping(startCtx); err != nil {
			log.Warn("redis unreachable, continuing", "addr", cfg.RedisAddr, "err", err)
		}
	}

	router := httpx.NewRouter(httpx.Deps{
		Config:   cfg,
		Logger:   log,
		Pool:     pool,
		Redis:    rdb,
		Prom:     prom,
		Registry: reg,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "database", pool != nil, "redis", rdb != nil)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		if err := shutdownTracer(ctx); err != nil {
			log.Warn("tracer shutdown failed", "err", err)
		}
		if err := rdb.Close(); err != nil {
			log.Warn("redis close failed", "err", err)
		}
		if pool != nil {
			pool.Close()
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// connectDB returns nil when the database is unreachable; the API then
// serves job reads from fixtures until it is restarted with a database.
func connectDB(ctx context.Context, log *slog.Logger, cfg config.Config) *pgxpool.Pool {
	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DBURL); err != nil {
			log.Warn("migrations failed", "err", err)
		}
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, 10)
	if err != nil {
		log.Warn("database unavailable, running degraded", "err", err)
		return nil
	}

	if err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
		log.Error("admin bootstrap failed", "err", err)
	}

	if cfg.SeedDemo {
		if err := db.SeedDemo(ctx, pool); err != nil {
			log.Error("demo seed failed", "err", err)
		}
	}

	return pool
}
