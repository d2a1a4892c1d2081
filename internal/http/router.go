package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/urwriter/marketplace/internal/auth"
	"github.com/urwriter/marketplace/internal/config"
	"github.com/urwriter/marketplace/internal/domain/user"
	"github.com/urwriter/marketplace/internal/http/handlers"
	"github.com/urwriter/marketplace/internal/http/middlewares"
	"github.com/urwriter/marketplace/internal/jobs"
	"github.com/urwriter/marketplace/internal/observability"
	"github.com/urwriter/marketplace/internal/proposals"
	"github.com/urwriter/marketplace/internal/queue/redisclient"
	"github.com/urwriter/marketplace/internal/repo/memory"
	"github.com/urwriter/marketplace/internal/repo/postgres"
)

// Deps is what the router needs from main. Pool and Redis may be nil: jobs
// then run degraded and rate limiting stays in process.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redisclient.Client
	Prom     *observability.Prom
	Registry *prometheus.Registry
	Version  string
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(cfg.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// repositories
	usersRepo := postgres.NewUsersRepo(d.Pool, d.Prom)
	refreshRepo := postgres.NewRefreshTokensRepo(d.Pool)
	jobsRepo := postgres.NewJobsRepo(d.Pool, d.Prom)
	tasksRepo := postgres.NewTasksRepo(d.Pool, d.Prom)
	proposalsRepo := postgres.NewProposalsRepo(d.Pool, d.Prom, tasksRepo)

	// services
	jwtManager := auth.NewManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	authSvc := auth.NewService(usersRepo, refreshRepo, jwtManager)
	jobsSvc := jobs.NewService(jobsRepo, memory.NewJobFixtures(), jobs.Options{
		FallbackEnabled: cfg.FallbackEnabled,
		Logger:          d.Logger,
		Prom:            d.Prom,
	})
	var waker proposals.Waker
	if d.Redis != nil {
		waker = d.Redis
	}
	proposalsSvc := proposals.NewService(jobsRepo, proposalsRepo, waker)

	// handlers
	authMW := middlewares.NewAuthMiddleware(jwtManager)
	health := handlers.NewHealthHandler(d.Version, readinessChecks(d))
	authHandler := handlers.NewAuthHandler(authSvc, cfg.Env == "prod")
	jobsHandler := handlers.NewJobsHandler(jobsSvc)
	meHandler := handlers.NewMeHandler(usersRepo)
	proposalsHandler := handlers.NewProposalsHandler(proposalsSvc)
	adminTasks := handlers.NewAdminTasksHandler(tasksRepo)

	// health and metrics
	r.GET("/", health.Root)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	// auth, rate limited per client IP
	authLimit := middlewares.RateLimit(newLimiter(d, "ratelimit:auth"), middlewares.KeyByIP)
	authGroup := r.Group("/auth", authLimit)
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)

	// jobs: reads are public
	r.GET("/jobs", jobsHandler.List)
	r.GET("/jobs/:id", jobsHandler.Get)

	protected := r.Group("/", authMW.RequireAuth())
	protected.POST("/jobs", jobsHandler.Create)
	protected.PATCH("/jobs/:id", jobsHandler.Update)
	protected.DELETE("/jobs/:id", jobsHandler.Delete)

	protected.GET("/me", meHandler.Get)
	protected.PUT("/me", meHandler.Update)

	writeLimit := middlewares.RateLimit(newLimiter(d, "ratelimit:proposals"), middlewares.KeyByUserOrIP)
	protected.POST("/jobs/:id/proposals", writeLimit, authMW.RequireRole(user.RoleProvider), proposalsHandler.Submit)
	protected.GET("/jobs/:id/proposals", proposalsHandler.ListForJob)
	protected.GET("/me/proposals", proposalsHandler.ListMine)
	protected.PATCH("/proposals/:id/status", proposalsHandler.UpdateStatus)

	// admin
	admin := r.Group("/admin", authMW.RequireAuth(), authMW.RequireRole(user.RoleAdmin))
	admin.GET("/tasks", adminTasks.List)
	admin.GET("/tasks/:id", adminTasks.GetByID)
	admin.POST("/tasks/:id/retry", adminTasks.Retry)
	admin.POST("/tasks/reprocess-failed", adminTasks.ReprocessFailed)

	return r
}

// newLimiter shares counters across instances through Redis when it is
// configured and falls back to per-process token buckets otherwise.
func newLimiter(d Deps, prefix string) middlewares.Limiter {
	if rdb := d.Redis.Raw(); rdb != nil {
		return middlewares.NewRedisLimiter(rdb, prefix, d.Config.AuthRateLimit, d.Config.AuthRateWindow)
	}
	return middlewares.NewLocalLimiter(d.Config.AuthRateLimit, d.Config.AuthRateWindow)
}

func readinessChecks(d Deps) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{
		"db": handlers.PingFunc(func(ctx context.Context) error {
			if d.Pool == nil {
				return postgres.ErrUnavailable
			}
			ctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			return d.Pool.Ping(ctx)
		}),
	}
	if d.Redis != nil {
		checks["redis"] = d.Redis
	}
	return checks
}
