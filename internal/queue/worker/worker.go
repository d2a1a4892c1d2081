package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/urwriter/marketplace/internal/domain/task"
	"github.com/urwriter/marketplace/internal/notifications"
	"github.com/urwriter/marketplace/internal/observability"
	"github.com/urwriter/marketplace/internal/repo/postgres"
)

type TasksRepository interface {
	ClaimNext(ctx context.Context, workerID string) (task.Task, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// DeliveriesRepository records which recipients a task already notified.
type DeliveriesRepository interface {
	TryStart(ctx context.Context, d postgres.Delivery) error
	MarkSent(ctx context.Context, d postgres.Delivery) error
	MarkFailed(ctx context.Context, d postgres.Delivery, errMsg string) error
}

// WakeSource signals that new tasks were committed.
type WakeSource interface {
	SubscribeWake(ctx context.Context) <-chan struct{}
}

type Config struct {
	WorkerID      string
	PollInterval  time.Duration
	Concurrency   int
	LockTTL       time.Duration
	SweepSpec     string
	TaskTimeout   time.Duration
	ShutdownGrace time.Duration
}

type Deps struct {
	Tasks      TasksRepository
	Deliveries DeliveriesRepository
	Notifier   notifications.Notifier
	Wake       WakeSource
	Prom       *observability.Prom
	Metrics    *observability.TaskMetrics
	Logger     *slog.Logger
}

type Worker struct {
	cfg        Config
	repo       TasksRepository
	deliveries DeliveriesRepository
	notifier   notifications.Notifier
	wake       WakeSource
	prom       *observability.Prom
	metrics    *observability.TaskMetrics
	logger     *slog.Logger

	backoff func(attempt int) time.Duration
	now     func() time.Time

	ready atomic.Bool
}

func New(cfg Config, d Deps) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = "@every 30s"
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewTaskMetrics()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	return &Worker{
		cfg:        cfg,
		repo:       d.Tasks,
		deliveries: d.Deliveries,
		notifier:   d.Notifier,
		wake:       d.Wake,
		prom:       d.Prom,
		metrics:    d.Metrics,
		logger:     d.Logger.With("worker_id", cfg.WorkerID),
		backoff:    ExponentialBackoff,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run polls for tasks until ctx is cancelled, then waits up to
// ShutdownGrace for in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(w.cfg.SweepSpec, func() { w.sweep(ctx) }); err != nil {
		return err
	}
	sweeper.Start()
	defer func() { <-sweeper.Stop().Done() }()

	var wake <-chan struct{}
	if w.wake != nil {
		wake = w.wake.SubscribeWake(ctx)
	}

	// in-flight tasks keep running after shutdown starts
	taskCtx, cancelTasks := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelTasks()

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, taskCtx, wake)
		}()
	}

	w.ready.Store(true)
	w.logger.Info("worker.started", "concurrency", w.cfg.Concurrency, "poll_interval", w.cfg.PollInterval.String())

	<-ctx.Done()
	w.ready.Store(false)
	w.logger.Info("worker.shutdown_requested")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker.stopped")
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		cancelTasks()
		<-done
		w.logger.Warn("worker.shutdown_grace_exceeded", "grace", w.cfg.ShutdownGrace.String())
		return errors.New("worker: in-flight tasks did not finish within shutdown grace")
	}
}

// loop drains due tasks, then sleeps until the next tick or wake-up.
func (w *Worker) loop(ctx, taskCtx context.Context, wake <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for ctx.Err() == nil {
			processed, err := w.ProcessOne(taskCtx)
			if err != nil {
				w.logger.Error("worker.process_error", "err", err)
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				// subscription ended; keep polling
				wake = nil
			}
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := w.repo.RequeueStaleProcessing(sweepCtx, w.cfg.LockTTL)
	if err != nil {
		w.logger.Error("worker.sweep_failed", "err", err)
		return
	}
	if n > 0 {
		w.logger.Warn("worker.requeued_stale", "count", n, "lock_ttl", w.cfg.LockTTL.String())
	}
}

// Ready reports whether the worker is accepting tasks.
func (w *Worker) Ready() bool {
	return w.ready.Load()
}

func (w *Worker) Metrics() observability.TaskMetricsSnapshot {
	return w.metrics.Snapshot()
}
