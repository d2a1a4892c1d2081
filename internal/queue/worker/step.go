package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urwriter/marketplace/internal/domain/task"
	"github.com/urwriter/marketplace/internal/notifications"
	"github.com/urwriter/marketplace/internal/repo/postgres"
	"github.com/urwriter/marketplace/internal/tasks"
)

const maxErrorLen = 1000

// ProcessOne claims and runs at most one task. It reports whether a task
// was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	tk, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncClaimed()
	start := time.Now()

	execCtx, cancelExec := context.WithTimeout(ctx, w.cfg.TaskTimeout)
	err = w.execute(execCtx, tk)
	cancelExec()

	elapsed := time.Since(start)
	w.metrics.ObserveDuration(elapsed)

	if err != nil {
		w.handleFailure(ctx, tk, err, elapsed)
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, tk.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, tk.ID, truncate("mark_done_failed: "+err.Error()))
		return true, err
	}

	w.metrics.IncDone()
	w.prom.ObserveTask(tk.Type, "done", elapsed)
	w.logger.Info("task.done", "task_id", tk.ID, "type", tk.Type, "attempt", tk.Attempts+1, "duration_ms", elapsed.Milliseconds())
	return true, nil
}

func (w *Worker) execute(ctx context.Context, tk task.Task) error {
	payload, err := tasks.DecodePayload(tk)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case tasks.ProposalSubmittedPayload:
		d := postgres.Delivery{TaskID: tk.ID, RecipientID: p.ClientID, Kind: tk.Type, SubjectID: p.ProposalID}
		return w.deliver(ctx, d, func(ctx context.Context) error {
			return w.notifier.ProposalSubmitted(ctx, notifications.ProposalSubmittedInput{
				RecipientID:  p.ClientID,
				ProposalID:   p.ProposalID,
				JobID:        p.JobID,
				FreelancerID: p.FreelancerID,
			})
		})

	case tasks.ProposalStatusChangedPayload:
		d := postgres.Delivery{TaskID: tk.ID, RecipientID: p.RecipientID, Kind: tk.Type, SubjectID: p.ProposalID}
		return w.deliver(ctx, d, func(ctx context.Context) error {
			return w.notifier.ProposalStatusChanged(ctx, notifications.ProposalStatusChangedInput{
				RecipientID: p.RecipientID,
				ProposalID:  p.ProposalID,
				JobID:       p.JobID,
				ActorID:     p.ActorID,
				Status:      p.Status,
			})
		})

	default:
		return fmt.Errorf("%w: %s", tasks.ErrInvalidType, tk.Type)
	}
}

// deliver sends at most once per (task, recipient) across retries.
func (w *Worker) deliver(ctx context.Context, d postgres.Delivery, send func(context.Context) error) error {
	if err := w.deliveries.TryStart(ctx, d); err != nil {
		if errors.Is(err, postgres.ErrDeliveryAlreadySent) {
			w.logger.Info("task.delivery_already_sent", "task_id", d.TaskID, "recipient_id", d.RecipientID)
			return nil
		}
		return err
	}

	if err := send(ctx); err != nil {
		if markErr := w.deliveries.MarkFailed(ctx, d, truncate(err.Error())); markErr != nil {
			w.logger.Error("task.delivery_mark_failed", "task_id", d.TaskID, "err", markErr)
		}
		return err
	}

	return w.deliveries.MarkSent(ctx, d)
}

func (w *Worker) handleFailure(ctx context.Context, tk task.Task, cause error, elapsed time.Duration) {
	attempt := tk.Attempts + 1
	msg := truncate(cause.Error())

	if permanent(cause) || attempt >= tk.MaxAttempts {
		if err := w.repo.MarkFailed(ctx, tk.ID, msg); err != nil {
			w.logger.Error("task.mark_failed_error", "task_id", tk.ID, "err", err)
		}
		w.metrics.IncDeadLettered()
		w.prom.ObserveTask(tk.Type, "dead_lettered", elapsed)
		w.logger.Error("task.dead_lettered", "task_id", tk.ID, "type", tk.Type, "attempt", attempt, "err", cause)
		return
	}

	delay := w.backoff(tk.Attempts)
	if err := w.repo.Reschedule(ctx, tk.ID, w.now().Add(delay), msg); err != nil {
		w.logger.Error("task.reschedule_error", "task_id", tk.ID, "err", err)
	}
	w.metrics.IncRetried()
	w.prom.ObserveTask(tk.Type, "retried", elapsed)
	w.logger.Warn("task.retry_scheduled", "task_id", tk.ID, "type", tk.Type, "attempt", attempt, "delay", delay.String(), "err", cause)
}

// permanent errors fail the same way on every attempt.
func permanent(err error) bool {
	return errors.Is(err, tasks.ErrInvalidPayload) ||
		errors.Is(err, tasks.ErrInvalidType) ||
		errors.Is(err, tasks.ErrPayloadTypeMismatch)
}

func truncate(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	return s[:maxErrorLen]
}
