package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urwriter/marketplace/internal/observability"
)

var (
	ErrDeliveryAlreadySent = errors.New("notification already sent")
	ErrDeliveryInProgress  = errors.New("notification delivery in progress")
)

// Delivery identifies one notification a task sends to one recipient.
type Delivery struct {
	TaskID      string
	RecipientID string
	Kind        string
	SubjectID   string
}

// NotificationDeliveriesRepo keeps task retries from notifying a recipient
// twice.
type NotificationDeliveriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewNotificationDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *NotificationDeliveriesRepo {
	return &NotificationDeliveriesRepo{pool: pool, prom: prom}
}

// TryStart claims d for sending. It returns ErrDeliveryAlreadySent or
// ErrDeliveryInProgress when another attempt owns or finished it.
func (r *NotificationDeliveriesRepo) TryStart(ctx context.Context, d Delivery) error {
	var claimErr error

	err := observe(r.pool, r.prom, "deliveries.try_start", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_deliveries (task_id, recipient_id, kind, subject_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'sending', NOW(), NOW())`,
			d.TaskID, d.RecipientID, d.Kind, d.SubjectID)
		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			return err
		}

		// Only one worker can flip failed -> sending.
		tag, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'sending', last_error = NULL, updated_at = NOW()
		WHERE task_id = $1 AND recipient_id = $2 AND status = 'failed'`,
			d.TaskID, d.RecipientID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		var status string
		var sentAt *time.Time
		err = r.pool.QueryRow(ctx, `
		SELECT status, sent_at
		FROM notification_deliveries
		WHERE task_id = $1 AND recipient_id = $2`,
			d.TaskID, d.RecipientID).Scan(&status, &sentAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}

		if sentAt != nil || status == "sent" {
			claimErr = ErrDeliveryAlreadySent
		} else {
			claimErr = ErrDeliveryInProgress
		}
		return nil
	})
	if err != nil {
		return err
	}
	return claimErr
}

func (r *NotificationDeliveriesRepo) MarkSent(ctx context.Context, d Delivery) error {
	return observe(r.pool, r.prom, "deliveries.mark_sent", func() error {
		_, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'sent', sent_at = NOW(), last_error = NULL, updated_at = NOW()
		WHERE task_id = $1 AND recipient_id = $2`, d.TaskID, d.RecipientID)
		return err
	})
}

func (r *NotificationDeliveriesRepo) MarkFailed(ctx context.Context, d Delivery, errMsg string) error {
	return observe(r.pool, r.prom, "deliveries.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'failed', last_error = $3, updated_at = NOW()
		WHERE task_id = $1 AND recipient_id = $2`, d.TaskID, d.RecipientID, errMsg)
		return err
	})
}
