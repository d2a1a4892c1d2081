package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urwriter/marketplace/internal/domain/task"
	"github.com/urwriter/marketplace/internal/observability"
	"github.com/urwriter/marketplace/internal/utils"
)

var ErrTaskNotFailed = errors.New("task is not failed")

// TasksRepo is the durable queue behind cmd/worker.
type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	return observe(r.pool, r.prom, op, fn)
}

const taskColumns = `id, type, payload, status, attempts, max_attempts,
	run_at, locked_at, locked_by, last_error, created_at, updated_at`

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task
	err := row.Scan(
		&t.ID, &t.Type, &t.Payload, &t.Status, &t.Attempts, &t.MaxAttempts,
		&t.RunAt, &t.LockedAt, &t.LockedBy, &t.LastError, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

const insertTask = `
	INSERT INTO tasks (id, type, payload, status, attempts, max_attempts, run_at, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

func insertTaskArgs(t task.Task) []any {
	return []any{t.ID, t.Type, t.Payload, string(t.Status), t.Attempts, t.MaxAttempts, t.RunAt, t.CreatedAt, t.UpdatedAt}
}

func (r *TasksRepo) Create(ctx context.Context, req task.CreateRequest) (task.Task, error) {
	t := task.New(req)

	err := r.observe("tasks.create", func() error {
		_, err := r.pool.Exec(ctx, insertTask, insertTaskArgs(t)...)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// CreateTx enqueues inside the caller's transaction so the task only exists
// if the write that produced it commits.
func (r *TasksRepo) CreateTx(ctx context.Context, tx pgx.Tx, req task.CreateRequest) (task.Task, error) {
	t := task.New(req)

	err := r.prom.ObserveDB("tasks.create_tx", func() error {
		_, err := tx.Exec(ctx, insertTask, insertTaskArgs(t)...)
		return err
	})
	if err != nil {
		return task.Task{}, unavailable(err)
	}
	return t, nil
}

func (r *TasksRepo) exec(ctx context.Context, op, sql string, args ...any) error {
	var tag pgconn.CommandTag
	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (r *TasksRepo) MarkDone(ctx context.Context, id string) error {
	return r.exec(ctx, "tasks.mark_done", `
		UPDATE tasks
		SET status = 'done',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1`, id)
}

func (r *TasksRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.exec(ctx, "tasks.mark_failed", `
		UPDATE tasks
		SET status = 'failed',
		    attempts = attempts + 1,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1`, id, errMsg)
}

// Reschedule puts a task back to pending after a failed attempt.
func (r *TasksRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return r.exec(ctx, "tasks.reschedule", `
		UPDATE tasks
		SET status = 'pending',
		    attempts = attempts + 1,
		    run_at = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $3,
		    updated_at = NOW()
		WHERE id = $1`, id, runAt, errMsg)
}

// ClaimNext atomically moves the oldest runnable task to processing. It
// returns task.ErrNotFound when nothing is due.
func (r *TasksRepo) ClaimNext(ctx context.Context, workerID string) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.claim_next", func() error {
		var err error
		t, err = scanTask(r.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM tasks
			WHERE status = 'pending'
			  AND run_at <= NOW()
			  AND attempts < max_attempts
			ORDER BY run_at ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE tasks
		SET status = 'processing',
		    locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING `+taskColumns, workerID))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}
	return t, nil
}

// RequeueStaleProcessing returns tasks whose lock is older than lockTTL to
// pending. It recovers work from workers that died mid-task.
func (r *TasksRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	secs := int64(lockTTL.Seconds())
	if secs <= 0 {
		secs = 30
	}

	var rows int64
	err := r.observe("tasks.requeue_stale", func() error {
		tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'pending',
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE status = 'processing'
		  AND locked_at IS NOT NULL
		  AND locked_at < NOW() - ($1 * INTERVAL '1 second')`, secs)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})
	return rows, err
}

func (r *TasksRepo) GetByID(ctx context.Context, id string) (task.Task, error) {
	var t task.Task
	err := r.observe("tasks.get_by_id", func() error {
		var err error
		t, err = scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}
	return t, nil
}

// ListCursor pages tasks newest-updated first using keyset pagination.
func (r *TasksRepo) ListCursor(ctx context.Context, status *string, limit int, after utils.Cursor) (items []task.Task, nextCursor *string, hasMore bool, err error) {
	var (
		conds []string
		args  []any
		pos   = 1
	)

	if status != nil {
		conds = append(conds, fmt.Sprintf("status = $%d", pos))
		args = append(args, *status)
		pos++
	}

	conds = append(conds, fmt.Sprintf("(updated_at, id) < ($%d, $%d)", pos, pos+1))
	args = append(args, after.At, after.ID)
	pos += 2

	q := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d", pos)
	args = append(args, limit+1)

	out := make([]task.Task, 0, limit)

	err = r.observe("tasks.admin.list_cursor", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, false, err
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]

		cur, encErr := utils.EncodeCursor(last.UpdatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	return out, nextCursor, hasMore, nil
}

// Retry requeues a single failed task with a fresh attempt budget.
func (r *TasksRepo) Retry(ctx context.Context, id string) error {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != task.StatusFailed {
		return ErrTaskNotFailed
	}

	return r.exec(ctx, "tasks.admin.retry", `
		UPDATE tasks
		SET status = 'pending',
		    attempts = 0,
		    run_at = NOW(),
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'failed'`, id)
}

func (r *TasksRepo) RetryManyFailed(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var n int64
	err := r.observe("tasks.admin.retry_many_failed", func() error {
		tag, err := r.pool.Exec(ctx, `
		WITH picked AS (
			SELECT id
			FROM tasks
			WHERE status = 'failed'
			ORDER BY updated_at DESC
			LIMIT $1
		)
		UPDATE tasks
		SET status = 'pending',
		    attempts = 0,
		    run_at = NOW(),
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id IN (SELECT id FROM picked)`, limit)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}

// Ping reports whether the queue database answers.
func (r *TasksRepo) Ping(ctx context.Context) error {
	if r.pool == nil {
		return ErrUnavailable
	}
	return r.pool.Ping(ctx)
}
