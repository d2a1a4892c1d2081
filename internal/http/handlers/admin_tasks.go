package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urwriter/marketplace/internal/config"
	"github.com/urwriter/marketplace/internal/domain/task"
	"github.com/urwriter/marketplace/internal/http/middlewares"
	"github.com/urwriter/marketplace/internal/repo/postgres"
	"github.com/urwriter/marketplace/internal/utils"
)

type AdminTasksRepo interface {
	ListCursor(ctx context.Context, status *string, limit int, after utils.Cursor) (items []task.Task, nextCursor *string, hasMore bool, err error)
	GetByID(ctx context.Context, id string) (task.Task, error)
	Retry(ctx context.Context, id string) error
	RetryManyFailed(ctx context.Context, limit int) (int64, error)
}

type AdminTasksHandler struct {
	repo AdminTasksRepo
}

func NewAdminTasksHandler(repo AdminTasksRepo) *AdminTasksHandler {
	return &AdminTasksHandler{repo: repo}
}

func parseIntDefault(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}

func validTaskStatus(s string) bool {
	switch task.Status(s) {
	case task.StatusPending, task.StatusProcessing, task.StatusDone, task.StatusFailed:
		return true
	default:
		return false
	}
}

// GET /admin/tasks?status=failed&limit=50&cursor=
func (h *AdminTasksHandler) List(ctx *gin.Context) {
	limit, err := parseIntDefault(ctx.Query("limit"), 20)
	if err != nil || limit < 1 || limit > 100 {
		RespondBadRequest(ctx, "limit must be between 1 and 100", nil)
		return
	}

	var statusPtr *string
	if s := ctx.Query("status"); s != "" {
		if !validTaskStatus(s) {
			RespondBadRequest(ctx, "status must be one of pending, processing, done, failed", nil)
			return
		}
		statusPtr = &s
	}

	after := utils.FirstPage()
	if raw := ctx.Query("cursor"); raw != "" {
		cur, err := utils.DecodeCursor(raw)
		if err != nil {
			RespondBadRequest(ctx, "cursor is invalid", nil)
			return
		}
		after = cur
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, next, hasMore, err := h.repo.ListCursor(cctx, statusPtr, limit, after)
	if err != nil {
		h.respondError(ctx, err, "Could not list tasks")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"limit":      limit,
		"count":      len(items),
		"items":      items,
		"hasMore":    hasMore,
		"nextCursor": next,
	})
}

// GET /admin/tasks/:id
func (h *AdminTasksHandler) GetByID(ctx *gin.Context) {
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	t, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondError(ctx, err, "Could not fetch task")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, t)
}

// POST /admin/tasks/:id/retry
func (h *AdminTasksHandler) Retry(ctx *gin.Context) {
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := h.repo.Retry(cctx, id); err != nil {
		h.respondError(ctx, err, "Could not retry task")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"taskId": id,
		"status": task.StatusPending,
	})
}

// POST /admin/tasks/reprocess-failed?limit=50
func (h *AdminTasksHandler) ReprocessFailed(ctx *gin.Context) {
	limit, err := parseIntDefault(ctx.Query("limit"), 50)
	if err != nil {
		RespondBadRequest(ctx, "limit must be a number", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	n, err := h.repo.RetryManyFailed(cctx, limit)
	if err != nil {
		h.respondError(ctx, err, "Could not reprocess failed tasks")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"requeued": n})
}

func (h *AdminTasksHandler) taskID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	ctx.Set(middlewares.CtxTaskID, id)

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_id", nil)
		return "", false
	}
	return id, true
}

func (h *AdminTasksHandler) respondError(ctx *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		RespondNotFound(ctx, "Task not found")
	case errors.Is(err, postgres.ErrTaskNotFailed):
		RespondConflict(ctx, "task_not_failed", "Only failed tasks can be retried")
	case errors.Is(err, postgres.ErrUnavailable):
		RespondUnavailable(ctx, "Task storage is temporarily unavailable")
	default:
		RespondInternal(ctx, message)
	}
}
