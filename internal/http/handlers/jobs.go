package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urwriter/marketplace/internal/actorctx"
	"github.com/urwriter/marketplace/internal/domain/job"
	"github.com/urwriter/marketplace/internal/http/middlewares"
	"github.com/urwriter/marketplace/internal/jobs"
	"github.com/urwriter/marketplace/internal/repo/postgres"
)

const (
	dataSourceHeader = "X-Data-Source"
	maxSearchLen     = 200
)

type JobsService interface {
	List(ctx context.Context, f job.ListFilter) (jobs.Result[job.Page], error)
	Get(ctx context.Context, id string) (jobs.Result[job.Job], error)
	Create(ctx context.Context, actor actorctx.Actor, req job.CreateRequest) (jobs.Result[job.Job], error)
	Update(ctx context.Context, actor actorctx.Actor, id string, patch jobs.Patch) (jobs.Result[job.Job], error)
	Delete(ctx context.Context, actor actorctx.Actor, id string) (jobs.Result[struct{}], error)
}

type JobsHandler struct {
	svc     JobsService
	timeout time.Duration
}

func NewJobsHandler(svc JobsService) *JobsHandler {
	RegisterValidators()
	return &JobsHandler{svc: svc, timeout: 3 * time.Second}
}

// jobPage and jobBody flatten the payload and add the degraded flag, so a
// fixture response has the same shape as a database one.
type jobPage struct {
	job.Page
	Degraded bool `json:"degraded,omitempty"`
}

type jobBody struct {
	job.Job
	Degraded bool `json:"degraded,omitempty"`
}

func (h *JobsHandler) withTimeout(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), h.timeout)
}

// GET /jobs?page=1&limit=10&category=&budget_min=&budget_max=&search=
func (h *JobsHandler) List(ctx *gin.Context) {
	f, details := parseListFilter(ctx)
	if details != nil {
		RespondBadRequest(ctx, "Invalid query parameters", gin.H{"fields": details})
		return
	}

	cctx, cancel := h.withTimeout(ctx)
	defer cancel()

	res, err := h.svc.List(cctx, f)
	if err != nil {
		h.respondError(ctx, err, "Could not list jobs")
		return
	}

	ctx.Header(dataSourceHeader, string(res.Source()))
	RespondJSONWithETag(ctx, http.StatusOK, jobPage{Page: res.Data, Degraded: res.Degraded})
}

// GET /jobs/:id
func (h *JobsHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	ctx.Set(middlewares.CtxJobID, id)

	cctx, cancel := h.withTimeout(ctx)
	defer cancel()

	res, err := h.svc.Get(cctx, id)
	if err != nil {
		h.respondError(ctx, err, "Could not fetch job")
		return
	}

	ctx.Header(dataSourceHeader, string(res.Source()))
	RespondJSONWithETag(ctx, http.StatusOK, jobBody{Job: res.Data, Degraded: res.Degraded})
}

// POST /jobs
func (h *JobsHandler) Create(ctx *gin.Context) {
	actor, ok := actorctx.From(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	var req job.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := h.withTimeout(ctx)
	defer cancel()

	res, err := h.svc.Create(cctx, actor, req)
	if err != nil {
		h.respondError(ctx, err, "Could not create job")
		return
	}

	ctx.Set(middlewares.CtxJobID, res.Data.ID)
	ctx.Header(dataSourceHeader, string(res.Source()))
	ctx.JSON(http.StatusCreated, jobBody{Job: res.Data, Degraded: res.Degraded})
}

// PATCH /jobs/:id
//
// The body is decoded only once ownership is confirmed, so a non-owner gets
// 403 whatever it sent.
func (h *JobsHandler) Update(ctx *gin.Context) {
	actor, ok := actorctx.From(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	id := ctx.Param("id")
	ctx.Set(middlewares.CtxJobID, id)

	patch := func() (job.UpdateRequest, error) {
		var req job.UpdateRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			return job.UpdateRequest{}, &bindError{err: err, out: &req}
		}
		return req, nil
	}

	cctx, cancel := h.withTimeout(ctx)
	defer cancel()

	res, err := h.svc.Update(cctx, actor, id, patch)
	if err != nil {
		h.respondError(ctx, err, "Could not update job")
		return
	}

	ctx.Header(dataSourceHeader, string(res.Source()))
	ctx.JSON(http.StatusOK, jobBody{Job: res.Data, Degraded: res.Degraded})
}

// DELETE /jobs/:id
func (h *JobsHandler) Delete(ctx *gin.Context) {
	actor, ok := actorctx.From(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	id := ctx.Param("id")
	ctx.Set(middlewares.CtxJobID, id)

	cctx, cancel := h.withTimeout(ctx)
	defer cancel()

	res, err := h.svc.Delete(cctx, actor, id)
	if err != nil {
		h.respondError(ctx, err, "Could not delete job")
		return
	}

	ctx.Header(dataSourceHeader, string(res.Source()))
	ctx.Status(http.StatusNoContent)
}

func (h *JobsHandler) respondError(ctx *gin.Context, err error, fallback string) {
	var be *bindError

	switch {
	case errors.As(err, &be):
		respondBindError(ctx, be)
	case errors.Is(err, job.ErrNotFound):
		RespondNotFound(ctx, "Job not found")
	case errors.Is(err, job.ErrForbidden):
		RespondForbidden(ctx, "Only the job owner can change this job")
	case errors.Is(err, job.ErrInvalidBudget):
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{{
			Field:   "budgetMin",
			Rule:    budgetRangeTag,
			Message: validationMessage(budgetRangeTag, ""),
		}}})
	case errors.Is(err, postgres.ErrUnavailable):
		RespondUnavailable(ctx, "Job storage is temporarily unavailable")
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "jobs.handler_error", "err", err)
		RespondInternal(ctx, fallback)
	}
}

// parseListFilter reads the listing query. Missing or zero page and limit
// take their defaults. A limit above job.MaxLimit or a page whose offset
// passes job.MaxOffset is rejected.
func parseListFilter(ctx *gin.Context) (job.ListFilter, []FieldError) {
	var (
		f    job.ListFilter
		errs []FieldError
	)

	intParam := func(name string) int {
		raw := strings.TrimSpace(ctx.Query(name))
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, FieldError{Field: name, Rule: "min", Param: "1", Message: "must be a positive integer"})
			return 0
		}
		return n
	}

	floatParam := func(name string) *float64 {
		raw := strings.TrimSpace(ctx.Query(name))
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			errs = append(errs, FieldError{Field: name, Rule: "gte", Param: "0", Message: "must be a non-negative number"})
			return nil
		}
		return &v
	}

	textParam := func(name string) *string {
		raw := strings.TrimSpace(ctx.Query(name))
		if raw == "" {
			return nil
		}
		if len(raw) > maxSearchLen {
			errs = append(errs, FieldError{Field: name, Rule: "max", Param: strconv.Itoa(maxSearchLen), Message: validationMessage("max", strconv.Itoa(maxSearchLen))})
			return nil
		}
		return &raw
	}

	f.Page = intParam("page")
	f.Limit = intParam("limit")
	f.BudgetMin = floatParam("budget_min")
	f.BudgetMax = floatParam("budget_max")
	f.Category = textParam("category")
	f.Search = textParam("search")

	if f.Limit > job.MaxLimit {
		param := strconv.Itoa(job.MaxLimit)
		errs = append(errs, FieldError{Field: "limit", Rule: "max", Param: param, Message: validationMessage("max", param)})
	} else if len(errs) == 0 && !f.PageInRange() {
		errs = append(errs, FieldError{Field: "page", Rule: "max", Message: "page is beyond the last reachable result"})
	}

	if len(errs) > 0 {
		return job.ListFilter{}, errs
	}
	return f.Normalize(), nil
}
