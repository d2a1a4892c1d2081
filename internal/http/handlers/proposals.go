package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urwriter/marketplace/internal/actorctx"
	"github.com/urwriter/marketplace/internal/config"
	"github.com/urwriter/marketplace/internal/domain/job"
	"github.com/urwriter/marketplace/internal/domain/proposal"
	"github.com/urwriter/marketplace/internal/http/middlewares"
	"github.com/urwriter/marketplace/internal/repo/postgres"
)

type ProposalsService interface {
	Submit(ctx context.Context, actor actorctx.Actor, jobID string, req proposal.CreateRequest) (proposal.Proposal, error)
	ListForJob(ctx context.Context, actor actorctx.Actor, jobID string) ([]proposal.Proposal, error)
	ListMine(ctx context.Context, actor actorctx.Actor) ([]proposal.Proposal, error)
	UpdateStatus(ctx context.Context, actor actorctx.Actor, id string, status proposal.Status) (proposal.Proposal, error)
}

type ProposalsHandler struct {
	svc ProposalsService
}

func NewProposalsHandler(svc ProposalsService) *ProposalsHandler {
	return &ProposalsHandler{svc: svc}
}

type proposalList struct {
	Items []proposal.Proposal `json:"items"`
	Count int                 `json:"count"`
}

// POST /jobs/:id/proposals
func (h *ProposalsHandler) Submit(ctx *gin.Context) {
	actor, ok := actorctx.From(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	jobID := ctx.Param("id")
	ctx.Set(middlewares.CtxJobID, jobID)

	var req proposal.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.svc.Submit(cctx, actor, jobID, req)
	if err != nil {
		h.respondError(ctx, err, "Could not submit proposal")
		return
	}

	ctx.JSON(http.StatusCreated, p)
}

// GET /jobs/:id/proposals
func (h *ProposalsHandler) ListForJob(ctx *gin.Context) {
	actor, ok := actorctx.From(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	jobID := ctx.Param("id")
	ctx.Set(middlewares.CtxJobID, jobID)

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.svc.ListForJob(cctx, actor, jobID)
	if err != nil {
		h.respondError(ctx, err, "Could not list proposals")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, proposalList{Items: items, Count: len(items)})
}

// GET /me/proposals
func (h *ProposalsHandler) ListMine(ctx *gin.Context) {
	actor, ok := actorctx.From(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.svc.ListMine(cctx, actor)
	if err != nil {
		h.respondError(ctx, err, "Could not list proposals")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, proposalList{Items: items, Count: len(items)})
}

// PATCH /proposals/:id/status
func (h *ProposalsHandler) UpdateStatus(ctx *gin.Context) {
	actor, ok := actorctx.From(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	var req proposal.UpdateStatusRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.svc.UpdateStatus(cctx, actor, ctx.Param("id"), req.Status)
	if err != nil {
		h.respondError(ctx, err, "Could not update proposal")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

func (h *ProposalsHandler) respondError(ctx *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, job.ErrNotFound):
		RespondNotFound(ctx, "Job not found")
	case errors.Is(err, proposal.ErrNotFound):
		RespondNotFound(ctx, "Proposal not found")
	case errors.Is(err, job.ErrForbidden):
		RespondForbidden(ctx, "Only the job owner can view its proposals")
	case errors.Is(err, proposal.ErrForbidden):
		RespondForbidden(ctx, "Not allowed to change this proposal")
	case errors.Is(err, proposal.ErrOwnJob):
		RespondError(ctx, http.StatusForbidden, "own_job", "You cannot bid on your own job", nil)
	case errors.Is(err, proposal.ErrJobNotOpen):
		RespondConflict(ctx, "job_not_open", "This job is not accepting proposals")
	case errors.Is(err, proposal.ErrAlreadySubmitted):
		RespondConflict(ctx, "already_submitted", "You already submitted a proposal for this job")
	case errors.Is(err, postgres.ErrUnavailable):
		RespondUnavailable(ctx, "Proposal storage is temporarily unavailable")
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "proposals.handler_error", "err", err)
		RespondInternal(ctx, message)
	}
}
