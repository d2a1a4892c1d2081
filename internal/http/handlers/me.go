package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urwriter/marketplace/internal/actorctx"
	"github.com/urwriter/marketplace/internal/domain/user"
	"github.com/urwriter/marketplace/internal/repo/postgres"
)

type MeStore interface {
	GetMe(ctx context.Context, id string) (user.Me, error)
	UpsertProfile(ctx context.Context, p user.Profile) (user.Profile, error)
}

type MeHandler struct {
	store MeStore
}

func NewMeHandler(store MeStore) *MeHandler {
	return &MeHandler{store: store}
}

// GET /me
func (h *MeHandler) Get(ctx *gin.Context) {
	userID, ok := actorctx.UserIDFrom(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	me, err := h.store.GetMe(cctx, userID)
	if err != nil {
		h.respondError(ctx, err, "Could not load account")
		return
	}

	ctx.JSON(http.StatusOK, me)
}

// PUT /me replaces the caller's profile. Only the profile is writable here.
func (h *MeHandler) Update(ctx *gin.Context) {
	userID, ok := actorctx.UserIDFrom(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	var req user.UpdateMeRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if _, err := h.store.UpsertProfile(cctx, req.Profile.ToProfile(userID, time.Now().UTC())); err != nil {
		h.respondError(ctx, err, "Could not update profile")
		return
	}

	me, err := h.store.GetMe(cctx, userID)
	if err != nil {
		h.respondError(ctx, err, "Could not load account")
		return
	}

	ctx.JSON(http.StatusOK, me)
}

func (h *MeHandler) respondError(ctx *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, postgres.ErrUnavailable):
		RespondUnavailable(ctx, "Account storage is temporarily unavailable")
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "me.handler_error", "err", err)
		RespondInternal(ctx, message)
	}
}
