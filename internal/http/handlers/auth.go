package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urwriter/marketplace/internal/auth"
	"github.com/urwriter/marketplace/internal/config"
	"github.com/urwriter/marketplace/internal/repo/postgres"
)

const refreshCookieName = "refresh_token"

type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (string, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.Tokens, error)
	Refresh(ctx context.Context, raw string) (auth.Tokens, error)
	Logout(ctx context.Context, raw string) error
}

type AuthHandler struct {
	svc           AuthService
	secureCookies bool
}

func NewAuthHandler(svc AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{svc: svc, secureCookies: secureCookies}
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"omitempty,max=4096"`
}

// POST /auth/register
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req auth.RegisterRequest
	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt dominates this call
	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	id, err := h.svc.Register(cctx, req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, auth.ErrInvalidRoles):
			RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{{
				Field: "roleFlags", Rule: "roles", Message: err.Error(),
			}}})
		default:
			h.respondFailure(ctx, err, "Could not create user")
		}
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"userId": id})
}

// POST /auth/login
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req auth.LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	tokens, err := h.svc.Login(cctx, req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}
		h.respondFailure(ctx, err, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, tokens.RefreshToken, tokens.RefreshExpiresAt)
	ctx.JSON(http.StatusOK, tokens)
}

// POST /auth/refresh takes the token from the body or the refresh cookie.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, ok := h.presentedRefreshToken(ctx)
	if !ok {
		return
	}
	if raw == "" {
		RespondUnauthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	tokens, err := h.svc.Refresh(cctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidRefreshToken):
			h.clearRefreshCookie(ctx)
			RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
		case errors.Is(err, auth.ErrInactiveUser):
			h.clearRefreshCookie(ctx)
			RespondUnauthorized(ctx, "inactive_user", "User not found or inactive")
		default:
			h.respondFailure(ctx, err, "Could not refresh session")
		}
		return
	}

	h.setRefreshCookie(ctx, tokens.RefreshToken, tokens.RefreshExpiresAt)
	ctx.JSON(http.StatusOK, tokens)
}

// POST /auth/logout always answers 204.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, ok := h.presentedRefreshToken(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.svc.Logout(cctx, raw); err != nil {
		slog.Default().WarnContext(ctx.Request.Context(), "auth.logout_failed", "err", err)
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// presentedRefreshToken prefers a JSON body and falls back to the cookie.
// It returns false after writing an error response.
func (h *AuthHandler) presentedRefreshToken(ctx *gin.Context) (string, bool) {
	if ctx.Request.ContentLength != 0 && ctx.Request.Body != nil {
		var req RefreshRequest
		if !BindJSON(ctx, &req) {
			return "", false
		}
		if req.RefreshToken != "" {
			return req.RefreshToken, true
		}
	}

	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil {
		return "", true
	}
	return raw, true
}

func (h *AuthHandler) respondFailure(ctx *gin.Context, err error, message string) {
	if errors.Is(err, postgres.ErrUnavailable) {
		RespondUnavailable(ctx, "Authentication is temporarily unavailable")
		return
	}
	slog.Default().ErrorContext(ctx.Request.Context(), "auth.handler_error", "err", err)
	RespondInternal(ctx, message)
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		refreshCookieName,
		raw,
		maxAge,
		"/auth",
		"",
		h.secureCookies,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, "", -1, "/auth", "", h.secureCookies, true)
}
