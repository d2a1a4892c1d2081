package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/urwriter/marketplace/internal/domain/user"
	"github.com/urwriter/marketplace/internal/repo/postgres"
	"github.com/urwriter/marketplace/internal/security"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInactiveUser        = errors.New("user not found or inactive")
	ErrInvalidRoles        = errors.New("role flags must combine client and provider only")
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type RefreshStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, row postgres.RefreshTokenRow) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (postgres.RefreshTokenRow, error)
	Revoke(ctx context.Context, tx pgx.Tx, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, tx pgx.Tx, userID string) error
}

type RegisterRequest struct {
	Email     string        `json:"email" binding:"required,email,max=254"`
	Password  string        `json:"password" binding:"required,min=8,max=128"`
	RoleFlags user.RoleMask `json:"roleFlags" binding:"omitempty,min=1,max=3"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Tokens is a freshly issued access/refresh pair.
type Tokens struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	ExpiresIn        int       `json:"expiresIn"`
	RefreshExpiresAt time.Time `json:"-"`
}

// Service registers users and issues, rotates and revokes their tokens.
type Service struct {
	users   UserStore
	refresh RefreshStore
	jwt     *Manager
	now     func() time.Time
}

func NewService(users UserStore, refresh RefreshStore, jwt *Manager) *Service {
	return &Service{
		users:   users,
		refresh: refresh,
		jwt:     jwt,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Register stores a new active user and returns its id.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (string, error) {
	roles := req.RoleFlags
	if roles == 0 {
		roles = user.RoleClient
	}
	if !roles.IsValid() || roles.Has(user.RoleAdmin) {
		return "", ErrInvalidRoles
	}

	email := normalizeEmail(req.Email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, user.ErrNotFound) {
		return "", err
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u, err := s.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		RoleFlags:    roles,
		Status:       user.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, user.ErrEmailTaken) {
			return "", ErrEmailTaken
		}
		return "", err
	}

	return u.ID, nil
}

// Login verifies credentials and starts a session. Unknown emails still pay
// for a hash comparison.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Tokens, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			security.BurnCompare(req.Password)
			return Tokens{}, ErrInvalidCredentials
		}
		return Tokens{}, err
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil {
		return Tokens{}, ErrInvalidCredentials
	}

	tx, err := s.refresh.BeginTx(ctx)
	if err != nil {
		return Tokens{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tokens, err := s.issue(ctx, tx, SubjectOf(u), nil)
	if err != nil {
		return Tokens{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Tokens{}, err
	}
	return tokens, nil
}

// Refresh rotates a refresh token. The presented token is revoked and linked
// to its replacement; presenting a revoked token again revokes every session
// of that user.
func (s *Service) Refresh(ctx context.Context, raw string) (Tokens, error) {
	if raw == "" {
		return Tokens{}, ErrInvalidRefreshToken
	}

	claims, err := s.jwt.VerifyRefreshToken(raw)
	if err != nil {
		return Tokens{}, ErrInvalidRefreshToken
	}

	tx, err := s.refresh.BeginTx(ctx)
	if err != nil {
		return Tokens{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row, err := s.refresh.GetForUpdate(ctx, tx, claims.JTI)
	if err != nil {
		if errors.Is(err, postgres.ErrRefreshTokenNotFound) {
			return Tokens{}, ErrInvalidRefreshToken
		}
		return Tokens{}, err
	}

	if row.TokenHash != s.jwt.HashRefreshToken(raw) || row.UserID != claims.UserID {
		return Tokens{}, ErrInvalidRefreshToken
	}

	if row.RevokedAt != nil {
		if err := s.refresh.RevokeAllForUser(ctx, tx, row.UserID); err != nil {
			return Tokens{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Tokens{}, err
		}
		return Tokens{}, ErrInvalidRefreshToken
	}

	if !row.Active(s.now()) {
		return Tokens{}, ErrInvalidRefreshToken
	}

	u, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Tokens{}, ErrInactiveUser
		}
		return Tokens{}, err
	}
	if u.Status != user.StatusActive {
		return Tokens{}, ErrInactiveUser
	}

	tokens, err := s.issue(ctx, tx, SubjectOf(u), &row.ID)
	if err != nil {
		return Tokens{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Tokens{}, err
	}
	return tokens, nil
}

// Logout revokes the presented refresh token. Invalid or unknown tokens are
// ignored so logout is idempotent.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}

	claims, err := s.jwt.VerifyRefreshToken(raw)
	if err != nil {
		return nil
	}

	tx, err := s.refresh.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.refresh.Revoke(ctx, tx, claims.JTI, nil); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// issue signs a new pair and stores the refresh token. When replacing is set
// the old row is revoked and pointed at the new one.
func (s *Service) issue(ctx context.Context, tx pgx.Tx, sub Subject, replacing *string) (Tokens, error) {
	access, err := s.jwt.GenerateAccessToken(sub)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign access token: %w", err)
	}

	raw, jti, expiresAt, err := s.jwt.GenerateRefreshToken(sub)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if replacing != nil {
		if err := s.refresh.Revoke(ctx, tx, *replacing, &jti); err != nil {
			return Tokens{}, err
		}
	}

	err = s.refresh.Create(ctx, tx, postgres.RefreshTokenRow{
		ID:        jti,
		UserID:    sub.UserID,
		TokenHash: s.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	})
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:      access,
		RefreshToken:     raw,
		TokenType:        "Bearer",
		ExpiresIn:        int(s.jwt.AccessTTL().Seconds()),
		RefreshExpiresAt: expiresAt,
	}, nil
}
