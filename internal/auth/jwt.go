package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/urwriter/marketplace/internal/domain/user"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrMissingJTI       = errors.New("missing jti")
)

type Claims struct {
	UserID    string        `json:"sub"`
	Email     string        `json:"email"`
	RoleFlags user.RoleMask `json:"roleFlags"`
	Status    user.Status   `json:"status"`
	TokenType string        `json:"typ"`
	JTI       string        `json:"jti"`
	jwt.RegisteredClaims
}

// Subject is what both tokens carry about the user.
type Subject struct {
	UserID    string
	Email     string
	RoleFlags user.RoleMask
	Status    user.Status
}

func SubjectOf(u user.User) Subject {
	return Subject{UserID: u.ID, Email: u.Email, RoleFlags: u.RoleFlags, Status: u.Status}
}

// Manager signs access and refresh tokens with separate HS256 secrets, so a
// refresh token never verifies as an access token and vice versa.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) GenerateAccessToken(s Subject) (string, error) {
	now := m.now()

	claims := m.claims(s, tokenTypeAccess, uuid.NewString(), now, now.Add(m.accessTTL))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.accessSecret)
}

func (m *Manager) GenerateRefreshToken(s Subject) (raw string, jti string, expiresAt time.Time, err error) {
	now := m.now()
	jti = uuid.NewString()
	expiresAt = now.Add(m.refreshTTL)

	claims := m.claims(s, tokenTypeRefresh, jti, now, expiresAt)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	raw, err = token.SignedString(m.refreshSecret)

	return
}

func (m *Manager) claims(s Subject, typ, jti string, now, exp time.Time) Claims {
	return Claims{
		UserID:    s.UserID,
		Email:     s.Email,
		RoleFlags: s.RoleFlags,
		Status:    s.Status,
		TokenType: typ,
		JTI:       jti,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Subject:   s.UserID,
		},
	}
}

func (m *Manager) parse(tokenStr string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (m *Manager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr, m.accessSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}

func (m *Manager) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr, m.refreshSecret)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != tokenTypeRefresh {
		return nil, ErrInvalidTokenType
	}

	if claims.JTI == "" {
		return nil, ErrMissingJTI
	}

	return claims, nil
}

// HashRefreshToken is a deterministic HMAC keyed with the refresh secret.
// Only this hash is stored, never the raw token.
func (m *Manager) HashRefreshToken(raw string) string {
	h := hmac.New(sha256.New, m.refreshSecret)
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}

func (m *Manager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}
