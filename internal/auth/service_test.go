package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urwriter/marketplace/internal/domain/user"
	"github.com/urwriter/marketplace/internal/repo/postgres"
)

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]user.User
	creates int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]user.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u user.User) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return user.User{}, user.ErrEmailTaken
		}
	}
	f.creates++
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

// fakeTx satisfies pgx.Tx for the two methods the service calls.
type fakeTx struct {
	pgx.Tx
	committed bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { return nil }

type fakeRefresh struct {
	rows map[string]postgres.RefreshTokenRow
}

func newFakeRefresh() *fakeRefresh {
	return &fakeRefresh{rows: map[string]postgres.RefreshTokenRow{}}
}

func (f *fakeRefresh) BeginTx(context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }

func (f *fakeRefresh) Create(_ context.Context, _ pgx.Tx, row postgres.RefreshTokenRow) error {
	f.rows[row.ID] = row
	return nil
}

func (f *fakeRefresh) GetForUpdate(_ context.Context, _ pgx.Tx, id string) (postgres.RefreshTokenRow, error) {
	row, ok := f.rows[id]
	if !ok {
		return postgres.RefreshTokenRow{}, postgres.ErrRefreshTokenNotFound
	}
	return row, nil
}

func (f *fakeRefresh) Revoke(_ context.Context, _ pgx.Tx, id string, replacedBy *string) error {
	row, ok := f.rows[id]
	if !ok || row.RevokedAt != nil {
		return nil
	}
	now := time.Now()
	row.RevokedAt = &now
	row.ReplacedBy = replacedBy
	f.rows[id] = row
	return nil
}

func (f *fakeRefresh) RevokeAllForUser(_ context.Context, _ pgx.Tx, userID string) error {
	now := time.Now()
	for id, row := range f.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			row.RevokedAt = &now
			f.rows[id] = row
		}
	}
	return nil
}

func (f *fakeRefresh) activeCount() int {
	n := 0
	for _, row := range f.rows {
		if row.RevokedAt == nil {
			n++
		}
	}
	return n
}

func newTestService() (*Service, *fakeUsers, *fakeRefresh) {
	users := newFakeUsers()
	refresh := newFakeRefresh()
	m := NewManager("access-secret-access-secret-1234", "refresh-secret-refresh-secret-12", 15*time.Minute, 7*24*time.Hour)
	return NewService(users, refresh, m), users, refresh
}

func TestRegister(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()

	id, err := svc.Register(ctx, RegisterRequest{Email: "Writer@Example.com", Password: "password123"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	u, err := users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "writer@example.com", u.Email)
	assert.Equal(t, user.RoleClient, u.RoleFlags)
	assert.Equal(t, user.StatusActive, u.Status)
	assert.NotEqual(t, "password123", u.PasswordHash)
}

func TestRegister_DuplicateEmailIsConflictAndCreatesNothing(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Email: "A@example.com", Password: "other-password"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, 1, users.creates)
}

func TestRegister_RejectsAdminBit(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email: "x@example.com", Password: "password123", RoleFlags: user.RoleClient | user.RoleAdmin,
	})
	assert.ErrorIs(t, err, ErrInvalidRoles)
}

func TestLogin(t *testing.T) {
	svc, _, refresh := newTestService()
	ctx := context.Background()

	id, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "password123", RoleFlags: user.RoleProvider})
	require.NoError(t, err)

	t.Run("wrong_password_issues_nothing", func(t *testing.T) {
		tokens, err := svc.Login(ctx, LoginRequest{Email: "a@example.com", Password: "nope-nope"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Empty(t, tokens.AccessToken)
		assert.Equal(t, 0, refresh.activeCount())
	})

	t.Run("unknown_email", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "password123"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("ok", func(t *testing.T) {
		tokens, err := svc.Login(ctx, LoginRequest{Email: "A@example.com", Password: "password123"})
		require.NoError(t, err)

		claims, err := svc.jwt.VerifyAccessToken(tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, id, claims.UserID)
		assert.Equal(t, user.RoleProvider, claims.RoleFlags)
		assert.Equal(t, user.StatusActive, claims.Status)
		assert.Equal(t, 900, tokens.ExpiresIn)

		_, err = svc.jwt.VerifyAccessToken(tokens.RefreshToken)
		assert.Error(t, err, "refresh token must not verify as access token")
		assert.Equal(t, 1, refresh.activeCount())
	})
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	svc, _, refresh := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)
	first, err := svc.Login(ctx, LoginRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, 1, refresh.activeCount())

	// reusing the rotated token revokes the whole family
	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Equal(t, 0, refresh.activeCount())

	_, err = svc.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_Failures(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()

	id, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)
	tokens, err := svc.Login(ctx, LoginRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.Refresh(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	u := users.byID[id]
	u.Status = user.StatusSuspended
	users.byID[id] = u

	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestLogout_IsIdempotent(t *testing.T) {
	svc, _, refresh := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)
	tokens, err := svc.Login(ctx, LoginRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, tokens.RefreshToken))
	require.NoError(t, svc.Logout(ctx, tokens.RefreshToken))
	require.NoError(t, svc.Logout(ctx, "garbage"))
	assert.Equal(t, 0, refresh.activeCount())

	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}
