package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urwriter/marketplace/internal/domain/user"
	"github.com/urwriter/marketplace/internal/observability"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

const userColumns = `id, email, password_hash, role_flags, status, created_at, updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.RoleFlags, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := observe(r.pool, r.prom, "users.create", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role_flags, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			u.ID, u.Email, u.PasswordHash, int(u.RoleFlags), string(u.Status), u.CreatedAt, u.UpdatedAt,
		)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := observe(r.pool, r.prom, "users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := observe(r.pool, r.prom, "users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

// GetMe loads the user and its profile. Profile is nil until the first PUT /me.
func (r *UsersRepo) GetMe(ctx context.Context, id string) (user.Me, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return user.Me{}, err
	}

	var p user.Profile
	err = observe(r.pool, r.prom, "profiles.get", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT user_id, display_name, headline, bio, hourly_rate, location,
		       languages, skills, industries, updated_at
		FROM profiles
		WHERE user_id = $1`, id).Scan(
			&p.UserID, &p.DisplayName, &p.Headline, &p.Bio, &p.HourlyRate, &p.Location,
			&p.Languages, &p.Skills, &p.Industries, &p.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Me{User: u}, nil
		}
		return user.Me{}, err
	}
	return user.Me{User: u, Profile: &p}, nil
}

func (r *UsersRepo) UpsertProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	err := observe(r.pool, r.prom, "profiles.upsert", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, display_name, headline, bio, hourly_rate, location,
		                      languages, skills, industries, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    headline = EXCLUDED.headline,
		    bio = EXCLUDED.bio,
		    hourly_rate = EXCLUDED.hourly_rate,
		    location = EXCLUDED.location,
		    languages = EXCLUDED.languages,
		    skills = EXCLUDED.skills,
		    industries = EXCLUDED.industries,
		    updated_at = EXCLUDED.updated_at`,
			p.UserID, p.DisplayName, p.Headline, p.Bio, p.HourlyRate, p.Location,
			p.Languages, p.Skills, p.Industries, p.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return user.Profile{}, err
	}
	return p, nil
}
