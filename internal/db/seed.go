package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urwriter/marketplace/internal/config"
	"github.com/urwriter/marketplace/internal/domain/job"
	"github.com/urwriter/marketplace/internal/domain/user"
	"github.com/urwriter/marketplace/internal/security"
)

// EnsureAdminUser creates the bootstrap admin when ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no user has that email yet.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	_, created, err := ensureUser(ctx, pool, cfg.AdminEmail, cfg.AdminPassword, user.RoleClient|user.RoleAdmin)
	if err != nil {
		return err
	}
	if created {
		logCreated(ctx, "seed.admin_created", cfg.AdminEmail)
	}
	return nil
}

const demoClientEmail = "client@example.com"

// SeedDemo inserts a sample client with three published jobs. It does nothing
// when the sample client already exists.
func SeedDemo(ctx context.Context, pool *pgxpool.Pool) error {
	// random password: the demo account is for browsing, not logging in
	clientID, created, err := ensureUser(ctx, pool, demoClientEmail, uuid.NewString(), user.RoleClient)
	if err != nil || !created {
		return err
	}

	now := time.Now().UTC()
	for i, req := range demoJobs() {
		j, err := job.NewFromCreateRequest(req, clientID, now.Add(-time.Duration(i)*time.Minute))
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO jobs (id, client_id, title, description, scope, skills, budget_type,
			                  budget_min, budget_max, visibility, status, attachments, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			j.ID, j.ClientID, j.Title, j.Description, j.Scope, j.Skills, string(j.BudgetType),
			j.BudgetMin, j.BudgetMax, string(j.Visibility), string(j.Status), j.Attachments,
			j.CreatedAt, j.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	logCreated(ctx, "seed.demo_created", demoClientEmail)
	return nil
}

func ensureUser(ctx context.Context, pool *pgxpool.Pool, email, password string, roles user.RoleMask) (string, bool, error) {
	var id string
	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE LOWER(email) = LOWER($1)`, email).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return "", false, err
	}

	now := time.Now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		RoleFlags:    roles,
		Status:       user.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role_flags, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Email, u.PasswordHash, int(u.RoleFlags), string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return "", false, err
	}
	return u.ID, true, nil
}

func demoJobs() []job.CreateRequest {
	published := job.StatusPublished
	money := func(v float64) *float64 { return &v }

	return []job.CreateRequest{
		{
			Title:       "Professional Blog Post Writing",
			Description: "Need a skilled writer to create engaging blog posts about technology trends. Must have experience in tech writing and SEO optimization.",
			Scope: &job.Scope{
				Deliverables: []string{"2000-word blog post", "SEO optimization", "Meta descriptions"},
				Timeline:     "1 week",
				Requirements: []string{"Native English", "Tech writing experience", "SEO knowledge"},
			},
			Skills:     []string{"Content Writing", "SEO", "Technology", "Blog Writing"},
			BudgetType: job.BudgetFixed,
			BudgetMin:  money(150),
			BudgetMax:  money(300),
			Status:     published,
		},
		{
			Title:       "Marketing Copy for Product Launch",
			Description: "Create compelling marketing copy for our new SaaS product launch. Need someone who understands conversion copywriting.",
			Scope: &job.Scope{
				Deliverables: []string{"Landing page copy", "Email sequences", "Ad copy"},
				Timeline:     "2 weeks",
				Requirements: []string{"Marketing experience", "SaaS knowledge", "Conversion optimization"},
			},
			Skills:     []string{"Marketing Copy", "SaaS", "Conversion Writing", "Email Marketing"},
			BudgetType: job.BudgetFixed,
			BudgetMin:  money(500),
			BudgetMax:  money(1000),
			Status:     published,
		},
		{
			Title:       "Technical Documentation Writer",
			Description: "Looking for an experienced technical writer to create comprehensive API documentation for our developer platform.",
			Scope: &job.Scope{
				Deliverables: []string{"API documentation", "Code examples", "Getting started guide"},
				Timeline:     "3 weeks",
				Requirements: []string{"Technical writing", "API documentation", "Developer experience"},
			},
			Skills:     []string{"Technical Writing", "API Documentation", "Developer Tools", "Code Examples"},
			BudgetType: job.BudgetHourly,
			BudgetMin:  money(50),
			BudgetMax:  money(80),
			Status:     published,
		},
	}
}

func logCreated(ctx context.Context, msg, email string) {
	slog.InfoContext(ctx, msg, "email", email)
}
