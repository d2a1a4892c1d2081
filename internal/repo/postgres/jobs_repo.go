package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urwriter/marketplace/internal/domain/job"
	"github.com/urwriter/marketplace/internal/observability"
)

// JobsRepo persists marketplace job postings. A nil pool makes every call
// fail with ErrUnavailable.
type JobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{pool: pool, prom: prom}
}

const jobColumns = `
	j.id, j.client_id, j.org_id, j.brand_guide_id,
	j.title, j.description, j.scope, j.skills,
	j.budget_type, j.budget_min, j.budget_max,
	j.visibility, j.status, j.attachments,
	j.created_at, j.updated_at,
	COALESCE(u.email, ''),
	(SELECT COUNT(*) FROM proposals p WHERE p.job_id = j.id)`

const jobFrom = `
	FROM jobs j
	LEFT JOIN users u ON u.id = j.client_id`

func scanJob(row pgx.Row, extra ...any) (job.Job, error) {
	var j job.Job
	dest := []any{
		&j.ID, &j.ClientID, &j.OrgID, &j.BrandGuideID,
		&j.Title, &j.Description, &j.Scope, &j.Skills,
		&j.BudgetType, &j.BudgetMin, &j.BudgetMax,
		&j.Visibility, &j.Status, &j.Attachments,
		&j.CreatedAt, &j.UpdatedAt,
		&j.Client.Email,
		&j.ProposalCount,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return job.Job{}, err
	}

	j.Client.ID = j.ClientID
	if j.Skills == nil {
		j.Skills = []string{}
	}
	if j.Attachments == nil {
		j.Attachments = []job.Attachment{}
	}
	return j, nil
}

// listQuery holds the WHERE clause shared by the page and count statements.
type listQuery struct {
	where string
	args  []any
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// buildListQuery renders f as SQL conditions over the jobs table. Category is
// an exact skill membership test here.
func buildListQuery(f job.ListFilter) listQuery {
	conds := []string{"j.status = 'published'"}
	var args []any
	pos := 1

	if f.Category != nil && *f.Category != "" {
		conds = append(conds, fmt.Sprintf("$%d = ANY(j.skills)", pos))
		args = append(args, *f.Category)
		pos++
	}

	if f.BudgetMin != nil {
		conds = append(conds, fmt.Sprintf("j.budget_min >= $%d", pos))
		args = append(args, *f.BudgetMin)
		pos++
	}

	if f.BudgetMax != nil {
		conds = append(conds, fmt.Sprintf("j.budget_max <= $%d", pos))
		args = append(args, *f.BudgetMax)
		pos++
	}

	if f.Search != nil && *f.Search != "" {
		conds = append(conds, fmt.Sprintf("(j.title ILIKE $%d OR j.description ILIKE $%d)", pos, pos))
		args = append(args, "%"+escapeLike(*f.Search)+"%")
	}

	return listQuery{where: " WHERE " + strings.Join(conds, " AND "), args: args}
}

func (q listQuery) pageSQL(limit, offset int) (string, []any) {
	n := len(q.args)
	sql := "SELECT" + jobColumns + ", COUNT(*) OVER() AS total" + jobFrom + q.where +
		fmt.Sprintf(" ORDER BY j.created_at DESC, j.id DESC LIMIT $%d OFFSET $%d", n+1, n+2)

	args := append(append([]any{}, q.args...), limit, offset)
	return sql, args
}

func (q listQuery) countSQL() (string, []any) {
	return "SELECT COUNT(*) FROM jobs j" + q.where, q.args
}

func (r *JobsRepo) observe(op string, fn func() error) error {
	return observe(r.pool, r.prom, op, fn)
}

func (r *JobsRepo) List(ctx context.Context, f job.ListFilter) (job.Page, error) {
	f = f.Normalize()
	q := buildListQuery(f)
	sql, args := q.pageSQL(f.Limit, f.Offset())

	items := make([]job.Job, 0, f.Limit)
	total := 0

	err := r.observe("jobs.list", func() error {
		rows, err := r.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			j, err := scanJob(rows, &t)
			if err != nil {
				return err
			}
			total = t
			items = append(items, j)
		}
		return rows.Err()
	})
	if err != nil {
		return job.Page{}, err
	}

	// Window count is lost when the page is past the end.
	if len(items) == 0 && f.Offset() > 0 {
		csql, cargs := q.countSQL()
		err = r.observe("jobs.count", func() error {
			return r.pool.QueryRow(ctx, csql, cargs...).Scan(&total)
		})
		if err != nil {
			return job.Page{}, err
		}
	}

	return job.Page{Items: items, Pagination: job.NewPagination(f.Page, f.Limit, total)}, nil
}

func (r *JobsRepo) GetByID(ctx context.Context, id string) (job.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		if r.pool == nil {
			return job.Job{}, ErrUnavailable
		}
		return job.Job{}, job.ErrNotFound
	}

	var j job.Job
	err := r.observe("jobs.get_by_id", func() error {
		var err error
		j, err = scanJob(r.pool.QueryRow(ctx, "SELECT"+jobColumns+jobFrom+" WHERE j.id = $1", id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}
	return j, nil
}

func (r *JobsRepo) Create(ctx context.Context, j job.Job) (job.Job, error) {
	err := r.observe("jobs.create", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO jobs (
			id, client_id, org_id, brand_guide_id, title, description, scope, skills,
			budget_type, budget_min, budget_max, visibility, status, attachments,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			j.ID, j.ClientID, j.OrgID, j.BrandGuideID, j.Title, j.Description, j.Scope, j.Skills,
			string(j.BudgetType), j.BudgetMin, j.BudgetMax, string(j.Visibility), string(j.Status), j.Attachments,
			j.CreatedAt, j.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return job.Job{}, err
	}
	return j, nil
}

// Update writes every mutable column of j. The caller merges partial input.
func (r *JobsRepo) Update(ctx context.Context, j job.Job) (job.Job, error) {
	var tag pgconn.CommandTag
	err := r.observe("jobs.update", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
		UPDATE jobs
		SET title = $2,
		    description = $3,
		    scope = $4,
		    skills = $5,
		    budget_type = $6,
		    budget_min = $7,
		    budget_max = $8,
		    visibility = $9,
		    status = $10,
		    attachments = $11,
		    updated_at = $12
		WHERE id = $1`,
			j.ID, j.Title, j.Description, j.Scope, j.Skills,
			string(j.BudgetType), j.BudgetMin, j.BudgetMax,
			string(j.Visibility), string(j.Status), j.Attachments, j.UpdatedAt,
		)
		return err
	})
	if err != nil {
		if isInvalidInput(err) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}
	if tag.RowsAffected() == 0 {
		return job.Job{}, job.ErrNotFound
	}
	return j, nil
}

func (r *JobsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	err := r.observe("jobs.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
		return err
	})
	if err != nil {
		if isInvalidInput(err) {
			return job.ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}
