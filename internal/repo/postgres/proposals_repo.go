package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urwriter/marketplace/internal/domain/proposal"
	"github.com/urwriter/marketplace/internal/domain/task"
	"github.com/urwriter/marketplace/internal/observability"
)

type ProposalsRepo struct {
	pool  *pgxpool.Pool
	prom  *observability.Prom
	tasks *TasksRepo
}

func NewProposalsRepo(pool *pgxpool.Pool, prom *observability.Prom, tasks *TasksRepo) *ProposalsRepo {
	return &ProposalsRepo{pool: pool, prom: prom, tasks: tasks}
}

const proposalColumns = `id, job_id, freelancer_id, cover, bid_type, bid_amount, milestones, status, created_at, updated_at`

func scanProposal(row pgx.Row) (proposal.Proposal, error) {
	var p proposal.Proposal
	err := row.Scan(
		&p.ID, &p.JobID, &p.FreelancerID, &p.Cover, &p.BidType, &p.BidAmount,
		&p.Milestones, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == nil && p.Milestones == nil {
		p.Milestones = []proposal.MilestoneDraft{}
	}
	return p, err
}

// withTx runs fn in a transaction and commits when it returns nil.
func (r *ProposalsRepo) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	if r.pool == nil {
		return ErrUnavailable
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return unavailable(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return unavailable(tx.Commit(ctx))
}

// Create inserts p and enqueues the notification task atomically.
func (r *ProposalsRepo) Create(ctx context.Context, p proposal.Proposal, notify task.CreateRequest) (proposal.Proposal, error) {
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		err := r.prom.ObserveDB("proposals.create", func() error {
			_, err := tx.Exec(ctx, `
			INSERT INTO proposals (id, job_id, freelancer_id, cover, bid_type, bid_amount, milestones, status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				p.ID, p.JobID, p.FreelancerID, p.Cover, string(p.BidType), p.BidAmount,
				p.Milestones, string(p.Status), p.CreatedAt, p.UpdatedAt,
			)
			return err
		})
		if err != nil {
			if IsUniqueViolation(err) {
				return proposal.ErrAlreadySubmitted
			}
			return unavailable(err)
		}

		_, err = r.tasks.CreateTx(ctx, tx, notify)
		return err
	})
	if err != nil {
		return proposal.Proposal{}, err
	}
	return p, nil
}

// GetWithJobOwner returns the proposal and the client id owning its job.
func (r *ProposalsRepo) GetWithJobOwner(ctx context.Context, id string) (proposal.Proposal, string, error) {
	var (
		p        proposal.Proposal
		clientID string
	)

	err := observe(r.pool, r.prom, "proposals.get", func() error {
		var err error
		p, err = scanProposal(r.pool.QueryRow(ctx, `
			SELECT p.id, p.job_id, p.freelancer_id, p.cover, p.bid_type, p.bid_amount,
			       p.milestones, p.status, p.created_at, p.updated_at
			FROM proposals p
			WHERE p.id = $1`, id))
		if err != nil {
			return err
		}
		return r.pool.QueryRow(ctx, `SELECT client_id FROM jobs WHERE id = $1`, p.JobID).Scan(&clientID)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return proposal.Proposal{}, "", proposal.ErrNotFound
		}
		return proposal.Proposal{}, "", err
	}
	return p, clientID, nil
}

func (r *ProposalsRepo) list(ctx context.Context, op, where, arg string) ([]proposal.Proposal, error) {
	out := []proposal.Proposal{}

	err := observe(r.pool, r.prom, op, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+proposalColumns+` FROM proposals WHERE `+where+` ORDER BY created_at DESC, id DESC`, arg)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProposal(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProposalsRepo) ListByJob(ctx context.Context, jobID string) ([]proposal.Proposal, error) {
	return r.list(ctx, "proposals.list_by_job", "job_id = $1", jobID)
}

func (r *ProposalsRepo) ListByFreelancer(ctx context.Context, freelancerID string) ([]proposal.Proposal, error) {
	return r.list(ctx, "proposals.list_by_freelancer", "freelancer_id = $1", freelancerID)
}

// UpdateStatus writes the new status and enqueues the notification task in
// one transaction.
func (r *ProposalsRepo) UpdateStatus(ctx context.Context, id string, status proposal.Status, at time.Time, notify task.CreateRequest) (proposal.Proposal, error) {
	var p proposal.Proposal

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		err := r.prom.ObserveDB("proposals.update_status", func() error {
			var err error
			p, err = scanProposal(tx.QueryRow(ctx, `
			UPDATE proposals
			SET status = $2, updated_at = $3
			WHERE id = $1
			RETURNING `+proposalColumns, id, string(status), at))
			return err
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return proposal.ErrNotFound
			}
			return unavailable(err)
		}

		_, err = r.tasks.CreateTx(ctx, tx, notify)
		return err
	})
	if err != nil {
		return proposal.Proposal{}, err
	}
	return p, nil
}
