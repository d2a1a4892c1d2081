package proposals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urwriter/marketplace/internal/actorctx"
	"github.com/urwriter/marketplace/internal/domain/job"
	"github.com/urwriter/marketplace/internal/domain/proposal"
	"github.com/urwriter/marketplace/internal/domain/task"
	"github.com/urwriter/marketplace/internal/domain/user"
	"github.com/urwriter/marketplace/internal/tasks"
)

type JobReader interface {
	GetByID(ctx context.Context, id string) (job.Job, error)
}

type Store interface {
	Create(ctx context.Context, p proposal.Proposal, notify task.CreateRequest) (proposal.Proposal, error)
	GetWithJobOwner(ctx context.Context, id string) (proposal.Proposal, string, error)
	ListByJob(ctx context.Context, jobID string) ([]proposal.Proposal, error)
	ListByFreelancer(ctx context.Context, freelancerID string) ([]proposal.Proposal, error)
	UpdateStatus(ctx context.Context, id string, status proposal.Status, at time.Time, notify task.CreateRequest) (proposal.Proposal, error)
}

// Waker nudges idle workers after a notification task is committed.
type Waker interface {
	Wake(ctx context.Context) error
}

// Service handles bids. It always talks to the database; there is no
// fixture fallback for proposals.
type Service struct {
	jobs  JobReader
	store Store
	waker Waker
	now   func() time.Time
}

// NewService builds the service. waker may be nil; workers then pick tasks
// up on their next poll.
func NewService(jobs JobReader, store Store, waker Waker) *Service {
	return &Service{jobs: jobs, store: store, waker: waker, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) wake(ctx context.Context) {
	if s.waker == nil {
		return
	}
	if err := s.waker.Wake(ctx); err != nil {
		slog.Default().DebugContext(ctx, "proposals.wake_failed", "err", err)
	}
}

// Submit places the actor's bid on a published job it does not own.
func (s *Service) Submit(ctx context.Context, actor actorctx.Actor, jobID string, req proposal.CreateRequest) (proposal.Proposal, error) {
	if !actor.RoleFlags.Has(user.RoleProvider) {
		return proposal.Proposal{}, proposal.ErrForbidden
	}

	j, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if j.OwnedBy(actor.UserID) {
		return proposal.Proposal{}, proposal.ErrOwnJob
	}
	if j.Status != job.StatusPublished {
		return proposal.Proposal{}, proposal.ErrJobNotOpen
	}

	p := proposal.New(j.ID, actor.UserID, req, s.now())

	notify, err := tasks.NewCreateRequest(tasks.ProposalSubmitted, tasks.ProposalSubmittedPayload{
		ProposalID:   p.ID,
		JobID:        j.ID,
		ClientID:     j.ClientID,
		FreelancerID: actor.UserID,
		SubmittedAt:  p.CreatedAt,
		RequestID:    actorctx.RequestIDFrom(ctx),
	})
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("build notification: %w", err)
	}

	created, err := s.store.Create(ctx, p, notify)
	if err != nil {
		return proposal.Proposal{}, err
	}
	s.wake(ctx)
	return created, nil
}

// ListForJob is visible to the job owner only.
func (s *Service) ListForJob(ctx context.Context, actor actorctx.Actor, jobID string) ([]proposal.Proposal, error) {
	j, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !j.OwnedBy(actor.UserID) {
		return nil, job.ErrForbidden
	}
	return s.store.ListByJob(ctx, jobID)
}

func (s *Service) ListMine(ctx context.Context, actor actorctx.Actor) ([]proposal.Proposal, error) {
	return s.store.ListByFreelancer(ctx, actor.UserID)
}

// UpdateStatus lets the job owner review a bid and the freelancer withdraw
// it. Any status in the actor's set may be written from any current status.
func (s *Service) UpdateStatus(ctx context.Context, actor actorctx.Actor, id string, status proposal.Status) (proposal.Proposal, error) {
	p, clientID, err := s.store.GetWithJobOwner(ctx, id)
	if err != nil {
		return proposal.Proposal{}, err
	}

	var recipient string
	switch {
	case actor.UserID == clientID && status.SettableByClient():
		recipient = p.FreelancerID
	case actor.UserID == p.FreelancerID && status.SettableByFreelancer():
		recipient = clientID
	default:
		return proposal.Proposal{}, proposal.ErrForbidden
	}

	now := s.now()
	notify, err := tasks.NewCreateRequest(tasks.ProposalStatusChanged, tasks.ProposalStatusChangedPayload{
		ProposalID:  p.ID,
		JobID:       p.JobID,
		RecipientID: recipient,
		ActorID:     actor.UserID,
		Status:      string(status),
		ChangedAt:   now,
		RequestID:   actorctx.RequestIDFrom(ctx),
	})
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("build notification: %w", err)
	}

	updated, err := s.store.UpdateStatus(ctx, id, status, now, notify)
	if err != nil {
		return proposal.Proposal{}, err
	}
	s.wake(ctx)
	return updated, nil
}
