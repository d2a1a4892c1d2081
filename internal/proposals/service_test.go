package proposals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urwriter/marketplace/internal/actorctx"
	"github.com/urwriter/marketplace/internal/domain/job"
	"github.com/urwriter/marketplace/internal/domain/proposal"
	"github.com/urwriter/marketplace/internal/domain/task"
	"github.com/urwriter/marketplace/internal/domain/user"
	"github.com/urwriter/marketplace/internal/tasks"
)

type fakeJobs map[string]job.Job

func (f fakeJobs) GetByID(_ context.Context, id string) (job.Job, error) {
	j, ok := f[id]
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	return j, nil
}

type fakeStore struct {
	items    map[string]proposal.Proposal
	owners   map[string]string
	enqueued []task.CreateRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[string]proposal.Proposal{}, owners: map[string]string{}}
}

func (f *fakeStore) Create(_ context.Context, p proposal.Proposal, notify task.CreateRequest) (proposal.Proposal, error) {
	for _, existing := range f.items {
		if existing.JobID == p.JobID && existing.FreelancerID == p.FreelancerID {
			return proposal.Proposal{}, proposal.ErrAlreadySubmitted
		}
	}
	f.items[p.ID] = p
	f.enqueued = append(f.enqueued, notify)
	return p, nil
}

func (f *fakeStore) GetWithJobOwner(_ context.Context, id string) (proposal.Proposal, string, error) {
	p, ok := f.items[id]
	if !ok {
		return proposal.Proposal{}, "", proposal.ErrNotFound
	}
	return p, f.owners[p.JobID], nil
}

func (f *fakeStore) ListByJob(_ context.Context, jobID string) ([]proposal.Proposal, error) {
	out := []proposal.Proposal{}
	for _, p := range f.items {
		if p.JobID == jobID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByFreelancer(_ context.Context, id string) ([]proposal.Proposal, error) {
	out := []proposal.Proposal{}
	for _, p := range f.items {
		if p.FreelancerID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, status proposal.Status, at time.Time, notify task.CreateRequest) (proposal.Proposal, error) {
	p, ok := f.items[id]
	if !ok {
		return proposal.Proposal{}, proposal.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = at
	f.items[id] = p
	f.enqueued = append(f.enqueued, notify)
	return p, nil
}

var (
	client     = actorctx.Actor{UserID: "client-1", RoleFlags: user.RoleClient}
	writer     = actorctx.Actor{UserID: "writer-1", RoleFlags: user.RoleProvider}
	bystander  = actorctx.Actor{UserID: "writer-2", RoleFlags: user.RoleProvider}
	validOffer = proposal.CreateRequest{Cover: "I can do this", BidType: job.BudgetFixed}
)

type countingWaker struct{ n int }

func (w *countingWaker) Wake(context.Context) error {
	w.n++
	return nil
}

func setup() (*Service, *fakeStore) {
	jobs := fakeJobs{
		"open":  {ID: "open", ClientID: client.UserID, Status: job.StatusPublished},
		"draft": {ID: "draft", ClientID: client.UserID, Status: job.StatusDraft},
	}
	store := newFakeStore()
	store.owners["open"] = client.UserID
	return NewService(jobs, store, nil), store
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   actorctx.Actor
		jobID   string
		wantErr error
	}{
		{"needs_provider_bit", client, "open", proposal.ErrForbidden},
		{"missing_job", writer, "missing", job.ErrNotFound},
		{"draft_job", writer, "draft", proposal.ErrJobNotOpen},
		{"own_job", actorctx.Actor{UserID: client.UserID, RoleFlags: user.RoleClient | user.RoleProvider}, "open", proposal.ErrOwnJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setup()
			_, err := svc.Submit(ctx, tt.actor, tt.jobID, validOffer)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("ok_then_duplicate", func(t *testing.T) {
		svc, store := setup()

		p, err := svc.Submit(ctx, writer, "open", validOffer)
		require.NoError(t, err)
		assert.Equal(t, proposal.StatusSubmitted, p.Status)
		assert.NotNil(t, p.Milestones)

		require.Len(t, store.enqueued, 1)
		assert.Equal(t, string(tasks.ProposalSubmitted), store.enqueued[0].Type)

		_, err = svc.Submit(ctx, writer, "open", validOffer)
		assert.ErrorIs(t, err, proposal.ErrAlreadySubmitted)
	})
}

func TestListForJob_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup()

	_, err := svc.Submit(ctx, writer, "open", validOffer)
	require.NoError(t, err)

	items, err := svc.ListForJob(ctx, client, "open")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = svc.ListForJob(ctx, writer, "open")
	assert.ErrorIs(t, err, job.ErrForbidden)

	mine, err := svc.ListMine(ctx, writer)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   actorctx.Actor
		status  proposal.Status
		wantErr error
	}{
		{"owner_accepts", client, proposal.StatusAccepted, nil},
		{"owner_cannot_withdraw", client, proposal.StatusWithdrawn, proposal.ErrForbidden},
		{"freelancer_withdraws", writer, proposal.StatusWithdrawn, nil},
		{"freelancer_cannot_accept", writer, proposal.StatusAccepted, proposal.ErrForbidden},
		{"stranger", bystander, proposal.StatusWithdrawn, proposal.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := setup()
			p, err := svc.Submit(ctx, writer, "open", validOffer)
			require.NoError(t, err)

			got, err := svc.UpdateStatus(ctx, tt.actor, p.ID, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, store.enqueued, 1)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			require.Len(t, store.enqueued, 2)
			assert.Equal(t, string(tasks.ProposalStatusChanged), store.enqueued[1].Type)
		})
	}

	t.Run("missing", func(t *testing.T) {
		svc, _ := setup()
		_, err := svc.UpdateStatus(ctx, client, "nope", proposal.StatusViewed)
		assert.ErrorIs(t, err, proposal.ErrNotFound)
	})
}

func TestWakerCalledAfterCommit(t *testing.T) {
	ctx := context.Background()
	jobs := fakeJobs{"open": {ID: "open", ClientID: client.UserID, Status: job.StatusPublished}}
	store := newFakeStore()
	store.owners["open"] = client.UserID
	waker := &countingWaker{}
	svc := NewService(jobs, store, waker)

	p, err := svc.Submit(ctx, writer, "open", validOffer)
	require.NoError(t, err)
	assert.Equal(t, 1, waker.n)

	_, err = svc.Submit(ctx, writer, "open", validOffer)
	require.ErrorIs(t, err, proposal.ErrAlreadySubmitted)
	assert.Equal(t, 1, waker.n, "failed writes must not wake workers")

	_, err = svc.UpdateStatus(ctx, client, p.ID, proposal.StatusViewed)
	require.NoError(t, err)
	assert.Equal(t, 2, waker.n)
}
