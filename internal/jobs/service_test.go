package jobs

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urwriter/marketplace/internal/actorctx"
	"github.com/urwriter/marketplace/internal/domain/job"
	"github.com/urwriter/marketplace/internal/observability"
	"github.com/urwriter/marketplace/internal/repo/memory"
	"github.com/urwriter/marketplace/internal/repo/postgres"
)

// memStore is a writable in-memory Store standing in for postgres.
type memStore struct {
	mu    sync.Mutex
	items map[string]job.Job
	err   error
}

func newMemStore() *memStore { return &memStore{items: map[string]job.Job{}} }

func (m *memStore) List(_ context.Context, f job.ListFilter) (job.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return job.Page{}, m.err
	}
	all := make([]job.Job, 0, len(m.items))
	for _, j := range m.items {
		all = append(all, j)
	}
	return job.Paginate(all, f), nil
}

func (m *memStore) GetByID(_ context.Context, id string) (job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return job.Job{}, m.err
	}
	j, ok := m.items[id]
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	return j, nil
}

func (m *memStore) Create(_ context.Context, j job.Job) (job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return job.Job{}, m.err
	}
	m.items[j.ID] = j
	return j, nil
}

func (m *memStore) Update(_ context.Context, j job.Job) (job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return job.Job{}, m.err
	}
	if _, ok := m.items[j.ID]; !ok {
		return job.Job{}, job.ErrNotFound
	}
	m.items[j.ID] = j
	return j, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.items, id)
	return nil
}

func fp(v float64) *float64 { return &v }
func strp(s string) *string { return &s }

var owner = actorctx.Actor{UserID: "owner-1", Email: "owner@example.com"}

func publishedReq(title string, min, max float64) job.CreateRequest {
	return job.CreateRequest{
		Title:       title,
		Description: "desc",
		Scope:       &job.Scope{},
		BudgetType:  job.BudgetFixed,
		BudgetMin:   fp(min),
		BudgetMax:   fp(max),
		Status:      job.StatusPublished,
	}
}

func TestList_BudgetMinScenario(t *testing.T) {
	svc := NewService(newMemStore(), memory.NewJobFixtures(), Options{FallbackEnabled: true})
	ctx := context.Background()

	res, err := svc.Create(ctx, owner, publishedReq("Job A", 150, 300))
	require.NoError(t, err)
	require.False(t, res.Degraded)
	assert.Equal(t, "owner@example.com", res.Data.Client.Email)

	page, err := svc.List(ctx, job.ListFilter{BudgetMin: fp(200)})
	require.NoError(t, err)
	assert.Empty(t, page.Data.Items)

	page, err = svc.List(ctx, job.ListFilter{BudgetMin: fp(100)})
	require.NoError(t, err)
	require.Len(t, page.Data.Items, 1)
	assert.Equal(t, "Job A", page.Data.Items[0].Title)
	assert.Equal(t, SourceDatabase, page.Source())
}

func TestList_DegradesOnlyWhenUnavailable(t *testing.T) {
	var logs bytes.Buffer
	prom := observability.NewProm(prometheus.NewRegistry())

	primary := newMemStore()
	primary.err = postgres.ErrUnavailable

	svc := NewService(primary, memory.NewJobFixtures(), Options{
		FallbackEnabled: true,
		Logger:          slog.New(slog.NewJSONHandler(&logs, nil)),
		Prom:            prom,
	})

	res, err := svc.List(context.Background(), job.ListFilter{Search: strp("blog")})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, SourceFixture, res.Source())
	assert.ErrorIs(t, res.Cause, postgres.ErrUnavailable)
	assert.NotEmpty(t, res.Data.Items)
	assert.Contains(t, logs.String(), "jobs.degraded")
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.DegradedResponses.WithLabelValues("jobs.list")))

	primary.err = errors.New("syntax error")
	_, err = svc.List(context.Background(), job.ListFilter{})
	assert.EqualError(t, err, "syntax error")
}

func TestFallbackDisabled(t *testing.T) {
	primary := newMemStore()
	primary.err = postgres.ErrUnavailable

	svc := NewService(primary, memory.NewJobFixtures(), Options{FallbackEnabled: false})

	_, err := svc.List(context.Background(), job.ListFilter{})
	assert.ErrorIs(t, err, postgres.ErrUnavailable)
}

func TestGet_NotFoundDoesNotFallBack(t *testing.T) {
	svc := NewService(newMemStore(), memory.NewJobFixtures(), Options{FallbackEnabled: true})

	// "1" exists in the fixtures but a healthy database is authoritative
	_, err := svc.Get(context.Background(), "1")
	assert.ErrorIs(t, err, job.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, memory.NewJobFixtures(), Options{FallbackEnabled: true})

	created, err := svc.Create(ctx, owner, publishedReq("Job A", 150, 300))
	require.NoError(t, err)
	id := created.Data.ID

	t.Run("non_owner_forbidden_before_body_is_read", func(t *testing.T) {
		called := false
		_, err := svc.Update(ctx, actorctx.Actor{UserID: "intruder"}, id, func() (job.UpdateRequest, error) {
			called = true
			return job.UpdateRequest{}, errors.New("bad body")
		})
		assert.ErrorIs(t, err, job.ErrForbidden)
		assert.False(t, called)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := svc.Update(ctx, owner, "nope", func() (job.UpdateRequest, error) { return job.UpdateRequest{}, nil })
		assert.ErrorIs(t, err, job.ErrNotFound)
	})

	t.Run("budget_invariant_after_merge", func(t *testing.T) {
		_, err := svc.Update(ctx, owner, id, func() (job.UpdateRequest, error) {
			return job.UpdateRequest{BudgetMin: fp(500)}, nil
		})
		assert.ErrorIs(t, err, job.ErrInvalidBudget)
	})

	t.Run("partial_update", func(t *testing.T) {
		title := "Renamed"
		res, err := svc.Update(ctx, owner, id, func() (job.UpdateRequest, error) {
			return job.UpdateRequest{Title: &title}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", res.Data.Title)
		assert.Equal(t, 150.0, *res.Data.BudgetMin)
	})
}

func TestUpdate_DegradedDecodesBodyOnce(t *testing.T) {
	primary := newMemStore()
	primary.err = postgres.ErrUnavailable
	svc := NewService(primary, memory.NewJobFixtures(), Options{FallbackEnabled: true})

	calls := 0
	title := "Changed"
	res, err := svc.Update(context.Background(), actorctx.Actor{UserID: "client1"}, "1", func() (job.UpdateRequest, error) {
		calls++
		return job.UpdateRequest{Title: &title}, nil
	})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "Changed", res.Data.Title)
	assert.Equal(t, 1, calls)

	_, err = svc.Update(context.Background(), actorctx.Actor{UserID: "client2"}, "1", func() (job.UpdateRequest, error) {
		return job.UpdateRequest{}, nil
	})
	assert.ErrorIs(t, err, job.ErrForbidden)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, memory.NewJobFixtures(), Options{FallbackEnabled: true})

	created, err := svc.Create(ctx, owner, publishedReq("Job A", 150, 300))
	require.NoError(t, err)

	_, err = svc.Delete(ctx, actorctx.Actor{UserID: "someone"}, created.Data.ID)
	assert.ErrorIs(t, err, job.ErrForbidden)

	_, err = svc.Delete(ctx, owner, created.Data.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, created.Data.ID)
	assert.ErrorIs(t, err, job.ErrNotFound)
}

func TestCreate_DefaultsAndDegradedSyntheticID(t *testing.T) {
	primary := newMemStore()
	primary.err = postgres.ErrUnavailable
	svc := NewService(primary, memory.NewJobFixtures(), Options{FallbackEnabled: true})

	req := publishedReq("x", 1, 2)
	req.Status = ""
	res, err := svc.Create(context.Background(), owner, req)
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, job.StatusDraft, res.Data.Status)
	assert.Equal(t, job.VisibilityPublic, res.Data.Visibility)
	assert.Contains(t, res.Data.ID, "fixture-")
}
