package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/urwriter/marketplace/internal/actorctx"
	"github.com/urwriter/marketplace/internal/domain/job"
	"github.com/urwriter/marketplace/internal/observability"
	"github.com/urwriter/marketplace/internal/repo/postgres"
)

// Store is implemented by the postgres repo and by the fixture set.
type Store interface {
	List(ctx context.Context, f job.ListFilter) (job.Page, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	Create(ctx context.Context, j job.Job) (job.Job, error)
	Update(ctx context.Context, j job.Job) (job.Job, error)
	Delete(ctx context.Context, id string) error
}

type Options struct {
	// FallbackEnabled serves fixture data when the primary store is
	// unavailable. When false the outage error is returned.
	FallbackEnabled bool
	Logger          *slog.Logger
	Prom            *observability.Prom
}

type Service struct {
	primary  Store
	fallback Store
	opts     Options
	now      func() time.Time
}

func NewService(primary, fallback Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		primary:  primary,
		fallback: fallback,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// do runs fn against the primary store and, when that store is unavailable,
// against the fallback. Only ErrUnavailable triggers the fallback; domain
// errors such as NotFound are returned as they are.
func do[T any](ctx context.Context, s *Service, op string, fn func(Store) (T, error)) (Result[T], error) {
	v, err := fn(s.primary)
	if err == nil {
		return ok(v), nil
	}

	if !errors.Is(err, postgres.ErrUnavailable) || !s.opts.FallbackEnabled || s.fallback == nil {
		return Result[T]{}, err
	}

	s.opts.Logger.WarnContext(ctx, "jobs.degraded",
		slog.String("op", op),
		slog.String("cause", err.Error()),
		slog.String("request_id", actorctx.RequestIDFrom(ctx)),
	)
	s.opts.Prom.IncDegraded(op)

	v, ferr := fn(s.fallback)
	if ferr != nil {
		return Result[T]{Degraded: true, Cause: err}, ferr
	}
	return degraded(v, err), nil
}

func (s *Service) List(ctx context.Context, f job.ListFilter) (Result[job.Page], error) {
	f = f.Normalize()
	return do(ctx, s, "jobs.list", func(st Store) (job.Page, error) {
		return st.List(ctx, f)
	})
}

func (s *Service) Get(ctx context.Context, id string) (Result[job.Job], error) {
	return do(ctx, s, "jobs.get", func(st Store) (job.Job, error) {
		return st.GetByID(ctx, id)
	})
}

// Create stores a job owned by the actor. Status defaults to draft and
// visibility to public.
func (s *Service) Create(ctx context.Context, actor actorctx.Actor, req job.CreateRequest) (Result[job.Job], error) {
	j, err := job.NewFromCreateRequest(req, actor.UserID, s.now())
	if err != nil {
		return Result[job.Job]{}, err
	}
	j.Client.Email = actor.Email

	return do(ctx, s, "jobs.create", func(st Store) (job.Job, error) {
		return st.Create(ctx, j)
	})
}

// Patch yields the decoded update body. It is only called after ownership
// has been established, so a non-owner is rejected whatever the body holds.
type Patch func() (job.UpdateRequest, error)

func (s *Service) Update(ctx context.Context, actor actorctx.Actor, id string, patch Patch) (Result[job.Job], error) {
	// the fallback path reuses a body the primary path already consumed
	decode := sync.OnceValues(patch)

	return do(ctx, s, "jobs.update", func(st Store) (job.Job, error) {
		current, err := loadOwned(ctx, st, actor, id)
		if err != nil {
			return job.Job{}, err
		}

		req, err := decode()
		if err != nil {
			return job.Job{}, err
		}

		merged, err := current.Apply(req, s.now())
		if err != nil {
			return job.Job{}, err
		}
		return st.Update(ctx, merged)
	})
}

func (s *Service) Delete(ctx context.Context, actor actorctx.Actor, id string) (Result[struct{}], error) {
	return do(ctx, s, "jobs.delete", func(st Store) (struct{}, error) {
		if _, err := loadOwned(ctx, st, actor, id); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, st.Delete(ctx, id)
	})
}

func loadOwned(ctx context.Context, st Store, actor actorctx.Actor, id string) (job.Job, error) {
	j, err := st.GetByID(ctx, id)
	if err != nil {
		return job.Job{}, err
	}
	if !j.OwnedBy(actor.UserID) {
		return job.Job{}, job.ErrForbidden
	}
	return j, nil
}
