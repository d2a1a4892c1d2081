package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/urwriter/marketplace/internal/actorctx"
	"github.com/urwriter/marketplace/internal/domain/job"
	"github.com/urwriter/marketplace/internal/domain/proposal"
	"github.com/urwriter/marketplace/internal/domain/user"
	"github.com/urwriter/marketplace/internal/http/handlers"
)

type fakeProposalsService struct {
	err      error
	lastReq  proposal.CreateRequest
	lastStat proposal.Status
	items    []proposal.Proposal
}

func (f *fakeProposalsService) Submit(_ context.Context, actor actorctx.Actor, jobID string, req proposal.CreateRequest) (proposal.Proposal, error) {
	f.lastReq = req
	if f.err != nil {
		return proposal.Proposal{}, f.err
	}
	return proposal.Proposal{ID: "p1", JobID: jobID, FreelancerID: actor.UserID, Status: proposal.StatusSubmitted}, nil
}

func (f *fakeProposalsService) ListForJob(context.Context, actorctx.Actor, string) ([]proposal.Proposal, error) {
	return f.items, f.err
}

func (f *fakeProposalsService) ListMine(context.Context, actorctx.Actor) ([]proposal.Proposal, error) {
	return f.items, f.err
}

func (f *fakeProposalsService) UpdateStatus(_ context.Context, _ actorctx.Actor, id string, status proposal.Status) (proposal.Proposal, error) {
	f.lastStat = status
	if f.err != nil {
		return proposal.Proposal{}, f.err
	}
	return proposal.Proposal{ID: id, Status: status}, nil
}

func newProposalsRouter(svc handlers.ProposalsService) *gin.Engine {
	h := handlers.NewProposalsHandler(svc)

	r := gin.New()
	r.Use(as("writer1", user.RoleProvider))
	r.POST("/jobs/:id/proposals", h.Submit)
	r.GET("/jobs/:id/proposals", h.ListForJob)
	r.GET("/me/proposals", h.ListMine)
	r.PATCH("/proposals/:id/status", h.UpdateStatus)
	return r
}

func TestSubmitProposal(t *testing.T) {
	valid := `{"cover":"I write about databases","bidType":"fixed","bidAmount":400}`

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "created", body: valid, wantCode: http.StatusCreated},
		{name: "missing_cover", body: `{"bidType":"fixed"}`, wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{name: "bad_bid_type", body: `{"cover":"x","bidType":"barter"}`, wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{name: "job_missing", body: valid, err: job.ErrNotFound, wantCode: http.StatusNotFound, wantErr: "not_found"},
		{name: "duplicate", body: valid, err: proposal.ErrAlreadySubmitted, wantCode: http.StatusConflict, wantErr: "already_submitted"},
		{name: "job_not_open", body: valid, err: proposal.ErrJobNotOpen, wantCode: http.StatusConflict, wantErr: "job_not_open"},
		{name: "own_job", body: valid, err: proposal.ErrOwnJob, wantCode: http.StatusForbidden, wantErr: "own_job"},
		{name: "not_provider", body: valid, err: proposal.ErrForbidden, wantCode: http.StatusForbidden, wantErr: "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeProposalsService{err: tt.err}
			w := do(t, newProposalsRouter(svc), http.MethodPost, "/jobs/j1/proposals", tt.body)

			if w.Code != tt.wantCode {
				t.Fatalf("got %d, want %d body=%s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantErr != "" {
				if got := decode[errorResponse](t, w).Error.Code; got != tt.wantErr {
					t.Fatalf("got %q, want %q", got, tt.wantErr)
				}
				return
			}
			p := decode[proposal.Proposal](t, w)
			if p.JobID != "j1" || p.FreelancerID != "writer1" {
				t.Fatalf("unexpected proposal %+v", p)
			}
		})
	}
}

func TestListProposals(t *testing.T) {
	svc := &fakeProposalsService{items: []proposal.Proposal{{ID: "p1"}, {ID: "p2"}}}
	r := newProposalsRouter(svc)

	for _, path := range []string{"/jobs/j1/proposals", "/me/proposals"} {
		w := do(t, r, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s got %d", path, w.Code)
		}
		body := decode[struct {
			Items []proposal.Proposal `json:"items"`
			Count int                 `json:"count"`
		}](t, w)
		if body.Count != 2 || len(body.Items) != 2 {
			t.Fatalf("%s unexpected body %+v", path, body)
		}
	}

	svc.err = job.ErrForbidden
	if w := do(t, r, http.MethodGet, "/jobs/j1/proposals", ""); w.Code != http.StatusForbidden {
		t.Fatalf("non-owner got %d", w.Code)
	}
}

func TestUpdateProposalStatus(t *testing.T) {
	svc := &fakeProposalsService{}
	r := newProposalsRouter(svc)

	w := do(t, r, http.MethodPatch, "/proposals/p1/status", `{"status":"withdrawn"}`)
	if w.Code != http.StatusOK || svc.lastStat != proposal.StatusWithdrawn {
		t.Fatalf("got %d status=%s", w.Code, svc.lastStat)
	}

	// submitted is the initial status and cannot be set
	w = do(t, r, http.MethodPatch, "/proposals/p1/status", `{"status":"submitted"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d", w.Code)
	}

	svc.err = proposal.ErrForbidden
	w = do(t, r, http.MethodPatch, "/proposals/p1/status", `{"status":"accepted"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("got %d", w.Code)
	}

	svc.err = proposal.ErrNotFound
	w = do(t, r, http.MethodPatch, "/proposals/p1/status", `{"status":"viewed"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d", w.Code)
	}
}
