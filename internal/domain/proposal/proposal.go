package proposal

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/urwriter/marketplace/internal/domain/job"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusViewed    Status = "viewed"
	StatusInterview Status = "interview"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusWithdrawn Status = "withdrawn"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusViewed, StatusInterview, StatusAccepted, StatusDeclined, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// SettableByClient lists the statuses the job owner may move a proposal to.
func (s Status) SettableByClient() bool {
	switch s {
	case StatusViewed, StatusInterview, StatusAccepted, StatusDeclined:
		return true
	default:
		return false
	}
}

// SettableByFreelancer lists the statuses the proposal author may move it to.
func (s Status) SettableByFreelancer() bool {
	return s == StatusWithdrawn
}

var (
	ErrNotFound         = errors.New("proposal not found")
	ErrAlreadySubmitted = errors.New("proposal already submitted for this job")
	ErrJobNotOpen       = errors.New("job is not accepting proposals")
	ErrOwnJob           = errors.New("cannot bid on own job")
	ErrForbidden        = errors.New("not allowed to change this proposal")
)

type MilestoneDraft struct {
	Title   string     `json:"title" binding:"required,min=1,max=200"`
	Amount  float64    `json:"amount" binding:"required,gt=0"`
	DueDate *time.Time `json:"dueDate,omitempty"`
}

type Proposal struct {
	ID           string           `json:"id"`
	JobID        string           `json:"jobId"`
	FreelancerID string           `json:"freelancerId"`
	Cover        string           `json:"cover"`
	BidType      job.BudgetType   `json:"bidType"`
	BidAmount    *float64         `json:"bidAmount,omitempty"`
	Milestones   []MilestoneDraft `json:"milestones"`
	Status       Status           `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type CreateRequest struct {
	Cover      string           `json:"cover" binding:"required,min=1,max=10000"`
	BidType    job.BudgetType   `json:"bidType" binding:"required,oneof=fixed hourly"`
	BidAmount  *float64         `json:"bidAmount" binding:"omitempty,gt=0"`
	Milestones []MilestoneDraft `json:"milestones" binding:"omitempty,max=20,dive"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status" binding:"required,oneof=viewed interview accepted declined withdrawn"`
}

func New(jobID, freelancerID string, req CreateRequest, now time.Time) Proposal {
	milestones := req.Milestones
	if milestones == nil {
		milestones = []MilestoneDraft{}
	}

	return Proposal{
		ID:           uuid.NewString(),
		JobID:        jobID,
		FreelancerID: freelancerID,
		Cover:        req.Cover,
		BidType:      req.BidType,
		BidAmount:    req.BidAmount,
		Milestones:   milestones,
		Status:       StatusSubmitted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
