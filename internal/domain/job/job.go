package job

import (
	"errors"
	"time"
)

type Status string

const (
	StatusDraft        Status = "draft"
	StatusPublished    Status = "published"
	StatusShortlisting Status = "shortlisting"
	StatusHired        Status = "hired"
	StatusClosed       Status = "closed"
	StatusCanceled     Status = "canceled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusShortlisting, StatusHired, StatusClosed, StatusCanceled:
		return true
	default:
		return false
	}
}

type BudgetType string

const (
	BudgetFixed  BudgetType = "fixed"
	BudgetHourly BudgetType = "hourly"
)

type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityInvite Visibility = "invite"
)

var (
	ErrNotFound      = errors.New("job not found")
	ErrForbidden     = errors.New("job belongs to another client")
	ErrInvalidBudget = errors.New("budgetMin must not exceed budgetMax")
)

// Scope describes what the client expects to receive.
type Scope struct {
	Deliverables []string `json:"deliverables,omitempty" binding:"omitempty,max=20,dive,min=1,max=300"`
	Length       string   `json:"length,omitempty" binding:"max=200"`
	CTA          string   `json:"cta,omitempty" binding:"max=300"`
	Timeline     string   `json:"timeline,omitempty" binding:"max=200"`
	Requirements []string `json:"requirements,omitempty" binding:"omitempty,max=20,dive,min=1,max=300"`
	Examples     string   `json:"examples,omitempty" binding:"max=2000"`
}

type Attachment struct {
	Name string `json:"name" binding:"required,max=200"`
	URL  string `json:"url" binding:"required,url,max=2048"`
}

type ClientRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Job struct {
	ID            string       `json:"id"`
	ClientID      string       `json:"clientId"`
	OrgID         *string      `json:"orgId,omitempty"`
	BrandGuideID  *string      `json:"brandGuideId,omitempty"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Scope         Scope        `json:"scope"`
	Skills        []string     `json:"skills"`
	BudgetType    BudgetType   `json:"budgetType"`
	BudgetMin     *float64     `json:"budgetMin,omitempty"`
	BudgetMax     *float64     `json:"budgetMax,omitempty"`
	Visibility    Visibility   `json:"visibility"`
	Status        Status       `json:"status"`
	Attachments   []Attachment `json:"attachments"`
	Client        ClientRef    `json:"client"`
	ProposalCount int          `json:"proposalCount"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

type CreateRequest struct {
	Title        string       `json:"title" binding:"required,min=1,max=200"`
	Description  string       `json:"description" binding:"required,min=1,max=20000"`
	Scope        *Scope       `json:"scope" binding:"required"`
	Skills       []string     `json:"skills" binding:"max=30,dive,min=1,max=60"`
	BudgetType   BudgetType   `json:"budgetType" binding:"required,oneof=fixed hourly"`
	BudgetMin    *float64     `json:"budgetMin" binding:"omitempty,gte=1"`
	BudgetMax    *float64     `json:"budgetMax" binding:"omitempty,gte=1"`
	Visibility   Visibility   `json:"visibility" binding:"omitempty,oneof=public invite"`
	Status       Status       `json:"status" binding:"omitempty,oneof=draft published shortlisting hired closed canceled"`
	Attachments  []Attachment `json:"attachments" binding:"omitempty,max=20,dive"`
	OrgID        *string      `json:"orgId" binding:"omitempty,uuid"`
	BrandGuideID *string      `json:"brandGuideId" binding:"omitempty,uuid"`
}

// UpdateRequest is a partial update: nil fields are left untouched.
type UpdateRequest struct {
	Title       *string      `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string      `json:"description" binding:"omitempty,min=1,max=20000"`
	Scope       *Scope       `json:"scope"`
	Skills      []string     `json:"skills" binding:"omitempty,max=30,dive,min=1,max=60"`
	BudgetType  *BudgetType  `json:"budgetType" binding:"omitempty,oneof=fixed hourly"`
	BudgetMin   *float64     `json:"budgetMin" binding:"omitempty,gte=1"`
	BudgetMax   *float64     `json:"budgetMax" binding:"omitempty,gte=1"`
	Visibility  *Visibility  `json:"visibility" binding:"omitempty,oneof=public invite"`
	Status      *Status      `json:"status" binding:"omitempty,oneof=draft published shortlisting hired closed canceled"`
	Attachments []Attachment `json:"attachments" binding:"omitempty,max=20,dive"`
}

// CheckBudget enforces budgetMin <= budgetMax when both are set.
func CheckBudget(min, max *float64) error {
	if min != nil && max != nil && *min > *max {
		return ErrInvalidBudget
	}
	return nil
}

func (j Job) OwnedBy(clientID string) bool {
	return clientID != "" && j.ClientID == clientID
}

// Apply returns a copy of j with the non-nil fields of req written over it.
// Any valid status may be written; transitions are not checked here.
func (j Job) Apply(req UpdateRequest, now time.Time) (Job, error) {
	out := j

	if req.Title != nil {
		out.Title = *req.Title
	}
	if req.Description != nil {
		out.Description = *req.Description
	}
	if req.Scope != nil {
		out.Scope = *req.Scope
	}
	if req.Skills != nil {
		out.Skills = append([]string(nil), req.Skills...)
	}
	if req.BudgetType != nil {
		out.BudgetType = *req.BudgetType
	}
	if req.BudgetMin != nil {
		v := *req.BudgetMin
		out.BudgetMin = &v
	}
	if req.BudgetMax != nil {
		v := *req.BudgetMax
		out.BudgetMax = &v
	}
	if req.Visibility != nil {
		out.Visibility = *req.Visibility
	}
	if req.Status != nil {
		out.Status = *req.Status
	}
	if req.Attachments != nil {
		out.Attachments = append([]Attachment(nil), req.Attachments...)
	}

	if err := CheckBudget(out.BudgetMin, out.BudgetMax); err != nil {
		return Job{}, err
	}

	out.UpdatedAt = now
	return out, nil
}
