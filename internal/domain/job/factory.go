package job

import (
	"time"

	"github.com/google/uuid"
)

func NewFromCreateRequest(req CreateRequest, clientID string, now time.Time) (Job, error) {
	if err := CheckBudget(req.BudgetMin, req.BudgetMax); err != nil {
		return Job{}, err
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = VisibilityPublic
	}

	status := req.Status
	if status == "" {
		status = StatusDraft
	}

	var scope Scope
	if req.Scope != nil {
		scope = *req.Scope
	}

	skills := req.Skills
	if skills == nil {
		skills = []string{}
	}

	attachments := req.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}

	return Job{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		OrgID:        req.OrgID,
		BrandGuideID: req.BrandGuideID,
		Title:        req.Title,
		Description:  req.Description,
		Scope:        scope,
		Skills:       skills,
		BudgetType:   req.BudgetType,
		BudgetMin:    req.BudgetMin,
		BudgetMax:    req.BudgetMax,
		Visibility:   visibility,
		Status:       status,
		Attachments:  attachments,
		Client:       ClientRef{ID: clientID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
