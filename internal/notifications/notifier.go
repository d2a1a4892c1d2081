package notifications

import "context"

// ProposalSubmittedInput is sent to the client who owns the job.
type ProposalSubmittedInput struct {
	RecipientID  string
	ProposalID   string
	JobID        string
	FreelancerID string
}

// ProposalStatusChangedInput is sent to the other side of a proposal.
type ProposalStatusChangedInput struct {
	RecipientID string
	ProposalID  string
	JobID       string
	ActorID     string
	Status      string
}

type Notifier interface {
	ProposalSubmitted(ctx context.Context, in ProposalSubmittedInput) error
	ProposalStatusChanged(ctx context.Context, in ProposalStatusChangedInput) error
}
