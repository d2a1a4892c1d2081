package tasks

import "time"

// ProposalSubmittedPayload tells the job owner a new bid arrived.
// Keep payloads ID-based; the worker loads details it needs.
type ProposalSubmittedPayload struct {
	ProposalID   string    `json:"proposalId"`
	JobID        string    `json:"jobId"`
	ClientID     string    `json:"clientId"`
	FreelancerID string    `json:"freelancerId"`
	SubmittedAt  time.Time `json:"submittedAt"`
	RequestID    string    `json:"requestId,omitempty"`
}

// ProposalStatusChangedPayload tells the other party a proposal moved.
type ProposalStatusChangedPayload struct {
	ProposalID  string    `json:"proposalId"`
	JobID       string    `json:"jobId"`
	RecipientID string    `json:"recipientId"`
	ActorID     string    `json:"actorId"`
	Status      string    `json:"status"`
	ChangedAt   time.Time `json:"changedAt"`
	RequestID   string    `json:"requestId,omitempty"`
}
