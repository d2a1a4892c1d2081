package tasks

type Type string

const (
	ProposalSubmitted     Type = "proposal.submitted"
	ProposalStatusChanged Type = "proposal.status_changed"
)

// IsValid reports whether t is a known task type.
func (t Type) IsValid() bool {
	switch t {
	case ProposalSubmitted, ProposalStatusChanged:
		return true
	default:
		return false
	}
}
