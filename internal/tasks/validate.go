package tasks

import "strings"

// ValidatePayload performs minimal validation on typed payloads.
func ValidatePayload(t Type, payload any) error {
	if !t.IsValid() {
		return ErrInvalidType
	}

	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	switch t {
	case ProposalSubmitted:
		var p ProposalSubmittedPayload
		switch v := payload.(type) {
		case ProposalSubmittedPayload:
			p = v
		case *ProposalSubmittedPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if blank(p.ProposalID) || blank(p.JobID) || blank(p.ClientID) {
			return ErrInvalidPayload
		}
		return nil

	case ProposalStatusChanged:
		var p ProposalStatusChangedPayload
		switch v := payload.(type) {
		case ProposalStatusChangedPayload:
			p = v
		case *ProposalStatusChangedPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if blank(p.ProposalID) || blank(p.RecipientID) || blank(p.Status) {
			return ErrInvalidPayload
		}
		return nil

	default:
		return ErrInvalidType
	}
}
