package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/urwriter/marketplace/internal/domain/task"
)

// EncodePayload checks payload matches t, validates it and marshals it.
func EncodePayload(t Type, payload any) (json.RawMessage, error) {
	if err := ValidatePayload(t, payload); err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return b, nil
}

// NewCreateRequest builds a queue insert for a typed payload.
func NewCreateRequest(t Type, payload any) (task.CreateRequest, error) {
	raw, err := EncodePayload(t, payload)
	if err != nil {
		return task.CreateRequest{}, err
	}

	return task.CreateRequest{Type: string(t), Payload: raw}, nil
}

// DecodePayload unmarshals the task payload into its typed struct.
func DecodePayload(tk task.Task) (any, error) {
	t := Type(tk.Type)
	if !t.IsValid() {
		return nil, ErrInvalidType
	}
	if len(tk.Payload) == 0 {
		return nil, ErrInvalidPayload
	}

	switch t {
	case ProposalSubmitted:
		var p ProposalSubmittedPayload
		if err := json.Unmarshal(tk.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return p, ValidatePayload(t, p)

	case ProposalStatusChanged:
		var p ProposalStatusChangedPayload
		if err := json.Unmarshal(tk.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return p, ValidatePayload(t, p)

	default:
		return nil, ErrInvalidType
	}
}
