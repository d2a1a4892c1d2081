package user

import (
	"errors"
	"time"
)

// RoleMask is a bit set of marketplace capabilities. A user may hold several.
type RoleMask int

const (
	RoleClient   RoleMask = 1
	RoleProvider RoleMask = 2
	RoleAdmin    RoleMask = 4

	roleAll = RoleClient | RoleProvider | RoleAdmin
)

func (m RoleMask) Has(r RoleMask) bool {
	return r != 0 && m&r == r
}

func (m RoleMask) IsValid() bool {
	return m > 0 && m&^roleAll == 0
}

func (m RoleMask) Names() []string {
	out := make([]string, 0, 3)
	if m.Has(RoleClient) {
		out = append(out, "client")
	}
	if m.Has(RoleProvider) {
		out = append(out, "provider")
	}
	if m.Has(RoleAdmin) {
		out = append(out, "admin")
	}
	return out
}

type Status string

const (
	StatusActive     Status = "active"
	StatusSuspended  Status = "suspended"
	StatusPendingKYC Status = "pending_kyc"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusPendingKYC:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	RoleFlags    RoleMask  `json:"roleFlags"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Profile struct {
	UserID      string    `json:"-"`
	DisplayName string    `json:"displayName"`
	Headline    *string   `json:"headline,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	HourlyRate  *float64  `json:"hourlyRate,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Languages   []string  `json:"languages"`
	Skills      []string  `json:"skills"`
	Industries  []string  `json:"industries"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Me is the caller's own view of their account.
type Me struct {
	User
	Profile *Profile `json:"profile"`
}

type ProfileInput struct {
	DisplayName string   `json:"displayName" binding:"required,min=1,max=120"`
	Headline    *string  `json:"headline" binding:"omitempty,max=200"`
	Bio         *string  `json:"bio" binding:"omitempty,max=5000"`
	HourlyRate  *float64 `json:"hourlyRate" binding:"omitempty,gt=0"`
	Location    *string  `json:"location" binding:"omitempty,max=120"`
	Languages   []string `json:"languages" binding:"omitempty,max=20,dive,min=1,max=60"`
	Skills      []string `json:"skills" binding:"omitempty,max=50,dive,min=1,max=60"`
	Industries  []string `json:"industries" binding:"omitempty,max=20,dive,min=1,max=60"`
}

// UpdateMeRequest is the only shape PUT /me accepts. Role flags and status are
// not part of it.
type UpdateMeRequest struct {
	Profile ProfileInput `json:"profile" binding:"required"`
}

func (in ProfileInput) ToProfile(userID string, now time.Time) Profile {
	return Profile{
		UserID:      userID,
		DisplayName: in.DisplayName,
		Headline:    in.Headline,
		Bio:         in.Bio,
		HourlyRate:  in.HourlyRate,
		Location:    in.Location,
		Languages:   nonNil(in.Languages),
		Skills:      nonNil(in.Skills),
		Industries:  nonNil(in.Industries),
		UpdatedAt:   now,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
