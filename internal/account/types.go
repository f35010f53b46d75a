package account

import (
	"errors"
	"time"
)

// Status gates login and eligibility to sponsor new members.
type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
	StatusPending Status = "pending"
)

// Account is one network participant. SponsorID is empty only for the root.
type Account struct {
	ID           string            `json:"id"`
	MobileNumber string            `json:"mobile_number"`
	Name         string            `json:"name"`
	SponsorID    string            `json:"sponsor_id,omitempty"`
	ReferralCode string            `json:"referral_code"`
	Children     []string          `json:"children"`
	Status       Status            `json:"status"`
	PasswordHash string            `json:"-"`
	CRMNotes     map[string]string `json:"crm_notes,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// IsRoot reports whether the account is the designated root of the forest.
func (a Account) IsRoot() bool { return a.SponsorID == "" }

var (
	ErrNotFound      = errors.New("account not found")
	ErrAlreadyExists = errors.New("account already exists")
)
