// Package ledger records committed sales as append-only entries, each
// carrying its payout distribution frozen at creation time.
package ledger

import (
	"errors"
	"time"

	"paradise.network/internal/commission"
)

// Status is the lifecycle of a ledger entry. Completed, Cancelled and
// Disputed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusDisputed  Status = "disputed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusDisputed
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled, StatusDisputed:
		return true
	}
	return false
}

// Entry is one committed sale. Payout is a snapshot: later rule changes
// never touch it.
type Entry struct {
	ID             string                  `json:"id"`
	SellerID       string                  `json:"seller_id"`
	Gross          int64                   `json:"gross"` // minor units
	Industry       string                  `json:"industry"`
	Project        string                  `json:"project,omitempty"`
	Payout         commission.Distribution `json:"payout"`
	Status         Status                  `json:"status"`
	IdempotencyKey string                  `json:"idempotency_key,omitempty"`
	Sequence       uint64                  `json:"sequence"`
	CreatedAt      time.Time               `json:"created_at"`
}

var (
	ErrNotFound      = errors.New("ledger entry not found")
	ErrFinalStatus   = errors.New("ledger entry status is final")
	ErrInvalidStatus = errors.New("invalid ledger status")
)
