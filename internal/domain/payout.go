package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutStatus represents the payout request lifecycle
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusApproved   PayoutStatus = "APPROVED"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusCompleted  PayoutStatus = "COMPLETED"
	PayoutStatusCancelled  PayoutStatus = "CANCELLED"
	PayoutStatusFailed     PayoutStatus = "FAILED"
)

// HeldStatuses are the states whose amounts sit in a user's pending balance
var HeldStatuses = []PayoutStatus{PayoutStatusPending, PayoutStatusApproved, PayoutStatusProcessing}

// IsHeld returns true while the amount is reserved in the pending balance
func (s PayoutStatus) IsHeld() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusApproved, PayoutStatusProcessing:
		return true
	}
	return false
}

// IsTerminal returns true for states with no outgoing transitions
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusCancelled || s == PayoutStatusFailed
}

// CanTransitionTo reports whether the state machine allows s -> next.
// PENDING -> APPROVED -> PROCESSING -> COMPLETED; CANCELLED and FAILED from any non-terminal state.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case PayoutStatusCancelled, PayoutStatusFailed:
		return true
	case PayoutStatusApproved:
		return s == PayoutStatusPending
	case PayoutStatusProcessing:
		return s == PayoutStatusApproved
	case PayoutStatusCompleted:
		return s == PayoutStatusProcessing
	}
	return false
}

// PayoutRequest represents a payee's request to withdraw available funds
type PayoutRequest struct {
	RequestedAt   time.Time       `json:"requested_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ApprovedAt    *time.Time      `json:"approved_at"`
	ProcessedAt   *time.Time      `json:"processed_at"`
	CompletedAt   *time.Time      `json:"completed_at"`
	CancelledAt   *time.Time      `json:"cancelled_at"`
	TransferID    *string         `json:"transfer_id"`
	FailureReason *string         `json:"failure_reason"`
	Amount        decimal.Decimal `json:"amount"`
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Status        PayoutStatus    `json:"status"`
}

// HasTransfer reports whether an external transfer was already created
func (p *PayoutRequest) HasTransfer() bool {
	return p.TransferID != nil && *p.TransferID != ""
}

// BalanceDelta returns how the user's balances move when the request goes from
// its current status to next. Leaving the held set returns or consumes the amount.
func (p *PayoutRequest) BalanceDelta(next PayoutStatus) Balances {
	delta := Balances{Available: decimal.Zero, Pending: decimal.Zero, Lifetime: decimal.Zero}
	if !p.Status.IsHeld() || next.IsHeld() {
		return delta
	}
	delta.Pending = p.Amount.Neg()
	if next == PayoutStatusCancelled || next == PayoutStatusFailed {
		delta.Available = p.Amount
	}
	return delta
}
