package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserRole drives the commission tier applied to a payee
type UserRole string

const (
	UserRoleWriter    UserRole = "WRITER"
	UserRoleProducer  UserRole = "PRODUCER"
	UserRolePublisher UserRole = "PUBLISHER"
	UserRolePartner   UserRole = "PARTNER"
)

// User is a payee. The three balance fields are a cached projection over
// statement items and payout requests and can always be recomputed from them.
type User struct {
	UpdatedAt          time.Time        `json:"updated_at"`
	WriterIPINumber    *string          `json:"writer_ipi_number"`
	PublisherIPINumber *string          `json:"publisher_ipi_number"`
	PROAffiliation     *string          `json:"pro_affiliation"`
	CommissionOverride *decimal.Decimal `json:"commission_override"`
	AvailableBalance   decimal.Decimal  `json:"available_balance"`
	PendingBalance     decimal.Decimal  `json:"pending_balance"`
	LifetimeEarnings   decimal.Decimal  `json:"lifetime_earnings"`
	ID                 string           `json:"id"`
	FullName           string           `json:"full_name"`
	Email              string           `json:"email"`
	Role               UserRole         `json:"role"`
}

// Balances is the money projection stored on a user
type Balances struct {
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	Lifetime  decimal.Decimal `json:"lifetime"`
}

// Balances returns the stored balance fields
func (u *User) Balances() Balances {
	return Balances{
		Available: u.AvailableBalance,
		Pending:   u.PendingBalance,
		Lifetime:  u.LifetimeEarnings,
	}
}

// SetBalances overwrites the stored balance fields
func (u *User) SetBalances(b Balances) {
	u.AvailableBalance = b.Available
	u.PendingBalance = b.Pending
	u.LifetimeEarnings = b.Lifetime
}

// Equal compares balances exactly
func (b Balances) Equal(o Balances) bool {
	return b.Available.Equal(o.Available) && b.Pending.Equal(o.Pending) && b.Lifetime.Equal(o.Lifetime)
}

// Add returns the field-wise sum of two balance deltas
func (b Balances) Add(o Balances) Balances {
	return Balances{
		Available: b.Available.Add(o.Available),
		Pending:   b.Pending.Add(o.Pending),
		Lifetime:  b.Lifetime.Add(o.Lifetime),
	}
}

// HasNegative reports whether any field dropped below zero
func (b Balances) HasNegative() bool {
	return b.Available.IsNegative() || b.Pending.IsNegative() || b.Lifetime.IsNegative()
}

// GetWriterIPI safely retrieves the writer IPI
func (u *User) GetWriterIPI() string {
	if u.WriterIPINumber != nil {
		return *u.WriterIPINumber
	}
	return ""
}

// GetPublisherIPI safely retrieves the publisher IPI
func (u *User) GetPublisherIPI() string {
	if u.PublisherIPINumber != nil {
		return *u.PublisherIPINumber
	}
	return ""
}
