package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlacementCredit is a claimed contributor on a tracked work
type PlacementCredit struct {
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	IPINumber          *string         `json:"ipi_number"`
	PublisherIPINumber *string         `json:"publisher_ipi_number"`
	UserID             *string         `json:"user_id"`
	SplitPercentage    decimal.Decimal `json:"split_percentage"`
	ID                 string          `json:"id"`
	PlacementID        string          `json:"placement_id"`
	Name               string          `json:"name"`
	MatchMethod        MatchMethod     `json:"match_method"`
	IsExternalWriter   bool            `json:"is_external_writer"`
}

// IsLinked reports whether the credit already points at a user
func (c *PlacementCredit) IsLinked() bool {
	return c.UserID != nil && *c.UserID != ""
}

// IsResolved reports whether a linking pass has already decided this credit.
// Linked and external credits are both left alone unless a pass is forced.
func (c *PlacementCredit) IsResolved() bool {
	return c.IsLinked() || c.IsExternalWriter
}

// IsManual reports whether the link was set by an operator
func (c *PlacementCredit) IsManual() bool {
	return c.MatchMethod == MatchMethodManual
}

// Claim returns the identity the credit asserts
func (c *PlacementCredit) Claim() Claim {
	claim := Claim{Name: c.Name}
	if c.IPINumber != nil {
		claim.IPINumber = *c.IPINumber
	}
	if c.PublisherIPINumber != nil {
		claim.PublisherIPINumber = *c.PublisherIPINumber
	}
	return claim
}
