package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MatchMethod records how an item or credit was linked to a user
type MatchMethod string

const (
	MatchMethodWriterIPI    MatchMethod = "writer_ipi"
	MatchMethodPublisherIPI MatchMethod = "publisher_ipi"
	MatchMethodName         MatchMethod = "name"
	MatchMethodManual       MatchMethod = "manual"
	MatchMethodNone         MatchMethod = "none"
)

// StatementItem is one aggregated payee x work line of a statement
type StatementItem struct {
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	UserID            *string         `json:"user_id"`
	Revenue           decimal.Decimal `json:"revenue"`
	NetRevenue        decimal.Decimal `json:"net_revenue"`
	CommissionRate    decimal.Decimal `json:"commission_rate"`
	CommissionAmount  decimal.Decimal `json:"commission_amount"`
	SplitPercentage   decimal.Decimal `json:"split_percentage"`
	Metadata          ItemMetadata    `json:"metadata"`
	ID                string          `json:"id"`
	StatementID       string          `json:"statement_id"`
	WorkTitle         string          `json:"work_title"`
	IsVisibleToWriter bool            `json:"is_visible_to_writer"`
}

// ItemMetadata carries the keys used to recognise an item across reprocessing
type ItemMetadata struct {
	IdentityKeys    []string        `json:"identity_keys"`
	SourceRows      []int           `json:"source_rows"`
	Claims          []Claim         `json:"claims"`
	Candidates      []string        `json:"candidates,omitempty"`
	MatchConfidence decimal.Decimal `json:"match_confidence"`
	MatchMethod     MatchMethod     `json:"match_method"`
	MatchReason     string          `json:"match_reason,omitempty"`
	Performances    int64           `json:"performances"`
}

// IsAssigned reports whether the item is linked to a payee
func (i *StatementItem) IsAssigned() bool {
	return i.UserID != nil && *i.UserID != ""
}

// GetUserID safely retrieves the user ID
func (i *StatementItem) GetUserID() string {
	if i.UserID != nil {
		return *i.UserID
	}
	return ""
}

// GroupKey is the aggregation key: payee (or unassigned) plus normalized title
func (i *StatementItem) GroupKey() string {
	return GroupKey(i.UserID, i.WorkTitle)
}

// Gross returns revenue * split/100, which net + commission must add up to
func (i *StatementItem) Gross() decimal.Decimal {
	return RoundMoney(SplitShare(i.Revenue, i.SplitPercentage))
}

// Conserves reports whether net + commission equals the payee share within tolerance
func (i *StatementItem) Conserves(tolerance decimal.Decimal) bool {
	return WithinTolerance(i.NetRevenue.Add(i.CommissionAmount), i.Gross(), tolerance)
}

// ApplyCommission recomputes net and commission from revenue, split and rate
func (i *StatementItem) ApplyCommission(rate decimal.Decimal) {
	i.CommissionRate = rate
	i.NetRevenue, i.CommissionAmount = NetOfCommission(i.Revenue, i.SplitPercentage, rate)
}

// SameContent compares the money and assignment fields that aggregation produces
func (i *StatementItem) SameContent(o *StatementItem) bool {
	return i.GetUserID() == o.GetUserID() &&
		NormalizeTitle(i.WorkTitle) == NormalizeTitle(o.WorkTitle) &&
		i.Revenue.Equal(o.Revenue) &&
		i.NetRevenue.Equal(o.NetRevenue) &&
		i.CommissionRate.Equal(o.CommissionRate) &&
		i.CommissionAmount.Equal(o.CommissionAmount) &&
		i.SplitPercentage.Equal(o.SplitPercentage) &&
		i.IsVisibleToWriter == o.IsVisibleToWriter &&
		i.Metadata.MatchMethod == o.Metadata.MatchMethod &&
		equalStrings(i.Metadata.IdentityKeys, o.Metadata.IdentityKeys)
}

// GroupKey builds the aggregation key for a payee and title
func GroupKey(userID *string, title string) string {
	owner := "unassigned"
	if userID != nil && *userID != "" {
		owner = *userID
	}
	return owner + "|" + NormalizeTitle(title)
}

// SortedUnique returns the distinct values of keys in ascending order
func SortedUnique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
