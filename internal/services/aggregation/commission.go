package aggregation

import (
	"context"
	"fmt"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/shopspring/decimal"
)

// TierCommission resolves rates from a per-user override, then the payee's
// role, then a platform default. Unassigned items use the default.
type TierCommission struct {
	Default decimal.Decimal
	ByRole  map[domain.UserRole]decimal.Decimal
}

// NewTierCommission creates a resolver with the given default rate and role tiers
func NewTierCommission(defaultRate decimal.Decimal, byRole map[domain.UserRole]decimal.Decimal) (*TierCommission, error) {
	if err := validRate(defaultRate); err != nil {
		return nil, fmt.Errorf("default commission: %w", err)
	}
	for role, rate := range byRole {
		if err := validRate(rate); err != nil {
			return nil, fmt.Errorf("commission for %s: %w", role, err)
		}
	}
	return &TierCommission{Default: defaultRate, ByRole: byRole}, nil
}

// RateFor implements ports.CommissionResolver
func (c *TierCommission) RateFor(_ context.Context, user *domain.User) (decimal.Decimal, error) {
	if user == nil {
		return c.Default, nil
	}
	if user.CommissionOverride != nil {
		if err := validRate(*user.CommissionOverride); err != nil {
			return decimal.Zero, fmt.Errorf("user %s override: %w", user.ID, err)
		}
		return *user.CommissionOverride, nil
	}
	if rate, ok := c.ByRole[user.Role]; ok {
		return rate, nil
	}
	return c.Default, nil
}

func validRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return domain.ErrValidationAmountInvalid.WithDetail("commission_rate", rate.String())
	}
	return nil
}
