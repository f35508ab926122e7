package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/shopspring/decimal"
)

// CommissionResolver returns the platform commission rate for a payee at aggregation time
type CommissionResolver interface {
	RateFor(ctx context.Context, user *domain.User) (decimal.Decimal, error)
}
