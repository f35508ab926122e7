package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/shopspring/decimal"
)

// PayoutService defines the port for payout request lifecycle management
type PayoutService interface {
	// Request reserves amount from the user's available balance
	Request(ctx context.Context, userID string, amount decimal.Decimal) (*domain.PayoutRequest, error)

	// Approve moves a PENDING request to APPROVED
	Approve(ctx context.Context, id string) (*domain.PayoutRequest, error)

	// StartProcessing moves an APPROVED request to PROCESSING
	StartProcessing(ctx context.Context, id string, transferID *string) (*domain.PayoutRequest, error)

	// Complete settles a PROCESSING request
	Complete(ctx context.Context, id, transferID string) (*domain.PayoutRequest, error)

	// Cancel returns a held amount to the available balance
	Cancel(ctx context.Context, id, reason string) (*domain.PayoutRequest, error)

	// Fail records a failed transfer and returns the held amount
	Fail(ctx context.Context, id, reason string) (*domain.PayoutRequest, error)
}
