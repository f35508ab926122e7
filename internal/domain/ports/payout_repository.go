package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/domain"
)

// PayoutRepository defines the interface for payout request persistence
type PayoutRepository interface {
	// Create persists a new payout request
	Create(ctx context.Context, tx DBTX, payout *domain.PayoutRequest) error

	// GetByID retrieves a payout request
	// Returns domain.ErrPayoutNotFound when absent
	GetByID(ctx context.Context, db DBTX, id string) (*domain.PayoutRequest, error)

	// GetForUpdate retrieves a payout request and locks it for the rest of the transaction
	GetForUpdate(ctx context.Context, tx DBTX, id string) (*domain.PayoutRequest, error)

	// Update overwrites status, transfer id and timestamps
	Update(ctx context.Context, tx DBTX, payout *domain.PayoutRequest) error

	// ListByUser retrieves every payout request of a user, oldest first
	ListByUser(ctx context.Context, db DBTX, userID string) ([]*domain.PayoutRequest, error)

	// ListByStatus retrieves payout requests in the given status, oldest first
	ListByStatus(ctx context.Context, db DBTX, status domain.PayoutStatus) ([]*domain.PayoutRequest, error)
}
