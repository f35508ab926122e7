package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/domain"
)

// CreditRepository defines the interface for placement credit persistence
type CreditRepository interface {
	// Create persists a new credit
	Create(ctx context.Context, tx DBTX, credit *domain.PlacementCredit) error

	// GetByID retrieves a credit
	GetByID(ctx context.Context, db DBTX, id string) (*domain.PlacementCredit, error)

	// List retrieves credits; unresolvedOnly skips linked and external credits
	List(ctx context.Context, db DBTX, unresolvedOnly bool) ([]*domain.PlacementCredit, error)

	// Update overwrites the link fields of a credit
	Update(ctx context.Context, tx DBTX, credit *domain.PlacementCredit) error
}
