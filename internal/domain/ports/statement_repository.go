package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/domain"
)

// StatementFilter narrows statement listings; zero values match everything
type StatementFilter struct {
	Status        domain.StatementStatus
	PaymentStatus domain.PaymentStatus
	MissingPeriod bool
}

// StatementRepository defines the interface for statement persistence
type StatementRepository interface {
	// Create persists a new statement with its raw metadata
	Create(ctx context.Context, tx DBTX, statement *domain.Statement) error

	// GetByID retrieves a statement by its ID
	// Returns domain.ErrStatementNotFound when absent
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Statement, error)

	// GetForUpdate retrieves a statement and locks it for the rest of the transaction
	GetForUpdate(ctx context.Context, tx DBTX, id string) (*domain.Statement, error)

	// Update overwrites status, period, totals and metadata
	Update(ctx context.Context, tx DBTX, statement *domain.Statement) error

	// List retrieves statements matching the filter, oldest first
	List(ctx context.Context, db DBTX, filter StatementFilter) ([]*domain.Statement, error)
}
