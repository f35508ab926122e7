package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/domain"
)

// UserRepository exposes payees. Identity fields are read-only here;
// only the cached balance projection is written.
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, db DBTX, id string) (*domain.User, error)

	// GetForUpdate retrieves a user and locks the row for the rest of the transaction
	GetForUpdate(ctx context.Context, tx DBTX, id string) (*domain.User, error)

	// List returns every user in a stable order (creation time, then ID)
	List(ctx context.Context, db DBTX) ([]*domain.User, error)

	// UpdateBalances overwrites the three balance fields together
	UpdateBalances(ctx context.Context, tx DBTX, id string, balances domain.Balances) error
}
