package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/domain"
)

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// Create persists a new invoice
	Create(ctx context.Context, tx DBTX, invoice *domain.Invoice) error

	// ExistsForPayout reports whether a payout already has its receipt
	ExistsForPayout(ctx context.Context, db DBTX, payoutID string) (bool, error)

	// ExistsForStatement reports whether a user already has a receipt for a paid statement
	ExistsForStatement(ctx context.Context, db DBTX, statementID, userID string) (bool, error)

	// ListByUser retrieves a user's invoices, newest first
	ListByUser(ctx context.Context, db DBTX, userID string) ([]*domain.Invoice, error)
}
