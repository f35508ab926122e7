package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/shopspring/decimal"
)

// EarningRecord is one visible item counted toward a payee's lifetime earnings
type EarningRecord struct {
	NetRevenue  decimal.Decimal `json:"net_revenue"`
	ItemID      string          `json:"item_id"`
	StatementID string          `json:"statement_id"`
	WorkTitle   string          `json:"work_title"`
}

// StatementItemRepository defines the interface for statement item persistence
type StatementItemRepository interface {
	// Create persists a new statement item
	Create(ctx context.Context, tx DBTX, item *domain.StatementItem) error

	// Update overwrites an existing item
	Update(ctx context.Context, tx DBTX, item *domain.StatementItem) error

	// Delete removes an item
	Delete(ctx context.Context, tx DBTX, id string) error

	// ListByStatement retrieves every item of a statement, assigned or not
	ListByStatement(ctx context.Context, db DBTX, statementID string) ([]*domain.StatementItem, error)

	// ListEarnings retrieves the visible items of a user whose statement is PUBLISHED and PAID
	ListEarnings(ctx context.Context, db DBTX, userID string) ([]EarningRecord, error)
}
