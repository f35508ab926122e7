package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
)

const itemColumns = `id, statement_id, user_id, work_title,
	revenue, net_revenue, commission_rate, commission_amount, split_percentage,
	is_visible_to_writer, metadata, created_at, updated_at`

// StatementItemRepository implements ports.StatementItemRepository using PostgreSQL
type StatementItemRepository struct {
	pool     ports.DBTX
	timeouts queryTimeouts
}

// NewStatementItemRepository creates a new PostgreSQL statement item repository
func NewStatementItemRepository(db ports.DBPort, cfg *PostgreSQLConfig) *StatementItemRepository {
	return &StatementItemRepository{pool: db.GetDB(), timeouts: newQueryTimeouts(cfg)}
}

// Create persists a new statement item
func (r *StatementItemRepository) Create(ctx context.Context, tx ports.DBTX, item *domain.StatementItem) error {
	id, err := toUUID(item.ID)
	if err != nil {
		return fmt.Errorf("create statement item: %w", err)
	}
	statementID, err := lookupUUID(item.StatementID, domain.ErrStatementNotFound, "statement_id")
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("encode item metadata: %w", err)
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	_, err = conn(tx, r.pool).Exec(ctx, `
		INSERT INTO statement_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, statementID, textFromPtr(item.UserID), item.WorkTitle,
		toNumeric(item.Revenue), toNumeric(item.NetRevenue), toNumeric(item.CommissionRate),
		toNumeric(item.CommissionAmount), toNumeric(item.SplitPercentage),
		item.IsVisibleToWriter, metadata, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert statement item: %w", err)
	}
	return nil
}

// Update overwrites an existing item
func (r *StatementItemRepository) Update(ctx context.Context, tx ports.DBTX, item *domain.StatementItem) error {
	id, err := lookupUUID(item.ID, domain.ErrItemNotFound, "item_id")
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("encode item metadata: %w", err)
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	tag, err := conn(tx, r.pool).Exec(ctx, `
		UPDATE statement_items SET
			user_id = $2,
			work_title = $3,
			revenue = $4,
			net_revenue = $5,
			commission_rate = $6,
			commission_amount = $7,
			split_percentage = $8,
			is_visible_to_writer = $9,
			metadata = $10,
			updated_at = $11
		WHERE id = $1`,
		id, textFromPtr(item.UserID), item.WorkTitle,
		toNumeric(item.Revenue), toNumeric(item.NetRevenue), toNumeric(item.CommissionRate),
		toNumeric(item.CommissionAmount), toNumeric(item.SplitPercentage),
		item.IsVisibleToWriter, metadata, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update statement item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound.WithDetail("item_id", item.ID)
	}
	return nil
}

// Delete removes an item
func (r *StatementItemRepository) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	parsed, err := lookupUUID(id, domain.ErrItemNotFound, "item_id")
	if err != nil {
		return err
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	tag, err := conn(tx, r.pool).Exec(ctx, `DELETE FROM statement_items WHERE id = $1`, parsed)
	if err != nil {
		return fmt.Errorf("delete statement item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound.WithDetail("item_id", id)
	}
	return nil
}

// ListByStatement retrieves every item of a statement, assigned or not
func (r *StatementItemRepository) ListByStatement(ctx context.Context, db ports.DBTX, statementID string) ([]*domain.StatementItem, error) {
	parsed, err := lookupUUID(statementID, domain.ErrStatementNotFound, "statement_id")
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.timeouts.complexQuery(ctx)
	defer cancel()

	rows, err := conn(db, r.pool).Query(ctx, `
		SELECT `+itemColumns+`
		FROM statement_items
		WHERE statement_id = $1
		ORDER BY created_at, id`, parsed)
	if err != nil {
		return nil, fmt.Errorf("list statement items: %w", err)
	}
	defer rows.Close()

	var out []*domain.StatementItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list statement items: %w", err)
	}
	return out, nil
}

// ListEarnings retrieves the visible items of a user whose statement is PUBLISHED and PAID
func (r *StatementItemRepository) ListEarnings(ctx context.Context, db ports.DBTX, userID string) ([]ports.EarningRecord, error) {
	ctx, cancel := r.timeouts.complexQuery(ctx)
	defer cancel()

	rows, err := conn(db, r.pool).Query(ctx, `
		SELECT i.net_revenue, i.id, i.statement_id, i.work_title
		FROM statement_items i
		JOIN statements s ON s.id = i.statement_id
		WHERE i.user_id = $1
		  AND i.is_visible_to_writer
		  AND s.status = $2
		  AND s.payment_status = $3
		ORDER BY s.created_at, i.created_at, i.id`,
		userID, string(domain.StatementStatusPublished), string(domain.PaymentStatusPaid))
	if err != nil {
		return nil, fmt.Errorf("list earnings: %w", err)
	}
	defer rows.Close()

	var out []ports.EarningRecord
	for rows.Next() {
		var (
			net               pgtype.Numeric
			itemID, statement pgtype.UUID
			rec               ports.EarningRecord
		)
		if err := rows.Scan(&net, &itemID, &statement, &rec.WorkTitle); err != nil {
			return nil, fmt.Errorf("scan earning: %w", err)
		}
		var d decoder
		rec.NetRevenue = d.decimal(net, "net_revenue")
		if d.err != nil {
			return nil, d.err
		}
		rec.ItemID = uuidString(itemID)
		rec.StatementID = uuidString(statement)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list earnings: %w", err)
	}
	return out, nil
}

func scanItem(row pgx.Row) (*domain.StatementItem, error) {
	var (
		id, statementID                pgtype.UUID
		userID                         pgtype.Text
		revenue, net, rate, fee, split pgtype.Numeric
		metadata                       []byte
		item                           domain.StatementItem
	)
	err := row.Scan(
		&id, &statementID, &userID, &item.WorkTitle,
		&revenue, &net, &rate, &fee, &split,
		&item.IsVisibleToWriter, &metadata, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var d decoder
	item.ID = uuidString(id)
	item.StatementID = uuidString(statementID)
	item.UserID = textPtr(userID)
	item.Revenue = d.decimal(revenue, "revenue")
	item.NetRevenue = d.decimal(net, "net_revenue")
	item.CommissionRate = d.decimal(rate, "commission_rate")
	item.CommissionAmount = d.decimal(fee, "commission_amount")
	item.SplitPercentage = d.decimal(split, "split_percentage")
	d.json(metadata, &item.Metadata, "metadata")
	if d.err != nil {
		return nil, fmt.Errorf("decode statement item %s: %w", item.ID, d.err)
	}
	return &item, nil
}
