package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
)

// InvoiceRepository implements ports.InvoiceRepository using PostgreSQL
type InvoiceRepository struct {
	pool     ports.DBTX
	timeouts queryTimeouts
}

// NewInvoiceRepository creates a new PostgreSQL invoice repository
func NewInvoiceRepository(db ports.DBPort, cfg *PostgreSQLConfig) *InvoiceRepository {
	return &InvoiceRepository{pool: db.GetDB(), timeouts: newQueryTimeouts(cfg)}
}

// Create persists a new invoice. A second receipt for the same payout or
// statement payee violates a unique index and is reported as a validation error.
func (r *InvoiceRepository) Create(ctx context.Context, tx ports.DBTX, inv *domain.Invoice) error {
	id, err := toUUID(inv.ID)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	payoutID, err := nullUUID(inv.PayoutID)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	statementID, err := nullUUID(inv.StatementID)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	_, err = conn(tx, r.pool).Exec(ctx, `
		INSERT INTO invoices (id, user_id, kind, number, payout_id, statement_id, amount, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, inv.UserID, string(inv.Kind), inv.Number, payoutID, statementID,
		toNumeric(inv.Amount), inv.IssuedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrValidationFailed.
			WithDetail("invoice_number", inv.Number).
			WithDetail("reason", "invoice already issued")
	}
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// ExistsForPayout reports whether a payout already has its receipt
func (r *InvoiceRepository) ExistsForPayout(ctx context.Context, db ports.DBTX, payoutID string) (bool, error) {
	parsed, err := toUUID(payoutID)
	if err != nil {
		return false, nil
	}
	return r.exists(ctx, db, `SELECT EXISTS (SELECT 1 FROM invoices WHERE payout_id = $1)`, parsed)
}

// ExistsForStatement reports whether a user already has a receipt for a paid statement
func (r *InvoiceRepository) ExistsForStatement(ctx context.Context, db ports.DBTX, statementID, userID string) (bool, error) {
	parsed, err := toUUID(statementID)
	if err != nil {
		return false, nil
	}
	return r.exists(ctx, db, `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE kind = 'STATEMENT' AND statement_id = $1 AND user_id = $2
		)`, parsed, userID)
}

func (r *InvoiceRepository) exists(ctx context.Context, db ports.DBTX, query string, args ...any) (bool, error) {
	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	var exists bool
	if err := conn(db, r.pool).QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check invoice: %w", err)
	}
	return exists, nil
}

// ListByUser retrieves a user's invoices, newest first
func (r *InvoiceRepository) ListByUser(ctx context.Context, db ports.DBTX, userID string) ([]*domain.Invoice, error) {
	ctx, cancel := r.timeouts.complexQuery(ctx)
	defer cancel()

	rows, err := conn(db, r.pool).Query(ctx, `
		SELECT id, user_id, kind, number, payout_id, statement_id, amount, issued_at
		FROM invoices
		WHERE user_id = $1
		ORDER BY issued_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []*domain.Invoice
	for rows.Next() {
		var (
			id, payoutID, statementID pgtype.UUID
			amount                    pgtype.Numeric
			kind                      string
			inv                       domain.Invoice
		)
		if err := rows.Scan(&id, &inv.UserID, &kind, &inv.Number, &payoutID, &statementID, &amount, &inv.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		var d decoder
		inv.ID = uuidString(id)
		inv.Kind = domain.InvoiceKind(kind)
		inv.PayoutID = uuidPtr(payoutID)
		inv.StatementID = uuidPtr(statementID)
		inv.Amount = d.decimal(amount, "amount")
		if d.err != nil {
			return nil, fmt.Errorf("decode invoice %s: %w", inv.ID, d.err)
		}
		out = append(out, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}
