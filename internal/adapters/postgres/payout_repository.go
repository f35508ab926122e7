package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
)

const payoutColumns = `id, user_id, amount, status, transfer_id, failure_reason,
	requested_at, approved_at, processed_at, completed_at, cancelled_at, updated_at`

// PayoutRepository implements ports.PayoutRepository using PostgreSQL
type PayoutRepository struct {
	pool     ports.DBTX
	timeouts queryTimeouts
}

// NewPayoutRepository creates a new PostgreSQL payout repository
func NewPayoutRepository(db ports.DBPort, cfg *PostgreSQLConfig) *PayoutRepository {
	return &PayoutRepository{pool: db.GetDB(), timeouts: newQueryTimeouts(cfg)}
}

// Create persists a new payout request
func (r *PayoutRepository) Create(ctx context.Context, tx ports.DBTX, p *domain.PayoutRequest) error {
	id, err := toUUID(p.ID)
	if err != nil {
		return fmt.Errorf("create payout: %w", err)
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	_, err = conn(tx, r.pool).Exec(ctx, `
		INSERT INTO payout_requests (`+payoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, p.UserID, toNumeric(p.Amount), string(p.Status),
		textFromPtr(p.TransferID), textFromPtr(p.FailureReason),
		p.RequestedAt, timestamptz(p.ApprovedAt), timestamptz(p.ProcessedAt),
		timestamptz(p.CompletedAt), timestamptz(p.CancelledAt), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// GetByID retrieves a payout request
func (r *PayoutRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.PayoutRequest, error) {
	return r.get(ctx, db, id, "")
}

// GetForUpdate retrieves a payout request and locks it for the rest of the transaction
func (r *PayoutRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.PayoutRequest, error) {
	return r.get(ctx, tx, id, " FOR UPDATE")
}

func (r *PayoutRepository) get(ctx context.Context, db ports.DBTX, id, lock string) (*domain.PayoutRequest, error) {
	parsed, err := lookupUUID(id, domain.ErrPayoutNotFound, "payout_id")
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	row := conn(db, r.pool).QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`+lock, parsed)
	p, err := scanPayout(row)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrPayoutNotFound, "payout_id", id)
	}
	return p, nil
}

// Update overwrites status, transfer id and timestamps
func (r *PayoutRepository) Update(ctx context.Context, tx ports.DBTX, p *domain.PayoutRequest) error {
	id, err := lookupUUID(p.ID, domain.ErrPayoutNotFound, "payout_id")
	if err != nil {
		return err
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	tag, err := conn(tx, r.pool).Exec(ctx, `
		UPDATE payout_requests SET
			status = $2,
			transfer_id = $3,
			failure_reason = $4,
			approved_at = $5,
			processed_at = $6,
			completed_at = $7,
			cancelled_at = $8,
			updated_at = $9
		WHERE id = $1`,
		id, string(p.Status), textFromPtr(p.TransferID), textFromPtr(p.FailureReason),
		timestamptz(p.ApprovedAt), timestamptz(p.ProcessedAt),
		timestamptz(p.CompletedAt), timestamptz(p.CancelledAt), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPayoutNotFound.WithDetail("payout_id", p.ID)
	}
	return nil
}

// ListByUser retrieves every payout request of a user, oldest first
func (r *PayoutRepository) ListByUser(ctx context.Context, db ports.DBTX, userID string) ([]*domain.PayoutRequest, error) {
	return r.list(ctx, db, `WHERE user_id = $1`, userID)
}

// ListByStatus retrieves payout requests in the given status, oldest first
func (r *PayoutRepository) ListByStatus(ctx context.Context, db ports.DBTX, status domain.PayoutStatus) ([]*domain.PayoutRequest, error) {
	return r.list(ctx, db, `WHERE status = $1`, string(status))
}

func (r *PayoutRepository) list(ctx context.Context, db ports.DBTX, where string, arg any) ([]*domain.PayoutRequest, error) {
	ctx, cancel := r.timeouts.complexQuery(ctx)
	defer cancel()

	rows, err := conn(db, r.pool).Query(ctx,
		`SELECT `+payoutColumns+` FROM payout_requests `+where+` ORDER BY requested_at, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var out []*domain.PayoutRequest
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	return out, nil
}

func scanPayout(row pgx.Row) (*domain.PayoutRequest, error) {
	var (
		id                        pgtype.UUID
		amount                    pgtype.Numeric
		status                    string
		transferID, failureReason pgtype.Text
		approved, processed       pgtype.Timestamptz
		completed, cancelled      pgtype.Timestamptz
		p                         domain.PayoutRequest
	)
	err := row.Scan(
		&id, &p.UserID, &amount, &status, &transferID, &failureReason,
		&p.RequestedAt, &approved, &processed, &completed, &cancelled, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var d decoder
	p.ID = uuidString(id)
	p.Amount = d.decimal(amount, "amount")
	p.Status = domain.PayoutStatus(status)
	p.TransferID = textPtr(transferID)
	p.FailureReason = textPtr(failureReason)
	p.ApprovedAt = timePtr(approved)
	p.ProcessedAt = timePtr(processed)
	p.CompletedAt = timePtr(completed)
	p.CancelledAt = timePtr(cancelled)
	if d.err != nil {
		return nil, fmt.Errorf("decode payout %s: %w", p.ID, d.err)
	}
	return &p, nil
}
