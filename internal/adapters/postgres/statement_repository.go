package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
)

const statementColumns = `id, filename, pro_type, status, payment_status,
	statement_period, period_start, period_end,
	total_revenue, total_net, total_commission, metadata,
	published_at, paid_at, created_at, updated_at`

// StatementRepository implements ports.StatementRepository using PostgreSQL
type StatementRepository struct {
	pool     ports.DBTX
	timeouts queryTimeouts
}

// NewStatementRepository creates a new PostgreSQL statement repository
func NewStatementRepository(db ports.DBPort, cfg *PostgreSQLConfig) *StatementRepository {
	return &StatementRepository{pool: db.GetDB(), timeouts: newQueryTimeouts(cfg)}
}

// Create persists a new statement with its raw metadata
func (r *StatementRepository) Create(ctx context.Context, tx ports.DBTX, st *domain.Statement) error {
	id, err := toUUID(st.ID)
	if err != nil {
		return fmt.Errorf("create statement: %w", err)
	}
	metadata, err := json.Marshal(st.Metadata)
	if err != nil {
		return fmt.Errorf("encode statement metadata: %w", err)
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	_, err = conn(tx, r.pool).Exec(ctx, `
		INSERT INTO statements (`+statementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, st.Filename, string(st.PROType), string(st.Status), string(st.PaymentStatus),
		textFromPtr(st.Period), timestamptz(st.PeriodStart), timestamptz(st.PeriodEnd),
		toNumeric(st.TotalRevenue), toNumeric(st.TotalNet), toNumeric(st.TotalCommission), metadata,
		timestamptz(st.PublishedAt), timestamptz(st.PaidAt), st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert statement: %w", err)
	}
	return nil
}

// GetByID retrieves a statement by its ID
func (r *StatementRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Statement, error) {
	return r.get(ctx, db, id, "")
}

// GetForUpdate retrieves a statement and locks it for the rest of the transaction
func (r *StatementRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.Statement, error) {
	return r.get(ctx, tx, id, " FOR UPDATE")
}

func (r *StatementRepository) get(ctx context.Context, db ports.DBTX, id, lock string) (*domain.Statement, error) {
	parsed, err := lookupUUID(id, domain.ErrStatementNotFound, "statement_id")
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	row := conn(db, r.pool).QueryRow(ctx,
		`SELECT `+statementColumns+` FROM statements WHERE id = $1`+lock, parsed)
	st, err := scanStatement(row)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrStatementNotFound, "statement_id", id)
	}
	return st, nil
}

// Update overwrites status, period, totals and metadata
func (r *StatementRepository) Update(ctx context.Context, tx ports.DBTX, st *domain.Statement) error {
	id, err := lookupUUID(st.ID, domain.ErrStatementNotFound, "statement_id")
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(st.Metadata)
	if err != nil {
		return fmt.Errorf("encode statement metadata: %w", err)
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	tag, err := conn(tx, r.pool).Exec(ctx, `
		UPDATE statements SET
			status = $2,
			payment_status = $3,
			statement_period = $4,
			period_start = $5,
			period_end = $6,
			total_revenue = $7,
			total_net = $8,
			total_commission = $9,
			metadata = $10,
			published_at = $11,
			paid_at = $12,
			updated_at = $13
		WHERE id = $1`,
		id, string(st.Status), string(st.PaymentStatus),
		textFromPtr(st.Period), timestamptz(st.PeriodStart), timestamptz(st.PeriodEnd),
		toNumeric(st.TotalRevenue), toNumeric(st.TotalNet), toNumeric(st.TotalCommission), metadata,
		timestamptz(st.PublishedAt), timestamptz(st.PaidAt), st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update statement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatementNotFound.WithDetail("statement_id", st.ID)
	}
	return nil
}

// List retrieves statements matching the filter, oldest first
func (r *StatementRepository) List(ctx context.Context, db ports.DBTX, filter ports.StatementFilter) ([]*domain.Statement, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, string(filter.PaymentStatus))
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.MissingPeriod {
		where = append(where, "(statement_period IS NULL OR period_start IS NULL OR period_end IS NULL)")
	}

	query := `SELECT ` + statementColumns + ` FROM statements`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	ctx, cancel := r.timeouts.reportQuery(ctx)
	defer cancel()

	rows, err := conn(db, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	defer rows.Close()

	var out []*domain.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	return out, nil
}

func scanStatement(row pgx.Row) (*domain.Statement, error) {
	var (
		id                         pgtype.UUID
		period                     pgtype.Text
		periodStart, periodEnd     pgtype.Timestamptz
		revenue, net, commission   pgtype.Numeric
		metadata                   []byte
		publishedAt, paidAt        pgtype.Timestamptz
		pro, status, paymentStatus string
		st                         domain.Statement
	)
	err := row.Scan(
		&id, &st.Filename, &pro, &status, &paymentStatus,
		&period, &periodStart, &periodEnd,
		&revenue, &net, &commission, &metadata,
		&publishedAt, &paidAt, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var d decoder
	st.ID = uuidString(id)
	st.PROType = domain.PROType(pro)
	st.Status = domain.StatementStatus(status)
	st.PaymentStatus = domain.PaymentStatus(paymentStatus)
	st.Period = textPtr(period)
	st.PeriodStart = timePtr(periodStart)
	st.PeriodEnd = timePtr(periodEnd)
	st.TotalRevenue = d.decimal(revenue, "total_revenue")
	st.TotalNet = d.decimal(net, "total_net")
	st.TotalCommission = d.decimal(commission, "total_commission")
	st.PublishedAt = timePtr(publishedAt)
	st.PaidAt = timePtr(paidAt)
	d.json(metadata, &st.Metadata, "metadata")
	if d.err != nil {
		return nil, fmt.Errorf("decode statement %s: %w", st.ID, d.err)
	}
	return &st, nil
}
