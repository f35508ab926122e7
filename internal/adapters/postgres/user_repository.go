package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
)

const userColumns = `id, full_name, email, role,
	writer_ipi_number, publisher_ipi_number, pro_affiliation, commission_override,
	available_balance, pending_balance, lifetime_earnings, updated_at`

// UserRepository implements ports.UserRepository using PostgreSQL.
// Save exists for directory imports; services only write balances.
type UserRepository struct {
	pool     ports.DBTX
	timeouts queryTimeouts
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db ports.DBPort, cfg *PostgreSQLConfig) *UserRepository {
	return &UserRepository{pool: db.GetDB(), timeouts: newQueryTimeouts(cfg)}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.User, error) {
	return r.get(ctx, db, id, "")
}

// GetForUpdate retrieves a user and locks the row for the rest of the transaction
func (r *UserRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.User, error) {
	return r.get(ctx, tx, id, " FOR UPDATE")
}

func (r *UserRepository) get(ctx context.Context, db ports.DBTX, id, lock string) (*domain.User, error) {
	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	row := conn(db, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`+lock, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrUserNotFound, "user_id", id)
	}
	return u, nil
}

// List returns every user in a stable order (creation time, then ID)
func (r *UserRepository) List(ctx context.Context, db ports.DBTX) ([]*domain.User, error) {
	ctx, cancel := r.timeouts.reportQuery(ctx)
	defer cancel()

	rows, err := conn(db, r.pool).Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// UpdateBalances overwrites the three balance fields together
func (r *UserRepository) UpdateBalances(ctx context.Context, tx ports.DBTX, id string, b domain.Balances) error {
	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	tag, err := conn(tx, r.pool).Exec(ctx, `
		UPDATE users SET
			available_balance = $2,
			pending_balance = $3,
			lifetime_earnings = $4,
			updated_at = now()
		WHERE id = $1`,
		id, toNumeric(b.Available), toNumeric(b.Pending), toNumeric(b.Lifetime))
	if err != nil {
		return fmt.Errorf("update balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound.WithDetail("user_id", id)
	}
	return nil
}

// Save inserts a user or refreshes its identity fields. Balances of an
// existing user are left alone; reconciliation owns them.
func (r *UserRepository) Save(ctx context.Context, tx ports.DBTX, u *domain.User) error {
	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	_, err := conn(tx, r.pool).Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			writer_ipi_number = EXCLUDED.writer_ipi_number,
			publisher_ipi_number = EXCLUDED.publisher_ipi_number,
			pro_affiliation = EXCLUDED.pro_affiliation,
			commission_override = EXCLUDED.commission_override,
			updated_at = now()`,
		u.ID, u.FullName, u.Email, string(u.Role),
		textFromPtr(u.WriterIPINumber), textFromPtr(u.PublisherIPINumber), textFromPtr(u.PROAffiliation),
		nullNumeric(u.CommissionOverride),
		toNumeric(u.AvailableBalance), toNumeric(u.PendingBalance), toNumeric(u.LifetimeEarnings),
	)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		role                         string
		writerIPI, publisherIPI, pro pgtype.Text
		override                     pgtype.Numeric
		available, pending, lifetime pgtype.Numeric
		u                            domain.User
	)
	err := row.Scan(
		&u.ID, &u.FullName, &u.Email, &role,
		&writerIPI, &publisherIPI, &pro, &override,
		&available, &pending, &lifetime, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var d decoder
	u.Role = domain.UserRole(role)
	u.WriterIPINumber = textPtr(writerIPI)
	u.PublisherIPINumber = textPtr(publisherIPI)
	u.PROAffiliation = textPtr(pro)
	u.CommissionOverride = d.nullDecimal(override, "commission_override")
	u.AvailableBalance = d.decimal(available, "available_balance")
	u.PendingBalance = d.decimal(pending, "pending_balance")
	u.LifetimeEarnings = d.decimal(lifetime, "lifetime_earnings")
	if d.err != nil {
		return nil, fmt.Errorf("decode user %s: %w", u.ID, d.err)
	}
	return &u, nil
}
