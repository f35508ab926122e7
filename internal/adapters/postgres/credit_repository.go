package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
)

const creditColumns = `id, placement_id, name, ipi_number, publisher_ipi_number, user_id,
	split_percentage, match_method, is_external_writer, created_at, updated_at`

// CreditRepository implements ports.CreditRepository using PostgreSQL
type CreditRepository struct {
	pool     ports.DBTX
	timeouts queryTimeouts
}

// NewCreditRepository creates a new PostgreSQL placement credit repository
func NewCreditRepository(db ports.DBPort, cfg *PostgreSQLConfig) *CreditRepository {
	return &CreditRepository{pool: db.GetDB(), timeouts: newQueryTimeouts(cfg)}
}

// Create persists a new credit
func (r *CreditRepository) Create(ctx context.Context, tx ports.DBTX, c *domain.PlacementCredit) error {
	id, err := toUUID(c.ID)
	if err != nil {
		return fmt.Errorf("create credit: %w", err)
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	_, err = conn(tx, r.pool).Exec(ctx, `
		INSERT INTO placement_credits (`+creditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, c.PlacementID, c.Name, textFromPtr(c.IPINumber), textFromPtr(c.PublisherIPINumber),
		textFromPtr(c.UserID), toNumeric(c.SplitPercentage), string(c.MatchMethod),
		c.IsExternalWriter, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credit: %w", err)
	}
	return nil
}

// GetByID retrieves a credit
func (r *CreditRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.PlacementCredit, error) {
	parsed, err := lookupUUID(id, domain.ErrCreditNotFound, "credit_id")
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	row := conn(db, r.pool).QueryRow(ctx, `SELECT `+creditColumns+` FROM placement_credits WHERE id = $1`, parsed)
	c, err := scanCredit(row)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrCreditNotFound, "credit_id", id)
	}
	return c, nil
}

// List retrieves credits; unresolvedOnly skips linked and external credits
func (r *CreditRepository) List(ctx context.Context, db ports.DBTX, unresolvedOnly bool) ([]*domain.PlacementCredit, error) {
	query := `SELECT ` + creditColumns + ` FROM placement_credits`
	if unresolvedOnly {
		query += ` WHERE user_id IS NULL AND NOT is_external_writer`
	}
	query += ` ORDER BY created_at, id`

	ctx, cancel := r.timeouts.reportQuery(ctx)
	defer cancel()

	rows, err := conn(db, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	var out []*domain.PlacementCredit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	return out, nil
}

// Update overwrites the link fields of a credit
func (r *CreditRepository) Update(ctx context.Context, tx ports.DBTX, c *domain.PlacementCredit) error {
	id, err := lookupUUID(c.ID, domain.ErrCreditNotFound, "credit_id")
	if err != nil {
		return err
	}

	ctx, cancel := r.timeouts.simpleQuery(ctx)
	defer cancel()

	tag, err := conn(tx, r.pool).Exec(ctx, `
		UPDATE placement_credits SET
			user_id = $2,
			match_method = $3,
			is_external_writer = $4,
			updated_at = $5
		WHERE id = $1`,
		id, textFromPtr(c.UserID), string(c.MatchMethod), c.IsExternalWriter, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCreditNotFound.WithDetail("credit_id", c.ID)
	}
	return nil
}

func scanCredit(row pgx.Row) (*domain.PlacementCredit, error) {
	var (
		id                        pgtype.UUID
		ipi, publisherIPI, userID pgtype.Text
		split                     pgtype.Numeric
		method                    string
		c                         domain.PlacementCredit
	)
	err := row.Scan(
		&id, &c.PlacementID, &c.Name, &ipi, &publisherIPI, &userID,
		&split, &method, &c.IsExternalWriter, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var d decoder
	c.ID = uuidString(id)
	c.IPINumber = textPtr(ipi)
	c.PublisherIPINumber = textPtr(publisherIPI)
	c.UserID = textPtr(userID)
	c.SplitPercentage = d.decimal(split, "split_percentage")
	c.MatchMethod = domain.MatchMethod(method)
	if d.err != nil {
		return nil, fmt.Errorf("decode credit %s: %w", c.ID, d.err)
	}
	return &c, nil
}
