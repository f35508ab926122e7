package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"go.uber.org/zap"
)

// Store is the PostgreSQL-backed store: one executor and every repository on
// the same pool
type Store struct {
	DB         *DBExecutor
	Statements *StatementRepository
	Items      *StatementItemRepository
	Users      *UserRepository
	Payouts    *PayoutRepository
	Credits    *CreditRepository
	Invoices   *InvoiceRepository
}

// NewStore wires the repositories onto pool
func NewStore(pool *pgxpool.Pool, cfg *PostgreSQLConfig, logger *zap.Logger) *Store {
	db := NewDBExecutor(pool, logger)
	return &Store{
		DB:         db,
		Statements: NewStatementRepository(db, cfg),
		Items:      NewStatementItemRepository(db, cfg),
		Users:      NewUserRepository(db, cfg),
		Payouts:    NewPayoutRepository(db, cfg),
		Credits:    NewCreditRepository(db, cfg),
		Invoices:   NewInvoiceRepository(db, cfg),
	}
}

// Ports exposes the store through the service-facing interfaces
func (s *Store) Ports() ports.Store {
	return ports.Store{
		Tx:         s.DB,
		Statements: s.Statements,
		Items:      s.Items,
		Users:      s.Users,
		Payouts:    s.Payouts,
		Credits:    s.Credits,
		Invoices:   s.Invoices,
	}
}

var (
	_ ports.DBPort                  = (*DBExecutor)(nil)
	_ ports.StatementRepository     = (*StatementRepository)(nil)
	_ ports.StatementItemRepository = (*StatementItemRepository)(nil)
	_ ports.UserRepository          = (*UserRepository)(nil)
	_ ports.PayoutRepository        = (*PayoutRepository)(nil)
	_ ports.CreditRepository        = (*CreditRepository)(nil)
	_ ports.InvoiceRepository       = (*InvoiceRepository)(nil)
)
