package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/services/statement"
)

// StatementService defines the port for the statement lifecycle
type StatementService interface {
	// Ingest parses an uploaded file into a DRAFT statement
	Ingest(ctx context.Context, content []byte, filename string, pro domain.PROType) (*statement.IngestResult, error)

	// Process matches payees and writes statement items; repeatable until paid
	Process(ctx context.Context, statementID string) (*statement.ProcessResult, error)

	// Publish makes a processed statement visible to payees
	Publish(ctx context.Context, statementID string) (*domain.Statement, error)

	// MarkPaid credits payee balances and issues statement invoices
	MarkPaid(ctx context.Context, statementID string) (*domain.Statement, error)

	// Get retrieves a statement with its items
	Get(ctx context.Context, statementID string) (*domain.Statement, []*domain.StatementItem, error)
}
