package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/services/reconciliation"
)

// JobService defines the port for operator batch jobs. Every job is
// idempotent; apply=false only reports what would change.
type JobService interface {
	// ReconcileAll reconciles every user
	ReconcileAll(ctx context.Context, apply bool) (*domain.Report, []*reconciliation.Result, error)

	// LinkCredits links placement credits to users
	LinkCredits(ctx context.Context, force, apply bool) (*domain.Report, error)

	// RelinkStatementItems re-matches the unassigned items of a statement
	RelinkStatementItems(ctx context.Context, statementID string, apply bool) (*domain.Report, error)

	// BackfillPeriods extracts periods for statements that have none
	BackfillPeriods(ctx context.Context, apply bool) (*domain.Report, error)

	// BackfillInvoices creates missing payout and statement invoices
	BackfillInvoices(ctx context.Context, apply bool) (*domain.Report, error)
}
