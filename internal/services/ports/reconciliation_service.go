package ports

import (
	"context"

	"github.com/kevin07696/royalty-service/internal/services/reconciliation"
)

// ReconciliationService defines the port for single-user ledger checks and fixes
type ReconciliationService interface {
	// Reconcile recomputes a user's balances without writing
	Reconcile(ctx context.Context, userID string) (*reconciliation.Result, error)

	// Apply writes the balances of a previous Reconcile if nothing moved since
	Apply(ctx context.Context, res *reconciliation.Result) error

	// FixIncompletePayout cancels a held payout that never got a transfer
	FixIncompletePayout(ctx context.Context, payoutID string) (*reconciliation.PayoutFix, error)
}
