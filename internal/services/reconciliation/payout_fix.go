package reconciliation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/services/payout"
	"github.com/kevin07696/royalty-service/pkg/observability"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"go.uber.org/zap"
)

// PayoutFix describes what FixIncompletePayout changed
type PayoutFix struct {
	Before   domain.Balances       `json:"before"`
	After    domain.Balances       `json:"after"`
	Payout   *domain.PayoutRequest `json:"payout"`
	Previous domain.PayoutStatus   `json:"previous_status"`
}

const incompletePayoutReason = "no external transfer was created; cancelled by reconciliation"

// FixIncompletePayout cancels an APPROVED or PROCESSING payout request that
// never produced an external transfer and moves its amount from pending back
// to available. A payout with a transfer id needs manual intervention and is
// refused. So is a PENDING request, which goes through the payout lifecycle,
// and one that is already cancelled or otherwise finished. Nothing is written
// on refusal.
func (r *Reconciler) FixIncompletePayout(ctx context.Context, payoutID string) (*PayoutFix, error) {
	var fix *PayoutFix
	err := r.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		p, err := r.store.Payouts.GetForUpdate(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		switch {
		case p.Status == domain.PayoutStatusCancelled:
			return domain.ErrPayoutAlreadyCancelled.WithDetail("payout_id", p.ID)
		case p.HasTransfer():
			return domain.ErrPayoutHasTransfer.
				WithDetail("payout_id", p.ID).
				WithDetail("transfer_id", *p.TransferID).
				WithDetail("status", string(p.Status))
		case p.Status != domain.PayoutStatusApproved && p.Status != domain.PayoutStatusProcessing:
			return domain.ErrPayoutInvalidTransition.
				WithDetail("payout_id", p.ID).
				WithDetail("from", string(p.Status)).
				WithDetail("to", string(domain.PayoutStatusCancelled)).
				WithDetail("reason", "only approved or processing payouts can be fixed")
		}

		user, err := r.store.Users.GetForUpdate(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		fix = &PayoutFix{Before: user.Balances(), Previous: p.Status}

		reason := incompletePayoutReason
		p.FailureReason = &reason
		if err := payout.Transition(ctx, tx, r.store, p, domain.PayoutStatusCancelled, timeutil.Now()); err != nil {
			return err
		}

		after, err := r.store.Users.GetByID(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		fix.After = after.Balances()
		fix.Payout = p
		return nil
	})
	if err != nil {
		r.logger.Warn("incomplete payout not fixed", zap.String("payout_id", payoutID), zap.Error(err))
		return nil, fmt.Errorf("fix payout %s: %w", payoutID, err)
	}

	observability.RecordPayoutTransition(string(fix.Previous), string(domain.PayoutStatusCancelled))
	r.logger.Info("incomplete payout cancelled",
		zap.String("payout_id", payoutID),
		zap.String("user_id", fix.Payout.UserID),
		zap.String("amount", fix.Payout.Amount.String()),
		zap.String("previous_status", string(fix.Previous)))
	return fix, nil
}
