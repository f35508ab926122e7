// Package reconciliation recomputes payee balances from statement items and
// payout requests and corrects the cached projection on request.
//
// Detection and correction are separate calls. Reconcile only reads; Apply
// writes what a previous Reconcile computed and refuses if the data moved in
// between.
package reconciliation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/kevin07696/royalty-service/pkg/observability"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result is the audit record of one user's reconciliation. Drift is stored
// minus correct, so a positive value means the cache overstates the balance.
type Result struct {
	Stored           domain.Balances         `json:"stored"`
	Correct          domain.Balances         `json:"correct"`
	Drift            domain.Balances         `json:"drift"`
	CompletedPayouts decimal.Decimal         `json:"completed_payouts"`
	Earnings         []ports.EarningRecord   `json:"earnings"`
	Payouts          []*domain.PayoutRequest `json:"payouts"`
	Fields           []string                `json:"discrepant_fields"`
	UserID           string                  `json:"user_id"`
	DiscrepancyFound bool                    `json:"discrepancy_found"`
}

// Reconciler implements the ledger reconciliation operations
type Reconciler struct {
	store     ports.Store
	logger    *zap.Logger
	tolerance decimal.Decimal
}

// NewReconciler creates a reconciler. A non-positive tolerance uses domain.DefaultTolerance.
func NewReconciler(store ports.Store, tolerance decimal.Decimal, logger *zap.Logger) *Reconciler {
	if !tolerance.IsPositive() {
		tolerance = domain.DefaultTolerance
	}
	return &Reconciler{
		store:     store,
		logger:    logger.Named("reconciler"),
		tolerance: tolerance,
	}
}

// Reconcile computes the correct balances of a user from one consistent snapshot
func (r *Reconciler) Reconcile(ctx context.Context, userID string) (*Result, error) {
	var res *Result
	err := r.store.Tx.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		user, err := r.store.Users.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		res, err = r.compute(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile user %s: %w", userID, err)
	}
	if res.DiscrepancyFound {
		r.logger.Warn("balance discrepancy",
			zap.String("user_id", userID),
			zap.Strings("fields", res.Fields),
			zap.String("available_drift", res.Drift.Available.String()),
			zap.String("pending_drift", res.Drift.Pending.String()),
			zap.String("lifetime_drift", res.Drift.Lifetime.String()))
	}
	return res, nil
}

// compute derives:
//
//	lifetime  = sum of visible item net revenue on PUBLISHED and PAID statements
//	pending   = sum of PENDING, APPROVED and PROCESSING payout amounts
//	available = lifetime - COMPLETED payout amounts - pending
func (r *Reconciler) compute(ctx context.Context, tx ports.DBTX, user *domain.User) (*Result, error) {
	earnings, err := r.store.Items.ListEarnings(ctx, tx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list earnings: %w", err)
	}
	payouts, err := r.store.Payouts.ListByUser(ctx, tx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}

	lifetime := decimal.Zero
	for _, e := range earnings {
		lifetime = lifetime.Add(e.NetRevenue)
	}
	completed, pending := decimal.Zero, decimal.Zero
	relevant := make([]*domain.PayoutRequest, 0, len(payouts))
	for _, p := range payouts {
		switch {
		case p.Status == domain.PayoutStatusCompleted:
			completed = completed.Add(p.Amount)
		case p.Status.IsHeld():
			pending = pending.Add(p.Amount)
		default:
			continue
		}
		relevant = append(relevant, p)
	}

	correct := domain.Balances{
		Lifetime:  lifetime,
		Pending:   pending,
		Available: lifetime.Sub(completed).Sub(pending),
	}
	stored := user.Balances()
	res := &Result{
		UserID:           user.ID,
		Stored:           stored,
		Correct:          correct,
		Drift:            stored.Add(negate(correct)),
		CompletedPayouts: completed,
		Earnings:         earnings,
		Payouts:          relevant,
	}
	for _, f := range []struct {
		name     string
		got, exp decimal.Decimal
	}{
		{"available", stored.Available, correct.Available},
		{"pending", stored.Pending, correct.Pending},
		{"lifetime", stored.Lifetime, correct.Lifetime},
	} {
		if !domain.WithinTolerance(f.got, f.exp, r.tolerance) {
			res.Fields = append(res.Fields, f.name)
		}
	}
	res.DiscrepancyFound = len(res.Fields) > 0
	return res, nil
}

func negate(b domain.Balances) domain.Balances {
	return domain.Balances{Available: b.Available.Neg(), Pending: b.Pending.Neg(), Lifetime: b.Lifetime.Neg()}
}

// Apply writes the balances a previous Reconcile computed. It recomputes under
// lock first and returns domain.ErrStaleSnapshot if either the stored balances
// or the authoritative records changed since res was produced; the caller
// should reconcile again.
func (r *Reconciler) Apply(ctx context.Context, res *Result) error {
	if !res.DiscrepancyFound {
		return nil
	}
	err := r.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		user, err := r.store.Users.GetForUpdate(ctx, tx, res.UserID)
		if err != nil {
			return err
		}
		if !user.Balances().Equal(res.Stored) {
			return domain.ErrStaleSnapshot.
				WithDetail("user_id", res.UserID).
				WithDetail("reason", "stored balances changed")
		}
		fresh, err := r.compute(ctx, tx, user)
		if err != nil {
			return err
		}
		if !fresh.Correct.Equal(res.Correct) {
			return domain.ErrStaleSnapshot.
				WithDetail("user_id", res.UserID).
				WithDetail("reason", "statement items or payouts changed")
		}
		return r.store.Users.UpdateBalances(ctx, tx, res.UserID, res.Correct)
	})
	if err != nil {
		return fmt.Errorf("apply reconciliation for %s: %w", res.UserID, err)
	}

	for _, f := range res.Fields {
		observability.RecordDiscrepancy(f, true)
	}
	r.logger.Info("balances corrected",
		zap.String("user_id", res.UserID),
		zap.String("available", res.Correct.Available.String()),
		zap.String("pending", res.Correct.Pending.String()),
		zap.String("lifetime", res.Correct.Lifetime.String()))
	return nil
}

// ReconcileAll reconciles every user. With apply=false it only reports.
// One user's failure is recorded and the run continues.
func (r *Reconciler) ReconcileAll(ctx context.Context, apply bool) (*domain.Report, []*Result, error) {
	report := domain.NewReport("reconcile-all", apply, timeutil.Now())
	users, err := r.store.Users.List(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("list users: %w", err)
	}

	var discrepancies []*Result
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		res, err := r.Reconcile(ctx, u.ID)
		if err != nil {
			report.Fail(u.ID, err)
			continue
		}
		if !res.DiscrepancyFound {
			report.Matched++
			continue
		}
		report.Unmatched++
		discrepancies = append(discrepancies, res)
		if !apply {
			for _, f := range res.Fields {
				observability.RecordDiscrepancy(f, false)
			}
			continue
		}
		if err := r.Apply(ctx, res); err != nil {
			report.Fail(u.ID, err)
			continue
		}
		report.Updated++
	}

	report.Finish(timeutil.Now())
	observability.RecordJob(report.Job, report.Outcome(), report.Duration.Seconds(),
		report.Matched, report.Unmatched, report.Updated, report.Skipped, report.Errors)
	r.logger.Info(report.Summary())
	return report, discrepancies, nil
}
