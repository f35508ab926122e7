package reconciliation

import (
	"context"
	"testing"

	"github.com/kevin07696/royalty-service/internal/adapters/memory"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	mem   *memory.Store
	store ports.Store
	rec   *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.NewStore()
	st := mem.Ports()
	return &fixture{mem: mem, store: st, rec: NewReconciler(st, decimal.Zero, zaptest.NewLogger(t))}
}

func (f *fixture) user(id, available, pending, lifetime string) {
	f.mem.PutUser(&domain.User{
		ID:               id,
		AvailableBalance: dec(available),
		PendingBalance:   dec(pending),
		LifetimeEarnings: dec(lifetime),
	})
}

func (f *fixture) payout(t *testing.T, id, userID, amount string, status domain.PayoutStatus, transferID *string) {
	t.Helper()
	require.NoError(t, f.store.Payouts.Create(context.Background(), nil, &domain.PayoutRequest{
		ID: id, UserID: userID, Amount: dec(amount), Status: status, TransferID: transferID,
	}))
}

func (f *fixture) earning(t *testing.T, statementID, userID, net string, status domain.StatementStatus, paid domain.PaymentStatus, visible bool) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.store.Statements.GetByID(ctx, nil, statementID); err != nil {
		require.NoError(t, f.store.Statements.Create(ctx, nil, &domain.Statement{
			ID: statementID, Status: status, PaymentStatus: paid,
		}))
	}
	uid := userID
	require.NoError(t, f.store.Items.Create(ctx, nil, &domain.StatementItem{
		ID:                statementID + "-" + userID + "-" + net,
		StatementID:       statementID,
		UserID:            &uid,
		NetRevenue:        dec(net),
		IsVisibleToWriter: visible,
	}))
}

func TestReconcile_PendingDriftScenario(t *testing.T) {
	f := newFixture(t)
	f.user("u-1", "0", "200", "180")
	f.earning(t, "st-1", "u-1", "180", domain.StatementStatusPublished, domain.PaymentStatusPaid, true)
	f.payout(t, "p-1", "u-1", "100", domain.PayoutStatusPending, nil)
	f.payout(t, "p-2", "u-1", "50", domain.PayoutStatusApproved, nil)
	f.payout(t, "p-3", "u-1", "30", domain.PayoutStatusCompleted, nil)

	res, err := f.rec.Reconcile(context.Background(), "u-1")
	require.NoError(t, err)

	assert.True(t, res.DiscrepancyFound)
	assert.Equal(t, "150", res.Correct.Pending.String())
	assert.Equal(t, "50", res.Drift.Pending.String())
	assert.Equal(t, "180", res.Correct.Lifetime.String())
	assert.Equal(t, "0", res.Correct.Available.String())
	assert.Equal(t, []string{"pending"}, res.Fields)
	assert.Len(t, res.Payouts, 3)
	assert.Len(t, res.Earnings, 1)
}

func TestReconcile_OnlyPublishedPaidVisibleItemsCount(t *testing.T) {
	f := newFixture(t)
	f.user("u-1", "10", "0", "10")
	f.earning(t, "paid", "u-1", "10", domain.StatementStatusPublished, domain.PaymentStatusPaid, true)
	f.earning(t, "paid", "u-1", "99", domain.StatementStatusPublished, domain.PaymentStatusPaid, false)
	f.earning(t, "unpaid", "u-1", "20", domain.StatementStatusPublished, domain.PaymentStatusUnpaid, true)
	f.earning(t, "draft", "u-1", "30", domain.StatementStatusDraft, domain.PaymentStatusPaid, true)
	f.payout(t, "p-x", "u-1", "5", domain.PayoutStatusCancelled, nil)
	f.payout(t, "p-y", "u-1", "5", domain.PayoutStatusFailed, nil)

	res, err := f.rec.Reconcile(context.Background(), "u-1")
	require.NoError(t, err)

	assert.False(t, res.DiscrepancyFound)
	assert.Empty(t, res.Payouts)
}

func TestReconcile_ToleranceBoundary(t *testing.T) {
	f := newFixture(t)
	f.user("u-edge", "10.01", "0", "10")
	f.user("u-over", "10.010001", "0", "10")
	f.earning(t, "st-1", "u-edge", "10", domain.StatementStatusPublished, domain.PaymentStatusPaid, true)
	f.earning(t, "st-1", "u-over", "10", domain.StatementStatusPublished, domain.PaymentStatusPaid, true)

	edge, err := f.rec.Reconcile(context.Background(), "u-edge")
	require.NoError(t, err)
	assert.False(t, edge.DiscrepancyFound)

	over, err := f.rec.Reconcile(context.Background(), "u-over")
	require.NoError(t, err)
	assert.True(t, over.DiscrepancyFound)
	assert.Equal(t, []string{"available"}, over.Fields)
}

func TestApply_Converges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user("u-1", "500", "0", "0")
	f.earning(t, "st-1", "u-1", "120.5", domain.StatementStatusPublished, domain.PaymentStatusPaid, true)
	f.payout(t, "p-1", "u-1", "20", domain.PayoutStatusCompleted, nil)
	f.payout(t, "p-2", "u-1", "10", domain.PayoutStatusProcessing, nil)

	res, err := f.rec.Reconcile(ctx, "u-1")
	require.NoError(t, err)
	require.True(t, res.DiscrepancyFound)

	// Detection alone writes nothing
	u, err := f.store.Users.GetByID(ctx, nil, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "500", u.AvailableBalance.String())

	require.NoError(t, f.rec.Apply(ctx, res))

	again, err := f.rec.Reconcile(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, again.DiscrepancyFound)
	assert.Equal(t, "90.5", again.Stored.Available.String())
	assert.Equal(t, "10", again.Stored.Pending.String())
	assert.Equal(t, "120.5", again.Stored.Lifetime.String())
}

func TestApply_RefusesStaleSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("balances moved", func(t *testing.T) {
		f := newFixture(t)
		f.user("u-1", "1", "0", "0")
		f.earning(t, "st-1", "u-1", "50", domain.StatementStatusPublished, domain.PaymentStatusPaid, true)

		res, err := f.rec.Reconcile(ctx, "u-1")
		require.NoError(t, err)
		require.NoError(t, f.store.Users.UpdateBalances(ctx, nil, "u-1", domain.Balances{Available: dec("2")}))

		assert.ErrorIs(t, f.rec.Apply(ctx, res), domain.ErrStaleSnapshot)
	})

	t.Run("statement published in between", func(t *testing.T) {
		f := newFixture(t)
		f.user("u-1", "1", "0", "0")
		f.earning(t, "st-1", "u-1", "50", domain.StatementStatusPublished, domain.PaymentStatusPaid, true)

		res, err := f.rec.Reconcile(ctx, "u-1")
		require.NoError(t, err)
		f.earning(t, "st-2", "u-1", "25", domain.StatementStatusPublished, domain.PaymentStatusPaid, true)

		assert.ErrorIs(t, f.rec.Apply(ctx, res), domain.ErrStaleSnapshot)

		u, err := f.store.Users.GetByID(ctx, nil, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "1", u.AvailableBalance.String())
	})
}

func TestReconcileAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user("u-ok", "10", "0", "10")
	f.user("u-drift", "0", "0", "0")
	f.earning(t, "st-1", "u-ok", "10", domain.StatementStatusPublished, domain.PaymentStatusPaid, true)
	f.earning(t, "st-1", "u-drift", "7.25", domain.StatementStatusPublished, domain.PaymentStatusPaid, true)

	dry, found, err := f.rec.ReconcileAll(ctx, false)
	require.NoError(t, err)
	assert.False(t, dry.Apply)
	assert.Equal(t, 1, dry.Matched)
	assert.Equal(t, 1, dry.Unmatched)
	assert.Equal(t, 0, dry.Updated)
	require.Len(t, found, 1)
	assert.Equal(t, "u-drift", found[0].UserID)

	applied, _, err := f.rec.ReconcileAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, applied.Updated)
	assert.Equal(t, "ok", applied.Outcome())

	final, found, err := f.rec.ReconcileAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, final.Matched)
	assert.Empty(t, found)
}

func TestFixIncompletePayout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user("u-1", "100", "78.44", "178.44")
	f.payout(t, "p-1", "u-1", "78.44", domain.PayoutStatusApproved, nil)

	fix, err := f.rec.FixIncompletePayout(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusApproved, fix.Previous)
	assert.Equal(t, domain.PayoutStatusCancelled, fix.Payout.Status)
	assert.Equal(t, "178.44", fix.After.Available.String())
	assert.True(t, fix.After.Pending.IsZero())

	// A second run must not move money again
	_, err = f.rec.FixIncompletePayout(ctx, "p-1")
	assert.ErrorIs(t, err, domain.ErrPayoutAlreadyCancelled)

	u, err := f.store.Users.GetByID(ctx, nil, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "178.44", u.AvailableBalance.String())
	assert.True(t, u.PendingBalance.IsZero())
	assert.Equal(t, "178.44", u.LifetimeEarnings.String())
}

func TestFixIncompletePayout_Refusals(t *testing.T) {
	transfer := "tr_987"
	tests := []struct {
		name       string
		status     domain.PayoutStatus
		transferID *string
		payoutID   string
		wantErr    error
	}{
		{name: "unknown payout", status: domain.PayoutStatusApproved, payoutID: "missing", wantErr: domain.ErrPayoutNotFound},
		{name: "transfer already created", status: domain.PayoutStatusProcessing, transferID: &transfer, payoutID: "p-1", wantErr: domain.ErrPayoutHasTransfer},
		{name: "already cancelled", status: domain.PayoutStatusCancelled, payoutID: "p-1", wantErr: domain.ErrPayoutAlreadyCancelled},
		{name: "completed", status: domain.PayoutStatusCompleted, payoutID: "p-1", wantErr: domain.ErrPayoutInvalidTransition},
		{name: "pending request", status: domain.PayoutStatusPending, payoutID: "p-1", wantErr: domain.ErrPayoutInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.user("u-1", "10", "40", "50")
			f.payout(t, "p-1", "u-1", "40", tt.status, tt.transferID)

			_, err := f.rec.FixIncompletePayout(ctx, tt.payoutID)
			assert.ErrorIs(t, err, tt.wantErr)

			u, err := f.store.Users.GetByID(ctx, nil, "u-1")
			require.NoError(t, err)
			assert.Equal(t, "10", u.AvailableBalance.String())
			assert.Equal(t, "40", u.PendingBalance.String())

			p, err := f.store.Payouts.GetByID(ctx, nil, "p-1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, p.Status)
		})
	}
}
