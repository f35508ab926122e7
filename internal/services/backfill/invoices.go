package backfill

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/kevin07696/royalty-service/internal/services/payout"
	"github.com/kevin07696/royalty-service/internal/services/statement"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
)

// BackfillInvoices creates the receipts that are missing for COMPLETED
// payouts and for payees of PAID statements. Invoices are derived records;
// balances are not touched. Matched counts missing receipts, Skipped counts
// receipts that already exist.
func (s *Service) BackfillInvoices(ctx context.Context, apply bool) (*domain.Report, error) {
	return s.run(ctx, JobBackfillInvoices, apply, func(ctx context.Context, report *domain.Report) error {
		if err := s.payoutInvoices(ctx, apply, report); err != nil {
			return err
		}
		return s.statementInvoices(ctx, apply, report)
	})
}

func (s *Service) payoutInvoices(ctx context.Context, apply bool, report *domain.Report) error {
	completed, err := s.store.Payouts.ListByStatus(ctx, nil, domain.PayoutStatusCompleted)
	if err != nil {
		return fmt.Errorf("list completed payouts: %w", err)
	}
	for _, p := range completed {
		if err := ctx.Err(); err != nil {
			return err
		}
		exists, err := s.store.Invoices.ExistsForPayout(ctx, nil, p.ID)
		if err != nil {
			report.Fail(p.ID, err)
			continue
		}
		if exists {
			report.Skipped++
			continue
		}
		report.Matched++
		if !apply {
			continue
		}

		var created bool
		err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			created, err = payout.IssueInvoice(ctx, tx, s.store, p, timeutil.Now())
			return err
		})
		tally(report, "payout:"+p.ID, created, err)
	}
	return nil
}

func (s *Service) statementInvoices(ctx context.Context, apply bool, report *domain.Report) error {
	paid, err := s.store.Statements.List(ctx, nil, ports.StatementFilter{PaymentStatus: domain.PaymentStatusPaid})
	if err != nil {
		return fmt.Errorf("list paid statements: %w", err)
	}
	for _, st := range paid {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, err := s.store.Items.ListByStatement(ctx, nil, st.ID)
		if err != nil {
			report.Fail(st.ID, err)
			continue
		}
		totals := statement.PayeeTotals(items)
		userIDs := make([]string, 0, len(totals))
		for id := range totals {
			userIDs = append(userIDs, id)
		}
		sort.Strings(userIDs)

		for _, userID := range userIDs {
			ref := "statement:" + st.ID + ":" + userID
			exists, err := s.store.Invoices.ExistsForStatement(ctx, nil, st.ID, userID)
			if err != nil {
				report.Fail(ref, err)
				continue
			}
			if exists {
				report.Skipped++
				continue
			}
			report.Matched++
			if !apply {
				continue
			}

			issuedAt := timeutil.Now()
			if st.PaidAt != nil {
				issuedAt = *st.PaidAt
			}
			var created bool
			err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
				created, err = statement.IssueStatementInvoice(ctx, tx, s.store, st.ID, userID, totals[userID], issuedAt)
				return err
			})
			tally(report, ref, created, err)
		}
	}
	return nil
}

func tally(report *domain.Report, ref string, created bool, err error) {
	switch {
	case err != nil:
		report.Fail(ref, err)
	case created:
		report.Updated++
	default:
		report.Skipped++
	}
}
