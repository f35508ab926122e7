package backfill

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/kevin07696/royalty-service/internal/services/matcher"
	"github.com/kevin07696/royalty-service/pkg/observability"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RelinkStatementItems re-matches the unassigned items of an unpaid statement
// against the current user directory using the claims stored on each item.
// An item that now resolves takes the payee's commission rate and becomes
// visible; if the payee already has an item for the same work the two are
// merged. The statement is relinked in one transaction.
func (s *Service) RelinkStatementItems(ctx context.Context, statementID string, apply bool) (*domain.Report, error) {
	return s.run(ctx, JobRelinkItems, apply, func(ctx context.Context, report *domain.Report) error {
		// counts are kept per attempt since a conflicting transaction is run again
		var (
			counted *domain.Report
			matches []matcher.Result
		)
		relink := func(ctx context.Context, tx pgx.Tx) (err error) {
			counted = domain.NewReport(report.Job, apply, report.StartedAt)
			matches, err = s.relink(ctx, tx, statementID, apply, counted)
			return err
		}
		run := s.store.Tx.WithReadOnlyTransaction
		if apply {
			run = s.store.Tx.WithTransaction
		}
		if err := run(ctx, relink); err != nil {
			return err
		}
		report.Merge(counted)
		for _, r := range matches {
			observability.RecordPayeeMatch(string(r.Outcome), string(r.Method))
		}
		return nil
	})
}

func (s *Service) relink(ctx context.Context, tx ports.DBTX, statementID string, apply bool, report *domain.Report) ([]matcher.Result, error) {
	load := s.store.Statements.GetByID
	if apply {
		load = s.store.Statements.GetForUpdate
	}
	st, err := load(ctx, tx, statementID)
	if err != nil {
		return nil, err
	}
	if st.IsPaid() {
		return nil, domain.ErrStatementInvalidState.
			WithDetail("statement_id", st.ID).
			WithDetail("reason", "paid statements are final")
	}

	items, err := s.store.Items.ListByStatement(ctx, tx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	m, users, err := s.newMatcher(ctx, tx)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*domain.StatementItem, len(items))
	for _, item := range items {
		byKey[item.GroupKey()] = item
	}

	var matches []matcher.Result
	now := timeutil.Now()
	for _, item := range items {
		if item.IsAssigned() {
			report.Skipped++
			continue
		}
		r := m.MatchAny(item.Metadata.Claims)
		matches = append(matches, r)
		if !r.Matched() {
			report.Unmatched++
			continue
		}
		report.Matched++
		if !apply {
			continue
		}

		rate, err := s.commission.RateFor(ctx, users[r.UserID])
		if err != nil {
			return nil, fmt.Errorf("resolve commission for %s: %w", r.UserID, err)
		}
		key := domain.GroupKey(r.UserIDPtr(), item.WorkTitle)

		target, merge := byKey[key]
		if merge {
			if !target.SplitPercentage.Equal(item.SplitPercentage) {
				report.Fail(item.ID, domain.ErrMoneyInvariant.
					WithDetail("reason", "payee item for this work carries a different split").
					WithDetail("target_item_id", target.ID))
				continue
			}
			absorb(target, item)
			target.ApplyCommission(rate)
			target.UpdatedAt = now
			if err := s.store.Items.Update(ctx, tx, target); err != nil {
				return nil, fmt.Errorf("update item %s: %w", target.ID, err)
			}
			if err := s.store.Items.Delete(ctx, tx, item.ID); err != nil {
				return nil, fmt.Errorf("delete merged item %s: %w", item.ID, err)
			}
		} else {
			item.UserID = r.UserIDPtr()
			item.ApplyCommission(rate)
			item.IsVisibleToWriter = true
			item.Metadata.MatchMethod = r.Method
			item.Metadata.MatchConfidence = r.Confidence
			item.Metadata.MatchReason = r.Reason
			item.Metadata.Candidates = nil
			item.UpdatedAt = now
			if err := s.store.Items.Update(ctx, tx, item); err != nil {
				return nil, fmt.Errorf("update item %s: %w", item.ID, err)
			}
			byKey[key] = item
		}
		report.Updated++
		s.logger.Info("statement item relinked",
			zap.String("statement_id", st.ID),
			zap.String("item_id", item.ID),
			zap.String("user_id", r.UserID),
			zap.String("method", string(r.Method)),
			zap.Bool("merged", merge))
	}

	if report.Updated == 0 {
		return matches, nil
	}
	return matches, s.refreshTotals(ctx, tx, st, now)
}

// absorb folds the revenue and provenance of src into dst. Commission must be
// recomputed by the caller.
func absorb(dst, src *domain.StatementItem) {
	dst.Revenue = domain.RoundMoney(dst.Revenue.Add(src.Revenue))
	dst.Metadata.Performances += src.Metadata.Performances
	dst.Metadata.IdentityKeys = domain.SortedUnique(append(dst.Metadata.IdentityKeys, src.Metadata.IdentityKeys...))
	dst.Metadata.SourceRows = append(dst.Metadata.SourceRows, src.Metadata.SourceRows...)
	sort.Ints(dst.Metadata.SourceRows)
	for _, c := range src.Metadata.Claims {
		if !hasClaim(dst.Metadata.Claims, c) {
			dst.Metadata.Claims = append(dst.Metadata.Claims, c)
		}
	}
	if src.Metadata.MatchConfidence.LessThan(dst.Metadata.MatchConfidence) {
		dst.Metadata.MatchConfidence = src.Metadata.MatchConfidence
	}
}

func hasClaim(claims []domain.Claim, c domain.Claim) bool {
	for _, existing := range claims {
		if existing == c {
			return true
		}
	}
	return false
}

func (s *Service) refreshTotals(ctx context.Context, tx ports.DBTX, st *domain.Statement, now time.Time) error {
	items, err := s.store.Items.ListByStatement(ctx, tx, st.ID)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	revenue, net, commission := decimal.Zero, decimal.Zero, decimal.Zero
	for _, item := range items {
		revenue = revenue.Add(item.Revenue)
		net = net.Add(item.NetRevenue)
		commission = commission.Add(item.CommissionAmount)
	}
	if !domain.WithinTolerance(revenue, st.TotalRevenue, domain.DefaultTolerance) {
		return domain.ErrMoneyInvariant.
			WithDetail("reason", "relinked items no longer add up to the statement revenue").
			WithDetail("statement_id", st.ID).
			WithDetail("items_total", revenue.String()).
			WithDetail("statement_total", st.TotalRevenue.String())
	}
	st.TotalNet = net
	st.TotalCommission = commission
	st.UpdatedAt = now
	if err := s.store.Statements.Update(ctx, tx, st); err != nil {
		return fmt.Errorf("update statement totals: %w", err)
	}
	return nil
}
