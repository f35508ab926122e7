// Package statement orchestrates a statement from upload to payment:
// ingest, process, publish and mark paid.
package statement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/kevin07696/royalty-service/internal/services/aggregation"
	"github.com/kevin07696/royalty-service/internal/services/matcher"
	"github.com/kevin07696/royalty-service/internal/services/parser"
	"github.com/kevin07696/royalty-service/internal/services/period"
	"github.com/kevin07696/royalty-service/pkg/observability"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config tunes processing
type Config struct {
	Tolerance decimal.Decimal
	Matcher   matcher.Config
}

// IngestResult is what the operator sees after an upload
type IngestResult struct {
	Statement *domain.Statement `json:"statement"`
	Strategy  period.Strategy   `json:"period_strategy"`
	Warnings  []string          `json:"warnings"`
}

// ProcessResult summarizes matching and aggregation of one statement
type ProcessResult struct {
	Aggregation *aggregation.Outcome `json:"aggregation"`
	Warnings    []string             `json:"warnings"`
	Matched     int                  `json:"matched_rows"`
	Ambiguous   int                  `json:"ambiguous_rows"`
	Unmatched   int                  `json:"unmatched_rows"`
}

// Service implements the statement lifecycle
type Service struct {
	store      ports.Store
	aggregator *aggregation.Aggregator
	logger     *zap.Logger
	cfg        Config
}

// NewService creates a new statement service
func NewService(store ports.Store, commission ports.CommissionResolver, cfg Config, logger *zap.Logger) *Service {
	if !cfg.Tolerance.IsPositive() {
		cfg.Tolerance = domain.DefaultTolerance
	}
	return &Service{
		store:      store,
		aggregator: aggregation.NewAggregator(store.Items, commission, cfg.Tolerance, logger),
		logger:     logger.Named("statement"),
		cfg:        cfg,
	}
}

// Ingest parses an uploaded file and stores it as a DRAFT statement together
// with its raw rows. No items are written until Process runs.
func (s *Service) Ingest(ctx context.Context, content []byte, filename string, pro domain.PROType) (*IngestResult, error) {
	parsed, err := parser.Parse(content, filename, pro)
	if err != nil {
		s.logger.Warn("statement rejected",
			zap.String("filename", filename),
			zap.String("pro_type", string(pro)),
			zap.Error(err))
		return nil, err
	}
	observability.RecordStatementRows(string(pro), len(parsed.Items), len(parsed.RowErrors))

	p, strategy := period.Extract(pro, parsed.Items, filename)
	now := timeutil.Now()
	parsed.Metadata.ParsedAt = now

	st := &domain.Statement{
		ID:              uuid.New().String(),
		Filename:        filename,
		PROType:         pro,
		Status:          domain.StatementStatusDraft,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		TotalRevenue:    parsed.TotalRevenue,
		TotalNet:        decimal.Zero,
		TotalCommission: decimal.Zero,
		Metadata:        parsed.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	st.SetPeriod(p)

	err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.store.Statements.Create(ctx, tx, st)
	})
	if err != nil {
		return nil, fmt.Errorf("create statement: %w", err)
	}

	for _, w := range parsed.Warnings {
		s.logger.Warn("statement row", zap.String("statement_id", st.ID), zap.String("warning", w))
	}
	if p == nil {
		observability.RecordMissingPeriod(string(pro))
		s.logger.Warn("no reporting period found; statement needs operator follow-up",
			zap.String("statement_id", st.ID),
			zap.String("filename", filename))
	}
	s.logger.Info("statement ingested",
		zap.String("statement_id", st.ID),
		zap.String("pro_type", string(pro)),
		zap.Int("kept_rows", len(parsed.Items)),
		zap.Int("skipped_rows", len(parsed.RowErrors)),
		zap.String("total_revenue", parsed.TotalRevenue.String()),
		zap.String("period_strategy", string(strategy)))

	return &IngestResult{Statement: st, Strategy: strategy, Warnings: parsed.Warnings}, nil
}

// Process re-parses the stored rows, matches payees and writes the statement
// items. It may run any number of times before the statement is paid.
func (s *Service) Process(ctx context.Context, statementID string) (*ProcessResult, error) {
	var (
		res  *ProcessResult
		rows []aggregation.Row
	)
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		st, err := s.store.Statements.GetForUpdate(ctx, tx, statementID)
		if err != nil {
			return err
		}
		if st.IsPaid() {
			return domain.ErrStatementInvalidState.
				WithDetail("statement_id", st.ID).
				WithDetail("reason", "paid statements are final")
		}

		parsed, err := parser.ParseMetadata(st.Metadata, st.PROType)
		if err != nil {
			return err
		}
		users, err := s.store.Users.List(ctx, tx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		var counts *ProcessResult
		rows, counts = matchRows(matcher.New(users, s.cfg.Matcher), parsed.Items)
		outcome, err := s.aggregator.Aggregate(ctx, tx, st.ID, rows, indexUsers(users), parsed.TotalRevenue)
		if err != nil {
			return err
		}

		st.TotalRevenue = outcome.TotalRevenue
		st.TotalNet = outcome.TotalNet
		st.TotalCommission = outcome.TotalCommission
		st.UpdatedAt = timeutil.Now()
		if err := s.store.Statements.Update(ctx, tx, st); err != nil {
			return fmt.Errorf("update statement totals: %w", err)
		}

		counts.Aggregation = outcome
		counts.Warnings = parsed.Warnings
		res = counts
		return nil
	})
	if err != nil {
		s.logger.Error("statement processing failed", zap.String("statement_id", statementID), zap.Error(err))
		return nil, err
	}

	for _, row := range rows {
		observability.RecordPayeeMatch(string(row.Match.Outcome), string(row.Match.Method))
	}
	s.logger.Info("statement processed",
		zap.String("statement_id", statementID),
		zap.Int("matched_rows", res.Matched),
		zap.Int("ambiguous_rows", res.Ambiguous),
		zap.Int("unmatched_rows", res.Unmatched))
	return res, nil
}

func matchRows(m *matcher.Matcher, items []domain.ParsedStatementItem) ([]aggregation.Row, *ProcessResult) {
	counts := &ProcessResult{}
	rows := make([]aggregation.Row, len(items))
	for i, item := range items {
		r := m.Match(item.Claim())
		switch r.Outcome {
		case matcher.OutcomeMatched:
			counts.Matched++
		case matcher.OutcomeAmbiguous:
			counts.Ambiguous++
		default:
			counts.Unmatched++
		}
		rows[i] = aggregation.Row{Item: item, Match: r}
	}
	return rows, counts
}

func indexUsers(users []*domain.User) map[string]*domain.User {
	out := make(map[string]*domain.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out
}

// Publish makes a processed DRAFT statement visible. The stored items must add
// up to the statement's revenue.
func (s *Service) Publish(ctx context.Context, statementID string) (*domain.Statement, error) {
	var published *domain.Statement
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		st, err := s.store.Statements.GetForUpdate(ctx, tx, statementID)
		if err != nil {
			return err
		}
		if st.Status != domain.StatementStatusDraft {
			return domain.ErrStatementInvalidState.
				WithDetail("statement_id", st.ID).
				WithDetail("status", string(st.Status))
		}
		items, err := s.store.Items.ListByStatement(ctx, tx, st.ID)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		if len(items) == 0 {
			return domain.ErrStatementInvalidState.
				WithDetail("statement_id", st.ID).
				WithDetail("reason", "statement has no items; process it first")
		}
		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.Revenue)
		}
		if !domain.WithinTolerance(total, st.TotalRevenue, s.cfg.Tolerance) {
			return domain.ErrMoneyInvariant.
				WithDetail("statement_id", st.ID).
				WithDetail("items_total", total.String()).
				WithDetail("statement_total", st.TotalRevenue.String())
		}

		now := timeutil.Now()
		st.Status = domain.StatementStatusPublished
		st.PublishedAt = &now
		st.UpdatedAt = now
		if err := s.store.Statements.Update(ctx, tx, st); err != nil {
			return fmt.Errorf("publish statement: %w", err)
		}
		published = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("statement published", zap.String("statement_id", statementID))
	return published, nil
}

// MarkPaid credits every visible assigned item of a published statement to
// its payee's available balance and lifetime earnings, and issues one
// statement invoice per payee.
func (s *Service) MarkPaid(ctx context.Context, statementID string) (*domain.Statement, error) {
	var (
		paid    *domain.Statement
		credits map[string]decimal.Decimal
	)
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		st, err := s.store.Statements.GetForUpdate(ctx, tx, statementID)
		if err != nil {
			return err
		}
		if !st.IsPublished() || st.IsPaid() {
			return domain.ErrStatementInvalidState.
				WithDetail("statement_id", st.ID).
				WithDetail("status", string(st.Status)).
				WithDetail("payment_status", string(st.PaymentStatus))
		}

		items, err := s.store.Items.ListByStatement(ctx, tx, st.ID)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		credits = PayeeTotals(items)

		now := timeutil.Now()
		userIDs := make([]string, 0, len(credits))
		for id := range credits {
			userIDs = append(userIDs, id)
		}
		sort.Strings(userIDs)
		for _, userID := range userIDs {
			amount := credits[userID]
			user, err := s.store.Users.GetForUpdate(ctx, tx, userID)
			if err != nil {
				return err
			}
			b := user.Balances()
			b.Available = b.Available.Add(amount)
			b.Lifetime = b.Lifetime.Add(amount)
			if err := s.store.Users.UpdateBalances(ctx, tx, userID, b); err != nil {
				return fmt.Errorf("credit %s: %w", userID, err)
			}
			if _, err := IssueStatementInvoice(ctx, tx, s.store, st.ID, userID, amount, now); err != nil {
				return err
			}
		}

		st.PaymentStatus = domain.PaymentStatusPaid
		st.PaidAt = &now
		st.UpdatedAt = now
		if err := s.store.Statements.Update(ctx, tx, st); err != nil {
			return fmt.Errorf("mark statement paid: %w", err)
		}
		paid = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("statement paid",
		zap.String("statement_id", statementID),
		zap.Int("payees", len(credits)))
	return paid, nil
}

// PayeeTotals sums the net revenue of visible assigned items per user
func PayeeTotals(items []*domain.StatementItem) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, item := range items {
		if !item.IsAssigned() || !item.IsVisibleToWriter {
			continue
		}
		id := item.GetUserID()
		out[id] = out[id].Add(item.NetRevenue)
	}
	return out
}

// IssueStatementInvoice creates the statement receipt of a payee unless it
// exists. It reports whether an invoice was written.
func IssueStatementInvoice(ctx context.Context, tx ports.DBTX, store ports.Store, statementID, userID string, amount decimal.Decimal, now time.Time) (bool, error) {
	exists, err := store.Invoices.ExistsForStatement(ctx, tx, statementID, userID)
	if err != nil {
		return false, fmt.Errorf("check statement invoice: %w", err)
	}
	if exists {
		return false, nil
	}
	sid := statementID
	inv := &domain.Invoice{
		ID:          uuid.New().String(),
		UserID:      userID,
		StatementID: &sid,
		Kind:        domain.InvoiceKindStatement,
		Number:      domain.InvoiceNumber(domain.InvoiceKindStatement, statementID, userID),
		Amount:      amount,
		IssuedAt:    now,
	}
	if err := store.Invoices.Create(ctx, tx, inv); err != nil {
		return false, fmt.Errorf("create statement invoice: %w", err)
	}
	return true, nil
}

// Get returns a statement with its items
func (s *Service) Get(ctx context.Context, statementID string) (*domain.Statement, []*domain.StatementItem, error) {
	st, err := s.store.Statements.GetByID(ctx, nil, statementID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.Items.ListByStatement(ctx, nil, statementID)
	if err != nil {
		return nil, nil, fmt.Errorf("list items: %w", err)
	}
	return st, items, nil
}
