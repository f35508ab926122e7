// Package aggregation groups matched statement rows into payee items and
// applies commission once per group.
package aggregation

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/kevin07696/royalty-service/internal/services/matcher"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Row is a parsed statement row with its payee resolution
type Row struct {
	Match matcher.Result
	Item  domain.ParsedStatementItem
}

// Outcome summarizes one aggregation write
type Outcome struct {
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalNet        decimal.Decimal `json:"total_net"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	Created         int             `json:"created"`
	Updated         int             `json:"updated"`
	Deleted         int             `json:"deleted"`
	Unchanged       int             `json:"unchanged"`
	Assigned        int             `json:"assigned"`
	Unassigned      int             `json:"unassigned"`
}

// Aggregator builds and persists StatementItems for one statement at a time
type Aggregator struct {
	items      ports.StatementItemRepository
	commission ports.CommissionResolver
	logger     *zap.Logger
	tolerance  decimal.Decimal
}

// NewAggregator creates an aggregator. A non-positive tolerance uses domain.DefaultTolerance.
func NewAggregator(
	items ports.StatementItemRepository,
	commission ports.CommissionResolver,
	tolerance decimal.Decimal,
	logger *zap.Logger,
) *Aggregator {
	if !tolerance.IsPositive() {
		tolerance = domain.DefaultTolerance
	}
	return &Aggregator{
		items:      items,
		commission: commission,
		logger:     logger.Named("aggregator"),
		tolerance:  tolerance,
	}
}

type group struct {
	item      *domain.StatementItem
	userID    *string
	keys      []string
	claims    []domain.Claim
	split     decimal.Decimal
	firstMeta matcher.Result
}

// Build groups rows by payee and normalized title, sums revenue per group and
// applies the payee's commission rate to the sum. Rows in one group must carry
// the same split percentage; mixing splits would make the stored split lie
// about part of the revenue, so it aborts the statement.
func (a *Aggregator) Build(ctx context.Context, statementID string, rows []Row, users map[string]*domain.User) ([]*domain.StatementItem, error) {
	groups := make(map[string]*group)
	order := make([]string, 0)

	for _, r := range rows {
		userID := r.Match.UserIDPtr()
		key := domain.GroupKey(userID, r.Item.WorkTitle)

		g, ok := groups[key]
		if !ok {
			g = &group{
				userID:    userID,
				split:     r.Item.SplitPercentage,
				firstMeta: r.Match,
				item: &domain.StatementItem{
					StatementID:     statementID,
					UserID:          userID,
					WorkTitle:       r.Item.WorkTitle,
					SplitPercentage: r.Item.SplitPercentage,
					Revenue:         decimal.Zero,
				},
			}
			groups[key] = g
			order = append(order, key)
		}
		if !g.split.Equal(r.Item.SplitPercentage) {
			return nil, domain.ErrMoneyInvariant.
				WithDetail("reason", "rows of one payee and work carry different split percentages").
				WithDetail("group", key).
				WithDetail("row", r.Item.RowIndex).
				WithDetail("split", r.Item.SplitPercentage.String()).
				WithDetail("expected_split", g.split.String())
		}

		g.item.Revenue = g.item.Revenue.Add(r.Item.Revenue)
		g.item.Metadata.Performances += r.Item.Performances
		g.item.Metadata.SourceRows = append(g.item.Metadata.SourceRows, r.Item.RowIndex)
		g.keys = append(g.keys, r.Item.IdentityKey())
		g.claims = appendClaim(g.claims, r.Item.Claim())
		if r.Match.Confidence.LessThan(g.firstMeta.Confidence) {
			g.firstMeta.Confidence = r.Match.Confidence
		}
	}

	sort.Strings(order)
	built := make([]*domain.StatementItem, 0, len(order))
	for _, key := range order {
		g := groups[key]
		item := g.item

		var payee *domain.User
		if g.userID != nil {
			payee = users[*g.userID]
			if payee == nil {
				return nil, domain.ErrUserNotFound.WithDetail("user_id", *g.userID)
			}
		}
		rate, err := a.commission.RateFor(ctx, payee)
		if err != nil {
			return nil, fmt.Errorf("resolve commission for %s: %w", key, err)
		}

		item.Revenue = domain.RoundMoney(item.Revenue)
		item.ApplyCommission(rate)
		item.IsVisibleToWriter = item.IsAssigned()
		item.Metadata.IdentityKeys = domain.SortedUnique(g.keys)
		item.Metadata.Claims = g.claims
		item.Metadata.MatchMethod = g.firstMeta.Method
		item.Metadata.MatchReason = g.firstMeta.Reason
		item.Metadata.MatchConfidence = g.firstMeta.Confidence
		item.Metadata.Candidates = g.firstMeta.Candidates
		if !item.IsAssigned() && item.Metadata.MatchMethod == "" {
			item.Metadata.MatchMethod = domain.MatchMethodNone
		}
		sort.Ints(item.Metadata.SourceRows)

		built = append(built, item)
	}
	return built, nil
}

func appendClaim(claims []domain.Claim, c domain.Claim) []domain.Claim {
	for _, existing := range claims {
		if existing == c {
			return claims
		}
	}
	return append(claims, c)
}

// ManualAssignments maps each identity key of an operator-assigned item to its
// user so reprocessing keeps manual corrections
func ManualAssignments(existing []*domain.StatementItem) map[string]string {
	out := make(map[string]string)
	for _, item := range existing {
		if item.Metadata.MatchMethod != domain.MatchMethodManual || !item.IsAssigned() {
			continue
		}
		for _, k := range item.Metadata.IdentityKeys {
			out[k] = *item.UserID
		}
	}
	return out
}

// ApplyManual overrides the match of rows whose identity key an operator assigned
func ApplyManual(rows []Row, manual map[string]string) []Row {
	if len(manual) == 0 {
		return rows
	}
	for i := range rows {
		if userID, ok := manual[rows[i].Item.IdentityKey()]; ok {
			rows[i].Match = matcher.Result{
				Outcome:    matcher.OutcomeMatched,
				UserID:     userID,
				Method:     domain.MatchMethodManual,
				Confidence: decimal.NewFromInt(1),
				Reason:     "kept operator assignment",
			}
		}
	}
	return rows
}

// Verify checks that item revenue adds up to the parsed total and that every
// item conserves its payee share
func (a *Aggregator) Verify(built []*domain.StatementItem, parsedTotal decimal.Decimal) error {
	total := decimal.Zero
	for _, item := range built {
		total = total.Add(item.Revenue)
		if !item.Conserves(a.tolerance) {
			return domain.ErrMoneyInvariant.
				WithDetail("reason", "net plus commission differs from payee share").
				WithDetail("work_title", item.WorkTitle).
				WithDetail("net", item.NetRevenue.String()).
				WithDetail("commission", item.CommissionAmount.String()).
				WithDetail("share", item.Gross().String())
		}
	}
	if !domain.WithinTolerance(total, parsedTotal, a.tolerance) {
		return domain.ErrMoneyInvariant.
			WithDetail("reason", "item revenue does not add up to parsed revenue").
			WithDetail("items_total", total.String()).
			WithDetail("parsed_total", parsedTotal.String())
	}
	return nil
}

// Persist reconciles the stored items of a statement with a freshly built set.
// Items are matched by group key: equal content is left alone, changed content
// is updated in place, new groups are created and stale ones removed. Running
// it twice with the same input writes nothing the second time.
func (a *Aggregator) Persist(ctx context.Context, tx ports.DBTX, statementID string, built []*domain.StatementItem) (*Outcome, error) {
	existing, err := a.items.ListByStatement(ctx, tx, statementID)
	if err != nil {
		return nil, fmt.Errorf("list items of statement %s: %w", statementID, err)
	}

	byKey := make(map[string]*domain.StatementItem, len(existing))
	var duplicates []*domain.StatementItem
	for _, item := range existing {
		key := item.GroupKey()
		if _, dup := byKey[key]; dup {
			duplicates = append(duplicates, item)
			continue
		}
		byKey[key] = item
	}

	out := &Outcome{TotalRevenue: decimal.Zero, TotalNet: decimal.Zero, TotalCommission: decimal.Zero}
	now := timeutil.Now()

	for _, item := range built {
		out.TotalRevenue = out.TotalRevenue.Add(item.Revenue)
		out.TotalNet = out.TotalNet.Add(item.NetRevenue)
		out.TotalCommission = out.TotalCommission.Add(item.CommissionAmount)
		if item.IsAssigned() {
			out.Assigned++
		} else {
			out.Unassigned++
		}

		key := item.GroupKey()
		prev, ok := byKey[key]
		if !ok {
			item.ID = uuid.New().String()
			item.CreatedAt, item.UpdatedAt = now, now
			if err := a.items.Create(ctx, tx, item); err != nil {
				return nil, fmt.Errorf("create item %q: %w", item.WorkTitle, err)
			}
			out.Created++
			continue
		}
		delete(byKey, key)

		item.ID, item.CreatedAt = prev.ID, prev.CreatedAt
		if prev.SameContent(item) {
			item.UpdatedAt = prev.UpdatedAt
			out.Unchanged++
			continue
		}
		item.UpdatedAt = now
		if err := a.items.Update(ctx, tx, item); err != nil {
			return nil, fmt.Errorf("update item %s: %w", item.ID, err)
		}
		out.Updated++
	}

	for _, stale := range byKey {
		duplicates = append(duplicates, stale)
	}
	for _, stale := range duplicates {
		if err := a.items.Delete(ctx, tx, stale.ID); err != nil {
			return nil, fmt.Errorf("delete stale item %s: %w", stale.ID, err)
		}
		out.Deleted++
	}

	a.logger.Info("statement items aggregated",
		zap.String("statement_id", statementID),
		zap.Int("created", out.Created),
		zap.Int("updated", out.Updated),
		zap.Int("deleted", out.Deleted),
		zap.Int("unchanged", out.Unchanged),
		zap.Int("unassigned", out.Unassigned),
		zap.String("total_revenue", out.TotalRevenue.String()),
	)
	return out, nil
}

// Aggregate runs Build, Verify and Persist for one statement inside the caller's transaction
func (a *Aggregator) Aggregate(
	ctx context.Context,
	tx ports.DBTX,
	statementID string,
	rows []Row,
	users map[string]*domain.User,
	parsedTotal decimal.Decimal,
) (*Outcome, error) {
	existing, err := a.items.ListByStatement(ctx, tx, statementID)
	if err != nil {
		return nil, fmt.Errorf("list items of statement %s: %w", statementID, err)
	}
	rows = ApplyManual(rows, ManualAssignments(existing))

	built, err := a.Build(ctx, statementID, rows, users)
	if err != nil {
		return nil, err
	}
	if err := a.Verify(built, parsedTotal); err != nil {
		a.logger.Error("aggregation aborted", zap.String("statement_id", statementID), zap.Error(err))
		return nil, err
	}
	return a.Persist(ctx, tx, statementID, built)
}
