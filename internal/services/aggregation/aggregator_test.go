package aggregation

import (
	"context"
	"testing"

	"github.com/kevin07696/royalty-service/internal/adapters/memory"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/kevin07696/royalty-service/internal/services/matcher"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func matched(userID string) matcher.Result {
	return matcher.Result{Outcome: matcher.OutcomeMatched, UserID: userID, Method: domain.MatchMethodWriterIPI, Confidence: dec("1")}
}

func unmatched() matcher.Result {
	return matcher.Result{Outcome: matcher.OutcomeUnmatched, Method: domain.MatchMethodNone, Confidence: decimal.Zero}
}

func parsed(row int, title, revenue, split, writerIPI, dsp string) domain.ParsedStatementItem {
	return domain.ParsedStatementItem{
		RowIndex:        row,
		WorkTitle:       title,
		Revenue:         dec(revenue),
		SplitPercentage: dec(split),
		Meta:            domain.ItemMeta{WriterIPI: writerIPI, DSP: dsp},
	}
}

type fixture struct {
	store ports.Store
	agg   *Aggregator
	users map[string]*domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.NewStore()
	st := mem.Ports()
	require.NoError(t, st.Statements.Create(context.Background(), nil, &domain.Statement{ID: "st-1"}))

	override := dec("0.10")
	users := map[string]*domain.User{
		"u-writer":   {ID: "u-writer", Role: domain.UserRoleWriter},
		"u-producer": {ID: "u-producer", Role: domain.UserRoleProducer},
		"u-vip":      {ID: "u-vip", Role: domain.UserRoleWriter, CommissionOverride: &override},
	}
	rates, err := NewTierCommission(dec("0.20"), map[domain.UserRole]decimal.Decimal{
		domain.UserRoleProducer: dec("0.25"),
	})
	require.NoError(t, err)

	return &fixture{
		store: st,
		agg:   NewAggregator(st.Items, rates, decimal.Zero, zaptest.NewLogger(t)),
		users: users,
	}
}

func sampleRows() []Row {
	return []Row{
		{Item: parsed(1, "Midnight Drive", "10.000001", "100", "11111111", "Spotify"), Match: matched("u-writer")},
		{Item: parsed(2, "midnight  drive", "0.333333", "100", "11111111", "Apple"), Match: matched("u-writer")},
		{Item: parsed(3, "Paper Hearts", "7.777777", "50", "22222222", "Spotify"), Match: matched("u-producer")},
		{Item: parsed(4, "Paper Hearts", "3.5", "100", "33333333", "Spotify"), Match: matched("u-vip")},
		{Item: parsed(5, "Unknown Song", "1.25", "100", "", "YouTube"), Match: unmatched()},
	}
}

func parsedTotal(rows []Row) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Item.Revenue)
	}
	return total
}

func TestBuild_GroupsAndAppliesCommissionOnce(t *testing.T) {
	f := newFixture(t)

	items, err := f.agg.Build(context.Background(), "st-1", sampleRows(), f.users)
	require.NoError(t, err)
	require.Len(t, items, 4)

	byKey := make(map[string]*domain.StatementItem)
	for _, item := range items {
		byKey[item.GroupKey()] = item
	}

	drive := byKey["u-writer|midnight drive"]
	require.NotNil(t, drive)
	assert.Equal(t, "10.333334", drive.Revenue.String())
	assert.Equal(t, "0.2", drive.CommissionRate.String())
	assert.Equal(t, "2.066667", drive.CommissionAmount.String())
	assert.Equal(t, "8.266667", drive.NetRevenue.String())
	assert.Equal(t, []int{1, 2}, drive.Metadata.SourceRows)
	assert.Len(t, drive.Metadata.IdentityKeys, 2)
	assert.True(t, drive.IsVisibleToWriter)

	hearts := byKey["u-producer|paper hearts"]
	require.NotNil(t, hearts)
	assert.Equal(t, "0.25", hearts.CommissionRate.String())
	assert.Equal(t, "3.888889", hearts.Gross().String())

	vip := byKey["u-vip|paper hearts"]
	require.NotNil(t, vip)
	assert.Equal(t, "0.1", vip.CommissionRate.String())
	assert.Equal(t, "3.15", vip.NetRevenue.String())

	orphan := byKey["unassigned|unknown song"]
	require.NotNil(t, orphan)
	assert.False(t, orphan.IsAssigned())
	assert.False(t, orphan.IsVisibleToWriter)
	assert.Equal(t, domain.MatchMethodNone, orphan.Metadata.MatchMethod)
}

func TestBuild_NetConservation(t *testing.T) {
	f := newFixture(t)
	rows := []Row{
		{Item: parsed(1, "A", "0.000001", "33.333", "", ""), Match: matched("u-producer")},
		{Item: parsed(2, "B", "123456.789012", "12.5", "", ""), Match: matched("u-writer")},
		{Item: parsed(3, "C", "-4.000003", "100", "", ""), Match: matched("u-vip")},
		{Item: parsed(4, "D", "0.999999", "66.67", "", ""), Match: unmatched()},
	}

	items, err := f.agg.Build(context.Background(), "st-1", rows, f.users)
	require.NoError(t, err)

	for _, item := range items {
		assert.True(t, item.NetRevenue.Add(item.CommissionAmount).Equal(item.Gross()), item.WorkTitle)
		assert.True(t, item.Conserves(decimal.Zero), item.WorkTitle)
	}
	assert.NoError(t, f.agg.Verify(items, parsedTotal(rows)))
}

func TestBuild_MixedSplitsAbort(t *testing.T) {
	f := newFixture(t)
	rows := []Row{
		{Item: parsed(1, "Song", "1", "50", "", ""), Match: matched("u-writer")},
		{Item: parsed(2, "Song", "1", "25", "", ""), Match: matched("u-writer")},
	}

	_, err := f.agg.Build(context.Background(), "st-1", rows, f.users)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMoneyInvariant)
}

func TestBuild_UnknownPayee(t *testing.T) {
	f := newFixture(t)
	rows := []Row{{Item: parsed(1, "Song", "1", "100", "", ""), Match: matched("u-ghost")}}

	_, err := f.agg.Build(context.Background(), "st-1", rows, f.users)

	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestVerify_DetectsShortTotals(t *testing.T) {
	f := newFixture(t)
	rows := sampleRows()

	items, err := f.agg.Build(context.Background(), "st-1", rows, f.users)
	require.NoError(t, err)

	err = f.agg.Verify(items, parsedTotal(rows).Add(dec("0.02")))
	assert.ErrorIs(t, err, domain.ErrMoneyInvariant)

	items[0].NetRevenue = items[0].NetRevenue.Add(dec("1"))
	err = f.agg.Verify(items, parsedTotal(rows))
	assert.ErrorIs(t, err, domain.ErrMoneyInvariant)
}

func TestAggregate_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rows := sampleRows()

	first, err := f.agg.Aggregate(ctx, nil, "st-1", rows, f.users, parsedTotal(rows))
	require.NoError(t, err)
	assert.Equal(t, 4, first.Created)
	assert.Equal(t, 3, first.Assigned)
	assert.Equal(t, 1, first.Unassigned)
	assert.True(t, first.TotalRevenue.Equal(parsedTotal(rows)))

	before, err := f.store.Items.ListByStatement(ctx, nil, "st-1")
	require.NoError(t, err)

	second, err := f.agg.Aggregate(ctx, nil, "st-1", sampleRows(), f.users, parsedTotal(rows))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 0, second.Deleted)
	assert.Equal(t, 4, second.Unchanged)

	after, err := f.store.Items.ListByStatement(ctx, nil, "st-1")
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.True(t, before[i].SameContent(after[i]))
	}
}

func TestAggregate_ReplacesChangedAndStaleGroups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rows := sampleRows()

	_, err := f.agg.Aggregate(ctx, nil, "st-1", rows, f.users, parsedTotal(rows))
	require.NoError(t, err)

	// The unknown song now resolves and the vip row disappears
	next := sampleRows()[:3]
	next = append(next, Row{Item: parsed(5, "Unknown Song", "1.25", "100", "", "YouTube"), Match: matched("u-writer")})

	out, err := f.agg.Aggregate(ctx, nil, "st-1", next, f.users, parsedTotal(next))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 2, out.Deleted)
	assert.Equal(t, 2, out.Unchanged)

	items, err := f.store.Items.ListByStatement(ctx, nil, "st-1")
	require.NoError(t, err)
	assert.Len(t, items, 3)
	for _, item := range items {
		assert.True(t, item.IsAssigned())
	}
}

func TestAggregate_KeepsManualAssignment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rows := sampleRows()

	_, err := f.agg.Aggregate(ctx, nil, "st-1", rows, f.users, parsedTotal(rows))
	require.NoError(t, err)

	// An operator assigns the orphan by hand
	items, err := f.store.Items.ListByStatement(ctx, nil, "st-1")
	require.NoError(t, err)
	for _, item := range items {
		if !item.IsAssigned() {
			uid := "u-producer"
			item.UserID = &uid
			item.Metadata.MatchMethod = domain.MatchMethodManual
			item.IsVisibleToWriter = true
			item.ApplyCommission(dec("0.25"))
			require.NoError(t, f.store.Items.Update(ctx, nil, item))
		}
	}

	out, err := f.agg.Aggregate(ctx, nil, "st-1", sampleRows(), f.users, parsedTotal(rows))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Unassigned)
	assert.Equal(t, 0, out.Created)
	assert.Equal(t, 0, out.Deleted)

	items, err = f.store.Items.ListByStatement(ctx, nil, "st-1")
	require.NoError(t, err)
	for _, item := range items {
		if domain.NormalizeTitle(item.WorkTitle) == "unknown song" {
			assert.Equal(t, "u-producer", item.GetUserID())
			assert.Equal(t, domain.MatchMethodManual, item.Metadata.MatchMethod)
		}
	}
}

func TestTierCommission(t *testing.T) {
	override := dec("0.05")
	rates, err := NewTierCommission(dec("0.20"), map[domain.UserRole]decimal.Decimal{
		domain.UserRolePublisher: dec("0.15"),
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		user *domain.User
		want string
	}{
		{name: "unassigned", user: nil, want: "0.2"},
		{name: "role tier", user: &domain.User{Role: domain.UserRolePublisher}, want: "0.15"},
		{name: "role without tier", user: &domain.User{Role: domain.UserRolePartner}, want: "0.2"},
		{name: "override", user: &domain.User{Role: domain.UserRolePublisher, CommissionOverride: &override}, want: "0.05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := rates.RateFor(context.Background(), tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rate.String())
		})
	}

	_, err = NewTierCommission(dec("1.5"), nil)
	assert.ErrorIs(t, err, domain.ErrValidationAmountInvalid)
}
