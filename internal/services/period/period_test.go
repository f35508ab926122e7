package period

import (
	"testing"
	"time"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestParseBMIQuarter(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		wantLabel string
		wantStart time.Time
		wantEnd   time.Time
		wantNil   bool
	}{
		{
			name:      "first quarter",
			code:      "20251",
			wantLabel: "Q1 2025",
			wantStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "fourth quarter",
			code:      "20244",
			wantLabel: "Q4 2024",
			wantStart: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		{name: "quarter digit out of range", code: "20255", wantNil: true},
		{name: "zero quarter", code: "20250", wantNil: true},
		{name: "too short", code: "2025", wantNil: true},
		{name: "not numeric", code: "abcd1", wantNil: true},
		{name: "empty", code: "", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseBMIQuarter(tt.code)
			if tt.wantNil {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tt.wantLabel, p.Label)
			assert.True(t, tt.wantStart.Equal(p.Start), "start %s", p.Start)
			assert.True(t, tt.wantEnd.Equal(p.End), "end %s", p.End)
		})
	}
}

func TestExtract_BMIUsesMostCommonQuarter(t *testing.T) {
	items := []domain.ParsedStatementItem{
		{Meta: domain.ItemMeta{QuarterCode: "20243"}},
		{Meta: domain.ItemMeta{QuarterCode: "20244"}},
		{Meta: domain.ItemMeta{QuarterCode: "20244"}},
		{Meta: domain.ItemMeta{QuarterCode: "20249"}},
		{Meta: domain.ItemMeta{QuarterCode: "20249"}},
		{Meta: domain.ItemMeta{QuarterCode: "20249"}},
	}

	p, strategy := Extract(domain.PROTypeBMI, items, "statement.csv")

	require.NotNil(t, p)
	assert.Equal(t, StrategyQuarterCode, strategy)
	assert.Equal(t, "Q4 2024", p.Label)
}

func TestExtract_BMIFallsBackToFilename(t *testing.T) {
	items := []domain.ParsedStatementItem{{Meta: domain.ItemMeta{QuarterCode: "20255"}}}

	p, strategy := Extract(domain.PROTypeBMI, items, "BMI_Q2_2025_writer.csv")

	require.NotNil(t, p)
	assert.Equal(t, StrategyFilename, strategy)
	assert.Equal(t, "Q2 2025", p.Label)
}

func TestExtract_MLC(t *testing.T) {
	t.Run("latest distribution date wins over usage", func(t *testing.T) {
		items := []domain.ParsedStatementItem{
			{Meta: domain.ItemMeta{
				DistributionDate: date(2025, time.March, 20),
				UsagePeriodStart: date(2024, time.October, 1),
				UsagePeriodEnd:   date(2024, time.December, 31),
			}},
			{Meta: domain.ItemMeta{DistributionDate: date(2025, time.April, 15)}},
		}

		p, strategy := Extract(domain.PROTypeMLC, items, "")

		require.NotNil(t, p)
		assert.Equal(t, StrategyDistributionDate, strategy)
		assert.Equal(t, "April 2025", p.Label)
		assert.True(t, date(2025, time.April, 1).Equal(p.Start))
		assert.True(t, date(2025, time.April, 30).Equal(p.End))
	})

	t.Run("usage window without distribution date", func(t *testing.T) {
		items := []domain.ParsedStatementItem{
			{Meta: domain.ItemMeta{UsagePeriodStart: date(2024, time.November, 1), UsagePeriodEnd: date(2024, time.November, 30)}},
			{Meta: domain.ItemMeta{UsagePeriodStart: date(2024, time.October, 1), UsagePeriodEnd: date(2024, time.October, 31)}},
			{Meta: domain.ItemMeta{UsagePeriodStart: date(2024, time.December, 1), UsagePeriodEnd: date(2024, time.December, 31)}},
		}

		p, strategy := Extract(domain.PROTypeMLC, items, "")

		require.NotNil(t, p)
		assert.Equal(t, StrategyUsageRange, strategy)
		assert.Equal(t, "Q4 2024", p.Label)
	})

	t.Run("nothing usable", func(t *testing.T) {
		p, strategy := Extract(domain.PROTypeMLC, []domain.ParsedStatementItem{{}}, "mlc_export.csv")

		assert.Nil(t, p)
		assert.Equal(t, StrategyNone, strategy)
	})
}

func TestExtract_ASCAPSamplesDates(t *testing.T) {
	items := []domain.ParsedStatementItem{
		{Meta: domain.ItemMeta{PerformanceDate: date(2025, time.February, 14)}},
		{Meta: domain.ItemMeta{PerformanceDate: date(2025, time.January, 3)}},
		{Meta: domain.ItemMeta{}},
		{Meta: domain.ItemMeta{PerformanceDate: date(2025, time.March, 9)}},
	}

	for _, pro := range []domain.PROType{domain.PROTypeASCAP, domain.PROTypeSESAC} {
		t.Run(string(pro), func(t *testing.T) {
			p, strategy := Extract(pro, items, "")

			require.NotNil(t, p)
			assert.Equal(t, StrategySampledDates, strategy)
			assert.Equal(t, "2025-01-03 to 2025-03-09", p.Label)
		})
	}
}

func TestExtract_ASCAPIgnoresRowsBeyondSample(t *testing.T) {
	items := make([]domain.ParsedStatementItem, sampleSize+1)
	items[sampleSize].Meta.PerformanceDate = date(2025, time.June, 1)

	p, strategy := Extract(domain.PROTypeASCAP, items, "ascap 2025-05.csv")

	require.NotNil(t, p)
	assert.Equal(t, StrategyFilename, strategy)
	assert.Equal(t, "May 2025", p.Label)
}

func TestFromFilename(t *testing.T) {
	tests := []struct {
		filename  string
		wantLabel string
	}{
		{filename: "Q1 2025 Statement.csv", wantLabel: "Q1 2025"},
		{filename: "bmi_q3-2024.xlsx", wantLabel: "Q3 2024"},
		{filename: "royalties 2024-Q2.csv", wantLabel: "Q2 2024"},
		{filename: "2023Q4.tsv", wantLabel: "Q4 2023"},
		{filename: "MLC March 2025.csv", wantLabel: "March 2025"},
		{filename: "mlc_sept_2024.csv", wantLabel: "September 2024"},
		{filename: "export_2025-02.csv", wantLabel: "February 2025"},
		{filename: "export_2025-13.csv"},
		{filename: "statement.csv"},
		{filename: "Q5 2025.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			p := FromFilename(tt.filename)
			if tt.wantLabel == "" {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tt.wantLabel, p.Label)
		})
	}
}

func TestExtract_OtherUsesFilenameOnly(t *testing.T) {
	items := []domain.ParsedStatementItem{{Meta: domain.ItemMeta{QuarterCode: "20251"}}}

	p, strategy := Extract(domain.PROTypeOther, items, "unknown.csv")

	assert.Nil(t, p)
	assert.Equal(t, StrategyNone, strategy)
}
