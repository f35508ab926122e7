package parser

import (
	"testing"
	"time"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const bmiStatement = `BMI Writer Royalty Statement
TITLE NAME,PARTICIPANT NAME,PARTICIPANT IPI,PERF PERIOD,PERFORMANCE SOURCE,PERF COUNT,ROYALTY AMOUNT
Midnight Drive,Jane Writer,00123456789,20251,RADIO,12,$1.234567
Midnight Drive,Jane Writer,00123456789,20251,STREAMING,1,"1,000.50"
,Jane Writer,00123456789,20251,RADIO,3,4.00
Broken Amount,Jane Writer,00123456789,20251,RADIO,3,abc
Refund Line,Jane Writer,00123456789,20251,RADIO,0,(2.50)
Midnight Drive,Jane Writer,00123456789,20251,RADIO,12,$1.234567
Odd Count,Jane Writer,00123456789,2025X,RADIO,many,0.000001
`

func TestParse_BMI(t *testing.T) {
	res, err := Parse([]byte(bmiStatement), "bmi_q1_2025.csv", domain.PROTypeBMI)
	require.NoError(t, err)

	require.Len(t, res.Items, 4)
	assert.Equal(t, "Midnight Drive", res.Items[0].WorkTitle)
	assert.Equal(t, "20251", res.Items[0].Meta.QuarterCode)
	assert.Equal(t, "Jane Writer", res.Items[0].Meta.WriterName)
	assert.Equal(t, "00123456789", res.Items[0].Meta.WriterIPI)
	assert.Equal(t, "RADIO", res.Items[0].Meta.DSP)
	assert.Equal(t, int64(12), res.Items[0].Performances)
	assert.True(t, decimal.NewFromInt(100).Equal(res.Items[0].SplitPercentage))

	assert.True(t, decimal.RequireFromString("1000.5").Equal(res.Items[1].Revenue))
	assert.True(t, decimal.RequireFromString("-2.5").Equal(res.Items[2].Revenue), "parentheses mark a negative adjustment")
	assert.Empty(t, res.Items[3].Meta.QuarterCode)
	assert.Equal(t, int64(0), res.Items[3].Performances)

	assert.True(t, decimal.RequireFromString("999.234568").Equal(res.TotalRevenue), "got %s", res.TotalRevenue)
	assert.Equal(t, int64(13), res.TotalPerformances)

	require.Len(t, res.RowErrors, 3)
	assert.Equal(t, 3, res.RowErrors[0].Row)
	assert.Equal(t, 4, res.RowErrors[1].Row)
	assert.Equal(t, "Broken Amount", res.RowErrors[1].Title)
	assert.Equal(t, 6, res.RowErrors[2].Row)
	assert.Contains(t, res.RowErrors[2].Reason, "duplicate of row 1")

	assert.Len(t, res.Warnings, 5)
	assert.Contains(t, res.Warnings, `skipped row 4 ("Broken Amount"): invalid amount "abc"`)

	assert.Equal(t, domain.RawMetadataVersion, res.Metadata.Version)
	assert.Equal(t, 4, res.Metadata.KeptRows)
	assert.Equal(t, 3, res.Metadata.SkippedRows)
	assert.Len(t, res.Metadata.Records, 7)
	assert.Equal(t, "TITLE NAME", res.Metadata.Header[0])
}

func TestParse_TotalsAreExactSumOfKeptRows(t *testing.T) {
	content := "Title,Amount\n"
	expected := decimal.Zero
	for i := 0; i < 5000; i++ {
		content += "Tiny Song " + decimal.NewFromInt(int64(i)).String() + ",0.000173\n"
		expected = expected.Add(decimal.RequireFromString("0.000173"))
	}

	res, err := Parse([]byte(content), "micro.csv", domain.PROTypeBMI)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, item := range res.Items {
		sum = sum.Add(item.Revenue)
	}
	assert.True(t, expected.Equal(res.TotalRevenue))
	assert.True(t, sum.Equal(res.TotalRevenue))
	assert.Equal(t, "0.865", res.TotalRevenue.String())
}

func TestParse_ASCAPTabDelimitedWithBOM(t *testing.T) {
	content := "\ufeffWork Title\tMember Name\tIPI Number\tLicensor\tPerformances\tDollars\tPerformance Date\n" +
		"Summer Song\tJohn Smith\t123-456-789\tSpotify\t100\t0.123456\t2025-02-14\n" +
		"Summer Song\tJohn Smith\t123-456-789\tApple\t50\t0.000004\t03/01/2025\n" +
		"Winter Song\tJohn Smith\t123-456-789\tSpotify\t10\t5\tnot a date\n"

	for _, pro := range []domain.PROType{domain.PROTypeASCAP, domain.PROTypeSESAC} {
		t.Run(string(pro), func(t *testing.T) {
			res, err := Parse([]byte(content), "ascap.tsv", pro)
			require.NoError(t, err)

			require.Len(t, res.Items, 3)
			assert.Equal(t, "123-456-789", res.Items[0].Meta.WriterIPI)
			assert.Equal(t, "Spotify", res.Items[0].Meta.DSP)
			require.NotNil(t, res.Items[0].Meta.PerformanceDate)
			assert.Equal(t, time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), *res.Items[0].Meta.PerformanceDate)
			require.NotNil(t, res.Items[1].Meta.PerformanceDate)
			assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *res.Items[1].Meta.PerformanceDate)
			assert.Nil(t, res.Items[2].Meta.PerformanceDate)

			assert.True(t, decimal.RequireFromString("5.12346").Equal(res.TotalRevenue))
			assert.Empty(t, res.RowErrors)
			require.Len(t, res.Warnings, 1)
			assert.Contains(t, res.Warnings[0], "Winter Song")
		})
	}
}

func TestParse_MLCKeepsDistributionAndUsageApart(t *testing.T) {
	content := "Song Title;Writer Name;Publisher Name;Publisher IPI;DSP;Usage Period;Distribution Date;Units;Royalty Amount\n" +
		"Neon Lights;A. Writer;Pub Co;00987654321;Spotify;2024-01 - 2024-03;2025-04-20;1000;3.141592\n" +
		"Neon Lights;A. Writer;Pub Co;00987654321;Amazon;202402;2025-04-20;10;0.000001\n"

	res, err := Parse([]byte(content), "mlc_april.csv", domain.PROTypeMLC)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	first := res.Items[0].Meta
	require.NotNil(t, first.DistributionDate)
	require.NotNil(t, first.UsagePeriodStart)
	require.NotNil(t, first.UsagePeriodEnd)
	assert.Equal(t, time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC), *first.DistributionDate)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *first.UsagePeriodStart)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), *first.UsagePeriodEnd)

	second := res.Items[1].Meta
	require.NotNil(t, second.UsagePeriodStart)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), *second.UsagePeriodStart)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), *second.UsagePeriodEnd)

	assert.Equal(t, "Pub Co", first.PublisherName)
	assert.Equal(t, "neon lights|987654321|spotify", res.Items[0].IdentityKey())
	assert.Equal(t, int64(1010), res.TotalPerformances)
}

func TestParse_Workbook(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Title", "Writer", "Amount"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Track One", "Jane", "10.5"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"Track Two", "Jane", "0.25"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := Parse(buf.Bytes(), "statement.xlsx", domain.PROTypeBMI)
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, "Track Two", res.Items[1].WorkTitle)
	assert.True(t, decimal.RequireFromString("10.75").Equal(res.TotalRevenue))
}

func TestParse_Failures(t *testing.T) {
	t.Run("unsupported PRO is fatal", func(t *testing.T) {
		_, err := Parse([]byte(bmiStatement), "x.csv", domain.PROTypeOther)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnsupportedPRO)
	})

	t.Run("no header row", func(t *testing.T) {
		_, err := Parse([]byte("a,b,c\n1,2,3\n"), "x.csv", domain.PROTypeBMI)
		require.Error(t, err)
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeStatementUnreadable))
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := Parse([]byte("   \n"), "x.csv", domain.PROTypeMLC)
		require.Error(t, err)
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeStatementUnreadable))
	})

	t.Run("short row is skipped", func(t *testing.T) {
		res, err := Parse([]byte("Title,Writer,Amount\nOnly Title\nGood,Jane,1\n"), "x.csv", domain.PROTypeBMI)
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		require.Len(t, res.RowErrors, 1)
		assert.Equal(t, 1, res.RowErrors[0].Row)
	})

	t.Run("unclosed quote only loses its own row", func(t *testing.T) {
		content := "Title,Writer,Amount\nA Song,Jane,1.00\n\"Broken Title,Jane,2.00\nGood One,Jane,3.00\nGood Two,Jane,4.00\n"
		res, err := Parse([]byte(content), "x.csv", domain.PROTypeBMI)
		require.NoError(t, err)

		require.Len(t, res.Items, 3)
		assert.Equal(t, "Good One", res.Items[1].WorkTitle)
		assert.Equal(t, "Good Two", res.Items[2].WorkTitle)
		assert.True(t, decimal.RequireFromString("8").Equal(res.TotalRevenue), "got %s", res.TotalRevenue)

		require.Len(t, res.RowErrors, 1)
		assert.Equal(t, 2, res.RowErrors[0].Row)
		assert.NotContains(t, res.RowErrors[0].Title, "Good One")
	})

	t.Run("quoted field spanning lines stays one row", func(t *testing.T) {
		content := "Title,Writer,Amount\n\"Two\nLines\",Jane,5.00\nAfter,Jane,1.00\n"
		res, err := Parse([]byte(content), "x.csv", domain.PROTypeBMI)
		require.NoError(t, err)

		require.Len(t, res.Items, 2)
		assert.Equal(t, "Two\nLines", res.Items[0].WorkTitle)
		assert.Empty(t, res.RowErrors)
	})

	t.Run("share outside range is skipped", func(t *testing.T) {
		res, err := Parse([]byte("Title,Share,Amount\nA,150,1\nB,50%,2\n"), "x.csv", domain.PROTypeBMI)
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.True(t, decimal.NewFromInt(50).Equal(res.Items[0].SplitPercentage))
	})
}

func TestParseMetadata_ReproducesItems(t *testing.T) {
	first, err := Parse([]byte(bmiStatement), "bmi.csv", domain.PROTypeBMI)
	require.NoError(t, err)

	again, err := ParseMetadata(first.Metadata, domain.PROTypeBMI)
	require.NoError(t, err)

	assert.Equal(t, first.Items, again.Items)
	assert.Equal(t, first.Warnings, again.Warnings)
	assert.True(t, first.TotalRevenue.Equal(again.TotalRevenue))

	_, err = ParseMetadata(domain.RawMetadata{}, domain.PROTypeBMI)
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "$1,234.50", want: "1234.5"},
		{input: "(3.00)", want: "-3"},
		{input: "2.5-", want: "-2.5"},
		{input: "USD 12", want: "12"},
		{input: "0.0000004", want: "0"},
		{input: "0.0000005", want: "0.000001"},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    rune
	}{
		{name: "comma", content: "a,b,c\n1,2,3\n", want: ','},
		{name: "tab", content: "a\tb\tc\n1\t2\t3\n", want: '\t'},
		{name: "semicolon with quoted commas", content: "a;\"b,c,d\";e\n1;\"2,3\";4\n", want: ';'},
		{name: "pipe", content: "a|b|c\n", want: '|'},
		{name: "single column defaults to comma", content: "title\nsong\n", want: ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sniffDelimiter([]byte(tt.content)))
		})
	}
}

func TestNormalizeQuarterCode(t *testing.T) {
	code, ok := normalizeQuarterCode("2025-Q3")
	assert.True(t, ok)
	assert.Equal(t, "20253", code)

	code, ok = normalizeQuarterCode("20255")
	assert.True(t, ok, "digit range is checked by period extraction")
	assert.Equal(t, "20255", code)

	_, ok = normalizeQuarterCode("Q3")
	assert.False(t, ok)
}
