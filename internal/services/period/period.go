// Package period derives the reporting period of a statement from its rows or filename.
package period

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
)

// Strategy names the evidence a period was derived from
type Strategy string

const (
	StrategyQuarterCode      Strategy = "quarter_code"
	StrategyDistributionDate Strategy = "distribution_date"
	StrategyUsageRange       Strategy = "usage_range"
	StrategySampledDates     Strategy = "sampled_dates"
	StrategyFilename         Strategy = "filename"
	StrategyNone             Strategy = "none"
)

// sampleSize bounds how many rows are inspected for date-like values
const sampleSize = 100

// Extract tries the PRO-specific strategy first and falls back to the filename.
// A nil period means nothing usable was found; callers must surface that
// rather than default to the current date.
func Extract(pro domain.PROType, items []domain.ParsedStatementItem, filename string) (*domain.Period, Strategy) {
	var (
		p        *domain.Period
		strategy Strategy
	)
	switch pro {
	case domain.PROTypeBMI:
		p, strategy = fromQuarterCodes(items), StrategyQuarterCode
	case domain.PROTypeMLC:
		p, strategy = fromDistribution(items)
	case domain.PROTypeASCAP, domain.PROTypeSESAC:
		p, strategy = fromSampledDates(items), StrategySampledDates
	}
	if p != nil {
		return p, strategy
	}
	if p = FromFilename(filename); p != nil {
		return p, StrategyFilename
	}
	return nil, StrategyNone
}

// ParseBMIQuarter decodes a five-character YYYYQ code. Quarter digits
// outside 1-4 and malformed codes return nil.
func ParseBMIQuarter(code string) *domain.Period {
	code = strings.TrimSpace(code)
	if len(code) != 5 {
		return nil
	}
	year, err := strconv.Atoi(code[:4])
	if err != nil || year < 1900 {
		return nil
	}
	q := int(code[4] - '0')
	if q < 1 || q > 4 {
		return nil
	}
	return quarterPeriod(year, q)
}

// fromQuarterCodes picks the most common valid quarter code; ties go to the latest quarter
func fromQuarterCodes(items []domain.ParsedStatementItem) *domain.Period {
	counts := make(map[string]int)
	for _, item := range items {
		if ParseBMIQuarter(item.Meta.QuarterCode) != nil {
			counts[item.Meta.QuarterCode]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] > codes[j]
	})
	return ParseBMIQuarter(codes[0])
}

// fromDistribution prefers the distribution event over the usage window. When
// rows disagree on the distribution date the latest one is used.
func fromDistribution(items []domain.ParsedStatementItem) (*domain.Period, Strategy) {
	var latest *time.Time
	for _, item := range items {
		if d := item.Meta.DistributionDate; d != nil && (latest == nil || d.After(*latest)) {
			latest = d
		}
	}
	if latest != nil {
		start, end := timeutil.MonthRange(latest.Year(), latest.Month())
		return &domain.Period{Label: Label(start, end), Start: start, End: end}, StrategyDistributionDate
	}

	var start, end *time.Time
	for _, item := range items {
		if s := item.Meta.UsagePeriodStart; s != nil && (start == nil || s.Before(*start)) {
			start = s
		}
		if e := item.Meta.UsagePeriodEnd; e != nil && (end == nil || e.After(*end)) {
			end = e
		}
	}
	if start == nil || end == nil || end.Before(*start) {
		return nil, StrategyUsageRange
	}
	return &domain.Period{Label: Label(*start, *end), Start: *start, End: *end}, StrategyUsageRange
}

// fromSampledDates looks at every date the first rows carry and spans min to max
func fromSampledDates(items []domain.ParsedStatementItem) *domain.Period {
	if len(items) > sampleSize {
		items = items[:sampleSize]
	}
	var first, last *time.Time
	for _, item := range items {
		for _, d := range []*time.Time{
			item.Meta.PerformanceDate,
			item.Meta.UsagePeriodStart,
			item.Meta.UsagePeriodEnd,
			item.Meta.DistributionDate,
		} {
			if d == nil {
				continue
			}
			if first == nil || d.Before(*first) {
				first = d
			}
			if last == nil || d.After(*last) {
				last = d
			}
		}
	}
	if first == nil {
		return nil
	}
	return &domain.Period{Label: Label(*first, *last), Start: *first, End: *last}
}

var (
	quarterYear = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])Q([1-4])[\s_\-]*((?:19|20)\d{2})(?:[^0-9]|$)`)
	yearQuarter = regexp.MustCompile(`(?i)(?:^|[^0-9])((?:19|20)\d{2})[\s_\-]*Q([1-4])(?:[^0-9]|$)`)
	monthYear   = regexp.MustCompile(`(?i)(?:^|[^a-z])(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)[\s_\-]*((?:19|20)\d{2})(?:[^0-9]|$)`)
	yearMonth   = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})[\-_](0[1-9]|1[0-2])(?:[^0-9]|$)`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// FromFilename matches, in order, "Qn YYYY", "YYYY-Qn", "Month YYYY" and "YYYY-MM"
func FromFilename(filename string) *domain.Period {
	if m := quarterYear.FindStringSubmatch(filename); m != nil {
		q, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		return quarterPeriod(year, q)
	}
	if m := yearQuarter.FindStringSubmatch(filename); m != nil {
		year, _ := strconv.Atoi(m[1])
		q, _ := strconv.Atoi(m[2])
		return quarterPeriod(year, q)
	}
	if m := monthYear.FindStringSubmatch(filename); m != nil {
		month := monthNames[strings.ToLower(m[1])[:3]]
		year, _ := strconv.Atoi(m[2])
		return monthPeriod(year, month)
	}
	if m := yearMonth.FindStringSubmatch(filename); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return monthPeriod(year, time.Month(month))
	}
	return nil
}

// Label renders a period: "Q1 2025" for a calendar quarter, "January 2025"
// for a calendar month, otherwise the date range
func Label(start, end time.Time) string {
	start, end = timeutil.StartOfDay(start), timeutil.StartOfDay(end)
	q := timeutil.QuarterOf(start)
	if qs, qe := timeutil.QuarterRange(start.Year(), q); qs.Equal(start) && qe.Equal(end) {
		return fmt.Sprintf("Q%d %d", q, start.Year())
	}
	if ms, me := timeutil.MonthRange(start.Year(), start.Month()); ms.Equal(start) && me.Equal(end) {
		return fmt.Sprintf("%s %d", start.Month(), start.Year())
	}
	return start.Format("2006-01-02") + " to " + end.Format("2006-01-02")
}

func quarterPeriod(year, q int) *domain.Period {
	start, end := timeutil.QuarterRange(year, q)
	return &domain.Period{Label: fmt.Sprintf("Q%d %d", q, year), Start: start, End: end}
}

func monthPeriod(year int, month time.Month) *domain.Period {
	start, end := timeutil.MonthRange(year, month)
	return &domain.Period{Label: fmt.Sprintf("%s %d", month, year), Start: start, End: end}
}
