package parser

import (
	"regexp"
	"time"

	"github.com/kevin07696/royalty-service/internal/domain"
	pkgerrors "github.com/kevin07696/royalty-service/pkg/errors"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
)

var mlcLayout = layout{aliases: map[field][]string{
	fieldTitle:            {"song title", "work title", "primary title", "title"},
	fieldRevenue:          {"royalty amount", "royalty payable", "net amount", "payable amount", "amount"},
	fieldPerformances:     {"units", "streams", "usage count", "quantity"},
	fieldWriter:           {"writer name", "writers", "writer"},
	fieldWriterIPI:        {"writer ipi", "ipi"},
	fieldPublisher:        {"publisher name", "member name", "payee name"},
	fieldPublisherIPI:     {"publisher ipi", "member ipi", "payee ipi"},
	fieldDSP:              {"dsp", "dsp name", "service provider", "service"},
	fieldShare:            {"share %", "ownership %", "share"},
	fieldTerritory:        {"territory", "country"},
	fieldPeriodStart:      {"usage period start", "usage start date", "usage start", "period start"},
	fieldPeriodEnd:        {"usage period end", "usage end date", "usage end", "period end"},
	fieldUsagePeriod:      {"usage period", "period"},
	fieldDistributionDate: {"distribution date", "payment date"},
}}

var (
	usageRangeSep = regexp.MustCompile(`\s+(?:-|to|–)\s+`)
	compactMonth  = regexp.MustCompile(`^(\d{4})(\d{2})$`)
)

// mlcRow keeps the distribution date and the usage window apart. MLC files
// report historical usage across many periods but one distribution event.
func mlcRow(r row, item *domain.ParsedStatementItem) ([]*pkgerrors.RowError, *pkgerrors.RowError) {
	var warnings []*pkgerrors.RowError
	item.Meta.DistributionDate = readDate(r, fieldDistributionDate, item.WorkTitle, &warnings)
	item.Meta.UsagePeriodStart = readDate(r, fieldPeriodStart, item.WorkTitle, &warnings)
	item.Meta.UsagePeriodEnd = readDate(r, fieldPeriodEnd, item.WorkTitle, &warnings)

	if item.Meta.UsagePeriodStart == nil && item.Meta.UsagePeriodEnd == nil {
		if raw := r.get(fieldUsagePeriod); raw != "" {
			start, end, ok := parseUsageRange(raw)
			if !ok {
				warnings = append(warnings, pkgerrors.NewRowError(r.number, item.WorkTitle,
					pkgerrors.CategoryInvalidDate, "unrecognized usage period "+raw))
			} else {
				item.Meta.UsagePeriodStart, item.Meta.UsagePeriodEnd = &start, &end
			}
		}
	}
	return warnings, nil
}

// parseUsageRange reads "2024-01-01 - 2024-03-31", "2024-01 to 2024-03" or a
// single month such as "202401"
func parseUsageRange(raw string) (time.Time, time.Time, bool) {
	parts := usageRangeSep.Split(raw, 2)
	if len(parts) == 2 {
		start, ok1 := timeutil.ParseFlexibleDate(parts[0])
		end, ok2 := timeutil.ParseFlexibleDate(parts[1])
		if !ok1 || !ok2 {
			return time.Time{}, time.Time{}, false
		}
		if isMonthOnly(parts[1]) {
			_, end = timeutil.MonthRange(end.Year(), end.Month())
		}
		return start, end, true
	}

	if m := compactMonth.FindStringSubmatch(raw); m != nil {
		if t, ok := timeutil.ParseFlexibleDate(m[1] + "-" + m[2]); ok {
			start, end := timeutil.MonthRange(t.Year(), t.Month())
			return start, end, true
		}
		return time.Time{}, time.Time{}, false
	}

	t, ok := timeutil.ParseFlexibleDate(raw)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if isMonthOnly(raw) {
		start, end := timeutil.MonthRange(t.Year(), t.Month())
		return start, end, true
	}
	return t, t, true
}

var monthOnly = regexp.MustCompile(`^\d{4}-\d{2}$|^\d{2}/\d{4}$`)

func isMonthOnly(s string) bool {
	return monthOnly.MatchString(s)
}

// readDate parses an optional date column; an unparseable value is a warning, not a skip
func readDate(r row, f field, title string, warnings *[]*pkgerrors.RowError) *time.Time {
	raw := r.get(f)
	if raw == "" {
		return nil
	}
	t, ok := timeutil.ParseFlexibleDate(raw)
	if !ok {
		*warnings = append(*warnings, pkgerrors.NewRowError(r.number, title, pkgerrors.CategoryInvalidDate,
			"unrecognized date "+raw))
		return nil
	}
	return &t
}
