package parser

import (
	"github.com/kevin07696/royalty-service/internal/domain"
	pkgerrors "github.com/kevin07696/royalty-service/pkg/errors"
)

// ascapLayout covers ASCAP and SESAC member exports, which share a shape
var ascapLayout = layout{aliases: map[field][]string{
	fieldTitle:            {"work title", "title", "song title", "composition title"},
	fieldRevenue:          {"dollars", "$ amount", "amount", "royalty amount", "total amount", "earnings"},
	fieldPerformances:     {"performances", "number of performances", "perf count", "plays"},
	fieldWriter:           {"member name", "writer name", "party name", "writer"},
	fieldWriterIPI:        {"member ipi", "writer ipi", "ipi number", "ipi"},
	fieldPublisher:        {"publisher name", "publisher"},
	fieldPublisherIPI:     {"publisher ipi", "publisher ipi number"},
	fieldDSP:              {"licensor", "music user", "service", "performance source", "source"},
	fieldShare:            {"work %", "share %", "% share", "share"},
	fieldTerritory:        {"territory", "country"},
	fieldPerformanceDate:  {"performance date", "survey date", "date"},
	fieldPeriodStart:      {"performance start date", "start date", "period start"},
	fieldPeriodEnd:        {"performance end date", "end date", "period end"},
	fieldDistributionDate: {"distribution date", "payment date"},
}}

// ascapRow reads whatever date columns the export carries. None of them is
// authoritative for the period; the extractor samples them.
func ascapRow(r row, item *domain.ParsedStatementItem) ([]*pkgerrors.RowError, *pkgerrors.RowError) {
	var warnings []*pkgerrors.RowError
	item.Meta.PerformanceDate = readDate(r, fieldPerformanceDate, item.WorkTitle, &warnings)
	item.Meta.UsagePeriodStart = readDate(r, fieldPeriodStart, item.WorkTitle, &warnings)
	item.Meta.UsagePeriodEnd = readDate(r, fieldPeriodEnd, item.WorkTitle, &warnings)
	item.Meta.DistributionDate = readDate(r, fieldDistributionDate, item.WorkTitle, &warnings)
	return warnings, nil
}
