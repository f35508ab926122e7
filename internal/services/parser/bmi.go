package parser

import (
	"github.com/kevin07696/royalty-service/internal/domain"
	pkgerrors "github.com/kevin07696/royalty-service/pkg/errors"
)

var bmiLayout = layout{aliases: map[field][]string{
	fieldTitle:        {"title name", "song title", "work title", "title"},
	fieldRevenue:      {"royalty amount", "current activity amt", "amount", "earnings", "royalty"},
	fieldPerformances: {"perf count", "performances", "performance count", "use count", "plays"},
	fieldWriter:       {"participant name", "writer name", "writer"},
	fieldWriterIPI:    {"participant ipi", "writer ipi", "ipi number", "ipi #", "ipi"},
	fieldPublisher:    {"publisher name", "publisher"},
	fieldPublisherIPI: {"publisher ipi", "publisher ipi number"},
	fieldDSP:          {"performance source", "source", "use type", "music user"},
	fieldShare:        {"participant %", "participant pct", "share %", "share", "ownership %"},
	fieldTerritory:    {"country of performance", "territory", "country"},
	fieldQuarter:      {"perf period", "performance period", "period", "quarter"},
}}

// bmiRow reads the five-character YYYYQ performance quarter. A malformed code
// keeps the row; the statement may still get its period from other rows or the filename.
func bmiRow(r row, item *domain.ParsedStatementItem) ([]*pkgerrors.RowError, *pkgerrors.RowError) {
	raw := r.get(fieldQuarter)
	if raw == "" {
		return nil, nil
	}
	code, ok := normalizeQuarterCode(raw)
	if !ok {
		return []*pkgerrors.RowError{
			pkgerrors.NewRowError(r.number, item.WorkTitle, pkgerrors.CategoryInvalidDate,
				"unrecognized quarter code "+raw),
		}, nil
	}
	item.Meta.QuarterCode = code
	return nil, nil
}
