// Package parser normalizes PRO statement exports into canonical items.
//
// Each PRO format is a pure function over the decoded rows. Malformed rows are
// skipped and reported as warnings; only an unknown PRO type or an unreadable
// file fails the whole parse.
package parser

import (
	"strconv"
	"strings"

	"github.com/kevin07696/royalty-service/internal/domain"
	pkgerrors "github.com/kevin07696/royalty-service/pkg/errors"
	"github.com/shopspring/decimal"
)

// Result is the normalized content of one statement file
type Result struct {
	TotalRevenue      decimal.Decimal
	Items             []domain.ParsedStatementItem
	Warnings          []string
	RowErrors         []*pkgerrors.RowError
	Metadata          domain.RawMetadata
	TotalPerformances int64
}

// rowFunc fills the PRO-specific parts of an item. A returned error skips the row;
// warnings keep it.
type rowFunc func(r row, item *domain.ParsedStatementItem) (warnings []*pkgerrors.RowError, err *pkgerrors.RowError)

type format struct {
	layout layout
	row    rowFunc
}

// formats is the PRO type dispatch table. OTHER has no entry on purpose.
var formats = map[domain.PROType]format{
	domain.PROTypeBMI:   {layout: bmiLayout, row: bmiRow},
	domain.PROTypeASCAP: {layout: ascapLayout, row: ascapRow},
	domain.PROTypeSESAC: {layout: ascapLayout, row: ascapRow},
	domain.PROTypeMLC:   {layout: mlcLayout, row: mlcRow},
}

// Supports reports whether a parser exists for the PRO type
func Supports(pro domain.PROType) bool {
	_, ok := formats[pro]
	return ok
}

// Parse decodes raw file content and normalizes it for the given PRO
func Parse(content []byte, filename string, pro domain.PROType) (*Result, error) {
	if !Supports(pro) {
		return nil, domain.ErrUnsupportedPRO.WithDetail("pro_type", string(pro))
	}
	src, err := ReadRows(content, filename)
	if err != nil {
		return nil, err
	}
	return ParseSource(src.Records, filename, pro)
}

// ParseSource normalizes already decoded records. Reprocessing a stored
// statement goes through here with the records kept in its raw metadata.
func ParseSource(records [][]string, filename string, pro domain.PROType) (*Result, error) {
	f, ok := formats[pro]
	if !ok {
		return nil, domain.ErrUnsupportedPRO.WithDetail("pro_type", string(pro))
	}

	headerAt, cols, found := f.layout.locateHeader(records)
	if !found {
		return nil, domain.ErrStatementUnreadable.
			WithDetail("reason", "no header row with title and revenue columns").
			WithDetail("pro_type", string(pro))
	}
	header := records[headerAt]
	data := records[headerAt+1:]

	res := &Result{
		TotalRevenue: decimal.Zero,
		Items:        make([]domain.ParsedStatementItem, 0, len(data)),
	}
	seen := make(map[string]int, len(data))

	for i, rec := range data {
		if isBlank(rec) {
			continue
		}
		r := row{cols: cols, record: rec, number: i + 1}
		title := r.get(fieldTitle)

		fingerprint := strings.Join(rec, "\x1f")
		if first, dup := seen[fingerprint]; dup {
			res.skip(pkgerrors.NewRowError(r.number, title, pkgerrors.CategoryDuplicateRow,
				"exact duplicate of row "+strconv.Itoa(first)))
			continue
		}
		seen[fingerprint] = r.number

		item, warnings, rowErr := normalizeRow(r, f.row)
		res.warn(warnings...)
		if rowErr != nil {
			res.skip(rowErr)
			continue
		}
		res.keep(*item)
	}

	res.Metadata = domain.RawMetadata{
		Version:           domain.RawMetadataVersion,
		Source:            filename,
		Header:            header,
		Records:           data,
		Warnings:          res.Warnings,
		KeptRows:          len(res.Items),
		SkippedRows:       res.skipped(),
		TotalRevenue:      res.TotalRevenue,
		TotalPerformances: res.TotalPerformances,
	}
	return res, nil
}

// normalizeRow applies the fields every format shares, then the PRO-specific ones
func normalizeRow(r row, extra rowFunc) (*domain.ParsedStatementItem, []*pkgerrors.RowError, *pkgerrors.RowError) {
	title := r.get(fieldTitle)
	if !r.reaches(fieldTitle) || !r.reaches(fieldRevenue) {
		return nil, nil, pkgerrors.NewRowError(r.number, title, pkgerrors.CategoryShortRow,
			"row has "+strconv.Itoa(len(r.record))+" columns, too few for title and revenue")
	}
	if title == "" {
		return nil, nil, pkgerrors.NewRowError(r.number, title, pkgerrors.CategoryMissingTitle, "missing work title")
	}

	revenue, err := parseAmount(r.get(fieldRevenue))
	if err != nil {
		return nil, nil, pkgerrors.NewRowError(r.number, title, pkgerrors.CategoryInvalidRevenue, err.Error())
	}

	share, err := parseShare(r.get(fieldShare))
	if err != nil {
		return nil, nil, pkgerrors.NewRowError(r.number, title, pkgerrors.CategoryInvalidNumber, err.Error())
	}

	var warnings []*pkgerrors.RowError
	performances, err := parseCount(r.get(fieldPerformances))
	if err != nil {
		warnings = append(warnings, pkgerrors.NewRowError(r.number, title, pkgerrors.CategoryInvalidNumber,
			err.Error()+"; counted as 0"))
	}

	item := &domain.ParsedStatementItem{
		RowIndex:        r.number,
		WorkTitle:       title,
		Revenue:         revenue,
		SplitPercentage: share,
		Performances:    performances,
		Meta: domain.ItemMeta{
			WriterName:    r.get(fieldWriter),
			WriterIPI:     r.get(fieldWriterIPI),
			PublisherName: r.get(fieldPublisher),
			PublisherIPI:  r.get(fieldPublisherIPI),
			DSP:           r.get(fieldDSP),
			Territory:     r.get(fieldTerritory),
		},
	}

	more, rowErr := extra(r, item)
	warnings = append(warnings, more...)
	if rowErr != nil {
		return nil, warnings, rowErr
	}
	return item, warnings, nil
}

func (res *Result) keep(item domain.ParsedStatementItem) {
	res.Items = append(res.Items, item)
	res.TotalRevenue = res.TotalRevenue.Add(item.Revenue)
	res.TotalPerformances += item.Performances
}

func (res *Result) skip(e *pkgerrors.RowError) {
	res.RowErrors = append(res.RowErrors, e)
	res.Warnings = append(res.Warnings, "skipped "+e.Error())
}

func (res *Result) warn(es ...*pkgerrors.RowError) {
	for _, e := range es {
		res.Warnings = append(res.Warnings, e.Error())
	}
}

func (res *Result) skipped() int {
	return len(res.RowErrors)
}

// ParseMetadata re-parses the rows stored on a statement
func ParseMetadata(meta domain.RawMetadata, pro domain.PROType) (*Result, error) {
	if !meta.HasRows() {
		return nil, domain.ErrStatementUnreadable.WithDetail("reason", "statement metadata has no stored rows")
	}
	records := make([][]string, 0, len(meta.Records)+1)
	records = append(records, meta.Header)
	records = append(records, meta.Records...)
	return ParseSource(records, meta.Source, pro)
}
