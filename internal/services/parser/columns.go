package parser

import (
	"regexp"
	"strings"
)

type field int

const (
	fieldTitle field = iota
	fieldRevenue
	fieldPerformances
	fieldWriter
	fieldWriterIPI
	fieldPublisher
	fieldPublisherIPI
	fieldDSP
	fieldShare
	fieldTerritory
	fieldQuarter
	fieldPerformanceDate
	fieldPeriodStart
	fieldPeriodEnd
	fieldUsagePeriod
	fieldDistributionDate
)

// headerSearchDepth bounds how far into a file the header row may sit
// below title banners and report preambles
const headerSearchDepth = 25

// layout maps each canonical field to the header spellings a PRO uses
type layout struct {
	aliases map[field][]string
}

// columns is a resolved header: canonical field to record index
type columns map[field]int

var headerNoise = regexp.MustCompile(`[_\-.:]+`)

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = headerNoise.ReplaceAllString(strings.ToLower(h), " ")
	return strings.Join(strings.Fields(h), " ")
}

// resolve matches a header record against the layout. Earlier aliases win
// when a file carries more than one spelling of the same field.
func (l layout) resolve(header []string) columns {
	index := make(map[string]int, len(header))
	for i, h := range header {
		n := normalizeHeader(h)
		if _, seen := index[n]; !seen && n != "" {
			index[n] = i
		}
	}

	cols := make(columns, len(l.aliases))
	for f, names := range l.aliases {
		for _, name := range names {
			if i, ok := index[name]; ok {
				cols[f] = i
				break
			}
		}
	}
	return cols
}

// locateHeader returns the index of the first record that names both a title
// and a revenue column, and the resolved columns for it
func (l layout) locateHeader(records [][]string) (int, columns, bool) {
	limit := len(records)
	if limit > headerSearchDepth {
		limit = headerSearchDepth
	}
	for i := 0; i < limit; i++ {
		cols := l.resolve(records[i])
		if cols.has(fieldTitle) && cols.has(fieldRevenue) {
			return i, cols, true
		}
	}
	return 0, nil, false
}

func (c columns) has(f field) bool {
	_, ok := c[f]
	return ok
}

// row is one data record viewed through resolved columns
type row struct {
	cols   columns
	record []string
	number int
}

func (r row) get(f field) string {
	i, ok := r.cols[f]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// reaches reports whether the record is long enough to hold field f
func (r row) reaches(f field) bool {
	i, ok := r.cols[f]
	return ok && i < len(r.record)
}
