package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

// RowSource is the undecoded table of an export: every record as text
type RowSource struct {
	Records [][]string
	Format  string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// candidateDelimiters are tried in order; ties go to the earlier one
var candidateDelimiters = []rune{',', '\t', ';', '|'}

// ReadRows decodes raw file content into records. Spreadsheets are read with
// excelize, everything else as delimited text with a sniffed delimiter.
func ReadRows(content []byte, filename string) (*RowSource, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(content)
	default:
		return readDelimited(content)
	}
}

func readWorkbook(content []byte) (*RowSource, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStatementUnreadable, "failed to open workbook", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.ErrStatementUnreadable.WithDetail("reason", "workbook has no sheets")
	}

	// The first sheet with any data is the statement; cover sheets are common
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeStatementUnreadable, fmt.Sprintf("failed to read sheet %q", sheet), err)
		}
		if len(dropBlankRecords(rows)) > 1 {
			return &RowSource{Records: rows, Format: "xlsx"}, nil
		}
	}
	return nil, domain.ErrStatementUnreadable.WithDetail("reason", "workbook has no data rows")
}

func readDelimited(content []byte) (*RowSource, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, domain.ErrStatementUnreadable.WithDetail("reason", "file is empty")
	}

	comma := sniffDelimiter(content)
	r := newDelimitedReader(content, comma)

	var (
		records [][]string
		start   int64
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeStatementUnreadable, "failed to read delimited file", err)
		}
		end := r.InputOffset()
		raw := content[start:end]
		start = end

		// An opening quote that never closes runs to the end of the file and
		// takes every later line with it. Read those lines one by one so only
		// the broken line is reported.
		if bytes.Count(raw, []byte{'"'})%2 == 1 {
			lines, err := readLines(raw, comma)
			if err != nil {
				return nil, domain.WrapError(domain.ErrorCodeStatementUnreadable, "failed to read delimited file", err)
			}
			records = append(records, lines...)
			continue
		}
		records = append(records, rec)
	}

	return &RowSource{Records: records, Format: "delimited"}, nil
}

func newDelimitedReader(content []byte, comma rune) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r
}

// readLines decodes every physical line of raw as its own record
func readLines(raw []byte, comma rune) ([][]string, error) {
	var records [][]string
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		rec, err := newDelimitedReader(line, comma).Read()
		if errors.Is(err, io.EOF) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// sniffDelimiter picks the candidate that occurs most often, outside quotes,
// on the first non-blank lines of the file
func sniffDelimiter(content []byte) rune {
	counts := make(map[rune]int, len(candidateDelimiters))
	lines := 0
	for _, line := range bytes.Split(content, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		inQuotes := false
		for _, c := range string(line) {
			if c == '"' {
				inQuotes = !inQuotes
				continue
			}
			if inQuotes {
				continue
			}
			for _, d := range candidateDelimiters {
				if c == d {
					counts[d]++
				}
			}
		}
		lines++
		if lines == 5 {
			break
		}
	}

	best := ','
	for _, d := range candidateDelimiters {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

func dropBlankRecords(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if !isBlank(row) {
			out = append(out, row)
		}
	}
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
