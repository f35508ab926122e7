package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParsedStatementItem is one kept row of a statement after normalization.
// It only exists between parsing and aggregation.
type ParsedStatementItem struct {
	Revenue         decimal.Decimal `json:"revenue"`
	SplitPercentage decimal.Decimal `json:"split_percentage"`
	Meta            ItemMeta        `json:"meta"`
	WorkTitle       string          `json:"work_title"`
	RowIndex        int             `json:"row_index"`
	Performances    int64           `json:"performances"`
}

// ItemMeta holds the PRO-specific fields a row may carry
type ItemMeta struct {
	UsagePeriodStart *time.Time `json:"usage_period_start,omitempty"`
	UsagePeriodEnd   *time.Time `json:"usage_period_end,omitempty"`
	DistributionDate *time.Time `json:"distribution_date,omitempty"`
	PerformanceDate  *time.Time `json:"performance_date,omitempty"`
	WriterName       string     `json:"writer_name,omitempty"`
	WriterIPI        string     `json:"writer_ipi,omitempty"`
	PublisherName    string     `json:"publisher_name,omitempty"`
	PublisherIPI     string     `json:"publisher_ipi,omitempty"`
	DSP              string     `json:"dsp,omitempty"`
	QuarterCode      string     `json:"quarter_code,omitempty"`
	Territory        string     `json:"territory,omitempty"`
}

// Claim returns the payee claim the row makes
func (p *ParsedStatementItem) Claim() Claim {
	name := p.Meta.WriterName
	if name == "" {
		name = p.Meta.PublisherName
	}
	return Claim{
		Name:               name,
		IPINumber:          p.Meta.WriterIPI,
		PublisherIPINumber: p.Meta.PublisherIPI,
	}
}

// IdentityKey identifies the source line across reprocessing runs:
// normalized title, the most specific payee field, and the DSP.
func (p *ParsedStatementItem) IdentityKey() string {
	payee := NormalizeIPI(p.Meta.PublisherIPI)
	if payee == "" {
		payee = NormalizeIPI(p.Meta.WriterIPI)
	}
	if payee == "" {
		payee = NormalizeName(p.Meta.WriterName)
	}
	if payee == "" {
		payee = NormalizeName(p.Meta.PublisherName)
	}
	return NormalizeTitle(p.WorkTitle) + "|" + payee + "|" + NormalizeName(p.Meta.DSP)
}

// Claim is a contributor identity as written by a PRO or on a placement credit
type Claim struct {
	Name               string `json:"name"`
	IPINumber          string `json:"ipi_number,omitempty"`
	PublisherIPINumber string `json:"publisher_ipi_number,omitempty"`
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	ipiNoise      = regexp.MustCompile(`[\s\-.]`)
	ipiDigits     = regexp.MustCompile(`^\d{8,11}$`)
)

// NormalizeName lowercases and collapses whitespace
func NormalizeName(s string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// NormalizeTitle is the work-title form used for grouping
func NormalizeTitle(s string) string {
	return NormalizeName(s)
}

// NormalizeIPI strips whitespace, dashes, dots and leading zeros.
// "001-162-064683" and "1162064683" normalize to the same value.
func NormalizeIPI(s string) string {
	cleaned := ipiNoise.ReplaceAllString(s, "")
	return strings.TrimLeft(cleaned, "0")
}

// IsValidIPI reports whether the normalized form of s is 8 to 11 digits
func IsValidIPI(s string) bool {
	return ipiDigits.MatchString(NormalizeIPI(s))
}
