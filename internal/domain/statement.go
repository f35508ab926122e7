package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementStatus represents the publication state of a statement
type StatementStatus string

const (
	StatementStatusDraft     StatementStatus = "DRAFT"
	StatementStatusPublished StatementStatus = "PUBLISHED"
)

// PaymentStatus represents whether a statement's earnings were credited to payees
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
)

// RawMetadataVersion is the layout version written by the current parser
const RawMetadataVersion = 1

// Statement represents one uploaded PRO export
type Statement struct {
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	PublishedAt     *time.Time      `json:"published_at"`
	PaidAt          *time.Time      `json:"paid_at"`
	PeriodStart     *time.Time      `json:"period_start"`
	PeriodEnd       *time.Time      `json:"period_end"`
	Period          *string         `json:"statement_period"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalNet        decimal.Decimal `json:"total_net"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	ID              string          `json:"id"`
	Filename        string          `json:"filename"`
	PROType         PROType         `json:"pro_type"`
	Status          StatementStatus `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Metadata        RawMetadata     `json:"metadata"`
}

// IsPublished returns true once the statement is visible to payees
func (s *Statement) IsPublished() bool {
	return s.Status == StatementStatusPublished
}

// IsPaid returns true once earnings were credited to payee balances
func (s *Statement) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// CountsTowardLifetime reports whether the statement's visible items are part of lifetime earnings
func (s *Statement) CountsTowardLifetime() bool {
	return s.IsPublished() && s.IsPaid()
}

// HasPeriod reports whether a reporting period was extracted
func (s *Statement) HasPeriod() bool {
	return s.Period != nil && s.PeriodStart != nil && s.PeriodEnd != nil
}

// SetPeriod copies an extracted period onto the statement; nil clears it
func (s *Statement) SetPeriod(p *Period) {
	if p == nil {
		s.Period, s.PeriodStart, s.PeriodEnd = nil, nil, nil
		return
	}
	label, start, end := p.Label, p.Start, p.End
	s.Period, s.PeriodStart, s.PeriodEnd = &label, &start, &end
}

// Period is a reporting window extracted from a statement
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"period"`
}

// RawMetadata is the versioned record of everything read from the uploaded file.
// It is the source of truth for reprocessing and backfills.
type RawMetadata struct {
	ParsedAt          time.Time       `json:"parsed_at"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	Header            []string        `json:"header"`
	Records           [][]string      `json:"records"`
	Warnings          []string        `json:"warnings"`
	Source            string          `json:"source"`
	Version           int             `json:"version"`
	KeptRows          int             `json:"kept_rows"`
	SkippedRows       int             `json:"skipped_rows"`
	TotalPerformances int64           `json:"total_performances"`
}

// HasRows reports whether the metadata carries raw rows that can be re-parsed
func (m *RawMetadata) HasRows() bool {
	return len(m.Header) > 0 && len(m.Records) > 0
}
