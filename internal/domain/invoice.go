package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceKind distinguishes what an invoice is a receipt for
type InvoiceKind string

const (
	InvoiceKindPayout    InvoiceKind = "PAYOUT"
	InvoiceKindStatement InvoiceKind = "STATEMENT"
)

// Invoice is a derived receipt; it is never authoritative for balances
type Invoice struct {
	IssuedAt    time.Time       `json:"issued_at"`
	PayoutID    *string         `json:"payout_id"`
	StatementID *string         `json:"statement_id"`
	Amount      decimal.Decimal `json:"amount"`
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Number      string          `json:"number"`
	Kind        InvoiceKind     `json:"kind"`
}

// InvoiceNumber builds a stable invoice number from the source record ids
func InvoiceNumber(kind InvoiceKind, ids ...string) string {
	prefix := "INV-PO"
	if kind == InvoiceKindStatement {
		prefix = "INV-ST"
	}
	parts := []string{prefix}
	for _, id := range ids {
		short := strings.ReplaceAll(id, "-", "")
		if len(short) > 8 {
			short = short[:8]
		}
		parts = append(parts, strings.ToUpper(short))
	}
	return strings.Join(parts, "-")
}
