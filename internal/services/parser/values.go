package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	currencyNoise = regexp.MustCompile(`(?i)[$€£\s,]|usd|eur|gbp`)
	bmiQuarter    = regexp.MustCompile(`^(\d{4})(\d)$`)
	yearQuarter   = regexp.MustCompile(`(?i)^(\d{4})\s*-?\s*Q([1-4])$`)
	hundredPct    = decimal.NewFromInt(100)
)

// parseAmount reads a currency cell. Parentheses and a trailing minus mark
// negative adjustments. The result keeps domain.MoneyScale digits.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("missing amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}
	s = currencyNoise.ReplaceAllString(s, "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return domain.RoundMoney(d), nil
}

// parseCount reads a performance or unit count; blank means zero
func parseCount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	// Some exports render counts as 12.0
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return d.IntPart(), nil
}

// parseShare reads a split percentage; blank means the full share
func parseShare(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return hundredPct, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid share %q", s)
	}
	if !d.IsPositive() || d.GreaterThan(hundredPct) {
		return decimal.Zero, fmt.Errorf("share %s outside (0, 100]", d.String())
	}
	return d, nil
}

// normalizeQuarterCode accepts YYYYQ and YYYY-Qn spellings and returns YYYYQ.
// The quarter digit is not range-checked here; period extraction rejects bad codes.
func normalizeQuarterCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if m := bmiQuarter.FindStringSubmatch(s); m != nil {
		return s, true
	}
	if m := yearQuarter.FindStringSubmatch(s); m != nil {
		return m[1] + m[2], true
	}
	return s, false
}
