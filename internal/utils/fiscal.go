package utils

import (
	"fmt"
	"regexp"
	"time"
)

var docNumberPattern = regexp.MustCompile(`^[A-Z0-9]+/[A-Z]+/\d{4}/\d{3,}$`)

// FiscalYearStart returns the first year of the fiscal year containing t.
// startMonth is 1-12; values outside that range mean January.
func FiscalYearStart(t time.Time, startMonth int) int {
	if startMonth < 1 || startMonth > 12 {
		startMonth = 1
	}
	if int(t.Month()) >= startMonth {
		return t.Year()
	}
	return t.Year() - 1
}

// FiscalYearCode renders the fiscal year as two-digit start and end years,
// e.g. 2526 for April 2025 - March 2026. Calendar fiscal years repeat the
// same two digits (2525).
func FiscalYearCode(t time.Time, startMonth int) string {
	start := FiscalYearStart(t, startMonth)
	end := start + 1
	if startMonth <= 1 || startMonth > 12 {
		end = start
	}
	return fmt.Sprintf("%02d%02d", start%100, end%100)
}

// FormatDocNumber builds a business key such as VESPL/PO/2526/001.
func FormatDocNumber(prefix, docType, fiscalYear string, seq int64) string {
	return fmt.Sprintf("%s/%s/%s/%03d", prefix, docType, fiscalYear, seq)
}

// IsDocNumber reports whether s looks like a business key.
func IsDocNumber(s string) bool {
	return docNumberPattern.MatchString(s)
}
