package ocr

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// NormalizeMoney parses a money-shaped token into a fixed-point decimal.
// Both the "1,234.56" and the "1.234,56" conventions are accepted: whichever
// of '.' and ',' occurs last in the string is treated as the decimal point and
// the other separator is stripped as thousands grouping.
func NormalizeMoney(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '.' || r == ',' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no digits in %q", s)
	}
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastComma > lastDot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", strings.Count(cleaned, ","))
		// only the final comma is decimal; earlier ones were grouping
		if i := strings.LastIndex(cleaned, "."); i != -1 {
			cleaned = strings.ReplaceAll(cleaned[:i], ".", "") + cleaned[i:]
		}
	default:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return d, nil
}

// dayFirstLayouts are tried in order. ISO forms come first so an unambiguous
// year-first date never gets reinterpreted; the rest are day-first, matching
// the receipt locale.
var dayFirstLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"2-1-2006",
	"2/1/2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"02 January 2006",
}

// ParseDayFirstDate parses a date string with a day-first bias.
func ParseDayFirstDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// tolerate "12 Sep, 2025" and trailing month punctuation from OCR
	s = strings.ReplaceAll(s, ",", "")
	if strings.ContainsFunc(s, unicode.IsLetter) {
		s = strings.ReplaceAll(s, ".", "")
	} else {
		// dotted numeric dates ("12.09.2025") use '.' as the separator
		s = strings.ReplaceAll(s, ".", "-")
	}
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range dayFirstLayouts {
		if !strings.Contains(s, " ") && strings.Contains(layout, "Jan") {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
