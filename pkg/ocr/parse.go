package ocr

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payment method values produced by the parser.
const (
	PaymentCard    = "card"
	PaymentEFT     = "eft"
	PaymentCash    = "cash"
	PaymentUnknown = "unknown"
)

// ParsedFields is the structured record recovered from receipt text. Absence
// of a heuristic match is a nil field, never an error: partial extraction is
// the expected common case and a human confirms the result downstream.
type ParsedFields struct {
	SupplierName      *string          `json:"supplier_name"`
	SupplierVATNumber *string          `json:"supplier_vat_number"`
	EntryDate         *time.Time       `json:"entry_date"`
	ReferenceNo       *string          `json:"reference_no"`
	Subtotal          *decimal.Decimal `json:"subtotal"`
	VATRate           *decimal.Decimal `json:"vat_rate"`
	VATAmount         *decimal.Decimal `json:"vat_amount"`
	TotalAmount       *decimal.Decimal `json:"total_amount"`
	PaymentMethod     *string          `json:"payment_method"`
	Category          *string          `json:"category"`
	Notes             *string          `json:"notes"`
}

// Parser derives ParsedFields from raw OCR text. It is deterministic for a
// fixed clock; Now exists so the date fallback stays testable.
type Parser struct {
	VATRate decimal.Decimal
	Now     func() time.Time
}

func NewParser(vatRate decimal.Decimal) *Parser {
	if vatRate.IsZero() {
		vatRate = defaultVATRate
	}
	return &Parser{VATRate: vatRate, Now: time.Now}
}

// docText is the normalized view of the raw text shared by all rules.
type docText struct {
	lines  []string
	joined string
}

func newDocText(raw string) docText {
	raw = strings.ReplaceAll(raw, "\f", "")
	raw = strings.ReplaceAll(raw, "\r", "")
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return docText{lines: lines, joined: strings.Join(lines, "\n")}
}

// fieldRule is one named extraction heuristic. Rules run in the declared
// order; each inspects the text and fills at most its own fields.
type fieldRule struct {
	name  string
	apply func(p *Parser, d docText, f *ParsedFields)
}

var fieldRules = []fieldRule{
	{"supplier", (*Parser).ruleSupplier},
	{"date", (*Parser).ruleDate},
	{"total", (*Parser).ruleTotal},
	{"vat-amount", (*Parser).ruleVATAmount},
	{"subtotal", (*Parser).ruleSubtotal},
	{"vat-rate", (*Parser).ruleVATRate},
	{"vat-number", (*Parser).ruleVATNumber},
	{"reference", (*Parser).ruleReference},
	{"payment", (*Parser).rulePayment},
	{"derive-amounts", (*Parser).ruleDeriveAmounts},
}

// ParseFields runs the rule cascade over the raw text. It never fails.
func (p *Parser) ParseFields(raw string) ParsedFields {
	d := newDocText(raw)
	var f ParsedFields
	for _, r := range fieldRules {
		r.apply(p, d, &f)
	}
	notes := "OCR auto"
	f.Notes = &notes
	return f
}

// money-shaped token, tolerant of both separator conventions
var moneyRE = regexp.MustCompile(`\d{1,3}(?:,\d{3})+\.\d{2}|\d{1,3}(?:\.\d{3})+,\d{2}|\d+[.,]\d{2}`)

var supplierMetaRE = regexp.MustCompile(`(?i)\b(tax|vat|invoice|receipt|till|cash|total|amount due)\b`)
var supplierCleanRE = regexp.MustCompile(`[^A-Za-z0-9&.\-' ]+`)

// ruleSupplier scans the top of the receipt for the most letter-dense short
// line that is not obvious receipt metadata.
func (p *Parser) ruleSupplier(d docText, f *ParsedFields) {
	limit := len(d.lines)
	if limit > 10 {
		limit = 10
	}
	for _, line := range d.lines[:limit] {
		if supplierMetaRE.MatchString(line) {
			continue
		}
		cleaned := supplierCleanRE.ReplaceAllString(line, " ")
		cleaned = strings.Join(strings.Fields(cleaned), " ")
		if len(cleaned) < 3 {
			continue
		}
		letters := 0
		for _, r := range cleaned {
			if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
				letters++
			}
		}
		if float64(letters)/float64(len(cleaned)) >= 0.40 {
			if len(cleaned) > 128 {
				cleaned = cleaned[:128]
			}
			f.SupplierName = &cleaned
			return
		}
	}
}

// date patterns in priority order: ISO forms, day-first numeric, textual
var dateREs = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}[-/]\d{2}[-/]\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{4}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z,.]*\s\d{4}\b`),
}

// ruleDate finds the first date-shaped token. When nothing parses, the
// current date is the deterministic fallback (a guess the reviewer corrects).
func (p *Parser) ruleDate(d docText, f *ParsedFields) {
	for _, re := range dateREs {
		m := re.FindString(d.joined)
		if m == "" {
			continue
		}
		if t, err := ParseDayFirstDate(m); err == nil {
			t = t.Truncate(24 * time.Hour)
			f.EntryDate = &t
			return
		}
	}
	now := p.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	f.EntryDate = &today
}

var totalKeywordRE = regexp.MustCompile(`(?i)\b(total|amount due|grand total)\b`)

// ruleTotal scans bottom-up, since totals sit near the foot of a receipt, and
// falls back to the largest money-shaped value anywhere in the text.
func (p *Parser) ruleTotal(d docText, f *ParsedFields) {
	for i := len(d.lines) - 1; i >= 0; i-- {
		line := d.lines[i]
		if !totalKeywordRE.MatchString(line) {
			continue
		}
		if amt, ok := lastMoneyToken(line); ok {
			f.TotalAmount = &amt
			return
		}
	}
	var largest *decimal.Decimal
	for _, m := range moneyRE.FindAllString(d.joined, -1) {
		v, err := NormalizeMoney(m)
		if err != nil {
			continue
		}
		if largest == nil || v.GreaterThan(*largest) {
			largest = &v
		}
	}
	f.TotalAmount = largest
}

var vatKeywordRE = regexp.MustCompile(`(?i)\b(vat|tax)\b`)

// ruleVATAmount takes the last money token on the first VAT/tax line that is
// not also a total line (which would re-capture the grand total).
func (p *Parser) ruleVATAmount(d docText, f *ParsedFields) {
	for _, line := range d.lines {
		if !vatKeywordRE.MatchString(line) || totalKeywordRE.MatchString(line) {
			continue
		}
		if amt, ok := lastMoneyToken(line); ok {
			f.VATAmount = &amt
			return
		}
	}
}

var subtotalKeywordRE = regexp.MustCompile(`(?i)\bsub[\s-]?total\b`)

func (p *Parser) ruleSubtotal(d docText, f *ParsedFields) {
	for _, line := range d.lines {
		if !subtotalKeywordRE.MatchString(line) {
			continue
		}
		if amt, ok := lastMoneyToken(line); ok {
			f.Subtotal = &amt
			return
		}
	}
}

// ruleVATRate records the configured rate; there is no text heuristic for it.
func (p *Parser) ruleVATRate(d docText, f *ParsedFields) {
	rate := p.VATRate
	f.VATRate = &rate
}

var tenDigitRE = regexp.MustCompile(`\d{10}`)

// ruleVATNumber looks for a 10-digit registration number on VAT lines first,
// then anywhere in the text.
func (p *Parser) ruleVATNumber(d docText, f *ParsedFields) {
	for _, line := range d.lines {
		if !vatKeywordRE.MatchString(line) {
			continue
		}
		squeezed := strings.Join(strings.Fields(line), "")
		if m := tenDigitRE.FindString(squeezed); m != "" {
			f.SupplierVATNumber = &m
			return
		}
	}
	if m := tenDigitRE.FindString(d.joined); m != "" {
		f.SupplierVATNumber = &m
	}
}

var referenceRE = regexp.MustCompile(`(?i)\b(?:invoice|receipt|till|order|statement)\s*(?:number|num|no|#)?\.?\s*[:#-]?\s*([A-Za-z0-9][A-Za-z0-9/_-]*)`)

// ruleReference captures the token following an invoice/receipt label on the
// same line, rejecting captures that are just the label's own "no"/"number"
// word. Line scope keeps the match from bleeding into the next line.
func (p *Parser) ruleReference(d docText, f *ParsedFields) {
	for _, line := range d.lines {
		m := referenceRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ref := m[1]
		switch strings.ToLower(ref) {
		case "no", "num", "number":
			continue
		}
		if len(ref) > 64 {
			ref = ref[:64]
		}
		f.ReferenceNo = &ref
		return
	}
}

var (
	cardRE = regexp.MustCompile(`(?i)\b(card|mastercard|visa|debit)\b`)
	eftRE  = regexp.MustCompile(`(?i)\beft\b`)
	cashRE = regexp.MustCompile(`(?i)\bcash\b`)
)

func (p *Parser) rulePayment(d docText, f *ParsedFields) {
	method := PaymentUnknown
	switch {
	case cardRE.MatchString(d.joined):
		method = PaymentCard
	case eftRE.MatchString(d.joined):
		method = PaymentEFT
	case cashRE.MatchString(d.joined):
		method = PaymentCash
	}
	f.PaymentMethod = &method
}

var decimalOne = decimal.NewFromInt(1)

// ruleDeriveAmounts back-fills subtotal and VAT from the total. It fires only
// when both are simultaneously missing: a partially-specified pair is left
// alone for the confirmation boundary to flag, never silently "fixed".
func (p *Parser) ruleDeriveAmounts(d docText, f *ParsedFields) {
	if f.TotalAmount == nil || f.Subtotal != nil || f.VATAmount != nil {
		return
	}
	rate := p.VATRate
	if f.VATRate != nil {
		rate = *f.VATRate
	}
	sub, vat := SplitTotal(*f.TotalAmount, rate)
	f.Subtotal = &sub
	f.VATAmount = &vat
}

// SplitTotal splits a VAT-inclusive total into subtotal and VAT amount at the
// given rate, each rounded to 2 places.
func SplitTotal(total, rate decimal.Decimal) (subtotal, vat decimal.Decimal) {
	subtotal = total.Div(decimalOne.Add(rate)).Round(2)
	vat = total.Sub(subtotal).Round(2)
	return subtotal, vat
}

// lastMoneyToken returns the last money-shaped value on a line.
func lastMoneyToken(line string) (decimal.Decimal, bool) {
	matches := moneyRE.FindAllString(line, -1)
	if len(matches) == 0 {
		return decimal.Zero, false
	}
	v, err := NormalizeMoney(matches[len(matches)-1])
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}
