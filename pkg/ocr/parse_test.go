package ocr

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParser() *Parser {
	p := NewParser(decimal.RequireFromString("0.15"))
	p.Now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return p
}

const groceryReceipt = `FRESH FOODS MARKET
123 Long Street, Cape Town
VAT No: 4123456789
Tel: 021 555 0199

2024-11-03  14:22
Till Slip #000482

Milk 2L            24.99
Bread              18.50
Eggs 18s           62.99

SUBTOTAL          106.48
VAT @ 15%          15.97
TOTAL             122.45

CARD **** 4421
Thank you, come again`

func TestParseFieldsGroceryReceipt(t *testing.T) {
	f := testParser().ParseFields(groceryReceipt)

	require.NotNil(t, f.SupplierName)
	assert.Equal(t, "FRESH FOODS MARKET", *f.SupplierName)

	require.NotNil(t, f.EntryDate)
	assert.Equal(t, time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC), *f.EntryDate)

	require.NotNil(t, f.TotalAmount)
	assert.True(t, f.TotalAmount.Equal(decimal.RequireFromString("122.45")), "total %s", f.TotalAmount)

	require.NotNil(t, f.Subtotal)
	assert.True(t, f.Subtotal.Equal(decimal.RequireFromString("106.48")), "subtotal %s", f.Subtotal)

	require.NotNil(t, f.VATAmount)
	assert.True(t, f.VATAmount.Equal(decimal.RequireFromString("15.97")), "vat %s", f.VATAmount)

	require.NotNil(t, f.SupplierVATNumber)
	assert.Equal(t, "4123456789", *f.SupplierVATNumber)

	require.NotNil(t, f.PaymentMethod)
	assert.Equal(t, PaymentCard, *f.PaymentMethod)

	require.NotNil(t, f.Notes)
	assert.Equal(t, "OCR auto", *f.Notes)
}

const invoiceText = `ACME TRADING (PTY) LTD
Invoice No: INV-2025-001
Date: 15/02/2025

Consulting services       5,000.00
Travel                      850.00

Sub-total                 5,850.00
VAT                         877.50
AMOUNT DUE                6,727.50

Payment by EFT to account 123456`

func TestParseFieldsInvoice(t *testing.T) {
	f := testParser().ParseFields(invoiceText)

	require.NotNil(t, f.SupplierName)
	assert.Equal(t, "ACME TRADING PTY LTD", *f.SupplierName)

	require.NotNil(t, f.ReferenceNo)
	assert.Equal(t, "INV-2025-001", *f.ReferenceNo)

	require.NotNil(t, f.EntryDate)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), *f.EntryDate)

	require.NotNil(t, f.TotalAmount)
	assert.True(t, f.TotalAmount.Equal(decimal.RequireFromString("6727.50")), "total %s", f.TotalAmount)

	require.NotNil(t, f.Subtotal)
	assert.True(t, f.Subtotal.Equal(decimal.RequireFromString("5850.00")))

	require.NotNil(t, f.VATAmount)
	assert.True(t, f.VATAmount.Equal(decimal.RequireFromString("877.50")))

	require.NotNil(t, f.PaymentMethod)
	assert.Equal(t, PaymentEFT, *f.PaymentMethod)
}

// With only a total on the slip, subtotal and VAT are derived from the
// configured inclusive rate.
func TestParseFieldsDerivesFromTotal(t *testing.T) {
	f := testParser().ParseFields("CORNER CAFE\nTOTAL R100.00\nCASH")

	require.NotNil(t, f.TotalAmount)
	assert.True(t, f.TotalAmount.Equal(decimal.RequireFromString("100.00")))
	require.NotNil(t, f.Subtotal)
	assert.True(t, f.Subtotal.Equal(decimal.RequireFromString("86.96")), "subtotal %s", f.Subtotal)
	require.NotNil(t, f.VATAmount)
	assert.True(t, f.VATAmount.Equal(decimal.RequireFromString("13.04")), "vat %s", f.VATAmount)
	require.NotNil(t, f.PaymentMethod)
	assert.Equal(t, PaymentCash, *f.PaymentMethod)
}

// Derivation must not fire when one of the pair was read off the slip.
func TestParseFieldsNoDerivationWithPartialPair(t *testing.T) {
	f := testParser().ParseFields("SHOP\nVAT 9.00\nTOTAL 100.00")

	require.NotNil(t, f.VATAmount)
	assert.True(t, f.VATAmount.Equal(decimal.RequireFromString("9.00")))
	assert.Nil(t, f.Subtotal)
}

func TestParseFieldsDateFallbackIsToday(t *testing.T) {
	f := testParser().ParseFields("SOME SHOP\nTOTAL 50.00")
	require.NotNil(t, f.EntryDate)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), *f.EntryDate)
}

func TestParseFieldsTotalFallbackLargestAmount(t *testing.T) {
	// no total keyword anywhere: the largest money token wins
	f := testParser().ParseFields("SHOP\nItem A 10.00\nItem B 250.00\nItem C 99.99")
	require.NotNil(t, f.TotalAmount)
	assert.True(t, f.TotalAmount.Equal(decimal.RequireFromString("250.00")))
}

func TestParseFieldsSupplierSkipsMetadataLines(t *testing.T) {
	f := testParser().ParseFields("TAX INVOICE\nWOODSTOCK HARDWARE\nTOTAL 75.00")
	require.NotNil(t, f.SupplierName)
	assert.Equal(t, "WOODSTOCK HARDWARE", *f.SupplierName)
}

func TestParseFieldsReferenceRejectsLabelEcho(t *testing.T) {
	// "Invoice Number" with the value on the next line: the label's own
	// "Number" word must not be captured as the reference
	f := testParser().ParseFields("SHOP\nInvoice Number\nTOTAL 10.00")
	assert.Nil(t, f.ReferenceNo)
}

func TestParseFieldsEmptyText(t *testing.T) {
	f := testParser().ParseFields("")
	assert.Nil(t, f.SupplierName)
	assert.Nil(t, f.TotalAmount)
	assert.Nil(t, f.Subtotal)
	assert.Nil(t, f.VATAmount)
	// date falls back, rate and payment always fill
	require.NotNil(t, f.EntryDate)
	require.NotNil(t, f.VATRate)
	require.NotNil(t, f.PaymentMethod)
	assert.Equal(t, PaymentUnknown, *f.PaymentMethod)
}

// Feeding the parser its own output text again yields the same fields.
func TestParseFieldsIdempotent(t *testing.T) {
	p := testParser()
	a := p.ParseFields(groceryReceipt)
	b := p.ParseFields(groceryReceipt)
	assert.Equal(t, a, b)
}

func TestSplitTotal(t *testing.T) {
	sub, vat := SplitTotal(decimal.RequireFromString("115.00"), decimal.RequireFromString("0.15"))
	assert.True(t, sub.Equal(decimal.RequireFromString("100.00")), "subtotal %s", sub)
	assert.True(t, vat.Equal(decimal.RequireFromString("15.00")), "vat %s", vat)

	sub, vat = SplitTotal(decimal.RequireFromString("100.00"), decimal.RequireFromString("0.15"))
	assert.True(t, sub.Equal(decimal.RequireFromString("86.96")))
	assert.True(t, vat.Equal(decimal.RequireFromString("13.04")))
}
