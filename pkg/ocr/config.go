package ocr

import "github.com/shopspring/decimal"

// Config holds the knobs the extraction core consumes. Unset fields are
// filled in by Normalize so callers can set only what they care about.
type Config struct {
	// Language is the recognition language code passed to the engine.
	Language string
	// MinTokenConfidence gates tokens (0-100) during line reconstruction.
	// Zero is a valid gate (accept every token); nil means unset.
	MinTokenConfidence *int
	// VATRate is the default VAT fraction used when deriving missing amounts.
	VATRate decimal.Decimal
}

const (
	defaultLanguage      = "eng"
	defaultMinConfidence = 55
)

var defaultVATRate = decimal.RequireFromString("0.15")

// Normalize fills unset fields with the reference defaults. Out-of-range
// confidence gates fall back to the default rather than erroring.
func (c Config) Normalize() Config {
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	if c.MinTokenConfidence == nil || *c.MinTokenConfidence < 0 || *c.MinTokenConfidence > 100 {
		gate := defaultMinConfidence
		c.MinTokenConfidence = &gate
	}
	if c.VATRate.IsZero() {
		c.VATRate = defaultVATRate
	}
	return c
}
