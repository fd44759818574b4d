// Package dedupe flags journal entries that look like re-captures of a slip
// already on record. Matches are advisory: callers surface them for an
// explicit "save anyway" override, nothing is blocked or mutated here.
package dedupe

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is a read-only view of an existing journal entry.
type Entry struct {
	ID           uint
	OwnerID      uint
	SupplierName string
	TotalAmount  decimal.Decimal
	EntryDate    time.Time
}

// EntrySource is the persistence collaborator: entries for one owner whose
// entry date falls within [start, end].
type EntrySource interface {
	EntriesBetween(ownerID uint, start, end time.Time) ([]Entry, error)
}

// DateWindow is how far apart two captures of the same slip may be dated.
const DateWindow = 3 * 24 * time.Hour

// amountTolerance is the maximum absolute total difference still considered
// the same amount (rounding and OCR cent noise).
var amountTolerance = decimal.RequireFromString("0.02")

type Detector struct {
	src EntrySource
}

func New(src EntrySource) *Detector {
	return &Detector{src: src}
}

// Find returns near-matching existing entries, most recent first. Supplier,
// total and date are the anchor fields: if any is missing no comparison is
// meaningful and the result is empty.
func (d *Detector) Find(ownerID uint, supplier *string, total *decimal.Decimal, date *time.Time) ([]Entry, error) {
	if supplier == nil || total == nil || date == nil {
		return nil, nil
	}
	name := strings.TrimSpace(*supplier)
	if name == "" {
		return nil, nil
	}
	candidates, err := d.src.EntriesBetween(ownerID, date.Add(-DateWindow), date.Add(DateWindow))
	if err != nil {
		return nil, err
	}
	var matches []Entry
	for _, e := range candidates {
		if !strings.EqualFold(strings.TrimSpace(e.SupplierName), name) {
			continue
		}
		if e.TotalAmount.Sub(*total).Abs().GreaterThan(amountTolerance) {
			continue
		}
		matches = append(matches, e)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].EntryDate.After(matches[j].EntryDate)
	})
	return matches, nil
}
