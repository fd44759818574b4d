package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is a confirmed financial record derived from a slip. Amounts
// are fixed-point decimals (2 places) so currency math never rounds through
// binary floats; VATRate is a fraction in [0,1].
type JournalEntry struct {
	ID                uint `gorm:"primaryKey"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	UserID            uint      `gorm:"index;not null"`
	User              User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	DocumentID        *uint     `gorm:"index"`
	EntryDate         time.Time `gorm:"not null;index"`
	SupplierName      string    `gorm:"size:128"`
	SupplierVATNumber string    `gorm:"size:32"`
	ReferenceNo       string    `gorm:"size:64"`
	Subtotal          decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	VATRate           decimal.Decimal     `gorm:"type:numeric(5,4);default:0.15"`
	VATAmount         decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	TotalAmount       decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	Currency          string              `gorm:"size:3;default:ZAR"`
	PaymentMethod     string              `gorm:"size:16;default:unknown"` // cash | card | eft | unknown
	Category          string              `gorm:"size:64"`
	Notes             string              `gorm:"type:text"`
	Reconciled        bool                `gorm:"default:false"`
	ReconciliationRef string              `gorm:"size:64"`
}
