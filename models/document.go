package models

import "time"

// Document lifecycle states. A failed document stays on record so the user
// can re-enter the slip manually.
const (
	DocPending     = "pending"
	DocProcessing  = "processing"
	DocParsed      = "parsed"
	DocNeedsReview = "needs_review"
	DocFailed      = "ocr_failed"
)

// Document is one uploaded slip (receipt/invoice photo or PDF) and the state
// of its OCR processing.
type Document struct {
	ID            uint `gorm:"primaryKey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	UserID        uint   `gorm:"index;not null"`
	User          User   `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Type          string `gorm:"size:16;not null;default:receipt"` // receipt | invoice
	FilePath      string `gorm:"size:512;not null"`
	ThumbnailPath string `gorm:"size:512"`
	OCRText       string `gorm:"column:ocr_text;type:text"`
	Status        string `gorm:"size:16;not null;default:pending;index"`
	// Progress is a short human-readable note ("page 2 of 3") polled by the UI.
	Progress     string `gorm:"size:64"`
	FailedReason string `gorm:"size:255"`
}
