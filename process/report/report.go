package report

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Rodneymondela/slip-management/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mustDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in env")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	return gdb
}

// RunReport prints a month-bounded spend report for username (month in
// YYYY-MM) and optionally lists the matching journal entries.
func RunReport(username, month string, list bool) {
	gdb := mustDBFromEnv()

	var user models.User
	if err := gdb.Where("username = ?", username).First(&user).Error; err != nil {
		log.Fatalf("user not found: %v", err)
	}

	t, err := time.Parse("2006-01", month)
	if err != nil {
		log.Fatalf("invalid month format, expected YYYY-MM: %v", err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var total decimal.NullDecimal
	var vat decimal.NullDecimal
	var cnt int64
	row := gdb.Raw(`SELECT COALESCE(SUM(total_amount),0), COALESCE(SUM(vat_amount),0), COUNT(*) FROM journal_entries WHERE user_id = ? AND entry_date >= ? AND entry_date < ?`, user.ID, start, end).Row()
	if err := row.Scan(&total, &vat, &cnt); err != nil {
		log.Fatalf("query failed: %v", err)
	}

	fmt.Printf("Report for user=%s month=%s (UTC):\n", user.Username, month)
	fmt.Printf("  entries=%d total=%s vat=%s\n", cnt, total.Decimal.StringFixed(2), vat.Decimal.StringFixed(2))

	if list {
		var rows []models.JournalEntry
		if err := gdb.Where("user_id = ? AND entry_date >= ? AND entry_date < ?", user.ID, start, end).Order("entry_date").Find(&rows).Error; err != nil {
			log.Fatalf("fetch rows failed: %v", err)
		}
		for _, r := range rows {
			total := "-"
			if r.TotalAmount.Valid {
				total = r.TotalAmount.Decimal.StringFixed(2)
			}
			fmt.Printf("%d|%s|%s|%s|%s\n", r.ID, r.EntryDate.Format("2006-01-02"), r.SupplierName, total, r.PaymentMethod)
		}
	}
}
