package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/Rodneymondela/slip-management/models"
	"github.com/Rodneymondela/slip-management/pkg/dedupe"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func initDB() {
	var err error
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect postgres database:", err)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true).
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}
	// Roles first so the users FK can be applied safely.
	if shouldMigrate {
		if err := db.AutoMigrate(&models.Role{}); err != nil {
			log.Printf("migration warning (roles): %v", err)
		}
	}
	seedRoles()

	if shouldMigrate {
		// Migrate models individually so a failure on one doesn't block others
		if err := db.AutoMigrate(&models.User{}); err != nil {
			log.Printf("migration warning (users): %v", err)
		}
		if err := db.AutoMigrate(&models.Document{}); err != nil {
			log.Printf("migration warning (documents): %v", err)
		}
		if err := db.AutoMigrate(&models.JournalEntry{}); err != nil {
			log.Printf("migration warning (journal_entries): %v", err)
		}
		if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
			log.Printf("migration warning (refresh_tokens): %v", err)
		}
	}
	seedDB()
}

func seedRoles() {
	roles := []models.Role{{Name: "administrator", Description: "full access"}, {Name: "user", Description: "regular user"}}
	for _, r := range roles {
		var cnt int64
		db.Model(&models.Role{}).Where("name = ?", r.Name).Count(&cnt)
		if cnt == 0 {
			db.Create(&r)
		}
	}
}

func seedDB() {
	seedRoles()

	// Check if admin user exists
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		var role models.Role
		if err := db.Where("name = ?", "administrator").First(&role).Error; err != nil {
			log.Printf("failed to find administrator role: %v", err)
		}
		rid := role.ID
		admin := models.User{
			Username: "admin",
			RoleID:   &rid,
		}
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		admin.HashedPassword = hashedPassword
		db.Create(&admin)
		log.Println("Seeded admin user: username=admin, password=admin123")
	}
	ensureUploadBase()
}

// ensureUploadBase creates the base directories for stored slips and thumbnails.
func ensureUploadBase() {
	for _, dir := range []string{uploadBaseDir(), thumbBaseDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("failed to create dir %s: %v", dir, err)
		}
	}
}

// uploadBaseDir returns the base directory for stored slips (UPLOAD_BASE env).
func uploadBaseDir() string {
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		return v
	}
	return "uploads"
}

// thumbBaseDir returns the directory for generated thumbnails.
func thumbBaseDir() string {
	if v := os.Getenv("THUMB_BASE"); v != "" {
		return v
	}
	return "thumbs"
}

// gormEntrySource answers the duplicate detector's date-window query from the
// journal table.
type gormEntrySource struct {
	db *gorm.DB
}

func (s gormEntrySource) EntriesBetween(ownerID uint, start, end time.Time) ([]dedupe.Entry, error) {
	var rows []models.JournalEntry
	err := s.db.
		Where("user_id = ?", ownerID).
		Where("entry_date BETWEEN ? AND ?", start, end).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]dedupe.Entry, 0, len(rows))
	for _, r := range rows {
		if !r.TotalAmount.Valid {
			continue
		}
		out = append(out, dedupe.Entry{
			ID:           r.ID,
			OwnerID:      r.UserID,
			SupplierName: r.SupplierName,
			TotalAmount:  r.TotalAmount.Decimal,
			EntryDate:    r.EntryDate,
		})
	}
	return out, nil
}
