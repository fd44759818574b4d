package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Rodneymondela/slip-management/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Deletes document rows whose uploaded file no longer exists on disk.
func main() {
	dry := flag.Bool("dry-run", true, "dry-run: only print what would be deleted")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	var docs []models.Document
	if err := gdb.Order("id").Find(&docs).Error; err != nil {
		log.Fatalf("query: %v", err)
	}

	pruned := 0
	for _, doc := range docs {
		if _, err := os.Stat(doc.FilePath); err == nil {
			continue
		}
		if *dry {
			fmt.Printf("DRY: would delete document id=%d file=%s\n", doc.ID, doc.FilePath)
			pruned++
			continue
		}
		// unlink journal entries first; they survive without a backing document
		if err := gdb.Model(&models.JournalEntry{}).Where("document_id = ?", doc.ID).Update("document_id", nil).Error; err != nil {
			log.Printf("unlink journal for id=%d: %v", doc.ID, err)
			continue
		}
		if err := gdb.Delete(&models.Document{}, doc.ID).Error; err != nil {
			log.Printf("delete id=%d: %v", doc.ID, err)
			continue
		}
		if doc.ThumbnailPath != "" {
			_ = os.Remove(doc.ThumbnailPath)
		}
		pruned++
	}
	fmt.Printf("prune done: %d documents\n", pruned)
}
