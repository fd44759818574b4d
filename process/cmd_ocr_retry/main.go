package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Rodneymondela/slip-management/models"
	"github.com/Rodneymondela/slip-management/pkg/ocr"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Re-runs OCR for documents stuck in ocr_failed, typically after a tessdata
// or preprocessing change.
func main() {
	dry := flag.Bool("dry-run", true, "dry-run: don't write to DB")
	limit := flag.Int("limit", 50, "max documents to retry")
	timeout := flag.Duration("timeout", 2*time.Minute, "per-file OCR timeout")
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
	if err := gdb.Where("status = ?", models.DocFailed).Order("id").Limit(*limit).Find(&docs).Error; err != nil {
		log.Fatalf("query: %v", err)
	}

	pipe := ocr.NewPipeline(ocr.NewTesseractEngine(), ocr.Config{}.Normalize())
	for _, doc := range docs {
		if _, err := os.Stat(doc.FilePath); err != nil {
			log.Printf("skip id=%d: file missing (%s)", doc.ID, doc.FilePath)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		text, err := pipe.ExtractFile(ctx, doc.FilePath, nil)
		cancel()
		if err != nil || strings.TrimSpace(text) == "" {
			log.Printf("still failing id=%d: %v", doc.ID, err)
			continue
		}
		if *dry {
			fmt.Printf("DRY: would mark id=%d parsed (%d chars of text)\n", doc.ID, len(text))
			continue
		}
		updates := map[string]interface{}{"ocr_text": text, "status": models.DocParsed, "failed_reason": ""}
		if err := gdb.Model(&models.Document{}).Where("id = ?", doc.ID).Updates(updates).Error; err != nil {
			log.Printf("update id=%d: %v", doc.ID, err)
			continue
		}
		fmt.Printf("recovered id=%d\n", doc.ID)
	}
}
