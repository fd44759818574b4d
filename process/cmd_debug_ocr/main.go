package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Rodneymondela/slip-management/pkg/ocr"

	"github.com/shopspring/decimal"
)

func main() {
	f := flag.String("file", "", "slip file to OCR (image or PDF)")
	showText := flag.Bool("text", false, "print the full recognized text")
	timeout := flag.Duration("timeout", 2*time.Minute, "per-file OCR timeout")
	flag.Parse()
	if *f == "" {
		log.Fatalf("-file required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pipe := ocr.NewPipeline(ocr.NewTesseractEngine(), ocr.Config{}.Normalize())
	text, fields, err := pipe.ProcessFile(ctx, *f, func(page, total int) {
		log.Printf("page %d of %d", page, total)
	})
	if err != nil {
		log.Fatalf("ocr error: %v", err)
	}
	if *showText {
		fmt.Println(text)
		fmt.Println("---")
	}
	fmt.Printf("supplier_name        %s\n", strOrDash(fields.SupplierName))
	fmt.Printf("supplier_vat_number  %s\n", strOrDash(fields.SupplierVATNumber))
	fmt.Printf("entry_date           %s\n", dateOrDash(fields.EntryDate))
	fmt.Printf("reference_no         %s\n", strOrDash(fields.ReferenceNo))
	fmt.Printf("subtotal             %s\n", decOrDash(fields.Subtotal))
	fmt.Printf("vat_rate             %s\n", decOrDash(fields.VATRate))
	fmt.Printf("vat_amount           %s\n", decOrDash(fields.VATAmount))
	fmt.Printf("total_amount         %s\n", decOrDash(fields.TotalAmount))
	fmt.Printf("payment_method       %s\n", strOrDash(fields.PaymentMethod))
	fmt.Printf("notes                %s\n", strOrDash(fields.Notes))
}

func strOrDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func decOrDash(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
