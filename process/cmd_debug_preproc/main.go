package main

import (
	"flag"
	"log"

	"github.com/Rodneymondela/slip-management/pkg/ocr"

	"github.com/disintegration/imaging"
)

// Writes the preprocessed (deskewed, binarized) version of a slip so the
// cleanup chain can be inspected when recognition goes wrong.
func main() {
	in := flag.String("in", "", "input slip image")
	out := flag.String("out", "/tmp/preproc.png", "where to write the cleaned image")
	flag.Parse()
	if *in == "" {
		log.Fatalf("-in required")
	}
	img, err := ocr.Preprocess(*in)
	if err != nil {
		log.Fatalf("preprocess: %v", err)
	}
	if err := imaging.Save(img, *out); err != nil {
		log.Fatalf("save: %v", err)
	}
	log.Printf("wrote %s", *out)
}
