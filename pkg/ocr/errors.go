package ocr

import "errors"

var (
	// ErrImageRead is returned when an input path cannot be decoded as an image.
	ErrImageRead = errors.New("image unreadable")
	// ErrEngine is returned when every OCR engine attempt failed for a document.
	ErrEngine = errors.New("ocr engine failed")
	// ErrConversion is returned when a PDF cannot be rasterized into page images.
	ErrConversion = errors.New("pdf conversion failed")
)
