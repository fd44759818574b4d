package ocr

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// rasterizePDF renders every page of the PDF at path into an image. A page
// that fails to render fails the whole document; PDF conversion is not
// retried internally.
func rasterizePDF(path string) ([]image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrConversion, path, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("%w: render page %d of %s: %v", ErrConversion, i+1, path, err)
		}
		pages = append(pages, img)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s has no pages", ErrConversion, path)
	}
	return pages, nil
}
