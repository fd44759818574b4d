package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine drives a local Tesseract install through gosseract.
type TesseractEngine struct{}

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{}
}

func pageSegMode(m SegMode) gosseract.PageSegMode {
	switch m {
	case SegSingleColumn:
		return gosseract.PSM_SINGLE_BLOCK
	case SegSparse:
		return gosseract.PSM_SPARSE_TEXT
	case SegSingleLine:
		return gosseract.PSM_SINGLE_LINE
	default:
		return gosseract.PSM_AUTO
	}
}

// Recognize runs one structured OCR pass. The gosseract call is synchronous
// CGO, so it runs on its own goroutine and the context bounds the wait.
func (e *TesseractEngine) Recognize(ctx context.Context, path, language string, mode SegMode) ([]Token, error) {
	type result struct {
		tokens []Token
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		client := gosseract.NewClient()
		defer client.Close()
		if err := client.SetLanguage(language); err != nil {
			ch <- result{err: fmt.Errorf("set language %q: %w", language, err)}
			return
		}
		if err := client.SetPageSegMode(pageSegMode(mode)); err != nil {
			ch <- result{err: fmt.Errorf("set psm %v: %w", mode, err)}
			return
		}
		if err := client.SetImage(path); err != nil {
			ch <- result{err: fmt.Errorf("set image: %w", err)}
			return
		}
		boxes, err := client.GetBoundingBoxesVerbose()
		if err != nil {
			ch <- result{err: fmt.Errorf("bounding boxes: %w", err)}
			return
		}
		tokens := make([]Token, 0, len(boxes))
		for _, b := range boxes {
			word := strings.TrimSpace(b.Word)
			if word == "" {
				continue
			}
			conf := b.Confidence
			if conf < 0 {
				conf = NoConfidence
			}
			tokens = append(tokens, Token{
				Text:       word,
				Confidence: conf,
				Page:       1,
				Block:      b.BlockNum,
				Paragraph:  b.ParNum,
				Line:       b.LineNum,
			})
		}
		ch <- result{tokens: tokens}
	}()
	select {
	case r := <-ch:
		return r.tokens, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Plain runs one whole-image transcription pass.
func (e *TesseractEngine) Plain(ctx context.Context, path, language string, mode SegMode) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		client := gosseract.NewClient()
		defer client.Close()
		if err := client.SetLanguage(language); err != nil {
			ch <- result{err: fmt.Errorf("set language %q: %w", language, err)}
			return
		}
		if err := client.SetPageSegMode(pageSegMode(mode)); err != nil {
			ch <- result{err: fmt.Errorf("set psm %v: %w", mode, err)}
			return
		}
		if err := client.SetImage(path); err != nil {
			ch <- result{err: fmt.Errorf("set image: %w", err)}
			return
		}
		text, err := client.Text()
		ch <- result{text: text, err: err}
	}()
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
