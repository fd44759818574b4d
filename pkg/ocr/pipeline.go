package ocr

import (
	"context"
	"image"
	"log"
	"path/filepath"
	"strings"
)

// Progress receives "page done of total" notifications during long runs. It
// is a side channel for a polling caller, not a correctness requirement.
type Progress func(page, total int)

// Pipeline wires the preprocessing, extraction and parsing stages into the
// per-document unit of work. A Pipeline is safe for concurrent use: each call
// owns its own buffers and shares no mutable state.
type Pipeline struct {
	cfg       Config
	extractor *Extractor
	parser    *Parser
}

func NewPipeline(engine Engine, cfg Config) *Pipeline {
	cfg = cfg.Normalize()
	return &Pipeline{
		cfg:       cfg,
		extractor: NewExtractor(engine, cfg),
		parser:    NewParser(cfg.VATRate),
	}
}

// Parser exposes the pipeline's field parser for re-parsing stored text.
func (p *Pipeline) Parser() *Parser {
	return p.parser
}

// ProcessFile runs the whole pipeline for one document: an image file goes
// straight through preprocess -> extract; a PDF is rasterized page by page
// first. The returned text is the best transcription; fields are the parsed
// candidate record. The context bounds every engine invocation, so a stuck
// engine fails the document instead of hanging.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, progress Progress) (string, ParsedFields, error) {
	text, err := p.ExtractFile(ctx, path, progress)
	if err != nil {
		return "", ParsedFields{}, err
	}
	return text, p.parser.ParseFields(text), nil
}

// ExtractFile runs preprocessing and OCR only, returning the raw text.
func (p *Pipeline) ExtractFile(ctx context.Context, path string, progress Progress) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return p.extractPDF(ctx, path, progress)
	}
	pre, err := Preprocess(path)
	if err != nil {
		return "", err
	}
	if progress != nil {
		progress(0, 1)
	}
	res, err := p.extractor.ExtractText(ctx, pre)
	if err != nil {
		return "", err
	}
	if progress != nil {
		progress(1, 1)
	}
	return res.Text, nil
}

func (p *Pipeline) extractPDF(ctx context.Context, path string, progress Progress) (string, error) {
	pages, err := rasterizePDF(path)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pre := preprocessPage(page)
		res, err := p.extractor.ExtractText(ctx, pre)
		if err != nil {
			return "", err
		}
		texts = append(texts, res.Text)
		if progress != nil {
			progress(i+1, len(pages))
		}
		log.Printf("OCR pipeline: %s page %d/%d variant=%s chars=%d", filepath.Base(path), i+1, len(pages), res.VariantUsed, len(res.Text))
	}
	return strings.Join(texts, "\n\n"), nil
}

// preprocessPage runs the transform chain on an in-memory page image.
func preprocessPage(img image.Image) image.Image {
	return preprocessImage(img)
}
