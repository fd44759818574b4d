package ocr

import "context"

// NoConfidence is the engine's "no detection" sentinel. Tokens carrying it are
// excluded from confidence averages rather than counted as zero.
const NoConfidence = -1

// Token is a single recognized word/fragment with its confidence (0-100, or
// NoConfidence) and the position key used to reconstruct line grouping.
type Token struct {
	Text       string
	Confidence float64
	Page       int
	Block      int
	Paragraph  int
	Line       int
}

// lineKey orders tokens by position for line reconstruction.
type lineKey struct {
	page, block, paragraph, line int
}

func (t Token) key() lineKey {
	return lineKey{t.Page, t.Block, t.Paragraph, t.Line}
}

func (a lineKey) less(b lineKey) bool {
	if a.page != b.page {
		return a.page < b.page
	}
	if a.block != b.block {
		return a.block < b.block
	}
	if a.paragraph != b.paragraph {
		return a.paragraph < b.paragraph
	}
	return a.line < b.line
}

// SegMode selects the page-segmentation assumption for a recognition attempt.
type SegMode int

const (
	SegSingleColumn SegMode = iota
	SegSparse
	SegSingleLine
	SegAuto
)

func (m SegMode) String() string {
	switch m {
	case SegSingleColumn:
		return "single-column"
	case SegSparse:
		return "sparse"
	case SegSingleLine:
		return "single-line"
	default:
		return "auto"
	}
}

// Engine is the external OCR collaborator. Implementations must honor the
// context so a stuck engine fails the document instead of hanging the pipeline.
type Engine interface {
	// Recognize returns per-token output for the image at path.
	Recognize(ctx context.Context, path, language string, mode SegMode) ([]Token, error)
	// Plain returns the whole-image transcription for the image at path.
	Plain(ctx context.Context, path, language string, mode SegMode) (string, error)
}
