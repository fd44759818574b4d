package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine scripts engine behavior per call for extractor tests.
type fakeEngine struct {
	recognize func(path string, mode SegMode) ([]Token, error)
	plain     func(path string, mode SegMode) (string, error)
}

func (f *fakeEngine) Recognize(ctx context.Context, path, language string, mode SegMode) ([]Token, error) {
	return f.recognize(path, mode)
}

func (f *fakeEngine) Plain(ctx context.Context, path, language string, mode SegMode) (string, error) {
	if f.plain == nil {
		return "", errors.New("plain not scripted")
	}
	return f.plain(path, mode)
}

func testImage() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 16, 16))
}

func gate(n int) *int { return &n }

func tok(text string, conf float64, block, par, line int) Token {
	return Token{Text: text, Confidence: conf, Page: 1, Block: block, Paragraph: par, Line: line}
}

func TestExtractTextPicksBestScoringAttempt(t *testing.T) {
	weak := []Token{tok("barely", 30, 1, 1, 1), tok("legible", 35, 1, 1, 1)}
	strong := []Token{
		tok("FRESH", 90, 1, 1, 1), tok("FOODS", 92, 1, 1, 1),
		tok("TOTAL", 88, 2, 1, 1), tok("122.45", 91, 2, 1, 1),
	}
	eng := &fakeEngine{
		recognize: func(path string, mode SegMode) ([]Token, error) {
			if mode == SegSparse {
				return strong, nil
			}
			return weak, nil
		},
	}
	e := NewExtractor(eng, Config{MinTokenConfidence: gate(55)})

	res, err := e.ExtractText(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "FRESH FOODS\nTOTAL 122.45", res.Text)
	assert.InDelta(t, 90.25, res.Confidence, 0.01)
	assert.Contains(t, res.VariantUsed, "sparse")
}

// A zero gate is a real configuration, not "unset": every scored token makes
// it into the reconstruction instead of being filtered at the default 55.
func TestExtractTextZeroGateAcceptsEveryToken(t *testing.T) {
	tokens := []Token{
		tok("FAINT", 12, 1, 1, 1), tok("CORNER", 9, 1, 1, 1), tok("SHOP", 14, 1, 1, 1),
		tok("TOTAL", 11, 1, 1, 2), tok("100.00", 8, 1, 1, 2),
	}
	eng := &fakeEngine{
		recognize: func(path string, mode SegMode) ([]Token, error) { return tokens, nil },
	}
	e := NewExtractor(eng, Config{MinTokenConfidence: gate(0)})

	res, err := e.ExtractText(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "FAINT CORNER SHOP\nTOTAL 100.00", res.Text)
	assert.NotEqual(t, "plain-fallback", res.VariantUsed)
}

func TestExtractTextToleratesPartialFailures(t *testing.T) {
	calls := 0
	good := []Token{
		tok("CORNER", 80, 1, 1, 1), tok("CAFE", 82, 1, 1, 1),
		tok("TOTAL", 79, 1, 1, 2), tok("100.00", 81, 1, 1, 2),
	}
	eng := &fakeEngine{
		recognize: func(path string, mode SegMode) ([]Token, error) {
			calls++
			if calls%2 == 0 {
				return nil, errors.New("engine hiccup")
			}
			return good, nil
		},
	}
	e := NewExtractor(eng, Config{})

	res, err := e.ExtractText(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "CORNER CAFE\nTOTAL 100.00", res.Text)
}

// A degenerate filtered reconstruction falls back to plain transcription.
func TestExtractTextFallsBackToPlain(t *testing.T) {
	eng := &fakeEngine{
		recognize: func(path string, mode SegMode) ([]Token, error) {
			// short low-confidence output: filtered text stays under the
			// usable threshold
			return []Token{tok("x", 10, 1, 1, 1)}, nil
		},
		plain: func(path string, mode SegMode) (string, error) {
			if mode == SegAuto {
				return "CORNER CAFE TOTAL 100.00\n", nil
			}
			return "short", nil
		},
	}
	e := NewExtractor(eng, Config{})

	res, err := e.ExtractText(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "CORNER CAFE TOTAL 100.00", res.Text)
	assert.Equal(t, "plain-fallback", res.VariantUsed)
	assert.Zero(t, res.Confidence)
}

// Blank but working recognition is not an engine failure.
func TestExtractTextBlankImageIsNotAnError(t *testing.T) {
	eng := &fakeEngine{
		recognize: func(path string, mode SegMode) ([]Token, error) { return nil, nil },
		plain:     func(path string, mode SegMode) (string, error) { return "", nil },
	}
	e := NewExtractor(eng, Config{})

	res, err := e.ExtractText(context.Background(), testImage())
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Equal(t, "none", res.VariantUsed)
}

func TestExtractTextAllAttemptsFailed(t *testing.T) {
	eng := &fakeEngine{
		recognize: func(path string, mode SegMode) ([]Token, error) { return nil, errors.New("tessdata missing") },
		plain:     func(path string, mode SegMode) (string, error) { return "", errors.New("tessdata missing") },
	}
	e := NewExtractor(eng, Config{})

	_, err := e.ExtractText(context.Background(), testImage())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngine)
}

func TestExtractTextHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := &fakeEngine{
		recognize: func(path string, mode SegMode) ([]Token, error) { return nil, nil },
	}
	e := NewExtractor(eng, Config{})

	_, err := e.ExtractText(ctx, testImage())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMeanConfidenceExcludesSentinel(t *testing.T) {
	tokens := []Token{
		tok("a", 80, 1, 1, 1),
		tok("b", NoConfidence, 1, 1, 1),
		tok("c", 60, 1, 1, 1),
	}
	assert.InDelta(t, 70.0, meanConfidence(tokens), 0.001)
	assert.Zero(t, meanConfidence([]Token{tok("a", NoConfidence, 1, 1, 1)}))
	assert.Zero(t, meanConfidence(nil))
}

func TestReconstructLines(t *testing.T) {
	tokens := []Token{
		// line groups interleaved on purpose; grouping must sort by position
		tok("TOTAL", 90, 2, 1, 1),
		tok("FRESH", 90, 1, 1, 1),
		tok("122.45", 90, 2, 1, 1),
		tok("FOODS", 90, 1, 1, 1),
		tok("noise", 20, 1, 1, 2),
		tok("ghost", NoConfidence, 1, 1, 2),
	}
	got := reconstructLines(tokens, 55)
	assert.Equal(t, "FRESH FOODS\nTOTAL 122.45", got)
}
