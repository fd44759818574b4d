package ocr

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

// Result is the outcome of text extraction for one image.
type Result struct {
	Text        string
	Confidence  float64
	VariantUsed string
}

// minimum usable lengths for the reconstructed and fallback transcriptions
const (
	minFilteredLen = 20
	minFallbackLen = 10
)

// Extractor runs the external engine over several cheap image variants and
// segmentation profiles and keeps the empirically best-scoring transcription.
// Receipt OCR quality is too sensitive to scale and contrast to predict the
// winning configuration in advance.
type Extractor struct {
	engine Engine
	cfg    Config
}

func NewExtractor(engine Engine, cfg Config) *Extractor {
	return &Extractor{engine: engine, cfg: cfg.Normalize()}
}

// variant is one transform of the preprocessed base image.
type variant struct {
	name string
	img  image.Image
}

func makeVariants(base image.Image) []variant {
	h := base.Bounds().Dy()
	return []variant{
		{"base", base},
		{"recontrast", imaging.AdjustContrast(base, 25)},
		{"scale-1.3x", imaging.Resize(base, 0, h*13/10, imaging.Lanczos)},
		{"scale-1.7x", imaging.Resize(base, 0, h*17/10, imaging.Lanczos)},
	}
}

var segProfiles = []SegMode{SegSingleColumn, SegSparse, SegSingleLine}

// attempt pairs one saved variant file with one segmentation profile.
type attempt struct {
	label string
	path  string
	mode  SegMode
}

// scored is a recognition attempt that already ran.
type scored struct {
	attempt attempt
	tokens  []Token
	score   float64
}

// bestScored enumerates attempts, scores each with run, and keeps the max.
// Per-attempt failures are tolerated; the collected errors come back so the
// caller can distinguish "all failed" from "nothing legible".
func bestScored[T any](items []T, run func(T) (float64, bool)) (T, float64, bool) {
	var best T
	bestScore := 0.0
	found := false
	for _, it := range items {
		s, ok := run(it)
		if !ok {
			continue
		}
		if !found || s > bestScore {
			best, bestScore, found = it, s, true
		}
	}
	return best, bestScore, found
}

// ExtractText OCRs the preprocessed image and returns the best transcription.
// It never fails for a decodable image: an empty string is the last resort.
// ErrEngine is returned only when every single engine attempt errored.
func (e *Extractor) ExtractText(ctx context.Context, base image.Image) (Result, error) {
	variants := makeVariants(base)

	var attempts []attempt
	var tmpPaths []string
	defer func() {
		for _, p := range tmpPaths {
			_ = os.Remove(p)
		}
	}()
	for _, v := range variants {
		f, err := os.CreateTemp("", "ocr-"+v.name+"-*.png")
		if err != nil {
			continue
		}
		_ = f.Close()
		if err := imaging.Save(v.img, f.Name()); err != nil {
			_ = os.Remove(f.Name())
			continue
		}
		tmpPaths = append(tmpPaths, f.Name())
		for _, mode := range segProfiles {
			attempts = append(attempts, attempt{label: v.name + "/" + mode.String(), path: f.Name(), mode: mode})
		}
	}

	var runs []scored
	var attemptErrs []error
	for _, a := range attempts {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		tokens, err := e.engine.Recognize(ctx, a.path, e.cfg.Language, a.mode)
		if err != nil {
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", a.label, err))
			continue
		}
		runs = append(runs, scored{attempt: a, tokens: tokens, score: meanConfidence(tokens)})
	}

	best, bestScore, ok := bestScored(runs, func(r scored) (float64, bool) {
		if len(r.tokens) == 0 {
			return 0, false
		}
		return r.score, true
	})
	if ok {
		text := reconstructLines(best.tokens, *e.cfg.MinTokenConfidence)
		if len(text) >= minFilteredLen {
			log.Printf("OCR extract: variant=%s score=%.1f chars=%d", best.attempt.label, bestScore, len(text))
			return Result{Text: text, Confidence: bestScore, VariantUsed: best.attempt.label}, nil
		}
	}

	// Filtered reconstruction was degenerate: fall back to unfiltered
	// whole-image transcription under broad profiles and keep the longer.
	if len(tmpPaths) > 0 {
		fallback := ""
		for _, mode := range []SegMode{SegAuto, SegSingleColumn} {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			text, err := e.engine.Plain(ctx, tmpPaths[0], e.cfg.Language, mode)
			if err != nil {
				attemptErrs = append(attemptErrs, fmt.Errorf("plain/%s: %w", mode, err))
				continue
			}
			text = strings.TrimSpace(text)
			if len(text) > len(fallback) {
				fallback = text
			}
		}
		if len(fallback) >= minFallbackLen {
			log.Printf("OCR extract: fallback plain transcription chars=%d", len(fallback))
			return Result{Text: fallback, Confidence: 0, VariantUsed: "plain-fallback"}, nil
		}
	}

	if len(runs) == 0 && len(attemptErrs) > 0 {
		return Result{}, fmt.Errorf("%w: %d attempts, last: %v", ErrEngine, len(attemptErrs), attemptErrs[len(attemptErrs)-1])
	}
	return Result{Text: "", Confidence: 0, VariantUsed: "none"}, nil
}

// meanConfidence averages token confidence, excluding the no-detection
// sentinel from the denominator rather than counting it as zero.
func meanConfidence(tokens []Token) float64 {
	var sum float64
	n := 0
	for _, t := range tokens {
		if t.Confidence == NoConfidence {
			continue
		}
		sum += t.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// reconstructLines groups gate-passing tokens by their position key, orders
// the groups, and joins words with spaces and lines with newlines.
func reconstructLines(tokens []Token, minConfidence int) string {
	groups := map[lineKey][]string{}
	for _, t := range tokens {
		if t.Confidence == NoConfidence || t.Confidence < float64(minConfidence) {
			continue
		}
		k := t.key()
		groups[k] = append(groups[k], t.Text)
	}
	keys := make([]lineKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, strings.Join(groups[k], " "))
	}
	return strings.Join(lines, "\n")
}
