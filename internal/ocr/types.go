package ocr

import (
	"context"
	"image"

	"github.com/scandoc/scandoc/internal/profile"
	"github.com/scandoc/scandoc/internal/raster"
)

// Token is a single recognized word with its confidence on the 0-100 scale.
type Token struct {
	Text       string
	Confidence float64
	Bounds     image.Rectangle
}

// PageResult is the engine output for one page.
type PageResult struct {
	// Page is the 1-based page number the result belongs to.
	Page int
	// Text is the linearized text extracted from the page.
	Text string
	// Tokens carries per-word confidences.
	Tokens []Token
	// EngineID names the engine variant that produced the result.
	EngineID string
}

// MeanConfidence is the arithmetic mean of per-token confidences. A page
// that produced zero tokens scores 0; it is derived, never authored.
func (r PageResult) MeanConfidence() float64 {
	if len(r.Tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range r.Tokens {
		sum += t.Confidence
	}
	return sum / float64(len(r.Tokens))
}

// Empty reports whether recognition produced no tokens at all. An empty
// page is flagged distinctly from a low-confidence one; the retry policy
// treats it as a transient engine condition.
func (r PageResult) Empty() bool {
	return len(r.Tokens) == 0
}

// Engine is the recognition capability: one page raster in, one result out.
// Engines are stateless; the orchestrator selects the variant per attempt
// without rebuilding the object graph.
type Engine interface {
	ID() string
	Extract(ctx context.Context, page raster.PageImage, prof profile.Profile) (PageResult, error)
}
