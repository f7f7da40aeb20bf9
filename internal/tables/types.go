package tables

import (
	"context"

	"github.com/scandoc/scandoc/internal/raster"
)

// TableResult holds the structured table content detected on one page:
// ordered rows of ordered cell strings. A table with zero rows is a valid
// outcome for a page without ruled structure.
type TableResult struct {
	Page int
	Rows [][]string
}

// Empty reports whether no table structure was detected on the page.
func (t TableResult) Empty() bool { return len(t.Rows) == 0 }

// Extractor produces a TableResult from a page raster, independent of the
// OCR path the orchestrator chose for text.
type Extractor interface {
	Extract(ctx context.Context, page raster.PageImage) (TableResult, error)
}

// Settings configures rule detection. Tolerances are in pixels; minimum
// rule lengths are fractions of the page dimension so they scale with DPI.
type Settings struct {
	// SnapTolerance clusters parallel rules whose coordinates differ by
	// at most this many pixels into one rule.
	SnapTolerance float64
	// JoinTolerance bridges gaps of up to this many pixels between
	// collinear rule segments.
	JoinTolerance float64
	// EdgeMinFrac is the minimum rule length as a fraction of the page
	// width (horizontal rules) or height (vertical rules).
	EdgeMinFrac float64
	// IntersectionTolerance is the allowed distance between a rule end
	// and a crossing rule for the two to count as intersecting.
	IntersectionTolerance float64
}

// DefaultSettings mirrors the tolerances commonly used for line-based table
// detection in PDF geometry extractors.
func DefaultSettings() Settings {
	return Settings{
		SnapTolerance:         3.0,
		JoinTolerance:         3.0,
		EdgeMinFrac:           0.10,
		IntersectionTolerance: 3.0,
	}
}
