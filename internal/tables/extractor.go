package tables

import (
	"context"
	"image"
	"sort"
	"strings"

	scanerrors "github.com/scandoc/scandoc/internal/errors"
	"github.com/scandoc/scandoc/internal/logging"
	"github.com/scandoc/scandoc/internal/preprocess"
	"github.com/scandoc/scandoc/internal/raster"
)

const inkThreshold = 128

// CellReader recognizes the text inside one cell region of a page raster.
type CellReader interface {
	ReadRegion(ctx context.Context, page raster.PageImage, region image.Rectangle) (string, error)
}

// RuleExtractor detects ruled tables by finding long horizontal and vertical
// ink runs on a binarized raster, snapping them into a grid and reading each
// cell through a CellReader.
type RuleExtractor struct {
	settings Settings
	cells    CellReader
	logger   *logging.Logger
}

// RuleExtractorConfig holds the configuration for NewRuleExtractor.
type RuleExtractorConfig struct {
	Settings Settings
	Cells    CellReader
	Logger   *logging.Logger
}

// NewRuleExtractor creates a rule-based table extractor.
func NewRuleExtractor(cfg RuleExtractorConfig) *RuleExtractor {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("tables")
	}
	zero := Settings{}
	if cfg.Settings == zero {
		cfg.Settings = DefaultSettings()
	}
	return &RuleExtractor{settings: cfg.Settings, cells: cfg.Cells, logger: cfg.Logger}
}

// rule is a detected straight segment. For horizontal rules pos is the y
// coordinate and [lo,hi] the x extent; for vertical rules the reverse.
type rule struct {
	pos    float64
	lo, hi int
}

// Extract detects the grid on one page and reads its cells. A page without
// a detectable grid yields an empty TableResult, not an error.
func (e *RuleExtractor) Extract(ctx context.Context, page raster.PageImage) (TableResult, error) {
	result := TableResult{Page: page.Number}
	if err := ctx.Err(); err != nil {
		return result, scanerrors.NewTableExtractionError("", page.Number, err)
	}

	pipe := preprocess.New(preprocess.Options{Grayscale: true, Binarize: true})
	bin := pipe.Run(page.Img)
	gray, ok := bin.(*image.Gray)
	if !ok {
		return result, nil
	}

	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	minH := int(e.settings.EdgeMinFrac * float64(w))
	minV := int(e.settings.EdgeMinFrac * float64(h))

	hRules := e.mergeRules(e.scanHorizontal(gray, minH))
	vRules := e.mergeRules(e.scanVertical(gray, minV))
	if len(hRules) < 2 || len(vRules) < 2 {
		return result, nil
	}

	hRules, vRules = e.pruneDisconnected(hRules, vRules)
	if len(hRules) < 2 || len(vRules) < 2 {
		return result, nil
	}

	e.logger.Debug("grid detected", "page", page.Number, "rows", len(hRules)-1, "cols", len(vRules)-1)

	for ri := 0; ri < len(hRules)-1; ri++ {
		row := make([]string, 0, len(vRules)-1)
		for ci := 0; ci < len(vRules)-1; ci++ {
			region := cellRegion(hRules[ri], hRules[ri+1], vRules[ci], vRules[ci+1], b)
			text, err := e.readCell(ctx, page, region)
			if err != nil {
				return TableResult{Page: page.Number}, err
			}
			row = append(row, text)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func (e *RuleExtractor) readCell(ctx context.Context, page raster.PageImage, region image.Rectangle) (string, error) {
	if e.cells == nil || region.Empty() {
		return "", nil
	}
	text, err := e.cells.ReadRegion(ctx, page, region)
	if err != nil {
		return "", scanerrors.NewTableExtractionError("", page.Number, err)
	}
	return strings.TrimSpace(text), nil
}

// cellRegion is the interior of one grid cell, inset so the rules themselves
// do not leak into the cell text.
func cellRegion(top, bottom, left, right rule, bounds image.Rectangle) image.Rectangle {
	const inset = 2
	r := image.Rect(
		int(left.pos)+inset,
		int(top.pos)+inset,
		int(right.pos)-inset,
		int(bottom.pos)-inset,
	)
	return r.Intersect(bounds)
}

// scanHorizontal finds per-row ink runs of at least minLen pixels, bridging
// gaps up to JoinTolerance.
func (e *RuleExtractor) scanHorizontal(img *image.Gray, minLen int) []rule {
	b := img.Bounds()
	join := int(e.settings.JoinTolerance)
	var rules []rule
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start, gap := -1, 0
		last := -1
		flush := func(end int) {
			if start >= 0 && end-start+1 >= minLen {
				rules = append(rules, rule{pos: float64(y), lo: start, hi: end})
			}
			start, gap, last = -1, 0, -1
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, y).Y < inkThreshold {
				if start < 0 {
					start = x
				}
				last = x
				gap = 0
			} else if start >= 0 {
				gap++
				if gap > join {
					flush(last)
				}
			}
		}
		flush(last)
	}
	return rules
}

func (e *RuleExtractor) scanVertical(img *image.Gray, minLen int) []rule {
	b := img.Bounds()
	join := int(e.settings.JoinTolerance)
	var rules []rule
	for x := b.Min.X; x < b.Max.X; x++ {
		start, gap := -1, 0
		last := -1
		flush := func(end int) {
			if start >= 0 && end-start+1 >= minLen {
				rules = append(rules, rule{pos: float64(x), lo: start, hi: end})
			}
			start, gap, last = -1, 0, -1
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if img.GrayAt(x, y).Y < inkThreshold {
				if start < 0 {
					start = y
				}
				last = y
				gap = 0
			} else if start >= 0 {
				gap++
				if gap > join {
					flush(last)
				}
			}
		}
		flush(last)
	}
	return rules
}

// mergeRules clusters parallel rules within SnapTolerance into one rule at
// the average position, spanning the union of the member extents.
func (e *RuleExtractor) mergeRules(rules []rule) []rule {
	if len(rules) == 0 {
		return nil
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].pos < rules[j].pos })
	var merged []rule
	cur := rules[0]
	sum, n := cur.pos, 1
	for _, r := range rules[1:] {
		if r.pos-cur.pos <= e.settings.SnapTolerance {
			if r.lo < cur.lo {
				cur.lo = r.lo
			}
			if r.hi > cur.hi {
				cur.hi = r.hi
			}
			sum += r.pos
			n++
			cur.pos = r.pos
			continue
		}
		cur.pos = sum / float64(n)
		merged = append(merged, cur)
		cur, sum, n = r, r.pos, 1
	}
	cur.pos = sum / float64(n)
	merged = append(merged, cur)
	return merged
}

// pruneDisconnected keeps only rules that cross at least two rules of the
// other orientation, so stray underlines do not distort the grid.
func (e *RuleExtractor) pruneDisconnected(hRules, vRules []rule) ([]rule, []rule) {
	tol := e.settings.IntersectionTolerance
	crosses := func(h, v rule) bool {
		return v.pos >= float64(h.lo)-tol && v.pos <= float64(h.hi)+tol &&
			h.pos >= float64(v.lo)-tol && h.pos <= float64(v.hi)+tol
	}
	var keptH []rule
	for _, h := range hRules {
		n := 0
		for _, v := range vRules {
			if crosses(h, v) {
				n++
			}
		}
		if n >= 2 {
			keptH = append(keptH, h)
		}
	}
	var keptV []rule
	for _, v := range vRules {
		n := 0
		for _, h := range keptH {
			if crosses(h, v) {
				n++
			}
		}
		if n >= 2 {
			keptV = append(keptV, v)
		}
	}
	return keptH, keptV
}
