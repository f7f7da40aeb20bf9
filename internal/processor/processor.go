package processor

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	scanerrors "github.com/scandoc/scandoc/internal/errors"
	"github.com/scandoc/scandoc/internal/logging"
	"github.com/scandoc/scandoc/internal/ocr"
	"github.com/scandoc/scandoc/internal/profile"
	"github.com/scandoc/scandoc/internal/raster"
	"github.com/scandoc/scandoc/internal/tables"
)

// =============================================================================
// PROCESSOR - Document processing orchestrator
// =============================================================================

// Processor drives a document through rasterization, OCR attempts with
// confidence-gated escalation, table extraction and aggregation.
type Processor struct {
	rasterizer   raster.Rasterizer
	basic        ocr.Engine
	preprocessed ocr.Engine
	tables       tables.Extractor
	evaluator    ConfidenceEvaluator
	logger       *logging.Logger
	now          func() time.Time
}

// Config holds the configuration for NewProcessor.
type Config struct {
	Rasterizer   raster.Rasterizer
	Basic        ocr.Engine
	Preprocessed ocr.Engine
	Tables       tables.Extractor
	Logger       *logging.Logger
}

// NewProcessor creates a document processor.
func NewProcessor(cfg Config) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("processor")
	}
	return &Processor{
		rasterizer:   cfg.Rasterizer,
		basic:        cfg.Basic,
		preprocessed: cfg.Preprocessed,
		tables:       cfg.Tables,
		logger:       cfg.Logger,
		now:          time.Now,
	}
}

// attempt is the outcome of one full OCR pass over the document.
type attempt struct {
	profile    profile.Profile
	pages      []ocr.PageResult
	confidence float64
}

// Process runs the full pipeline on one document. The returned result is
// meaningful even when err is non-nil: a rasterization failure yields
// StatusFailed with the error attached.
func (p *Processor) Process(ctx context.Context, documentPath string, prof profile.Profile) (ProcessingResult, error) {
	start := p.now()
	result := ProcessingResult{
		DocumentID:   uuid.New().String(),
		DocumentPath: documentPath,
		DocumentName: documentName(documentPath),
		Profile:      prof,
		StartedAt:    start,
	}

	p.logger.Info("processing document",
		"document", result.DocumentName,
		"profile", prof.Level.String(),
		"language", prof.Language)

	budget := prof.MaxProcessingTime
	attemptLimit := 1 + prof.MaxRetries

	var best attempt
	haveBest := false
	timedOut := false
	accepted := false

	for i := 0; i < attemptLimit; i++ {
		result.Attempts++

		att, err := p.runAttempt(ctx, documentPath, prof)
		if err != nil {
			result.Status = StatusFailed
			result.FinishedAt = p.now()
			return result, err
		}

		att.confidence = p.evaluator.DocumentConfidence(att.pages)
		p.logger.Info("attempt evaluated",
			"document", result.DocumentName,
			"attempt", result.Attempts,
			"profile", att.profile.Level.String(),
			"confidence", att.confidence,
			"threshold", att.profile.ConfidenceThreshold)

		if !haveBest || att.confidence > best.confidence {
			best = att
			haveBest = true
		}

		if p.evaluator.Meets(att.confidence, att.profile.ConfidenceThreshold) {
			best = att
			accepted = true
			break
		}

		// The time budget is only consulted between attempts. An attempt
		// already in flight runs to completion.
		if p.now().Sub(start) >= budget {
			timedOut = true
			p.logger.Warn("time budget exhausted",
				"document", result.DocumentName,
				"budget", budget.String())
			break
		}

		next, ok := prof.Escalate()
		if !ok {
			if !hasEmptyPages(att.pages) {
				// Deterministic low confidence at the top of the ladder;
				// an identical retry cannot improve the score.
				break
			}
			// Zero-token pages flag a transient engine condition, so the
			// same profile gets another attempt while budget remains.
			p.logger.Info("retrying after empty pages",
				"document", result.DocumentName,
				"profile", prof.Level.String())
			continue
		}
		prof = next
		result.Escalations++
		p.logger.Info("escalating profile",
			"document", result.DocumentName,
			"profile", next.Level.String(),
			"dpi", next.DPI)
	}

	result.Profile = best.profile
	result.Pages = best.pages
	result.Confidence = best.confidence

	switch {
	case accepted:
		result.Status = StatusSucceeded
	case timedOut:
		result.Status = StatusTimedOut
	default:
		result.Status = StatusPartialLowConfidence
	}

	if err := p.extractTables(ctx, documentPath, &result); err != nil {
		p.logger.Warn("table extraction skipped",
			"document", result.DocumentName,
			"error", err.Error())
	}

	result.FinishedAt = p.now()
	p.logger.Info("processing complete",
		"document", result.DocumentName,
		"status", string(result.Status),
		"confidence", result.Confidence,
		"attempts", result.Attempts,
		"duration", result.Duration().String())
	return result, nil
}

// runAttempt rasterizes the document at the profile DPI and recognizes every
// page. An engine failure on one page yields a tokenless placeholder for
// that page and does not disturb the others; a rasterization failure aborts
// the attempt.
func (p *Processor) runAttempt(ctx context.Context, documentPath string, prof profile.Profile) (attempt, error) {
	att := attempt{profile: prof}

	source, pageCount, err := p.rasterizer.ToPages(ctx, documentPath, prof.DPI)
	if err != nil {
		return att, err
	}
	defer source.Close()

	att.pages = make([]ocr.PageResult, 0, pageCount)
	engine := p.engineFor(prof)

	for {
		page, ok, err := source.Next(ctx)
		if err != nil {
			return att, err
		}
		if !ok {
			break
		}

		res, err := engine.Extract(ctx, page, prof)
		if err != nil {
			if ctx.Err() != nil {
				return att, scanerrors.NewEngineError(documentPath, page.Number, ctx.Err())
			}
			p.logger.Warn("engine failed on page",
				"document", documentPath,
				"page", page.Number,
				"engine", engine.ID(),
				"error", err.Error())
			res = ocr.PageResult{Page: page.Number, EngineID: engine.ID()}
		}
		att.pages = append(att.pages, res)
	}
	return att, nil
}

func (p *Processor) engineFor(prof profile.Profile) ocr.Engine {
	if prof.Preprocess && p.preprocessed != nil {
		return p.preprocessed
	}
	return p.basic
}

// extractTables runs exactly one table pass over the document at the
// accepted profile's DPI. A failure on one page leaves that page with an
// empty table and does not disturb the others.
func (p *Processor) extractTables(ctx context.Context, documentPath string, result *ProcessingResult) error {
	if p.tables == nil || len(result.Pages) == 0 {
		return nil
	}

	source, pageCount, err := p.rasterizer.ToPages(ctx, documentPath, result.Profile.DPI)
	if err != nil {
		return err
	}
	defer source.Close()

	result.Tables = make([]tables.TableResult, 0, pageCount)
	for {
		page, ok, err := source.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		tr, err := p.tables.Extract(ctx, page)
		if err != nil {
			p.logger.Warn("table extraction failed on page",
				"document", documentPath,
				"page", page.Number,
				"error", err.Error())
			result.TableErrorPages = append(result.TableErrorPages, page.Number)
			tr = tables.TableResult{Page: page.Number}
		}
		result.Tables = append(result.Tables, tr)
	}
	return nil
}

// hasEmptyPages reports whether any page of the attempt produced zero
// tokens, the signature of an absorbed per-page engine failure.
func hasEmptyPages(pages []ocr.PageResult) bool {
	for _, pg := range pages {
		if pg.Empty() {
			return true
		}
	}
	return false
}

func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
