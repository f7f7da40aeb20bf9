package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/scandoc/scandoc/internal/ocr"
	"github.com/scandoc/scandoc/internal/profile"
	"github.com/scandoc/scandoc/internal/raster"
	"github.com/scandoc/scandoc/internal/tables"
)

// =============================================================================
// Test doubles
// =============================================================================

type fakeSource struct {
	pages []raster.PageImage
	i     int
}

func (s *fakeSource) Next(ctx context.Context) (raster.PageImage, bool, error) {
	if err := ctx.Err(); err != nil {
		return raster.PageImage{}, false, err
	}
	if s.i >= len(s.pages) {
		return raster.PageImage{}, false, nil
	}
	p := s.pages[s.i]
	s.i++
	return p, true, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeRasterizer struct {
	pageCount int
	err       error
	dpiCalls  []int
}

func (r *fakeRasterizer) ToPages(ctx context.Context, pdfPath string, dpi int) (raster.PageSource, int, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	r.dpiCalls = append(r.dpiCalls, dpi)
	pages := make([]raster.PageImage, r.pageCount)
	for i := range pages {
		pages[i] = raster.PageImage{
			Number: i + 1,
			DPI:    dpi,
			Img:    image.NewGray(image.Rect(0, 0, 8, 8)),
		}
	}
	return &fakeSource{pages: pages}, r.pageCount, nil
}

// fakeEngine scores every page of attempt n with confidences[n]. Pages
// listed in errPages fail with an engine error on every attempt; attempts
// listed in failAttempts fail on every page.
type fakeEngine struct {
	id           string
	confidences  []float64
	errPages     map[int]bool
	failAttempts map[int]bool
	attempt      int
}

func (e *fakeEngine) ID() string { return e.id }

func (e *fakeEngine) Extract(ctx context.Context, page raster.PageImage, prof profile.Profile) (ocr.PageResult, error) {
	if page.Number == 1 {
		e.attempt++
	}
	if e.errPages[page.Number] || e.failAttempts[e.attempt] {
		return ocr.PageResult{}, errors.New("recognition failed")
	}
	idx := e.attempt - 1
	if idx >= len(e.confidences) {
		idx = len(e.confidences) - 1
	}
	return ocr.PageResult{
		Page:     page.Number,
		Text:     fmt.Sprintf("page %d text", page.Number),
		EngineID: e.id,
		Tokens: []ocr.Token{
			{Text: "page", Confidence: e.confidences[idx]},
			{Text: "text", Confidence: e.confidences[idx]},
		},
	}, nil
}

// sharedEngine lets the basic and preprocessed engines share one attempt
// counter, since escalation switches engines mid-run.
func sharedEngines(confidences []float64) (*fakeEngine, *fakeEngine) {
	e := &fakeEngine{id: "fake", confidences: confidences}
	return e, e
}

type fakeTables struct {
	calls    int
	errPages map[int]bool
}

func (f *fakeTables) Extract(ctx context.Context, page raster.PageImage) (tables.TableResult, error) {
	f.calls++
	if f.errPages[page.Number] {
		return tables.TableResult{}, errors.New("grid detection failed")
	}
	return tables.TableResult{
		Page: page.Number,
		Rows: [][]string{{"h1", "h2"}, {"a", "b"}},
	}, nil
}

// fakeClock returns scripted instants, repeating the last one.
type fakeClock struct {
	times []time.Time
	i     int
}

func (c *fakeClock) now() time.Time {
	if c.i >= len(c.times) {
		return c.times[len(c.times)-1]
	}
	t := c.times[c.i]
	c.i++
	return t
}

func newTestProcessor(r raster.Rasterizer, basic, preprocessed ocr.Engine, tbl tables.Extractor) *Processor {
	return NewProcessor(Config{
		Rasterizer:   r,
		Basic:        basic,
		Preprocessed: preprocessed,
		Tables:       tbl,
	})
}

// =============================================================================
// Tests
// =============================================================================

func TestProcessSucceedsFirstAttempt(t *testing.T) {
	rast := &fakeRasterizer{pageCount: 2}
	basic, pre := sharedEngines([]float64{90})
	tbl := &fakeTables{}
	proc := newTestProcessor(rast, basic, pre, tbl)

	result, err := proc.Process(context.Background(), "/docs/clean.pdf", profile.Balanced())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.Status != StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", result.Status)
	}
	if result.Attempts != 1 || result.Escalations != 0 {
		t.Errorf("Attempts = %d, Escalations = %d, want 1 and 0", result.Attempts, result.Escalations)
	}
	if result.Confidence != 90 {
		t.Errorf("Confidence = %v, want 90", result.Confidence)
	}
	if result.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", result.PageCount())
	}
	for i, p := range result.Pages {
		if p.Page != i+1 {
			t.Errorf("page %d out of order: got page number %d", i, p.Page)
		}
	}
	// One raster pass for OCR, one for tables.
	if len(rast.dpiCalls) != 2 {
		t.Errorf("rasterizer called %d times, want 2", len(rast.dpiCalls))
	}
	if tbl.calls != 2 {
		t.Errorf("table extractor called %d times, want once per page", tbl.calls)
	}
}

func TestProcessEscalatesUntilThresholdMet(t *testing.T) {
	rast := &fakeRasterizer{pageCount: 1}
	basic, pre := sharedEngines([]float64{30, 90})
	proc := newTestProcessor(rast, basic, pre, nil)

	result, err := proc.Process(context.Background(), "/docs/scan.pdf", profile.Fast())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.Status != StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", result.Status)
	}
	if result.Attempts != 2 || result.Escalations != 1 {
		t.Errorf("Attempts = %d, Escalations = %d, want 2 and 1", result.Attempts, result.Escalations)
	}
	if result.Profile.Level != profile.LevelBalanced {
		t.Errorf("accepted profile = %s, want balanced", result.Profile.Level)
	}
	if !result.Profile.Preprocess {
		t.Error("escalated profile should force preprocessing on")
	}
	// Each attempt re-rasterizes at its own DPI.
	want := []int{150, 300}
	if len(rast.dpiCalls) != len(want) {
		t.Fatalf("rasterizer DPIs = %v, want %v", rast.dpiCalls, want)
	}
	for i, dpi := range want {
		if rast.dpiCalls[i] != dpi {
			t.Errorf("raster call %d DPI = %d, want %d", i, rast.dpiCalls[i], dpi)
		}
	}
}

func TestProcessExhaustedKeepsBestAttempt(t *testing.T) {
	rast := &fakeRasterizer{pageCount: 1}
	basic, pre := sharedEngines([]float64{30, 45, 20})
	proc := newTestProcessor(rast, basic, pre, nil)

	result, err := proc.Process(context.Background(), "/docs/bad.pdf", profile.Fast())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.Status != StatusPartialLowConfidence {
		t.Errorf("Status = %s, want partial_low_confidence", result.Status)
	}
	if result.Attempts != 3 || result.Escalations != 2 {
		t.Errorf("Attempts = %d, Escalations = %d, want 3 and 2", result.Attempts, result.Escalations)
	}
	if result.Confidence != 45 {
		t.Errorf("Confidence = %v, want best-seen 45", result.Confidence)
	}
	if result.Profile.Level != profile.LevelBalanced {
		t.Errorf("best profile = %s, want balanced", result.Profile.Level)
	}
	if result.PageCount() != 1 {
		t.Errorf("best attempt pages lost: PageCount = %d", result.PageCount())
	}
}

func TestProcessStopsWhenEscalationExhausted(t *testing.T) {
	rast := &fakeRasterizer{pageCount: 1}
	basic, pre := sharedEngines([]float64{40})
	proc := newTestProcessor(rast, basic, pre, nil)

	result, err := proc.Process(context.Background(), "/docs/bad.pdf", profile.HighQuality())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// Already at the top with preprocessing on and every page carrying
	// tokens: an identical retry of a deterministic pipeline cannot improve
	// the score, so the run stops after one attempt.
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if result.Status != StatusPartialLowConfidence {
		t.Errorf("Status = %s, want partial_low_confidence", result.Status)
	}
}

func TestProcessRetriesSameProfileAfterEmptyPages(t *testing.T) {
	rast := &fakeRasterizer{pageCount: 1}
	basic, pre := sharedEngines([]float64{0, 90})
	basic.failAttempts = map[int]bool{1: true}
	proc := newTestProcessor(rast, basic, pre, nil)

	result, err := proc.Process(context.Background(), "/docs/flaky.pdf", profile.HighQuality())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// The first attempt absorbed an engine failure into a tokenless page.
	// With no escalation left, the same profile is retried and recovers.
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want an identical retry after empty pages", result.Attempts)
	}
	if result.Escalations != 0 {
		t.Errorf("Escalations = %d, want 0", result.Escalations)
	}
	if result.Status != StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", result.Status)
	}
	if result.Confidence != 90 {
		t.Errorf("Confidence = %v, want 90", result.Confidence)
	}
}

func TestProcessStuckEngineExhaustsRetryBudget(t *testing.T) {
	rast := &fakeRasterizer{pageCount: 1}
	basic, pre := sharedEngines([]float64{0})
	basic.errPages = map[int]bool{1: true}
	proc := newTestProcessor(rast, basic, pre, nil)

	result, err := proc.Process(context.Background(), "/docs/dead.pdf", profile.HighQuality())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// A persistently failing engine keeps producing empty pages; identical
	// retries run until the budget is gone.
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want initial attempt plus two retries", result.Attempts)
	}
	if result.Status != StatusPartialLowConfidence {
		t.Errorf("Status = %s, want partial_low_confidence", result.Status)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", result.Confidence)
	}
	if result.PageCount() != 1 {
		t.Errorf("PageCount = %d, want the placeholder page kept", result.PageCount())
	}
}

func TestProcessRespectsRetryBudget(t *testing.T) {
	prof, err := profile.Fast().With(profile.WithMaxRetries(1))
	if err != nil {
		t.Fatal(err)
	}

	rast := &fakeRasterizer{pageCount: 1}
	basic, pre := sharedEngines([]float64{10, 20, 30, 40})
	proc := newTestProcessor(rast, basic, pre, nil)

	result, err := proc.Process(context.Background(), "/docs/bad.pdf", prof)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want initial attempt plus one retry", result.Attempts)
	}
}

func TestProcessTimeBudget(t *testing.T) {
	rast := &fakeRasterizer{pageCount: 2}
	basic, pre := sharedEngines([]float64{30, 90})
	proc := newTestProcessor(rast, basic, pre, nil)

	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{times: []time.Time{t0, t0.Add(6 * time.Minute), t0.Add(7 * time.Minute)}}
	proc.now = clock.now

	result, err := proc.Process(context.Background(), "/docs/slow.pdf", profile.Fast())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.Status != StatusTimedOut {
		t.Errorf("Status = %s, want timed_out", result.Status)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 before the budget check fired", result.Attempts)
	}
	if result.PageCount() != 2 {
		t.Errorf("timed-out result must keep the best attempt's pages, got %d", result.PageCount())
	}
	if result.Confidence != 30 {
		t.Errorf("Confidence = %v, want best-seen 30", result.Confidence)
	}
}

func TestProcessEngineErrorIsolatedPerPage(t *testing.T) {
	rast := &fakeRasterizer{pageCount: 3}
	basic, pre := sharedEngines([]float64{90})
	basic.errPages = map[int]bool{2: true}
	proc := newTestProcessor(rast, basic, pre, nil)

	result, err := proc.Process(context.Background(), "/docs/mixed.pdf", profile.Balanced())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.PageCount() != 3 {
		t.Fatalf("PageCount = %d, want all 3 pages", result.PageCount())
	}
	if result.Pages[1].Page != 2 || !result.Pages[1].Empty() {
		t.Errorf("failed page should be a tokenless placeholder: %+v", result.Pages[1])
	}
	if result.Pages[0].Empty() || result.Pages[2].Empty() {
		t.Error("neighboring pages must not be disturbed by one engine failure")
	}
	// Mean over (90, 0, 90) = 60 meets the balanced threshold.
	if result.Status != StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", result.Status)
	}
	if result.Confidence != 60 {
		t.Errorf("Confidence = %v, want 60", result.Confidence)
	}
}

func TestProcessRasterizeFailure(t *testing.T) {
	rast := &fakeRasterizer{err: errors.New("pdftoppm: command not found")}
	basic, pre := sharedEngines([]float64{90})
	proc := newTestProcessor(rast, basic, pre, nil)

	result, err := proc.Process(context.Background(), "/docs/broken.pdf", profile.Balanced())
	if err == nil {
		t.Fatal("expected an error")
	}
	if result.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", result.Status)
	}
}

func TestProcessTableFailureIsolatedPerPage(t *testing.T) {
	rast := &fakeRasterizer{pageCount: 3}
	basic, pre := sharedEngines([]float64{90})
	tbl := &fakeTables{errPages: map[int]bool{2: true}}
	proc := newTestProcessor(rast, basic, pre, tbl)

	result, err := proc.Process(context.Background(), "/docs/tables.pdf", profile.Balanced())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(result.Tables) != 3 {
		t.Fatalf("Tables len = %d, want 3", len(result.Tables))
	}
	if !result.Tables[1].Empty() {
		t.Error("failed page should yield an empty table result")
	}
	if result.Tables[0].Empty() || result.Tables[2].Empty() {
		t.Error("table failure on one page must not disturb the others")
	}
	if result.TableCount() != 2 {
		t.Errorf("TableCount = %d, want 2", result.TableCount())
	}
	if len(result.TableErrorPages) != 1 || result.TableErrorPages[0] != 2 {
		t.Errorf("TableErrorPages = %v, want [2]", result.TableErrorPages)
	}
}

func TestProcessRecordsNoTableErrorsOnCleanRun(t *testing.T) {
	rast := &fakeRasterizer{pageCount: 2}
	basic, pre := sharedEngines([]float64{90})
	proc := newTestProcessor(rast, basic, pre, &fakeTables{})

	result, err := proc.Process(context.Background(), "/docs/clean.pdf", profile.Balanced())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.TableErrorPages) != 0 {
		t.Errorf("TableErrorPages = %v, want none", result.TableErrorPages)
	}
}

func TestDocumentConfidence(t *testing.T) {
	var eval ConfidenceEvaluator

	if got := eval.DocumentConfidence(nil); got != 0 {
		t.Errorf("empty document confidence = %v, want 0", got)
	}

	pages := []ocr.PageResult{
		{Page: 1, Tokens: []ocr.Token{{Confidence: 80}, {Confidence: 100}}},
		{Page: 2},
		{Page: 3, Tokens: []ocr.Token{{Confidence: 60}}},
	}
	// Page means are 90, 0 and 60; the document mean is 50.
	if got := eval.DocumentConfidence(pages); got != 50 {
		t.Errorf("DocumentConfidence = %v, want 50", got)
	}
}
