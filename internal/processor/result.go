package processor

import (
	"time"

	"github.com/scandoc/scandoc/internal/ocr"
	"github.com/scandoc/scandoc/internal/profile"
	"github.com/scandoc/scandoc/internal/tables"
)

// Status is the terminal outcome of a processing run.
type Status string

const (
	// StatusSucceeded means the accepted attempt met the confidence threshold.
	StatusSucceeded Status = "succeeded"
	// StatusPartialLowConfidence means every escalation was exhausted without
	// reaching the threshold; the best attempt seen is returned.
	StatusPartialLowConfidence Status = "partial_low_confidence"
	// StatusTimedOut means the processing time budget ran out between
	// attempts; the best attempt seen is returned.
	StatusTimedOut Status = "timed_out"
	// StatusFailed means no page text could be produced at all.
	StatusFailed Status = "failed"
)

// ProcessingResult is the aggregate outcome for one document.
type ProcessingResult struct {
	DocumentID   string
	DocumentPath string
	DocumentName string

	// Profile is the profile of the accepted attempt, which may be an
	// escalation of the profile the run started with.
	Profile profile.Profile

	Status     Status
	Pages      []ocr.PageResult
	Tables     []tables.TableResult
	Confidence float64

	// TableErrorPages lists pages whose table pass failed and was absorbed
	// into an empty result.
	TableErrorPages []int

	Attempts    int
	Escalations int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall-clock time the run took.
func (r ProcessingResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PageCount is the number of pages in the accepted attempt.
func (r ProcessingResult) PageCount() int { return len(r.Pages) }

// TableCount is the number of pages on which a table grid was detected.
func (r ProcessingResult) TableCount() int {
	n := 0
	for _, t := range r.Tables {
		if !t.Empty() {
			n++
		}
	}
	return n
}
