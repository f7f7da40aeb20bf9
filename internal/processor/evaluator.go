package processor

import "github.com/scandoc/scandoc/internal/ocr"

// ConfidenceEvaluator reduces per-page OCR confidences to a document score
// and decides whether an attempt is acceptable.
type ConfidenceEvaluator struct{}

// DocumentConfidence is the unweighted mean of the per-page mean
// confidences, on the 0-100 scale. Pages without tokens score zero and
// still count, so a blank or failed page drags the document down.
func (ConfidenceEvaluator) DocumentConfidence(pages []ocr.PageResult) float64 {
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pages {
		sum += p.MeanConfidence()
	}
	return sum / float64(len(pages))
}

// Meets reports whether the score satisfies the profile threshold.
func (ConfidenceEvaluator) Meets(score, threshold float64) bool {
	return score >= threshold
}
