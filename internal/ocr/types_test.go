package ocr

import "testing"

func TestMeanConfidence(t *testing.T) {
	empty := PageResult{Page: 1}
	if got := empty.MeanConfidence(); got != 0 {
		t.Errorf("tokenless page confidence = %v, want 0", got)
	}
	if !empty.Empty() {
		t.Error("tokenless page should be empty")
	}

	page := PageResult{
		Page: 2,
		Text: "hola mundo",
		Tokens: []Token{
			{Text: "hola", Confidence: 95},
			{Text: "mundo", Confidence: 85},
		},
	}
	if got := page.MeanConfidence(); got != 90 {
		t.Errorf("MeanConfidence = %v, want 90", got)
	}
	if page.Empty() {
		t.Error("page with tokens should not be empty")
	}
}
