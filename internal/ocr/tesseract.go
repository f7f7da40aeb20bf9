package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/scandoc/scandoc/internal/errors"
	"github.com/scandoc/scandoc/internal/preprocess"
	"github.com/scandoc/scandoc/internal/profile"
	"github.com/scandoc/scandoc/internal/raster"
)

// BasicEngine recognizes the raw page raster directly. Fast, appropriate
// for clean digitally-generated documents.
type BasicEngine struct {
	clientFactory func() *gosseract.Client
}

// NewBasicEngine constructs the direct Tesseract engine.
func NewBasicEngine() *BasicEngine {
	return &BasicEngine{clientFactory: gosseract.NewClient}
}

func (e *BasicEngine) ID() string { return "tesseract-basic" }

// Extract implements Engine.
func (e *BasicEngine) Extract(ctx context.Context, page raster.PageImage, prof profile.Profile) (PageResult, error) {
	return recognize(ctx, e.clientFactory, page, page.Img, prof, e.ID())
}

// PreprocessedEngine runs the preprocessing pipeline per the active
// profile's flags before recognition.
type PreprocessedEngine struct {
	clientFactory func() *gosseract.Client
}

// NewPreprocessedEngine constructs the pipeline-backed Tesseract engine.
func NewPreprocessedEngine() *PreprocessedEngine {
	return &PreprocessedEngine{clientFactory: gosseract.NewClient}
}

func (e *PreprocessedEngine) ID() string { return "tesseract-preprocessed" }

// Extract implements Engine. The pipeline takes ownership of the page
// buffer for the duration of the transform; recognition runs on the
// transformed raster.
func (e *PreprocessedEngine) Extract(ctx context.Context, page raster.PageImage, prof profile.Profile) (PageResult, error) {
	pipeline := preprocess.New(preprocess.FromProfile(prof))
	transformed := pipeline.Run(page.Img)
	return recognize(ctx, e.clientFactory, page, transformed, prof, e.ID())
}

// recognize drives one gosseract client over an encoded raster. A fresh
// client per call keeps engines stateless under concurrent document runs.
func recognize(ctx context.Context, factory func() *gosseract.Client, page raster.PageImage, img image.Image, prof profile.Profile, engineID string) (PageResult, error) {
	select {
	case <-ctx.Done():
		return PageResult{}, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return PageResult{}, errors.NewEngineError("", page.Number, fmt.Errorf("encode page: %w", err))
	}

	client := factory()
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return PageResult{}, errors.NewEngineError("", page.Number, fmt.Errorf("set image: %w", err))
	}
	if prof.Language != "" {
		if err := client.SetLanguage(prof.Language); err != nil {
			return PageResult{}, errors.NewEngineError("", page.Number, fmt.Errorf("set language: %w", err))
		}
	}
	if page.DPI > 0 {
		if err := client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(page.DPI)); err != nil {
			return PageResult{}, errors.NewEngineError("", page.Number, fmt.Errorf("set dpi: %w", err))
		}
	}

	text, err := client.Text()
	if err != nil {
		return PageResult{}, errors.NewEngineError("", page.Number, fmt.Errorf("recognize text: %w", err))
	}

	return PageResult{
		Page:     page.Number,
		Text:     strings.TrimSpace(text),
		Tokens:   extractTokens(client),
		EngineID: engineID,
	}, nil
}

// extractTokens pulls word-level confidences from the recognizer. A failed
// box query degrades to an empty token list, which the evaluator treats as
// a zero-token page.
func extractTokens(client *gosseract.Client) []Token {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	tokens := make([]Token, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		tokens = append(tokens, Token{
			Text:       word,
			Confidence: b.Confidence,
			Bounds:     b.Box,
		})
	}
	return tokens
}
