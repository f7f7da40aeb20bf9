package tables

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/scandoc/scandoc/internal/raster"
)

// TesseractCellReader recognizes cell regions with a short-lived Tesseract
// client per region, in single-block segmentation mode.
type TesseractCellReader struct {
	language      string
	clientFactory func() *gosseract.Client
}

// NewTesseractCellReader creates a cell reader for the given OCR language.
func NewTesseractCellReader(language string) *TesseractCellReader {
	return &TesseractCellReader{
		language:      language,
		clientFactory: gosseract.NewClient,
	}
}

// ReadRegion crops the region out of the page raster and runs recognition
// on the crop alone.
func (r *TesseractCellReader) ReadRegion(ctx context.Context, page raster.PageImage, region image.Rectangle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	crop := image.NewGray(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(crop, crop.Bounds(), page.Img, region.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return "", fmt.Errorf("encoding cell region: %w", err)
	}

	client := r.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("setting cell image: %w", err)
	}
	if err := client.SetLanguage(r.language); err != nil {
		return "", fmt.Errorf("setting language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("setting segmentation mode: %w", err)
	}
	if err := client.SetVariable("user_defined_dpi", fmt.Sprintf("%d", page.DPI)); err != nil {
		return "", fmt.Errorf("setting dpi: %w", err)
	}
	return client.Text()
}
