package raster

import (
	"bytes"
	"context"
	"image"
	"os"
	"strings"

	"github.com/scandoc/scandoc/internal/errors"
)

// PageImage is one rasterized page. The pixel buffer is owned by whichever
// pipeline stage is currently transforming it; ownership moves stage to
// stage and is never shared concurrently.
type PageImage struct {
	// Number is the 1-based page number within the document.
	Number int
	// DPI is the resolution the page was rendered at.
	DPI int
	// Img holds the decoded raster.
	Img image.Image
}

// Width returns the pixel width of the page raster.
func (p PageImage) Width() int {
	if p.Img == nil {
		return 0
	}
	return p.Img.Bounds().Dx()
}

// Height returns the pixel height of the page raster.
func (p PageImage) Height() int {
	if p.Img == nil {
		return 0
	}
	return p.Img.Bounds().Dy()
}

// PageSource is a lazy, finite sequence of rendered pages. It is consumed
// once and cannot be restarted; callers needing a second pass request a new
// source from the Rasterizer.
type PageSource interface {
	// Next renders and returns the next page. ok is false once the
	// sequence is exhausted.
	Next(ctx context.Context) (page PageImage, ok bool, err error)
	// Close releases any temporary render state.
	Close() error
}

// Rasterizer converts a PDF document into page rasters at a requested DPI.
type Rasterizer interface {
	// ToPages opens pdfPath and returns a page source plus the total page
	// count. Run-level failures (unreadable input, not a PDF) are returned
	// immediately.
	ToPages(ctx context.Context, pdfPath string, dpi int) (PageSource, int, error)
}

// Preflight rejects inputs that are not structurally PDF documents before
// any page is rendered: the extension must be .pdf and the file must start
// with the %PDF magic.
func Preflight(pdfPath string) error {
	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		return errors.NewUnsupportedFormatError(pdfPath)
	}

	f, err := os.Open(pdfPath)
	if err != nil {
		return errors.NewRasterizeError(pdfPath, err)
	}
	defer f.Close()

	magic := make([]byte, 5)
	n, err := f.Read(magic)
	if err != nil || n < 5 || !bytes.HasPrefix(magic, []byte("%PDF")) {
		return errors.NewUnsupportedFormatError(pdfPath)
	}

	return nil
}
