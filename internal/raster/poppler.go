package raster

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/avast/retry-go/v4"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/scandoc/scandoc/internal/errors"
	"github.com/scandoc/scandoc/internal/logging"
)

// PopplerRasterizer renders PDF pages with pdftoppm (poppler-utils). The
// page count comes from pdfcpu, which also doubles as structural validation
// of the input document.
type PopplerRasterizer struct {
	logger  *logging.Logger
	tempDir string
}

// NewPopplerRasterizer creates a rasterizer that writes intermediate page
// renders under tempDir.
func NewPopplerRasterizer(tempDir string, logger *logging.Logger) *PopplerRasterizer {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &PopplerRasterizer{
		logger:  logger,
		tempDir: tempDir,
	}
}

// ToPages implements Rasterizer.
func (r *PopplerRasterizer) ToPages(ctx context.Context, pdfPath string, dpi int) (PageSource, int, error) {
	if err := Preflight(pdfPath); err != nil {
		return nil, 0, err
	}

	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, 0, errors.NewRasterizeError(pdfPath, err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, 0, errors.NewRasterizeError(pdfPath, fmt.Errorf("page count: %w", err))
	}
	if pageCount == 0 {
		return nil, 0, errors.NewRasterizeError(pdfPath, fmt.Errorf("document has no pages"))
	}

	tmpDir, err := os.MkdirTemp(r.tempDir, "scandoc-pages-*")
	if err != nil {
		return nil, 0, errors.NewRasterizeError(pdfPath, err)
	}

	if r.logger != nil {
		r.logger.Debug("rasterizer opened document",
			"path", pdfPath,
			"pages", pageCount,
			"dpi", dpi)
	}

	return &popplerSource{
		pdfPath:   pdfPath,
		dpi:       dpi,
		pageCount: pageCount,
		tmpDir:    tmpDir,
		next:      1,
	}, pageCount, nil
}

// popplerSource renders pages one at a time as Next is called.
type popplerSource struct {
	pdfPath   string
	dpi       int
	pageCount int
	tmpDir    string
	next      int
}

func (s *popplerSource) Next(ctx context.Context) (PageImage, bool, error) {
	if s.next > s.pageCount {
		return PageImage{}, false, nil
	}

	pageNum := s.next
	s.next++

	img, err := s.renderPage(ctx, pageNum)
	if err != nil {
		return PageImage{}, false, errors.NewRasterizeError(s.pdfPath, fmt.Errorf("page %d: %w", pageNum, err))
	}

	return PageImage{Number: pageNum, DPI: s.dpi, Img: img}, true, nil
}

func (s *popplerSource) Close() error {
	return os.RemoveAll(s.tmpDir)
}

// renderPage shells out to pdftoppm for a single page. Poppler is also what
// the usual PDF-to-image Python tooling wraps, so render output matches
// established OCR pipelines.
func (s *popplerSource) renderPage(ctx context.Context, pageNum int) (image.Image, error) {
	outputPrefix := filepath.Join(s.tmpDir, fmt.Sprintf("page_%04d", pageNum))
	pageStr := fmt.Sprintf("%d", pageNum)

	err := retry.Do(
		func() error {
			cmd := exec.CommandContext(ctx, "pdftoppm",
				"-png",
				"-f", pageStr,
				"-l", pageStr,
				"-r", fmt.Sprintf("%d", s.dpi),
				"-singlefile",
				s.pdfPath,
				outputPrefix,
			)
			output, err := cmd.CombinedOutput()
			if err != nil {
				return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	srcPath := outputPrefix + ".png"
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	defer f.Close()
	defer os.Remove(srcPath)

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}

	return img, nil
}
