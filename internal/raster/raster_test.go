package raster

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	scanerrors "github.com/scandoc/scandoc/internal/errors"
)

func TestPreflight(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(valid, []byte("%PDF-1.7\n..."), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := filepath.Join(dir, "fake.pdf")
	if err := os.WriteFile(fake, []byte("GIF89a"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Preflight(valid); err != nil {
		t.Errorf("valid PDF rejected: %v", err)
	}

	if err := Preflight(filepath.Join(dir, "doc.docx")); scanerrors.CodeOf(err) != scanerrors.ErrorUnsupportedFormat {
		t.Errorf("wrong extension should be unsupported, got %v", err)
	}
	if err := Preflight(fake); scanerrors.CodeOf(err) != scanerrors.ErrorUnsupportedFormat {
		t.Errorf("wrong magic should be unsupported, got %v", err)
	}
	if err := Preflight(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("missing file should fail preflight")
	}
}

func TestPageImageDimensions(t *testing.T) {
	p := PageImage{Number: 1, DPI: 300, Img: image.NewGray(image.Rect(0, 0, 120, 80))}
	if p.Width() != 120 || p.Height() != 80 {
		t.Errorf("dimensions = %dx%d, want 120x80", p.Width(), p.Height())
	}

	var empty PageImage
	if empty.Width() != 0 || empty.Height() != 0 {
		t.Error("nil raster should report zero dimensions")
	}
}
