package preprocess

import (
	"image"
	"image/draw"

	"github.com/scandoc/scandoc/internal/profile"
)

// Pipeline constants. These are properties of the pipeline itself, not
// user-tunable per call.
const (
	claheClipLimit = 2.0
	claheTileGrid  = 8

	binarizeWindow = 15
	binarizeC      = 10

	deskewMaxAngle  = 5.0
	deskewAngleStep = 0.25

	morphKernel = 3
)

// Options toggles the individual pipeline stages. A disabled stage is a
// no-op that passes the image through unchanged.
type Options struct {
	Grayscale     bool
	Denoise       bool
	DenoiseFilter profile.DenoiseFilter
	Contrast      bool
	Binarize      bool
	Deskew        bool
	Morphology    bool
}

// FromProfile derives stage toggles from a processing profile. The
// grayscale, binarization and morphology stages ride the master switch;
// denoising, contrast and deskewing follow their individual flags.
func FromProfile(p profile.Profile) Options {
	if !p.Preprocess {
		return Options{}
	}
	filter := p.DenoiseFilter
	if filter == "" {
		filter = profile.DenoiseBilateral
	}
	return Options{
		Grayscale:     true,
		Denoise:       p.EnableDenoise,
		DenoiseFilter: filter,
		Contrast:      p.EnableContrast,
		Binarize:      true,
		Deskew:        p.EnableDeskew,
		Morphology:    true,
	}
}

// Pipeline transforms a raw page raster into one more amenable to OCR.
// Transforms are deterministic and have no external side effects; input and
// output dimensions are always identical.
type Pipeline struct {
	opts Options
}

// New creates a pipeline with the given stage toggles.
func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Run applies the enabled stages in fixed order: grayscale, denoise,
// contrast, binarize, deskew, morphology. Stages beyond grayscale require a
// grayscale working image; when grayscale conversion is disabled and the
// input is not already grayscale they degrade to no-ops rather than fail.
func (pl *Pipeline) Run(img image.Image) image.Image {
	gray, isGray := img.(*image.Gray)

	if !pl.opts.Grayscale && !isGray {
		return img
	}

	var work *image.Gray
	if pl.opts.Grayscale {
		work = toGray(img)
	} else {
		work = cloneGray(gray)
	}

	if pl.opts.Denoise {
		work = denoise(work, pl.opts.DenoiseFilter)
	}
	if pl.opts.Contrast {
		work = equalizeAdaptive(work)
	}
	if pl.opts.Binarize {
		work = binarizeAdaptive(work)
	}
	if pl.opts.Deskew {
		work = deskew(work)
	}
	if pl.opts.Morphology {
		work = morphOpen(work)
		work = morphClose(work)
	}

	return work
}

// toGray converts any image to grayscale without mutating the input.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

func cloneGray(src *image.Gray) *image.Gray {
	dst := image.NewGray(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
