package preprocess

import "image"

// Morphological cleanup on binarized pages. Ink is dark (0), background is
// light (255): eroding ink takes the neighborhood maximum, dilating ink the
// minimum.

// morphOpen removes speckle noise: isolated ink specks smaller than the
// kernel disappear under erosion and are not restored by dilation.
func morphOpen(src *image.Gray) *image.Gray {
	return dilateInk(erodeInk(src))
}

// morphClose reconnects broken strokes: dilation bridges one-pixel gaps and
// erosion restores stroke weight.
func morphClose(src *image.Gray) *image.Gray {
	return erodeInk(dilateInk(src))
}

func erodeInk(src *image.Gray) *image.Gray {
	return neighborhoodExtreme(src, false)
}

func dilateInk(src *image.Gray) *image.Gray {
	return neighborhoodExtreme(src, true)
}

// neighborhoodExtreme takes the min (takeMin) or max over the square
// structuring element around each pixel.
func neighborhoodExtreme(src *image.Gray, takeMin bool) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	half := morphKernel / 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var extreme int
			if takeMin {
				extreme = 255
			}
			for dy := -half; dy <= half; dy++ {
				for dx := -half; dx <= half; dx++ {
					xx := clampInt(x+dx, 0, w-1)
					yy := clampInt(y+dy, 0, h-1)
					v := int(src.GrayAt(b.Min.X+xx, b.Min.Y+yy).Y)
					if takeMin {
						if v < extreme {
							extreme = v
						}
					} else if v > extreme {
						extreme = v
					}
				}
			}
			dst.SetGray(b.Min.X+x, b.Min.Y+y, grayValue(extreme))
		}
	}

	return dst
}
