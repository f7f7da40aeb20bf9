package preprocess

import "image"

// binarizeAdaptive thresholds against the local mean rather than one global
// cutoff, so unevenly lit scans binarize cleanly. The local mean is computed
// over a fixed window via an integral image.
func binarizeAdaptive(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	if w == 0 || h == 0 {
		return dst
	}

	// Integral image with a one-pixel border of zeros.
	integral := make([]int64, (w+1)*(h+1))
	stride := w + 1
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			integral[(y+1)*stride+(x+1)] = integral[y*stride+(x+1)] + rowSum
		}
	}

	half := binarizeWindow / 2
	for y := 0; y < h; y++ {
		y0 := clampInt(y-half, 0, h-1)
		y1 := clampInt(y+half, 0, h-1)
		for x := 0; x < w; x++ {
			x0 := clampInt(x-half, 0, w-1)
			x1 := clampInt(x+half, 0, w-1)

			area := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*stride+(x1+1)] -
				integral[y0*stride+(x1+1)] -
				integral[(y1+1)*stride+x0] +
				integral[y0*stride+x0]
			mean := sum / area

			v := int64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			if v < mean-binarizeC {
				dst.SetGray(b.Min.X+x, b.Min.Y+y, grayValue(0))
			} else {
				dst.SetGray(b.Min.X+x, b.Min.Y+y, grayValue(255))
			}
		}
	}

	return dst
}
