package preprocess

import (
	"image"
	"math"
	"sort"

	"github.com/scandoc/scandoc/internal/profile"
)

func denoise(src *image.Gray, filter profile.DenoiseFilter) *image.Gray {
	switch filter {
	case profile.DenoiseGaussian:
		return gaussianBlur(src)
	case profile.DenoiseMedian:
		return medianBlur(src)
	default:
		return bilateralFilter(src)
	}
}

// gaussianBlur applies a separable 5x5 binomial kernel (1 4 6 4 1)/16.
func gaussianBlur(src *image.Gray) *image.Gray {
	weights := [5]int{1, 4, 6, 4, 1}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := image.NewGray(b)
	dst := image.NewGray(b)

	// Horizontal pass
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for k := -2; k <= 2; k++ {
				xx := clampInt(x+k, 0, w-1)
				sum += weights[k+2] * int(src.GrayAt(b.Min.X+xx, b.Min.Y+y).Y)
			}
			tmp.SetGray(b.Min.X+x, b.Min.Y+y, grayValue(sum/16))
		}
	}

	// Vertical pass
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for k := -2; k <= 2; k++ {
				yy := clampInt(y+k, 0, h-1)
				sum += weights[k+2] * int(tmp.GrayAt(b.Min.X+x, b.Min.Y+yy).Y)
			}
			dst.SetGray(b.Min.X+x, b.Min.Y+y, grayValue(sum/16))
		}
	}

	return dst
}

// medianBlur replaces each pixel with the median of its 3x3 neighborhood.
func medianBlur(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)

	var window [9]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx := clampInt(x+dx, 0, w-1)
					yy := clampInt(y+dy, 0, h-1)
					window[i] = int(src.GrayAt(b.Min.X+xx, b.Min.Y+yy).Y)
					i++
				}
			}
			vals := window[:]
			sort.Ints(vals)
			dst.SetGray(b.Min.X+x, b.Min.Y+y, grayValue(vals[4]))
		}
	}

	return dst
}

// Bilateral filter parameters: a small spatial kernel with a moderate range
// sigma keeps stroke edges sharp while flattening scanner grain.
const (
	bilateralRadius     = 2
	bilateralSigmaSpace = 2.0
	bilateralSigmaRange = 25.0
)

// bilateralFilter smooths while preserving edges: each neighbor is weighted
// by both spatial distance and intensity difference.
func bilateralFilter(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)

	// Precompute weight tables; both are fixed for the pipeline, keeping
	// the stage deterministic.
	kernelSize := 2*bilateralRadius + 1
	spatial := make([]float64, kernelSize*kernelSize)
	for dy := -bilateralRadius; dy <= bilateralRadius; dy++ {
		for dx := -bilateralRadius; dx <= bilateralRadius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			spatial[(dy+bilateralRadius)*kernelSize+(dx+bilateralRadius)] =
				math.Exp(-d2 / (2 * bilateralSigmaSpace * bilateralSigmaSpace))
		}
	}
	var rangeWeight [256]float64
	for d := 0; d < 256; d++ {
		rangeWeight[d] = math.Exp(-float64(d*d) / (2 * bilateralSigmaRange * bilateralSigmaRange))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := int(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			var weightSum, valueSum float64
			for dy := -bilateralRadius; dy <= bilateralRadius; dy++ {
				for dx := -bilateralRadius; dx <= bilateralRadius; dx++ {
					xx := clampInt(x+dx, 0, w-1)
					yy := clampInt(y+dy, 0, h-1)
					neighbor := int(src.GrayAt(b.Min.X+xx, b.Min.Y+yy).Y)
					diff := neighbor - center
					if diff < 0 {
						diff = -diff
					}
					weight := spatial[(dy+bilateralRadius)*kernelSize+(dx+bilateralRadius)] * rangeWeight[diff]
					weightSum += weight
					valueSum += weight * float64(neighbor)
				}
			}
			dst.SetGray(b.Min.X+x, b.Min.Y+y, grayValue(int(valueSum/weightSum+0.5)))
		}
	}

	return dst
}
