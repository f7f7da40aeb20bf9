package preprocess

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Deskew detection constants. Angle search runs over a downscaled raster,
// large enough to resolve text-line orientation and cheap enough to sweep
// the full angle range.
const (
	deskewSampleMax  = 1024
	deskewMinInk     = 0.001
	deskewMinGainPct = 5.0
)

// deskew estimates the dominant text-line orientation of a binarized page
// via projection profiles and rotates the page to correct it. When no
// dominant orientation emerges the page is returned unchanged; deskewing
// never fails.
func deskew(src *image.Gray) *image.Gray {
	angle, ok := detectSkewAngle(src)
	if !ok || math.Abs(angle) < deskewAngleStep {
		return src
	}
	return rotateGray(src, -angle)
}

// detectSkewAngle sweeps candidate angles and scores each by the squared
// row-projection profile: text lines aligned with the projection axis
// produce sharply peaked profiles and therefore high scores.
func detectSkewAngle(src *image.Gray) (float64, bool) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0, false
	}

	// Downscale coordinates for the sweep.
	scale := 1.0
	if longest := maxInt(w, h); longest > deskewSampleMax {
		scale = float64(deskewSampleMax) / float64(longest)
	}
	sw := int(float64(w) * scale)
	sh := int(float64(h) * scale)
	if sw == 0 || sh == 0 {
		return 0, false
	}

	// Collect ink (dark) pixel coordinates on the sampled grid.
	type pt struct{ x, y float64 }
	var ink []pt
	stepX := float64(w) / float64(sw)
	stepY := float64(h) / float64(sh)
	for sy := 0; sy < sh; sy++ {
		y := int(float64(sy) * stepY)
		for sx := 0; sx < sw; sx++ {
			x := int(float64(sx) * stepX)
			if src.GrayAt(b.Min.X+x, b.Min.Y+y).Y < 128 {
				ink = append(ink, pt{float64(sx), float64(sy)})
			}
		}
	}
	if float64(len(ink)) < deskewMinInk*float64(sw*sh) {
		return 0, false
	}

	profile := make([]int, 2*sh+1)
	score := func(angleDeg float64) float64 {
		for i := range profile {
			profile[i] = 0
		}
		rad := angleDeg * math.Pi / 180
		sin, cos := math.Sin(rad), math.Cos(rad)
		for _, p := range ink {
			row := int(p.y*cos-p.x*sin) + sh
			if row >= 0 && row < len(profile) {
				profile[row]++
			}
		}
		var s float64
		for _, c := range profile {
			s += float64(c) * float64(c)
		}
		return s
	}

	baseline := score(0)
	best, bestScore := 0.0, baseline
	for a := -deskewMaxAngle; a <= deskewMaxAngle+1e-9; a += deskewAngleStep {
		if s := score(a); s > bestScore {
			best, bestScore = a, s
		}
	}

	// Require a clear win over the unrotated profile, otherwise there is
	// no dominant orientation worth correcting.
	if baseline == 0 || (bestScore-baseline)/baseline*100 < deskewMinGainPct {
		return 0, false
	}
	return best, true
}

// rotateGray rotates about the image center, preserving bounds and filling
// uncovered corners with white.
func rotateGray(src *image.Gray, angleDeg float64) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	for i := range dst.Pix {
		dst.Pix[i] = 255
	}

	rad := angleDeg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2

	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, m, src, b, draw.Over, nil)

	// Re-threshold: interpolation introduces intermediate grays on a page
	// that was binary before rotation.
	for i, v := range dst.Pix {
		if v < 128 {
			dst.Pix[i] = 0
		} else {
			dst.Pix[i] = 255
		}
	}

	return dst
}
