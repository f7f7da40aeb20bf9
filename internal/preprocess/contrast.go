package preprocess

import "image"

// equalizeAdaptive performs contrast-limited adaptive histogram equalization
// (CLAHE). The image is divided into a fixed tile grid; each tile gets a
// clipped, equalized intensity mapping and pixels are bilinearly
// interpolated between the four nearest tile mappings to avoid visible tile
// seams.
func equalizeAdaptive(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return cloneGray(src)
	}

	tilesX := claheTileGrid
	tilesY := claheTileGrid
	if tilesX > w {
		tilesX = w
	}
	if tilesY > h {
		tilesY = h
	}

	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	// Per-tile lookup tables.
	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0 := tx * tileW
			y0 := ty * tileH
			x1 := minInt(x0+tileW, w)
			y1 := minInt(y0+tileH, h)
			luts[ty*tilesX+tx] = tileMapping(src, b, x0, y0, x1, y1)
		}
	}

	dst := image.NewGray(b)
	for y := 0; y < h; y++ {
		// Tile-space coordinate of the pixel center relative to tile
		// centers, used for bilinear blending of the four mappings.
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(fy)
		if fy < 0 {
			ty0 = -1
		}
		wy := fy - float64(ty0)
		tyA := clampInt(ty0, 0, tilesY-1)
		tyB := clampInt(ty0+1, 0, tilesY-1)

		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(fx)
			if fx < 0 {
				tx0 = -1
			}
			wx := fx - float64(tx0)
			txA := clampInt(tx0, 0, tilesX-1)
			txB := clampInt(tx0+1, 0, tilesX-1)

			v := src.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			top := (1-wx)*float64(luts[tyA*tilesX+txA][v]) + wx*float64(luts[tyA*tilesX+txB][v])
			bottom := (1-wx)*float64(luts[tyB*tilesX+txA][v]) + wx*float64(luts[tyB*tilesX+txB][v])
			dst.SetGray(b.Min.X+x, b.Min.Y+y, grayValue(int((1-wy)*top+wy*bottom+0.5)))
		}
	}

	return dst
}

// tileMapping builds the clipped equalization lookup table for one tile.
func tileMapping(src *image.Gray, b image.Rectangle, x0, y0, x1, y1 int) [256]uint8 {
	var hist [256]int
	pixels := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[src.GrayAt(b.Min.X+x, b.Min.Y+y).Y]++
			pixels++
		}
	}

	var lut [256]uint8
	if pixels == 0 {
		for v := 0; v < 256; v++ {
			lut[v] = uint8(v)
		}
		return lut
	}

	// Clip the histogram and redistribute the excess uniformly. The clip
	// limit bounds how much any single bin can amplify local contrast.
	limit := int(claheClipLimit * float64(pixels) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for v := 0; v < 256; v++ {
		if hist[v] > limit {
			excess += hist[v] - limit
			hist[v] = limit
		}
	}
	share := excess / 256
	remainder := excess % 256
	for v := 0; v < 256; v++ {
		hist[v] += share
		if v < remainder {
			hist[v]++
		}
	}

	// Cumulative mapping.
	cdf := 0
	cdfMin := -1
	var cum [256]int
	for v := 0; v < 256; v++ {
		cdf += hist[v]
		cum[v] = cdf
		if cdfMin < 0 && cdf > 0 {
			cdfMin = cdf
		}
	}
	denom := pixels - cdfMin
	for v := 0; v < 256; v++ {
		if denom <= 0 {
			lut[v] = uint8(v)
			continue
		}
		scaled := float64(cum[v]-cdfMin) / float64(denom) * 255
		lut[v] = uint8(clampInt(int(scaled+0.5), 0, 255))
	}

	return lut
}
