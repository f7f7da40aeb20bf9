package preprocess

import "image/color"

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func grayValue(v int) color.Gray {
	return color.Gray{Y: uint8(clampInt(v, 0, 255))}
}
