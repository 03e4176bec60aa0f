package sfbin

import "math"

// quantize maps a coordinate onto the fixed-point grid defined by scale,
// rounding half away from zero so the mapping is deterministic across
// platforms. The caller validates the scale with checkScale.
func quantize(c, scale float64) int64 {
	// math.Round rounds half away from zero.
	return int64(math.Round(c / scale))
}

// dequantize maps a grid value back to a coordinate. The result differs
// from the original coordinate by at most scale/2.
func dequantize(q int64, scale float64) float64 {
	return float64(q) * scale
}
