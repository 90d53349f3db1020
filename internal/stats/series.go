package stats

import "math"

// SeriesEQ reports bit-for-bit equality of two barycentre series. NaN entries
// compare equal when their bit patterns match.
func SeriesEQ(v1, v2 []float64) bool {
	if v2 == nil || len(v1) != len(v2) {
		return false
	}
	for i := range v1 {
		if math.Float64bits(v1[i]) != math.Float64bits(v2[i]) {
			return false
		}
	}
	return true
}

// SeriesWithinTolerance compares two series by relative error. Non-finite
// entries must match exactly: same infinity sign, or both NaN.
func SeriesWithinTolerance(v1, v2 []float64, rel float64) bool {
	if v2 == nil || len(v1) != len(v2) {
		return false
	}
	for i := range v1 {
		a, b := v1[i], v2[i]
		switch {
		case math.IsNaN(a) || math.IsNaN(b):
			if !(math.IsNaN(a) && math.IsNaN(b)) {
				return false
			}
		case math.IsInf(a, 0) || math.IsInf(b, 0):
			if a != b {
				return false
			}
		default:
			scale := math.Max(math.Abs(a), math.Abs(b))
			if scale == 0 {
				continue
			}
			if math.Abs(a-b)/scale >= rel {
				return false
			}
		}
	}
	return true
}
