// Package gamemath holds small numeric helpers shared by the client engine and
// the authority. No ECS or transport dependencies.
package gamemath

import "math"

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp moves from a toward b by t.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Distance is the Euclidean distance between two points.
func Distance(x0, y0, x1, y1 float64) float64 {
	return math.Hypot(x1-x0, y1-y0)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Overlaps reports whether two points are within the given epsilon on both
// axes. The test is strict so points exactly epsilon apart do not overlap.
func Overlaps(x0, y0, x1, y1, epsX, epsY float64) bool {
	return math.Abs(x1-x0) < epsX && math.Abs(y1-y0) < epsY
}
