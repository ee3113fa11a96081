// Package geo holds the planar geometry used on the annotation canvas.
package geo

import (
	"math"

	"github.com/panodraw/annotator/pkg/core"
)

// Distance returns the euclidean distance between a and b.
func Distance(a, b core.Point2D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// WithinRadius reports whether p lies strictly closer than r to center.
func WithinRadius(p, center core.Point2D, r float64) bool {
	return Distance(p, center) < r
}

// PointInPolygon reports whether p lies inside the closed ring formed by
// polygon, using an even-odd ray cast. Rings with fewer than three vertices
// contain nothing.
func PointInPolygon(p core.Point2D, polygon []core.Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		pi, pj := polygon[i], polygon[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

// Simplify drops points closer than minDistance to the last kept point.
// The first and last input points are always kept.
func Simplify(points []core.Point2D, minDistance float64) []core.Point2D {
	if len(points) < 2 {
		return append([]core.Point2D(nil), points...)
	}

	out := make([]core.Point2D, 0, len(points))
	out = append(out, points[0])
	last := points[0]
	lastIdx := 0
	for i := 1; i < len(points); i++ {
		if Distance(points[i], last) >= minDistance {
			out = append(out, points[i])
			last = points[i]
			lastIdx = i
		}
	}

	if lastIdx != len(points)-1 {
		out = append(out, points[len(points)-1])
	}
	return out
}

// Translate shifts every point in place by (dx, dy).
func Translate(points []core.Point2D, dx, dy float64) {
	for i := range points {
		points[i].X += dx
		points[i].Y += dy
	}
}

// Bounds returns the smallest rectangle containing points.
func Bounds(points []core.Point2D) core.Rect {
	if len(points) == 0 {
		return core.Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return core.Rect{Left: minX, Top: minY, Width: maxX - minX, Height: maxY - minY}
}
