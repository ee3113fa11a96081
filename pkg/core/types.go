// pkg/core/types.go
package core

import "math"

// Point2D is a position on the annotation canvas in CSS pixels, origin top-left.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by (dx, dy).
func (p Point2D) Add(dx, dy float64) Point2D {
	return Point2D{X: p.X + dx, Y: p.Y + dy}
}

// IsFinite reports whether both components are finite numbers.
func (p Point2D) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// AngularPoint addresses a direction on the panorama sphere in degrees.
// Bearing is normalized to (-180, 180]. Elevation is clamped to [-90, 90] and
// follows the viewer convention: positive values lie below the horizon.
type AngularPoint struct {
	Bearing   float64 `json:"bearing"`
	Elevation float64 `json:"elevation"`
}

// IsFinite reports whether both components are finite numbers.
func (a AngularPoint) IsFinite() bool {
	return isFinite(a.Bearing) && isFinite(a.Elevation)
}

// FOVKind selects which screen dimension the field of view spans.
type FOVKind string

const (
	FOVHorizontal FOVKind = "HFOV"
	FOVVertical   FOVKind = "VFOV"
	FOVDiagonal   FOVKind = "DFOV"
	FOVMaximum    FOVKind = "MFOV" // spans the larger side
)

// View is the camera state reported by the panorama viewer.
type View struct {
	Bearing   float64 `json:"bearing"`
	Elevation float64 `json:"elevation"`
	FOV       float64 `json:"fov"`
	FOVKind   FOVKind `json:"fovKind"`
}

// Rect is an axis-aligned rectangle in client CSS pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// IsFinite reports whether every edge is a finite number.
func (r Rect) IsFinite() bool {
	return isFinite(r.Left) && isFinite(r.Top) && isFinite(r.Width) && isFinite(r.Height)
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point2D {
	return Point2D{X: r.Left + r.Width/2, Y: r.Top + r.Height/2}
}

// SurfaceGeometry relates the overlay canvas to the viewer's render surface.
// Both rectangles are in client CSS pixels; the render surface may be
// letterboxed inside the canvas and may render at a different pixel density.
type SurfaceGeometry struct {
	Canvas       Rect    `json:"canvas"`
	Surface      Rect    `json:"surface"`
	NativeWidth  float64 `json:"nativeWidth"`
	NativeHeight float64 `json:"nativeHeight"`
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
