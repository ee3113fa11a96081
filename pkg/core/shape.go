// pkg/core/shape.go
package core

// ShapeKind distinguishes closed polygons from open freehand strokes
type ShapeKind string

const (
	ShapePolygon  ShapeKind = "polygon"
	ShapeFreehand ShapeKind = "freehand"
)

// IDPrefix returns the prefix used when assigning shape IDs of this kind.
func (k ShapeKind) IDPrefix() string {
	if k == ShapeFreehand {
		return "freehand_"
	}
	return "poly_"
}

// Shape is a completed annotation.
type Shape struct {
	ID   string    `json:"id"`
	Kind ShapeKind `json:"kind"`

	// ScreenPoints is the last projection of AnchorPoints onto the canvas.
	// It is recomputed on every camera change and never persisted.
	ScreenPoints []Point2D `json:"-"`

	// AnchorPoints is the authoritative geometry.
	AnchorPoints []AngularPoint `json:"anchorPoints"`

	Selected   bool `json:"selected"`
	HidePoints bool `json:"hidePoints"`
}

// Clone returns a deep copy of the shape.
func (s *Shape) Clone() Shape {
	c := *s
	c.ScreenPoints = append([]Point2D(nil), s.ScreenPoints...)
	c.AnchorPoints = append([]AngularPoint(nil), s.AnchorPoints...)
	return c
}

// HotspotStyle describes how the viewer renders a polygon hotspot.
type HotspotStyle struct {
	FillColor   uint32  `json:"fillColor"`
	FillAlpha   float64 `json:"fillAlpha"`
	BorderColor uint32  `json:"borderColor"`
	BorderAlpha float64 `json:"borderAlpha"`
	BorderWidth float64 `json:"borderWidth"`
	ZOrder      int     `json:"zorder"`
	// Polyline leaves the outline open (first and last vertex unconnected).
	Polyline bool `json:"polyline"`
}
