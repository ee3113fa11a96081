package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/panodraw/annotator/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidCoordinates is returned when a coordinate list cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// AnchorLineString encodes anchor points as a LineString with X=bearing and
// Y=elevation. Fewer than two points yields an empty LineString.
func AnchorLineString(anchors []core.AngularPoint) geom.LineString {
	if len(anchors) < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, 0, len(anchors)*2)
	for _, a := range anchors {
		flat = append(flat, a.Bearing, a.Elevation)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// AnchorsFromLineString is the inverse of AnchorLineString.
func AnchorsFromLineString(ls geom.LineString) []core.AngularPoint {
	seq := ls.Coordinates()
	n := seq.Length()
	out := make([]core.AngularPoint, n)
	for i := 0; i < n; i++ {
		xy := seq.GetXY(i)
		out[i] = core.AngularPoint{Bearing: xy.X, Elevation: xy.Y}
	}
	return out
}

// ParseAnchors parses a JSON array of [bearing, elevation] pairs.
// Input format: "[[b1,e1],[b2,e2],...]"
func ParseAnchors(input string) ([]core.AngularPoint, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse anchor JSON: %w", err)
	}

	anchors := make([]core.AngularPoint, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values: %w", i, ErrInvalidCoordinates)
		}
		a := core.AngularPoint{Bearing: c[0], Elevation: c[1]}
		if !a.IsFinite() {
			return nil, fmt.Errorf("coordinate %d is not finite: %w", i, ErrInvalidCoordinates)
		}
		anchors[i] = a
	}
	return anchors, nil
}

// FormatAnchors renders anchors in the format accepted by ParseAnchors.
func FormatAnchors(anchors []core.AngularPoint) string {
	coords := make([][2]float64, len(anchors))
	for i, a := range anchors {
		coords[i] = [2]float64{a.Bearing, a.Elevation}
	}
	b, _ := json.Marshal(coords)
	return string(b)
}

// ShapeGeometry returns a Polygon (ring closed on the first anchor) for
// polygon shapes and a LineString for freehand strokes.
func ShapeGeometry(kind core.ShapeKind, anchors []core.AngularPoint) geom.Geometry {
	if kind != core.ShapePolygon || len(anchors) < 3 {
		return AnchorLineString(anchors).AsGeometry()
	}
	ring := make([]core.AngularPoint, 0, len(anchors)+1)
	ring = append(ring, anchors...)
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return geom.NewPolygon([]geom.LineString{AnchorLineString(ring)}).AsGeometry()
}
