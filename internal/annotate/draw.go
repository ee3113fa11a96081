package annotate

import (
	"github.com/panodraw/annotator/internal/geo"
	"github.com/panodraw/annotator/pkg/core"
)

// AddPoint appends p to the pending points. In polygon mode a point within
// CloseRadius of the first pending point, once enough points exist, closes
// the polygon instead.
func (s *Store) AddPoint(p core.Point2D) bool {
	if s.closed || !s.mode.Drawing() || !p.IsFinite() {
		return false
	}

	if s.mode == ModeDrawPolygon && len(s.pending) >= s.cfg.MinPolygonPoints &&
		geo.WithinRadius(p, s.pending[0], s.cfg.CloseRadius) {
		s.CompletePolygon()
		return true
	}

	s.pending = append(s.pending, p)
	s.render()
	return true
}

// StartStroke begins a new freehand stroke at p, dropping any leftover
// points from a stroke too short to complete.
func (s *Store) StartStroke(p core.Point2D) bool {
	if s.closed || s.mode != ModeDrawFreehand || !p.IsFinite() {
		return false
	}
	s.pending = append(s.pending[:0], p)
	s.stroking = true
	s.render()
	return true
}

// Stroking reports whether a freehand stroke is in progress, i.e. a
// StartStroke not yet followed by CompleteFreehand or a mode change.
func (s *Store) Stroking() bool {
	return s.stroking
}

// UndoLastPendingPoint removes the newest pending point.
func (s *Store) UndoLastPendingPoint() bool {
	if s.closed || !s.mode.Drawing() || len(s.pending) == 0 {
		return false
	}
	s.pending = s.pending[:len(s.pending)-1]
	s.render()
	return true
}

// CompletePolygon turns the pending points into a polygon shape.
func (s *Store) CompletePolygon() bool {
	if s.closed || s.mode != ModeDrawPolygon || len(s.pending) < s.cfg.MinPolygonPoints {
		return false
	}
	points := append([]core.Point2D(nil), s.pending...)
	return s.complete(core.ShapePolygon, points, s.cfg.PolygonStyle, 3)
}

// CompleteFreehand simplifies the pending stroke and turns it into an open
// freehand shape.
func (s *Store) CompleteFreehand() bool {
	if s.closed || s.mode != ModeDrawFreehand {
		return false
	}
	s.stroking = false
	if len(s.pending) < s.cfg.MinFreehandPoints {
		return false
	}
	points := geo.Simplify(s.pending, s.cfg.SimplifySpacing)
	return s.complete(core.ShapeFreehand, points, s.cfg.FreehandStyle, 2)
}

// complete converts points, registers the hotspot and returns to Idle.
// When fewer than minAnchors points convert the drawing is abandoned.
func (s *Store) complete(kind core.ShapeKind, points []core.Point2D, style core.HotspotStyle, minAnchors int) bool {
	anchors, failed := s.conv.ScreenToAngularBatch(points)
	if failed > 0 {
		s.logger.Warn("points dropped during conversion", "kind", kind, "failed", failed, "total", len(points))
	}

	s.pending = s.pending[:0]
	s.mode = ModeIdle

	if len(anchors) < minAnchors {
		s.logger.Warn("shape abandoned, too few anchors", "kind", kind, "anchors", len(anchors))
		s.render()
		return false
	}

	shape := &core.Shape{
		ID:           s.ids.Next(kind),
		Kind:         kind,
		ScreenPoints: points,
		AnchorPoints: anchors,
		HidePoints:   kind == core.ShapeFreehand,
	}
	if failed > 0 {
		shape.ScreenPoints, _ = s.conv.AngularToScreenBatch(nil, anchors)
	}

	s.shapes = append(s.shapes, shape)
	s.selectShape(shape)

	if err := s.registry.CreatePolygonHotspot(shape.ID, append([]core.AngularPoint(nil), anchors...), style); err != nil {
		s.logger.Warn("create hotspot failed", "id", shape.ID, "error", err)
	}
	s.logger.Debug("shape completed", "id", shape.ID, "points", len(points), "anchors", len(anchors))

	s.render()
	return true
}

// RestoreShape re-creates a shape from stored anchors, e.g. from a journal
// export. It takes the next id for kind, registers the hotspot and selects
// the shape. Only allowed in Idle.
func (s *Store) RestoreShape(kind core.ShapeKind, anchors []core.AngularPoint) (string, bool) {
	if s.closed || s.mode != ModeIdle {
		return "", false
	}
	minAnchors, style := 3, s.cfg.PolygonStyle
	if kind == core.ShapeFreehand {
		minAnchors, style = 2, s.cfg.FreehandStyle
	} else if kind != core.ShapePolygon {
		return "", false
	}
	if len(anchors) < minAnchors || !finiteAnchors(anchors) {
		return "", false
	}

	shape := &core.Shape{
		ID:           s.ids.Next(kind),
		Kind:         kind,
		AnchorPoints: append([]core.AngularPoint(nil), anchors...),
		HidePoints:   kind == core.ShapeFreehand,
	}
	shape.ScreenPoints, _ = s.conv.AngularToScreenBatch(nil, shape.AnchorPoints)
	s.shapes = append(s.shapes, shape)
	s.selectShape(shape)

	if err := s.registry.CreatePolygonHotspot(shape.ID, append([]core.AngularPoint(nil), anchors...), style); err != nil {
		s.logger.Warn("create hotspot failed", "id", shape.ID, "error", err)
	}
	s.render()
	return shape.ID, true
}
