package annotate

import (
	"github.com/panodraw/annotator/internal/bridge"
	"github.com/panodraw/annotator/internal/geo"
	"github.com/panodraw/annotator/pkg/core"
)

// hitTest returns the topmost shape whose outline contains p.
func (s *Store) hitTest(p core.Point2D) *core.Shape {
	for i := len(s.shapes) - 1; i >= 0; i-- {
		if geo.PointInPolygon(p, s.shapes[i].ScreenPoints) {
			return s.shapes[i]
		}
	}
	return nil
}

func (s *Store) selectShape(target *core.Shape) {
	for _, sh := range s.shapes {
		sh.Selected = sh == target
	}
	s.selected = target
}

// SelectAt selects the topmost shape under p. A miss leaves the selection
// unchanged and returns false so the pointer can fall through to the viewer.
func (s *Store) SelectAt(p core.Point2D) bool {
	if s.closed {
		return false
	}
	hit := s.hitTest(p)
	if hit == nil {
		return false
	}
	s.selectShape(hit)
	s.render()
	return true
}

// BeginDrag grabs the shape under p in Edit or Move mode and selects it.
func (s *Store) BeginDrag(p core.Point2D) bool {
	if s.closed || !s.mode.Dragging() || !p.IsFinite() {
		return false
	}
	hit := s.hitTest(p)
	if hit == nil {
		return false
	}
	s.selectShape(hit)
	s.drag = dragState{active: true, shape: hit, last: p}
	s.render()
	return true
}

// ContinueDrag applies the pointer delta since the previous call.
//
// Edit mode translates the screen points and leaves the anchors alone until
// EndDrag. Move mode shifts the anchors by an angular delta scaled by the
// field of view, re-projects them and updates the hotspot immediately.
func (s *Store) ContinueDrag(p core.Point2D) bool {
	if s.closed || !s.drag.active || !p.IsFinite() {
		return false
	}
	dx, dy := p.X-s.drag.last.X, p.Y-s.drag.last.Y
	s.drag.last = p
	sh := s.drag.shape

	switch s.mode {
	case ModeEdit:
		geo.Translate(sh.ScreenPoints, dx, dy)
	case ModeMove:
		db, de := s.conv.AngularDelta(dx, dy)
		for i := range sh.AnchorPoints {
			a := &sh.AnchorPoints[i]
			a.Bearing = bridge.NormalizeBearing(a.Bearing + db)
			a.Elevation = bridge.ClampElevation(a.Elevation + de)
		}
		sh.ScreenPoints, _ = s.conv.AngularToScreenBatch(sh.ScreenPoints, sh.AnchorPoints)
		s.updateHotspot(sh)
	}

	s.render()
	return true
}

// EndDrag finishes the drag and keeps the current mode. An Edit drag
// re-derives the anchors from the moved screen points here.
func (s *Store) EndDrag() bool {
	if s.closed || !s.drag.active {
		return false
	}
	sh := s.drag.shape
	s.drag = dragState{}

	if s.mode == ModeEdit {
		anchors, failed := s.conv.ScreenToAngularBatch(sh.ScreenPoints)
		if failed > 0 {
			s.logger.Warn("points dropped during conversion", "id", sh.ID, "failed", failed)
		}
		if len(anchors) == 0 {
			s.logger.Warn("edit discarded, no anchors converted", "id", sh.ID)
		} else {
			sh.AnchorPoints = anchors
			s.updateHotspot(sh)
		}
		sh.ScreenPoints, _ = s.conv.AngularToScreenBatch(sh.ScreenPoints, sh.AnchorPoints)
	}

	s.render()
	return true
}

// Dragging reports whether a drag is in progress.
func (s *Store) Dragging() bool {
	return s.drag.active
}

func (s *Store) updateHotspot(sh *core.Shape) {
	if err := s.registry.UpdatePolygonHotspotPoints(sh.ID, append([]core.AngularPoint(nil), sh.AnchorPoints...)); err != nil {
		s.logger.Warn("update hotspot failed", "id", sh.ID, "error", err)
	}
}
