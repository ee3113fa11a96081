package surface

import (
	"github.com/panodraw/annotator/internal/annotate"
	"github.com/panodraw/annotator/pkg/core"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/touch"
)

// PointerPhase is the stage of a pointer gesture.
type PointerPhase int

const (
	PointerDown PointerPhase = iota
	PointerMove
	PointerUp
)

// pointer tracks the gesture in progress so that a second finger or a
// hover move is not mistaken for a drag.
type pointer struct {
	down     bool
	sequence touch.Sequence
}

// HandlePointer routes one pointer event to the store according to the
// active mode. It reports whether the overlay consumed the event; events
// that are not consumed belong to the viewer (pan, zoom).
func (s *Session) HandlePointer(phase PointerPhase, p core.Point2D) bool {
	st := s.store
	if st == nil {
		return false
	}
	mode := st.Mode()

	switch phase {
	case PointerDown:
		switch {
		case mode == annotate.ModeIdle:
			return st.SelectAt(p)
		case mode == annotate.ModeDrawPolygon:
			return st.AddPoint(p)
		case mode == annotate.ModeDrawFreehand:
			return st.StartStroke(p)
		case mode.Dragging():
			return st.BeginDrag(p)
		}

	case PointerMove:
		switch {
		case mode == annotate.ModeDrawFreehand:
			// hover moves between strokes are not part of any stroke
			if !st.Stroking() {
				return false
			}
			return st.AddPoint(p)
		case mode.Dragging():
			return st.ContinueDrag(p)
		}

	case PointerUp:
		switch {
		case mode == annotate.ModeDrawFreehand:
			if !st.Stroking() {
				return false
			}
			// a stroke too short to complete stays pending until the
			// next pointer-down replaces it
			st.CompleteFreehand()
			return true
		case mode.Dragging():
			return st.EndDrag()
		}
	}
	return false
}

func (s *Session) toCanvas(x, y float32) core.Point2D {
	return core.Point2D{X: float64(x / s.pixelsPerPt), Y: float64(y / s.pixelsPerPt)}
}

// HandleTouch follows the first finger only.
func (s *Session) HandleTouch(e touch.Event) bool {
	var phase PointerPhase
	switch e.Type {
	case touch.TypeBegin:
		if s.ptr.down {
			return false
		}
		s.ptr = pointer{down: true, sequence: e.Sequence}
		phase = PointerDown
	case touch.TypeMove:
		if !s.ptr.down || e.Sequence != s.ptr.sequence {
			return false
		}
		phase = PointerMove
	case touch.TypeEnd:
		if !s.ptr.down || e.Sequence != s.ptr.sequence {
			return false
		}
		s.ptr = pointer{}
		phase = PointerUp
	default:
		return false
	}
	return s.HandlePointer(phase, s.toCanvas(e.X, e.Y))
}

// HandleMouse treats the left button as a finger. Moves without a pressed
// button are hover and are ignored.
func (s *Session) HandleMouse(e mouse.Event) bool {
	var phase PointerPhase
	switch e.Direction {
	case mouse.DirPress:
		if e.Button != mouse.ButtonLeft || s.ptr.down {
			return false
		}
		s.ptr = pointer{down: true}
		phase = PointerDown
	case mouse.DirNone:
		if !s.ptr.down {
			return false
		}
		phase = PointerMove
	case mouse.DirRelease:
		if e.Button != mouse.ButtonLeft || !s.ptr.down {
			return false
		}
		s.ptr = pointer{}
		phase = PointerUp
	default:
		return false
	}
	return s.HandlePointer(phase, s.toCanvas(e.X, e.Y))
}
