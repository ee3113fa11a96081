// Package annotate owns the interaction session and the set of completed
// shapes drawn over the panorama.
//
// A Store is not safe for concurrent use. It is driven from a single event
// loop (see internal/surface) and never blocks.
package annotate

import (
	"log/slog"

	"github.com/panodraw/annotator/pkg/core"
)

// Mode is the active interaction session.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawPolygon
	ModeDrawFreehand
	ModeEdit
	ModeMove
)

var modeNames = [...]string{
	ModeIdle:         "idle",
	ModeDrawPolygon:  "draw",
	ModeDrawFreehand: "freehand",
	ModeEdit:         "edit",
	ModeMove:         "move",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

// Drawing reports whether m collects pending points.
func (m Mode) Drawing() bool {
	return m == ModeDrawPolygon || m == ModeDrawFreehand
}

// Dragging reports whether m manipulates an existing shape.
func (m Mode) Dragging() bool {
	return m == ModeEdit || m == ModeMove
}

// ParseMode resolves a mode name as produced by Mode.String.
func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), true
		}
	}
	return ModeIdle, false
}

// Converter maps between canvas pixels and sphere directions.
// *bridge.Bridge satisfies it.
type Converter interface {
	ScreenToAngularBatch(points []core.Point2D) ([]core.AngularPoint, int)
	AngularToScreenBatch(dst []core.Point2D, anchors []core.AngularPoint) ([]core.Point2D, int)
	AngularDelta(dx, dy float64) (dBearing, dElevation float64)
}

// HotspotRegistry receives the commands that mirror shapes into the viewer.
// It is written to, never read back.
type HotspotRegistry interface {
	CreatePolygonHotspot(id string, anchors []core.AngularPoint, style core.HotspotStyle) error
	UpdatePolygonHotspotPoints(id string, anchors []core.AngularPoint) error
	RemoveHotspot(id string) error
}

// Renderer draws a snapshot of the Store after every visible change.
type Renderer interface {
	Render(Frame)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame)

func (f RendererFunc) Render(fr Frame) { f(fr) }

// Config holds the drawing thresholds and hotspot styles.
type Config struct {
	CloseRadius       float64
	MinPolygonPoints  int
	MinFreehandPoints int
	SimplifySpacing   float64
	PolygonStyle      core.HotspotStyle
	FreehandStyle     core.HotspotStyle
}

// DefaultConfig returns the thresholds used by the viewer page.
func DefaultConfig() Config {
	return Config{
		CloseRadius:       30,
		MinPolygonPoints:  3,
		MinFreehandPoints: 5,
		SimplifySpacing:   5,
		PolygonStyle: core.HotspotStyle{
			FillColor: 0x00FF00, FillAlpha: 0.3,
			BorderColor: 0x00FF00, BorderAlpha: 1.0, BorderWidth: 2.0,
			ZOrder: 1000,
		},
		FreehandStyle: core.HotspotStyle{
			FillColor: 0xFF0000, FillAlpha: 0.3,
			BorderColor: 0xFF0000, BorderAlpha: 1.0, BorderWidth: 2.0,
			ZOrder: 1000, Polyline: true,
		},
	}
}

// Dependencies holds the collaborators of a Store.
type Dependencies struct {
	Converter Converter
	Registry  HotspotRegistry
	Renderer  Renderer // optional
	Logger    *slog.Logger

	// IDs assigns shape ids. Optional; a Store without one starts its own.
	IDs *IDSource
}

// Frame is a render snapshot. Slices are copies.
type Frame struct {
	Mode       Mode
	Pending    []core.Point2D
	Shapes     []core.Shape
	CloseRange float64 // radius around Pending[0] that closes a polygon, 0 when not armed
}

// Status summarises the Store for diagnostics.
type Status struct {
	Mode       string `json:"mode"`
	Points     int    `json:"points"`
	Shapes     int    `json:"shapes"`
	SelectedID string `json:"selectedId,omitempty"`
}

type dragState struct {
	active bool
	shape  *core.Shape
	last   core.Point2D
}

// Store is the annotation state for one render surface.
type Store struct {
	cfg      Config
	conv     Converter
	registry HotspotRegistry
	renderer Renderer
	logger   *slog.Logger

	mode     Mode
	pending  []core.Point2D
	shapes   []*core.Shape
	selected *core.Shape
	drag     dragState
	stroking bool
	ids      *IDSource
	closed   bool
}

// New creates a Store in ModeIdle.
func New(deps Dependencies, cfg Config) *Store {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.CloseRadius <= 0 {
		cfg.CloseRadius = defaults.CloseRadius
	}
	if cfg.MinPolygonPoints < 3 {
		cfg.MinPolygonPoints = defaults.MinPolygonPoints
	}
	if cfg.MinFreehandPoints < 2 {
		cfg.MinFreehandPoints = defaults.MinFreehandPoints
	}
	if cfg.SimplifySpacing < 0 {
		cfg.SimplifySpacing = defaults.SimplifySpacing
	}
	ids := deps.IDs
	if ids == nil {
		ids = NewIDSource()
	}

	return &Store{
		cfg:      cfg,
		conv:     deps.Converter,
		registry: deps.Registry,
		renderer: deps.Renderer,
		logger:   logger.With("component", "annotate"),
		ids:      ids,
	}
}

// Mode returns the active mode.
func (s *Store) Mode() Mode { return s.mode }

// Pending returns a copy of the in-progress points.
func (s *Store) Pending() []core.Point2D {
	return append([]core.Point2D(nil), s.pending...)
}

// Shapes returns copies of the completed shapes in z-order, bottom first.
func (s *Store) Shapes() []core.Shape {
	out := make([]core.Shape, len(s.shapes))
	for i, sh := range s.shapes {
		out[i] = sh.Clone()
	}
	return out
}

// Adopt takes over shapes whose hotspots already exist in the viewer, e.g.
// those of a Store closed on surface teardown. No commands are issued.
// Shapes with an empty, duplicate or non-finite geometry are skipped. Only
// allowed in Idle; returns the number adopted.
func (s *Store) Adopt(shapes []core.Shape) int {
	if s.closed || s.mode != ModeIdle {
		return 0
	}
	n := 0
	for i := range shapes {
		in := &shapes[i]
		if in.ID == "" || len(in.AnchorPoints) == 0 || s.find(in.ID) != nil || !finiteAnchors(in.AnchorPoints) {
			continue
		}
		sh := &core.Shape{
			ID:           in.ID,
			Kind:         in.Kind,
			AnchorPoints: append([]core.AngularPoint(nil), in.AnchorPoints...),
			HidePoints:   in.HidePoints,
		}
		sh.ScreenPoints, _ = s.conv.AngularToScreenBatch(nil, sh.AnchorPoints)
		s.shapes = append(s.shapes, sh)
		if in.Selected {
			s.selectShape(sh)
		}
		n++
	}
	if n > 0 {
		s.render()
	}
	return n
}

func (s *Store) find(id string) *core.Shape {
	for _, sh := range s.shapes {
		if sh.ID == id {
			return sh
		}
	}
	return nil
}

func finiteAnchors(anchors []core.AngularPoint) bool {
	for _, a := range anchors {
		if !a.IsFinite() {
			return false
		}
	}
	return true
}

// SelectedID returns the id of the selected shape, or "".
func (s *Store) SelectedID() string {
	if s.selected == nil {
		return ""
	}
	return s.selected.ID
}

// Status reports the mode, pending count, shape count and selection.
func (s *Store) Status() Status {
	return Status{
		Mode:       s.mode.String(),
		Points:     len(s.pending),
		Shapes:     len(s.shapes),
		SelectedID: s.SelectedID(),
	}
}

// Frame returns a render snapshot.
func (s *Store) Frame() Frame {
	f := Frame{
		Mode:    s.mode,
		Pending: s.Pending(),
		Shapes:  s.Shapes(),
	}
	if s.mode == ModeDrawPolygon && len(s.pending) >= s.cfg.MinPolygonPoints {
		f.CloseRange = s.cfg.CloseRadius
	}
	return f
}

func (s *Store) render() {
	if s.renderer == nil || s.closed {
		return
	}
	s.renderer.Render(s.Frame())
}

// SetMode switches the interaction session. Idle is always reachable, and
// every mode is reachable from Idle; other transitions are ignored and
// return false. Requesting the current mode only redraws.
func (s *Store) SetMode(next Mode) bool {
	if s.closed || next < ModeIdle || next > ModeMove {
		return false
	}
	if next == s.mode {
		s.render()
		return true
	}
	if next != ModeIdle && s.mode != ModeIdle {
		s.logger.Debug("mode transition ignored", "from", s.mode, "to", next)
		return false
	}

	switch {
	case s.mode.Drawing():
		if len(s.pending) > 0 {
			s.logger.Debug("pending points discarded", "count", len(s.pending))
		}
		s.pending = s.pending[:0]
		s.stroking = false
	case s.mode.Dragging():
		// an unfinished edit drag snaps back to its anchors
		if s.drag.active && s.mode == ModeEdit {
			sh := s.drag.shape
			sh.ScreenPoints, _ = s.conv.AngularToScreenBatch(sh.ScreenPoints, sh.AnchorPoints)
		}
		s.drag = dragState{}
	}

	s.mode = next
	s.render()
	return true
}

// ToggleMode enters m from Idle, or returns to Idle when m is already active.
func (s *Store) ToggleMode(m Mode) bool {
	if s.mode == m {
		return s.SetMode(ModeIdle)
	}
	return s.SetMode(m)
}

// ClearAll removes every shape from the viewer and from the Store, drops
// pending points and selection, and returns to Idle.
func (s *Store) ClearAll() {
	if s.closed {
		return
	}
	for _, sh := range s.shapes {
		if err := s.registry.RemoveHotspot(sh.ID); err != nil {
			s.logger.Warn("remove hotspot failed", "id", sh.ID, "error", err)
		}
	}
	s.shapes = nil
	s.pending = s.pending[:0]
	s.stroking = false
	s.selected = nil
	s.drag = dragState{}
	s.mode = ModeIdle
	s.render()
}

// OnCameraViewChanged re-projects every shape's screen points from its
// anchors. Anchors are never modified. A shape in the middle of an Edit drag
// keeps its translated screen points; EndDrag derives its anchors from them.
func (s *Store) OnCameraViewChanged() {
	if s.closed {
		return
	}
	failed := 0
	for _, sh := range s.shapes {
		if s.drag.active && s.mode == ModeEdit && sh == s.drag.shape {
			continue
		}
		var n int
		sh.ScreenPoints, n = s.conv.AngularToScreenBatch(sh.ScreenPoints, sh.AnchorPoints)
		failed += n
	}
	if failed > 0 {
		s.logger.Debug("anchors not projectable", "count", failed)
	}
	s.render()
}

// Close tears the Store down. The viewer keeps its hotspots; no commands
// are issued. Every later call is a no-op. Hand Shapes to the next Store's
// Adopt to keep them removable.
func (s *Store) Close() {
	s.closed = true
	s.shapes = nil
	s.pending = nil
	s.stroking = false
	s.selected = nil
	s.drag = dragState{}
	s.mode = ModeIdle
}
