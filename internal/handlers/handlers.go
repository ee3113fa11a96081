// Package handlers maps host commands onto the annotation store.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/panodraw/annotator/internal/annotate"
	"github.com/panodraw/annotator/internal/bridge"
	"github.com/panodraw/annotator/internal/dispatcher"
	"github.com/panodraw/annotator/internal/geo"
	"github.com/panodraw/annotator/pkg/core"
)

// Command names.
const (
	CmdMode           = ":MODE:"
	CmdModeToggle     = ":MODE:TOGGLE:"
	CmdUndo           = ":UNDO:"
	CmdComplete       = ":COMPLETE:"
	CmdClear          = ":CLEAR:"
	CmdStatus         = ":STATUS:"
	CmdShapes         = ":SHAPES:"
	CmdShapeAdd       = ":SHAPE:ADD:"
	CmdViewChanged    = ":VIEW:CHANGED:"
	CmdSurfaceResized = ":SURFACE:RESIZED:"
)

var (
	// ErrNoSurface is returned while no store is attached (surface hidden).
	ErrNoSurface = errors.New("annotation surface not ready")
	// ErrBadArgs is returned for missing or malformed arguments.
	ErrBadArgs = errors.New("invalid arguments")
)

// Viewer is the cached viewer state.
type Viewer interface {
	Ready() bool
	Version() string
	CurrentView() (core.View, bool)
	SetCanvas(r core.Rect)
}

// Journal reports the open recording session.
type Journal interface {
	Session() (core.Session, bool)
	Dropped() int64
}

// Dependencies holds everything the handlers need. Store returns nil while
// the surface is not visible.
type Dependencies struct {
	Store   func() *annotate.Store
	Viewer  Viewer
	Stats   func() bridge.Stats // optional
	Journal Journal             // optional
	Logger  *slog.Logger
}

// Service implements the host commands. Like the store, it must only be
// called from the surface event loop.
type Service struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewService creates a handler service.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, logger: logger.With("component", "handlers")}
}

// Register installs every command on d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdMode, s.SetMode, dispatcher.Logged())
	d.Register(CmdModeToggle, s.ToggleMode, dispatcher.Logged())
	d.Register(CmdUndo, s.Undo, dispatcher.Logged())
	d.Register(CmdComplete, s.Complete, dispatcher.Logged())
	d.Register(CmdClear, s.Clear, dispatcher.Logged())
	d.Register(CmdStatus, s.Status)
	d.Register(CmdShapes, s.Shapes)
	d.Register(CmdShapeAdd, s.AddShape, dispatcher.Logged())
	d.Register(CmdViewChanged, s.ViewChanged)
	d.Register(CmdSurfaceResized, s.SurfaceResized, dispatcher.Logged())
}

func (s *Service) store() (*annotate.Store, error) {
	if s.deps.Store == nil {
		return nil, ErrNoSurface
	}
	st := s.deps.Store()
	if st == nil {
		return nil, ErrNoSurface
	}
	return st, nil
}

// ModeResult is returned by the mode commands.
type ModeResult struct {
	Mode    string `json:"mode"`
	Changed bool   `json:"changed"`
}

func parseModeArg(e dispatcher.Event) (annotate.Mode, error) {
	m, ok := annotate.ParseMode(e.Arg(0))
	if !ok {
		return annotate.ModeIdle, fmt.Errorf("%w: unknown mode %q", ErrBadArgs, e.Arg(0))
	}
	return m, nil
}

// SetMode switches to the mode named in the first argument. An illegal
// transition is not an error; Changed reports false.
func (s *Service) SetMode(e dispatcher.Event) (any, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	m, err := parseModeArg(e)
	if err != nil {
		return nil, err
	}
	changed := st.SetMode(m)
	return ModeResult{Mode: st.Mode().String(), Changed: changed}, nil
}

// ToggleMode enters the named mode, or returns to idle if it is active.
func (s *Service) ToggleMode(e dispatcher.Event) (any, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	m, err := parseModeArg(e)
	if err != nil {
		return nil, err
	}
	changed := st.ToggleMode(m)
	return ModeResult{Mode: st.Mode().String(), Changed: changed}, nil
}

// Undo drops the last pending point.
func (s *Service) Undo(dispatcher.Event) (any, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	return st.UndoLastPendingPoint(), nil
}

// Complete finishes the shape being drawn.
func (s *Service) Complete(dispatcher.Event) (any, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	switch st.Mode() {
	case annotate.ModeDrawPolygon:
		return st.CompletePolygon(), nil
	case annotate.ModeDrawFreehand:
		return st.CompleteFreehand(), nil
	}
	return false, nil
}

// Clear removes every shape.
func (s *Service) Clear(dispatcher.Event) (any, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	n := len(st.Shapes())
	st.ClearAll()
	s.logger.Info("Cleared annotations", "removed", n)
	return n, nil
}

// StatusReport is the :STATUS: result.
type StatusReport struct {
	Surface       bool             `json:"surface"`
	Store         *annotate.Status `json:"store,omitempty"`
	ViewerReady   bool             `json:"viewerReady"`
	ViewerVersion string           `json:"viewerVersion,omitempty"`
	View          *core.View       `json:"view,omitempty"`
	Conversions   *bridge.Stats    `json:"conversions,omitempty"`
	SessionID     string           `json:"sessionId,omitempty"`
	Dropped       int64            `json:"journalDropped,omitempty"`
}

// Status reports store, viewer and journal state. It works without a
// surface.
func (s *Service) Status(dispatcher.Event) (any, error) {
	var r StatusReport
	if st, err := s.store(); err == nil {
		status := st.Status()
		r.Surface = true
		r.Store = &status
	}
	if v := s.deps.Viewer; v != nil {
		r.ViewerReady = v.Ready()
		r.ViewerVersion = v.Version()
		if view, ok := v.CurrentView(); ok {
			r.View = &view
		}
	}
	if s.deps.Stats != nil {
		stats := s.deps.Stats()
		r.Conversions = &stats
	}
	if j := s.deps.Journal; j != nil {
		if sess, ok := j.Session(); ok {
			r.SessionID = sess.ID.String()
		}
		r.Dropped = j.Dropped()
	}
	return r, nil
}

// ShapeInfo is one entry of the :SHAPES: result.
type ShapeInfo struct {
	ID       string              `json:"id"`
	Kind     core.ShapeKind      `json:"kind"`
	Anchors  []core.AngularPoint `json:"anchors"`
	Selected bool                `json:"selected,omitempty"`
}

// Shapes lists the completed shapes with their anchors.
func (s *Service) Shapes(dispatcher.Event) (any, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	shapes := st.Shapes()
	out := make([]ShapeInfo, len(shapes))
	for i, sh := range shapes {
		out[i] = ShapeInfo{ID: sh.ID, Kind: sh.Kind, Anchors: sh.AnchorPoints, Selected: sh.Selected}
	}
	return out, nil
}

// AddShape restores a shape from its kind and a JSON array of
// [bearing, elevation] pairs. Returns the new shape id.
func (s *Service) AddShape(e dispatcher.Event) (any, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	kind := core.ShapeKind(e.Arg(0))
	anchors, err := geo.ParseAnchors(e.Arg(1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	id, ok := st.RestoreShape(kind, anchors)
	if !ok {
		return nil, fmt.Errorf("%w: cannot restore %s with %d anchors in mode %s", ErrBadArgs, kind, len(anchors), st.Mode())
	}
	return id, nil
}

// ViewChanged re-projects shapes after the camera moved.
func (s *Service) ViewChanged(dispatcher.Event) (any, error) {
	st, err := s.store()
	if err != nil {
		return nil, err
	}
	st.OnCameraViewChanged()
	return nil, nil
}

// SurfaceResized takes left, top, width, height of the overlay canvas,
// records them with the viewer and re-projects.
func (s *Service) SurfaceResized(e dispatcher.Event) (any, error) {
	if len(e.Args) != 4 {
		return nil, fmt.Errorf("%w: want left, top, width, height", ErrBadArgs)
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(e.Args[i], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadArgs, err)
		}
		v[i] = f
	}
	r := core.Rect{Left: v[0], Top: v[1], Width: v[2], Height: v[3]}
	if !r.IsFinite() {
		return nil, fmt.Errorf("%w: non-finite canvas", ErrBadArgs)
	}
	if r.Empty() {
		return nil, fmt.Errorf("%w: empty canvas", ErrBadArgs)
	}
	if s.deps.Viewer != nil {
		s.deps.Viewer.SetCanvas(r)
	}
	if st, err := s.store(); err == nil {
		st.OnCameraViewChanged()
	}
	return r, nil
}
