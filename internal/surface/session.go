// Package surface runs the single event loop that owns the annotation store.
//
// Host UI events (golang.org/x/mobile touch, mouse, size and lifecycle
// events) and viewer messages all arrive on this loop, so the store is never
// touched from more than one goroutine.
package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/panodraw/annotator/internal/annotate"
	"github.com/panodraw/annotator/internal/dispatcher"
	"github.com/panodraw/annotator/pkg/core"
	"github.com/panodraw/annotator/pkg/protocol"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/size"
	"golang.org/x/mobile/event/touch"
)

const eventChSize = 256

// ErrBusy is returned by Post when the event queue is full.
var ErrBusy = errors.New("surface event queue full")

// Viewer is the cached viewer state fed by inbound messages.
// *krpano.Client satisfies it.
type Viewer interface {
	HandleEnvelope(env protocol.Envelope) error
	SetCanvas(r core.Rect)
	Version() string
}

// Sender delivers encoded envelopes to the page.
type Sender interface {
	Send(data []byte)
}

// Dependencies holds the collaborators of a Session.
type Dependencies struct {
	Viewer     Viewer
	Sender     Sender
	Inbound    <-chan protocol.Envelope
	Dispatcher *dispatcher.Dispatcher // optional; commands are rejected without it

	// NewStore builds the store when the surface becomes visible. It must
	// pass ids on in annotate.Dependencies so ids stay unique across
	// rebuilt stores.
	NewStore func(ids *annotate.IDSource) *annotate.Store

	// OnAttach and OnDetach run on the loop after the store is built and
	// before it is closed. Optional.
	OnAttach func(store *annotate.Store, viewerVersion string)
	OnDetach func()

	// OnResize is told the new surface size in pixels and the pixel
	// density. Optional.
	OnResize func(widthPx, heightPx int, pixelsPerPt float32)

	Logger *slog.Logger
}

// Session is one render surface.
type Session struct {
	deps   Dependencies
	logger *slog.Logger
	events chan any

	store       *annotate.Store
	ids         *annotate.IDSource
	retained    []core.Shape // shapes of the last detached store, still live in the viewer
	pixelsPerPt float32
	ptr         pointer

	status atomic.Pointer[annotate.Status]
}

// New creates a Session. Nothing runs until Run.
func New(deps Dependencies) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		deps:        deps,
		logger:      logger.With("component", "surface"),
		events:      make(chan any, eventChSize),
		ids:         annotate.NewIDSource(),
		pixelsPerPt: 1,
	}
}

// Post queues a host event for the loop. Safe from any goroutine.
func (s *Session) Post(e any) error {
	select {
	case s.events <- e:
		return nil
	default:
		return ErrBusy
	}
}

// Store returns the attached store or nil. Only call it from the loop,
// e.g. from a command handler.
func (s *Session) Store() *annotate.Store {
	return s.store
}

// Status returns the store status as of the last processed event.
// Safe from any goroutine.
func (s *Session) Status() (annotate.Status, bool) {
	st := s.status.Load()
	if st == nil {
		return annotate.Status{}, false
	}
	return *st, true
}

// LogState stamps the store status onto log records.
func (s *Session) LogState() []slog.Attr {
	st, ok := s.Status()
	if !ok {
		return nil
	}
	attrs := []slog.Attr{
		slog.String("mode", st.Mode),
		slog.Int("shapes", st.Shapes),
	}
	if st.SelectedID != "" {
		attrs = append(attrs, slog.String("selected", st.SelectedID))
	}
	return attrs
}

// Run processes events until ctx is done. The store is closed on return.
func (s *Session) Run(ctx context.Context) error {
	defer s.detach()

	inbound := s.deps.Inbound
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-s.events:
			s.handleEvent(e)
		case env := <-inbound:
			s.handleEnvelope(env)
		}
		s.publishStatus()
	}
}

func (s *Session) publishStatus() {
	if s.store == nil {
		s.status.Store(nil)
		return
	}
	st := s.store.Status()
	s.status.Store(&st)
}

func (s *Session) handleEvent(e any) {
	switch e := e.(type) {
	case lifecycle.Event:
		s.handleLifecycle(e)
	case size.Event:
		s.handleSize(e)
	case touch.Event:
		s.HandleTouch(e)
	case mouse.Event:
		s.HandleMouse(e)
	case protocol.Envelope:
		s.handleEnvelope(e)
	default:
		s.logger.Debug("Ignoring host event", "type", fmt.Sprintf("%T", e))
	}
}

func (s *Session) handleLifecycle(e lifecycle.Event) {
	switch e.Crosses(lifecycle.StageVisible) {
	case lifecycle.CrossOn:
		s.attach()
	case lifecycle.CrossOff:
		s.detach()
	}
}

func (s *Session) attach() {
	if s.store != nil || s.deps.NewStore == nil {
		return
	}
	s.store = s.deps.NewStore(s.ids)
	s.ptr = pointer{}
	if len(s.retained) > 0 {
		n := s.store.Adopt(s.retained)
		s.logger.Debug("Shapes carried over", "shapes", n)
		s.retained = nil
	}
	version := ""
	if s.deps.Viewer != nil {
		version = s.deps.Viewer.Version()
	}
	if s.deps.OnAttach != nil {
		s.deps.OnAttach(s.store, version)
	}
	s.logger.Info("Annotation surface attached", "viewerVersion", version)
}

func (s *Session) detach() {
	if s.store == nil {
		return
	}
	if s.deps.OnDetach != nil {
		s.deps.OnDetach()
	}
	s.retained = s.store.Shapes()
	s.store.Close()
	s.store = nil
	s.ptr = pointer{}
	s.logger.Info("Annotation surface detached")
}

func (s *Session) handleSize(e size.Event) {
	if e.PixelsPerPt > 0 {
		s.pixelsPerPt = e.PixelsPerPt
	}
	r := core.Rect{Width: float64(e.WidthPt), Height: float64(e.HeightPt)}
	if r.Empty() {
		return
	}
	if s.deps.Viewer != nil {
		s.deps.Viewer.SetCanvas(r)
	}
	if s.deps.OnResize != nil {
		s.deps.OnResize(e.WidthPx, e.HeightPx, s.pixelsPerPt)
	}
	if s.store != nil {
		s.store.OnCameraViewChanged()
	}
}
