// Package journal records the hotspot commands the annotation store issues.
//
// A Recorder wraps the viewer's hotspot registry: every command is forwarded
// first and, when it succeeds, a copy is queued for a background goroutine
// that writes it to the storage backend and any extra sinks. The journal
// never feeds back into the store.
package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panodraw/annotator/internal/annotate"
	"github.com/panodraw/annotator/internal/storage"
	"github.com/panodraw/annotator/pkg/core"
)

const defaultBufferSize = 1024

// Sink receives a copy of every recorded event.
type Sink interface {
	RecordShapeEvent(e *core.ShapeEvent) error
}

// Options configures a Recorder.
type Options struct {
	// Backend stores sessions. Optional; nil records to Sinks only.
	Backend storage.Backend
	Sinks   []Sink
	Logger  *slog.Logger

	ViewerURL  string
	BufferSize int

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Recorder implements annotate.HotspotRegistry.
type Recorder struct {
	next    annotate.HotspotRegistry
	backend storage.Backend
	sinks   []Sink
	logger  *slog.Logger
	now     func() time.Time
	url     string
	bufSize int

	seq     atomic.Uint64
	dropped atomic.Int64

	mu      sync.Mutex
	session *core.Session
	events  chan core.ShapeEvent
	done    chan struct{}
}

var _ annotate.HotspotRegistry = (*Recorder)(nil)

// New wraps next. Commands pass through even before Start; they are only
// journaled while a session is open.
func New(next annotate.HotspotRegistry, opts Options) *Recorder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Recorder{
		next:    next,
		backend: opts.Backend,
		sinks:   opts.Sinks,
		logger:  logger.With("component", "journal"),
		now:     now,
		url:     opts.ViewerURL,
		bufSize: size,
	}
}

// Start opens a new session and starts the writer goroutine.
func (r *Recorder) Start(viewerVersion string) (core.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return *r.session, errors.New("journal session already open")
	}

	s := core.Session{
		ID:            uuid.New(),
		StartTime:     r.now().UTC(),
		ViewerURL:     r.url,
		ViewerVersion: viewerVersion,
	}
	if r.backend != nil {
		if err := r.backend.StartSession(&s); err != nil {
			return core.Session{}, fmt.Errorf("failed to start journal session: %w", err)
		}
	}

	r.session = &s
	r.seq.Store(0)
	r.events = make(chan core.ShapeEvent, r.bufSize)
	r.done = make(chan struct{})
	go r.run(r.events, r.done)

	r.logger.Info("Journal session started", "session", s.ID.String())
	return s, nil
}

// Session returns the open session, if any.
func (r *Recorder) Session() (core.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return core.Session{}, false
	}
	return *r.session, true
}

// Dropped returns how many events were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Stop drains the queue and ends the session.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	s := r.session
	if s == nil {
		r.mu.Unlock()
		return nil
	}
	r.session = nil
	close(r.events)
	done := r.done
	r.mu.Unlock()

	<-done
	r.logger.Info("Journal session ended", "session", s.ID.String(), "events", r.seq.Load(), "dropped", r.dropped.Load())
	if r.backend != nil {
		if err := r.backend.EndSession(); err != nil {
			return fmt.Errorf("failed to end journal session: %w", err)
		}
	}
	return nil
}

func (r *Recorder) run(events <-chan core.ShapeEvent, done chan<- struct{}) {
	defer close(done)
	for e := range events {
		if r.backend != nil {
			if err := r.backend.RecordShapeEvent(&e); err != nil {
				r.logger.Error("Failed to store shape event", "shape", e.ShapeID, "error", err)
			}
		}
		for _, sink := range r.sinks {
			if err := sink.RecordShapeEvent(&e); err != nil {
				r.logger.Warn("Journal sink failed", "shape", e.ShapeID, "error", err)
			}
		}
	}
}

// record queues a copy of the command. It never blocks the caller.
func (r *Recorder) record(action core.ShapeAction, id string, anchors []core.AngularPoint, style *core.HotspotStyle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return
	}

	e := core.ShapeEvent{
		SessionID: r.session.ID,
		Seq:       r.seq.Add(1),
		Time:      r.now().UTC(),
		Action:    action,
		ShapeID:   id,
		Kind:      core.KindForID(id),
		Anchors:   append([]core.AngularPoint(nil), anchors...),
	}
	if style != nil {
		st := *style
		e.Style = &st
	}

	select {
	case r.events <- e:
	default:
		r.dropped.Add(1)
		r.logger.Warn("Journal queue full, dropping event", "shape", id, "action", string(action))
	}
}

// CreatePolygonHotspot forwards the command and journals it on success.
func (r *Recorder) CreatePolygonHotspot(id string, anchors []core.AngularPoint, style core.HotspotStyle) error {
	if err := r.next.CreatePolygonHotspot(id, anchors, style); err != nil {
		return err
	}
	r.record(core.ActionCreate, id, anchors, &style)
	return nil
}

// UpdatePolygonHotspotPoints forwards the command and journals it on success.
func (r *Recorder) UpdatePolygonHotspotPoints(id string, anchors []core.AngularPoint) error {
	if err := r.next.UpdatePolygonHotspotPoints(id, anchors); err != nil {
		return err
	}
	r.record(core.ActionUpdate, id, anchors, nil)
	return nil
}

// RemoveHotspot forwards the command and journals it on success.
func (r *Recorder) RemoveHotspot(id string) error {
	if err := r.next.RemoveHotspot(id); err != nil {
		return err
	}
	r.record(core.ActionRemove, id, nil, nil)
	return nil
}
