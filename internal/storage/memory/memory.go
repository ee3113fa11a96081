// Package memory keeps the shape journal in memory and writes a JSON export
// when the session ends.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/panodraw/annotator/internal/config"
	"github.com/panodraw/annotator/pkg/core"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no active session")

// Backend stores one session's events and exports them as JSON.
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	events  []core.ShapeEvent

	// finished sessions, kept so LoadSession works after EndSession
	past map[uuid.UUID]core.SessionExport
	// ordered ids of past
	order []uuid.UUID

	idCounter    uint
	exportedPath string
	mu           sync.RWMutex
}

// New creates a new memory backend.
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:  cfg,
		past: make(map[uuid.UUID]core.SessionExport),
	}
}

// Init initializes the backend.
func (b *Backend) Init() error {
	return nil
}

// Close ends an open session so its export is written.
func (b *Backend) Close() error {
	b.mu.RLock()
	open := b.session != nil
	b.mu.RUnlock()
	if open {
		return b.EndSession()
	}
	return nil
}

// StartSession begins recording a new session, discarding unexported events.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *s
	b.session = &cp
	b.events = nil
	b.idCounter = 0
	return nil
}

// EndSession folds the events into an export and writes it when an output
// directory is configured.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	export := core.BuildExport(*b.session, b.events)
	id := b.session.ID
	if _, seen := b.past[id]; !seen {
		b.order = append(b.order, id)
	}
	b.past[id] = export
	b.session = nil
	b.events = nil

	if b.cfg.OutputDir == "" {
		return nil
	}
	path, err := writeExport(b.cfg, export)
	if err != nil {
		return fmt.Errorf("failed to export session %s: %w", id, err)
	}
	b.exportedPath = path
	return nil
}

// RecordShapeEvent appends a copy of e and assigns its ID.
func (b *Backend) RecordShapeEvent(e *core.ShapeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.idCounter++
	e.ID = b.idCounter

	cp := *e
	cp.Anchors = append([]core.AngularPoint(nil), e.Anchors...)
	if e.Style != nil {
		st := *e.Style
		cp.Style = &st
	}
	b.events = append(b.events, cp)
	return nil
}

// Events returns a copy of the current session's events.
func (b *Backend) Events() []core.ShapeEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.ShapeEvent(nil), b.events...)
}

// Sessions returns finished sessions followed by the open one, if any.
func (b *Backend) Sessions() ([]core.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Session, 0, len(b.order)+1)
	for _, id := range b.order {
		e := b.past[id]
		out = append(out, core.Session{
			ID:            id,
			StartTime:     e.StartTime,
			EndTime:       e.EndTime,
			ViewerURL:     e.ViewerURL,
			ViewerVersion: e.ViewerVersion,
		})
	}
	if b.session != nil {
		out = append(out, *b.session)
	}
	return out, nil
}

// LoadSession returns the export of a finished or open session.
func (b *Backend) LoadSession(id uuid.UUID) (core.SessionExport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.session != nil && b.session.ID == id {
		return core.BuildExport(*b.session, b.events), nil
	}
	if e, ok := b.past[id]; ok {
		return e, nil
	}
	return core.SessionExport{}, fmt.Errorf("session %s not found", id)
}

// ExportedFilePath returns the path of the last written export.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exportedPath
}
