// Package storage defines the shape journal backends.
package storage

import (
	"github.com/google/uuid"
	"github.com/panodraw/annotator/pkg/core"
)

// Backend is the interface all journal storage implementations satisfy.
// Calls arrive from a single journal goroutine.
type Backend interface {
	Init() error
	Close() error

	// StartSession begins a new journal session. s.ID must be set.
	StartSession(s *core.Session) error
	// EndSession finalizes the current session (flush, export).
	EndSession() error

	RecordShapeEvent(e *core.ShapeEvent) error
}

// Loader is implemented by backends that can read past sessions back.
type Loader interface {
	Sessions() ([]core.Session, error)
	LoadSession(id uuid.UUID) (core.SessionExport, error)
}

// Exporter is implemented by backends that write a file per session.
type Exporter interface {
	ExportedFilePath() string
}
