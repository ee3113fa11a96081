// Package gormstorage implements the journal backend on GORM. It serves both
// SQLite and Postgres; events are queued and written in batches by a
// background goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panodraw/annotator/internal/model"
	"github.com/panodraw/annotator/internal/model/convert"
	"github.com/panodraw/annotator/internal/queue"
	"github.com/panodraw/annotator/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultFlushInterval = 500 * time.Millisecond
	batchSize            = 500
	queueLimit           = 100000
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no active session")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB *gorm.DB
	// Closer releases the connection on Close. Optional.
	Closer        io.Closer
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	logger *slog.Logger
	events *queue.Queue[model.ShapeEvent]

	mu      sync.Mutex // serializes flushes
	session *core.Session

	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend. Init must be called before use.
func New(deps Dependencies) *Backend {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		logger: logger.With("component", "journal.gorm"),
	}
}

// Init creates the queue, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gormstorage: no database")
	}
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.events = queue.NewBounded[model.ShapeEvent](queueLimit)
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the writer, flushes what is left, and closes the connection.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil

	err := b.EndSession()
	if errors.Is(err, ErrNoSession) {
		err = nil
	}
	if b.deps.Closer != nil {
		err = errors.Join(err, b.deps.Closer.Close())
	}
	return err
}

// StartSession inserts the session row synchronously so queued events can
// reference it.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.SessionToGorm(*s)
	if err := b.deps.DB.Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	b.mu.Lock()
	cp := *s
	b.session = &cp
	b.mu.Unlock()
	return nil
}

// EndSession flushes pending events and stamps the session end time.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	s := b.session
	b.session = nil
	b.mu.Unlock()
	if s == nil {
		return ErrNoSession
	}

	flushErr := b.flush()

	end := s.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	err := b.deps.DB.Model(&model.Session{}).
		Where("id = ?", s.ID.String()).
		Update("end_time", end).Error
	if err != nil {
		err = fmt.Errorf("failed to close session: %w", err)
	}
	return errors.Join(flushErr, err)
}

// RecordShapeEvent converts and queues e.
func (b *Backend) RecordShapeEvent(e *core.ShapeEvent) error {
	b.mu.Lock()
	open := b.session != nil
	b.mu.Unlock()
	if !open {
		return ErrNoSession
	}

	row, err := convert.ShapeEventToGorm(*e)
	if err != nil {
		return err
	}
	b.events.Push(row)
	return nil
}

func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.flush(); err != nil {
				b.logger.Error("Failed to write shape events", "error", err, "pending", b.events.Len())
			}
		}
	}
}

// flush writes all queued events. A failed batch is requeued.
func (b *Backend) flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.events.Drain()
	if len(items) == 0 {
		return nil
	}
	start := time.Now()
	if err := b.deps.DB.Omit(clause.Associations).CreateInBatches(&items, batchSize).Error; err != nil {
		b.events.Requeue(items)
		return fmt.Errorf("failed to insert %d shape events: %w", len(items), err)
	}
	b.logger.Debug("Wrote shape events", "count", len(items), "duration", time.Since(start))
	if n := b.events.Dropped(); n > 0 {
		b.logger.Warn("Shape event queue overflowed", "dropped", n)
	}
	return nil
}

// Sessions returns all sessions, oldest first.
func (b *Backend) Sessions() ([]core.Session, error) {
	var rows []model.Session
	if err := b.deps.DB.Order("start_time").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]core.Session, 0, len(rows))
	for _, r := range rows {
		s, err := convert.SessionToCore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadSession reads a session and folds its events into an export.
func (b *Backend) LoadSession(id uuid.UUID) (core.SessionExport, error) {
	var row model.Session
	if err := b.deps.DB.First(&row, "id = ?", id.String()).Error; err != nil {
		return core.SessionExport{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	s, err := convert.SessionToCore(row)
	if err != nil {
		return core.SessionExport{}, err
	}

	var rows []model.ShapeEvent
	err = b.deps.DB.Where("session_id = ?", row.ID).Order("seq").Order("id").Find(&rows).Error
	if err != nil {
		return core.SessionExport{}, fmt.Errorf("failed to load events: %w", err)
	}
	events := make([]core.ShapeEvent, 0, len(rows))
	for _, r := range rows {
		e, err := convert.ShapeEventToCore(r)
		if err != nil {
			return core.SessionExport{}, err
		}
		events = append(events, e)
	}
	return core.BuildExport(s, events), nil
}
