// Package influx writes annotation telemetry to InfluxDB, falling back to a
// gzipped line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/google/uuid"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/panodraw/annotator/internal/bridge"
	"github.com/panodraw/annotator/internal/config"
	"github.com/panodraw/annotator/pkg/core"
	"github.com/rs/zerolog"
)

const (
	MeasurementConversions = "bridge_conversions"
	MeasurementShapeEvents = "shape_events"

	retentionSeconds = 60 * 60 * 24 * 90
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx disabled")

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	Client     influxdb2.Client
	Writer     influxdb2_api.WriteAPI
	IsValid    bool
	Logger     zerolog.Logger
	BackupPath string

	cfg          config.InfluxConfig
	mu           sync.Mutex
	backupFile   *os.File
	backupWriter *gzip.Writer
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig, backupPath string) *Manager {
	return &Manager{
		Logger:     log,
		BackupPath: backupPath,
		cfg:        cfg,
	}
}

// Connect pings the server and prepares the bucket. If the server cannot be
// reached, writes go to the backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Str("backupPath", m.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupBucket(ctx); err != nil {
		return err
	}
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())

	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := m.backupWriter.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// RecordShapeEvent writes one point per hotspot command, so the manager can
// sit beside a storage backend as a journal sink.
func (m *Manager) RecordShapeEvent(e *core.ShapeEvent) error {
	return m.WritePoint(ShapeEventPoint(e))
}

// ReportConversions writes the bridge counters every interval until ctx is
// done.
func (m *Manager) ReportConversions(ctx context.Context, interval time.Duration, stats func() bridge.Stats) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if err := m.WritePoint(ConversionPoint(stats(), t)); err != nil {
				m.Logger.Warn().Err(err).Msg("Failed to write conversion stats")
			}
		}
	}
}

// Close flushes pending writes and closes the client and backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backupWriter == nil {
		return nil
	}
	err := errors.Join(m.backupWriter.Close(), m.backupFile.Close())
	m.backupWriter = nil
	m.backupFile = nil
	return err
}

// ConversionPoint builds the cumulative conversion counters point.
func ConversionPoint(s bridge.Stats, t time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementConversions,
		nil,
		map[string]interface{}{
			"direct":   s.Direct,
			"fallback": s.Fallback,
			"failed":   s.Failed,
		},
		t,
	)
}

// ShapeEventPoint builds the point for a hotspot command.
func ShapeEventPoint(e *core.ShapeEvent) *influxdb2_write.Point {
	t := e.Time
	if t.IsZero() {
		t = time.Now()
	}
	p := influxdb2.NewPointWithMeasurement(MeasurementShapeEvents).
		AddTag("action", string(e.Action)).
		AddTag("kind", string(e.Kind)).
		AddField("shape_id", e.ShapeID).
		AddField("anchors", len(e.Anchors)).
		SetTime(t)
	if e.SessionID != uuid.Nil {
		p.AddTag("session", e.SessionID.String())
	}
	return p
}
