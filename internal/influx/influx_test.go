package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/panodraw/annotator/internal/bridge"
	"github.com/panodraw/annotator/internal/config"
	"github.com/panodraw/annotator/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachable points at a closed port so Ping fails fast.
func unreachable() config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "panodraw-metrics",
		Bucket:   "panodraw",
	}
}

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(data)
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.NoError(t, m.Close())
}

func TestWritePoint_NotConnected(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, "")
	err := m.WritePoint(ConversionPoint(bridge.Stats{}, time.Now()))
	assert.Error(t, err)
}

func TestBackupWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(zerolog.Nop(), unreachable(), path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	ts := time.Unix(1_790_000_000, 0)
	require.NoError(t, m.WritePoint(ConversionPoint(bridge.Stats{Direct: 3, Fallback: 7, Failed: 1}, ts)))
	require.NoError(t, m.RecordShapeEvent(&core.ShapeEvent{
		SessionID: uuid.MustParse("6f1c2b1e-2f0c-4c44-9a55-1f9a3e7c0d11"),
		Action:    core.ActionCreate,
		Kind:      core.ShapePolygon,
		ShapeID:   "poly_1",
		Anchors:   make([]core.AngularPoint, 3),
		Time:      ts,
	}))
	require.NoError(t, m.Close())

	lines := strings.Split(strings.TrimSpace(readBackup(t, path)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "bridge_conversions "))
	assert.Contains(t, lines[0], "direct=3i")
	assert.Contains(t, lines[0], "fallback=7i")
	assert.True(t, strings.HasPrefix(lines[1], "shape_events,action=create,kind=polygon,session=6f1c2b1e-2f0c-4c44-9a55-1f9a3e7c0d11 "))
	assert.Contains(t, lines[1], `shape_id="poly_1"`)
	assert.Contains(t, lines[1], "anchors=3i")
	assert.True(t, strings.HasSuffix(lines[1], "1790000000000000000"))
}

func TestReportConversions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(zerolog.Nop(), unreachable(), path)
	require.NoError(t, m.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 16)
	done := make(chan struct{})
	go func() {
		m.ReportConversions(ctx, 5*time.Millisecond, func() bridge.Stats {
			calls <- struct{}{}
			return bridge.Stats{Fallback: 2}
		})
		close(done)
	}()

	<-calls
	<-calls
	cancel()
	<-done
	require.NoError(t, m.Close())

	assert.Contains(t, readBackup(t, path), "fallback=2i")
}

func TestShapeEventPoint_NoSessionTag(t *testing.T) {
	p := ShapeEventPoint(&core.ShapeEvent{Action: core.ActionRemove, Kind: core.ShapeFreehand, ShapeID: "freehand_2"})
	for _, tag := range p.TagList() {
		assert.NotEqual(t, "session", tag.Key)
	}
	assert.Equal(t, MeasurementShapeEvents, p.Name())
}
